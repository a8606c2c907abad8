package scenario

import "time"

const ms = time.Millisecond

// Payment is a checkout through a gateway, fraud scoring and a card charge.
// Fraud scoring and the confirmation run in parallel.
func Payment() *Scenario {
	fraud := step("AnalyzeTransaction", "fraud-detection", KindClient, 45*ms).
		with(RPC("FraudDetection", "AnalyzeTransaction")).
		then(
			step("Predict", "ml-service", KindClient, 25*ms).
				with(RPC("MLService", "Predict"), attrs("ml.model", "fraud-detector-v2")).
				level("debug").
				emit("debug", "prediction completed", "ml.score", "0.12"),
		)
	charge := step("ChargeCard", "payment-processor", KindInternal, 80*ms).
		failing(0.05, "payment declined").
		then(
			step("POST /v2/charges", "payment-processor", KindClient, 65*ms).
				with(HTTPClient("POST", "https://api.stripe.com/v2/charges", 200)),
		)

	return &Scenario{
		Name:        "payment",
		Description: "Checkout with fraud scoring and an external card processor",
		Baggage:     map[string]string{"tenant.id": "acme", "checkout.channel": "web"},
		Root: step("POST /api/v1/checkout", "payment-gateway", KindServer, 180*ms).
			with(HTTPServer("POST", "/api/v1/checkout", 200)).
			then(
				step("ProcessPayment", "payment-service", KindInternal, 150*ms).
					with(attrs("payment.amount", "99.99", "payment.currency", "USD")).
					emit("info", "processing payment request").
					fanOut(fraud, charge),
				step("SendConfirmation", "notification-service", KindProducer, 15*ms).
					with(Messaging("kafka", "notifications", "publish")).
					emit("info", "confirmation queued"),
			),
	}
}

// EdgeIoT is a telemetry batch received over MQTT and written to a
// time-series store.
func EdgeIoT() *Scenario {
	return &Scenario{
		Name:        "edge-iot",
		Description: "Device telemetry ingestion with registry lookup and rule evaluation",
		Root: step("device/+/telemetry", "device-gateway", KindConsumer, 35*ms).
			with(Messaging("mqtt", "device/+/telemetry", "receive")).
			emit("debug", "received telemetry batch", "batch.size", "10").
			then(
				step("ValidateDevice", "device-registry", KindClient, 8*ms).
					with(RPC("DeviceRegistry", "ValidateDevice")).
					then(
						step("GET device:123", "device-registry", KindClient, 2*ms).
							with(DB("redis", "devices", "GET device:123")).
							level("trace"),
					),
				step("ProcessBatch", "telemetry-processor", KindInternal, 20*ms).
					emit("info", "processing telemetry batch").
					fanOut(
						step("INSERT metrics", "telemetry-processor", KindClient, 12*ms).
							with(DB("timescaledb", "telemetry", "INSERT INTO metrics ...")).
							level("debug"),
						step("EvaluateAlerts", "rule-engine", KindClient, 5*ms).
							with(RPC("RuleEngine", "EvaluateAlerts")).
							emit("debug", "evaluated 3 rules, 0 alerts"),
					),
			),
	}
}

// Ecommerce is an order creation with stock reservation and an order event.
func Ecommerce() *Scenario {
	return &Scenario{
		Name:        "ecommerce",
		Description: "Order creation with inventory reservation and event publishing",
		Root: step("POST /orders", "api-gateway", KindServer, 120*ms).
			with(HTTPServer("POST", "/orders", 201)).
			emit("info", "order request received").
			then(
				step("CreateOrder", "order-service", KindInternal, 100*ms).
					with(attrs("order.items_count", "3")).
					then(
						step("ReserveStock", "inventory-service", KindClient, 25*ms).
							with(RPC("InventoryService", "ReserveStock")).
							failing(0.02, "insufficient stock").
							then(
								step("SELECT stock", "inventory-service", KindClient, 8*ms).
									with(DB("postgresql", "inventory", "SELECT available_qty FROM stock WHERE sku IN (...)")).
									level("debug"),
							),
						step("CalculateTotal", "pricing-service", KindClient, 15*ms).
							with(RPC("PricingService", "CalculateTotal")).
							emit("debug", "applied discount code", "discount.percent", "10"),
						step("INSERT order", "order-service", KindClient, 18*ms).
							with(DB("postgresql", "orders", "INSERT INTO orders (...) VALUES (...)")).
							level("debug"),
					),
				step("order.created", "order-service", KindProducer, 5*ms).
					with(Messaging("nats", "order.created", "publish")),
			),
	}
}

// HealthCheck is a single server span, useful to verify the output path.
func HealthCheck() *Scenario {
	return &Scenario{
		Name:        "health-check",
		Description: "Single HTTP health check span",
		Root: step("GET /health", "health-service", KindServer, 5*ms).
			with(HTTPServer("GET", "/health", 200)).
			emit("info", "health check passed"),
	}
}
