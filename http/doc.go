// Package http instruments net/http servers and clients with dispatch
// spans.
//
// Every served or sent request runs inside a span from ServerCallsite or
// ClientCallsite, created through the default dispatch of the request
// context. Trace context headers are extracted on the server and injected
// on the client, so with the otelbridge collector installed the spans of
// both sides join one OpenTelemetry trace.
//
// # HTTP Server
//
//	http.ListenAndServe(addr, tracexhttp.Middleware()(mux))
//
//	// Fixed span name, plus otelhttp server metrics
//	http.Handle("/api", tracexhttp.Handler(api, "api.request",
//	    tracexhttp.WithMeterProvider(mp)))
//
// # HTTP Client
//
//	client := tracexhttp.NewClient(
//	    tracexhttp.WithTimeout(30 * time.Second),
//	)
//	resp, err := client.Get("https://example.com")
package http
