package scenario

import (
	"strconv"
	"time"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// step starts a Step literal. Attribute maps below are keyed with semantic
// convention names so bridged spans look like real instrumentation.
func step(name, service string, kind Kind, d time.Duration) Step {
	return Step{Name: name, Service: service, Kind: kind, Duration: Duration(d)}
}

func (s Step) with(attrs ...map[string]string) Step {
	if s.Attributes == nil {
		s.Attributes = map[string]string{}
	}
	for _, m := range attrs {
		for k, v := range m {
			s.Attributes[k] = v
		}
	}

	return s
}

func (s Step) then(children ...Step) Step {
	s.Children = append(s.Children, children...)
	return s
}

func (s Step) fanOut(children ...Step) Step {
	s.Parallel = true
	return s.then(children...)
}

func (s Step) emit(level, message string, kv ...string) Step {
	ev := Event{Level: level, Message: message}
	if len(kv) > 0 {
		ev.Attributes = map[string]string{}
		for i := 0; i+1 < len(kv); i += 2 {
			ev.Attributes[kv[i]] = kv[i+1]
		}
	}
	s.Events = append(s.Events, ev)

	return s
}

func (s Step) level(l string) Step {
	s.Level = l
	return s
}

func (s Step) failing(rate float64, status string) Step {
	s.ErrorRate = rate
	s.ErrorStatus = status

	return s
}

// HTTPServer returns attributes of an HTTP server span.
func HTTPServer(method, route string, status int) map[string]string {
	return map[string]string{
		string(semconv.HTTPRequestMethodKey):      method,
		string(semconv.HTTPRouteKey):              route,
		string(semconv.URLPathKey):                route,
		string(semconv.HTTPResponseStatusCodeKey): strconv.Itoa(status),
	}
}

// HTTPClient returns attributes of an HTTP client span.
func HTTPClient(method, url string, status int) map[string]string {
	return map[string]string{
		string(semconv.HTTPRequestMethodKey):      method,
		string(semconv.URLFullKey):                url,
		string(semconv.HTTPResponseStatusCodeKey): strconv.Itoa(status),
	}
}

// RPC returns attributes of a gRPC call.
func RPC(service, method string) map[string]string {
	return map[string]string{
		string(semconv.RPCSystemKey):  "grpc",
		string(semconv.RPCServiceKey): service,
		string(semconv.RPCMethodKey):  method,
	}
}

// DB returns attributes of a database query.
func DB(system, namespace, query string) map[string]string {
	return map[string]string{
		string(semconv.DBSystemKey):    system,
		string(semconv.DBNamespaceKey): namespace,
		string(semconv.DBQueryTextKey): query,
	}
}

// Messaging returns attributes of a messaging operation.
func Messaging(system, destination, operation string) map[string]string {
	return map[string]string{
		string(semconv.MessagingSystemKey):          system,
		string(semconv.MessagingDestinationNameKey): destination,
		string(semconv.MessagingOperationNameKey):   operation,
	}
}

func attrs(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}

	return m
}
