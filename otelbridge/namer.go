package otelbridge

// SpanNamer turns an operation into an OTel span name. Instrumentation
// passes the result under NameKey.
type SpanNamer interface {
	Name(operation string) string
}

// DefaultNamer returns operation names unchanged.
type DefaultNamer struct{}

// Name returns the operation name as is.
func (DefaultNamer) Name(operation string) string {
	return operation
}

// NamerFunc adapts a function to SpanNamer.
type NamerFunc func(operation string) string

// Name calls f.
func (f NamerFunc) Name(operation string) string { return f(operation) }

// NameHTTP returns a span name for an HTTP request: "METHOD /route".
func NameHTTP(method, route string) string {
	return method + " " + route
}

// NameRPC returns a span name for an RPC call: "Service/Method". A full
// gRPC method such as "/pkg.Greeter/SayHello" is accepted as the service.
func NameRPC(service, method string) string {
	if method == "" && len(service) > 0 && service[0] == '/' {
		return service[1:]
	}

	return service + "/" + method
}
