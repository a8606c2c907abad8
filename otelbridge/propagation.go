package otelbridge

import (
	"context"
	"net/http"

	"github.com/arloliu/tracex"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"
)

// BuildPropagator creates a text map propagator from cfg. Known names are
// "tracecontext", "baggage" and "none"; unknown names are reported through
// the tracex logger and ignored.
func BuildPropagator(cfg *tracex.PropConfig) propagation.TextMapPropagator {
	var propagators []propagation.TextMapPropagator
	for _, name := range cfg.Names() {
		switch name {
		case "tracecontext":
			propagators = append(propagators, propagation.TraceContext{})
		case "baggage":
			propagators = append(propagators, propagation.Baggage{})
		case "none":
		default:
			tracex.Logger().Warn("otelbridge: unknown propagator, ignoring", "name", name)
		}
	}

	return propagation.NewCompositeTextMapPropagator(propagators...)
}

// InjectHTTP writes the trace context of ctx into headers. A bridged span
// current in ctx is injected in place of any OTel span.
func InjectHTTP(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ContextWithOTelSpan(ctx), propagation.HeaderCarrier(headers))
}

// ExtractHTTP returns ctx carrying the remote trace context from headers.
func ExtractHTTP(ctx context.Context, headers http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// InjectGRPC writes the trace context of ctx into md.
func InjectGRPC(ctx context.Context, md metadata.MD) {
	otel.GetTextMapPropagator().Inject(ContextWithOTelSpan(ctx), MetadataCarrier(md))
}

// ExtractGRPC returns ctx carrying the remote trace context from md.
func ExtractGRPC(ctx context.Context, md metadata.MD) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, MetadataCarrier(md))
}

// MetadataCarrier adapts gRPC metadata to propagation.TextMapCarrier.
type MetadataCarrier metadata.MD

func (m MetadataCarrier) Get(key string) string {
	vals := metadata.MD(m).Get(key)
	if len(vals) > 0 {
		return vals[0]
	}

	return ""
}

func (m MetadataCarrier) Set(key string, value string) {
	metadata.MD(m).Set(key, value)
}

func (m MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}
