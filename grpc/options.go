package grpc

import (
	"context"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/otelbridge"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/metadata"
)

// Option configures the interceptors and stats handlers.
type Option func(*config)

type config struct {
	dispatch   *tracex.Dispatch
	namer      otelbridge.SpanNamer
	propagator propagation.TextMapPropagator
	mp         metric.MeterProvider
	otelOpts   []otelgrpc.Option
}

func newConfig(opts []Option) *config {
	cfg := &config{namer: otelbridge.DefaultNamer{}}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithDispatch scopes every instrumented call to d instead of the default
// dispatch of the call context.
func WithDispatch(d tracex.Dispatch) Option {
	return func(c *config) { c.dispatch = &d }
}

// WithNamer sets how span names are derived from full method names.
func WithNamer(n otelbridge.SpanNamer) Option {
	return func(c *config) {
		if n != nil {
			c.namer = n
		}
	}
}

// WithPropagator sets the propagator for trace context metadata.
// Defaults to the OTel global propagator at call time.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *config) { c.propagator = p }
}

// WithMeterProvider sets the meter provider of the otelgrpc stats handlers.
// Defaults to the OTel global.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) { c.mp = mp }
}

// WithOTelOptions passes extra options to the otelgrpc stats handlers.
func WithOTelOptions(opts ...otelgrpc.Option) Option {
	return func(c *config) { c.otelOpts = append(c.otelOpts, opts...) }
}

// metricsOptions configures otelgrpc for metrics only: spans come from the
// dispatch and metadata is handled by the interceptors.
func (c *config) metricsOptions() []otelgrpc.Option {
	opts := []otelgrpc.Option{
		otelgrpc.WithTracerProvider(tracenoop.NewTracerProvider()),
		otelgrpc.WithPropagators(propagation.NewCompositeTextMapPropagator()),
	}
	if c.mp != nil {
		opts = append(opts, otelgrpc.WithMeterProvider(c.mp))
	}

	return append(opts, c.otelOpts...)
}

func (c *config) scope(ctx context.Context, fn func(ctx context.Context)) {
	if c.dispatch == nil {
		fn(ctx)
		return
	}
	tracex.WithDefault(ctx, *c.dispatch, fn)
}

func (c *config) extract(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if c.propagator == nil {
		return otelbridge.ExtractGRPC(ctx, md)
	}

	return c.propagator.Extract(ctx, otelbridge.MetadataCarrier(md))
}

// inject returns ctx with the trace context added to its outgoing metadata.
func (c *config) inject(ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	if c.propagator == nil {
		otelbridge.InjectGRPC(ctx, md)
	} else {
		c.propagator.Inject(otelbridge.ContextWithOTelSpan(ctx), otelbridge.MetadataCarrier(md))
	}

	return metadata.NewOutgoingContext(ctx, md)
}
