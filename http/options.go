package http

import (
	"context"
	"net/http"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/otelbridge"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Option configures server and client instrumentation.
type Option func(*config)

type config struct {
	dispatch   *tracex.Dispatch
	namer      otelbridge.SpanNamer
	propagator propagation.TextMapPropagator
	mp         metric.MeterProvider
	otelOpts   []otelhttp.Option
	filter     func(*http.Request) bool
}

func newConfig(opts []Option) *config {
	cfg := &config{namer: otelbridge.DefaultNamer{}}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithDispatch scopes every instrumented request to d instead of the
// default dispatch of the request context.
func WithDispatch(d tracex.Dispatch) Option {
	return func(c *config) { c.dispatch = &d }
}

// WithNamer sets how span names are derived from operations.
func WithNamer(n otelbridge.SpanNamer) Option {
	return func(c *config) {
		if n != nil {
			c.namer = n
		}
	}
}

// WithPropagator sets the propagator for trace context headers.
// Defaults to the OTel global propagator at request time.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *config) { c.propagator = p }
}

// WithMeterProvider enables the standard HTTP server and client metrics of
// otelhttp on mp. Tracing stays with the dispatch.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) { c.mp = mp }
}

// WithOTelOptions passes extra options to the otelhttp metrics wrapper.
// They only apply together with WithMeterProvider.
func WithOTelOptions(opts ...otelhttp.Option) Option {
	return func(c *config) { c.otelOpts = append(c.otelOpts, opts...) }
}

// WithFilter skips instrumentation for requests where f returns false.
func WithFilter(f func(*http.Request) bool) Option {
	return func(c *config) { c.filter = f }
}

// metricsOptions configures otelhttp for metrics only: spans come from the
// dispatch and headers are handled by this package.
func (c *config) metricsOptions() []otelhttp.Option {
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(tracenoop.NewTracerProvider()),
		otelhttp.WithMeterProvider(c.mp),
		otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator()),
	}

	return append(opts, c.otelOpts...)
}

func (c *config) skip(r *http.Request) bool {
	return c.filter != nil && !c.filter(r)
}

// scope runs fn under the configured dispatch, if any.
func (c *config) scope(ctx context.Context, fn func(ctx context.Context)) {
	if c.dispatch == nil {
		fn(ctx)
		return
	}
	tracex.WithDefault(ctx, *c.dispatch, fn)
}

func (c *config) extract(ctx context.Context, h http.Header) context.Context {
	if c.propagator == nil {
		return otelbridge.ExtractHTTP(ctx, h)
	}

	return c.propagator.Extract(ctx, propagation.HeaderCarrier(h))
}

func (c *config) inject(ctx context.Context, h http.Header) {
	if c.propagator == nil {
		otelbridge.InjectHTTP(ctx, h)
		return
	}
	c.propagator.Inject(otelbridge.ContextWithOTelSpan(ctx), propagation.HeaderCarrier(h))
}
