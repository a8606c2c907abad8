package otelbridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/tracex"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ErrTracesDisabled is returned when span output is disabled.
var ErrTracesDisabled = errors.New("tracex: traces export is disabled")

// ErrLogsDisabled is returned when event output is disabled.
var ErrLogsDisabled = errors.New("tracex: logs export is disabled")

// ErrMetricsDisabled is returned when dispatch counters are disabled.
var ErrMetricsDisabled = errors.New("tracex: metrics export is disabled")

// ErrServiceNameRequired is returned when ServiceName is empty but the
// bridge is enabled.
var ErrServiceNameRequired = errors.New("tracex: service name is required")

// NewTracerProvider builds the SDK TracerProvider for bridged spans, installs
// it as the OTel global and sets the global propagator from cfg.
// Returns tracex.ErrDisabled if cfg is not enabled.
func NewTracerProvider(ctx context.Context, cfg *tracex.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.IsEnabled() {
		return nil, tracex.ErrDisabled
	}
	if !cfg.Traces.IsEnabled() {
		return nil, ErrTracesDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildTraceExporter(cfg.Traces)
	if err != nil {
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}

	// Every span the dispatch enabled is kept; filtering happens upstream.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(BuildPropagator(cfg.Propagation))

	return tp, nil
}

// NewLoggerProvider builds the SDK LoggerProvider receiving bridged events
// and installs it as the OTel global.
func NewLoggerProvider(ctx context.Context, cfg *tracex.Config) (*sdklog.LoggerProvider, error) {
	if !cfg.IsEnabled() {
		return nil, tracex.ErrDisabled
	}
	if !cfg.Logs.IsEnabled() {
		return nil, ErrLogsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildLogExporter(cfg.Logs)
	if err != nil {
		return nil, fmt.Errorf("build log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	global.SetLoggerProvider(lp)

	return lp, nil
}

// NewMeterProvider builds the SDK MeterProvider for the dispatch counters
// and installs it as the OTel global. Metrics are opt-in.
func NewMeterProvider(ctx context.Context, cfg *tracex.Config) (*sdkmetric.MeterProvider, error) {
	if !cfg.IsEnabled() {
		return nil, tracex.ErrDisabled
	}
	if !cfg.Metrics.IsEnabled() {
		return nil, ErrMetricsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildMetricExporter(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("build metric exporter: %w", err)
	}

	interval := normalizeMetricInterval(cfg.Metrics.Interval, 60*time.Second)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval),
		)),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// Providers groups the SDK providers built from one config. A nil field
// means the signal is disabled.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Logger *sdklog.LoggerProvider
	Meter  *sdkmetric.MeterProvider
}

// NewProviders builds every provider cfg enables. Disabled signals are
// skipped; any other failure shuts down what was already built.
func NewProviders(ctx context.Context, cfg *tracex.Config) (*Providers, error) {
	if !cfg.IsEnabled() {
		return nil, tracex.ErrDisabled
	}

	p := &Providers{}
	var err error
	if p.Tracer, err = NewTracerProvider(ctx, cfg); err != nil && !errors.Is(err, ErrTracesDisabled) {
		return nil, err
	}
	if p.Logger, err = NewLoggerProvider(ctx, cfg); err != nil && !errors.Is(err, ErrLogsDisabled) {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	if p.Meter, err = NewMeterProvider(ctx, cfg); err != nil && !errors.Is(err, ErrMetricsDisabled) {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	return p, nil
}

// Options returns the collector options wiring every built provider.
func (p *Providers) Options() []Option {
	var opts []Option
	if p.Tracer != nil {
		opts = append(opts, WithTracerProvider(p.Tracer))
	}
	if p.Logger != nil {
		opts = append(opts, WithLoggerProvider(p.Logger))
	}
	if p.Meter != nil {
		opts = append(opts, WithMeterProvider(p.Meter))
	}

	return opts
}

// Shutdown flushes and stops every provider, joining their errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Logger != nil {
		errs = append(errs, p.Logger.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// buildResource creates the resource shared by all providers.
func buildResource(ctx context.Context, cfg *tracex.Config) (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		return nil, ErrServiceNameRequired
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// normalizeMetricInterval treats sub-millisecond values as milliseconds, the
// unit of a numeric OTEL_METRIC_EXPORT_INTERVAL.
func normalizeMetricInterval(value time.Duration, defaultValue time.Duration) time.Duration {
	if value <= 0 {
		return defaultValue
	}
	if value < time.Millisecond {
		ms := int64(value / time.Nanosecond)
		if ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}

		return defaultValue
	}

	return value
}
