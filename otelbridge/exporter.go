package otelbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/arloliu/tracex"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// nopSpanExporter is a no-op span exporter.
type nopSpanExporter struct{}

func (nopSpanExporter) ExportSpans(_ context.Context, _ []sdktrace.ReadOnlySpan) error { return nil }
func (nopSpanExporter) Shutdown(_ context.Context) error                               { return nil }

func buildTraceExporter(cfg *tracex.SignalConfig) (sdktrace.SpanExporter, error) {
	switch normalizeExporterType(cfg.GetExporter()) {
	case "console":
		var opts []stdouttrace.Option
		if cfg != nil && cfg.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}

		return stdouttrace.New(opts...)
	case "nop":
		return nopSpanExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.GetExporter())
	}
}

// nopLogExporter is a no-op log exporter.
type nopLogExporter struct{}

func (nopLogExporter) Export(_ context.Context, _ []sdklog.Record) error { return nil }
func (nopLogExporter) Shutdown(_ context.Context) error                  { return nil }
func (nopLogExporter) ForceFlush(_ context.Context) error                { return nil }

func buildLogExporter(cfg *tracex.SignalConfig) (sdklog.Exporter, error) {
	switch normalizeExporterType(cfg.GetExporter()) {
	case "console":
		var opts []stdoutlog.Option
		if cfg != nil && cfg.PrettyPrint {
			opts = append(opts, stdoutlog.WithPrettyPrint())
		}

		return stdoutlog.New(opts...)
	case "nop":
		return nopLogExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported log exporter %q", cfg.GetExporter())
	}
}

func buildMetricExporter(cfg *tracex.MetricsConfig) (sdkmetric.Exporter, error) {
	name := ""
	if cfg != nil {
		name = cfg.Exporter
	}

	switch normalizeExporterType(name) {
	case "console":
		return stdoutmetric.New()
	case "nop":
		return nopMetricExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported metric exporter %q", name)
	}
}

// nopMetricExporter is a no-op metric exporter.
type nopMetricExporter struct{}

func (nopMetricExporter) Export(_ context.Context, _ *metricdata.ResourceMetrics) error { return nil }
func (nopMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (nopMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}
func (nopMetricExporter) ForceFlush(_ context.Context) error { return nil }
func (nopMetricExporter) Shutdown(_ context.Context) error   { return nil }

func normalizeExporterType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "console", "stdout":
		return "console"
	case "none", "nop", "noop":
		return "nop"
	default:
		return value
	}
}
