package otelbridge

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/tracex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNormalizeExporterType(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "console"},
		{name: "stdout", input: "stdout", want: "console"},
		{name: "noop", input: "noop", want: "nop"},
		{name: "mixed case", input: "None", want: "nop"},
		{name: "unknown", input: "otlp", want: "otlp"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeExporterType(tt.input))
		})
	}
}

func TestBuildExporters_Unsupported(t *testing.T) {
	_, err := buildTraceExporter(&tracex.SignalConfig{Exporter: "otlp"})
	require.Error(t, err)
	_, err = buildLogExporter(&tracex.SignalConfig{Exporter: "zipkin"})
	require.Error(t, err)
	_, err = buildMetricExporter(&tracex.MetricsConfig{Exporter: "prometheus"})
	require.Error(t, err)

	exp, err := buildTraceExporter(nil)
	require.NoError(t, err)
	assert.NotNil(t, exp)
}

func TestNormalizeMetricInterval(t *testing.T) {
	def := 60 * time.Second

	assert.Equal(t, def, normalizeMetricInterval(0, def))
	assert.Equal(t, def, normalizeMetricInterval(-time.Second, def))
	assert.Equal(t, 500*time.Millisecond, normalizeMetricInterval(500, def), "bare numbers are milliseconds")
	assert.Equal(t, 2*time.Second, normalizeMetricInterval(2*time.Second, def))
}

func TestBuildResource(t *testing.T) {
	enabled := true
	cfg := &tracex.Config{
		Enabled:     &enabled,
		ServiceName: "checkout",
		Version:     "1.2.3",
		Environment: "staging",
	}

	res, err := buildResource(context.Background(), cfg)
	require.NoError(t, err)

	attrs := res.Attributes()
	assert.Contains(t, attrs, attribute.String("service.name", "checkout"))
	assert.Contains(t, attrs, attribute.String("service.version", "1.2.3"))
	assert.Contains(t, attrs, attribute.String("deployment.environment", "staging"))

	cfg.ServiceName = ""
	_, err = buildResource(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrServiceNameRequired)
}
