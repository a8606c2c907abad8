//revive:disable:line-length-limit
package tracex

import (
	"slices"
	"strings"
	"time"
)

// Config configures a process's tracing setup: which collector stack is
// installed as the global default and where the OpenTelemetry bridge sends
// its output. Environment variable names follow TRACEX_* for the dispatch
// core and the OTel specification for the bridge.
type Config struct {
	// Enabled controls whether a collector is installed at all.
	Enabled *bool `yaml:"enabled" default:"false" env:"TRACEX_ENABLED"`

	// ServiceName identifies the process in bridged telemetry.
	// Maps to OTEL_SERVICE_NAME.
	ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME" validate:"required_if=Enabled true"`

	// Version is the service version (e.g., git commit or semantic version).
	Version string `yaml:"version" env:"OTEL_SERVICE_VERSION"`

	// Environment is the deployment environment (e.g., production, development).
	Environment string `yaml:"environment" env:"OTEL_DEPLOYMENT_ENVIRONMENT" default:"development"`

	// Level is the initial level filter of the reloadable filter layer.
	// Options: "trace", "debug", "info", "warn", "error", "off".
	Level string `yaml:"level" env:"TRACEX_LEVEL" default:"info"`

	// Collector selects the collector stack behind the filter.
	// "otel" forwards to OpenTelemetry, "recorder" keeps an in-memory ring,
	// "registry" only tracks span lifetimes.
	Collector string `yaml:"collector" env:"TRACEX_COLLECTOR" default:"otel" validate:"oneof=otel recorder registry"`

	// RecorderCapacity bounds the in-memory ring of the recorder collector.
	RecorderCapacity int `yaml:"recorderCapacity" env:"TRACEX_RECORDER_CAPACITY" default:"1024" validate:"gt=0"`

	// Traces configures span output of the OTel bridge.
	Traces *SignalConfig `yaml:"traces,omitempty"`

	// Logs configures event output of the OTel bridge.
	Logs *SignalConfig `yaml:"logs,omitempty"`

	// Metrics configures dispatch counters of the OTel bridge.
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`

	// Propagation configures context propagation used by the http and grpc
	// instrumentation to continue remote traces.
	Propagation *PropConfig `yaml:"propagation,omitempty"`
}

// SignalConfig configures one OTel signal of the bridge.
type SignalConfig struct {
	// Enabled controls whether the signal is produced. Defaults to true.
	Enabled *bool `yaml:"enabled" default:"true"`

	// Exporter selects where the signal goes.
	// Options: "console", "stdout", "none".
	Exporter string `yaml:"exporter" default:"console" validate:"oneof=console stdout none"`

	// PrettyPrint indents console output.
	PrettyPrint bool `yaml:"prettyPrint"`
}

// IsEnabled returns true if the signal is enabled. Defaults to true if nil.
func (c *SignalConfig) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}

// GetExporter returns the exporter name, defaulting to "console".
func (c *SignalConfig) GetExporter() string {
	if c == nil || c.Exporter == "" {
		return "console"
	}

	return c.Exporter
}

// MetricsConfig configures the dispatch counters.
type MetricsConfig struct {
	// Enabled controls whether counters are collected.
	// Defaults to false (opt-in for metrics).
	Enabled *bool `yaml:"enabled" default:"false"`

	// Exporter selects where counters go.
	// Options: "console", "stdout", "none".
	Exporter string `yaml:"exporter" env:"OTEL_METRICS_EXPORTER" default:"console" validate:"oneof=console stdout none"`

	// Interval is the export interval for the periodic reader.
	// Maps to OTEL_METRIC_EXPORT_INTERVAL (milliseconds if numeric).
	Interval time.Duration `yaml:"interval,omitempty" env:"OTEL_METRIC_EXPORT_INTERVAL" default:"60s" validate:"omitempty,gt=0"`
}

// IsEnabled returns true if metrics collection is enabled.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// PropConfig configures context propagation.
type PropConfig struct {
	// Propagators is a comma-separated list. Known values: "tracecontext",
	// "baggage", "none". Defaults to "tracecontext,baggage".
	Propagators string `yaml:"propagators" env:"OTEL_PROPAGATORS" default:"tracecontext,baggage"`
}

// Names returns the configured propagator names.
func (c *PropConfig) Names() []string {
	if c == nil || c.Propagators == "" {
		return []string{"tracecontext", "baggage"}
	}

	return splitList(c.Propagators)
}

// Has reports whether the named propagator is configured.
func (c *PropConfig) Has(name string) bool {
	return slices.Contains(c.Names(), name)
}

// IsEnabled returns true if the config enables tracing.
// Defaults to false if nil.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// LevelFilter returns the parsed initial level filter.
func (c *Config) LevelFilter() (LevelFilter, error) {
	if c == nil {
		return FilterInfo, nil
	}

	return ParseLevelFilter(c.Level)
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
