package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/arloliu/fuda"
	"github.com/arloliu/tracex"
)

// Config holds all CLI configuration.
// Uses fuda struct tags for defaults and env var binding.
type Config struct {
	// ConfigFile points at a tracex.Config file (YAML or JSON).
	ConfigFile string `yaml:"configFile" env:"TRACEX_CONFIG"`

	// Overrides of the loaded tracex.Config; empty keeps the file value.
	Collector   string `yaml:"collector"`
	Level       string `yaml:"level"`
	ServiceName string `yaml:"serviceName"`

	// Scenario settings
	Scenario     string `yaml:"scenario" default:"payment" env:"TRACEX_SIM_SCENARIO"`
	ScenarioFile string `yaml:"scenarioFile" env:"TRACEX_SIM_SCENARIO_FILE"`
	Events       *bool  `yaml:"events" default:"true"`

	// Output
	LogFormat string `yaml:"logFormat" default:"text" env:"TRACEX_SIM_LOG_FORMAT"`

	// Pacing
	Workers   int     `yaml:"workers" default:"4" env:"TRACEX_SIM_WORKERS"`
	TimeScale float64 `yaml:"timeScale" default:"1"`
	Jitter    int     `yaml:"jitter" default:"20"`

	// Quick mode
	Count int `yaml:"count" default:"10"`

	// Continuous mode
	Duration  time.Duration `yaml:"duration" default:"1m"`
	Rate      float64       `yaml:"rate" default:"1"`
	FlipEvery time.Duration `yaml:"flipEvery" default:"10s"`
	FlipLevel string        `yaml:"flipLevel" default:"debug"`
}

// EventsEnabled returns the events value, defaulting to true if nil.
func (c *Config) EventsEnabled() bool {
	return c.Events == nil || *c.Events
}

func newConfig() *Config {
	cfg := &Config{}
	_ = fuda.SetDefaults(cfg)

	return cfg
}

func (c *Config) bindCommonFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "tracex config file")
	fs.StringVar(&c.Collector, "collector", c.Collector, "Collector stack: otel, recorder or registry")
	fs.StringVar(&c.Level, "level", c.Level, "Initial level filter")
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Override service name")
	fs.StringVar(&c.Scenario, "scenario", c.Scenario, "Scenario name")
	fs.StringVar(&c.ScenarioFile, "scenario-file", c.ScenarioFile, "Custom YAML scenario file")
	fs.Func("events", "Emit step events (default: true)", func(s string) error {
		val := s == "true" || s == "1"
		c.Events = &val

		return nil
	})
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: text or json")
	fs.IntVar(&c.Workers, "workers", c.Workers, "Concurrent traces")
	fs.Float64Var(&c.TimeScale, "time-scale", c.TimeScale, "Multiplier for step durations (0 disables waiting)")
	fs.IntVar(&c.Jitter, "jitter", c.Jitter, "Timing variation percentage")
}

func (c *Config) applyEnvOverrides() {
	// fuda.LoadEnv reads env vars based on struct tags
	_ = fuda.LoadEnv(c)
}

// telemetry loads the tracex.Config named by ConfigFile, or the defaults
// plus environment when there is none, and applies the flag overrides.
// The result is always enabled.
func (c *Config) telemetry() (*tracex.Config, error) {
	var (
		tc  *tracex.Config
		err error
	)
	if c.ConfigFile != "" {
		tc, err = tracex.LoadConfig(c.ConfigFile)
	} else {
		tc, err = tracex.ConfigFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracex config: %w", err)
	}

	enabled := true
	tc.Enabled = &enabled
	if c.Collector != "" {
		tc.Collector = c.Collector
	}
	if c.Level != "" {
		tc.Level = c.Level
	}
	if c.ServiceName != "" {
		tc.ServiceName = c.ServiceName
	}
	if tc.ServiceName == "" {
		tc.ServiceName = "tracex-sim"
	}

	if _, err := tc.LevelFilter(); err != nil {
		return nil, err
	}

	return tc, nil
}
