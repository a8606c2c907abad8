package tracex

import (
	"fmt"

	"github.com/arloliu/fuda"
)

// LoadConfig loads Config from a YAML or JSON file. Environment variables
// override file values; struct defaults fill the rest and the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	return load(func(cfg *Config) error { return fuda.LoadFile(path, cfg) })
}

// ParseConfig is LoadConfig for in-memory YAML or JSON (auto-detected).
func ParseConfig(data []byte) (*Config, error) {
	return load(func(cfg *Config) error { return fuda.LoadBytes(data, cfg) })
}

// ConfigFromEnv builds a Config from struct defaults and environment
// variables alone, for processes without a config file.
func ConfigFromEnv() (*Config, error) {
	return load(func(cfg *Config) error {
		if err := fuda.SetDefaults(cfg); err != nil {
			return err
		}

		return fuda.LoadEnv(cfg)
	})
}

// load fills a Config and checks its level, so every path reports a bad
// level as ErrInvalidLevel.
func load(fill func(cfg *Config) error) (*Config, error) {
	var cfg Config
	if err := fill(&cfg); err != nil {
		return nil, fmt.Errorf("tracex: load config: %w", err)
	}
	if _, err := cfg.LevelFilter(); err != nil {
		return nil, fmt.Errorf("tracex: load config: %w", err)
	}

	return &cfg, nil
}
