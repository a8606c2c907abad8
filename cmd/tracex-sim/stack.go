package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/filter"
	"github.com/arloliu/tracex/layer"
	"github.com/arloliu/tracex/logbridge"
	"github.com/arloliu/tracex/otelbridge"
	"github.com/arloliu/tracex/recorder"
	"github.com/arloliu/tracex/registry"
	"github.com/arloliu/tracex/reload"
)

// stack is the collector the simulator installs, plus the handles it
// keeps to steer and inspect it.
type stack struct {
	dispatch  tracex.Dispatch
	level     *reload.Handle[*filter.LevelFilter]
	recorder  *recorder.Recorder
	providers *otelbridge.Providers
}

// buildStack assembles a collector for cfg:
//
//	reloadable level filter
//	  -> slog event layer (registry and recorder only)
//	    -> otelbridge | recorder | registry
func buildStack(ctx context.Context, cfg *tracex.Config, logger *slog.Logger) (*stack, error) {
	lf, err := cfg.LevelFilter()
	if err != nil {
		return nil, err
	}

	st := &stack{}
	var inner tracex.Collector
	switch cfg.Collector {
	case "otel", "":
		p, err := otelbridge.NewProviders(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create providers: %w", err)
		}
		st.providers = p
		inner = otelbridge.New(append(p.Options(), otelbridge.WithBaggageAttributes())...)
	case "recorder":
		st.recorder = recorder.New(recorder.WithCapacity(cfg.RecorderCapacity))
		inner = layer.With(st.recorder, logbridge.NewLayer(logger))
	case "registry":
		inner = layer.With(registry.New(), logbridge.NewLayer(logger))
	default:
		return nil, fmt.Errorf("unknown collector: %s", cfg.Collector)
	}

	lvl, handle := reload.New(filter.Level(lf))
	st.level = handle
	st.dispatch = tracex.New(layer.With(inner, lvl))

	return st, nil
}

// setLevel replaces the level filter and returns the previous one.
func (s *stack) setLevel(next tracex.LevelFilter) (tracex.LevelFilter, error) {
	prev, err := reload.Current(s.level, func(l *filter.LevelFilter) tracex.LevelFilter { return l.Filter() })
	if err != nil {
		return tracex.LevelFilter{}, err
	}
	if err := s.level.Reload(filter.Level(next)); err != nil {
		return tracex.LevelFilter{}, err
	}

	return prev, nil
}

func (s *stack) shutdown(ctx context.Context) error {
	var errs []error
	if s.providers != nil {
		errs = append(errs, s.providers.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
