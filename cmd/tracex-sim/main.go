// Package main provides the tracex-sim CLI tool, which replays scenario span
// trees through a tracex collector stack.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/cmd/tracex-sim/engine"
	"github.com/arloliu/tracex/cmd/tracex-sim/scenario"
	"github.com/arloliu/tracex/recorder"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	mode := os.Args[1]
	switch mode {
	case "quick":
		runMode(os.Args[2:], "quick", executeQuick)
	case "run":
		runMode(os.Args[2:], "run", executeContinuous)
	case "list":
		listScenarios(os.Stdout)
	case "-h", "--help", "help":
		printUsage()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Unknown mode: %s\n", mode)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tracex-sim - replays span trees through a tracex collector stack

Usage:
  tracex-sim <mode> [flags]

Modes:
  quick   Replay a scenario a fixed number of times
  run     Replay a scenario at a steady rate, flipping the level filter
  list    List available scenarios

Common Flags:
  --config        tracex config file (YAML or JSON)
  --collector     otel, recorder or registry (default: otel)
  --level         Initial level filter (default: info)
  --service-name  Override service name
  --scenario      Scenario name (default: payment)
  --scenario-file Custom YAML scenario file
  --events        Emit step events (default: true)
  --log-format    text or json (default: text)
  --workers       Concurrent traces (default: 4)
  --time-scale    Multiplier for step durations, 0 disables waiting (default: 1)
  --jitter        Timing variation percentage (default: 20)

Quick Mode Flags:
  --count         Number of traces (default: 10)

Continuous Mode Flags:
  --duration      Total simulation time (default: 1m)
  --rate          Traces per second (default: 1)
  --flip-every    Interval between level filter reloads, 0 disables (default: 10s)
  --flip-level    Level filter alternated with the initial one (default: debug)

Environment Variables:
  TRACEX_CONFIG, TRACEX_COLLECTOR, TRACEX_LEVEL, OTEL_SERVICE_NAME,
  TRACEX_SIM_SCENARIO, TRACEX_SIM_SCENARIO_FILE, TRACEX_SIM_WORKERS,
  TRACEX_SIM_LOG_FORMAT

Examples:
  tracex-sim quick --scenario payment --count 5 --time-scale 0
  tracex-sim run --scenario edge-iot --duration 5m --rate 10 --flip-every 30s
  tracex-sim list`)
}

func runMode(args []string, name string, execute func(ctx context.Context, cfg *Config, logger *slog.Logger) error) {
	cfg := newConfig()
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg.bindCommonFlags(fs)
	if name == "quick" {
		fs.IntVar(&cfg.Count, "count", cfg.Count, "Number of traces")
	} else {
		fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Total simulation time")
		fs.Float64Var(&cfg.Rate, "rate", cfg.Rate, "Traces per second")
		fs.DurationVar(&cfg.FlipEvery, "flip-every", cfg.FlipEvery, "Interval between level filter reloads")
		fs.StringVar(&cfg.FlipLevel, "flip-level", cfg.FlipLevel, "Level filter alternated with the initial one")
	}

	// Environment first so explicit flags win.
	cfg.applyEnvOverrides()
	if err := fs.Parse(args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return
	}

	logger := newLogger(os.Stderr, cfg.LogFormat)
	tracex.SetLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, cfg, logger); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug - 4}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func listScenarios(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Available scenarios:")
	for _, s := range scenario.List() {
		_, _ = fmt.Fprintf(w, "\n  %-13s %s\n", s.Name, s.Description)
		_, _ = fmt.Fprintf(w, "  %-13s %d spans across %d services\n", "", s.Spans(), len(s.Services()))
	}
}

// setup loads the scenario, builds the collector stack and installs it as
// the global default.
func setup(ctx context.Context, cfg *Config, logger *slog.Logger) (*scenario.Scenario, *stack, error) {
	s, err := loadScenario(cfg)
	if err != nil {
		return nil, nil, err
	}
	tc, err := cfg.telemetry()
	if err != nil {
		return nil, nil, err
	}
	st, err := buildStack(ctx, tc, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := tracex.SetGlobalDefault(st.dispatch); err != nil {
		_ = st.shutdown(ctx)
		return nil, nil, err
	}
	logger.Info("collector installed", "collector", tc.Collector, "level", tc.Level, "scenario", s.Name)

	return s, st, nil
}

func newEngine(cfg *Config) *engine.Engine {
	return engine.New(engine.Config{
		Events:    cfg.EventsEnabled(),
		JitterPct: cfg.Jitter,
		TimeScale: cfg.TimeScale,
	})
}

// executeQuick replays the scenario cfg.Count times.
func executeQuick(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	s, st, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	eng := newEngine(cfg)

	n, err := eng.Run(ctx, s, cfg.Count, cfg.Workers)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	report(logger, eng, st)

	if n < cfg.Count {
		logger.Warn("interrupted", "traces", n)
	}

	return st.shutdown(context.Background())
}

// executeContinuous replays the scenario at cfg.Rate until cfg.Duration
// elapses, alternating the level filter every cfg.FlipEvery.
func executeContinuous(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.Rate <= 0 {
		return fmt.Errorf("rate must be positive: %v", cfg.Rate)
	}
	flip, err := tracex.ParseLevelFilter(cfg.FlipLevel)
	if err != nil {
		return err
	}

	s, st, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	eng := newEngine(cfg)

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.Rate))
	defer ticker.Stop()

	var flips <-chan time.Time
	if cfg.FlipEvery > 0 {
		flipTicker := time.NewTicker(cfg.FlipEvery)
		defer flipTicker.Stop()
		flips = flipTicker.C
	}

	var g errgroup.Group
	g.SetLimit(max(cfg.Workers, 1))
	skipped := 0

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-flips:
			prev, err := st.setLevel(flip)
			if err != nil {
				logger.Error("level reload failed", "error", err)
				continue
			}
			logger.Info("level filter reloaded", "from", prev, "to", flip, "max_level", tracex.MaxLevel())
			flip = prev
		case <-ticker.C:
			ok := g.TryGo(func() error {
				if err := eng.GenerateTrace(ctx, s); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					logger.Warn("trace failed", "error", err)
				}

				return nil
			})
			if !ok {
				skipped++
			}
		}
	}
	_ = g.Wait()

	report(logger, eng, st)
	if skipped > 0 {
		logger.Warn("workers saturated", "skipped", skipped)
	}

	return st.shutdown(context.Background())
}

func report(logger *slog.Logger, eng *engine.Engine, st *stack) {
	stats := eng.Stats()
	attrs := []any{
		"traces", stats.Traces,
		"steps", stats.Steps,
		"failures", stats.Failures,
		"callsites", eng.Callsites(),
	}
	if st.recorder != nil {
		counts := map[recorder.Op]int{}
		for _, e := range st.recorder.Entries() {
			counts[e.Op]++
		}
		attrs = append(attrs,
			"recorded_spans", counts[recorder.OpNewSpan],
			"recorded_events", counts[recorder.OpEvent],
			"dropped", st.recorder.Dropped(),
			"open_spans", st.recorder.OpenSpans(),
		)
	}
	logger.Info("simulation complete", attrs...)
}

func loadScenario(cfg *Config) (*scenario.Scenario, error) {
	if cfg.ScenarioFile != "" {
		return scenario.LoadFromFile(cfg.ScenarioFile)
	}

	s, ok := scenario.Get(cfg.Scenario)
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s (use 'tracex-sim list' to see available scenarios)", cfg.Scenario)
	}

	return s, nil
}
