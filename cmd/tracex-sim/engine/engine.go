// Package engine replays scenarios as span trees through tracex callsites.
package engine

import (
	"context"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/cmd/tracex-sim/scenario"
	"github.com/arloliu/tracex/otelbridge"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/sync/errgroup"
)

// Config holds engine configuration.
type Config struct {
	// Dispatch receives every span. The zero value uses the default
	// dispatch of the context passed to GenerateTrace.
	Dispatch tracex.Dispatch

	// Clock paces step durations. Defaults to the real clock.
	Clock clockz.Clock

	// Events enables the events of each step.
	Events bool

	// JitterPct varies every step duration by up to this percentage.
	JitterPct int

	// TimeScale multiplies every step duration. Zero runs without waiting.
	TimeScale float64
}

// Stats counts what an engine produced.
type Stats struct {
	Traces   uint64
	Steps    uint64
	Failures uint64
}

type siteKey struct {
	event  bool
	name   string
	target string
	level  tracex.Level
}

// Engine turns scenario steps into spans. Callsites are created once per
// distinct step and reused, so repeated traces hit the interest cache.
type Engine struct {
	cfg Config

	mu    sync.Mutex
	sites map[siteKey]*tracex.Callsite

	traces   atomic.Uint64
	steps    atomic.Uint64
	failures atomic.Uint64
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}

	return &Engine{cfg: cfg, sites: map[siteKey]*tracex.Callsite{}}
}

// Stats returns the counters accumulated so far.
func (e *Engine) Stats() Stats {
	return Stats{
		Traces:   e.traces.Load(),
		Steps:    e.steps.Load(),
		Failures: e.failures.Load(),
	}
}

// Callsites returns the number of callsites created so far.
func (e *Engine) Callsites() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.sites)
}

// GenerateTrace replays s once, starting from the scenario's baggage. It
// returns early with the context's error when ctx is cancelled.
func (e *Engine) GenerateTrace(ctx context.Context, s *scenario.Scenario) error {
	ctx, err := otelbridge.ContextWithBaggage(ctx, s.Baggage)
	if err != nil {
		return err
	}

	run := func(ctx context.Context) {
		root := &s.Root
		err = e.exec(ctx, root, e.spanSite(root).NewSpan(ctx, e.values(root)...))
	}
	if e.cfg.Dispatch.IsNone() {
		run(ctx)
	} else {
		tracex.WithDefault(ctx, e.cfg.Dispatch, run)
	}
	if err == nil {
		e.traces.Add(1)
	}

	return err
}

// Run replays s count times on up to workers goroutines and returns the
// number of completed traces.
func (e *Engine) Run(ctx context.Context, s *scenario.Scenario, count, workers int) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var done atomic.Int64
	for range count {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.GenerateTrace(gctx, s); err != nil {
				return err
			}
			done.Add(1)

			return nil
		})
	}
	err := g.Wait()

	return int(done.Load()), err
}

// exec runs step inside span and closes span afterwards.
func (e *Engine) exec(ctx context.Context, step *scenario.Step, span *tracex.Span) error {
	defer span.Close(ctx)
	e.steps.Add(1)

	var err error
	span.InScope(ctx, func(ctx context.Context) {
		if e.cfg.Events {
			for i := range step.Events {
				ev := &step.Events[i]
				e.eventSite(step, ev).Event(ctx, e.eventValues(ev)...)
			}
		}

		if step.Parallel {
			err = e.fanOut(ctx, step, span)
		} else {
			for i := range step.Children {
				child := &step.Children[i]
				if err = e.exec(ctx, child, e.spanSite(child).NewSpan(ctx, e.values(child)...)); err != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}

		if step.ErrorRate > 0 && rand.Float64() < step.ErrorRate { //nolint:gosec // weak rand is fine for simulation
			e.failures.Add(1)
			span.Record(ctx, attribute.String(otelbridge.ErrorKey, step.ErrorStatus))
		}
		err = e.sleep(ctx, step.Duration.AsDuration())
	})

	return err
}

// fanOut opens all children up front with parent as explicit parent, links
// each to its previous sibling, and runs them concurrently.
func (e *Engine) fanOut(ctx context.Context, step *scenario.Step, parent *tracex.Span) error {
	spans := make([]*tracex.Span, len(step.Children))
	for i := range step.Children {
		child := &step.Children[i]
		spans[i] = e.spanSite(child).NewChildSpan(ctx, parent, e.values(child)...)
		if i > 0 {
			spans[i].FollowsFrom(ctx, spans[i-1])
		}
	}

	var g errgroup.Group
	for i := range step.Children {
		g.Go(func() error {
			return e.exec(ctx, &step.Children[i], spans[i])
		})
	}

	return g.Wait()
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	d = e.applyJitter(time.Duration(float64(d) * e.cfg.TimeScale))
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.cfg.Clock.After(d):
		return nil
	}
}

// applyJitter adds random timing variation to a duration.
func (e *Engine) applyJitter(d time.Duration) time.Duration {
	if e.cfg.JitterPct <= 0 {
		return d
	}
	jitter := float64(d) * float64(e.cfg.JitterPct) / 100.0
	offset := (rand.Float64() * 2 * jitter) - jitter //nolint:gosec // weak rand is fine for jitter

	return d + time.Duration(offset)
}

func (e *Engine) spanSite(step *scenario.Step) *tracex.Callsite {
	key := siteKey{name: step.Name, target: step.Service, level: toLevel(step.Level)}
	fields := append(sortedKeys(step.Attributes), string(semconv.ServiceNameKey), otelbridge.KindKey, otelbridge.ErrorKey)

	return e.site(key, fields)
}

func (e *Engine) eventSite(step *scenario.Step, ev *scenario.Event) *tracex.Callsite {
	key := siteKey{event: true, name: ev.Message, target: step.Service, level: toLevel(ev.Level)}
	fields := append([]string{otelbridge.MessageKey}, sortedKeys(ev.Attributes)...)

	return e.site(key, fields)
}

func (e *Engine) site(key siteKey, fields []string) *tracex.Callsite {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cs, ok := e.sites[key]; ok {
		return cs
	}
	var cs *tracex.Callsite
	if key.event {
		cs = tracex.NewEventCallsite(key.name, key.target, key.level, fields...)
	} else {
		cs = tracex.NewSpanCallsite(key.name, key.target, key.level, fields...)
	}
	e.sites[key] = cs

	return cs
}

func (e *Engine) values(step *scenario.Step) []attribute.KeyValue {
	values := parseAttributes(step.Attributes)
	values = append(values,
		semconv.ServiceNameKey.String(step.Service),
		attribute.String(otelbridge.KindKey, string(step.Kind.Normalize())),
	)

	return values
}

func (e *Engine) eventValues(ev *scenario.Event) []attribute.KeyValue {
	return append([]attribute.KeyValue{attribute.String(otelbridge.MessageKey, ev.Message)}, parseAttributes(ev.Attributes)...)
}

func toLevel(s string) tracex.Level {
	switch strings.ToLower(s) {
	case "trace":
		return tracex.LevelTrace
	case "debug":
		return tracex.LevelDebug
	case "warn", "warning":
		return tracex.LevelWarn
	case "error":
		return tracex.LevelError
	default:
		return tracex.LevelInfo
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}

// parseAttributes converts a string map to attributes in key order,
// inferring int, float and bool values.
func parseAttributes(attrs map[string]string) []attribute.KeyValue {
	result := make([]attribute.KeyValue, 0, len(attrs)+2)
	for _, k := range sortedKeys(attrs) {
		v := attrs[k]
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			result = append(result, attribute.Int64(k, i))
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			result = append(result, attribute.Float64(k, f))
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			result = append(result, attribute.Bool(k, b))
			continue
		}
		result = append(result, attribute.String(k, v))
	}

	return result
}
