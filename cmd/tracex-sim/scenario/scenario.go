// Package scenario describes the span trees tracex-sim replays.
//
// A Scenario is a tree of Steps. Every Step becomes one span opened through a
// callsite named after the step; its Events become events inside that span.
// Scenarios are either built in (see Get and List) or loaded from YAML.
package scenario

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/baggage"
)

// Scenario is a named span tree.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Baggage is the W3C baggage every trace of the scenario starts with.
	Baggage map[string]string `yaml:"baggage,omitempty"`

	Root Step `yaml:"root"`
}

// Step is one span of a scenario and the work below it.
type Step struct {
	Name       string            `yaml:"name"`
	Service    string            `yaml:"service"`
	Kind       Kind              `yaml:"kind"`
	Level      string            `yaml:"level,omitempty"`
	Duration   Duration          `yaml:"duration"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Events     []Event           `yaml:"events,omitempty"`
	Children   []Step            `yaml:"children,omitempty"`

	// Parallel runs the children on their own goroutines. Their spans still
	// name this step as parent and record a follows-from link to the
	// previous sibling.
	Parallel bool `yaml:"parallel,omitempty"`

	// ErrorRate is the probability (0.0-1.0) that the step fails with ErrorStatus.
	ErrorRate   float64 `yaml:"errorRate,omitempty"`
	ErrorStatus string  `yaml:"errorStatus,omitempty"`
}

// Event is an event emitted inside the span of its step.
type Event struct {
	Level      string            `yaml:"level"`
	Message    string            `yaml:"message"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// Kind is the role a span plays in a request.
type Kind string

const (
	KindServer   Kind = "server"
	KindClient   Kind = "client"
	KindProducer Kind = "producer"
	KindConsumer Kind = "consumer"
	KindInternal Kind = "internal"
)

// Normalize returns k in lower case with "" mapped to KindInternal.
func (k Kind) Normalize() Kind {
	if k == "" {
		return KindInternal
	}

	return Kind(strings.ToLower(string(k)))
}

// Valid reports whether k names a known kind.
func (k Kind) Valid() bool {
	switch k.Normalize() {
	case KindServer, KindClient, KindProducer, KindConsumer, KindInternal:
		return true
	default:
		return false
	}
}

// Duration is a time.Duration written as a string ("15ms") in YAML.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)

	return nil
}

// AsDuration converts d to time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Walk calls fn for s and every step below it, depth first. depth is 0 for s.
func (s *Step) Walk(fn func(step *Step, depth int)) {
	s.walk(fn, 0)
}

func (s *Step) walk(fn func(step *Step, depth int), depth int) {
	fn(s, depth)
	for i := range s.Children {
		s.Children[i].walk(fn, depth+1)
	}
}

// Spans returns the number of spans one run of the scenario opens.
func (s *Scenario) Spans() int {
	n := 0
	s.Root.Walk(func(*Step, int) { n++ })

	return n
}

// Services returns the sorted, distinct services of the scenario.
func (s *Scenario) Services() []string {
	set := map[string]struct{}{}
	s.Root.Walk(func(step *Step, _ int) {
		if step.Service != "" {
			set[step.Service] = struct{}{}
		}
	})

	return slices.Sorted(maps.Keys(set))
}

// Validate checks the baggage members and that every step is named, has a
// known kind and level, and has an error rate within [0, 1].
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	for _, key := range slices.Sorted(maps.Keys(s.Baggage)) {
		if _, err := baggage.NewMember(key, s.Baggage[key]); err != nil {
			return fmt.Errorf("scenario %s: baggage %q: %w", s.Name, key, err)
		}
	}

	var err error
	s.Root.Walk(func(step *Step, depth int) {
		if err != nil {
			return
		}
		switch {
		case step.Name == "":
			err = fmt.Errorf("scenario %s: step at depth %d has no name", s.Name, depth)
		case !step.Kind.Valid():
			err = fmt.Errorf("scenario %s: step %q: unknown kind %q", s.Name, step.Name, step.Kind)
		case step.ErrorRate < 0 || step.ErrorRate > 1:
			err = fmt.Errorf("scenario %s: step %q: error rate %v out of range", s.Name, step.Name, step.ErrorRate)
		case !validLevel(step.Level):
			err = fmt.Errorf("scenario %s: step %q: unknown level %q", s.Name, step.Name, step.Level)
		}
		for _, ev := range step.Events {
			if err == nil && !validLevel(ev.Level) {
				err = fmt.Errorf("scenario %s: step %q: event %q: unknown level %q", s.Name, step.Name, ev.Message, ev.Level)
			}
		}
	})

	return err
}

func validLevel(s string) bool {
	switch strings.ToLower(s) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

var (
	mu       sync.RWMutex
	registry = map[string]*Scenario{}
)

func init() {
	Register(Payment())
	Register(EdgeIoT())
	Register(Ecommerce())
	Register(HealthCheck())
}

// Register makes s available through Get. A later scenario with the same
// name replaces the earlier one.
func Register(s *Scenario) {
	mu.Lock()
	defer mu.Unlock()
	registry[s.Name] = s
}

// Unregister removes the named scenario.
func Unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(registry, name)
}

// Get returns the named scenario.
func Get(name string) (*Scenario, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]

	return s, ok
}

// List returns the registered scenarios sorted by name.
func List() []*Scenario {
	mu.RLock()
	defer mu.RUnlock()
	names := slices.Sorted(maps.Keys(registry))
	out := make([]*Scenario, 0, len(names))
	for _, name := range names {
		out = append(out, registry[name])
	}

	return out
}
