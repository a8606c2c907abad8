package tracex

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// resetDispatchState clears the global slot and the callsite registry so
// tests that count filter calls start from a known set of dispatches.
func resetDispatchState(t *testing.T) {
	t.Helper()
	reset := func() {
		global.Reset()
		exists.Store(false)
		callsites.mu.Lock()
		callsites.dispatches = nil
		callsites.mu.Unlock()
		callsites.rebuild()
	}
	reset()
	t.Cleanup(reset)
}

// testCollector counts calls and reference-counts span ids.
type testCollector struct {
	enabled func(meta *Metadata) bool

	enabledCalls atomic.Int64
	events       atomic.Int64
	newSpans     atomic.Int64
	enters       atomic.Int64
	exits        atomic.Int64
	records      atomic.Int64
	follows      atomic.Int64

	onEvent   func(ctx context.Context)
	onNewSpan func(ctx context.Context)
	onEnter   func(ctx context.Context)
	onExit    func(ctx context.Context)
	onClose   func(ctx context.Context)

	nextID  atomic.Uint64
	mu      sync.Mutex
	refs    map[SpanID]int
	parents []Parent
}

func newTestCollector() *testCollector {
	return &testCollector{refs: make(map[SpanID]int)}
}

func (c *testCollector) Enabled(_ context.Context, meta *Metadata) bool {
	c.enabledCalls.Add(1)
	if c.enabled == nil {
		return true
	}

	return c.enabled(meta)
}

func (c *testCollector) NewSpan(ctx context.Context, attrs *Attributes) SpanID {
	c.newSpans.Add(1)
	if c.onNewSpan != nil {
		c.onNewSpan(ctx)
	}
	id := SpanID(c.nextID.Add(1))
	c.mu.Lock()
	c.refs[id] = 1
	c.parents = append(c.parents, attrs.Parent)
	c.mu.Unlock()

	return id
}

func (c *testCollector) Record(context.Context, SpanID, *Record) { c.records.Add(1) }

func (c *testCollector) RecordFollowsFrom(context.Context, SpanID, SpanID) { c.follows.Add(1) }

func (c *testCollector) Event(ctx context.Context, _ *Event) {
	c.events.Add(1)
	if c.onEvent != nil {
		c.onEvent(ctx)
	}
}

func (c *testCollector) Enter(ctx context.Context, _ SpanID) {
	c.enters.Add(1)
	if c.onEnter != nil {
		c.onEnter(ctx)
	}
}

func (c *testCollector) Exit(ctx context.Context, _ SpanID) {
	c.exits.Add(1)
	if c.onExit != nil {
		c.onExit(ctx)
	}
}

func (c *testCollector) CloneSpan(_ context.Context, id SpanID) SpanID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[id]++

	return id
}

func (c *testCollector) TryClose(ctx context.Context, id SpanID) bool {
	if c.onClose != nil {
		c.onClose(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[id]--
	if c.refs[id] == 0 {
		delete(c.refs, id)
		return true
	}

	return false
}

func (c *testCollector) lastParent() Parent {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.parents[len(c.parents)-1]
}

func (c *testCollector) liveSpans() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.refs)
}

// interestCollector adds a static opinion and a level hint.
type interestCollector struct {
	*testCollector
	interest func(meta *Metadata) Interest
	hint     *LevelFilter
}

func (c *interestCollector) RegisterCallsite(meta *Metadata) Interest {
	return c.interest(meta)
}

func (c *interestCollector) MaxLevelHint() (LevelFilter, bool) {
	if c.hint == nil {
		return LevelFilter{}, false
	}

	return *c.hint, true
}

// minimalCollector implements only the required interface.
type minimalCollector struct{}

func (minimalCollector) Enabled(context.Context, *Metadata) bool         { return true }
func (minimalCollector) NewSpan(context.Context, *Attributes) SpanID     { return 42 }
func (minimalCollector) Record(context.Context, SpanID, *Record)          {}
func (minimalCollector) RecordFollowsFrom(context.Context, SpanID, SpanID) {}
func (minimalCollector) Event(context.Context, *Event)                    {}
func (minimalCollector) Enter(context.Context, SpanID)                    {}
func (minimalCollector) Exit(context.Context, SpanID)                     {}
