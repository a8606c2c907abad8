package tracex

import (
	"context"
)

// Collector receives span and event notifications from instrumented code.
//
// Every method receives the caller's context. When a method is invoked
// through the current default dispatch, that context is marked as entered:
// spans or events created with it while the method runs go to the none
// collector instead of recursing into the same collector.
type Collector interface {
	// Enabled reports whether a span or event described by meta should be
	// recorded right now.
	Enabled(ctx context.Context, meta *Metadata) bool
	// NewSpan records a new span and returns its id.
	NewSpan(ctx context.Context, attrs *Attributes) SpanID
	// Record attaches values to an existing span.
	Record(ctx context.Context, id SpanID, values *Record)
	// RecordFollowsFrom records that span id is causally after follows.
	RecordFollowsFrom(ctx context.Context, id SpanID, follows SpanID)
	// Event records an event.
	Event(ctx context.Context, ev *Event)
	// Enter marks the span as entered by the caller.
	Enter(ctx context.Context, id SpanID)
	// Exit marks the span as exited by the caller.
	Exit(ctx context.Context, id SpanID)
}

// CallsiteRegisterer is implemented by collectors that give a static opinion
// about callsites when they are registered. Collectors without it are
// registered as InterestAlways when Enabled accepts the metadata and
// InterestNever otherwise.
type CallsiteRegisterer interface {
	RegisterCallsite(meta *Metadata) Interest
}

// LevelHinter is implemented by collectors that know the most verbose level
// they will ever enable. A false result means unknown.
type LevelHinter interface {
	MaxLevelHint() (LevelFilter, bool)
}

// SpanCloner is implemented by collectors that reference-count span ids.
// Without it, CloneSpan returns the id unchanged.
type SpanCloner interface {
	CloneSpan(ctx context.Context, id SpanID) SpanID
}

// SpanCloser is implemented by collectors that reference-count span ids.
// TryClose drops one reference and reports whether it was the last one.
// Without it, TryClose always reports false.
type SpanCloser interface {
	TryClose(ctx context.Context, id SpanID) bool
}

// CurrentSpanner is implemented by collectors that track the caller's
// current span.
type CurrentSpanner interface {
	CurrentSpan(ctx context.Context) Current
}

// NoCollector discards everything. It backs the zero Dispatch.
type NoCollector struct{}

// RegisterCallsite always returns InterestNever.
func (NoCollector) RegisterCallsite(*Metadata) Interest { return InterestNever }

// MaxLevelHint reports that nothing is enabled.
func (NoCollector) MaxLevelHint() (LevelFilter, bool) { return FilterOff, true }

// Enabled always returns false.
func (NoCollector) Enabled(context.Context, *Metadata) bool { return false }

// NewSpan returns NoneSpanID.
func (NoCollector) NewSpan(context.Context, *Attributes) SpanID { return NoneSpanID }

func (NoCollector) Record(context.Context, SpanID, *Record)          {}
func (NoCollector) RecordFollowsFrom(context.Context, SpanID, SpanID) {}
func (NoCollector) Event(context.Context, *Event)                    {}
func (NoCollector) Enter(context.Context, SpanID)                    {}
func (NoCollector) Exit(context.Context, SpanID)                     {}

// CurrentSpan returns an unknown current span.
func (NoCollector) CurrentSpan(context.Context) Current { return UnknownCurrent() }
