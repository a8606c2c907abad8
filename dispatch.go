package tracex

import (
	"context"
	"fmt"
)

// Dispatch is a cheaply copyable handle to exactly one collector.
//
// The zero Dispatch forwards to NoCollector. Copies share the collector;
// a scoped collector becomes unreachable, and is garbage collected, once no
// Dispatch refers to it. Dispatches promoted by SetGlobalDefault or built
// with NewStaticDispatch live for the rest of the process.
//
// Operations on a Dispatch never fail; failures are the collector's concern.
type Dispatch struct {
	b *box
}

// box holds the collector with its optional interfaces resolved once, so
// the forwarding paths are a nil check plus an interface call.
type box struct {
	collector  Collector
	registerer CallsiteRegisterer
	hinter     LevelHinter
	cloner     SpanCloner
	closer     SpanCloser
	current    CurrentSpanner
	static     bool
}

func newBox(c Collector, static bool) *box {
	b := &box{collector: c, static: static}
	b.registerer, _ = c.(CallsiteRegisterer)
	b.hinter, _ = c.(LevelHinter)
	b.cloner, _ = c.(SpanCloner)
	b.closer, _ = c.(SpanCloser)
	b.current, _ = c.(CurrentSpanner)

	return b
}

// New wraps c in a scoped dispatch and registers it with the callsite
// registry so that every callsite's interest is recomputed on next use.
// A nil collector yields the none dispatch.
func New(c Collector) Dispatch {
	if c == nil {
		return Dispatch{}
	}
	if _, ok := c.(NoCollector); ok {
		return Dispatch{}
	}
	d := Dispatch{b: newBox(c, false)}
	callsites.registerDispatch(d.b)

	return d
}

// NewStaticDispatch returns a global-kind dispatch for a collector that is
// meant to live for the whole process. The collector is kept in the
// immortal arena and never released.
func NewStaticDispatch(c Collector) Dispatch {
	if c == nil {
		return Dispatch{}
	}
	d := Dispatch{b: newBox(c, true)}
	immortal.keep(d.b)
	callsites.registerDispatch(d.b)

	return d
}

// None returns the dispatch that discards everything.
func None() Dispatch { return Dispatch{} }

// IsNone reports whether d forwards to NoCollector.
func (d Dispatch) IsNone() bool { return d.b == nil }

// IsStatic reports whether d refers to a process-lifetime collector.
func (d Dispatch) IsStatic() bool { return d.b != nil && (d.b.static || immortal.has(d.b)) }

// Collector returns the underlying collector.
func (d Dispatch) Collector() Collector {
	if d.b == nil {
		return NoCollector{}
	}

	return d.b.collector
}

// Same reports whether d and o refer to the same collector instance.
func (d Dispatch) Same(o Dispatch) bool { return d.b == o.b }

// RegisterCallsite asks the collector for its opinion about meta.
func (d Dispatch) RegisterCallsite(meta *Metadata) Interest {
	if d.b == nil {
		return InterestNever
	}
	if d.b.registerer != nil {
		return d.b.registerer.RegisterCallsite(meta)
	}
	if d.b.collector.Enabled(context.Background(), meta) {
		return InterestAlways
	}

	return InterestNever
}

// MaxLevelHint returns the most verbose level the collector will enable.
// A false result means the collector gave no hint.
func (d Dispatch) MaxLevelHint() (LevelFilter, bool) {
	if d.b == nil {
		return FilterOff, true
	}
	if d.b.hinter != nil {
		return d.b.hinter.MaxLevelHint()
	}

	return LevelFilter{}, false
}

// NewSpan records a new span and returns the collector's id for it.
func (d Dispatch) NewSpan(ctx context.Context, attrs *Attributes) SpanID {
	if d.b == nil {
		return NoneSpanID
	}

	return d.b.collector.NewSpan(ctx, attrs)
}

// Record attaches values to the span id.
func (d Dispatch) Record(ctx context.Context, id SpanID, values *Record) {
	if d.b != nil {
		d.b.collector.Record(ctx, id, values)
	}
}

// RecordFollowsFrom records a causal edge from follows to id.
func (d Dispatch) RecordFollowsFrom(ctx context.Context, id, follows SpanID) {
	if d.b != nil {
		d.b.collector.RecordFollowsFrom(ctx, id, follows)
	}
}

// Enabled reports whether the collector wants meta right now.
func (d Dispatch) Enabled(ctx context.Context, meta *Metadata) bool {
	if d.b == nil {
		return false
	}

	return d.b.collector.Enabled(ctx, meta)
}

// Event records ev.
func (d Dispatch) Event(ctx context.Context, ev *Event) {
	if d.b != nil {
		d.b.collector.Event(ctx, ev)
	}
}

// Enter notifies the collector that id was entered.
func (d Dispatch) Enter(ctx context.Context, id SpanID) {
	if d.b != nil {
		d.b.collector.Enter(ctx, id)
	}
}

// Exit notifies the collector that id was exited.
func (d Dispatch) Exit(ctx context.Context, id SpanID) {
	if d.b != nil {
		d.b.collector.Exit(ctx, id)
	}
}

// CloneSpan adds a reference to id and returns an id of the same logical
// span. id must have been returned by NewSpan on this same dispatch.
func (d Dispatch) CloneSpan(ctx context.Context, id SpanID) SpanID {
	if d.b == nil || d.b.cloner == nil {
		return id
	}

	return d.b.cloner.CloneSpan(ctx, id)
}

// TryClose drops one reference to id and reports whether it was the last.
// id must have been returned by NewSpan or CloneSpan on this same dispatch.
func (d Dispatch) TryClose(ctx context.Context, id SpanID) bool {
	if d.b == nil || d.b.closer == nil {
		return false
	}

	return d.b.closer.TryClose(ctx, id)
}

// DropSpan drops one reference to id.
//
// Deprecated: use TryClose.
func (d Dispatch) DropSpan(ctx context.Context, id SpanID) {
	_ = d.TryClose(ctx, id)
}

// CurrentSpan returns the collector's view of the caller's current span.
func (d Dispatch) CurrentSpan(ctx context.Context) Current {
	if d.b == nil || d.b.current == nil {
		return UnknownCurrent()
	}

	return d.b.current.CurrentSpan(ctx)
}

// String implements fmt.Stringer.
func (d Dispatch) String() string {
	if d.b == nil {
		return "Dispatch(none)"
	}

	return fmt.Sprintf("Dispatch(%T)", d.b.collector)
}

// Downcast returns the dispatch's collector as T.
func Downcast[T any](d Dispatch) (T, bool) {
	v, ok := d.Collector().(T)
	return v, ok
}
