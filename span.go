package tracex

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
)

// Span is a handle to one reference of a span held by a collector.
//
// A Span remembers the dispatch that created it, so clone and close always
// reach the collector that minted the id. Each handle owns exactly one
// reference: Clone returns a new handle owning a new reference, and Close
// releases the handle's reference once.
//
// A disabled Span (nobody was interested) is a valid no-op handle.
type Span struct {
	dispatch Dispatch
	id       SpanID
	meta     *Metadata
	closed   atomic.Bool
}

type spanKey struct{}

// Disabled returns a span handle that records nothing.
func Disabled() *Span { return &Span{} }

// NewSpan creates a span at cs with a contextual parent. The span is
// disabled when the callsite is not enabled for ctx.
func (cs *Callsite) NewSpan(ctx context.Context, values ...attribute.KeyValue) *Span {
	return cs.newSpan(ctx, ContextualParent(), values)
}

// NewRootSpan creates a span at cs without a parent.
func (cs *Callsite) NewRootSpan(ctx context.Context, values ...attribute.KeyValue) *Span {
	return cs.newSpan(ctx, RootParent(), values)
}

// NewChildSpan creates a span at cs whose parent is parent. A disabled
// parent yields a contextual parent.
func (cs *Callsite) NewChildSpan(ctx context.Context, parent *Span, values ...attribute.KeyValue) *Span {
	p := ContextualParent()
	if id, ok := parent.ID(); ok {
		p = ExplicitParent(id)
	}

	return cs.newSpan(ctx, p, values)
}

func (cs *Callsite) newSpan(ctx context.Context, parent Parent, values []attribute.KeyValue) *Span {
	if !LevelEnabled(cs.meta.Level) {
		return Disabled()
	}
	interest := cs.Interest()
	if interest.IsNever() {
		return Disabled()
	}

	span := Disabled()
	GetDefault(ctx, func(ctx context.Context, d Dispatch) {
		if d.IsNone() {
			return
		}
		if !interest.IsAlways() && !d.Enabled(ctx, &cs.meta) {
			return
		}
		attrs := &Attributes{Metadata: &cs.meta, Values: values, Parent: parent}
		span = &Span{dispatch: d, id: d.NewSpan(ctx, attrs), meta: &cs.meta}
	})

	return span
}

// ID returns the span id, or false for a disabled span.
func (s *Span) ID() (SpanID, bool) {
	if s == nil || s.dispatch.IsNone() {
		return 0, false
	}

	return s.id, true
}

// Metadata returns the span's metadata, or nil for a disabled span.
func (s *Span) Metadata() *Metadata {
	if s == nil {
		return nil
	}

	return s.meta
}

// Dispatch returns the dispatch that created the span.
func (s *Span) Dispatch() Dispatch {
	if s == nil {
		return Dispatch{}
	}

	return s.dispatch
}

// IsDisabled reports whether the span records nothing.
func (s *Span) IsDisabled() bool {
	return s == nil || s.dispatch.IsNone()
}

// Enter notifies the collector that the span was entered and returns a
// context in which the span is current, plus a function that exits it.
//
// Like GetDefault, every Span method hands the collector an entered
// context; the context returned here is not entered.
func (s *Span) Enter(ctx context.Context) (context.Context, func()) {
	if s.IsDisabled() {
		return ctx, func() {}
	}
	ctx = context.WithValue(ctx, spanKey{}, s)
	inner := markEntered(ctx)
	s.dispatch.Enter(inner, s.id)

	return ctx, func() { s.dispatch.Exit(inner, s.id) }
}

// InScope runs fn inside the span.
func (s *Span) InScope(ctx context.Context, fn func(ctx context.Context)) {
	ctx, exit := s.Enter(ctx)
	defer exit()

	fn(ctx)
}

// Record attaches values to the span.
func (s *Span) Record(ctx context.Context, values ...attribute.KeyValue) {
	if s.IsDisabled() || len(values) == 0 {
		return
	}
	s.dispatch.Record(markEntered(ctx), s.id, &Record{Values: values})
}

// FollowsFrom records that s is causally after other. Both spans must come
// from the same dispatch; otherwise nothing is recorded.
func (s *Span) FollowsFrom(ctx context.Context, other *Span) {
	if s.IsDisabled() || other.IsDisabled() || !s.dispatch.Same(other.dispatch) {
		return
	}
	s.dispatch.RecordFollowsFrom(markEntered(ctx), s.id, other.id)
}

// Clone returns a new handle owning a new reference to the same span.
func (s *Span) Clone(ctx context.Context) *Span {
	if s.IsDisabled() {
		return Disabled()
	}

	return &Span{dispatch: s.dispatch, id: s.dispatch.CloneSpan(markEntered(ctx), s.id), meta: s.meta}
}

// Close releases this handle's reference and reports whether it was the
// last reference to the span. Closing a handle twice is a no-op that
// returns false.
func (s *Span) Close(ctx context.Context) bool {
	if s.IsDisabled() || !s.closed.CompareAndSwap(false, true) {
		return false
	}

	return s.dispatch.TryClose(markEntered(ctx), s.id)
}

// ContextWithSpan returns a context in which s is the current span,
// without notifying the collector.
func ContextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanKey{}, s)
}

// SpanFromContext returns the span most recently entered in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// CurrentSpan returns the default dispatch's view of the current span.
func CurrentSpan(ctx context.Context) Current {
	var cur Current
	GetDefault(ctx, func(ctx context.Context, d Dispatch) {
		cur = d.CurrentSpan(ctx)
	})

	return cur
}
