// Package reload makes a layer replaceable at runtime.
//
// New wraps a layer and returns it together with a Handle. The wrapped
// layer is stacked like any other; the Handle modifies or replaces it while
// the collector is in use:
//
//	lvl, handle := reload.New(filter.Level(tracex.FilterInfo))
//	d := tracex.New(layer.With(registry.New(), lvl))
//	...
//	err := handle.Reload(filter.Level(tracex.FilterDebug))
//
// Every modification rebuilds the callsite interest cache, so the next use
// of any callsite observes the new layer.
//
// The Handle does not keep the layer alive. Once the collector holding the
// layer is garbage collected, Handle operations return ErrSubscriberGone.
package reload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/layer"
)

type slot[L layer.Layer] struct {
	mu       sync.RWMutex
	inner    L
	poisoned atomic.Bool
}

// Layer forwards to a replaceable inner layer.
type Layer[L layer.Layer] struct {
	s *slot[L]
}

var _ layer.Layer = (*Layer[layer.Base])(nil)

// Handle controls a Layer without keeping it alive. Handles are cheap to
// copy and safe for concurrent use.
type Handle[L layer.Layer] struct {
	s weak.Pointer[slot[L]]
}

// New wraps inner in a reloadable layer.
func New[L layer.Layer](inner L) (*Layer[L], *Handle[L]) {
	l := &Layer[L]{s: &slot[L]{inner: inner}}

	return l, l.Handle()
}

// Handle returns a new control handle for l.
func (l *Layer[L]) Handle() *Handle[L] {
	return &Handle[L]{s: weak.Make(l.s)}
}

// read runs fn under the read lock. It reports false without running fn
// when the slot is poisoned.
func (s *slot[L]) read(fn func(inner L)) bool {
	if s.poisoned.Load() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.poisoned.Load() {
		return false
	}
	fn(s.inner)

	return true
}

func (s *slot[L]) modify(fn func(inner *L)) error {
	s.mu.Lock()
	if s.poisoned.Load() {
		s.mu.Unlock()
		return errPoisoned
	}
	completed := false
	defer func() {
		if !completed {
			s.poisoned.Store(true)
		}
		s.mu.Unlock()
	}()
	fn(&s.inner)
	completed = true

	return nil
}

// RegisterCallsite forwards to the inner layer, or returns
// InterestSometimes when the slot is poisoned.
func (l *Layer[L]) RegisterCallsite(meta *tracex.Metadata) tracex.Interest {
	interest := tracex.InterestSometimes
	l.s.read(func(inner L) { interest = inner.RegisterCallsite(meta) })

	return interest
}

// Enabled forwards to the inner layer, or returns false when the slot is
// poisoned.
func (l *Layer[L]) Enabled(ctx context.Context, meta *tracex.Metadata, lc layer.Context) bool {
	enabled := false
	l.s.read(func(inner L) { enabled = inner.Enabled(ctx, meta, lc) })

	return enabled
}

// MaxLevelHint forwards to the inner layer when it gives hints.
func (l *Layer[L]) MaxLevelHint() (tracex.LevelFilter, bool) {
	var (
		f  tracex.LevelFilter
		ok bool
	)
	l.s.read(func(inner L) {
		if h, isHinter := any(inner).(tracex.LevelHinter); isHinter {
			f, ok = h.MaxLevelHint()
		}
	})

	return f, ok
}

func (l *Layer[L]) OnNewSpan(ctx context.Context, attrs *tracex.Attributes, id tracex.SpanID, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnNewSpan(ctx, attrs, id, lc) })
}

func (l *Layer[L]) OnRecord(ctx context.Context, id tracex.SpanID, values *tracex.Record, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnRecord(ctx, id, values, lc) })
}

func (l *Layer[L]) OnFollowsFrom(ctx context.Context, id, follows tracex.SpanID, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnFollowsFrom(ctx, id, follows, lc) })
}

func (l *Layer[L]) OnEvent(ctx context.Context, ev *tracex.Event, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnEvent(ctx, ev, lc) })
}

func (l *Layer[L]) OnEnter(ctx context.Context, id tracex.SpanID, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnEnter(ctx, id, lc) })
}

func (l *Layer[L]) OnExit(ctx context.Context, id tracex.SpanID, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnExit(ctx, id, lc) })
}

func (l *Layer[L]) OnClose(ctx context.Context, id tracex.SpanID, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnClose(ctx, id, lc) })
}

func (l *Layer[L]) OnIDChange(ctx context.Context, old, updated tracex.SpanID, lc layer.Context) {
	l.s.read(func(inner L) { inner.OnIDChange(ctx, old, updated, lc) })
}

// Modify runs fn with exclusive access to the current layer, then rebuilds
// the callsite interest cache.
//
// If fn panics, the layer is poisoned and the panic continues; afterwards
// every Handle operation returns ErrPoisoned and the Layer forwards nothing.
func (h *Handle[L]) Modify(fn func(layer *L)) error {
	s := h.s.Value()
	if s == nil {
		return errGone
	}
	if err := s.modify(fn); err != nil {
		return err
	}
	// The lock is released; rebuilding may call back into the layer.
	tracex.RebuildInterestCache()
	tracex.Logger().Debug("reload: layer modified", "layer", fmt.Sprintf("%T", *new(L)))

	return nil
}

// Reload replaces the current layer with next.
func (h *Handle[L]) Reload(next L) error {
	return h.Modify(func(layer *L) { *layer = next })
}

// WithCurrent runs fn with the current layer under the read lock.
// It does not rebuild the interest cache.
func (h *Handle[L]) WithCurrent(fn func(layer L)) error {
	s := h.s.Value()
	if s == nil {
		return errGone
	}
	if !s.read(fn) {
		return errPoisoned
	}

	return nil
}

// CloneCurrent returns a copy of the current layer. Layers implementing
// Clone() L are cloned with it; others are copied by value. It reports
// false when the layer is gone or poisoned.
func (h *Handle[L]) CloneCurrent() (L, bool) {
	var out L
	err := h.WithCurrent(func(layer L) {
		if c, ok := any(layer).(interface{ Clone() L }); ok {
			out = c.Clone()
			return
		}
		out = layer
	})

	return out, err == nil
}

// Current returns the result of fn applied to the current layer.
func Current[L layer.Layer, T any](h *Handle[L], fn func(layer L) T) (T, error) {
	var out T
	err := h.WithCurrent(func(layer L) { out = fn(layer) })

	return out, err
}
