// Package registry provides a base collector that mints span ids and keeps
// per-span data for the layers stacked on it.
//
// Span ids are reference counted: NewSpan returns an id holding one
// reference, CloneSpan adds one, and TryClose drops one and reports when
// the last reference is gone. A child span holds a reference on its
// parent, so a parent stays visible to Lookup until its last child closed.
// ReleaseSpan reports every span one close removed, so a layer stacked on
// the registry sees OnClose for parents released by their last child.
package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/layer"
	"go.opentelemetry.io/otel/attribute"
)

// Registry is a collector that only tracks span lifetimes.
// The zero value is not usable; create one with New.
type Registry struct {
	next  atomic.Uint64
	spans sync.Map // tracex.SpanID -> *spanData
	live  atomic.Int64
}

var (
	_ tracex.Collector      = (*Registry)(nil)
	_ tracex.SpanCloner     = (*Registry)(nil)
	_ tracex.SpanCloser     = (*Registry)(nil)
	_ tracex.CurrentSpanner = (*Registry)(nil)
	_ layer.LookupSpan      = (*Registry)(nil)
	_ layer.SpanReleaser    = (*Registry)(nil)
)

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

type spanData struct {
	id        tracex.SpanID
	meta      *tracex.Metadata
	parent    tracex.SpanID
	hasParent bool
	refs      atomic.Int64

	mu      sync.Mutex
	values  []attribute.KeyValue
	follows []tracex.SpanID
}

func (s *spanData) ID() tracex.SpanID { return s.id }

func (s *spanData) Metadata() *tracex.Metadata { return s.meta }

func (s *spanData) Parent() (tracex.SpanID, bool) { return s.parent, s.hasParent }

// Values returns a copy of the values recorded on the span so far.
func (s *spanData) Values() []attribute.KeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]attribute.KeyValue(nil), s.values...)
}

// FollowsFrom returns the ids this span was recorded to follow.
func (s *spanData) FollowsFrom() []tracex.SpanID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]tracex.SpanID(nil), s.follows...)
}

// Enabled returns true: the registry records whatever reaches it.
func (r *Registry) Enabled(context.Context, *tracex.Metadata) bool { return true }

// NewSpan stores the span and takes a reference on its parent.
func (r *Registry) NewSpan(ctx context.Context, attrs *tracex.Attributes) tracex.SpanID {
	id := tracex.SpanID(r.next.Add(1))
	if id == tracex.NoneSpanID {
		id = tracex.SpanID(r.next.Add(1))
	}

	data := &spanData{
		id:     id,
		meta:   attrs.Metadata,
		values: append([]attribute.KeyValue(nil), attrs.Values...),
	}
	if parent, ok := r.parentOf(ctx, attrs.Parent); ok {
		if p, found := r.get(parent); found {
			p.refs.Add(1)
			data.parent, data.hasParent = parent, true
		}
	}
	data.refs.Store(1)
	r.spans.Store(id, data)
	r.live.Add(1)

	return id
}

func (r *Registry) parentOf(ctx context.Context, p tracex.Parent) (tracex.SpanID, bool) {
	switch {
	case p.IsRoot():
		return 0, false
	case p.IsContextual():
		cur := r.CurrentSpan(ctx)
		return cur.ID()
	default:
		return p.ID()
	}
}

// Record appends values to the span.
func (r *Registry) Record(_ context.Context, id tracex.SpanID, values *tracex.Record) {
	s, ok := r.get(id)
	if !ok {
		return
	}
	s.mu.Lock()
	s.values = append(s.values, values.Values...)
	s.mu.Unlock()
}

// RecordFollowsFrom remembers the causal edge.
func (r *Registry) RecordFollowsFrom(_ context.Context, id, follows tracex.SpanID) {
	s, ok := r.get(id)
	if !ok {
		return
	}
	s.mu.Lock()
	s.follows = append(s.follows, follows)
	s.mu.Unlock()
}

func (r *Registry) Event(context.Context, *tracex.Event) {}

func (r *Registry) Enter(context.Context, tracex.SpanID) {}

func (r *Registry) Exit(context.Context, tracex.SpanID) {}

// CloneSpan adds a reference to id. Unknown ids are returned unchanged.
func (r *Registry) CloneSpan(_ context.Context, id tracex.SpanID) tracex.SpanID {
	if s, ok := r.get(id); ok {
		s.refs.Add(1)
	}

	return id
}

// TryClose drops a reference to id. When it was the last one, the span is
// removed and its reference on the parent is released.
func (r *Registry) TryClose(ctx context.Context, id tracex.SpanID) bool {
	return len(r.ReleaseSpan(ctx, id)) > 0
}

// ReleaseSpan drops a reference to id and returns the spans removed as a
// result: id itself, then each ancestor whose last reference was held by
// the span removed before it. The result is empty while id is still
// referenced.
func (r *Registry) ReleaseSpan(_ context.Context, id tracex.SpanID) []tracex.SpanID {
	var released []tracex.SpanID
	for {
		s, ok := r.get(id)
		if !ok || s.refs.Add(-1) > 0 {
			return released
		}
		r.spans.Delete(id)
		r.live.Add(-1)
		released = append(released, id)
		if !s.hasParent {
			return released
		}
		id = s.parent
	}
}

// CurrentSpan returns the span most recently entered in ctx if it is live
// in this registry.
func (r *Registry) CurrentSpan(ctx context.Context) tracex.Current {
	span := tracex.SpanFromContext(ctx)
	id, ok := span.ID()
	if !ok {
		return tracex.NoneCurrent()
	}
	s, found := r.get(id)
	if !found || s.meta != span.Metadata() {
		return tracex.NoneCurrent()
	}

	return tracex.NewCurrent(id, s.meta)
}

// Lookup returns the data of a live span.
func (r *Registry) Lookup(id tracex.SpanID) (layer.SpanData, bool) {
	s, ok := r.get(id)
	if !ok {
		return nil, false
	}

	return s, true
}

// Len returns the number of live spans.
func (r *Registry) Len() int {
	return int(r.live.Load())
}

func (r *Registry) get(id tracex.SpanID) (*spanData, bool) {
	v, ok := r.spans.Load(id)
	if !ok {
		return nil, false
	}

	return v.(*spanData), true
}
