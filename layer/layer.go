// Package layer composes collectors from a base collector and stacked
// processing stages.
//
// A Layer observes the notifications a collector receives and may veto
// callsites through RegisterCallsite and Enabled. With wraps an inner
// collector and a layer into a new collector:
//
//	reg := registry.New()
//	c := layer.With(layer.With(reg, filter.Level(tracex.FilterInfo)), myLayer)
//	d := tracex.New(c)
//
// Span ids are always minted by the innermost collector; layers only
// observe them.
package layer

import (
	"context"

	"github.com/arloliu/tracex"
	"go.opentelemetry.io/otel/attribute"
)

// Layer is one composable stage of a collector.
type Layer interface {
	// RegisterCallsite gives the layer's static opinion about a callsite.
	RegisterCallsite(meta *tracex.Metadata) tracex.Interest
	// Enabled reports whether the layer wants meta right now.
	Enabled(ctx context.Context, meta *tracex.Metadata, lc Context) bool
	// OnNewSpan is called after the inner collector minted id.
	OnNewSpan(ctx context.Context, attrs *tracex.Attributes, id tracex.SpanID, lc Context)
	// OnRecord is called when values are recorded on id.
	OnRecord(ctx context.Context, id tracex.SpanID, values *tracex.Record, lc Context)
	// OnFollowsFrom is called when a causal edge is recorded.
	OnFollowsFrom(ctx context.Context, id, follows tracex.SpanID, lc Context)
	// OnEvent is called for every enabled event.
	OnEvent(ctx context.Context, ev *tracex.Event, lc Context)
	// OnEnter is called when id is entered.
	OnEnter(ctx context.Context, id tracex.SpanID, lc Context)
	// OnExit is called when id is exited.
	OnExit(ctx context.Context, id tracex.SpanID, lc Context)
	// OnClose is called once the last reference to id was closed.
	OnClose(ctx context.Context, id tracex.SpanID, lc Context)
	// OnIDChange is called when cloning returned a different id.
	OnIDChange(ctx context.Context, old, updated tracex.SpanID, lc Context)
}

// Base implements every Layer method as a pass-through. Embed it and
// override what the layer cares about.
type Base struct{}

// RegisterCallsite returns InterestAlways.
func (Base) RegisterCallsite(*tracex.Metadata) tracex.Interest { return tracex.InterestAlways }

// Enabled returns true.
func (Base) Enabled(context.Context, *tracex.Metadata, Context) bool { return true }

func (Base) OnNewSpan(context.Context, *tracex.Attributes, tracex.SpanID, Context) {}
func (Base) OnRecord(context.Context, tracex.SpanID, *tracex.Record, Context)     {}
func (Base) OnFollowsFrom(context.Context, tracex.SpanID, tracex.SpanID, Context) {}
func (Base) OnEvent(context.Context, *tracex.Event, Context)                     {}
func (Base) OnEnter(context.Context, tracex.SpanID, Context)                     {}
func (Base) OnExit(context.Context, tracex.SpanID, Context)                      {}
func (Base) OnClose(context.Context, tracex.SpanID, Context)                     {}
func (Base) OnIDChange(context.Context, tracex.SpanID, tracex.SpanID, Context)   {}

// SpanData is what a span-tracking collector knows about one live span.
type SpanData interface {
	ID() tracex.SpanID
	Metadata() *tracex.Metadata
	Parent() (tracex.SpanID, bool)
	Values() []attribute.KeyValue
}

// LookupSpan is implemented by collectors that can look up live spans.
type LookupSpan interface {
	Lookup(id tracex.SpanID) (SpanData, bool)
}

// SpanReleaser is implemented by collectors where closing one span can
// release others, such as a parent whose last reference was held by the
// closed child.
type SpanReleaser interface {
	// ReleaseSpan drops a reference to id and returns every span whose
	// last reference went away, id first, then its released ancestors.
	ReleaseSpan(ctx context.Context, id tracex.SpanID) []tracex.SpanID
}

// Context gives a layer read access to the collector it wraps.
type Context struct {
	inner tracex.Collector
}

// NewContext returns a Context over inner. Layers that forward to another
// layer outside of a Layered collector use it.
func NewContext(inner tracex.Collector) Context {
	return Context{inner: inner}
}

// Collector returns the wrapped collector, or nil for the zero Context.
func (c Context) Collector() tracex.Collector {
	return c.inner
}

// Lookup returns the span data for id if the wrapped collector tracks spans.
func (c Context) Lookup(id tracex.SpanID) (SpanData, bool) {
	l, ok := c.inner.(LookupSpan)
	if !ok {
		return nil, false
	}

	return l.Lookup(id)
}

// Metadata returns the metadata of a live span.
func (c Context) Metadata(id tracex.SpanID) (*tracex.Metadata, bool) {
	span, ok := c.Lookup(id)
	if !ok {
		return nil, false
	}

	return span.Metadata(), true
}

// Current returns the wrapped collector's view of the current span.
func (c Context) Current(ctx context.Context) tracex.Current {
	cs, ok := c.inner.(tracex.CurrentSpanner)
	if !ok {
		return tracex.UnknownCurrent()
	}

	return cs.CurrentSpan(ctx)
}

// Scope returns the chain of span data from id up to its root.
func (c Context) Scope(id tracex.SpanID) []SpanData {
	var out []SpanData
	for {
		span, ok := c.Lookup(id)
		if !ok {
			return out
		}
		out = append(out, span)
		parent, ok := span.Parent()
		if !ok {
			return out
		}
		id = parent
	}
}
