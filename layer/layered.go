package layer

import (
	"context"

	"github.com/arloliu/tracex"
)

// Layered is a collector made of a layer on top of an inner collector.
type Layered struct {
	layer Layer
	inner tracex.Collector
	lc    Context

	registerer tracex.CallsiteRegisterer
	cloner     tracex.SpanCloner
	closer     tracex.SpanCloser
	releaser   SpanReleaser
	current    tracex.CurrentSpanner
}

var (
	_ tracex.Collector          = (*Layered)(nil)
	_ tracex.CallsiteRegisterer = (*Layered)(nil)
	_ tracex.LevelHinter        = (*Layered)(nil)
	_ tracex.SpanCloner         = (*Layered)(nil)
	_ tracex.SpanCloser         = (*Layered)(nil)
	_ tracex.CurrentSpanner     = (*Layered)(nil)
	_ LookupSpan                = (*Layered)(nil)
	_ SpanReleaser              = (*Layered)(nil)
)

// With stacks l on top of inner.
func With(inner tracex.Collector, l Layer) *Layered {
	c := &Layered{layer: l, inner: inner, lc: Context{inner: inner}}
	c.registerer, _ = inner.(tracex.CallsiteRegisterer)
	c.cloner, _ = inner.(tracex.SpanCloner)
	c.closer, _ = inner.(tracex.SpanCloser)
	c.releaser, _ = inner.(SpanReleaser)
	c.current, _ = inner.(tracex.CurrentSpanner)

	return c
}

// With stacks l on top of c.
func (c *Layered) With(l Layer) *Layered {
	return With(c, l)
}

// Layer returns the outermost layer.
func (c *Layered) Layer() Layer { return c.layer }

// Inner returns the wrapped collector.
func (c *Layered) Inner() tracex.Collector { return c.inner }

// RegisterCallsite combines the layer's and the inner collector's opinion.
// A layer that never wants the callsite wins; a layer that sometimes wants
// it forces a per-call check; otherwise the inner collector decides.
func (c *Layered) RegisterCallsite(meta *tracex.Metadata) tracex.Interest {
	outer := c.layer.RegisterCallsite(meta)
	if outer.IsNever() {
		return outer
	}
	inner := tracex.InterestAlways
	if c.registerer != nil {
		inner = c.registerer.RegisterCallsite(meta)
	}
	if outer.IsSometimes() {
		return outer
	}

	return inner
}

// MaxLevelHint returns the stricter of the layer's and the inner hint.
func (c *Layered) MaxLevelHint() (tracex.LevelFilter, bool) {
	outer, outerOK := hint(c.layer)
	inner, innerOK := hint(c.inner)
	switch {
	case outerOK && innerOK:
		return outer.Stricter(inner), true
	case outerOK:
		return outer, true
	case innerOK:
		return inner, true
	default:
		return tracex.LevelFilter{}, false
	}
}

func hint(v any) (tracex.LevelFilter, bool) {
	h, ok := v.(tracex.LevelHinter)
	if !ok {
		return tracex.LevelFilter{}, false
	}

	return h.MaxLevelHint()
}

// Enabled reports whether both the layer and the inner collector want meta.
func (c *Layered) Enabled(ctx context.Context, meta *tracex.Metadata) bool {
	return c.layer.Enabled(ctx, meta, c.lc) && c.inner.Enabled(ctx, meta)
}

func (c *Layered) NewSpan(ctx context.Context, attrs *tracex.Attributes) tracex.SpanID {
	id := c.inner.NewSpan(ctx, attrs)
	c.layer.OnNewSpan(ctx, attrs, id, c.lc)

	return id
}

func (c *Layered) Record(ctx context.Context, id tracex.SpanID, values *tracex.Record) {
	c.inner.Record(ctx, id, values)
	c.layer.OnRecord(ctx, id, values, c.lc)
}

func (c *Layered) RecordFollowsFrom(ctx context.Context, id, follows tracex.SpanID) {
	c.inner.RecordFollowsFrom(ctx, id, follows)
	c.layer.OnFollowsFrom(ctx, id, follows, c.lc)
}

func (c *Layered) Event(ctx context.Context, ev *tracex.Event) {
	c.inner.Event(ctx, ev)
	c.layer.OnEvent(ctx, ev, c.lc)
}

func (c *Layered) Enter(ctx context.Context, id tracex.SpanID) {
	c.inner.Enter(ctx, id)
	c.layer.OnEnter(ctx, id, c.lc)
}

func (c *Layered) Exit(ctx context.Context, id tracex.SpanID) {
	c.inner.Exit(ctx, id)
	c.layer.OnExit(ctx, id, c.lc)
}

// CloneSpan clones through the inner collector and reports id changes to
// the layer.
func (c *Layered) CloneSpan(ctx context.Context, id tracex.SpanID) tracex.SpanID {
	if c.cloner == nil {
		return id
	}
	cloned := c.cloner.CloneSpan(ctx, id)
	if cloned != id {
		c.layer.OnIDChange(ctx, id, cloned, c.lc)
	}

	return cloned
}

// TryClose closes through the inner collector; the layer sees OnClose only
// for the last reference, after the inner collector forgot the span.
func (c *Layered) TryClose(ctx context.Context, id tracex.SpanID) bool {
	released := c.ReleaseSpan(ctx, id)
	return len(released) > 0 && released[0] == id
}

// ReleaseSpan closes id through the inner collector and calls OnClose once
// for every span the close released, including ancestors released along
// with it.
func (c *Layered) ReleaseSpan(ctx context.Context, id tracex.SpanID) []tracex.SpanID {
	var released []tracex.SpanID
	switch {
	case c.releaser != nil:
		released = c.releaser.ReleaseSpan(ctx, id)
	case c.closer != nil:
		if c.closer.TryClose(ctx, id) {
			released = []tracex.SpanID{id}
		}
	}
	for _, closed := range released {
		c.layer.OnClose(ctx, closed, c.lc)
	}

	return released
}

func (c *Layered) CurrentSpan(ctx context.Context) tracex.Current {
	if c.current == nil {
		return tracex.UnknownCurrent()
	}

	return c.current.CurrentSpan(ctx)
}

// Lookup forwards to the inner collector so layers further out can see
// span data.
func (c *Layered) Lookup(id tracex.SpanID) (SpanData, bool) {
	return c.lc.Lookup(id)
}
