package registry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

var (
	rootSite  = tracex.NewSpanCallsite("root", "registry/test", tracex.LevelInfo)
	childSite = tracex.NewSpanCallsite("child", "registry/test", tracex.LevelInfo)
)

func newSpan(ctx context.Context, r *registry.Registry, cs *tracex.Callsite, p tracex.Parent, kv ...attribute.KeyValue) tracex.SpanID {
	return r.NewSpan(ctx, &tracex.Attributes{Metadata: cs.Metadata(), Parent: p, Values: kv})
}

func TestRegistry_IDsStartAtOne(t *testing.T) {
	r := registry.New()
	ctx := context.Background()

	assert.Equal(t, tracex.SpanID(1), newSpan(ctx, r, rootSite, tracex.RootParent()))
	assert.Equal(t, tracex.SpanID(2), newSpan(ctx, r, rootSite, tracex.RootParent()))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_LastCloseReportsTrue(t *testing.T) {
	r := registry.New()
	ctx := context.Background()
	id := newSpan(ctx, r, rootSite, tracex.RootParent())

	assert.Equal(t, id, r.CloneSpan(ctx, id))
	assert.Equal(t, id, r.CloneSpan(ctx, id))

	assert.False(t, r.TryClose(ctx, id))
	assert.False(t, r.TryClose(ctx, id))
	assert.True(t, r.TryClose(ctx, id))
	assert.False(t, r.TryClose(ctx, id), "unknown ids are never reported closed")
	assert.Zero(t, r.Len())
}

func TestRegistry_ChildKeepsParentAlive(t *testing.T) {
	r := registry.New()
	ctx := context.Background()
	parent := newSpan(ctx, r, rootSite, tracex.RootParent())
	child := newSpan(ctx, r, childSite, tracex.ExplicitParent(parent))

	assert.False(t, r.TryClose(ctx, parent))
	data, ok := r.Lookup(parent)
	require.True(t, ok)
	assert.Equal(t, "root", data.Metadata().Name)

	assert.True(t, r.TryClose(ctx, child))
	_, ok = r.Lookup(parent)
	assert.False(t, ok, "closing the last child releases the parent")
	assert.Zero(t, r.Len())
}

func TestRegistry_ReleaseSpanReportsAncestors(t *testing.T) {
	r := registry.New()
	ctx := context.Background()
	root := newSpan(ctx, r, rootSite, tracex.RootParent())
	child := newSpan(ctx, r, childSite, tracex.ExplicitParent(root))
	other := newSpan(ctx, r, childSite, tracex.ExplicitParent(root))

	assert.Empty(t, r.ReleaseSpan(ctx, root))
	assert.Equal(t, []tracex.SpanID{child}, r.ReleaseSpan(ctx, child), "a sibling still holds the root")
	assert.Equal(t, []tracex.SpanID{other, root}, r.ReleaseSpan(ctx, other))
	assert.Empty(t, r.ReleaseSpan(ctx, root))
	assert.Zero(t, r.Len())
}

func TestRegistry_RecordAndFollows(t *testing.T) {
	r := registry.New()
	ctx := context.Background()
	a := newSpan(ctx, r, rootSite, tracex.RootParent(), attribute.String("k", "v"))
	b := newSpan(ctx, r, rootSite, tracex.RootParent())

	r.Record(ctx, a, &tracex.Record{Values: []attribute.KeyValue{attribute.Int("n", 1)}})
	r.RecordFollowsFrom(ctx, b, a)
	r.Record(ctx, 999, &tracex.Record{})

	data, ok := r.Lookup(a)
	require.True(t, ok)
	assert.Equal(t, []attribute.KeyValue{attribute.String("k", "v"), attribute.Int("n", 1)}, data.Values())

	_, hasParent := data.Parent()
	assert.False(t, hasParent)
}

func TestRegistry_ContextualParentAndCurrent(t *testing.T) {
	r := registry.New()
	d := tracex.New(r)

	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		cur := tracex.CurrentSpan(ctx)
		assert.True(t, cur.IsKnown())
		_, inSpan := cur.ID()
		assert.False(t, inSpan)

		root := rootSite.NewSpan(ctx)
		require.False(t, root.IsDisabled())

		root.InScope(ctx, func(ctx context.Context) {
			cur := r.CurrentSpan(ctx)
			id, ok := cur.ID()
			require.True(t, ok)
			rootID, _ := root.ID()
			assert.Equal(t, rootID, id)
			assert.Same(t, rootSite.Metadata(), cur.Metadata())

			child := childSite.NewSpan(ctx)
			childID, _ := child.ID()
			data, found := r.Lookup(childID)
			require.True(t, found)
			parent, hasParent := data.Parent()
			require.True(t, hasParent)
			assert.Equal(t, rootID, parent)
			child.Close(ctx)
		})
		root.Close(ctx)
	})

	assert.Zero(t, r.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := registry.New()
	ctx := context.Background()
	parent := newSpan(ctx, r, rootSite, tracex.RootParent())

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := newSpan(ctx, r, childSite, tracex.ExplicitParent(parent))
			clone := r.CloneSpan(ctx, id)
			r.TryClose(ctx, clone)
			r.TryClose(ctx, id)
		}()
	}
	wg.Wait()

	assert.True(t, r.TryClose(ctx, parent))
	assert.Zero(t, r.Len())
}
