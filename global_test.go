package tracex

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGlobalDefault_OnlyOnce(t *testing.T) {
	resetDispatchState(t)
	first := New(newTestCollector())
	second := New(newTestCollector())

	assert.False(t, HasBeenSet())
	require.NoError(t, SetGlobalDefault(first))
	assert.True(t, HasBeenSet())

	err := SetGlobalDefault(second)
	require.ErrorIs(t, err, ErrGlobalDefaultSet)
	assert.True(t, GlobalDefault().Same(first))
	assert.True(t, first.IsStatic(), "the global default is promoted")
	assert.False(t, second.IsStatic())
}

func TestSetGlobalDefault_Concurrent(t *testing.T) {
	resetDispatchState(t)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if SetGlobalDefault(New(newTestCollector())) == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, winners.Load())
	assert.False(t, GlobalDefault().IsNone())
}

func TestGlobalDefault_ReceivesUnscopedEvents(t *testing.T) {
	resetDispatchState(t)
	c := newTestCollector()
	require.NoError(t, SetGlobalDefault(New(c)))
	cs := NewEventCallsite("global", "tracex/test", LevelInfo)

	cs.Event(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cs.Event(context.Background())
	}()
	wg.Wait()

	assert.EqualValues(t, 2, c.events.Load())
}

func TestScopedDefault_OverridesGlobal(t *testing.T) {
	resetDispatchState(t)
	globalC := newTestCollector()
	scoped := newTestCollector()
	require.NoError(t, SetGlobalDefault(New(globalC)))
	cs := NewEventCallsite("scoped", "tracex/test", LevelInfo)

	WithDefault(context.Background(), New(scoped), func(ctx context.Context) {
		cs.Event(ctx)
		cs.Event(context.Background())
	})
	cs.Event(context.Background())

	assert.EqualValues(t, 1, scoped.events.Load())
	assert.EqualValues(t, 2, globalC.events.Load())
}

func TestSetGlobalDefault_None(t *testing.T) {
	resetDispatchState(t)
	require.NoError(t, SetGlobalDefault(None()))
	assert.True(t, HasBeenSet())
	assert.True(t, GlobalDefault().IsNone())
	require.ErrorIs(t, SetGlobalDefault(New(newTestCollector())), ErrGlobalDefaultSet)
}
