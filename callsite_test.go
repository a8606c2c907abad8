package tracex

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticInterest(i Interest) func(*Metadata) Interest {
	return func(*Metadata) Interest { return i }
}

func TestCallsite_NoDispatchIsNever(t *testing.T) {
	resetDispatchState(t)
	cs := NewEventCallsite("orphan", "tracex/test", LevelInfo)

	assert.Equal(t, InterestNever, cs.Interest())
	assert.True(t, MaxLevel().IsOff())
	assert.False(t, cs.IsEnabled(context.Background()))
}

func TestCallsite_NeverIsCached(t *testing.T) {
	resetDispatchState(t)
	c := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestNever)}
	d := New(c)
	cs := NewEventCallsite("never", "tracex/test", LevelInfo)

	WithDefault(context.Background(), d, func(ctx context.Context) {
		for range 10 {
			cs.Event(ctx)
		}
	})

	assert.Zero(t, c.enabledCalls.Load(), "a never callsite must not consult the filter")
	assert.Zero(t, c.events.Load())
}

func TestCallsite_AlwaysSkipsEnabled(t *testing.T) {
	resetDispatchState(t)
	c := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestAlways)}
	d := New(c)
	cs := NewEventCallsite("always", "tracex/test", LevelInfo)

	WithDefault(context.Background(), d, func(ctx context.Context) {
		cs.Event(ctx)
		cs.Event(ctx)
	})

	assert.Zero(t, c.enabledCalls.Load())
	assert.EqualValues(t, 2, c.events.Load())
}

func TestCallsite_SometimesAsksEveryTime(t *testing.T) {
	resetDispatchState(t)
	c := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestSometimes)}
	allow := false
	c.enabled = func(*Metadata) bool { return allow }
	d := New(c)
	cs := NewEventCallsite("sometimes", "tracex/test", LevelInfo)

	WithDefault(context.Background(), d, func(ctx context.Context) {
		cs.Event(ctx)
		allow = true
		cs.Event(ctx)
	})

	assert.EqualValues(t, 2, c.enabledCalls.Load())
	assert.EqualValues(t, 1, c.events.Load())
}

func TestCallsite_CombinesDispatches(t *testing.T) {
	resetDispatchState(t)
	always := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestAlways)}
	never := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestNever)}
	da := New(always)
	cs := NewEventCallsite("combined", "tracex/test", LevelInfo)
	assert.Equal(t, InterestAlways, cs.Interest())

	dn := New(never)
	assert.Equal(t, InterestSometimes, cs.Interest())

	// The dispatch that said never is still asked, and still refuses.
	never.enabled = func(*Metadata) bool { return false }
	WithDefault(context.Background(), dn, func(ctx context.Context) {
		cs.Event(ctx)
	})
	WithDefault(context.Background(), da, func(ctx context.Context) {
		cs.Event(ctx)
	})

	assert.Zero(t, never.events.Load())
	assert.EqualValues(t, 1, always.events.Load())
}

func TestCallsite_DefaultRegistrationUsesEnabled(t *testing.T) {
	resetDispatchState(t)
	c := newTestCollector()
	c.enabled = func(meta *Metadata) bool { return meta.Name != "muted" }
	New(c)

	assert.Equal(t, InterestNever, NewEventCallsite("muted", "tracex/test", LevelInfo).Interest())
	assert.Equal(t, InterestAlways, NewEventCallsite("loud", "tracex/test", LevelInfo).Interest())
}

func TestCallsite_RegisteredBeforeCollector(t *testing.T) {
	resetDispatchState(t)
	cs := NewEventCallsite("early", "tracex/test", LevelInfo)
	require.Equal(t, InterestNever, cs.Interest())

	c := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestAlways)}
	d := New(c)

	assert.Equal(t, InterestAlways, cs.Interest())
	WithDefault(context.Background(), d, func(ctx context.Context) {
		cs.Event(ctx)
	})
	assert.EqualValues(t, 1, c.events.Load())
}

func TestCallsite_RebuildPicksUpNewOpinion(t *testing.T) {
	resetDispatchState(t)
	current := InterestNever
	c := &interestCollector{
		testCollector: newTestCollector(),
		interest:      func(*Metadata) Interest { return current },
	}
	New(c)
	cs := NewEventCallsite("flip", "tracex/test", LevelInfo)
	require.Equal(t, InterestNever, cs.Interest())

	current = InterestAlways
	assert.Equal(t, InterestNever, cs.Interest(), "cached until rebuilt")

	RebuildInterestCache()
	assert.Equal(t, InterestAlways, cs.Interest())
}

func TestMaxLevel_FromHints(t *testing.T) {
	resetDispatchState(t)
	info := FilterInfo
	c := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestAlways), hint: &info}
	d := New(c)

	assert.Equal(t, FilterInfo, MaxLevel())
	assert.False(t, LevelEnabled(LevelDebug))

	debug := NewEventCallsite("debug", "tracex/test", LevelDebug)
	WithDefault(context.Background(), d, func(ctx context.Context) {
		debug.Event(ctx)
	})
	assert.Zero(t, c.events.Load())

	// A collector without a hint may enable anything.
	New(newTestCollector())
	assert.Equal(t, FilterTrace, MaxLevel())
}

func TestRebuild_PrunesCollectedDispatches(t *testing.T) {
	resetDispatchState(t)
	cs := NewEventCallsite("transient", "tracex/test", LevelInfo)

	func() {
		c := &interestCollector{testCollector: newTestCollector(), interest: staticInterest(InterestAlways)}
		d := New(c)
		require.Equal(t, InterestAlways, cs.Interest())
		runtime.KeepAlive(d)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		RebuildInterestCache()

		return cs.Interest() == InterestNever
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, MaxLevel().IsOff())
}

func TestMetadata(t *testing.T) {
	cs := NewSpanCallsite("span", "tracex/test", LevelWarn, "a", "b")
	meta := cs.Metadata()

	assert.Same(t, cs, meta.Callsite())
	assert.True(t, meta.IsSpan())
	assert.False(t, meta.IsEvent())
	assert.True(t, meta.HasField("b"))
	assert.False(t, meta.HasField("c"))

	ev := NewCallsite(Metadata{Name: "plain"})
	assert.True(t, ev.Metadata().IsEvent())
}
