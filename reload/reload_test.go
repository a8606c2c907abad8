package reload_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/filter"
	"github.com/arloliu/tracex/layer"
	"github.com/arloliu/tracex/recorder"
	"github.com/arloliu/tracex/reload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFilter is asked on every call and counts how often.
type countingFilter struct {
	layer.Base
	calls *atomic.Int64
}

func (f countingFilter) RegisterCallsite(*tracex.Metadata) tracex.Interest {
	return tracex.InterestSometimes
}

func (f countingFilter) Enabled(context.Context, *tracex.Metadata, layer.Context) bool {
	f.calls.Add(1)
	return true
}

func TestReload_SwapsFilter(t *testing.T) {
	var one, two atomic.Int64
	l, handle := reload.New[layer.Layer](countingFilter{calls: &one})
	d := tracex.New(layer.With(recorder.New(), l))
	cs := tracex.NewEventCallsite("my event", "reload/test", tracex.LevelInfo)

	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		assert.Zero(t, one.Load())
		assert.Zero(t, two.Load())

		cs.Event(ctx)
		assert.EqualValues(t, 1, one.Load())
		assert.Zero(t, two.Load())

		require.NoError(t, handle.Reload(countingFilter{calls: &two}))

		cs.Event(ctx)
		assert.EqualValues(t, 1, one.Load())
		assert.EqualValues(t, 1, two.Load())
	})
}

func TestReload_FooToBar(t *testing.T) {
	rec := recorder.New()
	l, handle := reload.New(filter.Names("foo"))
	d := tracex.New(layer.With(rec, l))
	foo := tracex.NewEventCallsite("foo", "reload/test", tracex.LevelInfo)
	bar := tracex.NewEventCallsite("bar", "reload/test", tracex.LevelInfo)

	names := func() []string {
		var out []string
		for _, e := range rec.Drain() {
			out = append(out, e.Name)
		}

		return out
	}

	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		assert.True(t, foo.IsEnabled(ctx))
		assert.False(t, bar.IsEnabled(ctx))
		foo.Event(ctx)
		bar.Event(ctx)
		assert.Equal(t, []string{"foo"}, names())

		require.NoError(t, handle.Reload(filter.Names("bar")))

		assert.False(t, foo.IsEnabled(ctx))
		assert.True(t, bar.IsEnabled(ctx))
		foo.Event(ctx)
		bar.Event(ctx)
		assert.Equal(t, []string{"bar"}, names())
	})
}

func TestModify_LevelChangeRebuildsCache(t *testing.T) {
	rec := recorder.New()
	l, handle := reload.New(filter.Level(tracex.FilterInfo))
	d := tracex.New(layer.With(rec, l))
	debug := tracex.NewEventCallsite("verbose", "reload/test", tracex.LevelDebug)

	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		debug.Event(ctx)
		assert.Zero(t, rec.Len())

		err := handle.Modify(func(f **filter.LevelFilter) {
			*f = filter.Level(tracex.FilterDebug)
		})
		require.NoError(t, err)
		assert.True(t, tracex.LevelEnabled(tracex.LevelDebug))

		debug.Event(ctx)
		assert.Equal(t, 1, rec.Len())
	})

	current, err := reload.Current(handle, func(f *filter.LevelFilter) tracex.LevelFilter { return f.Filter() })
	require.NoError(t, err)
	assert.Equal(t, tracex.FilterDebug, current)
	runtime.KeepAlive(d)
}

func TestModify_PanicPoisons(t *testing.T) {
	l, handle := reload.New(filter.Level(tracex.FilterInfo))
	meta := &tracex.Metadata{Level: tracex.LevelError}

	assert.Panics(t, func() {
		_ = handle.Modify(func(**filter.LevelFilter) { panic("mid-flight") })
	})

	err := handle.Reload(filter.Level(tracex.FilterDebug))
	require.ErrorIs(t, err, reload.ErrPoisoned)
	var rerr *reload.Error
	require.True(t, errors.As(err, &rerr))
	assert.True(t, rerr.IsPoisoned())
	assert.Equal(t, reload.KindPoisoned, rerr.Kind())

	require.ErrorIs(t, handle.WithCurrent(func(*filter.LevelFilter) {}), reload.ErrPoisoned)
	_, ok := handle.CloneCurrent()
	assert.False(t, ok)

	// Forwarding degrades instead of panicking.
	assert.Equal(t, tracex.InterestSometimes, l.RegisterCallsite(meta))
	assert.False(t, l.Enabled(context.Background(), meta, layer.Context{}))
	_, hinted := l.MaxLevelHint()
	assert.False(t, hinted)
	assert.NotPanics(t, func() {
		l.OnEvent(context.Background(), &tracex.Event{Metadata: meta}, layer.Context{})
	})
}

func TestHandle_SubscriberGone(t *testing.T) {
	handle := func() *reload.Handle[*filter.LevelFilter] {
		_, h := reload.New(filter.Level(tracex.FilterInfo))
		return h
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return errors.Is(handle.Reload(filter.Level(tracex.FilterWarn)), reload.ErrSubscriberGone)
	}, 5*time.Second, 10*time.Millisecond)

	err := handle.WithCurrent(func(*filter.LevelFilter) {})
	var rerr *reload.Error
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.IsSubscriberGone())
	assert.Equal(t, "reload: subscriber no longer exists", err.Error())
}

func TestHandle_CloneCurrent(t *testing.T) {
	l, handle := reload.New(filter.Level(tracex.FilterWarn))

	got, ok := handle.CloneCurrent()
	require.True(t, ok)
	assert.Equal(t, tracex.FilterWarn, got.Filter())

	second := l.Handle()
	require.NoError(t, second.Reload(filter.Level(tracex.FilterError)))
	got, ok = handle.CloneCurrent()
	require.True(t, ok)
	assert.Equal(t, tracex.FilterError, got.Filter())
	runtime.KeepAlive(l)
}
