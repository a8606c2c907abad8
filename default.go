package tracex

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/tracex/internal/tracker"
)

type (
	scopeKey   struct{}
	enteredKey struct{}
)

// scope is one SetDefault installation. Scopes chain to the enclosing
// scope of the context they were installed on.
type scope struct {
	dispatch atomic.Pointer[box]
	parent   *scope
	released atomic.Bool
}

// liveScopes counts scopes whose guard has not been closed yet. While it is
// zero, resolution skips the context lookup entirely.
var liveScopes tracker.Gauge

// DefaultGuard restores the enclosing default dispatch when closed.
type DefaultGuard struct {
	s    *scope
	once sync.Once
}

// SetDefault installs d as the default dispatch for the returned context and
// every context derived from it, until the guard is closed. After Close the
// derived contexts resolve to the enclosing default again.
//
// Other contexts, including the one passed in, are not affected.
func SetDefault(ctx context.Context, d Dispatch) (context.Context, *DefaultGuard) {
	s := &scope{parent: scopeFrom(ctx)}
	s.dispatch.Store(d.b)
	exists.Store(true)
	liveScopes.Inc()

	return context.WithValue(ctx, scopeKey{}, s), &DefaultGuard{s: s}
}

// Close releases the scope. It is safe to call more than once.
func (g *DefaultGuard) Close() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.s.released.Store(true)
		liveScopes.Dec()
	})
}

// WithDefault runs fn with d installed as the default dispatch of the
// context fn receives. The previous default is restored when fn returns or
// panics.
func WithDefault(ctx context.Context, d Dispatch, fn func(ctx context.Context)) {
	ctx, guard := SetDefault(ctx, d)
	defer guard.Close()

	fn(ctx)
}

// GetDefault resolves the default dispatch for ctx and passes it to fn.
//
// The context fn receives is marked as entered: while fn runs, resolving a
// default from it (or any context derived from it) yields the none
// dispatch. This keeps a collector that emits its own diagnostics from
// recursing into itself.
func GetDefault(ctx context.Context, fn func(ctx context.Context, d Dispatch)) {
	if ctx.Value(enteredKey{}) != nil {
		fn(ctx, Dispatch{})
		return
	}

	d := resolve(ctx)
	if d.b == nil {
		fn(ctx, d)
		return
	}

	fn(markEntered(ctx), d)
}

// markEntered marks ctx the way GetDefault does for contexts handed to a
// collector.
func markEntered(ctx context.Context) context.Context {
	if ctx.Value(enteredKey{}) != nil {
		return ctx
	}

	return context.WithValue(ctx, enteredKey{}, struct{}{})
}

// Default returns the default dispatch for ctx without entering it.
// Inside a GetDefault callback it returns the none dispatch.
func Default(ctx context.Context) Dispatch {
	if ctx.Value(enteredKey{}) != nil {
		return Dispatch{}
	}

	return resolve(ctx)
}

// IsEntered reports whether ctx was handed out by GetDefault or passed to a
// collector by a Span method.
func IsEntered(ctx context.Context) bool {
	return ctx.Value(enteredKey{}) != nil
}

// resolve walks scope, then global, then none.
func resolve(ctx context.Context) Dispatch {
	if liveScopes.Zero() {
		return getGlobal()
	}

	for s := scopeFrom(ctx); s != nil; s = s.parent {
		if s.released.Load() {
			continue
		}
		if b := s.dispatch.Load(); b != nil {
			return Dispatch{b: b}
		}
		// A scope installed with the none dispatch adopts the global
		// default the first time it is resolved.
		g := getGlobal()
		if g.b != nil {
			s.dispatch.CompareAndSwap(nil, g.b)
		}

		return g
	}

	return getGlobal()
}

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}
