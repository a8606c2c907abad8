// Package tracker holds the process-wide primitives the dispatch resolver is
// built from: a write-once slot and a gauge of live scopes.
package tracker

import (
	"sync/atomic"
)

const (
	uninitialized uint32 = iota
	initializing
	initialized
)

// Slot is a write-once value guarded by a three-state atomic machine
// (uninitialized -> initializing -> initialized).
//
// The zero value is ready to use.
type Slot[T any] struct {
	state atomic.Uint32
	value T
}

// TrySet stores v if the slot has never been set.
// Exactly one call per slot returns true.
func (s *Slot[T]) TrySet(v T) bool {
	if !s.state.CompareAndSwap(uninitialized, initializing) {
		return false
	}
	s.value = v
	s.state.Store(initialized)

	return true
}

// Load returns the stored value, or false while the slot is not initialized.
// The hot path is a single atomic load.
func (s *Slot[T]) Load() (T, bool) {
	if s.state.Load() != initialized {
		var zero T
		return zero, false
	}

	return s.value, true
}

// IsSet reports whether TrySet has started on this slot.
func (s *Slot[T]) IsSet() bool {
	return s.state.Load() != uninitialized
}

// Reset returns the slot to its initial state. Only for tests.
func (s *Slot[T]) Reset() {
	var zero T
	s.value = zero
	s.state.Store(uninitialized)
}

// Gauge counts live holders of some resource.
type Gauge struct {
	n atomic.Int64
}

// Inc registers a new holder.
func (g *Gauge) Inc() { g.n.Add(1) }

// Dec releases a holder.
func (g *Gauge) Dec() { g.n.Add(-1) }

// Zero reports whether no holder is live.
func (g *Gauge) Zero() bool { return g.n.Load() <= 0 }

// Value returns the current number of holders.
func (g *Gauge) Value() int64 { return g.n.Load() }
