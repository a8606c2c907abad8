package tracex

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"weak"
)

// Callsite is one instrumentation point. Create callsites once, typically
// as package-level variables, and reuse them for every call.
//
// A callsite caches the combined Interest of every registered dispatch,
// tagged with the registry epoch it was computed in. RebuildInterestCache
// bumps the epoch, so the next use of any callsite recomputes its interest.
type Callsite struct {
	meta Metadata
	// state packs epoch<<2 | interest; zero means never registered.
	state atomic.Uint64
}

// NewCallsite creates a callsite owning a copy of meta.
func NewCallsite(meta Metadata) *Callsite {
	cs := &Callsite{meta: meta}
	cs.meta.callsite = cs
	if cs.meta.Kind == 0 {
		cs.meta.Kind = KindEvent
	}

	return cs
}

// NewSpanCallsite is shorthand for a span callsite.
func NewSpanCallsite(name, target string, level Level, fields ...string) *Callsite {
	return NewCallsite(Metadata{Name: name, Target: target, Level: level, Fields: fields, Kind: KindSpan})
}

// NewEventCallsite is shorthand for an event callsite.
func NewEventCallsite(name, target string, level Level, fields ...string) *Callsite {
	return NewCallsite(Metadata{Name: name, Target: target, Level: level, Fields: fields, Kind: KindEvent})
}

// Metadata returns the callsite's metadata. The pointer is stable.
func (cs *Callsite) Metadata() *Metadata { return &cs.meta }

// Interest returns the cached interest, recomputing it when the cache was
// invalidated since it was last computed. Registration is idempotent.
func (cs *Callsite) Interest() Interest {
	epoch := callsites.epoch.Load()
	if v := cs.state.Load(); v != 0 && v>>2 == epoch {
		return Interest(v & 3)
	}

	return cs.register(epoch)
}

func (cs *Callsite) register(epoch uint64) Interest {
	interest := callsites.interestFor(&cs.meta)
	cs.state.Store(epoch<<2 | uint64(interest))

	return interest
}

// IsEnabled runs the full enable check for this callsite against the
// current default dispatch of ctx.
func (cs *Callsite) IsEnabled(ctx context.Context) bool {
	if !LevelEnabled(cs.meta.Level) {
		return false
	}
	interest := cs.Interest()
	if interest.IsNever() {
		return false
	}
	enabled := false
	GetDefault(ctx, func(ctx context.Context, d Dispatch) {
		enabled = interest.IsAlways() && !d.IsNone() || d.Enabled(ctx, &cs.meta)
	})

	return enabled
}

// RebuildInterestCache invalidates every callsite's cached interest and
// recomputes the process-wide maximum level. Collected dispatches are
// pruned from the registry.
//
// Once it returns, the next evaluation of any callsite on any goroutine
// observes the current set of dispatches and their filters.
func RebuildInterestCache() {
	callsites.rebuild()
}

// MaxLevel returns the most verbose level any registered dispatch may enable.
func MaxLevel() LevelFilter {
	return callsites.maxLevel()
}

// LevelEnabled reports whether l passes MaxLevel.
func LevelEnabled(l Level) bool {
	return callsites.maxLevel().Enables(l)
}

type registry struct {
	mu         sync.Mutex
	dispatches []weak.Pointer[box]
	epoch      atomic.Uint64
	max        atomic.Pointer[LevelFilter]
}

var callsites = newRegistry()

func newRegistry() *registry {
	r := &registry{}
	r.epoch.Store(1)
	r.max.Store(&FilterOff)

	return r
}

func (r *registry) registerDispatch(b *box) {
	r.mu.Lock()
	r.dispatches = append(r.dispatches, weak.Make(b))
	r.mu.Unlock()
	r.rebuild()
}

// live returns strong references to every registered dispatch that is still
// reachable. The slice is owned by the caller.
func (r *registry) live() []*box {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*box, 0, len(r.dispatches))
	for _, wp := range r.dispatches {
		if b := wp.Value(); b != nil {
			out = append(out, b)
		}
	}

	return out
}

// interestFor combines every live dispatch's opinion about meta.
// Registration runs without holding the registry lock: a collector may
// take its own locks, or create dispatches, while answering.
func (r *registry) interestFor(meta *Metadata) Interest {
	var (
		interest Interest
		seen     bool
	)
	for _, b := range r.live() {
		this := Dispatch{b: b}.RegisterCallsite(meta)
		if !seen {
			interest, seen = this, true
			continue
		}
		interest = interest.And(this)
	}
	if !seen {
		return InterestNever
	}

	return interest
}

func (r *registry) rebuild() {
	r.mu.Lock()
	r.dispatches = slices.DeleteFunc(r.dispatches, func(wp weak.Pointer[box]) bool {
		return wp.Value() == nil
	})
	r.mu.Unlock()

	widest := FilterOff
	for _, b := range r.live() {
		hint, ok := Dispatch{b: b}.MaxLevelHint()
		if !ok {
			hint = FilterTrace
		}
		widest = widest.MoreVerbose(hint)
	}
	r.max.Store(&widest)
	epoch := r.epoch.Add(1)

	logger().Debug("tracex: interest cache rebuilt", "epoch", epoch, "max_level", widest.String())
}

func (r *registry) maxLevel() LevelFilter {
	return *r.max.Load()
}

// arena keeps promoted and static collectors reachable forever.
type arena struct {
	mu    sync.Mutex
	boxes []*box
}

var immortal arena

func (a *arena) keep(b *box) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !slices.Contains(a.boxes, b) {
		a.boxes = append(a.boxes, b)
	}
}

func (a *arena) has(b *box) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Contains(a.boxes, b)
}
