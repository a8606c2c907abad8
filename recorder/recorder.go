// Package recorder provides an in-memory collector that keeps the most
// recent notifications in a bounded ring.
//
// It is meant for tests, demos and debugging endpoints: every span
// lifecycle step and every event becomes an Entry that can be inspected
// later. When the ring is full the oldest entry is dropped and counted.
package recorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/tracex"
	"github.com/eapache/queue"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 1024

// Op identifies what an Entry records.
type Op uint8

// Recorded operations.
const (
	OpNewSpan Op = iota + 1
	OpRecord
	OpFollowsFrom
	OpEvent
	OpEnter
	OpExit
	OpClose
)

func (o Op) String() string {
	switch o {
	case OpNewSpan:
		return "new_span"
	case OpRecord:
		return "record"
	case OpFollowsFrom:
		return "follows_from"
	case OpEvent:
		return "event"
	case OpEnter:
		return "enter"
	case OpExit:
		return "exit"
	case OpClose:
		return "close"
	default:
		return "unknown"
	}
}

// Entry is one recorded notification.
type Entry struct {
	Op     Op
	Time   time.Time
	SpanID tracex.SpanID
	// Parent is the explicit or contextual parent of a new span or event.
	Parent    tracex.SpanID
	HasParent bool
	// Follows is the other side of a follows-from edge.
	Follows tracex.SpanID
	Name    string
	Target  string
	Level   tracex.Level
	Values  []attribute.KeyValue
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithCapacity bounds the ring. Non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithClock sets the clock used for entry timestamps.
func WithClock(c clockz.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithLevel only records spans and events enabled by f.
func WithLevel(f tracex.LevelFilter) Option {
	return func(r *Recorder) { r.level = &f }
}

type spanState struct {
	meta *tracex.Metadata
	refs int
}

// Recorder is a collector keeping recent notifications in memory.
type Recorder struct {
	capacity int
	clock    clockz.Clock
	level    *tracex.LevelFilter

	mu    sync.Mutex
	ring  *queue.Queue
	spans map[tracex.SpanID]*spanState

	next    atomic.Uint64
	dropped atomic.Uint64
}

var (
	_ tracex.Collector          = (*Recorder)(nil)
	_ tracex.CallsiteRegisterer = (*Recorder)(nil)
	_ tracex.LevelHinter        = (*Recorder)(nil)
	_ tracex.SpanCloner         = (*Recorder)(nil)
	_ tracex.SpanCloser         = (*Recorder)(nil)
	_ tracex.CurrentSpanner     = (*Recorder)(nil)
)

// New returns an empty recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		capacity: DefaultCapacity,
		clock:    clockz.RealClock,
		ring:     queue.New(),
		spans:    make(map[tracex.SpanID]*spanState),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RegisterCallsite applies the level filter, if any.
func (r *Recorder) RegisterCallsite(meta *tracex.Metadata) tracex.Interest {
	if r.level == nil || r.level.Enables(meta.Level) {
		return tracex.InterestAlways
	}

	return tracex.InterestNever
}

// MaxLevelHint returns the level filter, if any.
func (r *Recorder) MaxLevelHint() (tracex.LevelFilter, bool) {
	if r.level == nil {
		return tracex.LevelFilter{}, false
	}

	return *r.level, true
}

// Enabled applies the level filter, if any.
func (r *Recorder) Enabled(_ context.Context, meta *tracex.Metadata) bool {
	return r.level == nil || r.level.Enables(meta.Level)
}

// NewSpan records the span and returns a fresh id holding one reference.
func (r *Recorder) NewSpan(ctx context.Context, attrs *tracex.Attributes) tracex.SpanID {
	id := tracex.SpanID(r.next.Add(1))
	if id == tracex.NoneSpanID {
		id = tracex.SpanID(r.next.Add(1))
	}

	e := r.entry(OpNewSpan, id, attrs.Metadata, attrs.Values)
	e.Parent, e.HasParent = r.parentOf(ctx, attrs.Parent)

	r.mu.Lock()
	r.spans[id] = &spanState{meta: attrs.Metadata, refs: 1}
	r.push(e)
	r.mu.Unlock()

	return id
}

func (r *Recorder) Record(_ context.Context, id tracex.SpanID, values *tracex.Record) {
	r.add(r.entry(OpRecord, id, r.metaOf(id), values.Values))
}

func (r *Recorder) RecordFollowsFrom(_ context.Context, id, follows tracex.SpanID) {
	e := r.entry(OpFollowsFrom, id, r.metaOf(id), nil)
	e.Follows = follows
	r.add(e)
}

func (r *Recorder) Event(ctx context.Context, ev *tracex.Event) {
	e := r.entry(OpEvent, 0, ev.Metadata, ev.Values)
	e.Parent, e.HasParent = r.parentOf(ctx, ev.Parent)
	r.add(e)
}

func (r *Recorder) Enter(_ context.Context, id tracex.SpanID) {
	r.add(r.entry(OpEnter, id, r.metaOf(id), nil))
}

func (r *Recorder) Exit(_ context.Context, id tracex.SpanID) {
	r.add(r.entry(OpExit, id, r.metaOf(id), nil))
}

// CloneSpan adds a reference to id.
func (r *Recorder) CloneSpan(_ context.Context, id tracex.SpanID) tracex.SpanID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.spans[id]; ok {
		s.refs++
	}

	return id
}

// TryClose drops a reference to id and records the close of the last one.
func (r *Recorder) TryClose(_ context.Context, id tracex.SpanID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.spans[id]
	if !ok {
		return false
	}
	s.refs--
	if s.refs > 0 {
		return false
	}
	delete(r.spans, id)
	r.push(r.entry(OpClose, id, s.meta, nil))

	return true
}

// CurrentSpan returns the span most recently entered in ctx if this
// recorder minted it.
func (r *Recorder) CurrentSpan(ctx context.Context) tracex.Current {
	span := tracex.SpanFromContext(ctx)
	id, ok := span.ID()
	if !ok {
		return tracex.NoneCurrent()
	}

	r.mu.Lock()
	s, found := r.spans[id]
	r.mu.Unlock()
	if !found || s.meta != span.Metadata() {
		return tracex.NoneCurrent()
	}

	return tracex.NewCurrent(id, s.meta)
}

// Entries returns the recorded entries, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, r.ring.Length())
	for i := range r.ring.Length() {
		out = append(out, r.ring.Get(i).(Entry))
	}

	return out
}

// Drain returns the recorded entries and empties the ring.
func (r *Recorder) Drain() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, r.ring.Length())
	for r.ring.Length() > 0 {
		out = append(out, r.ring.Remove().(Entry))
	}

	return out
}

// Len returns the number of entries in the ring.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ring.Length()
}

// OpenSpans returns the number of spans with outstanding references.
func (r *Recorder) OpenSpans() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.spans)
}

// Dropped returns how many entries were evicted because the ring was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) entry(op Op, id tracex.SpanID, meta *tracex.Metadata, values []attribute.KeyValue) Entry {
	e := Entry{
		Op:     op,
		Time:   r.clock.Now(),
		SpanID: id,
		Values: append([]attribute.KeyValue(nil), values...),
	}
	if meta != nil {
		e.Name, e.Target, e.Level = meta.Name, meta.Target, meta.Level
	}

	return e
}

func (r *Recorder) add(e Entry) {
	r.mu.Lock()
	r.push(e)
	r.mu.Unlock()
}

// push appends e, evicting the oldest entry when full. Callers hold mu.
func (r *Recorder) push(e Entry) {
	if r.ring.Length() >= r.capacity {
		r.ring.Remove()
		r.dropped.Add(1)
	}
	r.ring.Add(e)
}

func (r *Recorder) metaOf(id tracex.SpanID) *tracex.Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.spans[id]; ok {
		return s.meta
	}

	return nil
}

func (r *Recorder) parentOf(ctx context.Context, p tracex.Parent) (tracex.SpanID, bool) {
	switch {
	case p.IsRoot():
		return 0, false
	case p.IsContextual():
		return r.CurrentSpan(ctx).ID()
	default:
		return p.ID()
	}
}
