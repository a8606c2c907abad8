package tracex

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// SpanID identifies one live span inside the collector that minted it.
//
// An id is a strong reference to collector-held span state. It may only be
// passed to CloneSpan, TryClose and the other span operations of the same
// dispatch that returned it from NewSpan; ids are not checked against their
// minting collector.
type SpanID uint64

// NoneSpanID is the id returned by the none collector.
const NoneSpanID SpanID = 0xDEAD

// String returns the id in hexadecimal.
func (id SpanID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}

type parentKind uint8

const (
	parentContextual parentKind = iota
	parentRoot
	parentExplicit
)

// Parent selects how a new span or event finds its parent.
type Parent struct {
	kind parentKind
	id   SpanID
}

// ContextualParent lets the collector pick the current span as parent.
func ContextualParent() Parent { return Parent{kind: parentContextual} }

// RootParent makes the span or event a root.
func RootParent() Parent { return Parent{kind: parentRoot} }

// ExplicitParent uses id as the parent.
func ExplicitParent(id SpanID) Parent { return Parent{kind: parentExplicit, id: id} }

// IsContextual reports whether the collector should resolve the parent itself.
func (p Parent) IsContextual() bool { return p.kind == parentContextual }

// IsRoot reports whether there is no parent.
func (p Parent) IsRoot() bool { return p.kind == parentRoot }

// ID returns the explicit parent id, if any.
func (p Parent) ID() (SpanID, bool) {
	return p.id, p.kind == parentExplicit
}

// Attributes describe a span being created.
type Attributes struct {
	Metadata *Metadata
	Values   []attribute.KeyValue
	Parent   Parent
}

// Record carries values recorded on an existing span.
type Record struct {
	Values []attribute.KeyValue
}

// Event is one occurrence at an event callsite.
type Event struct {
	Metadata *Metadata
	Values   []attribute.KeyValue
	Parent   Parent
}

// Current is a collector's view of the caller's current span.
type Current struct {
	id    SpanID
	meta  *Metadata
	known bool
}

// NewCurrent returns a Current pointing at the span id described by meta.
func NewCurrent(id SpanID, meta *Metadata) Current {
	return Current{id: id, meta: meta, known: true}
}

// NoneCurrent means the collector knows the caller is not inside a span.
func NoneCurrent() Current { return Current{known: true} }

// UnknownCurrent means the collector does not track current spans.
func UnknownCurrent() Current { return Current{} }

// ID returns the current span id, if the caller is inside a span.
func (c Current) ID() (SpanID, bool) {
	return c.id, c.meta != nil
}

// Metadata returns the current span's metadata, or nil.
func (c Current) Metadata() *Metadata { return c.meta }

// IsKnown reports whether the collector tracks current spans at all.
func (c Current) IsKnown() bool { return c.known }
