package tracex

import (
	"slices"
)

// Kind tells whether a callsite produces spans or events.
type Kind uint8

const (
	// KindEvent marks an event callsite.
	KindEvent Kind = iota + 1
	// KindSpan marks a span callsite.
	KindSpan
)

// String returns "event" or "span".
func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindSpan:
		return "span"
	default:
		return "unknown"
	}
}

// Metadata is the static description of one instrumentation point.
//
// Metadata values are owned by their Callsite and live for the rest of the
// process; compare them by pointer.
type Metadata struct {
	Name       string
	Target     string
	Level      Level
	ModulePath string
	File       string
	Line       int
	Fields     []string
	Kind       Kind

	callsite *Callsite
}

// Callsite returns the callsite that owns this metadata, or nil for
// metadata built outside NewCallsite (for example, ad hoc filter checks).
func (m *Metadata) Callsite() *Callsite {
	return m.callsite
}

// IsSpan reports whether the metadata describes a span.
func (m *Metadata) IsSpan() bool { return m.Kind == KindSpan }

// IsEvent reports whether the metadata describes an event.
func (m *Metadata) IsEvent() bool { return m.Kind == KindEvent }

// HasField reports whether name is one of the declared fields.
func (m *Metadata) HasField(name string) bool {
	return slices.Contains(m.Fields, name)
}
