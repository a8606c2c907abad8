package tracex

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// Event emits an event at cs with a contextual parent.
func (cs *Callsite) Event(ctx context.Context, values ...attribute.KeyValue) {
	cs.emit(ctx, ContextualParent(), values)
}

// EventIn emits an event at cs whose parent is span.
func (cs *Callsite) EventIn(ctx context.Context, span *Span, values ...attribute.KeyValue) {
	p := ContextualParent()
	if id, ok := span.ID(); ok {
		p = ExplicitParent(id)
	}
	cs.emit(ctx, p, values)
}

func (cs *Callsite) emit(ctx context.Context, parent Parent, values []attribute.KeyValue) {
	if !LevelEnabled(cs.meta.Level) {
		return
	}
	interest := cs.Interest()
	if interest.IsNever() {
		return
	}

	GetDefault(ctx, func(ctx context.Context, d Dispatch) {
		if d.IsNone() {
			return
		}
		if !interest.IsAlways() && !d.Enabled(ctx, &cs.meta) {
			return
		}
		d.Event(ctx, &Event{Metadata: &cs.meta, Values: values, Parent: parent})
	})
}

// DispatchEvent delivers an event for meta to the default dispatch of ctx
// after asking it whether meta is enabled. It bypasses the interest cache
// and is meant for bridges that build events from foreign records.
func DispatchEvent(ctx context.Context, meta *Metadata, values ...attribute.KeyValue) {
	GetDefault(ctx, func(ctx context.Context, d Dispatch) {
		if d.Enabled(ctx, meta) {
			d.Event(ctx, &Event{Metadata: meta, Values: values, Parent: ContextualParent()})
		}
	})
}
