package otelbridge

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
)

// BaggagePrefix prefixes baggage keys copied onto spans.
const BaggagePrefix = "baggage."

// ContextWithBaggage returns ctx with members merged into its W3C
// baggage, replacing members with the same key. Nothing is applied when
// any key or value is invalid.
func ContextWithBaggage(ctx context.Context, members map[string]string) (context.Context, error) {
	if len(members) == 0 {
		return ctx, nil
	}

	bag := baggage.FromContext(ctx)
	for _, key := range slices.Sorted(maps.Keys(members)) {
		m, err := baggage.NewMember(key, members[key])
		if err != nil {
			return ctx, fmt.Errorf("baggage member %q: %w", key, err)
		}
		if bag, err = bag.SetMember(m); err != nil {
			return ctx, fmt.Errorf("baggage member %q: %w", key, err)
		}
	}

	return baggage.ContextWithBaggage(ctx, bag), nil
}

// baggageAttributes returns the baggage members of ctx as attributes,
// sorted by key.
func baggageAttributes(ctx context.Context) []attribute.KeyValue {
	members := baggage.FromContext(ctx).Members()
	if len(members) == 0 {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, len(members))
	for _, m := range members {
		attrs = append(attrs, attribute.String(BaggagePrefix+m.Key(), m.Value()))
	}
	slices.SortFunc(attrs, func(a, b attribute.KeyValue) int { return strings.Compare(string(a.Key), string(b.Key)) })

	return attrs
}
