package otelbridge_test

import (
	"context"
	"testing"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/otelbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
)

func TestContextWithBaggage(t *testing.T) {
	ctx, err := otelbridge.ContextWithBaggage(context.Background(), map[string]string{
		"tenant": "acme",
		"region": "eu",
	})
	require.NoError(t, err)
	bag := baggage.FromContext(ctx)
	assert.Equal(t, "acme", bag.Member("tenant").Value())
	assert.Equal(t, "eu", bag.Member("region").Value())

	ctx, err = otelbridge.ContextWithBaggage(ctx, map[string]string{"tenant": "globex"})
	require.NoError(t, err)
	assert.Equal(t, "globex", baggage.FromContext(ctx).Member("tenant").Value())
	assert.Equal(t, 2, baggage.FromContext(ctx).Len())

	same, err := otelbridge.ContextWithBaggage(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ctx, same)

	_, err = otelbridge.ContextWithBaggage(ctx, map[string]string{"bad key": "v"})
	require.Error(t, err)
}

func TestCollector_BaggageAttributes(t *testing.T) {
	h := newHarness(t, otelbridge.WithBaggageAttributes())
	d := tracex.New(h.c)
	ctx, err := otelbridge.ContextWithBaggage(context.Background(), map[string]string{"tenant": "acme"})
	require.NoError(t, err)

	tracex.WithDefault(ctx, d, func(ctx context.Context) {
		requestSite.NewSpan(ctx, attribute.String(otelbridge.NameKey, "GET /orders")).Close(ctx)
	})

	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET /orders", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("baggage.tenant", "acme"))
}

func TestNamerHelpers(t *testing.T) {
	assert.Equal(t, "operation", otelbridge.DefaultNamer{}.Name("operation"))
	assert.Equal(t, "svc:op", otelbridge.NamerFunc(func(op string) string { return "svc:" + op }).Name("op"))
	assert.Equal(t, "GET /users/{id}", otelbridge.NameHTTP("GET", "/users/{id}"))
	assert.Equal(t, "Greeter/SayHello", otelbridge.NameRPC("Greeter", "SayHello"))
	assert.Equal(t, "pkg.Greeter/SayHello", otelbridge.NameRPC("/pkg.Greeter/SayHello", ""))
}
