package otelbridge_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/layer"
	"github.com/arloliu/tracex/otelbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

var (
	requestSite = tracex.NewSpanCallsite("request", "otelbridge/test", tracex.LevelInfo)
	querySite   = tracex.NewSpanCallsite("query", "otelbridge/test", tracex.LevelDebug)
	rowsSite    = tracex.NewEventCallsite("rows", "otelbridge/test", tracex.LevelInfo)
	failSite    = tracex.NewEventCallsite("failed", "otelbridge/test", tracex.LevelError)
)

// logSink keeps every exported log record.
type logSink struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (s *logSink) Export(_ context.Context, records []sdklog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records = append(s.records, r.Clone())
	}

	return nil
}

func (s *logSink) Shutdown(context.Context) error   { return nil }
func (s *logSink) ForceFlush(context.Context) error { return nil }

func (s *logSink) all() []sdklog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]sdklog.Record(nil), s.records...)
}

type harness struct {
	spans  *tracetest.SpanRecorder
	logs   *logSink
	reader *sdkmetric.ManualReader
	c      *otelbridge.Collector
}

func newHarness(t *testing.T, opts ...otelbridge.Option) *harness {
	t.Helper()

	h := &harness{
		spans:  tracetest.NewSpanRecorder(),
		logs:   &logSink{},
		reader: sdkmetric.NewManualReader(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(h.logs)))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	t.Cleanup(func() {
		ctx := context.Background()
		_ = tp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
	})

	opts = append([]otelbridge.Option{
		otelbridge.WithTracerProvider(tp),
		otelbridge.WithLoggerProvider(lp),
		otelbridge.WithMeterProvider(mp),
	}, opts...)
	h.c = otelbridge.New(opts...)

	return h
}

func (h *harness) counter(t *testing.T, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	return total
}

func byName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}

	return nil
}

func TestCollector_SpanTree(t *testing.T) {
	h := newHarness(t)
	d := tracex.New(h.c)

	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		req := requestSite.NewSpan(ctx, attribute.String("route", "/users"), attribute.String(otelbridge.KindKey, "server"))
		req.InScope(ctx, func(ctx context.Context) {
			q := querySite.NewSpan(ctx)
			q.InScope(ctx, func(ctx context.Context) {
				rowsSite.Event(ctx, attribute.Int("count", 3))
			})
			q.Close(ctx)
		})
		req.Close(ctx)
	})

	ended := h.spans.Ended()
	require.Len(t, ended, 2)
	req, q := byName(ended, "request"), byName(ended, "query")
	require.NotNil(t, req)
	require.NotNil(t, q)

	assert.Equal(t, trace.SpanKindServer, req.SpanKind())
	assert.Contains(t, req.Attributes(), attribute.String("route", "/users"))
	assert.Contains(t, req.Attributes(), attribute.String("tracex.target", "otelbridge/test"))
	assert.Equal(t, req.SpanContext().SpanID(), q.Parent().SpanID())
	assert.Equal(t, req.SpanContext().TraceID(), q.SpanContext().TraceID())

	require.Len(t, q.Events(), 1)
	assert.Equal(t, "rows", q.Events()[0].Name)
	assert.Contains(t, q.Events()[0].Attributes, attribute.Int("count", 3))
	assert.Zero(t, h.c.Len())
}

func TestCollector_EndsOnLastReference(t *testing.T) {
	h := newHarness(t)
	d := tracex.New(h.c)

	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		span := requestSite.NewSpan(ctx)
		clone := span.Clone(ctx)

		assert.False(t, span.Close(ctx))
		assert.Empty(t, h.spans.Ended())
		assert.Equal(t, 1, h.c.Len())

		assert.True(t, clone.Close(ctx))
		assert.Len(t, h.spans.Ended(), 1)
	})

	assert.EqualValues(t, 1, h.counter(t, "tracex.spans.started"))
	assert.EqualValues(t, 1, h.counter(t, "tracex.spans.closed"))
}

func TestCollector_RemoteParent(t *testing.T) {
	h := newHarness(t)
	d := tracex.New(h.c)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	headers := http.Header{}
	headers.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := otelbridge.ExtractHTTP(context.Background(), headers)

	tracex.WithDefault(ctx, d, func(ctx context.Context) {
		requestSite.NewSpan(ctx).Close(ctx)
		requestSite.NewRootSpan(ctx).Close(ctx)
	})

	ended := h.spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ended[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", ended[0].Parent().SpanID().String())
	assert.True(t, ended[0].Parent().IsRemote())
	assert.False(t, ended[1].Parent().IsValid(), "root spans ignore the remote context")
}

func TestCollector_FollowsFromAndErrors(t *testing.T) {
	h := newHarness(t)
	d := tracex.New(h.c)

	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		first := requestSite.NewRootSpan(ctx)
		second := requestSite.NewRootSpan(ctx)
		second.FollowsFrom(ctx, first)
		second.Record(ctx, attribute.String(otelbridge.ErrorKey, "timeout"))
		first.InScope(ctx, func(ctx context.Context) {
			failSite.Event(ctx, attribute.String(otelbridge.MessageKey, "disk full"))
		})
		first.Close(ctx)
		second.Close(ctx)
	})

	ended := h.spans.Ended()
	require.Len(t, ended, 2)
	first, second := ended[0], ended[1]

	require.Len(t, second.Links(), 1)
	assert.Equal(t, first.SpanContext().SpanID(), second.Links()[0].SpanContext.SpanID())
	assert.Equal(t, codes.Error, second.Status().Code)
	assert.Equal(t, "timeout", second.Status().Description)
	assert.Equal(t, codes.Error, first.Status().Code)
	assert.Equal(t, "disk full", first.Status().Description)
}

func TestCollector_EventsBecomeLogRecords(t *testing.T) {
	h := newHarness(t)
	d := tracex.New(h.c)

	var spanCtx trace.SpanContext
	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		span := requestSite.NewSpan(ctx)
		id, _ := span.ID()
		spanCtx, _ = h.c.SpanContext(id)
		span.InScope(ctx, func(ctx context.Context) {
			failSite.Event(ctx, attribute.String(otelbridge.MessageKey, "boom"), attribute.Int("attempt", 2))
		})
		span.Close(ctx)
		rowsSite.Event(ctx)
	})

	records := h.logs.all()
	require.Len(t, records, 2)

	rec := records[0]
	assert.Equal(t, "boom", rec.Body().AsString())
	assert.Equal(t, otellog.SeverityError, rec.Severity())
	assert.Equal(t, spanCtx.TraceID(), rec.TraceID())
	assert.Equal(t, spanCtx.SpanID(), rec.SpanID())

	attrs := map[string]otellog.Value{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	assert.Equal(t, int64(2), attrs["attempt"].AsInt64())
	assert.Equal(t, "otelbridge/test", attrs["tracex.target"].AsString())
	assert.NotContains(t, attrs, otelbridge.MessageKey)

	assert.Equal(t, "rows", records[1].Body().AsString())
	assert.False(t, records[1].TraceID().IsValid())
	assert.EqualValues(t, 2, h.counter(t, "tracex.events"))
}

func TestCollector_Level(t *testing.T) {
	h := newHarness(t, otelbridge.WithLevel(tracex.FilterInfo))

	assert.Equal(t, tracex.InterestNever, h.c.RegisterCallsite(querySite.Metadata()))
	assert.Equal(t, tracex.InterestAlways, h.c.RegisterCallsite(requestSite.Metadata()))
	hint, ok := h.c.MaxLevelHint()
	require.True(t, ok)
	assert.Equal(t, tracex.FilterInfo, hint)
}

func TestInjectHTTP_ThroughLayers(t *testing.T) {
	h := newHarness(t)
	d := tracex.New(layer.With(h.c, layer.Base{}))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	c, ok := otelbridge.Unwrap(d.Collector())
	require.True(t, ok)
	assert.Same(t, h.c, c)

	headers := http.Header{}
	tracex.WithDefault(context.Background(), d, func(ctx context.Context) {
		span := requestSite.NewSpan(ctx)
		span.InScope(ctx, func(ctx context.Context) {
			otelbridge.InjectHTTP(ctx, headers)
		})
		span.Close(ctx)
	})

	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	sc := ended[0].SpanContext()
	assert.Equal(t, "00-"+sc.TraceID().String()+"-"+sc.SpanID().String()+"-01", headers.Get("traceparent"))
}
