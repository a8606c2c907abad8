// Package otelbridge forwards dispatch spans and events to OpenTelemetry.
//
// Collector starts one OTel span per dispatch span and ends it when the
// last reference is closed. Events become span events on their parent span
// and OTel log records; counters of started and closed spans and of events
// go to an OTel meter.
//
//	providers, err := otelbridge.NewProviders(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer providers.Shutdown(ctx)
//
//	c := otelbridge.New(providers.Options()...)
//	_ = tracex.SetGlobalDefault(tracex.New(c))
//
// The package also builds the SDK providers, console exporters and
// propagators from a tracex.Config, and injects bridged spans into
// outgoing HTTP headers and gRPC metadata.
package otelbridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/tracex"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of the bridge's tracer, logger and
// meter.
const ScopeName = "github.com/arloliu/tracex/otelbridge"

// Well-known value keys interpreted by the bridge.
const (
	// MessageKey holds the body of an event's log record.
	MessageKey = "message"
	// KindKey selects the OTel span kind: "server", "client", "producer",
	// "consumer" or "internal".
	KindKey = "span.kind"
	// ErrorKey marks a span as failed with the value as description.
	ErrorKey = "error"
	// NameKey overrides the OTel span name, which defaults to the
	// callsite name.
	NameKey = "otel.name"
)

// Option configures a Collector.
type Option func(*options)

type options struct {
	tp      trace.TracerProvider
	lp      otellog.LoggerProvider
	mp      metric.MeterProvider
	level   *tracex.LevelFilter
	baggage bool
}

// WithTracerProvider sets the tracer provider. Defaults to the OTel global.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithLoggerProvider sets the logger provider. Defaults to the OTel global.
func WithLoggerProvider(lp otellog.LoggerProvider) Option {
	return func(o *options) { o.lp = lp }
}

// WithMeterProvider sets the meter provider. Defaults to the OTel global.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// WithLevel only enables spans and events at or above f.
func WithLevel(f tracex.LevelFilter) Option {
	return func(o *options) { o.level = &f }
}

// WithBaggageAttributes copies the W3C baggage members of the span's
// context onto every new OTel span as "baggage.<key>" attributes.
func WithBaggageAttributes() Option {
	return func(o *options) { o.baggage = true }
}

// bridged is one live dispatch span and its OTel counterpart.
type bridged struct {
	meta *tracex.Metadata
	span trace.Span
	refs atomic.Int64
}

// Collector is a tracex.Collector backed by OpenTelemetry.
type Collector struct {
	tracer  trace.Tracer
	logger  otellog.Logger
	level   *tracex.LevelFilter
	baggage bool

	started metric.Int64Counter
	closed  metric.Int64Counter
	events  metric.Int64Counter

	next  atomic.Uint64
	spans sync.Map // tracex.SpanID -> *bridged
}

var (
	_ tracex.Collector          = (*Collector)(nil)
	_ tracex.CallsiteRegisterer = (*Collector)(nil)
	_ tracex.LevelHinter        = (*Collector)(nil)
	_ tracex.SpanCloner         = (*Collector)(nil)
	_ tracex.SpanCloser         = (*Collector)(nil)
	_ tracex.CurrentSpanner     = (*Collector)(nil)
)

// New returns a bridge collector.
func New(opts ...Option) *Collector {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}
	if o.lp == nil {
		o.lp = global.GetLoggerProvider()
	}
	if o.mp == nil {
		o.mp = otel.GetMeterProvider()
	}

	c := &Collector{
		tracer:  o.tp.Tracer(ScopeName),
		logger:  o.lp.Logger(ScopeName),
		level:   o.level,
		baggage: o.baggage,
	}

	meter := o.mp.Meter(ScopeName)
	var err error
	if c.started, err = meter.Int64Counter("tracex.spans.started",
		metric.WithDescription("Spans started through the bridge"), metric.WithUnit("{span}")); err != nil {
		otel.Handle(err)
	}
	if c.closed, err = meter.Int64Counter("tracex.spans.closed",
		metric.WithDescription("Spans ended after their last reference closed"), metric.WithUnit("{span}")); err != nil {
		otel.Handle(err)
	}
	if c.events, err = meter.Int64Counter("tracex.events",
		metric.WithDescription("Events forwarded through the bridge"), metric.WithUnit("{event}")); err != nil {
		otel.Handle(err)
	}

	return c
}

// RegisterCallsite applies the level filter, if any.
func (c *Collector) RegisterCallsite(meta *tracex.Metadata) tracex.Interest {
	if c.level != nil && !c.level.Enables(meta.Level) {
		return tracex.InterestNever
	}

	return tracex.InterestAlways
}

// MaxLevelHint returns the level filter, if any.
func (c *Collector) MaxLevelHint() (tracex.LevelFilter, bool) {
	if c.level == nil {
		return tracex.LevelFilter{}, false
	}

	return *c.level, true
}

func (c *Collector) Enabled(_ context.Context, meta *tracex.Metadata) bool {
	return c.level == nil || c.level.Enables(meta.Level)
}

// NewSpan starts an OTel span. An explicit or contextual dispatch parent
// becomes the OTel parent; otherwise an OTel span context carried by ctx,
// such as one extracted from a remote request, is used.
func (c *Collector) NewSpan(ctx context.Context, attrs *tracex.Attributes) tracex.SpanID {
	meta := attrs.Metadata
	parentCtx := ctx
	opts := []trace.SpanStartOption{
		trace.WithSpanKind(spanKind(attrs.Values)),
		trace.WithAttributes(attrs.Values...),
		trace.WithAttributes(
			attribute.String("tracex.target", meta.Target),
			attribute.String("tracex.level", meta.Level.String()),
		),
	}

	switch {
	case attrs.Parent.IsRoot():
		opts = append(opts, trace.WithNewRoot())
	default:
		if parent, ok := c.parentOf(ctx, attrs.Parent); ok {
			parentCtx = trace.ContextWithSpan(ctx, parent.span)
		}
	}

	if c.baggage {
		opts = append(opts, trace.WithAttributes(baggageAttributes(ctx)...))
	}

	_, span := c.tracer.Start(parentCtx, spanName(meta, attrs.Values), opts...)

	id := tracex.SpanID(c.next.Add(1))
	if id == tracex.NoneSpanID {
		id = tracex.SpanID(c.next.Add(1))
	}
	b := &bridged{meta: meta, span: span}
	b.refs.Store(1)
	c.spans.Store(id, b)

	c.add(ctx, c.started, meta)

	return id
}

// Record sets values as span attributes. An ErrorKey value also marks the
// span as failed and a NameKey value renames it.
func (c *Collector) Record(_ context.Context, id tracex.SpanID, values *tracex.Record) {
	b, ok := c.get(id)
	if !ok {
		return
	}
	b.span.SetAttributes(values.Values...)
	for _, kv := range values.Values {
		switch string(kv.Key) {
		case ErrorKey:
			b.span.SetStatus(codes.Error, kv.Value.Emit())
		case NameKey:
			b.span.SetName(kv.Value.AsString())
		}
	}
}

// RecordFollowsFrom links span id to follows.
func (c *Collector) RecordFollowsFrom(_ context.Context, id, follows tracex.SpanID) {
	b, ok := c.get(id)
	if !ok {
		return
	}
	f, ok := c.get(follows)
	if !ok {
		return
	}
	b.span.AddLink(trace.Link{SpanContext: f.span.SpanContext()})
}

// Event adds a span event to the event's parent span, if any, and emits an
// OTel log record correlated with it. Error events mark the parent span as
// failed.
func (c *Collector) Event(ctx context.Context, ev *tracex.Event) {
	meta := ev.Metadata
	msg := meta.Name
	for _, kv := range ev.Values {
		if string(kv.Key) == MessageKey {
			msg = kv.Value.Emit()
			break
		}
	}

	logCtx := ctx
	if parent, ok := c.parentOf(ctx, ev.Parent); ok {
		parent.span.AddEvent(meta.Name, trace.WithAttributes(ev.Values...))
		if meta.Level >= tracex.LevelError {
			parent.span.SetStatus(codes.Error, msg)
		}
		logCtx = trace.ContextWithSpan(ctx, parent.span)
	} else if ev.Parent.IsRoot() {
		logCtx = trace.ContextWithSpanContext(ctx, trace.SpanContext{})
	}

	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(severity(meta.Level))
	rec.SetSeverityText(meta.Level.String())
	rec.SetBody(otellog.StringValue(msg))
	rec.AddAttributes(otellog.String("tracex.target", meta.Target))
	for _, kv := range ev.Values {
		if string(kv.Key) == MessageKey {
			continue
		}
		rec.AddAttributes(logKeyValue(kv))
	}
	c.logger.Emit(logCtx, rec)

	c.add(ctx, c.events, meta)
}

// Enter is a no-op; OTel spans have no notion of being entered.
func (c *Collector) Enter(context.Context, tracex.SpanID) {}

// Exit is a no-op.
func (c *Collector) Exit(context.Context, tracex.SpanID) {}

// CloneSpan adds a reference to id.
func (c *Collector) CloneSpan(_ context.Context, id tracex.SpanID) tracex.SpanID {
	if b, ok := c.get(id); ok {
		b.refs.Add(1)
	}

	return id
}

// TryClose drops a reference to id and ends the OTel span when it was the
// last one.
func (c *Collector) TryClose(ctx context.Context, id tracex.SpanID) bool {
	b, ok := c.get(id)
	if !ok {
		return false
	}
	if b.refs.Add(-1) != 0 {
		return false
	}
	c.spans.Delete(id)
	b.span.End()
	c.add(ctx, c.closed, b.meta)

	return true
}

// CurrentSpan returns the bridged span current in ctx.
func (c *Collector) CurrentSpan(ctx context.Context) tracex.Current {
	span := tracex.SpanFromContext(ctx)
	id, ok := span.ID()
	if !ok {
		return tracex.NoneCurrent()
	}
	b, found := c.get(id)
	if !found || b.meta != span.Metadata() {
		return tracex.NoneCurrent()
	}

	return tracex.NewCurrent(id, b.meta)
}

// SpanContext returns the OTel span context of the live span id.
func (c *Collector) SpanContext(id tracex.SpanID) (trace.SpanContext, bool) {
	b, ok := c.get(id)
	if !ok {
		return trace.SpanContext{}, false
	}

	return b.span.SpanContext(), true
}

// Len returns the number of live spans.
func (c *Collector) Len() int {
	n := 0
	c.spans.Range(func(any, any) bool {
		n++
		return true
	})

	return n
}

func (c *Collector) get(id tracex.SpanID) (*bridged, bool) {
	v, ok := c.spans.Load(id)
	if !ok {
		return nil, false
	}

	return v.(*bridged), true
}

func (c *Collector) parentOf(ctx context.Context, p tracex.Parent) (*bridged, bool) {
	switch {
	case p.IsRoot():
		return nil, false
	case p.IsContextual():
		id, ok := c.CurrentSpan(ctx).ID()
		if !ok {
			return nil, false
		}

		return c.get(id)
	default:
		id, _ := p.ID()
		return c.get(id)
	}
}

func (c *Collector) add(ctx context.Context, counter metric.Int64Counter, meta *tracex.Metadata) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", meta.Target),
		attribute.String("level", meta.Level.String()),
	))
}

// Unwrap walks collector wrappers exposing Inner, such as layer.Layered,
// and returns the bridge collector underneath.
func Unwrap(c tracex.Collector) (*Collector, bool) {
	for c != nil {
		switch v := c.(type) {
		case *Collector:
			return v, true
		case interface{ Inner() tracex.Collector }:
			c = v.Inner()
		default:
			return nil, false
		}
	}

	return nil, false
}

// ContextWithOTelSpan returns ctx with the OTel span of the bridged span
// current in ctx, so OTel propagators and instrumentation see it. ctx is
// returned unchanged when the current span is not bridged.
func ContextWithOTelSpan(ctx context.Context) context.Context {
	span := tracex.SpanFromContext(ctx)
	id, ok := span.ID()
	if !ok {
		return ctx
	}
	c, ok := Unwrap(span.Dispatch().Collector())
	if !ok {
		return ctx
	}
	b, ok := c.get(id)
	if !ok {
		return ctx
	}

	return trace.ContextWithSpan(ctx, b.span)
}

func spanName(meta *tracex.Metadata, values []attribute.KeyValue) string {
	for _, kv := range values {
		if string(kv.Key) == NameKey && kv.Value.AsString() != "" {
			return kv.Value.AsString()
		}
	}

	return meta.Name
}

func spanKind(values []attribute.KeyValue) trace.SpanKind {
	for _, kv := range values {
		if string(kv.Key) != KindKey {
			continue
		}
		switch kv.Value.AsString() {
		case "server":
			return trace.SpanKindServer
		case "client":
			return trace.SpanKindClient
		case "producer":
			return trace.SpanKindProducer
		case "consumer":
			return trace.SpanKindConsumer
		}
	}

	return trace.SpanKindInternal
}

func severity(l tracex.Level) otellog.Severity {
	switch {
	case l <= tracex.LevelTrace:
		return otellog.SeverityTrace
	case l <= tracex.LevelDebug:
		return otellog.SeverityDebug
	case l <= tracex.LevelInfo:
		return otellog.SeverityInfo
	case l <= tracex.LevelWarn:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityError
	}
}

func logKeyValue(kv attribute.KeyValue) otellog.KeyValue {
	key := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.BOOL:
		return otellog.Bool(key, kv.Value.AsBool())
	case attribute.INT64:
		return otellog.Int64(key, kv.Value.AsInt64())
	case attribute.FLOAT64:
		return otellog.Float64(key, kv.Value.AsFloat64())
	case attribute.STRING:
		return otellog.String(key, kv.Value.AsString())
	default:
		return otellog.String(key, kv.Value.Emit())
	}
}
