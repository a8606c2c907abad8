// Package logbridge connects log/slog with the dispatch core.
//
// Handler is a slog.Handler that turns log records into events on five
// pre-registered callsites, one per level, so bridged records never grow
// the callsite registry. Every bridged event carries the fields message,
// log.target, log.module_path, log.file and log.line, followed by the
// record's own attributes.
//
//	logger := slog.New(logbridge.NewHandler(&logbridge.Options{Target: "myapp/db"}))
//	logger.InfoContext(ctx, "connected", "host", host)
//
// Layer goes the other way: it writes the events a collector receives to
// a slog.Logger.
package logbridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/arloliu/tracex"
	"go.opentelemetry.io/otel/attribute"
)

// Field names of a bridged event.
const (
	FieldMessage    = "message"
	FieldTarget     = "log.target"
	FieldModulePath = "log.module_path"
	FieldFile       = "log.file"
	FieldLine       = "log.line"
)

// DefaultTarget is the target of records from handlers without one.
const DefaultTarget = "log"

var fieldNames = []string{FieldMessage, FieldTarget, FieldModulePath, FieldFile, FieldLine}

func levelSite(l tracex.Level) *tracex.Callsite {
	return tracex.NewCallsite(tracex.Metadata{
		Name:   "log event",
		Target: DefaultTarget,
		Level:  l,
		Fields: fieldNames,
		Kind:   tracex.KindEvent,
	})
}

var (
	traceSite = levelSite(tracex.LevelTrace)
	debugSite = levelSite(tracex.LevelDebug)
	infoSite  = levelSite(tracex.LevelInfo)
	warnSite  = levelSite(tracex.LevelWarn)
	errorSite = levelSite(tracex.LevelError)
)

// ToLevel maps a slog level onto the five dispatch levels.
// Levels between two named slog levels round down to the more verbose one.
func ToLevel(l slog.Level) tracex.Level {
	switch {
	case l < slog.LevelDebug:
		return tracex.LevelTrace
	case l < slog.LevelInfo:
		return tracex.LevelDebug
	case l < slog.LevelWarn:
		return tracex.LevelInfo
	case l < slog.LevelError:
		return tracex.LevelWarn
	default:
		return tracex.LevelError
	}
}

// FromLevel maps a dispatch level onto slog.
func FromLevel(l tracex.Level) slog.Level {
	return slog.Level(l)
}

// Callsite returns the shared callsite for records at level l.
func Callsite(l slog.Level) *tracex.Callsite {
	switch ToLevel(l) {
	case tracex.LevelTrace:
		return traceSite
	case tracex.LevelDebug:
		return debugSite
	case tracex.LevelInfo:
		return infoSite
	case tracex.LevelWarn:
		return warnSite
	default:
		return errorSite
	}
}

// Options configures a Handler.
type Options struct {
	// Target is reported as log.target and used for filtering.
	// Defaults to DefaultTarget.
	Target string

	// AddSource resolves log.module_path, log.file and log.line from the
	// record's program counter.
	AddSource bool
}

// Handler is a slog.Handler that forwards records to the default dispatch
// of the record's context.
type Handler struct {
	target    string
	addSource bool
	attrs     []attribute.KeyValue
	prefix    string
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler returns a bridging handler. opts may be nil.
func NewHandler(opts *Options) *Handler {
	h := &Handler{target: DefaultTarget}
	if opts != nil {
		if opts.Target != "" {
			h.target = opts.Target
		}
		h.addSource = opts.AddSource
	}

	return h
}

// Enabled asks the default dispatch whether a record at level, from this
// handler's target, would be recorded.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	cs := Callsite(level)
	meta := cs.Metadata()
	if !tracex.LevelEnabled(meta.Level) || cs.Interest().IsNever() {
		return false
	}

	filter := &tracex.Metadata{
		Name:   "log record",
		Target: h.target,
		Level:  meta.Level,
		Fields: fieldNames,
		Kind:   tracex.KindEvent,
	}
	enabled := false
	tracex.GetDefault(ctx, func(ctx context.Context, d tracex.Dispatch) {
		enabled = d.Enabled(ctx, filter)
	})

	return enabled
}

// Handle dispatches r as an event on the callsite for its level.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var module, file string
	var line int
	if h.addSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		module, file, line = modulePath(frame.Function), frame.File, frame.Line
	}

	values := make([]attribute.KeyValue, 0, len(fieldNames)+len(h.attrs)+r.NumAttrs())
	values = append(values,
		attribute.String(FieldMessage, r.Message),
		attribute.String(FieldTarget, h.target),
		attribute.String(FieldModulePath, module),
		attribute.String(FieldFile, file),
		attribute.Int(FieldLine, line),
	)
	values = append(values, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		values = appendAttr(values, h.prefix, a)
		return true
	})

	meta := Callsite(r.Level).Metadata()
	tracex.GetDefault(ctx, func(ctx context.Context, d tracex.Dispatch) {
		d.Event(ctx, &tracex.Event{Metadata: meta, Values: values, Parent: tracex.ContextualParent()})
	})

	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append([]attribute.KeyValue(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, a)
	}

	return &clone
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."

	return &clone
}

// appendAttr flattens a into dotted keys.
func appendAttr(dst []attribute.KeyValue, prefix string, a slog.Attr) []attribute.KeyValue {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return dst
	}
	key := prefix + a.Key

	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		if len(group) == 0 {
			return dst
		}
		inner := key + "."
		if a.Key == "" {
			inner = prefix
		}
		for _, ga := range group {
			dst = appendAttr(dst, inner, ga)
		}

		return dst
	case slog.KindString:
		return append(dst, attribute.String(key, v.String()))
	case slog.KindInt64:
		return append(dst, attribute.Int64(key, v.Int64()))
	case slog.KindUint64:
		return append(dst, attribute.Int64(key, int64(v.Uint64()))) //nolint:gosec // attribute has no unsigned kind
	case slog.KindFloat64:
		return append(dst, attribute.Float64(key, v.Float64()))
	case slog.KindBool:
		return append(dst, attribute.Bool(key, v.Bool()))
	case slog.KindDuration:
		return append(dst, attribute.String(key, v.Duration().String()))
	case slog.KindTime:
		return append(dst, attribute.String(key, v.Time().Format(time.RFC3339Nano)))
	default:
		if err, ok := v.Any().(error); ok {
			return append(dst, attribute.String(key, err.Error()))
		}

		return append(dst, attribute.String(key, fmt.Sprint(v.Any())))
	}
}

// modulePath returns the package path of a fully qualified function name.
func modulePath(fn string) string {
	slash := strings.LastIndex(fn, "/")
	if dot := strings.Index(fn[slash+1:], "."); dot >= 0 {
		return fn[:slash+1+dot]
	}

	return fn
}
