package logbridge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/layer"
)

// Layer writes every event it observes to a slog.Logger, annotated with
// the names of the spans it happened in.
type Layer struct {
	layer.Base
	logger *slog.Logger
}

// NewLayer returns a layer logging to logger, or to slog.Default when
// logger is nil.
func NewLayer(logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Layer{logger: logger}
}

// OnEvent logs ev. A bridged record's message field becomes the log
// message; other events use the callsite name.
func (l *Layer) OnEvent(ctx context.Context, ev *tracex.Event, lc layer.Context) {
	meta := ev.Metadata
	level := FromLevel(meta.Level)
	if !l.logger.Enabled(ctx, level) {
		return
	}

	msg := meta.Name
	attrs := make([]slog.Attr, 0, len(ev.Values)+2)
	attrs = append(attrs, slog.String("target", meta.Target))
	for _, kv := range ev.Values {
		if string(kv.Key) == FieldMessage {
			msg = kv.Value.AsString()
			continue
		}
		attrs = append(attrs, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	if scope := spanScope(ctx, ev.Parent, lc); scope != "" {
		attrs = append(attrs, slog.String("span", scope))
	}

	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

// spanScope renders the span chain of an event as "root:child:leaf".
func spanScope(ctx context.Context, parent tracex.Parent, lc layer.Context) string {
	if parent.IsRoot() {
		return ""
	}
	id, ok := parent.ID()
	if !ok {
		id, ok = lc.Current(ctx).ID()
	}
	if !ok {
		return ""
	}

	chain := lc.Scope(id)
	names := make([]string, len(chain))
	for i, span := range chain {
		names[len(chain)-1-i] = span.Metadata().Name
	}

	return strings.Join(names, ":")
}
