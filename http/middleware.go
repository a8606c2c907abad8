package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/otelbridge"
	"github.com/felixge/httpsnoop"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Target is the target of every span this package creates.
const Target = "tracex/http"

// Span fields of the request callsites.
var fields = []string{
	string(semconv.HTTPRequestMethodKey),
	string(semconv.URLPathKey),
	string(semconv.URLFullKey),
	string(semconv.HTTPRouteKey),
	string(semconv.HTTPResponseStatusCodeKey),
	otelbridge.KindKey,
	otelbridge.NameKey,
	otelbridge.ErrorKey,
}

var (
	// ServerCallsite opens one span per served request.
	ServerCallsite = tracex.NewSpanCallsite("http.server.request", Target, tracex.LevelInfo, fields...)
	// ClientCallsite opens one span per outgoing request.
	ClientCallsite = tracex.NewSpanCallsite("http.client.request", Target, tracex.LevelInfo, fields...)
)

// Handler wraps handler so every request runs inside a span named
// operation.
//
// Usage:
//
//	http.Handle("/api", tracexhttp.Handler(myHandler, "api.request"))
func Handler(handler http.Handler, operation string, opts ...Option) http.Handler {
	cfg := newConfig(opts)

	return cfg.wrapServer(&serverHandler{next: handler, cfg: cfg, operation: operation}, operation)
}

// Middleware returns middleware that runs every request inside a span.
// The span is named after the request method and renamed to
// "METHOD /route" once an http.ServeMux matched a pattern.
//
// Usage:
//
//	http.ListenAndServe(addr, tracexhttp.Middleware()(mux))
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)

	return func(next http.Handler) http.Handler {
		return cfg.wrapServer(&serverHandler{next: next, cfg: cfg}, "http.request")
	}
}

func (c *config) wrapServer(h http.Handler, operation string) http.Handler {
	if c.mp == nil {
		return h
	}

	return otelhttp.NewHandler(h, operation, c.metricsOptions()...)
}

type serverHandler struct {
	next      http.Handler
	cfg       *config
	operation string
}

func (h *serverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.skip(r) {
		h.next.ServeHTTP(w, r)
		return
	}

	h.cfg.scope(r.Context(), func(ctx context.Context) {
		ctx = h.cfg.extract(ctx, r.Header)

		name := h.operation
		if name == "" {
			name = r.Method
		}
		span := ServerCallsite.NewSpan(ctx,
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLPathKey.String(r.URL.Path),
			attribute.String(otelbridge.KindKey, "server"),
			attribute.String(otelbridge.NameKey, h.cfg.namer.Name(name)),
		)
		defer span.Close(ctx)

		req := r
		var m httpsnoop.Metrics
		span.InScope(ctx, func(ctx context.Context) {
			req = r.WithContext(ctx)
			m = httpsnoop.CaptureMetrics(h.next, w, req)
		})

		values := []attribute.KeyValue{semconv.HTTPResponseStatusCodeKey.Int(m.Code)}
		if route := routeOf(req.Pattern); route != "" {
			values = append(values, semconv.HTTPRouteKey.String(route))
			if h.operation == "" {
				values = append(values, attribute.String(otelbridge.NameKey, h.cfg.namer.Name(otelbridge.NameHTTP(r.Method, route))))
			}
		}
		if m.Code >= http.StatusInternalServerError {
			values = append(values, attribute.String(otelbridge.ErrorKey, http.StatusText(m.Code)))
		}
		span.Record(ctx, values...)
	})
}

// routeOf strips the method and host of a ServeMux pattern.
func routeOf(pattern string) string {
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}

	return pattern
}
