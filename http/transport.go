package http

import (
	"context"
	"net/http"

	"github.com/arloliu/tracex/otelbridge"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Transport wraps an http.RoundTripper so every outgoing request runs
// inside a client span and carries its trace context in the headers.
//
// If base is nil, http.DefaultTransport is used.
//
// Usage:
//
//	client := &http.Client{
//	    Transport: tracexhttp.Transport(http.DefaultTransport),
//	}
func Transport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	cfg := newConfig(opts)
	if cfg.mp != nil {
		base = otelhttp.NewTransport(base, cfg.metricsOptions()...)
	}

	return &transport{base: base, cfg: cfg}
}

type transport struct {
	base http.RoundTripper
	cfg  *config
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.cfg.skip(r) {
		return t.base.RoundTrip(r)
	}

	var resp *http.Response
	var err error
	t.cfg.scope(r.Context(), func(ctx context.Context) {
		span := ClientCallsite.NewSpan(ctx,
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLFullKey.String(redactedURL(r)),
			attribute.String(otelbridge.KindKey, "client"),
			attribute.String(otelbridge.NameKey, t.cfg.namer.Name("HTTP "+r.Method)),
		)
		defer span.Close(ctx)

		span.InScope(ctx, func(ctx context.Context) {
			req := r.Clone(ctx)
			t.cfg.inject(ctx, req.Header)
			resp, err = t.base.RoundTrip(req)
		})

		switch {
		case err != nil:
			span.Record(ctx, attribute.String(otelbridge.ErrorKey, err.Error()))
		case resp.StatusCode >= http.StatusBadRequest:
			span.Record(ctx,
				semconv.HTTPResponseStatusCodeKey.Int(resp.StatusCode),
				attribute.String(otelbridge.ErrorKey, http.StatusText(resp.StatusCode)),
			)
		default:
			span.Record(ctx, semconv.HTTPResponseStatusCodeKey.Int(resp.StatusCode))
		}
	})

	return resp, err
}

// redactedURL drops user info and the query string from the request URL.
func redactedURL(r *http.Request) string {
	u := *r.URL
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false

	return u.String()
}
