package http

import (
	"net/http"

	"github.com/arloliu/tracex/recorder"
	"go.opentelemetry.io/otel/attribute"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func ops(entries []recorder.Entry) []recorder.Op {
	out := make([]recorder.Op, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Op)
	}

	return out
}

func valueOf(e recorder.Entry, key string) (attribute.Value, bool) {
	for _, kv := range e.Values {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}
