package http

import (
	"net"
	"net/http"
	"time"
)

// ClientConfig tunes the transport behind NewClient. Zero fields keep the
// value of the base transport. The tags let it be loaded with fuda as part
// of a larger configuration file.
type ClientConfig struct {
	// Timeout bounds a whole request, including reading the body.
	Timeout time.Duration `yaml:"timeout"`

	DialTimeout           time.Duration `yaml:"dialTimeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tlsHandshakeTimeout"`
	ResponseHeaderTimeout time.Duration `yaml:"responseHeaderTimeout"`
	ExpectContinueTimeout time.Duration `yaml:"expectContinueTimeout"`

	MaxIdleConns        int           `yaml:"maxIdleConns" validate:"gte=0"`
	MaxIdleConnsPerHost int           `yaml:"maxIdleConnsPerHost" validate:"gte=0"`
	MaxConnsPerHost     int           `yaml:"maxConnsPerHost" validate:"gte=0"`
	IdleConnTimeout     time.Duration `yaml:"idleConnTimeout"`
}

// apply copies the non-zero settings onto t.
func (c ClientConfig) apply(t *http.Transport) {
	if c.DialTimeout > 0 {
		t.DialContext = (&net.Dialer{Timeout: c.DialTimeout, KeepAlive: 30 * time.Second}).DialContext
	}
	setIf(&t.TLSHandshakeTimeout, c.TLSHandshakeTimeout)
	setIf(&t.ResponseHeaderTimeout, c.ResponseHeaderTimeout)
	setIf(&t.ExpectContinueTimeout, c.ExpectContinueTimeout)
	setIf(&t.IdleConnTimeout, c.IdleConnTimeout)
	setIf(&t.MaxIdleConns, c.MaxIdleConns)
	setIf(&t.MaxIdleConnsPerHost, c.MaxIdleConnsPerHost)
	setIf(&t.MaxConnsPerHost, c.MaxConnsPerHost)
}

func setIf[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

type clientOptions struct {
	cfg             ClientConfig
	base            http.RoundTripper
	instrumentation []Option
}

// ClientOption configures NewClient.
type ClientOption func(*clientOptions)

// WithClientConfig replaces the transport settings.
func WithClientConfig(cfg ClientConfig) ClientOption {
	return func(o *clientOptions) { o.cfg = cfg }
}

// WithTimeout sets the request timeout of the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.cfg.Timeout = d }
}

// WithBaseTransport sets the round tripper requests finally go through.
// Only an *http.Transport can be tuned by ClientConfig; it is cloned first.
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.base = rt }
}

// WithInstrumentation passes options to the client's Transport.
func WithInstrumentation(opts ...Option) ClientOption {
	return func(o *clientOptions) { o.instrumentation = append(o.instrumentation, opts...) }
}

// NewClient returns an http.Client whose requests run inside client spans
// of the default dispatch (or the one given through WithInstrumentation).
//
//	client := tracexhttp.NewClient(
//	    tracexhttp.WithClientConfig(cfg.HTTP),
//	    tracexhttp.WithInstrumentation(tracexhttp.WithNamer(namer)),
//	)
func NewClient(opts ...ClientOption) *http.Client {
	o := &clientOptions{base: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}

	return &http.Client{
		Transport: Transport(tuned(o.base, o.cfg), o.instrumentation...),
		Timeout:   o.cfg.Timeout,
	}
}

// tuned returns a clone of base with cfg applied, or base itself when it
// is not an *http.Transport.
func tuned(base http.RoundTripper, cfg ClientConfig) http.RoundTripper {
	t, ok := base.(*http.Transport)
	if !ok {
		return base
	}
	t = t.Clone()
	cfg.apply(t)

	return t
}
