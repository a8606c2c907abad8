package grpc

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/arloliu/tracex"
	"github.com/arloliu/tracex/otelbridge"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Target is the target of every span this package creates.
const Target = "tracex/grpc"

var fields = []string{
	string(semconv.RPCSystemKey),
	string(semconv.RPCServiceKey),
	string(semconv.RPCMethodKey),
	string(semconv.RPCGRPCStatusCodeKey),
	otelbridge.KindKey,
	otelbridge.NameKey,
	otelbridge.ErrorKey,
}

var (
	// ServerCallsite opens one span per handled call.
	ServerCallsite = tracex.NewSpanCallsite("grpc.server.call", Target, tracex.LevelInfo, fields...)
	// ClientCallsite opens one span per outgoing call.
	ClientCallsite = tracex.NewSpanCallsite("grpc.client.call", Target, tracex.LevelInfo, fields...)
)

// UnaryServerInterceptor runs every unary call inside a server span whose
// parent is the trace context of the incoming metadata.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	cfg := newConfig(opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var resp any
		var err error
		cfg.scope(ctx, func(ctx context.Context) {
			ctx = cfg.extract(ctx)
			span := ServerCallsite.NewSpan(ctx, cfg.startValues(info.FullMethod, "server")...)
			defer span.Close(ctx)

			span.InScope(ctx, func(ctx context.Context) {
				resp, err = handler(ctx, req)
			})
			span.Record(ctx, statusValues(err)...)
		})

		return resp, err
	}
}

// StreamServerInterceptor runs every streaming call inside a server span.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	cfg := newConfig(opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		var err error
		cfg.scope(ss.Context(), func(ctx context.Context) {
			ctx = cfg.extract(ctx)
			span := ServerCallsite.NewSpan(ctx, cfg.startValues(info.FullMethod, "server")...)
			defer span.Close(ctx)

			span.InScope(ctx, func(ctx context.Context) {
				err = handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
			})
			span.Record(ctx, statusValues(err)...)
		})

		return err
	}
}

// UnaryClientInterceptor runs every outgoing unary call inside a client
// span and adds its trace context to the outgoing metadata.
func UnaryClientInterceptor(opts ...Option) grpc.UnaryClientInterceptor {
	cfg := newConfig(opts)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		var err error
		cfg.scope(ctx, func(ctx context.Context) {
			span := ClientCallsite.NewSpan(ctx, cfg.startValues(method, "client")...)
			defer span.Close(ctx)

			span.InScope(ctx, func(ctx context.Context) {
				err = invoker(cfg.inject(ctx), method, req, reply, cc, callOpts...)
			})
			span.Record(ctx, statusValues(err)...)
		})

		return err
	}
}

// StreamClientInterceptor runs every outgoing stream inside a client span.
// The span closes when the stream ends: RecvMsg returns an error (io.EOF
// included) or the stream could not be created.
func StreamClientInterceptor(opts ...Option) grpc.StreamClientInterceptor {
	cfg := newConfig(opts)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		var cs grpc.ClientStream
		var err error
		cfg.scope(ctx, func(ctx context.Context) {
			span := ClientCallsite.NewSpan(ctx, cfg.startValues(method, "client")...)

			streamCtx, exit := span.Enter(ctx)
			cs, err = streamer(cfg.inject(streamCtx), desc, cc, method, callOpts...)
			exit()

			if err != nil {
				span.Record(ctx, statusValues(err)...)
				span.Close(ctx)

				return
			}
			cs = &clientStream{ClientStream: cs, span: span, ctx: ctx}
		})

		return cs, err
	}
}

func (c *config) startValues(fullMethod, kind string) []attribute.KeyValue {
	service, method := splitMethod(fullMethod)

	return []attribute.KeyValue{
		semconv.RPCSystemKey.String("grpc"),
		semconv.RPCServiceKey.String(service),
		semconv.RPCMethodKey.String(method),
		attribute.String(otelbridge.KindKey, kind),
		attribute.String(otelbridge.NameKey, c.namer.Name(otelbridge.NameRPC(service, method))),
	}
}

func statusValues(err error) []attribute.KeyValue {
	code := status.Code(err)
	values := []attribute.KeyValue{semconv.RPCGRPCStatusCodeKey.Int(int(code))}
	if code != codes.OK {
		values = append(values, attribute.String(otelbridge.ErrorKey, status.Convert(err).Message()))
	}

	return values
}

// splitMethod splits "/pkg.Service/Method" into its service and method.
func splitMethod(fullMethod string) (string, string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i], name[i+1:]
	}

	return name, ""
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context { return s.ctx }

type clientStream struct {
	grpc.ClientStream
	span *tracex.Span
	ctx  context.Context
	once sync.Once
}

func (s *clientStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	if err != nil {
		s.finish(err)
	}

	return err
}

func (s *clientStream) finish(err error) {
	s.once.Do(func() {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		s.span.Record(s.ctx, statusValues(err)...)
		s.span.Close(s.ctx)
	})
}
