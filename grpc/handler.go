package grpc

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// ServerHandler returns an otelgrpc stats.Handler recording the standard
// RPC server metrics. It creates no spans; use the interceptors for those.
func ServerHandler(opts ...Option) stats.Handler {
	return otelgrpc.NewServerHandler(newConfig(opts).metricsOptions()...)
}

// ClientHandler returns an otelgrpc stats.Handler recording the standard
// RPC client metrics.
func ClientHandler(opts ...Option) stats.Handler {
	return otelgrpc.NewClientHandler(newConfig(opts).metricsOptions()...)
}

// ServerOptions returns the server interceptors plus the metrics stats
// handler.
//
//	server := grpc.NewServer(tracexgrpc.ServerOptions()...)
func ServerOptions(opts ...Option) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(opts...)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(opts...)),
		grpc.StatsHandler(ServerHandler(opts...)),
	}
}

// DialOptions returns the client interceptors plus the metrics stats
// handler.
func DialOptions(opts ...Option) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(opts...)),
		grpc.WithChainStreamInterceptor(StreamClientInterceptor(opts...)),
		grpc.WithStatsHandler(ClientHandler(opts...)),
	}
}
