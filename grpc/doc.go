// Package grpc instruments gRPC servers and clients with dispatch spans.
//
// The interceptors run every call inside a span from ServerCallsite or
// ClientCallsite and carry the trace context in the call metadata. The
// otelgrpc stats handlers add the standard RPC metrics without creating
// spans of their own.
//
// # gRPC Server
//
//	server := grpc.NewServer(tracexgrpc.ServerOptions()...)
//
// # gRPC Client
//
//	conn, err := grpc.NewClient(target,
//	    append(tracexgrpc.DialOptions(),
//	        grpc.WithTransportCredentials(insecure.NewCredentials()))...,
//	)
package grpc
