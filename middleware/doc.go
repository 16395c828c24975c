// Package middleware instruments host applications with pipeline spans.
//
// The HTTP middleware opens one SERVER span per Gin request, continuing a
// trace announced by inbound X-Trace-ID headers, and mirrors the span's
// handle into the response so callers can correlate. The gRPC interceptors
// do the same over metadata for unary and streaming servers, and the client
// interceptor wraps outgoing calls in CLIENT spans.
//
// Example:
//
//	p, _ := pipeline.New(cfg)
//	router := gin.New()
//	router.Use(middleware.HTTP(p.Tracer()))
//
//	srv := grpc.NewServer(
//		grpc.UnaryInterceptor(middleware.UnaryServerInterceptor(p.Tracer())),
//		grpc.StreamInterceptor(middleware.StreamServerInterceptor(p.Tracer())),
//	)
package middleware
