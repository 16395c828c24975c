package middleware

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/exesolution-com/tracepipe/trace"
)

// Metadata keys for trace propagation. gRPC lowercases metadata keys, so
// these are the wire forms of the HTTP propagation headers.
const (
	metaTraceID = "x-trace-id"
	metaSpanID  = "x-span-id"
	metaSampled = "x-trace-sampled"
)

// UnaryServerInterceptor traces unary RPCs with a SERVER span, continuing a
// trace announced in the incoming metadata.
func UnaryServerInterceptor(tracer *trace.Tracer) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx = continueFromMetadata(ctx)

		span, ctx := tracer.Begin(ctx, info.FullMethod, trace.WithKind(trace.KindServer))
		span.SetAttributes(
			trace.String("rpc.system", "grpc"),
			trace.String("rpc.method", info.FullMethod),
		)

		resp, err := handler(ctx, req)

		span.End(trace.ErrorFrom(err))
		return resp, err
	}
}

// StreamServerInterceptor traces streaming RPCs with one SERVER span
// covering the stream's whole life.
func StreamServerInterceptor(tracer *trace.Tracer) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx := continueFromMetadata(ss.Context())

		span, ctx := tracer.Begin(ctx, info.FullMethod, trace.WithKind(trace.KindServer))
		span.SetAttributes(
			trace.String("rpc.system", "grpc"),
			trace.String("rpc.method", info.FullMethod),
			trace.Bool("rpc.streaming", true),
		)

		err := handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})

		span.End(trace.ErrorFrom(err))
		return err
	}
}

// tracedServerStream carries the span context to the handler.
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}

// UnaryClientInterceptor wraps outgoing unary calls in CLIENT spans and
// propagates the trace over metadata.
func UnaryClientInterceptor(tracer *trace.Tracer) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		span, ctx := tracer.Begin(ctx, method, trace.WithKind(trace.KindClient))
		span.SetAttributes(
			trace.String("rpc.system", "grpc"),
			trace.String("rpc.method", method),
		)

		sc := span.Context()
		sampled := "0"
		if sc.Sampled {
			sampled = "1"
		}
		ctx = metadata.AppendToOutgoingContext(ctx,
			metaTraceID, sc.TraceID.String(),
			metaSpanID, sc.SpanID.String(),
			metaSampled, sampled)

		err := invoker(ctx, method, req, reply, cc, opts...)

		span.End(trace.ErrorFrom(err))
		return err
	}
}

// continueFromMetadata lifts trace metadata into a remote span handle on the
// context. Without usable metadata the context is returned untouched and a
// new trace roots here.
func continueFromMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	h := http.Header{}
	if v := md.Get(metaTraceID); len(v) > 0 {
		h.Set(trace.HeaderTraceID, v[0])
	}
	if v := md.Get(metaSpanID); len(v) > 0 {
		h.Set(trace.HeaderSpanID, v[0])
	}
	if v := md.Get(metaSampled); len(v) > 0 {
		h.Set(trace.HeaderSampled, v[0])
	}
	sc, ok := trace.Extract(h)
	if !ok {
		return ctx
	}
	return trace.ContextWithRemote(ctx, sc)
}
