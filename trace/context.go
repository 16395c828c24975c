package trace

import "context"

// SpanContext is the propagation handle for a span: enough state to parent a
// child span in another goroutine or another process.
type SpanContext struct {
	TraceID TraceID
	SpanID  SpanID
	Sampled bool
}

// IsValid reports whether both IDs are set.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

type contextKey string

const (
	spanKey   contextKey = "trace_span"
	remoteKey contextKey = "trace_remote"
)

// ContextWithSpan attaches an open span to the context. Child spans begun
// from the returned context parent onto it.
func ContextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanKey, s)
}

// SpanFromContext returns the span attached to the context, nil if absent.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey).(*Span)
	return s
}

// ContextWithRemote attaches an extracted remote span context, making it the
// parent for the next local span.
func ContextWithRemote(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, remoteKey, sc)
}

// RemoteFromContext returns the remote parent attached to the context. The
// zero SpanContext means none.
func RemoteFromContext(ctx context.Context) SpanContext {
	sc, _ := ctx.Value(remoteKey).(SpanContext)
	return sc
}

// TraceIDFromContext returns the active trace ID, preferring a local open
// span over a remote parent. Zero if the context carries neither.
func TraceIDFromContext(ctx context.Context) TraceID {
	if s := SpanFromContext(ctx); s != nil {
		return s.TraceID()
	}
	return RemoteFromContext(ctx).TraceID
}
