package trace

import (
	"context"
	"net/http"
)

// Propagation headers. Values are lowercase hex IDs plus a "1"/"0" sampling
// flag so downstream services share the trace's fate without re-deciding.
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
	HeaderSampled = "X-Trace-Sampled"
)

// Inject writes the active span's propagation handle into HTTP headers.
// No-op when the context carries no span.
func Inject(ctx context.Context, h http.Header) {
	s := SpanFromContext(ctx)
	if s == nil {
		return
	}
	InjectSpanContext(s.Context(), h)
}

// InjectSpanContext writes an explicit handle into HTTP headers.
func InjectSpanContext(sc SpanContext, h http.Header) {
	if !sc.IsValid() {
		return
	}
	h.Set(HeaderTraceID, sc.TraceID.String())
	h.Set(HeaderSpanID, sc.SpanID.String())
	if sc.Sampled {
		h.Set(HeaderSampled, "1")
	} else {
		h.Set(HeaderSampled, "0")
	}
}

// Extract reads a propagation handle from HTTP headers. Returns false when
// the trace ID header is absent or malformed. A missing span ID still
// yields a usable handle carrying only the trace ID; a missing sampled flag
// defaults to sampled so upstream gaps do not silently drop traces.
func Extract(h http.Header) (SpanContext, bool) {
	raw := h.Get(HeaderTraceID)
	if raw == "" {
		return SpanContext{}, false
	}
	traceID, err := ParseTraceID(raw)
	if err != nil {
		return SpanContext{}, false
	}
	sc := SpanContext{TraceID: traceID, Sampled: true}
	if raw := h.Get(HeaderSpanID); raw != "" {
		if spanID, err := ParseSpanID(raw); err == nil {
			sc.SpanID = spanID
		}
	}
	if h.Get(HeaderSampled) == "0" {
		sc.Sampled = false
	}
	return sc, true
}
