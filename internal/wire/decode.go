package wire

import (
	"encoding/hex"

	collectorv1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
)

// FromOTLP flattens an OTLP export request into the JSON payload shape, so
// receivers handle both wire formats through one code path.
func FromOTLP(req *collectorv1.ExportTraceServiceRequest) Payload {
	p := Payload{Resource: map[string]string{}}
	for _, rs := range req.GetResourceSpans() {
		for _, kv := range rs.GetResource().GetAttributes() {
			if sv, ok := kv.GetValue().GetValue().(*commonv1.AnyValue_StringValue); ok {
				p.Resource[kv.GetKey()] = sv.StringValue
			}
		}
		for _, ss := range rs.GetScopeSpans() {
			for _, s := range ss.GetSpans() {
				p.Spans = append(p.Spans, recordFromOTLP(s))
			}
		}
	}
	return p
}

func recordFromOTLP(s *tracev1.Span) SpanRecord {
	rec := SpanRecord{
		TraceID:       hex.EncodeToString(s.GetTraceId()),
		SpanID:        hex.EncodeToString(s.GetSpanId()),
		Name:          s.GetName(),
		Kind:          kindName(s.GetKind()),
		StartUnixNano: int64(s.GetStartTimeUnixNano()),
		EndUnixNano:   int64(s.GetEndTimeUnixNano()),
		Status:        statusFromOTLP(s.GetStatus()),
	}
	if end, start := s.GetEndTimeUnixNano(), s.GetStartTimeUnixNano(); end > start {
		rec.DurationMs = float64(end-start) / 1e6
	}
	if parent := s.GetParentSpanId(); len(parent) > 0 {
		rec.ParentSpanID = hex.EncodeToString(parent)
	}
	if attrs := s.GetAttributes(); len(attrs) > 0 {
		rec.Attributes = make(map[string]any, len(attrs))
		for _, kv := range attrs {
			rec.Attributes[kv.GetKey()] = fromAnyValue(kv.GetValue())
		}
	}
	return rec
}

func kindName(k tracev1.Span_SpanKind) string {
	switch k {
	case tracev1.Span_SPAN_KIND_SERVER:
		return "SERVER"
	case tracev1.Span_SPAN_KIND_CLIENT:
		return "CLIENT"
	default:
		return "INTERNAL"
	}
}

func statusFromOTLP(st *tracev1.Status) StatusRecord {
	if st.GetCode() == tracev1.Status_STATUS_CODE_ERROR {
		return StatusRecord{Code: "ERROR", Message: st.GetMessage()}
	}
	return StatusRecord{Code: "OK"}
}

func fromAnyValue(v *commonv1.AnyValue) any {
	switch tv := v.GetValue().(type) {
	case *commonv1.AnyValue_IntValue:
		return tv.IntValue
	case *commonv1.AnyValue_DoubleValue:
		return tv.DoubleValue
	case *commonv1.AnyValue_BoolValue:
		return tv.BoolValue
	default:
		return v.GetStringValue()
	}
}
