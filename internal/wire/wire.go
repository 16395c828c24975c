// Package wire converts spans into the formats the exporter transports
// speak: OTLP protobuf for grpc/http_protobuf endpoints and a flat JSON
// payload for plain HTTP collectors. The tracesink dev receiver decodes the
// same shapes on the way back in.
package wire

import (
	collectorv1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/exesolution-com/tracepipe/trace"
)

// Resource attribute keys, following OpenTelemetry semantic conventions.
const (
	KeyServiceName = "service.name"
	KeyEnvironment = "deployment.environment"
)

// OTLPRequest builds an OTLP export request carrying all spans under a
// single resource.
func OTLPRequest(serviceName, environment string, spans []*trace.Span) *collectorv1.ExportTraceServiceRequest {
	outSpans := make([]*tracev1.Span, 0, len(spans))
	for _, s := range spans {
		outSpans = append(outSpans, otlpSpan(s))
	}

	return &collectorv1.ExportTraceServiceRequest{
		ResourceSpans: []*tracev1.ResourceSpans{
			{
				Resource: &resourcev1.Resource{
					Attributes: []*commonv1.KeyValue{
						stringKV(KeyServiceName, serviceName),
						stringKV(KeyEnvironment, environment),
					},
				},
				ScopeSpans: []*tracev1.ScopeSpans{
					{
						Scope: &commonv1.InstrumentationScope{Name: "tracepipe"},
						Spans: outSpans,
					},
				},
			},
		},
	}
}

func otlpSpan(s *trace.Span) *tracev1.Span {
	traceID := s.TraceID()
	spanID := s.SpanID()

	out := &tracev1.Span{
		TraceId:           traceID[:],
		SpanId:            spanID[:],
		Name:              s.Name(),
		Kind:              otlpKind(s.Kind()),
		StartTimeUnixNano: uint64(s.StartTime().UnixNano()),
		EndTimeUnixNano:   uint64(s.EndTime().UnixNano()),
		Status:            otlpStatus(s.Status()),
	}
	if parent := s.ParentID(); parent.IsValid() {
		out.ParentSpanId = parent[:]
	}
	for _, a := range s.Attributes() {
		out.Attributes = append(out.Attributes, attrKV(a))
	}
	return out
}

func otlpKind(k trace.Kind) tracev1.Span_SpanKind {
	switch k {
	case trace.KindServer:
		return tracev1.Span_SPAN_KIND_SERVER
	case trace.KindClient:
		return tracev1.Span_SPAN_KIND_CLIENT
	default:
		return tracev1.Span_SPAN_KIND_INTERNAL
	}
}

func otlpStatus(st trace.Status) *tracev1.Status {
	if st.Code == trace.CodeError {
		return &tracev1.Status{
			Code:    tracev1.Status_STATUS_CODE_ERROR,
			Message: st.Message,
		}
	}
	return &tracev1.Status{Code: tracev1.Status_STATUS_CODE_OK}
}

func stringKV(key, value string) *commonv1.KeyValue {
	return &commonv1.KeyValue{
		Key:   key,
		Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: value}},
	}
}

func attrKV(a trace.Attr) *commonv1.KeyValue {
	kv := &commonv1.KeyValue{Key: a.Key}
	switch a.Value.Kind() {
	case trace.ValueInt:
		kv.Value = &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: a.Value.Int()}}
	case trace.ValueFloat:
		kv.Value = &commonv1.AnyValue{Value: &commonv1.AnyValue_DoubleValue{DoubleValue: a.Value.Float()}}
	case trace.ValueBool:
		kv.Value = &commonv1.AnyValue{Value: &commonv1.AnyValue_BoolValue{BoolValue: a.Value.Bool()}}
	default:
		kv.Value = &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: a.Value.Str()}}
	}
	return kv
}
