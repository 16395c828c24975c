package wire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/exesolution-com/tracepipe/trace"
)

func buildSpans(t *testing.T) (parent, child *trace.Span) {
	t.Helper()
	tr := trace.NewTracer()

	parent, ctx := tr.Begin(context.Background(), "handle.request", trace.WithKind(trace.KindServer))
	child, _ = tr.Begin(ctx, "model.call", trace.WithKind(trace.KindClient))

	require.NoError(t, child.SetAttributes(
		trace.String("llm.model", "gpt-4o"),
		trace.Int("llm.tokens.prompt", 128),
		trace.Float("llm.temperature", 0.7),
		trace.Bool("cache.hit", false),
	))
	require.NoError(t, child.End(trace.Error("upstream timeout")))
	require.NoError(t, parent.End(trace.OK()))
	return parent, child
}

func TestOTLPRequest(t *testing.T) {
	parent, child := buildSpans(t)

	req := OTLPRequest("gateway", "staging", []*trace.Span{parent, child})

	require.Len(t, req.ResourceSpans, 1)
	rs := req.ResourceSpans[0]

	resAttrs := map[string]string{}
	for _, kv := range rs.Resource.Attributes {
		resAttrs[kv.Key] = kv.Value.GetStringValue()
	}
	assert.Equal(t, "gateway", resAttrs[KeyServiceName])
	assert.Equal(t, "staging", resAttrs[KeyEnvironment])

	require.Len(t, rs.ScopeSpans, 1)
	spans := rs.ScopeSpans[0].Spans
	require.Len(t, spans, 2)

	parentID := parent.SpanID()
	traceID := parent.TraceID()

	p, c := spans[0], spans[1]
	assert.Equal(t, traceID[:], p.TraceId)
	assert.Empty(t, p.ParentSpanId, "root span carries no parent")
	assert.Equal(t, tracev1.Span_SPAN_KIND_SERVER, p.Kind)
	assert.Equal(t, tracev1.Status_STATUS_CODE_OK, p.Status.Code)

	assert.Equal(t, parentID[:], c.ParentSpanId)
	assert.Equal(t, tracev1.Span_SPAN_KIND_CLIENT, c.Kind)
	assert.Equal(t, tracev1.Status_STATUS_CODE_ERROR, c.Status.Code)
	assert.Equal(t, "upstream timeout", c.Status.Message)
	assert.Greater(t, c.EndTimeUnixNano, uint64(0))
	assert.GreaterOrEqual(t, c.EndTimeUnixNano, c.StartTimeUnixNano)
}

func TestOTLPAttributeKinds(t *testing.T) {
	_, child := buildSpans(t)

	req := OTLPRequest("svc", "dev", []*trace.Span{child})
	attrs := req.ResourceSpans[0].ScopeSpans[0].Spans[0].Attributes
	require.Len(t, attrs, 4)

	byKey := map[string]any{}
	for _, kv := range attrs {
		switch {
		case kv.Value.GetStringValue() != "":
			byKey[kv.Key] = kv.Value.GetStringValue()
		case kv.Value.GetIntValue() != 0:
			byKey[kv.Key] = kv.Value.GetIntValue()
		case kv.Value.GetDoubleValue() != 0:
			byKey[kv.Key] = kv.Value.GetDoubleValue()
		default:
			byKey[kv.Key] = kv.Value.GetBoolValue()
		}
	}
	assert.Equal(t, "gpt-4o", byKey["llm.model"])
	assert.Equal(t, int64(128), byKey["llm.tokens.prompt"])
	assert.Equal(t, 0.7, byKey["llm.temperature"])
	assert.Equal(t, false, byKey["cache.hit"])
}

func TestJSONPayloadRoundTrip(t *testing.T) {
	parent, child := buildSpans(t)

	payload := BuildPayload("batch_01ABC", "gateway", "dev", []*trace.Span{parent, child})
	data, err := payload.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalPayload(data)
	require.NoError(t, err)

	assert.Equal(t, "batch_01ABC", got.BatchID)
	assert.Equal(t, "gateway", got.Resource[KeyServiceName])
	require.Len(t, got.Spans, 2)

	p, c := got.Spans[0], got.Spans[1]
	assert.Equal(t, parent.TraceID().String(), p.TraceID)
	assert.Empty(t, p.ParentSpanID)
	assert.Equal(t, "SERVER", p.Kind)
	assert.Equal(t, "OK", p.Status.Code)

	assert.Equal(t, parent.SpanID().String(), c.ParentSpanID)
	assert.Equal(t, "CLIENT", c.Kind)
	assert.Equal(t, "ERROR", c.Status.Code)
	assert.Equal(t, "upstream timeout", c.Status.Message)
	assert.GreaterOrEqual(t, c.DurationMs, 0.0)
	assert.Equal(t, "gpt-4o", c.Attributes["llm.model"])
}

func TestUnmarshalPayloadRejectsGarbage(t *testing.T) {
	_, err := UnmarshalPayload([]byte("{not json"))
	assert.Error(t, err)
}
