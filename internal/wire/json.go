package wire

import (
	"github.com/bytedance/sonic"

	"github.com/exesolution-com/tracepipe/trace"
)

// Payload is the JSON batch shape POSTed by the http_json transport and
// decoded by the tracesink receiver.
type Payload struct {
	BatchID  string            `json:"batch_id"`
	Resource map[string]string `json:"resource"`
	Spans    []SpanRecord      `json:"spans"`
}

// SpanRecord is one span in a JSON payload. IDs are lowercase hex.
type SpanRecord struct {
	TraceID       string         `json:"trace_id"`
	SpanID        string         `json:"span_id"`
	ParentSpanID  string         `json:"parent_span_id,omitempty"`
	Name          string         `json:"name"`
	Kind          string         `json:"kind"`
	StartUnixNano int64          `json:"start_time_unix_nano"`
	EndUnixNano   int64          `json:"end_time_unix_nano"`
	DurationMs    float64        `json:"duration_ms"`
	Status        StatusRecord   `json:"status"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// StatusRecord is a span outcome in a JSON payload.
type StatusRecord struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// BuildPayload assembles the JSON batch for a set of spans.
func BuildPayload(batchID, serviceName, environment string, spans []*trace.Span) Payload {
	p := Payload{
		BatchID: batchID,
		Resource: map[string]string{
			KeyServiceName: serviceName,
			KeyEnvironment: environment,
		},
		Spans: make([]SpanRecord, 0, len(spans)),
	}
	for _, s := range spans {
		p.Spans = append(p.Spans, spanRecord(s))
	}
	return p
}

// Marshal encodes the payload with sonic.
func (p Payload) Marshal() ([]byte, error) {
	return sonic.Marshal(p)
}

// UnmarshalPayload decodes a JSON batch.
func UnmarshalPayload(data []byte) (Payload, error) {
	var p Payload
	if err := sonic.Unmarshal(data, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func spanRecord(s *trace.Span) SpanRecord {
	rec := SpanRecord{
		TraceID:       s.TraceID().String(),
		SpanID:        s.SpanID().String(),
		Name:          s.Name(),
		Kind:          s.Kind().String(),
		StartUnixNano: s.StartTime().UnixNano(),
		EndUnixNano:   s.EndTime().UnixNano(),
		DurationMs:    float64(s.Duration().Microseconds()) / 1000,
		Status: StatusRecord{
			Code:    s.Status().Code.String(),
			Message: s.Status().Message,
		},
	}
	if parent := s.ParentID(); parent.IsValid() {
		rec.ParentSpanID = parent.String()
	}
	attrs := s.Attributes()
	if len(attrs) > 0 {
		rec.Attributes = make(map[string]any, len(attrs))
		for _, a := range attrs {
			rec.Attributes[a.Key] = attrValue(a.Value)
		}
	}
	return rec
}

func attrValue(v trace.Value) any {
	switch v.Kind() {
	case trace.ValueInt:
		return v.Int()
	case trace.ValueFloat:
		return v.Float()
	case trace.ValueBool:
		return v.Bool()
	default:
		return v.Str()
	}
}
