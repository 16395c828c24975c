package trace

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectExtractRoundTrip(t *testing.T) {
	tr := NewTracer()
	span, ctx := tr.Begin(context.Background(), "outbound")

	h := make(http.Header)
	Inject(ctx, h)

	assert.Equal(t, span.TraceID().String(), h.Get(HeaderTraceID))
	assert.Equal(t, span.SpanID().String(), h.Get(HeaderSpanID))
	assert.Equal(t, "1", h.Get(HeaderSampled))

	sc, ok := Extract(h)
	require.True(t, ok)
	assert.Equal(t, span.Context(), sc)
}

func TestInjectWithoutSpan(t *testing.T) {
	h := make(http.Header)
	Inject(context.Background(), h)
	assert.Empty(t, h)
}

func TestExtract(t *testing.T) {
	traceID := TraceID{0xde, 0xad, 0xbe, 0xef}

	tests := []struct {
		name    string
		headers map[string]string
		want    SpanContext
		ok      bool
	}{
		{
			name:    "missing trace id",
			headers: map[string]string{HeaderSpanID: "0102030405060708"},
			ok:      false,
		},
		{
			name:    "malformed trace id",
			headers: map[string]string{HeaderTraceID: "not-hex"},
			ok:      false,
		},
		{
			name:    "all zero trace id",
			headers: map[string]string{HeaderTraceID: "00000000000000000000000000000000"},
			ok:      false,
		},
		{
			name:    "trace id only defaults to sampled",
			headers: map[string]string{HeaderTraceID: traceID.String()},
			want:    SpanContext{TraceID: traceID, Sampled: true},
			ok:      true,
		},
		{
			name: "explicit unsampled",
			headers: map[string]string{
				HeaderTraceID: traceID.String(),
				HeaderSpanID:  "0102030405060708",
				HeaderSampled: "0",
			},
			want: SpanContext{
				TraceID: traceID,
				SpanID:  SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
				Sampled: false,
			},
			ok: true,
		},
		{
			name: "bad span id ignored",
			headers: map[string]string{
				HeaderTraceID: traceID.String(),
				HeaderSpanID:  "zz",
			},
			want: SpanContext{TraceID: traceID, Sampled: true},
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := make(http.Header)
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			sc, ok := Extract(h)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, sc)
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	_, err := ParseTraceID("abc")
	assert.Error(t, err)
	_, err = ParseSpanID("0102030405060708ff")
	assert.Error(t, err)
	_, err = ParseSpanID("0000000000000000")
	assert.Error(t, err)

	id, err := ParseTraceID("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", id.String())
}
