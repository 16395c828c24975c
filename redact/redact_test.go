package redact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exesolution-com/tracepipe/trace"
)

func endedSpan(t *testing.T, attrs ...trace.Attr) *trace.Span {
	t.Helper()
	tr := trace.NewTracer()
	span, _ := tr.Begin(context.Background(), "llm.request")
	require.NoError(t, span.SetAttributes(attrs...))
	require.NoError(t, span.End(trace.OK()))
	return span
}

func TestDisabledIsIdentity(t *testing.T) {
	span := endedSpan(t,
		trace.String("llm.prompt", "plan a heist"),
		trace.String("user.email", "a@b.example"),
	)

	got := Disabled().Apply(span)

	assert.Same(t, span, got)
	assert.Equal(t, span.Attributes(), got.Attributes())
}

func TestFullDropRemovesMatchingKeys(t *testing.T) {
	span := endedSpan(t,
		trace.String("llm.prompt", "secret prompt"),
		trace.String("llm.completion", "secret answer"),
		trace.String("llm.model", "gpt-4o"),
		trace.Int("llm.tokens.prompt", 42),
	)

	r, err := FullDrop("", "llm.prompt*", "llm.completion")
	require.NoError(t, err)
	got := r.Apply(span)

	attrs := got.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "llm.model", attrs[0].Key)
	assert.Equal(t, "llm.tokens.prompt", attrs[1].Key)

	_, ok := span.Attribute("llm.prompt")
	assert.True(t, ok, "original span must be untouched")
}

func TestPartialMaskKeepsKeys(t *testing.T) {
	span := endedSpan(t,
		trace.String("user.query", "where do I live"),
		trace.Int("http.status_code", 200),
		trace.String("http.route", "/v1/chat"),
	)

	r, err := PartialMask("", "user.*")
	require.NoError(t, err)
	got := r.Apply(span)

	attrs := got.Attributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, "user.query", attrs[0].Key)
	assert.Equal(t, Mask, attrs[0].Value.Str())
	assert.Equal(t, int64(200), attrs[1].Value.Int())
	assert.Equal(t, "/v1/chat", attrs[2].Value.Str())
}

func TestValuePatternMatching(t *testing.T) {
	span := endedSpan(t,
		trace.String("note", "ssn is 123-45-6789"),
		trace.String("other", "nothing sensitive"),
	)

	r, err := PartialMask(`\d{3}-\d{2}-\d{4}`)
	require.NoError(t, err)
	got := r.Apply(span)

	v, ok := got.Attribute("note")
	require.True(t, ok)
	assert.Equal(t, Mask, v.Str())

	v, ok = got.Attribute("other")
	require.True(t, ok)
	assert.Equal(t, "nothing sensitive", v.Str())
}

func TestNonStringValuesNeverRedacted(t *testing.T) {
	span := endedSpan(t,
		trace.Int("secret.count", 7),
		trace.Float("secret.ratio", 0.5),
		trace.Bool("secret.flag", true),
	)

	r, err := FullDrop("", "secret.*")
	require.NoError(t, err)
	got := r.Apply(span)

	assert.Same(t, span, got, "nothing redactable means no copy")
	assert.Len(t, got.Attributes(), 3)
}

func TestProtectedKeysPass(t *testing.T) {
	span := endedSpan(t,
		trace.String("llm.model", "claude-sonnet"),
		trace.String("request.status", "ok"),
		trace.String("llm.prompt", "drop me"),
	)

	r, err := FullDrop("", "*")
	require.NoError(t, err)
	got := r.Apply(span)

	attrs := got.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "llm.model", attrs[0].Key)
	assert.Equal(t, "request.status", attrs[1].Key)
}

func TestNoMatchReturnsSameSpan(t *testing.T) {
	span := endedSpan(t, trace.String("http.route", "/healthz"))

	r, err := PartialMask("", "llm.*")
	require.NoError(t, err)

	assert.Same(t, span, r.Apply(span))
}

func TestConstructionFailsFast(t *testing.T) {
	_, err := PartialMask("([")
	assert.Error(t, err, "malformed regexp")

	_, err = FullDrop("", "[")
	assert.Error(t, err, "malformed glob")

	_, err = New("shred", "", "k")
	assert.Error(t, err, "unknown mode")
}

func TestNew(t *testing.T) {
	tests := []struct {
		mode string
		desc string
	}{
		{ModeDisabled, "disabled"},
		{ModeFullDrop, "full_drop"},
		{ModePartialMask, "partial_mask"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			r, err := New(tt.mode, "", "llm.prompt")
			require.NoError(t, err)
			assert.Equal(t, tt.desc, r.Description())
		})
	}
}
