package trace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanLifecycle(t *testing.T) {
	tr := NewTracer()
	span, ctx := tr.Begin(context.Background(), "checkout", WithKind(KindServer))

	assert.True(t, span.TraceID().IsValid())
	assert.True(t, span.SpanID().IsValid())
	assert.False(t, span.Ended())
	assert.Equal(t, "checkout", span.Name())
	assert.Equal(t, KindServer, span.Kind())
	assert.Same(t, span, SpanFromContext(ctx))

	require.NoError(t, span.SetAttributes(String("http.route", "/checkout")))
	require.NoError(t, span.End(OK()))

	assert.True(t, span.Ended())
	assert.Equal(t, CodeOK, span.Status().Code)
	assert.False(t, span.EndTime().IsZero())
	assert.GreaterOrEqual(t, span.Duration(), time.Duration(0))
}

func TestSpanEndTwice(t *testing.T) {
	tr := NewTracer()
	span, _ := tr.Begin(context.Background(), "op")

	require.NoError(t, span.End(OK()))
	err := span.End(Error("late failure"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnded)
	assert.Equal(t, CodeOK, span.Status().Code, "first outcome must stand")
}

func TestSetAttributesAfterEnd(t *testing.T) {
	tr := NewTracer()
	span, _ := tr.Begin(context.Background(), "op")
	require.NoError(t, span.SetAttributes(String("user.id", "u-1")))
	require.NoError(t, span.End(OK()))

	err := span.SetAttributes(String("user.id", "u-2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnded)

	v, ok := span.Attribute("user.id")
	require.True(t, ok)
	assert.Equal(t, "u-1", v.Str())
}

func TestAttributeKeysUnique(t *testing.T) {
	tr := NewTracer()
	span, _ := tr.Begin(context.Background(), "op")

	require.NoError(t, span.SetAttributes(
		String("llm.model", "gpt-4o"),
		Int("llm.tokens", 120),
		String("llm.model", "gpt-4o-mini"),
	))

	attrs := span.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "llm.model", attrs[0].Key)
	assert.Equal(t, "gpt-4o-mini", attrs[0].Value.Str(), "replacement keeps first-set position")
	assert.Equal(t, "llm.tokens", attrs[1].Key)
}

func TestAttributeValueKinds(t *testing.T) {
	tests := []struct {
		name string
		attr Attr
		kind ValueKind
		emit string
	}{
		{"string", String("k", "v"), ValueString, "v"},
		{"int", Int("k", 42), ValueInt, "42"},
		{"float", Float("k", 0.25), ValueFloat, "0.25"},
		{"bool", Bool("k", true), ValueBool, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.attr.Value.Kind())
			assert.Equal(t, tt.emit, tt.attr.Value.Emit())
		})
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.Equal(t, Status{Code: CodeOK}, OK())
	assert.Equal(t, Status{Code: CodeError, Message: "boom"}, Error("boom"))
	assert.Equal(t, OK(), ErrorFrom(nil))
	assert.Equal(t, Error("boom"), ErrorFrom(errors.New("boom")))
}

func TestCopyWithAttributes(t *testing.T) {
	tr := NewTracer()
	span, _ := tr.Begin(context.Background(), "op")
	require.NoError(t, span.SetAttributes(String("secret", "hunter2"), Int("count", 3)))
	require.NoError(t, span.End(Error("bad")))

	cp := span.CopyWithAttributes([]Attr{Int("count", 3)})

	assert.Equal(t, span.TraceID(), cp.TraceID())
	assert.Equal(t, span.SpanID(), cp.SpanID())
	assert.Equal(t, span.Status(), cp.Status())
	assert.Equal(t, span.EndTime(), cp.EndTime())
	assert.True(t, cp.Ended())
	require.Len(t, cp.Attributes(), 1)

	_, ok := span.Attribute("secret")
	assert.True(t, ok, "original must keep its attributes")
}

func TestKindAndCodeStrings(t *testing.T) {
	assert.Equal(t, "INTERNAL", KindInternal.String())
	assert.Equal(t, "SERVER", KindServer.String())
	assert.Equal(t, "CLIENT", KindClient.String())
	assert.Equal(t, "OK", CodeOK.String())
	assert.Equal(t, "ERROR", CodeError.String())
}
