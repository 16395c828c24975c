package trace

import (
	"encoding/hex"
	"fmt"
)

// TraceID identifies a trace. The zero value is invalid.
type TraceID [16]byte

// SpanID identifies a span within a trace. The zero value is invalid.
type SpanID [8]byte

// IsValid reports whether the ID is non-zero.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String returns the lowercase hex encoding (32 characters).
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// IsValid reports whether the ID is non-zero.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// String returns the lowercase hex encoding (16 characters).
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// ParseTraceID decodes a 32-character hex string into a TraceID.
func ParseTraceID(s string) (TraceID, error) {
	var id TraceID
	if len(s) != 2*len(id) {
		return TraceID{}, fmt.Errorf("trace id %q: want %d hex characters, got %d", s, 2*len(id), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return TraceID{}, fmt.Errorf("trace id %q: %w", s, err)
	}
	if !id.IsValid() {
		return TraceID{}, fmt.Errorf("trace id %q: all zero", s)
	}
	return id, nil
}

// ParseSpanID decodes a 16-character hex string into a SpanID.
func ParseSpanID(s string) (SpanID, error) {
	var id SpanID
	if len(s) != 2*len(id) {
		return SpanID{}, fmt.Errorf("span id %q: want %d hex characters, got %d", s, 2*len(id), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return SpanID{}, fmt.Errorf("span id %q: %w", s, err)
	}
	if !id.IsValid() {
		return SpanID{}, fmt.Errorf("span id %q: all zero", s)
	}
	return id, nil
}
