package trace

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEnded is returned when an operation is attempted on a closed span.
var ErrEnded = errors.New("span already ended")

// Kind classifies the role a span plays in a trace.
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "INTERNAL"
	case KindServer:
		return "SERVER"
	case KindClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Code is the terminal outcome of a span.
type Code int

const (
	CodeOK Code = iota
	CodeError
)

// String returns the wire name of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Status is the outcome recorded when a span ends. Message is only
// meaningful for CodeError.
type Status struct {
	Code    Code
	Message string
}

// OK builds a success status.
func OK() Status {
	return Status{Code: CodeOK}
}

// Error builds a failure status with a description.
func Error(msg string) Status {
	return Status{Code: CodeError, Message: msg}
}

// ErrorFrom builds a failure status from an error. A nil error yields OK.
func ErrorFrom(err error) Status {
	if err == nil {
		return OK()
	}
	return Status{Code: CodeError, Message: err.Error()}
}

// Span is a timed unit of work. Spans are created by Tracer.Begin, mutated
// through SetAttributes while open, and sealed by End. All methods are safe
// for concurrent use.
type Span struct {
	tracer *Tracer

	traceID  TraceID
	spanID   SpanID
	parentID SpanID
	name     string
	kind     Kind
	start    time.Time
	sampled  bool

	mu     sync.Mutex
	attrs  []Attr
	end    time.Time
	status Status
	ended  bool
}

// TraceID returns the trace the span belongs to.
func (s *Span) TraceID() TraceID { return s.traceID }

// SpanID returns the span's own ID.
func (s *Span) SpanID() SpanID { return s.spanID }

// ParentID returns the parent span ID, zero for root spans.
func (s *Span) ParentID() SpanID { return s.parentID }

// Name returns the operation name.
func (s *Span) Name() string { return s.name }

// Kind returns the span kind.
func (s *Span) Kind() Kind { return s.kind }

// StartTime returns when the span was begun.
func (s *Span) StartTime() time.Time { return s.start }

// Sampled reports the sampling decision made at creation.
func (s *Span) Sampled() bool { return s.sampled }

// Context returns the span's propagation handle.
func (s *Span) Context() SpanContext {
	return SpanContext{TraceID: s.traceID, SpanID: s.spanID, Sampled: s.sampled}
}

// SetAttributes appends attributes to the span. Keys are unique: setting an
// existing key replaces its value in place, preserving first-set order.
// Fails once the span has ended.
func (s *Span) SetAttributes(attrs ...Attr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return fmt.Errorf("set attributes on %q: %w", s.name, ErrEnded)
	}
	for _, a := range attrs {
		s.setLocked(a)
	}
	return nil
}

func (s *Span) setLocked(a Attr) {
	for i := range s.attrs {
		if s.attrs[i].Key == a.Key {
			s.attrs[i].Value = a.Value
			return
		}
	}
	s.attrs = append(s.attrs, a)
}

// Attributes returns a copy of the span's attributes in first-set order.
func (s *Span) Attributes() []Attr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Attr, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Attribute looks up a single attribute by key.
func (s *Span) Attribute(key string) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return Value{}, false
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// EndTime returns when the span ended, zero while still open.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// Duration returns end minus start, zero while still open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.start)
}

// Status returns the recorded outcome, zero while still open.
func (s *Span) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// End closes the span with the given status and hands it to the tracer's
// sink. A span ends exactly once; subsequent calls fail and leave the first
// outcome untouched.
func (s *Span) End(status Status) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return fmt.Errorf("end %q: %w", s.name, ErrEnded)
	}
	s.ended = true
	s.status = status
	s.end = time.Now()
	if s.end.Before(s.start) {
		s.end = s.start
	}
	s.mu.Unlock()

	if s.tracer != nil && s.tracer.sink != nil {
		s.tracer.sink.OnEnd(s)
	}
	return nil
}

// CopyWithAttributes returns a detached copy of an ended span carrying the
// given attribute set in place of the original's. The copy has no tracer and
// never re-enters a sink. Used by redaction to rewrite spans without
// mutating the sealed original.
func (s *Span) CopyWithAttributes(attrs []Attr) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := &Span{
		traceID:  s.traceID,
		spanID:   s.spanID,
		parentID: s.parentID,
		name:     s.name,
		kind:     s.kind,
		start:    s.start,
		sampled:  s.sampled,
		end:      s.end,
		status:   s.status,
		ended:    s.ended,
		attrs:    make([]Attr, len(attrs)),
	}
	copy(cp.attrs, attrs)
	return cp
}
