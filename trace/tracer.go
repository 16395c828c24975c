package trace

import (
	"context"
	"time"

	"github.com/exesolution-com/tracepipe/internal/id"
)

// SampleParams is what a sampler may inspect when deciding a trace's fate.
// ParentSampled is only meaningful when HasParent is true.
type SampleParams struct {
	TraceID       TraceID
	Name          string
	Kind          Kind
	HasParent     bool
	ParentSampled bool
}

// Sampler decides at span creation whether a trace is kept. Implementations
// must be deterministic for a given trace ID so that concurrent roots of the
// same trace agree.
type Sampler interface {
	Decide(p SampleParams) bool
	Description() string
}

// alwaysOn is the default when no sampler is configured.
type alwaysOn struct{}

func (alwaysOn) Decide(SampleParams) bool { return true }
func (alwaysOn) Description() string      { return "always_on" }

// Sink receives spans as they end. OnEnd runs synchronously on the goroutine
// calling End and must not block.
type Sink interface {
	OnEnd(s *Span)
}

// Tracer creates spans. Safe for concurrent use.
type Tracer struct {
	sampler Sampler
	sink    Sink
	gen     *id.Generator
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithSampler sets the sampling strategy. Defaults to keeping everything.
func WithSampler(s Sampler) TracerOption {
	return func(t *Tracer) {
		if s != nil {
			t.sampler = s
		}
	}
}

// WithSink sets the destination for ended spans. Without a sink, ended
// spans are discarded.
func WithSink(s Sink) TracerOption {
	return func(t *Tracer) {
		t.sink = s
	}
}

// NewTracer builds a tracer.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		sampler: alwaysOn{},
		gen:     id.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type spanConfig struct {
	kind      Kind
	parent    SpanContext
	hasParent bool
	attrs     []Attr
}

// SpanOption configures a span at creation.
type SpanOption func(*spanConfig)

// WithKind sets the span kind. Defaults to KindInternal.
func WithKind(k Kind) SpanOption {
	return func(c *spanConfig) {
		c.kind = k
	}
}

// WithParent sets an explicit parent handle, overriding whatever the
// context carries.
func WithParent(sc SpanContext) SpanOption {
	return func(c *spanConfig) {
		c.parent = sc
		c.hasParent = true
	}
}

// WithAttributes sets initial attributes.
func WithAttributes(attrs ...Attr) SpanOption {
	return func(c *spanConfig) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// Begin opens a span and returns it along with a context carrying it, so
// work begun from that context parents onto the new span.
//
// Parentage resolves in order: an explicit WithParent handle, the open span
// on the context, a remote handle extracted from incoming headers. With none
// of these the span roots a new trace.
//
// The sampling decision is made once per trace: children of a local span
// inherit its decision, continuations of a remote trace ask the sampler with
// the remote flag in hand, and roots ask the sampler fresh.
func (t *Tracer) Begin(ctx context.Context, name string, opts ...SpanOption) (*Span, context.Context) {
	var cfg spanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	parent := cfg.parent
	local := false
	if !cfg.hasParent {
		if ps := SpanFromContext(ctx); ps != nil {
			parent = ps.Context()
			local = true
		} else {
			parent = RemoteFromContext(ctx)
		}
	}

	traceID := parent.TraceID
	if !traceID.IsValid() {
		traceID = TraceID(t.gen.TraceID())
	}

	var sampled bool
	switch {
	case local:
		sampled = parent.Sampled
	case parent.TraceID.IsValid():
		sampled = t.sampler.Decide(SampleParams{
			TraceID:       traceID,
			Name:          name,
			Kind:          cfg.kind,
			HasParent:     true,
			ParentSampled: parent.Sampled,
		})
	default:
		sampled = t.sampler.Decide(SampleParams{
			TraceID: traceID,
			Name:    name,
			Kind:    cfg.kind,
		})
	}

	s := &Span{
		tracer:   t,
		traceID:  traceID,
		spanID:   SpanID(t.gen.SpanID()),
		parentID: parent.SpanID,
		name:     name,
		kind:     cfg.kind,
		start:    time.Now(),
		sampled:  sampled,
	}
	for _, a := range cfg.attrs {
		s.setLocked(a)
	}
	return s, ContextWithSpan(ctx, s)
}
