/*
Package trace implements the span model and the tracer that host
applications call into.

# Overview

A Span is a timed record of one unit of work. Spans sharing a trace ID form
a tree rooted at the span with no parent. The package follows OpenTelemetry
concepts with a minimal implementation tailored to the pipeline: fixed-width
IDs, ordered attributes with unique keys, and a strict open/closed lifecycle.

# Lifecycle

A span is created open, accepts attributes while open, and is ended exactly
once. Ending hands the span to the configured sink (the pipeline) and freezes
it; any further mutation fails with an error wrapping ErrEnded.

	tracer := trace.NewTracer(trace.WithSink(pipe))

	span, ctx := tracer.Begin(ctx, "chat.completion", trace.WithKind(trace.KindClient))
	span.SetAttributes(trace.String("llm.model", "gpt-4o"))
	// ... perform work ...
	span.End(trace.OK())

# Propagation

Trace context crosses process boundaries via the X-Trace-ID, X-Span-ID, and
X-Trace-Sampled headers. Within a process it travels on context.Context;
child spans pick up their parent and the trace's sampling decision from the
context handle, never from hidden global state.
*/
package trace
