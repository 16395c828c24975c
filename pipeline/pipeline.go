// Package pipeline assembles the span processing chain: a tracer producing
// spans, the sampling gate, attribute redaction, the bounded queue, and the
// export worker, all built from one validated configuration.
//
// A pipeline is live as soon as New returns. Ending a span runs the gate and
// redaction synchronously on the caller's goroutine, then hands the span to
// the queue; everything network-bound happens on the export worker.
//
//	cfg := config.LoadOrDefault()
//	p, err := pipeline.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Shutdown(context.Background())
//
//	span, ctx := p.Begin(ctx, "checkout")
//	defer span.End(trace.OK())
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/exesolution-com/tracepipe/config"
	"github.com/exesolution-com/tracepipe/export"
	"github.com/exesolution-com/tracepipe/internal/monitoring"
	"github.com/exesolution-com/tracepipe/queue"
	"github.com/exesolution-com/tracepipe/redact"
	"github.com/exesolution-com/tracepipe/sampler"
	"github.com/exesolution-com/tracepipe/trace"
)

// exporter is the queue drainer behind the pipeline: the real export worker,
// or a discarding stand-in when export is disabled.
type exporter interface {
	Start()
	Kick()
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
	State() export.State
}

// Pipeline owns the span processing chain from tracer to exporter.
type Pipeline struct {
	tracer   *trace.Tracer
	redactor redact.Redactor
	queue    *queue.Queue
	exporter exporter
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	batchSize int
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	transport  export.Transport
}

// WithLogger sets the pipeline logger. Defaults to a nop.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRegisterer sets the Prometheus registerer for the pipeline's metrics.
// Defaults to an isolated registry per pipeline.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTransport overrides the exporter's protocol-derived transport. Ignored
// when export is disabled.
func WithTransport(t export.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// New validates cfg and builds a running pipeline from it. The export worker
// is already started when New returns; the caller owns Shutdown.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}

	smp, err := sampler.New(cfg.Sampler.Strategy, cfg.Sampler.Ratio)
	if err != nil {
		return nil, fmt.Errorf("%w: sampler: %v", config.ErrInvalid, err)
	}
	red, err := redact.New(cfg.Redaction.Mode, cfg.Redaction.Pattern, cfg.Redaction.Keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: redaction: %v", config.ErrInvalid, err)
	}

	p := &Pipeline{
		redactor:  red,
		queue:     queue.New(cfg.Queue.Capacity),
		metrics:   monitoring.NewMetrics(o.registerer),
		logger:    o.logger,
		batchSize: cfg.Queue.MaxBatchSize,
	}
	p.tracer = trace.NewTracer(trace.WithSampler(smp), trace.WithSink(p))

	if cfg.Exporter.Enabled {
		exportOpts := []export.Option{
			export.WithMetrics(p.metrics),
			export.WithLogger(o.logger),
		}
		if o.transport != nil {
			exportOpts = append(exportOpts, export.WithTransport(o.transport))
		}
		exp, err := export.New(export.Settings{
			ServiceName:    cfg.ServiceName,
			Environment:    cfg.Environment,
			Endpoint:       cfg.Exporter.Endpoint,
			Protocol:       cfg.Exporter.Protocol,
			Compression:    cfg.Exporter.Compression,
			Headers:        cfg.Exporter.Headers,
			Insecure:       cfg.Exporter.Insecure,
			MaxBatchSize:   cfg.Queue.MaxBatchSize,
			FlushInterval:  cfg.Queue.FlushInterval.Std(),
			Timeout:        cfg.Exporter.Timeout.Std(),
			RetryLimit:     cfg.Exporter.RetryLimit,
			BackoffInitial: cfg.Exporter.BackoffInitial.Std(),
			BackoffMax:     cfg.Exporter.BackoffMax.Std(),
		}, p.queue, exportOpts...)
		if err != nil {
			return nil, err
		}
		p.exporter = exp
	} else {
		p.exporter = newDiscard(p.queue, p.metrics)
	}

	p.exporter.Start()
	p.logger.Info("pipeline started",
		zap.String("service", cfg.ServiceName),
		zap.String("sampler", smp.Description()),
		zap.String("redaction", red.Description()),
		zap.Bool("export_enabled", cfg.Exporter.Enabled),
		zap.Int("queue_capacity", cfg.Queue.Capacity),
		zap.Int("max_batch_size", cfg.Queue.MaxBatchSize))
	return p, nil
}

// Tracer returns the pipeline's span source.
func (p *Pipeline) Tracer() *trace.Tracer {
	return p.tracer
}

// Begin opens a span on the pipeline's tracer.
func (p *Pipeline) Begin(ctx context.Context, name string, opts ...trace.SpanOption) (*trace.Span, context.Context) {
	return p.tracer.Begin(ctx, name, opts...)
}

// State reports the export worker's lifecycle state.
func (p *Pipeline) State() export.State {
	return p.exporter.State()
}

// OnEnd receives every ended span from the tracer. Unsampled spans are
// discarded here unless they carry an error status, which always passes the
// gate. Kept spans are redacted and enqueued without blocking; when the
// queue is full the oldest span gives way.
func (p *Pipeline) OnEnd(s *trace.Span) {
	p.metrics.RecordEnded()

	switch {
	case s.Sampled():
		p.metrics.RecordKept(monitoring.KeepSampled)
	case s.Status().Code == trace.CodeError:
		p.metrics.RecordKept(monitoring.KeepErrorOverride)
	default:
		p.metrics.RecordUnsampled()
		return
	}

	evicted := p.queue.Enqueue(p.redactor.Apply(s))
	p.metrics.RecordEnqueued(p.queue.Len(), evicted)
	if evicted {
		p.logger.Debug("queue full, evicted oldest span",
			zap.String("incoming_span", s.SpanID().String()))
	}
	if p.queue.Len() >= p.batchSize {
		p.exporter.Kick()
	}
}

// Flush pushes everything queued so far through the exporter, bounded by
// ctx, and returns the first terminal export failure.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.exporter.Flush(ctx)
}

// Shutdown flushes best-effort within ctx and stops the export worker.
// Spans ended after Shutdown still pass the gate but are never drained.
// Idempotent.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	err := p.exporter.Shutdown(ctx)
	p.logger.Info("pipeline stopped", zap.Error(err))
	return err
}

// discard stands in for the export worker when export is disabled: spans
// reach the queue and are thrown away at the drain points, so the rest of
// the pipeline behaves exactly as it would with a live collector.
type discard struct {
	queue   *queue.Queue
	metrics *monitoring.Metrics
	stopc   chan struct{}
	once    sync.Once
}

func newDiscard(q *queue.Queue, m *monitoring.Metrics) *discard {
	return &discard{queue: q, metrics: m, stopc: make(chan struct{})}
}

func (d *discard) Start() {}

func (d *discard) Kick() {
	d.drain()
}

func (d *discard) Flush(_ context.Context) error {
	select {
	case <-d.stopc:
		return export.ErrClosed
	default:
	}
	d.drain()
	return nil
}

func (d *discard) Shutdown(_ context.Context) error {
	d.once.Do(func() {
		d.drain()
		close(d.stopc)
	})
	return nil
}

func (d *discard) State() export.State {
	select {
	case <-d.stopc:
		return export.StateClosed
	default:
		return export.StateIdle
	}
}

func (d *discard) drain() {
	if spans := d.queue.Drain(d.queue.Capacity()); len(spans) > 0 {
		d.metrics.RecordDrop(len(spans), monitoring.DropDisabled)
	}
	d.metrics.QueueDepth.Set(float64(d.queue.Len()))
}
