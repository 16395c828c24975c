package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/exesolution-com/tracepipe/internal/id"
	"github.com/exesolution-com/tracepipe/internal/monitoring"
	"github.com/exesolution-com/tracepipe/queue"
	"github.com/exesolution-com/tracepipe/trace"
)

// ErrClosed is returned by operations on a shut-down exporter.
var ErrClosed = errors.New("exporter closed")

// errInterrupted marks an export attempt cut short by shutdown or context
// cancellation; the batch has been requeued, not dropped.
var errInterrupted = errors.New("export interrupted")

// State is the export worker's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateExporting
	StateBackoff
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExporting:
		return "exporting"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Settings configures the export worker and its transport.
type Settings struct {
	// ServiceName and Environment describe the resource every batch is
	// attributed to.
	ServiceName string
	Environment string

	// Endpoint is the collector address: an http(s) URL for the HTTP
	// protocols, host:port for grpc.
	Endpoint string
	// Protocol selects the transport: http_json, http_protobuf, or grpc.
	Protocol string
	// Compression applies to the HTTP transports: none or gzip.
	Compression string
	// Headers are sent with every export request.
	Headers map[string]string
	// Insecure disables TLS on the grpc transport.
	Insecure bool

	// MaxBatchSize caps spans per export request.
	MaxBatchSize int
	// FlushInterval is the ticker period for draining the queue.
	FlushInterval time.Duration
	// Timeout bounds a single transport attempt.
	Timeout time.Duration
	// RetryLimit caps transport attempts per batch; the batch is dropped
	// after the last failed attempt.
	RetryLimit int
	// BackoffInitial is the delay after the first failed attempt; it
	// doubles per failure up to BackoffMax.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// OnStateChange is called on worker state transitions.
	OnStateChange func(from, to State)
}

func (s Settings) withDefaults() Settings {
	if s.ServiceName == "" {
		s.ServiceName = "unknown-service"
	}
	if s.Compression == "" {
		s.Compression = CompressionNone
	}
	if s.MaxBatchSize <= 0 {
		s.MaxBatchSize = 512
	}
	if s.FlushInterval <= 0 {
		s.FlushInterval = 5 * time.Second
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.RetryLimit < 1 {
		s.RetryLimit = 1
	}
	if s.BackoffInitial <= 0 {
		s.BackoffInitial = time.Second
	}
	if s.BackoffMax < s.BackoffInitial {
		s.BackoffMax = 30 * time.Second
	}
	return s
}

type flushRequest struct {
	ctx context.Context
	err chan error
}

// Exporter is the single worker that drains the queue and pushes batches
// through the transport. Producers never wait on it: failures surface only
// in logs and metrics, and on the error returned by an explicit Flush.
type Exporter struct {
	settings  Settings
	transport Transport
	queue     *queue.Queue
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	gen       *id.Generator

	mu      sync.Mutex
	state   State
	started bool

	kick   chan struct{}
	flushc chan flushRequest
	stopc  chan struct{}
	donec  chan struct{}

	startOnce    sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithTransport overrides the protocol-derived transport.
func WithTransport(t Transport) Option {
	return func(e *Exporter) {
		e.transport = t
	}
}

// WithLogger sets the logger. Defaults to a nop.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to an isolated registry.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Exporter) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New builds an exporter draining q. The worker does not run until Start.
func New(settings Settings, q *queue.Queue, opts ...Option) (*Exporter, error) {
	e := &Exporter{
		settings: settings.withDefaults(),
		queue:    q,
		logger:   zap.NewNop(),
		gen:      id.Default(),
		state:    StateIdle,
		kick:     make(chan struct{}, 1),
		flushc:   make(chan flushRequest),
		stopc:    make(chan struct{}),
		donec:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = monitoring.NewMetrics(prometheus.NewRegistry())
	}
	if e.transport == nil {
		t, err := NewTransport(e.settings)
		if err != nil {
			return nil, err
		}
		e.transport = t
	}
	return e, nil
}

// State returns the worker's current state.
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start launches the worker goroutine. Safe to call once; extra calls are
// no-ops.
func (e *Exporter) Start() {
	e.startOnce.Do(func() {
		e.mu.Lock()
		e.started = true
		e.mu.Unlock()
		go e.run()
	})
}

// Kick nudges the worker to drain now, used when the queue crosses the
// batch-size high-water mark. Never blocks.
func (e *Exporter) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Flush drains the queue through the transport and returns the first
// terminal failure, bounded by ctx.
func (e *Exporter) Flush(ctx context.Context) error {
	select {
	case <-e.stopc:
		return ErrClosed
	default:
	}

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return e.drainAll(ctx)
	}

	req := flushRequest{ctx: ctx, err: make(chan error, 1)}
	select {
	case e.flushc <- req:
	case <-e.stopc:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.err:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the worker, attempts a final best-effort flush bounded by
// ctx, discards and counts whatever could not be delivered, and releases
// the transport. Idempotent; later calls return the first result.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.shutdownErr = e.shutdown(ctx)
	})
	return e.shutdownErr
}

func (e *Exporter) shutdown(ctx context.Context) error {
	close(e.stopc)
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		<-e.donec
	}

	var firstErr error
	for {
		if ctx.Err() != nil {
			if rest := e.queue.Drain(e.queue.Capacity()); len(rest) > 0 {
				e.metrics.RecordDrop(len(rest), monitoring.DropShutdown)
				e.logger.Warn("shutdown deadline hit, discarding spans",
					zap.Int("spans", len(rest)))
			}
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			break
		}
		spans := e.queue.Drain(e.settings.MaxBatchSize)
		if len(spans) == 0 {
			break
		}
		batch := Batch{ID: e.gen.BatchID(), Spans: spans}
		cctx, cancel := context.WithTimeout(ctx, e.settings.Timeout)
		start := time.Now()
		err := e.transport.Export(cctx, batch)
		cancel()
		if err != nil {
			e.metrics.RecordDrop(len(spans), monitoring.DropShutdown)
			e.logger.Warn("shutdown flush failed, discarding batch",
				zap.String("batch_id", batch.ID),
				zap.Int("spans", len(spans)),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.metrics.RecordExport(len(spans), time.Since(start))
	}

	if err := e.transport.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	e.setState(StateClosed)
	return firstErr
}

func (e *Exporter) run() {
	defer close(e.donec)
	ticker := time.NewTicker(e.settings.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopc:
			return
		case <-ticker.C:
			e.drainAll(context.Background())
		case <-e.kick:
			e.drainAll(context.Background())
		case req := <-e.flushc:
			req.err <- e.drainAll(req.ctx)
		}
	}
}

// drainAll exports queued spans batch by batch until the queue is empty or
// the context ends. Returns the first terminal error; interrupted batches
// are requeued, not dropped.
func (e *Exporter) drainAll(ctx context.Context) error {
	var firstErr error
	for {
		spans := e.queue.Drain(e.settings.MaxBatchSize)
		e.metrics.QueueDepth.Set(float64(e.queue.Len()))
		if len(spans) == 0 {
			e.setState(StateIdle)
			return firstErr
		}
		err := e.exportBatch(ctx, spans)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if errors.Is(err, errInterrupted) {
			return firstErr
		}
	}
}

// exportBatch pushes one batch through the transport, retrying transient
// failures with exponential backoff until RetryLimit attempts are spent.
func (e *Exporter) exportBatch(ctx context.Context, spans []*trace.Span) error {
	batch := Batch{ID: e.gen.BatchID(), Spans: spans}
	backoff := e.settings.BackoffInitial

	for attempt := 1; ; attempt++ {
		e.setState(StateExporting)
		cctx, cancel := context.WithTimeout(ctx, e.settings.Timeout)
		start := time.Now()
		err := e.transport.Export(cctx, batch)
		cancel()

		if err == nil {
			e.metrics.RecordExport(len(spans), time.Since(start))
			e.logger.Debug("batch exported",
				zap.String("batch_id", batch.ID),
				zap.Int("spans", len(spans)),
				zap.Duration("duration", time.Since(start)))
			return nil
		}

		if errors.Is(err, ErrPermanent) {
			e.metrics.RecordExportFailure(monitoring.FailurePermanent)
			e.metrics.RecordDrop(len(spans), monitoring.DropRejected)
			e.logger.Warn("batch rejected by collector, dropping",
				zap.String("batch_id", batch.ID),
				zap.Int("spans", len(spans)),
				zap.Error(err))
			return err
		}

		e.metrics.RecordExportFailure(monitoring.FailureTransient)
		if attempt >= e.settings.RetryLimit {
			e.metrics.RecordDrop(len(spans), monitoring.DropRetryExhausted)
			e.logger.Error("batch dropped after retries",
				zap.String("batch_id", batch.ID),
				zap.Int("spans", len(spans)),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return fmt.Errorf("batch %s dropped after %d attempts: %w", batch.ID, attempt, err)
		}

		e.logger.Warn("export failed, backing off",
			zap.String("batch_id", batch.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		e.setState(StateBackoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.requeue(spans)
			return fmt.Errorf("%w: %w", errInterrupted, ctx.Err())
		case <-e.stopc:
			timer.Stop()
			e.requeue(spans)
			return errInterrupted
		case <-timer.C:
		}
		backoff = min(backoff*2, e.settings.BackoffMax)
	}
}

// requeue puts an interrupted batch back at the queue front so the final
// flush retries it in order.
func (e *Exporter) requeue(spans []*trace.Span) {
	if evicted := e.queue.RequeueFront(spans); evicted > 0 {
		e.metrics.QueueEvictions.Add(float64(evicted))
	}
	e.metrics.QueueDepth.Set(float64(e.queue.Len()))
}

func (e *Exporter) setState(next State) {
	e.mu.Lock()
	prev := e.state
	if prev == next || prev == StateClosed {
		e.mu.Unlock()
		return
	}
	e.state = next
	e.mu.Unlock()

	e.metrics.ExporterState.Set(float64(next))
	if e.settings.OnStateChange != nil {
		e.settings.OnStateChange(prev, next)
	}
}
