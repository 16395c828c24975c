package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded on the dropped-span counters.
const (
	DropRetryExhausted = "retry_exhausted"
	DropRejected       = "rejected"
	DropShutdown       = "shutdown"
	DropDisabled       = "disabled"
)

// Keep reasons recorded on the kept-span counter.
const (
	KeepSampled       = "sampled"
	KeepErrorOverride = "error_override"
)

// Failure kinds recorded on the export-failure counter.
const (
	FailureTransient = "transient"
	FailurePermanent = "permanent"
)

// Metrics holds the pipeline's Prometheus instruments.
type Metrics struct {
	SpansEnded     prometheus.Counter
	SpansKept      *prometheus.CounterVec
	SpansUnsampled prometheus.Counter

	QueueDepth     prometheus.Gauge
	QueueEvictions prometheus.Counter

	ExportBatches  prometheus.Counter
	ExportSpans    prometheus.Counter
	ExportFailures *prometheus.CounterVec
	ExportDuration prometheus.Histogram
	BatchSpans     prometheus.Histogram

	DroppedBatches *prometheus.CounterVec
	DroppedSpans   *prometheus.CounterVec

	ExporterState prometheus.Gauge
}

// NewMetrics creates the pipeline instruments on the given registerer. A
// nil registerer falls back to the process-wide default. Each pipeline
// needs its own registerer; registering two pipelines on one registry
// panics on the duplicate names, as promauto always does.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SpansEnded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracepipe_spans_ended_total",
				Help: "Total number of spans handed to the pipeline",
			},
		),
		SpansKept: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepipe_spans_kept_total",
				Help: "Total number of spans kept past the sampling gate",
			},
			[]string{"reason"},
		),
		SpansUnsampled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracepipe_spans_unsampled_total",
				Help: "Total number of spans discarded by the sampling gate",
			},
		),

		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracepipe_queue_depth",
				Help: "Spans currently buffered for export",
			},
		),
		QueueEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracepipe_queue_evictions_total",
				Help: "Total number of spans evicted from the full queue",
			},
		),

		ExportBatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracepipe_export_batches_total",
				Help: "Total number of batches exported successfully",
			},
		),
		ExportSpans: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tracepipe_export_spans_total",
				Help: "Total number of spans exported successfully",
			},
		),
		ExportFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepipe_export_failures_total",
				Help: "Total number of failed export attempts",
			},
			[]string{"kind"},
		),
		ExportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracepipe_export_duration_seconds",
				Help:    "Export round-trip duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		BatchSpans: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracepipe_export_batch_spans",
				Help:    "Spans per exported batch",
				Buckets: []float64{1, 8, 32, 128, 512, 2048},
			},
		),

		DroppedBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepipe_dropped_batches_total",
				Help: "Total number of batches dropped without export",
			},
			[]string{"reason"},
		),
		DroppedSpans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracepipe_dropped_spans_total",
				Help: "Total number of spans dropped without export",
			},
			[]string{"reason"},
		),

		ExporterState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracepipe_exporter_state",
				Help: "Exporter state: 0=idle 1=exporting 2=backoff 3=closed",
			},
		),
	}
}

// RecordEnded records a span entering the pipeline sink.
func (m *Metrics) RecordEnded() {
	m.SpansEnded.Inc()
}

// RecordKept records a span passing the sampling gate.
func (m *Metrics) RecordKept(reason string) {
	m.SpansKept.WithLabelValues(reason).Inc()
}

// RecordUnsampled records a span discarded by the sampling gate.
func (m *Metrics) RecordUnsampled() {
	m.SpansUnsampled.Inc()
}

// RecordEnqueued updates queue accounting after an enqueue.
func (m *Metrics) RecordEnqueued(depth int, evicted bool) {
	m.QueueDepth.Set(float64(depth))
	if evicted {
		m.QueueEvictions.Inc()
	}
}

// RecordExport records a successful batch export.
func (m *Metrics) RecordExport(spans int, duration time.Duration) {
	m.ExportBatches.Inc()
	m.ExportSpans.Add(float64(spans))
	m.ExportDuration.Observe(duration.Seconds())
	m.BatchSpans.Observe(float64(spans))
}

// RecordExportFailure records a failed export attempt of the given kind.
func (m *Metrics) RecordExportFailure(kind string) {
	m.ExportFailures.WithLabelValues(kind).Inc()
}

// RecordDrop records a batch abandoned without export.
func (m *Metrics) RecordDrop(spans int, reason string) {
	m.DroppedBatches.WithLabelValues(reason).Inc()
	m.DroppedSpans.WithLabelValues(reason).Add(float64(spans))
}
