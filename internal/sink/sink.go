// Package sink implements tracesink, the development trace receiver. It
// accepts batches on the wire formats the exporter speaks (JSON and OTLP
// protobuf, plain or gzip), keeps a bounded in-memory view, and serves
// ingest totals, latency percentiles, Prometheus metrics, and a WebSocket
// tail of arriving spans.
package sink

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds receiver options.
type Config struct {
	Logger    *zap.Logger
	TailSize  int     // recent spans kept for replay and /spans
	Window    int     // span durations kept for latency percentiles
	IngestRPS float64 // per-client ingest rate limit, 0 disables
}

// Server is the trace receiver. Obtain the HTTP handler with Handler and
// serve it from an http.Server owned by the caller.
type Server struct {
	logger  *zap.Logger
	store   *store
	hub     *hub
	metrics *metrics
	router  *gin.Engine
	started time.Time
}

// New creates a receiver and wires its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TailSize <= 0 {
		cfg.TailSize = 256
	}
	if cfg.Window <= 0 {
		cfg.Window = 4096
	}

	s := &Server{
		logger:  cfg.Logger,
		store:   newStore(cfg.TailSize, cfg.Window),
		hub:     newHub(),
		metrics: newMetrics(),
		started: time.Now(),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Content-Encoding", "Authorization", "X-Batch-ID"},
		MaxAge:       12 * time.Hour,
	}))

	if cfg.IngestRPS > 0 {
		router.POST("/v1/traces", ingestLimit(cfg.IngestRPS), s.handleIngest)
	} else {
		router.POST("/v1/traces", s.handleIngest)
	}
	router.GET("/healthz", s.handleHealth)
	router.GET("/stats", s.handleStats)
	router.GET("/spans", s.handleSpans)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	router.GET("/stream", s.handleStream)
	s.router = router
	return s
}

// Handler returns the receiver's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Stats returns a snapshot of ingest totals.
func (s *Server) Stats() Stats { return s.store.snapshot() }

// metrics are the receiver's own instruments, registered on a private
// registry served at /metrics.
type metrics struct {
	registry      *prometheus.Registry
	batches       prometheus.Counter
	spans         prometheus.Counter
	errored       prometheus.Counter
	streamClients prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracesink_batches_received_total",
			Help: "Batches accepted by the receiver.",
		}),
		spans: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracesink_spans_received_total",
			Help: "Spans accepted by the receiver.",
		}),
		errored: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracesink_spans_errored_total",
			Help: "Accepted spans whose status is ERROR.",
		}),
		streamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracesink_stream_clients",
			Help: "Connected WebSocket subscribers.",
		}),
	}
}
