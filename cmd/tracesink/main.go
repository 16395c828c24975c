// Command tracesink runs the development trace receiver. It accepts
// exporter batches over HTTP (JSON or OTLP protobuf, plain or gzip) and
// serves ingest stats, Prometheus metrics, and a WebSocket span tail.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/exesolution-com/tracepipe/internal/logging"
	"github.com/exesolution-com/tracepipe/internal/sink"
)

func main() {
	addr := flag.String("addr", ":4318", "listen address")
	tail := flag.Int("tail", 256, "recent spans kept for replay and /spans")
	window := flag.Int("window", 4096, "span durations kept for latency percentiles")
	ingestRPS := flag.Float64("ingest-rps", 0, "per-client ingest rate limit (0 disables)")
	dev := flag.Bool("dev", false, "console logging at debug level")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *dev {
		logCfg = logging.DevelopmentConfig()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	if !*dev {
		gin.SetMode(gin.ReleaseMode)
	}

	receiver := sink.New(sink.Config{
		Logger:    logger,
		TailSize:  *tail,
		Window:    *window,
		IngestRPS: *ingestRPS,
	})
	srv := &http.Server{
		Addr:              *addr,
		Handler:           receiver.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("tracesink listening",
			zap.String("addr", *addr),
			zap.Int("tail", *tail),
			zap.Int("window", *window),
		)
		errc <- srv.ListenAndServe()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}

	stats := receiver.Stats()
	logger.Info("final totals",
		zap.Int("batches", stats.Batches),
		zap.Int("spans", stats.TotalSpans),
		zap.Int("errors", stats.ErrorSpans),
	)
}
