// Command tracegen produces synthetic request traces through a full
// pipeline, for exercising a receiver end to end. Each trace is a SERVER
// root with a CLIENT model call and an INTERNAL post-processing step;
// simulated step latencies are drawn from a log-normal distribution.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/exesolution-com/tracepipe/config"
	"github.com/exesolution-com/tracepipe/internal/logging"
	"github.com/exesolution-com/tracepipe/pipeline"
	"github.com/exesolution-com/tracepipe/trace"
)

var models = []string{"m-small", "m-large", "m-embed"}

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file (default: TRACEPIPE_* environment)")
	endpoint := flag.String("endpoint", "", "collector endpoint override")
	service := flag.String("service", "", "service name override")
	tps := flag.Float64("rate", 20, "traces per second")
	count := flag.Int("count", 0, "traces to produce before exiting (0 runs until interrupted)")
	workers := flag.Int("workers", 4, "concurrent trace producers")
	errorRate := flag.Float64("error-rate", 0.05, "fraction of traces that fail")
	seed := flag.Uint64("seed", 1, "latency distribution seed")
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

	if *tps <= 0 {
		logger.Fatal("rate must be positive", zap.Float64("rate", *tps))
	}
	if *workers <= 0 {
		logger.Fatal("workers must be positive", zap.Int("workers", *workers))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *endpoint != "" {
		cfg.Exporter.Endpoint = *endpoint
	}
	if *service != "" {
		cfg.ServiceName = *service
	} else if cfg.ServiceName == "unknown-service" {
		cfg.ServiceName = "tracegen"
	}

	p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
	if err != nil {
		logger.Fatal("start pipeline", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := rate.NewLimiter(rate.Limit(*tps), *workers)
	var tickets, produced, failed atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			gen := newGenerator(p.Tracer(), *seed, uint64(worker), *errorRate)
			for {
				if *count > 0 && tickets.Add(1) > int64(*count) {
					return
				}
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				if gen.emit(ctx) {
					failed.Add(1)
				}
				produced.Add(1)
			}
		}(w)
	}
	wg.Wait()
	stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := p.Shutdown(flushCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("done",
		zap.Int64("traces", produced.Load()),
		zap.Int64("failed", failed.Load()),
	)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// generator produces one synthetic trace per emit call. Each worker owns
// a generator, so the random sources need no locking.
type generator struct {
	tracer    *trace.Tracer
	latency   distuv.LogNormal
	rng       *rand.Rand
	errorRate float64
	session   string
}

func newGenerator(tracer *trace.Tracer, seed, worker uint64, errorRate float64) *generator {
	return &generator{
		tracer: tracer,
		latency: distuv.LogNormal{
			Mu:    math.Log(12), // median simulated step latency, ms
			Sigma: 0.6,
			Src:   rand.NewPCG(seed, worker),
		},
		rng:       rand.New(rand.NewPCG(seed^0x9e3779b97f4a7c15, worker)),
		errorRate: errorRate,
		session:   uuid.NewString(),
	}
}

// emit produces one trace and reports whether it simulated a failure.
func (g *generator) emit(ctx context.Context) bool {
	fail := g.rng.Float64() < g.errorRate
	model := models[g.rng.IntN(len(models))]

	root, rctx := g.tracer.Begin(ctx, "handle-generate", trace.WithKind(trace.KindServer))
	root.SetAttributes(
		trace.String("http.method", "POST"),
		trace.String("http.route", "/v1/generate"),
		trace.String("request.id", uuid.NewString()),
		trace.String("session.id", g.session),
	)

	call, _ := g.tracer.Begin(rctx, "model.generate", trace.WithKind(trace.KindClient))
	call.SetAttributes(
		trace.String("model.name", model),
		trace.Int("model.input_tokens", int64(64+g.rng.IntN(1984))),
	)
	g.simulate(ctx, 3)
	if fail {
		call.End(trace.Error("model overloaded"))
		root.SetAttributes(trace.Int("http.status_code", 503))
		root.End(trace.Error("upstream model unavailable"))
		return true
	}
	call.SetAttributes(trace.Int("model.output_tokens", int64(16+g.rng.IntN(496))))
	call.End(trace.OK())

	post, _ := g.tracer.Begin(rctx, "postprocess")
	g.simulate(ctx, 1)
	post.End(trace.OK())

	root.SetAttributes(trace.Int("http.status_code", 200))
	root.End(trace.OK())
	return false
}

// simulate sleeps for a few sampled step latencies, bailing out early on
// cancellation.
func (g *generator) simulate(ctx context.Context, steps int) {
	for i := 0; i < steps; i++ {
		d := time.Duration(g.latency.Rand() * float64(time.Millisecond))
		if d > 250*time.Millisecond {
			d = 250 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}
