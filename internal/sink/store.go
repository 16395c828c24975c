package sink

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/exesolution-com/tracepipe/internal/wire"
)

// Stats summarizes everything the receiver has ingested so far.
type Stats struct {
	Batches    int            `json:"batches"`
	TotalSpans int            `json:"total_spans"`
	ErrorSpans int            `json:"error_spans"`
	ByKind     map[string]int `json:"by_kind"`
	ByService  map[string]int `json:"by_service"`
	LatencyMs  Percentiles    `json:"latency_ms"`
}

// Percentiles holds span duration quantiles over the sliding window.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// store is the bounded in-memory state behind /stats, /spans, and the
// stream replay. Durations and the span tail are sliding windows so a
// long-running receiver stays flat on memory.
type store struct {
	mu        sync.Mutex
	tailSize  int
	window    int
	batches   int
	total     int
	errored   int
	byKind    map[string]int
	byService map[string]int
	durations []float64
	tail      []wire.SpanRecord
}

func newStore(tailSize, window int) *store {
	return &store{
		tailSize:  tailSize,
		window:    window,
		byKind:    make(map[string]int),
		byService: make(map[string]int),
	}
}

func (st *store) add(p wire.Payload) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.batches++
	service := p.Resource[wire.KeyServiceName]
	for _, rec := range p.Spans {
		st.total++
		if rec.Status.Code == "ERROR" {
			st.errored++
		}
		st.byKind[rec.Kind]++
		if service != "" {
			st.byService[service]++
		}
		st.durations = append(st.durations, rec.DurationMs)
		st.tail = append(st.tail, rec)
	}
	if over := len(st.durations) - st.window; over > 0 {
		st.durations = append(st.durations[:0], st.durations[over:]...)
	}
	if over := len(st.tail) - st.tailSize; over > 0 {
		st.tail = append(st.tail[:0], st.tail[over:]...)
	}
}

func (st *store) snapshot() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := Stats{
		Batches:    st.batches,
		TotalSpans: st.total,
		ErrorSpans: st.errored,
		ByKind:     make(map[string]int, len(st.byKind)),
		ByService:  make(map[string]int, len(st.byService)),
	}
	for k, v := range st.byKind {
		s.ByKind[k] = v
	}
	for k, v := range st.byService {
		s.ByService[k] = v
	}
	if len(st.durations) > 0 {
		sorted := make([]float64, len(st.durations))
		copy(sorted, st.durations)
		sort.Float64s(sorted)
		s.LatencyMs = Percentiles{
			P50: stat.Quantile(0.5, stat.Empirical, sorted, nil),
			P90: stat.Quantile(0.9, stat.Empirical, sorted, nil),
			P99: stat.Quantile(0.99, stat.Empirical, sorted, nil),
		}
	}
	return s
}

// recent returns up to n spans from the newest end of the tail, oldest
// first.
func (st *store) recent(n int) []wire.SpanRecord {
	st.mu.Lock()
	defer st.mu.Unlock()

	if n <= 0 || n > len(st.tail) {
		n = len(st.tail)
	}
	out := make([]wire.SpanRecord, n)
	copy(out, st.tail[len(st.tail)-n:])
	return out
}
