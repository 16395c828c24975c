// Package sampler provides the sampling strategies a tracer can be
// configured with. Decisions are made once per trace and are deterministic
// functions of their inputs, so every process observing the same trace ID
// with the same configuration reaches the same verdict.
package sampler

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/exesolution-com/tracepipe/trace"
)

// Strategy names accepted by New.
const (
	StrategyAlwaysOn     = "always_on"
	StrategyAlwaysOff    = "always_off"
	StrategyTraceIDRatio = "trace_id_ratio"
	StrategyParentBased  = "parent_based"
)

// New builds a sampler from a strategy name. Ratio is only consulted by
// trace_id_ratio. parent_based falls back to keeping roots.
func New(strategy string, ratio float64) (trace.Sampler, error) {
	switch strategy {
	case StrategyAlwaysOn:
		return AlwaysOn(), nil
	case StrategyAlwaysOff:
		return AlwaysOff(), nil
	case StrategyTraceIDRatio:
		return TraceIDRatio(ratio)
	case StrategyParentBased:
		return ParentBased(AlwaysOn()), nil
	default:
		return nil, fmt.Errorf("unknown sampler strategy %q", strategy)
	}
}

type alwaysOn struct{}

func (alwaysOn) Decide(trace.SampleParams) bool { return true }
func (alwaysOn) Description() string            { return StrategyAlwaysOn }

// AlwaysOn keeps every trace.
func AlwaysOn() trace.Sampler { return alwaysOn{} }

type alwaysOff struct{}

func (alwaysOff) Decide(trace.SampleParams) bool { return false }
func (alwaysOff) Description() string            { return StrategyAlwaysOff }

// AlwaysOff drops every trace. Error spans still reach the exporter through
// the pipeline's keep-errors override; the sampler itself has no say there.
func AlwaysOff() trace.Sampler { return alwaysOff{} }

type traceIDRatio struct {
	ratio float64
	bound uint64
}

// TraceIDRatio keeps the fraction ratio of traces, chosen by hashing the
// trace ID. The hash ignores span names and timing, so the verdict for a
// given trace ID never changes between runs or processes.
func TraceIDRatio(ratio float64) (trace.Sampler, error) {
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("sampler ratio %v out of range [0, 1]", ratio)
	}
	return traceIDRatio{
		ratio: ratio,
		bound: uint64(ratio * (1 << 63)),
	}, nil
}

func (s traceIDRatio) Decide(p trace.SampleParams) bool {
	return xxhash.Sum64(p.TraceID[:])>>1 < s.bound
}

func (s traceIDRatio) Description() string {
	return fmt.Sprintf("%s{%g}", StrategyTraceIDRatio, s.ratio)
}

type parentBased struct {
	delegate trace.Sampler
}

// ParentBased inherits the parent's decision when one exists and defers to
// the delegate for root spans. A nil delegate keeps roots.
func ParentBased(delegate trace.Sampler) trace.Sampler {
	if delegate == nil {
		delegate = AlwaysOn()
	}
	return parentBased{delegate: delegate}
}

func (s parentBased) Decide(p trace.SampleParams) bool {
	if p.HasParent {
		return p.ParentSampled
	}
	return s.delegate.Decide(p)
}

func (s parentBased) Description() string {
	return fmt.Sprintf("%s{%s}", StrategyParentBased, s.delegate.Description())
}
