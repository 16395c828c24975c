package sampler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exesolution-com/tracepipe/trace"
)

func syntheticTraceID(n uint64) trace.TraceID {
	var id trace.TraceID
	binary.BigEndian.PutUint64(id[:8], n)
	binary.BigEndian.PutUint64(id[8:], n*2654435761)
	return id
}

func TestNew(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
		desc     string
	}{
		{strategy: "always_on", desc: "always_on"},
		{strategy: "always_off", desc: "always_off"},
		{strategy: "trace_id_ratio", ratio: 0.5, desc: "trace_id_ratio{0.5}"},
		{strategy: "parent_based", desc: "parent_based{always_on}"},
		{strategy: "trace_id_ratio", ratio: 1.5, wantErr: true},
		{strategy: "trace_id_ratio", ratio: -0.1, wantErr: true},
		{strategy: "head_based", wantErr: true},
		{strategy: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy+tt.desc, func(t *testing.T) {
			s, err := New(tt.strategy, tt.ratio)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.desc, s.Description())
		})
	}
}

func TestAlwaysOnAndOff(t *testing.T) {
	p := trace.SampleParams{TraceID: syntheticTraceID(7)}
	assert.True(t, AlwaysOn().Decide(p))
	assert.False(t, AlwaysOff().Decide(p))
}

func TestTraceIDRatioDeterministic(t *testing.T) {
	a, err := TraceIDRatio(0.5)
	require.NoError(t, err)
	b, err := TraceIDRatio(0.5)
	require.NoError(t, err)

	for i := uint64(0); i < 1000; i++ {
		p := trace.SampleParams{TraceID: syntheticTraceID(i)}
		assert.Equal(t, a.Decide(p), b.Decide(p), "trace %d must get the same verdict from equal samplers", i)
	}
}

func TestTraceIDRatioIgnoresEverythingButTraceID(t *testing.T) {
	s, err := TraceIDRatio(0.5)
	require.NoError(t, err)

	id := syntheticTraceID(42)
	base := s.Decide(trace.SampleParams{TraceID: id})
	varied := s.Decide(trace.SampleParams{
		TraceID:       id,
		Name:          "different",
		Kind:          trace.KindClient,
		HasParent:     true,
		ParentSampled: !base,
	})
	assert.Equal(t, base, varied)
}

func TestTraceIDRatioBounds(t *testing.T) {
	all, err := TraceIDRatio(1)
	require.NoError(t, err)
	none, err := TraceIDRatio(0)
	require.NoError(t, err)

	for i := uint64(0); i < 200; i++ {
		p := trace.SampleParams{TraceID: syntheticTraceID(i)}
		assert.True(t, all.Decide(p))
		assert.False(t, none.Decide(p))
	}
}

func TestTraceIDRatioApproximatesRate(t *testing.T) {
	s, err := TraceIDRatio(0.25)
	require.NoError(t, err)

	const n = 10000
	kept := 0
	for i := uint64(0); i < n; i++ {
		if s.Decide(trace.SampleParams{TraceID: syntheticTraceID(i)}) {
			kept++
		}
	}
	assert.InDelta(t, 0.25, float64(kept)/n, 0.02)
}

func TestTraceIDRatioMonotonic(t *testing.T) {
	low, err := TraceIDRatio(0.25)
	require.NoError(t, err)
	high, err := TraceIDRatio(0.75)
	require.NoError(t, err)

	for i := uint64(0); i < 1000; i++ {
		p := trace.SampleParams{TraceID: syntheticTraceID(i)}
		if low.Decide(p) {
			assert.True(t, high.Decide(p), "raising the ratio must never drop a previously kept trace")
		}
	}
}

func TestParentBased(t *testing.T) {
	s := ParentBased(AlwaysOff())

	assert.True(t, s.Decide(trace.SampleParams{HasParent: true, ParentSampled: true}))
	assert.False(t, s.Decide(trace.SampleParams{HasParent: true, ParentSampled: false}))
	assert.False(t, s.Decide(trace.SampleParams{TraceID: syntheticTraceID(1)}), "root goes to delegate")

	withDefault := ParentBased(nil)
	assert.True(t, withDefault.Decide(trace.SampleParams{TraceID: syntheticTraceID(2)}))
}
