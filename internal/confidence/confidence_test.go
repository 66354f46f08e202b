package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	p := DefaultParams()

	assert.InDelta(t, 0.98, p.Combine(0.9, 0.8), 1e-9)
	assert.InDelta(t, 0.99, p.Combine(0.99, 0.99), 1e-9)
	assert.InDelta(t, 0.5, p.Combine(0.5, 0), 1e-9)
	assert.Equal(t, 1.0, p.Combine(1.0, 0.2), "inputs above the cap are never lowered")

	for _, c1 := range []float64{0, 0.1, 0.4, 0.7, 0.95} {
		for _, c2 := range []float64{0, 0.2, 0.5, 0.9} {
			got := p.Combine(c1, c2)
			assert.GreaterOrEqual(t, got, max(c1, c2))
			assert.LessOrEqual(t, got, 1.0)
			assert.InDelta(t, got, p.Combine(c2, c1), 1e-12, "combine is symmetric")
		}
	}
}

func TestDecay(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, 0.8, p.Decay(0.8, 0))
	assert.Equal(t, 0.8, p.Decay(0.8, -time.Hour))
	assert.InDelta(t, 0.4, p.Decay(0.8, p.HalfLife), 1e-9)
	assert.InDelta(t, 0.2, p.Decay(0.8, 2*p.HalfLife), 1e-9)
	assert.Equal(t, p.Floor, p.Decay(0.8, 100*p.HalfLife))
	assert.Equal(t, 0.01, p.Decay(0.01, 100*p.HalfLife), "decay never raises")

	prev := 1.0
	for d := time.Duration(0); d < 200*24*time.Hour; d += 24 * time.Hour {
		got := p.Decay(0.9, d)
		require.LessOrEqual(t, got, prev)
		prev = got
	}
}

func TestDecayAt(t *testing.T) {
	p := DefaultParams()
	seen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 0.45, p.DecayAt(0.9, seen, seen.Add(p.HalfLife)), 1e-9)
}

func TestPenalizeConflict(t *testing.T) {
	p := DefaultParams()

	assert.InDelta(t, 0.9*(1-0.5*0.6), p.PenalizeConflict(0.9, 0.6), 1e-9)
	assert.Equal(t, 0.9, p.PenalizeConflict(0.9, 0))
	assert.InDelta(t, 0.45, p.PenalizeConflict(0.9, 5), 1e-9, "severity is clamped")
	assert.Equal(t, p.Floor, p.PenalizeConflict(0.06, 1))
	assert.Equal(t, 0.02, p.PenalizeConflict(0.02, 1))
}

func TestWeightedMean(t *testing.T) {
	assert.InDelta(t, 1.5, WeightedMean(1, 0.5, 2, 0.5), 1e-9)
	assert.InDelta(t, 1.75, WeightedMean(1, 0.25, 2, 0.75), 1e-9)
	assert.InDelta(t, 3, WeightedMean(2, 0, 4, 0), 1e-9)
}

func TestMergeOptional(t *testing.T) {
	one, three := 1.0, 3.0
	assert.Nil(t, MergeOptional(nil, 0.9, nil, 0.1))

	got := MergeOptional(nil, 0.9, &three, 0.1)
	require.NotNil(t, got)
	assert.Equal(t, 3.0, *got)

	got = MergeOptional(&one, 0.5, &three, 0.5)
	require.NotNil(t, got)
	assert.Equal(t, 2.0, *got)
	assert.Equal(t, 1.0, one, "inputs are not aliased")
}
