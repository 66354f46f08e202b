// Package confidence holds the pure functions that combine, decay and
// penalize confidence scores. Params is a value type; nothing here keeps state.
package confidence

import (
	"math"
	"time"
)

// Params tunes the confidence curves.
type Params struct {
	// Cap bounds combined confidence below certainty.
	Cap float64 `mapstructure:"cap"`
	// Floor is the lowest value decay or conflict can push a score to.
	Floor float64 `mapstructure:"floor"`
	// HalfLife is the age at which decay halves a score.
	HalfLife time.Duration `mapstructure:"-"`
	// MaxConflictPenalty is the share of confidence removed by a conflict of
	// severity 1.
	MaxConflictPenalty float64 `mapstructure:"max_conflict_penalty"`
}

// DefaultParams returns the default curve parameters.
func DefaultParams() Params {
	return Params{
		Cap:                0.99,
		Floor:              0.05,
		HalfLife:           30 * 24 * time.Hour,
		MaxConflictPenalty: 0.5,
	}
}

// Combine models independent corroboration: 1-(1-c1)(1-c2), capped. The
// result never drops below either input.
func (p Params) Combine(c1, c2 float64) float64 {
	c1, c2 = clamp01(c1), clamp01(c2)
	combined := 1 - (1-c1)*(1-c2)
	if combined > p.Cap {
		combined = p.Cap
	}
	return math.Max(combined, math.Max(c1, c2))
}

// Decay lowers c exponentially with age and never raises it. The result is
// bounded below by Floor, unless c already starts under it.
func (p Params) Decay(c float64, age time.Duration) float64 {
	c = clamp01(c)
	if age <= 0 || p.HalfLife <= 0 {
		return c
	}
	decayed := c * math.Exp2(-float64(age)/float64(p.HalfLife))
	if decayed < p.Floor {
		return math.Min(c, p.Floor)
	}
	return decayed
}

// DecayAt decays c by the time elapsed from lastSeen to now.
func (p Params) DecayAt(c float64, lastSeen, now time.Time) float64 {
	return p.Decay(c, now.Sub(lastSeen))
}

// PenalizeConflict reduces c in proportion to severity in [0,1]. It never
// raises c and never goes below Floor unless c already starts under it.
func (p Params) PenalizeConflict(c, severity float64) float64 {
	c = clamp01(c)
	severity = clamp01(severity)
	penalized := c * (1 - p.MaxConflictPenalty*severity)
	if penalized < p.Floor {
		return math.Min(c, p.Floor)
	}
	return penalized
}

// WeightedMean averages two values weighted by their confidences. When both
// weights are zero it returns the plain mean.
func WeightedMean(v1, c1, v2, c2 float64) float64 {
	w := c1 + c2
	if w <= 0 {
		return (v1 + v2) / 2
	}
	return (v1*c1 + v2*c2) / w
}

// MergeOptional merges two optional values: the weighted mean when both are
// set, otherwise whichever one is set.
func MergeOptional(v1 *float64, c1 float64, v2 *float64, c2 float64) *float64 {
	switch {
	case v1 == nil && v2 == nil:
		return nil
	case v1 == nil:
		v := *v2
		return &v
	case v2 == nil:
		v := *v1
		return &v
	}
	v := WeightedMean(*v1, c1, *v2, c2)
	return &v
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
