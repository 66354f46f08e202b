// Package recall ranks "where is it" answers. A placement is scored on how
// well its name matched, how confident the location is, how recently it was
// seen and how often it has been corroborated.
package recall

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
)

// Weights controls the relative importance of each ranking factor.
type Weights struct {
	Name          float64 `json:"name" mapstructure:"name"`
	Confidence    float64 `json:"confidence" mapstructure:"confidence"`
	Recency       float64 `json:"recency" mapstructure:"recency"`
	Corroboration float64 `json:"corroboration" mapstructure:"corroboration"`
}

// DefaultWeights returns the default ranking weights.
func DefaultWeights() Weights {
	return Weights{
		Name:          0.4,
		Confidence:    0.3,
		Recency:       0.2,
		Corroboration: 0.1,
	}
}

// Item is one answer to rank.
type Item struct {
	ID           string
	NameScore    float64
	Confidence   float64
	LastSeen     time.Time
	Observations int
}

// Ranked is an Item with its factor scores.
type Ranked struct {
	Item
	RecencyScore   float64 `json:"recency_score"`
	FrequencyScore float64 `json:"frequency_score"`
	FinalScore     float64 `json:"final_score"`
}

// Ranker performs multi-factor ranking of placements.
type Ranker struct {
	weights Weights
	params  confidence.Params
	logger  *slog.Logger
}

// NewRanker creates a ranker. Recency follows the decay half-life in params.
func NewRanker(weights Weights, params confidence.Params, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{weights: weights, params: params, logger: logger}
}

// Weights returns the ranker's weights.
func (r *Ranker) Weights() Weights {
	return r.weights
}

// Rank scores items as of now and sorts them by final score descending. Ties
// go to the more recently seen item, then by ID.
func (r *Ranker) Rank(items []Item, now time.Time) []Ranked {
	ranked := make([]Ranked, 0, len(items))
	for _, it := range items {
		rr := Ranked{
			Item:           it,
			RecencyScore:   r.recencyScore(it.LastSeen, now),
			FrequencyScore: frequencyScore(it.Observations),
		}
		rr.FinalScore = r.weights.Name*it.NameScore +
			r.weights.Confidence*it.Confidence +
			r.weights.Recency*rr.RecencyScore +
			r.weights.Corroboration*rr.FrequencyScore
		ranked = append(ranked, rr)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		if !ranked[i].LastSeen.Equal(ranked[j].LastSeen) {
			return ranked[i].LastSeen.After(ranked[j].LastSeen)
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// recencyScore halves every HalfLife. A zero time scores 0.
func (r *Ranker) recencyScore(lastSeen, now time.Time) float64 {
	if lastSeen.IsZero() {
		return 0
	}
	age := now.Sub(lastSeen)
	if age <= 0 || r.params.HalfLife <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(r.params.HalfLife))
}

// frequencyScore uses log scale on the sighting count, saturating at 1023.
func frequencyScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(1.0, math.Log2(float64(count)+1)/10.0)
}
