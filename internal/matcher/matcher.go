// Package matcher decides whether a candidate entity is new or another
// sighting of something already in the graph.
package matcher

import (
	"log/slog"
	"math"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
	"github.com/ajitpratap0/spatial-cortex/pkg/tokenizer"
)

// locationNameMatch is the label similarity at which two places are taken to
// be the same place described differently.
const locationNameMatch = 0.85

// Config holds signal weights and decision thresholds.
type Config struct {
	NameWeight      float64 `mapstructure:"name_weight"`
	VisualWeight    float64 `mapstructure:"visual_weight"`
	TypeWeight      float64 `mapstructure:"type_weight"`
	TagWeight       float64 `mapstructure:"tag_weight"`
	SpatialPenalty  float64 `mapstructure:"spatial_penalty"`
	MergeThreshold  float64 `mapstructure:"merge_threshold"`
	RejectThreshold float64 `mapstructure:"reject_threshold"`
	PoolNameFloor   float64 `mapstructure:"pool_name_floor"`
	PoolVisualFloor float64 `mapstructure:"pool_visual_floor"`
	HighConfidence  float64 `mapstructure:"high_confidence"`
}

// DefaultConfig returns the default weights and thresholds.
func DefaultConfig() Config {
	return Config{
		NameWeight:      0.35,
		VisualWeight:    0.25,
		TypeWeight:      0.15,
		TagWeight:       0.15,
		SpatialPenalty:  0.10,
		MergeThreshold:  0.75,
		RejectThreshold: 0.40,
		PoolNameFloor:   0.5,
		PoolVisualFloor: 0.8,
		HighConfidence:  0.7,
	}
}

// View is the read access the matcher needs. store.Graph implements it.
type View interface {
	EachEntity(fn func(e *models.Entity))
	Entity(id string) (*models.Entity, bool)
	Outgoing(id string) []*models.Relationship
	ContainmentLinked(a, b string) bool
}

// Claim is the exclusive location a candidate is reported at in the same
// observation, e.g. ON "kitchen counter". TargetID is set when the place
// already resolved to an entity.
type Claim struct {
	Type        models.RelationType
	TargetID    string
	TargetNames []string
}

// Signals are the per-signal scores behind a decision, each in [0,1].
type Signals struct {
	Name    float64 `json:"name"`
	Visual  float64 `json:"visual"`
	Type    float64 `json:"type"`
	Tags    float64 `json:"tags"`
	Penalty float64 `json:"spatial_penalty"`
}

// Decision is the tagged outcome of resolving one candidate.
type Decision struct {
	Kind models.DecisionKind
	// TargetID is the entity to merge into. Set only for DecisionMerge.
	TargetID string
	// CandidateID is the best-scoring existing entity, if any.
	CandidateID string
	Score       float64
	Signals     Signals
	// Vetoed is set when a same-named entity was excluded for its type.
	Vetoed bool
}

// Matcher scores candidates against existing entities.
type Matcher struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a matcher.
func New(cfg Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{cfg: cfg, logger: logger}
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// ResolveEntity picks the best existing match for c and applies the decision
// policy. claim may be nil.
func (m *Matcher) ResolveEntity(view View, c *models.EntityCandidate, claim *Claim) Decision {
	names := c.Names()

	var (
		best    *models.Entity
		bestSig Signals
		bestSc  = -1.0
		vetoed  bool
	)
	view.EachEntity(func(e *models.Entity) {
		name := tokenizer.BestSimilarity(names, e.Names())
		visual, bothVisual := visualSimilarity(c.VisualSignature, e.VisualSignature)
		inPool := name >= m.cfg.PoolNameFloor || (bothVisual && visual >= m.cfg.PoolVisualFloor)
		if !inPool {
			return
		}
		if !c.Type.CompatibleWith(e.Type) {
			vetoed = true
			return
		}
		sig := Signals{
			Name:   name,
			Visual: visual,
			Type:   1,
			Tags:   tagSimilarity(c.Tags, e.Tags),
		}
		if m.contradicts(view, e, claim) {
			sig.Penalty = m.cfg.SpatialPenalty
		}
		score := m.score(sig)
		if score > bestSc || (score == bestSc && store.Older(e, best)) {
			best, bestSig, bestSc = e, sig, score
		}
	})

	if best == nil {
		d := Decision{Kind: models.DecisionCreate, Vetoed: vetoed}
		m.logger.Debug("no match candidate", "name", c.Name, "vetoed", vetoed)
		return d
	}

	d := Decision{CandidateID: best.ID, Score: bestSc, Signals: bestSig, Vetoed: vetoed}
	switch {
	case bestSc >= m.cfg.MergeThreshold:
		d.Kind = models.DecisionMerge
		d.TargetID = best.ID
	case bestSc <= m.cfg.RejectThreshold:
		d.Kind = models.DecisionCreate
	default:
		d.Kind = models.DecisionAmbiguous
	}
	m.logger.Debug("resolved candidate", "name", c.Name, "decision", d.Kind, "candidate_id", best.ID, "score", bestSc)
	return d
}

// score normalizes the weighted sum by the total weight, then subtracts any
// spatial penalty.
func (m *Matcher) score(s Signals) float64 {
	total := m.cfg.NameWeight + m.cfg.VisualWeight + m.cfg.TypeWeight + m.cfg.TagWeight
	if total <= 0 {
		return 0
	}
	sum := m.cfg.NameWeight*s.Name + m.cfg.VisualWeight*s.Visual + m.cfg.TypeWeight*s.Type + m.cfg.TagWeight*s.Tags
	return clamp01(sum/total - s.Penalty)
}

// contradicts reports whether e is firmly located somewhere the claim
// cannot also be: a different place, not named alike, and not nested with it.
func (m *Matcher) contradicts(view View, e *models.Entity, claim *Claim) bool {
	if claim == nil || !claim.Type.IsExclusiveLocation() {
		return false
	}
	for _, r := range view.Outgoing(e.ID) {
		if !r.Type.IsExclusiveLocation() || r.Confidence < m.cfg.HighConfidence {
			continue
		}
		if claim.TargetID != "" && (r.TargetID == claim.TargetID || view.ContainmentLinked(r.TargetID, claim.TargetID)) {
			continue
		}
		target, ok := view.Entity(r.TargetID)
		if ok && tokenizer.BestSimilarity(target.Names(), claim.TargetNames) >= locationNameMatch {
			continue
		}
		return true
	}
	return false
}

// visualSimilarity returns cosine similarity clamped to [0,1], or a neutral
// 0.5 when either signature is missing. both reports whether a real
// comparison happened.
func visualSimilarity(a, b []float32) (sim float64, both bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.5, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0.5, false
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb))), true
}

// tagSimilarity is the Jaccard index, with 0.5 when only one side has tags.
func tagSimilarity(a, b []string) float64 {
	if (len(a) == 0) != (len(b) == 0) {
		return 0.5
	}
	return tokenizer.Jaccard(a, b)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
