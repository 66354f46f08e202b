// Package query serves read-only traversals over a graph: context around an
// entity, weighted paths, relation lookups with inverse expansion, counters
// and "where is it" placement.
//
// Callers hold the graph's read lock for the duration of each call. Every
// record returned is a copy.
package query

import (
	"log/slog"
	"time"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/recall"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// Config tunes traversal costs and limits.
type Config struct {
	DefaultRadius     int     `mapstructure:"default_radius"`
	BaseCost          float64 `mapstructure:"base_cost"`
	ReverseCostFactor float64 `mapstructure:"reverse_cost_factor"`
	LocateNameFloor   float64 `mapstructure:"locate_name_floor"`
	MaxChainDepth     int     `mapstructure:"max_chain_depth"`
}

// DefaultConfig returns default query settings.
func DefaultConfig() Config {
	return Config{
		DefaultRadius:     2,
		BaseCost:          1.0,
		ReverseCostFactor: 1.0,
		LocateNameFloor:   0.5,
		MaxChainDepth:     8,
	}
}

// Engine answers queries against a store.Graph.
type Engine struct {
	cfg    Config
	params confidence.Params
	ranker *recall.Ranker
	now    func() time.Time
	logger *slog.Logger
}

// New creates a query engine. now may be nil.
func New(cfg Config, params confidence.Params, ranker *recall.Ranker, now func() time.Time, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if ranker == nil {
		ranker = recall.NewRanker(recall.DefaultWeights(), params, logger)
	}
	if cfg.BaseCost <= 0 {
		cfg.BaseCost = 1
	}
	if cfg.ReverseCostFactor <= 0 {
		cfg.ReverseCostFactor = 1
	}
	if cfg.MaxChainDepth <= 0 {
		cfg.MaxChainDepth = DefaultConfig().MaxChainDepth
	}
	return &Engine{cfg: cfg, params: params, ranker: ranker, now: now, logger: logger}
}

// Config returns the engine's settings.
func (q *Engine) Config() Config {
	return q.cfg
}

// decayed is the confidence of r as of now.
func (q *Engine) decayed(r *models.Relationship) float64 {
	return q.params.DecayAt(r.Confidence, r.LastSeen, q.now())
}

// Stats reads the maintained counters; it never walks the graph.
func (q *Engine) Stats(g *store.Graph) models.GraphStats {
	return models.GraphStats{
		EntityCount:              g.Entities.Count(),
		RelationshipCount:        g.Relations.Count(),
		SpatialRelationshipCount: g.Relations.SpatialCount(),
		EntitiesByType:           g.Entities.CountByType(),
		RelationshipsByFamily:    g.Relations.CountByFamily(),
		RelationshipsByType:      g.Relations.CountByType(),
		PendingReviews:           g.Entities.ReviewCount(),
	}
}
