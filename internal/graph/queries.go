package graph

import (
	"github.com/ajitpratap0/spatial-cortex/internal/metrics"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/query"
)

// GetContext returns the classified neighborhood of an entity. A negative
// radius uses the configured default.
func (e *Engine) GetContext(entityID string, radius int) (*query.Context, error) {
	if radius < 0 {
		radius = e.query.Config().DefaultRadius
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	metrics.Inc(metrics.QueriesTotal)
	return e.query.GetContext(e.g, entityID, radius)
}

// FindPath returns the most confident route between two entities. A
// disconnected pair yields query.ErrNoPath, which is a NotFound.
func (e *Engine) FindPath(sourceID, targetID string, opts query.PathOptions) (*query.Path, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	metrics.Inc(metrics.QueriesTotal)
	return e.query.FindPath(e.g, sourceID, targetID, opts)
}

// QueryRelationships filters stored edges with inverse expansion.
func (e *Engine) QueryRelationships(f query.RelationFilter) ([]query.RelationMatch, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	metrics.Inc(metrics.QueriesTotal)
	return e.query.QueryRelationships(e.g, f)
}

// Locate answers "where is it" for entities named like name.
func (e *Engine) Locate(name string, limit int) []query.Placement {
	e.mu.RLock()
	defer e.mu.RUnlock()
	metrics.Inc(metrics.QueriesTotal)
	return e.query.Locate(e.g, name, limit)
}

// Stats returns the maintained counters.
func (e *Engine) Stats() models.GraphStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.query.Stats(e.g)
	s.Graph = e.name
	return s
}
