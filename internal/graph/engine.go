// Package graph owns one named world-model graph. An Engine is constructed
// explicitly and serializes access to its stores: writes take the write
// lock, queries the read lock. Several engines may live in one process.
package graph

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/ingest"
	"github.com/ajitpratap0/spatial-cortex/internal/matcher"
	"github.com/ajitpratap0/spatial-cortex/internal/metrics"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/query"
	"github.com/ajitpratap0/spatial-cortex/internal/recall"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// Options configures an Engine. Zero values fall back to package defaults.
type Options struct {
	Name             string
	Matcher          matcher.Config
	Params           confidence.Params
	Query            query.Config
	Recall           recall.Weights
	MaxEntities      int
	MaxRelationships int
	VisualDimension  int
	VerifyOnCommit   bool
	Now              func() time.Time
	NewID            func() string
}

// Engine is one graph instance.
type Engine struct {
	mu sync.RWMutex
	g  *store.Graph

	name    string
	opts    Options
	ingest  *ingest.Coordinator
	query   *query.Engine
	matcher *matcher.Matcher
	logger  *slog.Logger
}

// New creates an empty graph engine.
func New(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Matcher == (matcher.Config{}) {
		opts.Matcher = matcher.DefaultConfig()
	}
	if opts.Params == (confidence.Params{}) {
		opts.Params = confidence.DefaultParams()
	}
	if opts.Query == (query.Config{}) {
		opts.Query = query.DefaultConfig()
	}
	if opts.Recall == (recall.Weights{}) {
		opts.Recall = recall.DefaultWeights()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger = logger.With("graph", opts.Name)

	m := matcher.New(opts.Matcher, logger)
	e := &Engine{
		name:    opts.Name,
		opts:    opts,
		matcher: m,
		ingest: ingest.New(m, ingest.Options{
			Params:          opts.Params,
			VisualDimension: opts.VisualDimension,
			VerifyOnCommit:  opts.VerifyOnCommit,
			NewID:           opts.NewID,
		}, logger),
		query:  query.New(opts.Query, opts.Params, recall.NewRanker(opts.Recall, opts.Params, logger), opts.Now, logger),
		logger: logger,
	}
	e.g = e.newStores()
	return e
}

func (e *Engine) newStores() *store.Graph {
	return store.NewGraph(
		store.RegistryOptions{
			Params:      e.opts.Params,
			MaxEntities: e.opts.MaxEntities,
			NewID:       e.opts.NewID,
			Now:         e.opts.Now,
		},
		store.RelationsOptions{
			Params:           e.opts.Params,
			MaxRelationships: e.opts.MaxRelationships,
			NewID:            e.opts.NewID,
		},
	)
}

// Name returns the graph name.
func (e *Engine) Name() string {
	return e.name
}

// SubmitObservation applies obs atomically. Per-candidate problems are
// reported in the manifest. A FAILED manifest is returned together with an
// error carrying the structural cause; the graph is left as it was.
func (e *Engine) SubmitObservation(ctx context.Context, obs models.Observation) (*models.IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "submit observation")
	}

	e.mu.Lock()
	res := e.ingest.Apply(e.g, store.NewTx(), &obs)
	e.mu.Unlock()

	if res.Manifest.State == models.StateFailed {
		return &res, failureError(res.Manifest)
	}
	return &res, nil
}

func failureError(m models.Manifest) error {
	if len(m.Failures) == 0 {
		return errors.Newf("observation %s failed", m.ObservationID)
	}
	f := m.Failures[0]
	err := errors.Newf("observation %s failed at %s: %s", m.ObservationID, f.Ref, f.Reason)
	switch f.Kind {
	case models.FailureCapacity:
		return errors.Mark(err, models.ErrCapacityExceeded)
	case models.FailureValidation:
		return errors.Mark(err, models.ErrValidation)
	}
	return err
}

// GetEntity returns a copy of the entity.
func (e *Engine) GetEntity(id string) (*models.Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.g.Entities.Get(id)
}

// EntityFilter narrows ListEntities. Empty fields match anything.
type EntityFilter struct {
	Type models.EntityType
	Tag  string
}

// ListEntities returns copies of matching entities, oldest first.
func (e *Engine) ListEntities(f EntityFilter) []*models.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var base []*models.Entity
	switch {
	case f.Tag != "":
		base = e.g.Entities.FindByTag(f.Tag)
	case f.Type != "":
		return e.g.Entities.FindByType(f.Type)
	default:
		return e.g.Entities.All()
	}
	if f.Type == "" {
		return base
	}
	out := base[:0]
	for _, ent := range base {
		if ent.Type == f.Type {
			out = append(out, ent)
		}
	}
	return out
}

// SearchEntities ranks entities by label similarity to text.
func (e *Engine) SearchEntities(text string, threshold float64) []store.NameMatch {
	e.mu.RLock()
	defer e.mu.RUnlock()
	metrics.Inc(metrics.QueriesTotal)
	return e.g.Entities.FindByNameFuzzy(text, threshold)
}

// DeleteEntity removes an entity and every edge touching it, returning the
// number of edges removed.
func (e *Engine) DeleteEntity(id string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed, err := e.g.DeleteEntity(nil, id)
	if err != nil {
		return 0, err
	}
	e.logger.Info("entity deleted", "entity", id, "relationships_removed", removed)
	return removed, nil
}

// DeleteRelationship removes one edge.
func (e *Engine) DeleteRelationship(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Relations.Delete(nil, id)
}

// Verify cross-checks every index of the graph.
func (e *Engine) Verify() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.g.Verify()
}
