// Package ingest applies one observation to a graph as a single unit.
//
// An observation moves RECEIVED -> ENTITIES_RESOLVED -> RELATIONSHIPS_RESOLVED
// and ends COMMITTED or FAILED. Per-candidate problems are reported in the
// manifest and never abort the observation; a structural failure rolls back
// everything the observation changed.
package ingest

import (
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/matcher"
	"github.com/ajitpratap0/spatial-cortex/internal/metrics"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// Options configures a Coordinator.
type Options struct {
	Params          confidence.Params
	VisualDimension int
	// VerifyOnCommit re-checks every index before committing. It walks the
	// whole graph.
	VerifyOnCommit bool
	NewID          func() string
}

// Coordinator runs the ingestion state machine. It holds no graph state; the
// caller passes the graph and serializes calls.
type Coordinator struct {
	matcher *matcher.Matcher
	opts    Options
	logger  *slog.Logger
}

// New creates a coordinator.
func New(m *matcher.Matcher, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Params == (confidence.Params{}) {
		opts.Params = confidence.DefaultParams()
	}
	return &Coordinator{matcher: m, opts: opts, logger: logger}
}

// structuralError aborts the observation.
type structuralError struct {
	kind models.FailureKind
	ref  string
	err  error
}

func (e *structuralError) Error() string { return e.err.Error() }

// run holds the working state of one observation.
type run struct {
	c      *Coordinator
	g      *store.Graph
	tx     *store.Tx
	obs    *models.Observation
	res    models.IngestResult
	claims map[string]*matcher.Claim
}

// Apply resolves and writes obs into g, journaling every mutation in tx.
// A nil tx gets a private journal. The result always carries a manifest.
func (c *Coordinator) Apply(g *store.Graph, tx *store.Tx, obs *models.Observation) models.IngestResult {
	if tx == nil {
		tx = store.NewTx()
	}
	r := &run{
		c:   c,
		g:   g,
		tx:  tx,
		obs: obs,
		res: models.IngestResult{
			Manifest: models.Manifest{
				ObservationID: obs.ID,
				State:         models.StateReceived,
				DeviceID:      obs.Provenance.DeviceID,
				Timestamp:     obs.Provenance.Timestamp,
			},
			Refs: make(map[string]string),
		},
	}
	if r.res.Manifest.ObservationID == "" {
		r.res.Manifest.ObservationID = c.opts.NewID()
	}
	metrics.Inc(metrics.ObservationsTotal)

	if err := obs.Provenance.Validate(); err != nil {
		return r.fail(&structuralError{kind: models.FailureValidation, ref: "provenance", err: err})
	}
	if err := r.resolveEntities(); err != nil {
		return r.fail(err)
	}
	r.res.Manifest.State = models.StateEntitiesResolved

	if err := r.resolveRelationships(); err != nil {
		return r.fail(err)
	}
	r.res.Manifest.State = models.StateRelationshipsResolved

	if c.opts.VerifyOnCommit {
		if err := g.Verify(); err != nil {
			return r.fail(&structuralError{kind: models.FailureInconsistency, err: err})
		}
	}
	tx.Commit()
	r.res.Manifest.State = models.StateCommitted
	r.count()

	m := &r.res.Manifest
	c.logger.Info("observation committed",
		"observation", m.ObservationID,
		"device", m.DeviceID,
		"entities_created", len(m.EntitiesCreated),
		"entities_merged", len(m.EntitiesMerged),
		"ambiguous", len(m.EntitiesAmbiguous),
		"relationships_created", len(m.RelationshipsCreated),
		"relationships_merged", len(m.RelationshipsMerged),
		"dropped", len(m.RelationshipsDropped),
		"conflicts", len(m.Conflicts),
	)
	return r.res
}

// fail rolls back and returns a FAILED manifest that lists only the cause.
func (r *run) fail(err error) models.IngestResult {
	r.tx.Rollback()
	metrics.Inc(metrics.ObservationsFailed)

	failure := models.Failure{Kind: models.FailureInconsistency, Reason: err.Error()}
	var se *structuralError
	if errors.As(err, &se) {
		failure.Kind, failure.Ref = se.kind, se.ref
	}
	m := &r.res.Manifest
	*m = models.Manifest{
		ObservationID: m.ObservationID,
		State:         models.StateFailed,
		Failures:      []models.Failure{failure},
		DeviceID:      m.DeviceID,
		Timestamp:     m.Timestamp,
	}
	r.res.Refs = map[string]string{}
	r.c.logger.Warn("observation failed", "observation", m.ObservationID, "kind", failure.Kind, "error", err)
	return r.res
}

func (r *run) count() {
	m := &r.res.Manifest
	metrics.Add(metrics.EntitiesCreated, len(m.EntitiesCreated))
	metrics.Add(metrics.EntitiesMerged, len(m.EntitiesMerged))
	metrics.Add(metrics.EntitiesAmbiguous, len(m.EntitiesAmbiguous))
	metrics.Add(metrics.RelationshipsCreated, len(m.RelationshipsCreated))
	metrics.Add(metrics.RelationshipsMerged, len(m.RelationshipsMerged))
	metrics.Add(metrics.RelationshipsDropped, len(m.RelationshipsDropped))
	metrics.Add(metrics.ConflictsTotal, len(m.Conflicts))
}

// storeFailure classifies an error from a store mutation.
func storeFailure(ref string, err error) error {
	kind := models.FailureInconsistency
	if errors.Is(err, models.ErrCapacityExceeded) {
		kind = models.FailureCapacity
	}
	return &structuralError{kind: kind, ref: ref, err: err}
}

func relRef(i int) string {
	return fmt.Sprintf("relationships[%d]", i)
}
