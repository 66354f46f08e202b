package graph

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ajitpratap0/spatial-cortex/internal/metrics"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// ExportSnapshot returns a deep copy of the whole graph.
func (e *Engine) ExportSnapshot() *models.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := &models.Snapshot{
		Version:       models.SnapshotVersion,
		Graph:         e.name,
		ExportedAt:    e.opts.Now(),
		Entities:      make(map[string]*models.Entity, e.g.Entities.Count()),
		Relationships: make(map[string]*models.Relationship, e.g.Relations.Count()),
		Reviews:       e.g.Entities.Reviews(),
	}
	for _, ent := range e.g.Entities.All() {
		snap.Entities[ent.ID] = ent
	}
	for _, r := range e.g.Relations.All() {
		snap.Relationships[r.ID] = r
	}
	return snap
}

// ImportSnapshot loads snap. The snapshot is validated in full first, then
// applied completely or not at all. Replace swaps in fresh stores; merge
// folds records into the current graph by ID, and edges by triple.
func (e *Engine) ImportSnapshot(snap *models.Snapshot, mode models.ImportMode) (*models.ImportReport, error) {
	if snap == nil {
		return nil, models.Validationf("snapshot is empty")
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		report *models.ImportReport
		err    error
	)
	switch mode {
	case models.ImportReplace:
		report, err = e.importReplace(snap)
	case models.ImportMerge:
		report, err = e.importMerge(snap)
	default:
		return nil, models.Validationf("unknown import mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	metrics.Inc(metrics.SnapshotsImported)
	e.logger.Info("snapshot imported",
		"mode", mode, "source_graph", snap.Graph,
		"entities_created", report.EntitiesCreated, "entities_merged", report.EntitiesMerged,
		"relationships_created", report.RelationshipsCreated, "relationships_merged", report.RelationshipsMerged)
	return report, nil
}

func (e *Engine) importReplace(snap *models.Snapshot) (*models.ImportReport, error) {
	fresh := e.newStores()
	report := &models.ImportReport{Mode: models.ImportReplace}

	for _, id := range sortedKeys(snap.Entities) {
		if err := fresh.Entities.Put(nil, snap.Entities[id]); err != nil {
			return nil, errors.Wrap(err, "import entities")
		}
		report.EntitiesCreated++
	}
	for _, id := range sortedKeys(snap.Relationships) {
		if err := fresh.Relations.Put(nil, snap.Relationships[id]); err != nil {
			return nil, errors.Wrap(err, "import relationships")
		}
		report.RelationshipsCreated++
	}
	for _, rv := range snap.Reviews {
		if err := fresh.Entities.FlagForReview(nil, rv); err != nil {
			return nil, errors.Wrap(err, "import reviews")
		}
		report.Reviews++
	}
	if err := fresh.Verify(); err != nil {
		return nil, errors.Wrap(err, "verify imported graph")
	}
	e.g = fresh
	return report, nil
}

func (e *Engine) importMerge(snap *models.Snapshot) (*models.ImportReport, error) {
	tx := store.NewTx()
	report, err := e.mergeInto(tx, snap)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	tx.Commit()
	return report, nil
}

func (e *Engine) mergeInto(tx *store.Tx, snap *models.Snapshot) (*models.ImportReport, error) {
	report := &models.ImportReport{Mode: models.ImportMerge}

	for _, id := range sortedKeys(snap.Entities) {
		ent := snap.Entities[id]
		if e.g.Entities.Exists(id) {
			if err := e.g.Entities.MergeRecord(tx, id, ent); err != nil {
				return nil, err
			}
			report.EntitiesMerged++
			continue
		}
		if err := e.g.Entities.Put(tx, ent); err != nil {
			return nil, errors.Wrap(err, "import entities")
		}
		report.EntitiesCreated++
	}

	for _, id := range sortedKeys(snap.Relationships) {
		r := snap.Relationships[id]
		if existing, ok := e.g.Relations.ByTriple(r.Key()); ok {
			if err := e.g.Relations.MergeRecord(tx, existing, r); err != nil {
				return nil, err
			}
			report.RelationshipsMerged++
			continue
		}
		if _, taken := e.g.Relations.Peek(r.ID); taken {
			r = r.Clone()
			r.ID = e.opts.NewID()
		}
		if err := e.g.Relations.Put(tx, r); err != nil {
			return nil, errors.Wrap(err, "import relationships")
		}
		report.RelationshipsCreated++
	}

	for _, rv := range snap.Reviews {
		if err := e.g.Entities.FlagForReview(tx, rv); err != nil {
			return nil, errors.Wrap(err, "import reviews")
		}
		report.Reviews++
	}
	return report, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StaleRelationships returns copies of edges whose decayed confidence has
// reached the floor and that were last seen at least maxAge ago.
func (e *Engine) StaleRelationships(maxAge time.Duration) []*models.Relationship {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.opts.Now()
	p := e.opts.Params
	var out []*models.Relationship
	for _, r := range e.g.Relations.All() {
		if now.Sub(r.LastSeen) < maxAge {
			continue
		}
		if p.DecayAt(r.Confidence, r.LastSeen, now) <= p.Floor {
			out = append(out, r)
		}
	}
	return out
}

// StaleEntities returns copies of entities whose decayed confidence has
// reached the floor. They are kept so they stay discoverable.
func (e *Engine) StaleEntities() []*models.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.opts.Now()
	p := e.opts.Params
	var out []*models.Entity
	for _, ent := range e.g.Entities.All() {
		if p.DecayAt(ent.Confidence, ent.LastSeen, now) <= p.Floor {
			out = append(out, ent)
		}
	}
	return out
}
