package graph

import (
	"github.com/cockroachdb/errors"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// MergeEntities folds two entities into one and rewires every edge of the
// absorbed entity onto the survivor. The survivor is the older of the two,
// ties going to the smaller ID, so argument order does not matter. Edges
// that would become self-loops are dropped; edges whose rewired triple
// already exists are merged into it. Pending reviews that named the absorbed
// entity as their candidate now name the survivor. The change is all or
// nothing.
func (e *Engine) MergeEntities(a, b string) (*models.Entity, error) {
	if a == b {
		return nil, models.Validationf("cannot merge entity %s into itself", a)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := store.NewTx()
	merged, err := e.mergeLocked(tx, a, b)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	tx.Commit()
	return merged, nil
}

func (e *Engine) mergeLocked(tx *store.Tx, keepID, mergeID string) (*models.Entity, error) {
	keep, err := e.g.Entities.Get(keepID)
	if err != nil {
		return nil, err
	}
	gone, err := e.g.Entities.Get(mergeID)
	if err != nil {
		return nil, err
	}
	if !store.Older(keep, gone) {
		keepID, mergeID = mergeID, keepID
		gone = keep
	}

	for _, rv := range e.g.Entities.Reviews() {
		if rv.CandidateID != mergeID || rv.EntityID == keepID {
			continue
		}
		rv.CandidateID = keepID
		if err := e.g.Entities.FlagForReview(tx, rv); err != nil {
			return nil, err
		}
	}

	var edges []*models.Relationship
	for _, r := range e.g.Outgoing(mergeID) {
		edges = append(edges, r.Clone())
	}
	for _, r := range e.g.Incoming(mergeID) {
		edges = append(edges, r.Clone())
	}

	if _, err := e.g.DeleteEntity(tx, mergeID); err != nil {
		return nil, err
	}
	if err := e.g.Entities.MergeRecord(tx, keepID, gone); err != nil {
		return nil, err
	}

	rewired, merged, dropped := 0, 0, 0
	for _, r := range edges {
		if r.SourceID == mergeID {
			r.SourceID = keepID
		}
		if r.TargetID == mergeID {
			r.TargetID = keepID
		}
		if r.SourceID == r.TargetID {
			dropped++
			continue
		}
		if id, ok := e.g.Relations.ByTriple(r.Key()); ok {
			if err := e.g.Relations.MergeRecord(tx, id, r); err != nil {
				return nil, err
			}
			merged++
			continue
		}
		if err := e.g.Relations.Put(tx, r); err != nil {
			return nil, err
		}
		rewired++
	}

	e.logger.Info("entities merged",
		"kept", keepID, "merged", mergeID,
		"rewired", rewired, "edges_merged", merged, "self_loops_dropped", dropped)
	return e.g.Entities.Get(keepID)
}

// Reviews returns every pending ambiguous resolution, oldest first.
func (e *Engine) Reviews() []models.Review {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.g.Entities.Reviews()
}

// AcceptReview confirms that a flagged entity is the candidate it was
// confused with and merges the two. The older entity survives.
func (e *Engine) AcceptReview(entityID string) (*models.Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rv, ok := e.g.Entities.Review(entityID)
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "review for entity %s", entityID)
	}
	tx := store.NewTx()
	merged, err := e.mergeLocked(tx, rv.CandidateID, entityID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	tx.Commit()
	return merged, nil
}

// DismissReview keeps a flagged entity as distinct and clears its flag.
func (e *Engine) DismissReview(entityID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Entities.ClearReview(nil, entityID)
}
