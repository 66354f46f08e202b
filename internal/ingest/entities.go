package ingest

import (
	"github.com/ajitpratap0/spatial-cortex/internal/matcher"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// resolveEntities validates and resolves every entity candidate in order.
func (r *run) resolveEntities() error {
	m := &r.res.Manifest
	byRef := make(map[string]int, len(r.obs.Entities))
	for i := range r.obs.Entities {
		ref := r.obs.CandidateRef(i)
		if _, dup := byRef[ref]; dup {
			m.Failures = append(m.Failures, models.Failure{
				Kind: models.FailureValidation, Ref: ref, Reason: "duplicate candidate ref",
			})
			continue
		}
		byRef[ref] = i
	}

	for i := range r.obs.Entities {
		ref := r.obs.CandidateRef(i)
		if byRef[ref] != i {
			continue
		}
		c := &r.obs.Entities[i]
		if err := c.Validate(r.c.opts.VisualDimension); err != nil {
			m.Failures = append(m.Failures, models.Failure{Kind: models.FailureValidation, Ref: ref, Reason: err.Error()})
			continue
		}
		if err := r.resolveEntity(ref, c, r.claimFor(ref, byRef)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) resolveEntity(ref string, c *models.EntityCandidate, claim *matcher.Claim) error {
	m := &r.res.Manifest
	prov := r.obs.Provenance
	d := r.c.matcher.ResolveEntity(r.g, c, claim)

	var (
		id  string
		err error
	)
	switch d.Kind {
	case models.DecisionMerge:
		id, _, err = r.g.Entities.Upsert(r.tx, c, prov, d.TargetID)
		if err != nil {
			return storeFailure(ref, err)
		}
		m.EntitiesMerged = append(m.EntitiesMerged, id)
	default:
		id, _, err = r.g.Entities.Upsert(r.tx, c, prov, "")
		if err != nil {
			return storeFailure(ref, err)
		}
		m.EntitiesCreated = append(m.EntitiesCreated, id)
		if d.Kind == models.DecisionAmbiguous {
			err = r.g.Entities.FlagForReview(r.tx, models.Review{
				EntityID:      id,
				CandidateID:   d.CandidateID,
				Score:         d.Score,
				ObservationID: m.ObservationID,
				FlaggedAt:     prov.Timestamp,
			})
			if err != nil {
				return storeFailure(ref, err)
			}
			m.EntitiesAmbiguous = append(m.EntitiesAmbiguous, id)
		}
	}

	r.res.Refs[ref] = id
	m.Resolutions = append(m.Resolutions, models.Resolution{
		Ref:         ref,
		Decision:    d.Kind,
		EntityID:    id,
		CandidateID: d.CandidateID,
		Score:       d.Score,
		Vetoed:      d.Vetoed,
	})
	r.c.logger.Debug("entity resolved",
		"ref", ref, "decision", d.Kind, "entity", id, "candidate", d.CandidateID,
		"score", d.Score, "penalty", d.Signals.Penalty, "vetoed", d.Vetoed)
	return nil
}

// claimFor returns the first exclusive location this observation reports for
// ref, or nil.
func (r *run) claimFor(ref string, byRef map[string]int) *matcher.Claim {
	for _, rc := range r.obs.Relationships {
		if rc.Source != ref || !rc.Type.IsExclusiveLocation() || rc.Target == ref {
			continue
		}
		claim := &matcher.Claim{Type: rc.Type}
		if id, ok := r.res.Refs[rc.Target]; ok {
			claim.TargetID = id
		}
		if i, ok := byRef[rc.Target]; ok {
			claim.TargetNames = r.obs.Entities[i].Names()
		} else if e, ok := r.g.Entity(rc.Target); ok {
			claim.TargetID = e.ID
			claim.TargetNames = e.Names()
		}
		return claim
	}
	return nil
}
