package ingest

import (
	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// resolveRelationships maps candidate endpoints to entities, writes the
// edges and settles location conflicts.
func (r *run) resolveRelationships() error {
	m := &r.res.Manifest
	for i := range r.obs.Relationships {
		rc := &r.obs.Relationships[i]
		ref := relRef(i)
		if err := rc.Validate(); err != nil {
			m.Failures = append(m.Failures, models.Failure{Kind: models.FailureValidation, Ref: ref, Reason: err.Error()})
			continue
		}
		src, ok := r.endpoint(rc.Source)
		if !ok {
			r.drop(ref, models.FailureUnresolvedRef, "source "+rc.Source+" does not resolve to an entity")
			continue
		}
		dst, ok := r.endpoint(rc.Target)
		if !ok {
			r.drop(ref, models.FailureUnresolvedRef, "target "+rc.Target+" does not resolve to an entity")
			continue
		}
		if src == dst {
			r.drop(ref, models.FailureSelfLoop, rc.Source+" and "+rc.Target+" resolved to the same entity "+src)
			continue
		}
		if err := r.applyRelationship(ref, models.ResolvedRelationship{
			Type:       rc.Type,
			SourceID:   src,
			TargetID:   dst,
			Confidence: rc.Confidence,
			Spatial:    rc.Spatial,
		}); err != nil {
			return err
		}
	}
	return nil
}

// endpoint resolves a candidate ref from this observation, or an existing
// entity ID.
func (r *run) endpoint(ref string) (string, bool) {
	if id, ok := r.res.Refs[ref]; ok {
		return id, true
	}
	if r.g.Entities.Exists(ref) {
		return ref, true
	}
	return "", false
}

func (r *run) drop(ref string, kind models.FailureKind, reason string) {
	r.res.Manifest.RelationshipsDropped = append(r.res.Manifest.RelationshipsDropped,
		models.Failure{Kind: kind, Ref: ref, Reason: reason})
	r.c.logger.Debug("relationship dropped", "ref", ref, "kind", kind, "reason", reason)
}

func (r *run) applyRelationship(ref string, rr models.ResolvedRelationship) error {
	m := &r.res.Manifest
	prov := r.obs.Provenance

	rivals := r.rivals(rr)

	id, created, err := r.g.Relations.Upsert(r.tx, rr, prov)
	if err != nil {
		return storeFailure(ref, err)
	}
	if created {
		m.RelationshipsCreated = append(m.RelationshipsCreated, id)
	} else {
		m.RelationshipsMerged = append(m.RelationshipsMerged, id)
	}

	for _, rival := range rivals {
		conflict := models.Conflict{
			SubjectID:        rr.SourceID,
			Type:             rr.Type,
			ExistingTargetID: rival.TargetID,
			IncomingTargetID: rr.TargetID,
		}
		penalized, severity := rival.ID, rr.Confidence
		if prov.Timestamp.Before(rival.LastSeen) {
			penalized, severity = id, rival.Confidence
		} else {
			conflict.IncomingSupersedes = true
		}
		edge, ok := r.g.Relations.Peek(penalized)
		if !ok {
			return storeFailure(ref, models.NotFoundf("relationship %s vanished during conflict resolution", penalized))
		}
		conflict.PenalizedID = penalized
		conflict.ConfidenceBefore = edge.Confidence
		conflict.ConfidenceAfter = r.c.opts.Params.PenalizeConflict(edge.Confidence, severity)
		if err := r.g.Relations.SetConfidence(r.tx, penalized, conflict.ConfidenceAfter); err != nil {
			return storeFailure(ref, err)
		}
		m.Conflicts = append(m.Conflicts, conflict)
		r.c.logger.Info("location conflict",
			"subject", conflict.SubjectID,
			"relation", conflict.Type,
			"existing_target", conflict.ExistingTargetID,
			"incoming_target", conflict.IncomingTargetID,
			"penalized", penalized,
			"before", conflict.ConfidenceBefore,
			"after", conflict.ConfidenceAfter,
		)
	}
	return nil
}

// rivals snapshots the exclusive-location edges of the subject that point
// somewhere the incoming edge does not, outside any shared containment chain.
func (r *run) rivals(rr models.ResolvedRelationship) []models.Relationship {
	if !rr.Type.IsExclusiveLocation() {
		return nil
	}
	var out []models.Relationship
	for _, e := range r.g.Outgoing(rr.SourceID) {
		if !e.Type.IsExclusiveLocation() || e.TargetID == rr.TargetID {
			continue
		}
		if r.g.ContainmentLinked(e.TargetID, rr.TargetID) {
			continue
		}
		out = append(out, *e)
	}
	return out
}
