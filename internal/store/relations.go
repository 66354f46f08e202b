package store

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// RelationsOptions configures a Relations store.
type RelationsOptions struct {
	Params           confidence.Params
	MaxRelationships int // 0 means unlimited
	NewID            func() string
}

// Filter selects relationships. Empty fields match anything.
type Filter struct {
	SourceID string
	TargetID string
	Type     models.RelationType
}

// Relations owns directed, typed edges. It keeps one edge per
// (source, target, type) triple and never stores inverses.
type Relations struct {
	opts RelationsOptions

	edges    map[string]*models.Relationship
	byTriple map[models.TripleKey]string
	out      map[string]idSet
	in       map[string]idSet

	spatial  int
	byFamily map[models.Family]int
	byType   map[models.RelationType]int
}

// NewRelations creates an empty relationship store.
func NewRelations(opts RelationsOptions) *Relations {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Params == (confidence.Params{}) {
		opts.Params = confidence.DefaultParams()
	}
	return &Relations{
		opts:     opts,
		edges:    make(map[string]*models.Relationship),
		byTriple: make(map[models.TripleKey]string),
		out:      make(map[string]idSet),
		in:       make(map[string]idSet),
		byFamily: make(map[models.Family]int),
		byType:   make(map[models.RelationType]int),
	}
}

// Upsert creates the edge for the candidate's triple or merges into the
// existing one.
func (s *Relations) Upsert(tx *Tx, c models.ResolvedRelationship, prov models.Provenance) (string, bool, error) {
	if c.SourceID == c.TargetID {
		return "", false, models.Validationf("relationship %s->%s: self-loops are not allowed", c.SourceID, c.TargetID)
	}
	incoming := &models.Relationship{
		Type:             c.Type,
		SourceID:         c.SourceID,
		TargetID:         c.TargetID,
		Confidence:       c.Confidence,
		Spatial:          c.Spatial.Clone(),
		ObservationCount: 1,
		FirstSeen:        prov.Timestamp,
		LastSeen:         prov.Timestamp,
	}
	if prov.DeviceID != "" {
		incoming.Sources = []string{prov.DeviceID}
	}
	if id, ok := s.byTriple[c.Key()]; ok {
		if err := s.MergeRecord(tx, id, incoming); err != nil {
			return "", false, err
		}
		return id, false, nil
	}
	incoming.ID = s.opts.NewID()
	if err := s.insert(tx, incoming); err != nil {
		return "", false, err
	}
	return incoming.ID, true, nil
}

// Put stores a complete record under its own ID. The ID and the triple must
// both be free.
func (s *Relations) Put(tx *Tx, r *models.Relationship) error {
	if _, exists := s.edges[r.ID]; exists {
		return errors.Mark(errors.Newf("relationship %s already exists", r.ID), models.ErrConflict)
	}
	if other, exists := s.byTriple[r.Key()]; exists {
		return errors.Mark(errors.Newf("relationship %s already holds triple %s-%s->%s",
			other, r.SourceID, r.Type, r.TargetID), models.ErrConflict)
	}
	if r.SourceID == r.TargetID {
		return models.Validationf("relationship %s is a self-loop", r.ID)
	}
	return s.insert(tx, r.Clone())
}

func (s *Relations) insert(tx *Tx, r *models.Relationship) error {
	if s.opts.MaxRelationships > 0 && len(s.edges) >= s.opts.MaxRelationships {
		return errors.Mark(
			errors.Newf("store holds %d relationships, limit is %d", len(s.edges), s.opts.MaxRelationships),
			models.ErrCapacityExceeded)
	}
	s.link(r)
	tx.record(func() { s.unlink(r) })
	return nil
}

// MergeRecord folds other into the edge with the given ID: combined
// confidence, confidence-weighted spatial properties, source union and a
// widened seen window.
func (s *Relations) MergeRecord(tx *Tx, id string, other *models.Relationship) error {
	r, ok := s.edges[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "relationship %s", id)
	}
	prev := r.Clone()

	if r.Spatial != nil || other.Spatial != nil {
		a, b := r.Spatial, other.Spatial
		if a == nil {
			a = &models.SpatialProperties{}
		}
		if b == nil {
			b = &models.SpatialProperties{}
		}
		merged := &models.SpatialProperties{
			DistanceMeters:     confidence.MergeOptional(a.DistanceMeters, r.Confidence, b.DistanceMeters, other.Confidence),
			OrientationDegrees: confidence.MergeOptional(a.OrientationDegrees, r.Confidence, b.OrientationDegrees, other.Confidence),
			ElevationDelta:     confidence.MergeOptional(a.ElevationDelta, r.Confidence, b.ElevationDelta, other.Confidence),
		}
		r.Spatial = merged
		if merged.IsEmpty() {
			r.Spatial = nil
		}
	}
	r.Confidence = s.opts.Params.Combine(r.Confidence, other.Confidence)
	r.Sources = unionExact(r.Sources, other.Sources)
	r.ObservationCount += max(other.ObservationCount, 1)
	r.FirstSeen = minTime(r.FirstSeen, other.FirstSeen)
	r.LastSeen = maxTime(r.LastSeen, other.LastSeen)

	tx.record(func() { *r = *prev })
	return nil
}

// SetConfidence overwrites the confidence of one edge. Conflict resolution
// uses it after penalizing.
func (s *Relations) SetConfidence(tx *Tx, id string, c float64) error {
	r, ok := s.edges[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "relationship %s", id)
	}
	prev := r.Confidence
	r.Confidence = c
	tx.record(func() { r.Confidence = prev })
	return nil
}

// Get returns a copy of the relationship.
func (s *Relations) Get(id string) (*models.Relationship, error) {
	r, ok := s.edges[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "relationship %s", id)
	}
	return r.Clone(), nil
}

// Peek returns the stored relationship without copying. Callers must not modify it.
func (s *Relations) Peek(id string) (*models.Relationship, bool) {
	r, ok := s.edges[id]
	return r, ok
}

// ByTriple returns the ID of the edge holding key, if any.
func (s *Relations) ByTriple(key models.TripleKey) (string, bool) {
	id, ok := s.byTriple[key]
	return id, ok
}

// Query returns copies of edges matching f, highest confidence first.
func (s *Relations) Query(f Filter) []*models.Relationship {
	var out []*models.Relationship
	s.scan(f, func(r *models.Relationship) {
		out = append(out, r.Clone())
	})
	SortByConfidence(out)
	return out
}

// Outgoing returns the stored edges whose source is id, without copying.
func (s *Relations) Outgoing(id string) []*models.Relationship {
	return s.peekAll(s.out[id])
}

// Incoming returns the stored edges whose target is id, without copying.
func (s *Relations) Incoming(id string) []*models.Relationship {
	return s.peekAll(s.in[id])
}

// Degree returns the number of edges touching id.
func (s *Relations) Degree(id string) int {
	return len(s.out[id]) + len(s.in[id])
}

func (s *Relations) scan(f Filter, fn func(r *models.Relationship)) {
	var candidates idSet
	switch {
	case f.SourceID != "" && f.TargetID != "":
		if len(s.out[f.SourceID]) <= len(s.in[f.TargetID]) {
			candidates = s.out[f.SourceID]
		} else {
			candidates = s.in[f.TargetID]
		}
	case f.SourceID != "":
		candidates = s.out[f.SourceID]
	case f.TargetID != "":
		candidates = s.in[f.TargetID]
	default:
		for _, r := range s.edges {
			if f.matches(r) {
				fn(r)
			}
		}
		return
	}
	for id := range candidates {
		if r := s.edges[id]; f.matches(r) {
			fn(r)
		}
	}
}

func (f Filter) matches(r *models.Relationship) bool {
	return (f.SourceID == "" || r.SourceID == f.SourceID) &&
		(f.TargetID == "" || r.TargetID == f.TargetID) &&
		(f.Type == "" || r.Type == f.Type)
}

// Delete removes one edge.
func (s *Relations) Delete(tx *Tx, id string) error {
	r, ok := s.edges[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "relationship %s", id)
	}
	s.unlink(r)
	tx.record(func() { s.link(r) })
	return nil
}

// DeleteForEntity removes every edge touching entityID and returns how many
// were removed.
func (s *Relations) DeleteForEntity(tx *Tx, entityID string) int {
	var ids []string
	for id := range s.out[entityID] {
		ids = append(ids, id)
	}
	for id := range s.in[entityID] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if r, ok := s.edges[id]; ok {
			s.unlink(r)
			tx.record(func() { s.link(r) })
		}
	}
	return len(ids)
}

// All returns copies of every edge ordered by ID.
func (s *Relations) All() []*models.Relationship {
	out := make([]*models.Relationship, 0, len(s.edges))
	for _, r := range s.edges {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of edges.
func (s *Relations) Count() int {
	return len(s.edges)
}

// SpatialCount returns the number of spatial-family edges.
func (s *Relations) SpatialCount() int {
	return s.spatial
}

// CountByFamily returns edge counts per relation family.
func (s *Relations) CountByFamily() map[models.Family]int {
	out := make(map[models.Family]int, len(s.byFamily))
	for f, n := range s.byFamily {
		out[f] = n
	}
	return out
}

// CountByType returns edge counts per relation type.
func (s *Relations) CountByType() map[models.RelationType]int {
	out := make(map[models.RelationType]int, len(s.byType))
	for t, n := range s.byType {
		out[t] = n
	}
	return out
}

// Verify cross-checks the triple and adjacency indices and the counters
// against the records.
func (s *Relations) Verify() error {
	if len(s.byTriple) != len(s.edges) {
		return errors.Newf("triple index holds %d keys for %d edges", len(s.byTriple), len(s.edges))
	}
	spatial := 0
	families := map[models.Family]int{}
	for id, r := range s.edges {
		if s.byTriple[r.Key()] != id {
			return errors.Newf("edge %s missing from triple index", id)
		}
		if _, ok := s.out[r.SourceID][id]; !ok {
			return errors.Newf("edge %s missing from outgoing index", id)
		}
		if _, ok := s.in[r.TargetID][id]; !ok {
			return errors.Newf("edge %s missing from incoming index", id)
		}
		if r.Type.IsSpatial() {
			spatial++
		}
		families[r.Type.Family()]++
	}
	if spatial != s.spatial {
		return errors.Newf("spatial counter is %d, want %d", s.spatial, spatial)
	}
	for f, n := range families {
		if s.byFamily[f] != n {
			return errors.Newf("%s counter is %d, want %d", f, s.byFamily[f], n)
		}
	}
	for _, index := range []map[string]idSet{s.out, s.in} {
		for _, set := range index {
			for id := range set {
				if _, ok := s.edges[id]; !ok {
					return errors.Newf("adjacency index holds deleted edge %s", id)
				}
			}
		}
	}
	return nil
}

func (s *Relations) link(r *models.Relationship) {
	s.edges[r.ID] = r
	s.byTriple[r.Key()] = r.ID
	addTo(s.out, r.SourceID, r.ID)
	addTo(s.in, r.TargetID, r.ID)
	if r.Type.IsSpatial() {
		s.spatial++
	}
	s.byFamily[r.Type.Family()]++
	s.byType[r.Type]++
}

func (s *Relations) unlink(r *models.Relationship) {
	delete(s.edges, r.ID)
	delete(s.byTriple, r.Key())
	removeFrom(s.out, r.SourceID, r.ID)
	removeFrom(s.in, r.TargetID, r.ID)
	if r.Type.IsSpatial() {
		s.spatial--
	}
	decrement(s.byFamily, r.Type.Family())
	decrement(s.byType, r.Type)
}

func (s *Relations) peekAll(set idSet) []*models.Relationship {
	if len(set) == 0 {
		return nil
	}
	out := make([]*models.Relationship, 0, len(set))
	for id := range set {
		out = append(out, s.edges[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func decrement[K comparable](counts map[K]int, key K) {
	counts[key]--
	if counts[key] <= 0 {
		delete(counts, key)
	}
}

// SortByConfidence orders edges by confidence, most recent first on ties,
// then by ID.
func SortByConfidence(rs []*models.Relationship) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Confidence != rs[j].Confidence {
			return rs[i].Confidence > rs[j].Confidence
		}
		if !rs[i].LastSeen.Equal(rs[j].LastSeen) {
			return rs[i].LastSeen.After(rs[j].LastSeen)
		}
		return rs[i].ID < rs[j].ID
	})
}
