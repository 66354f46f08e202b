package store

import (
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/pkg/tokenizer"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Params      confidence.Params
	MaxEntities int // 0 means unlimited
	NewID       func() string
	Now         func() time.Time
}

// Registry owns entity identity, attributes and the type, name and tag
// indices. Indices and counters change in the same call as the record.
type Registry struct {
	opts RegistryOptions

	entities map[string]*models.Entity
	byType   map[models.EntityType]idSet
	byName   map[string]idSet
	byTag    map[string]idSet
	reviews  map[string]models.Review
}

// NameMatch is one entity found by fuzzy name lookup.
type NameMatch struct {
	Entity *models.Entity
	Score  float64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Params == (confidence.Params{}) {
		opts.Params = confidence.DefaultParams()
	}
	return &Registry{
		opts:     opts,
		entities: make(map[string]*models.Entity),
		byType:   make(map[models.EntityType]idSet),
		byName:   make(map[string]idSet),
		byTag:    make(map[string]idSet),
		reviews:  make(map[string]models.Review),
	}
}

// Upsert creates a new entity from the candidate when mergeInto is empty,
// otherwise merges the candidate into the entity with that ID. It never
// matches on its own.
func (r *Registry) Upsert(tx *Tx, c *models.EntityCandidate, prov models.Provenance, mergeInto string) (string, bool, error) {
	incoming := fromCandidate(c, prov)
	if mergeInto == "" {
		incoming.ID = r.opts.NewID()
		incoming.CreatedAt = r.opts.Now()
		if err := r.insert(tx, incoming); err != nil {
			return "", false, err
		}
		return incoming.ID, true, nil
	}
	if err := r.MergeRecord(tx, mergeInto, incoming); err != nil {
		return "", false, err
	}
	return mergeInto, false, nil
}

// Put stores a complete record under its own ID. Used by import and by
// administrative merges; the ID must be free.
func (r *Registry) Put(tx *Tx, e *models.Entity) error {
	if _, exists := r.entities[e.ID]; exists {
		return errors.Mark(errors.Newf("entity %s already exists", e.ID), models.ErrConflict)
	}
	return r.insert(tx, e.Clone())
}

func (r *Registry) insert(tx *Tx, e *models.Entity) error {
	if r.opts.MaxEntities > 0 && len(r.entities) >= r.opts.MaxEntities {
		return errors.Mark(
			errors.Newf("registry holds %d entities, limit is %d", len(r.entities), r.opts.MaxEntities),
			models.ErrCapacityExceeded)
	}
	r.entities[e.ID] = e
	r.index(e)
	tx.record(func() {
		r.unindex(e)
		delete(r.entities, e.ID)
	})
	return nil
}

// MergeRecord folds other into the entity with the given ID using the merge
// rule: names, tags and sources union, latest non-empty description,
// combined confidence, summed observation counts, widened seen window.
func (r *Registry) MergeRecord(tx *Tx, id string, other *models.Entity) error {
	e, ok := r.entities[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	prev := e.Clone()
	r.unindex(e)
	mergeEntity(e, other, r.opts.Params)
	r.index(e)
	tx.record(func() {
		r.unindex(e)
		*e = *prev
		r.index(e)
	})
	return nil
}

// Get returns a copy of the entity.
func (r *Registry) Get(id string) (*models.Entity, error) {
	e, ok := r.entities[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	return e.Clone(), nil
}

// Peek returns the stored entity without copying. Callers must not modify it.
func (r *Registry) Peek(id string) (*models.Entity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

// Exists reports whether id names a stored entity.
func (r *Registry) Exists(id string) bool {
	_, ok := r.entities[id]
	return ok
}

// Delete removes the entity and any review flag on it. Relationships are
// the caller's concern; see Relations.DeleteForEntity.
func (r *Registry) Delete(tx *Tx, id string) error {
	e, ok := r.entities[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	r.unindex(e)
	delete(r.entities, id)
	tx.record(func() {
		r.entities[id] = e
		r.index(e)
	})
	if rv, flagged := r.reviews[id]; flagged {
		delete(r.reviews, id)
		tx.record(func() { r.reviews[id] = rv })
	}
	for eid, rv := range r.reviews {
		eid, rv := eid, rv
		if rv.CandidateID == id {
			delete(r.reviews, eid)
			tx.record(func() { r.reviews[eid] = rv })
		}
	}
	return nil
}

// FindByType returns copies of every entity of type t, oldest first.
func (r *Registry) FindByType(t models.EntityType) []*models.Entity {
	return r.collect(r.byType[t])
}

// FindByTag returns copies of every entity carrying tag.
func (r *Registry) FindByTag(tag string) []*models.Entity {
	return r.collect(r.byTag[tokenizer.Normalize(tag)])
}

// FindByExactName returns copies of entities whose name or alias normalizes
// to the same form as name.
func (r *Registry) FindByExactName(name string) []*models.Entity {
	return r.collect(r.byName[tokenizer.Normalize(name)])
}

// FindByNameFuzzy ranks entities by label similarity to text, keeping those
// scoring at least threshold. Ties go to the older entity.
func (r *Registry) FindByNameFuzzy(text string, threshold float64) []NameMatch {
	if tokenizer.Normalize(text) == "" {
		return nil
	}
	query := []string{text}
	var out []NameMatch
	for _, e := range r.entities {
		score := tokenizer.BestSimilarity(query, e.Names())
		if score >= threshold && score > 0 {
			out = append(out, NameMatch{Entity: e.Clone(), Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return Older(out[i].Entity, out[j].Entity)
	})
	return out
}

// All returns copies of every entity, oldest first.
func (r *Registry) All() []*models.Entity {
	out := make([]*models.Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e.Clone())
	}
	sortEntities(out)
	return out
}

// Each calls fn for every stored entity without copying, in no particular
// order. fn must not modify the entity or the registry.
func (r *Registry) Each(fn func(e *models.Entity)) {
	for _, e := range r.entities {
		fn(e)
	}
}

// Count returns the number of entities.
func (r *Registry) Count() int {
	return len(r.entities)
}

// CountByType returns entity counts per type.
func (r *Registry) CountByType() map[models.EntityType]int {
	out := make(map[models.EntityType]int, len(r.byType))
	for t, set := range r.byType {
		out[t] = len(set)
	}
	return out
}

// FlagForReview records an ambiguous resolution for later reconciliation.
func (r *Registry) FlagForReview(tx *Tx, rv models.Review) error {
	if _, ok := r.entities[rv.EntityID]; !ok {
		return errors.Wrapf(ErrNotFound, "entity %s", rv.EntityID)
	}
	prev, had := r.reviews[rv.EntityID]
	r.reviews[rv.EntityID] = rv
	tx.record(func() {
		if had {
			r.reviews[rv.EntityID] = prev
			return
		}
		delete(r.reviews, rv.EntityID)
	})
	return nil
}

// ClearReview removes the review flag on entityID.
func (r *Registry) ClearReview(tx *Tx, entityID string) error {
	rv, ok := r.reviews[entityID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "review for entity %s", entityID)
	}
	delete(r.reviews, entityID)
	tx.record(func() { r.reviews[entityID] = rv })
	return nil
}

// Review returns the pending review for entityID.
func (r *Registry) Review(entityID string) (models.Review, bool) {
	rv, ok := r.reviews[entityID]
	return rv, ok
}

// Reviews returns pending reviews, oldest first.
func (r *Registry) Reviews() []models.Review {
	out := make([]models.Review, 0, len(r.reviews))
	for _, rv := range r.reviews {
		out = append(out, rv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FlaggedAt.Equal(out[j].FlaggedAt) {
			return out[i].FlaggedAt.Before(out[j].FlaggedAt)
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// ReviewCount returns the number of pending reviews.
func (r *Registry) ReviewCount() int {
	return len(r.reviews)
}

// Verify cross-checks every index against the records.
func (r *Registry) Verify() error {
	typed := 0
	for t, set := range r.byType {
		for id := range set {
			e, ok := r.entities[id]
			if !ok || e.Type != t {
				return errors.Newf("type index: %s under %s is stale", id, t)
			}
		}
		typed += len(set)
	}
	if typed != len(r.entities) {
		return errors.Newf("type index covers %d of %d entities", typed, len(r.entities))
	}
	for key, set := range r.byName {
		for id := range set {
			e, ok := r.entities[id]
			if !ok || !hasKey(nameKeys(e), key) {
				return errors.Newf("name index: %s under %q is stale", id, key)
			}
		}
	}
	for key, set := range r.byTag {
		for id := range set {
			e, ok := r.entities[id]
			if !ok || !hasKey(tagKeys(e), key) {
				return errors.Newf("tag index: %s under %q is stale", id, key)
			}
		}
	}
	for id, e := range r.entities {
		if _, ok := r.byType[e.Type][id]; !ok {
			return errors.Newf("entity %s missing from type index", id)
		}
		for _, k := range nameKeys(e) {
			if _, ok := r.byName[k][id]; !ok {
				return errors.Newf("entity %s missing from name index under %q", id, k)
			}
		}
		for _, k := range tagKeys(e) {
			if _, ok := r.byTag[k][id]; !ok {
				return errors.Newf("entity %s missing from tag index under %q", id, k)
			}
		}
	}
	return nil
}

func (r *Registry) index(e *models.Entity) {
	addTo(r.byType, e.Type, e.ID)
	for _, k := range nameKeys(e) {
		addTo(r.byName, k, e.ID)
	}
	for _, k := range tagKeys(e) {
		addTo(r.byTag, k, e.ID)
	}
}

func (r *Registry) unindex(e *models.Entity) {
	removeFrom(r.byType, e.Type, e.ID)
	for _, k := range nameKeys(e) {
		removeFrom(r.byName, k, e.ID)
	}
	for _, k := range tagKeys(e) {
		removeFrom(r.byTag, k, e.ID)
	}
}

func (r *Registry) collect(set idSet) []*models.Entity {
	if len(set) == 0 {
		return nil
	}
	out := make([]*models.Entity, 0, len(set))
	for id := range set {
		out = append(out, r.entities[id].Clone())
	}
	sortEntities(out)
	return out
}

// Older reports whether a was created before b, breaking ties by ID. The
// older entity survives merges.
func Older(a, b *models.Entity) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortEntities(es []*models.Entity) {
	sort.Slice(es, func(i, j int) bool { return Older(es[i], es[j]) })
}

func nameKeys(e *models.Entity) []string {
	return normKeys(e.Names())
}

func tagKeys(e *models.Entity) []string {
	return normKeys(e.Tags)
}

func normKeys(items []string) []string {
	keys := make([]string, 0, len(items))
	for _, s := range items {
		k := tokenizer.Normalize(s)
		if k != "" && !hasKey(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func hasKey(keys []string, k string) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}

func fromCandidate(c *models.EntityCandidate, prov models.Provenance) *models.Entity {
	e := &models.Entity{
		Type:             c.Type,
		Name:             strings.TrimSpace(c.Name),
		Description:      c.Description,
		Confidence:       c.Confidence,
		ObservationCount: 1,
		FirstSeen:        prov.Timestamp,
		LastSeen:         prov.Timestamp,
	}
	e.Aliases, _ = tokenizer.MergeSet(nil, withoutName(c.Aliases, e.Name))
	e.Tags, _ = tokenizer.MergeSet(nil, c.Tags)
	if prov.DeviceID != "" {
		e.Sources = []string{prov.DeviceID}
	}
	if len(c.VisualSignature) > 0 {
		e.VisualSignature = make([]float32, len(c.VisualSignature))
		copy(e.VisualSignature, c.VisualSignature)
	}
	if len(c.Properties) > 0 {
		e.Properties = make(map[string]string, len(c.Properties))
		for k, v := range c.Properties {
			e.Properties[k] = v
		}
	}
	return e
}

func withoutName(aliases []string, name string) []string {
	key := tokenizer.Normalize(name)
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if tokenizer.Normalize(a) != key {
			out = append(out, a)
		}
	}
	return out
}

func mergeEntity(dst, src *models.Entity, p confidence.Params) {
	newer := !src.LastSeen.Before(dst.LastSeen)

	dst.Aliases, _ = tokenizer.MergeSet(dst.Aliases, withoutName(src.Names(), dst.Name))
	dst.Tags, _ = tokenizer.MergeSet(dst.Tags, src.Tags)
	dst.Sources = unionExact(dst.Sources, src.Sources)

	if src.Description != "" && (dst.Description == "" || newer) {
		dst.Description = src.Description
	}
	if dst.Type == models.EntityTypeUnknown && src.Type != models.EntityTypeUnknown && src.Type.IsValid() {
		dst.Type = src.Type
	}
	if len(dst.VisualSignature) == 0 && len(src.VisualSignature) > 0 {
		dst.VisualSignature = make([]float32, len(src.VisualSignature))
		copy(dst.VisualSignature, src.VisualSignature)
	}
	for k, v := range src.Properties {
		if dst.Properties == nil {
			dst.Properties = make(map[string]string, len(src.Properties))
		}
		if _, has := dst.Properties[k]; !has || newer {
			dst.Properties[k] = v
		}
	}

	dst.Confidence = p.Combine(dst.Confidence, src.Confidence)
	dst.ObservationCount += max(src.ObservationCount, 1)
	dst.FirstSeen = minTime(dst.FirstSeen, src.FirstSeen)
	dst.LastSeen = maxTime(dst.LastSeen, src.LastSeen)
}

func unionExact(base, add []string) []string {
	for _, s := range add {
		if !hasKey(base, s) {
			base = append(base, s)
		}
	}
	return base
}

func minTime(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
