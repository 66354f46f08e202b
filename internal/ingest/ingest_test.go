package ingest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/matcher"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

var (
	t1 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	t2 = t1.Add(6 * time.Hour)
)

func newGraph(maxEntities, maxRelationships int) *store.Graph {
	n, m := 0, 0
	clock := t1
	return store.NewGraph(
		store.RegistryOptions{
			MaxEntities: maxEntities,
			NewID:       func() string { n++; return fmt.Sprintf("e%02d", n) },
			Now:         func() time.Time { clock = clock.Add(time.Second); return clock },
		},
		store.RelationsOptions{
			MaxRelationships: maxRelationships,
			NewID:            func() string { m++; return fmt.Sprintf("r%02d", m) },
		},
	)
}

func newCoordinator() *Coordinator {
	obs := 0
	return New(matcher.New(matcher.DefaultConfig(), nil), Options{
		Params:         confidence.DefaultParams(),
		VerifyOnCommit: true,
		NewID:          func() string { obs++; return fmt.Sprintf("obs-%d", obs) },
	}, nil)
}

func ent(ref, name string, et models.EntityType, c float64) models.EntityCandidate {
	return models.EntityCandidate{Ref: ref, Name: name, Type: et, Confidence: c}
}

func rel(rt models.RelationType, src, dst string, c float64) models.RelationshipCandidate {
	return models.RelationshipCandidate{Type: rt, Source: src, Target: dst, Confidence: c}
}

func observe(device string, at time.Time, es []models.EntityCandidate, rs ...models.RelationshipCandidate) *models.Observation {
	return &models.Observation{
		Entities:      es,
		Relationships: rs,
		Provenance:    models.Provenance{DeviceID: device, Timestamp: at},
	}
}

func laptopOn(place string, c float64, at time.Time) *models.Observation {
	return observe("phone", at,
		[]models.EntityCandidate{
			ent("laptop", "laptop", models.EntityTypeObject, 0.9),
			ent("place", place, models.EntityTypeSurface, 0.9),
		},
		rel(models.RelOn, "laptop", "place", c))
}

func TestApply_AliasesMergeAcrossDevices(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	first := c.Apply(g, nil, observe("phone", t1,
		[]models.EntityCandidate{
			ent("keys", "car keys", models.EntityTypeObject, 0.9),
			ent("counter", "kitchen counter", models.EntityTypeSurface, 0.9),
		},
		rel(models.RelOn, "keys", "counter", 0.9)))
	require.Equal(t, models.StateCommitted, first.Manifest.State)
	assert.Len(t, first.Manifest.EntitiesCreated, 2)
	assert.Len(t, first.Manifest.RelationshipsCreated, 1)
	keysID := first.Refs["keys"]

	second := c.Apply(g, nil, observe("tablet", t2,
		[]models.EntityCandidate{
			ent("k", "keys", models.EntityTypeObject, 0.8),
			ent("c", "kitchen counter", models.EntityTypeSurface, 0.8),
		},
		rel(models.RelOn, "k", "c", 0.8)))
	require.Equal(t, models.StateCommitted, second.Manifest.State)
	assert.Empty(t, second.Manifest.EntitiesCreated)
	assert.ElementsMatch(t, []string{keysID, first.Refs["counter"]}, second.Manifest.EntitiesMerged)
	assert.Len(t, second.Manifest.RelationshipsMerged, 1)
	assert.Empty(t, second.Manifest.Conflicts)
	assert.Equal(t, keysID, second.Refs["k"])

	keys, err := g.Entities.Get(keysID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"car keys", "keys"}, keys.Names())
	assert.Greater(t, keys.Confidence, 0.9)
	assert.Equal(t, 2, keys.ObservationCount)
	assert.ElementsMatch(t, []string{"phone", "tablet"}, keys.Sources)
	assert.Equal(t, 2, g.Entities.Count())
}

func TestApply_LaterConflictPenalizesExistingEdge(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	first := c.Apply(g, nil, laptopOn("desk", 0.9, t1))
	deskEdge := first.Manifest.RelationshipsCreated[0]

	second := c.Apply(g, nil, laptopOn("nightstand", 0.7, t2))
	require.Equal(t, models.StateCommitted, second.Manifest.State)
	assert.Equal(t, []string{first.Refs["laptop"]}, second.Manifest.EntitiesMerged)
	require.Len(t, second.Manifest.Conflicts, 1)

	cf := second.Manifest.Conflicts[0]
	assert.Equal(t, deskEdge, cf.PenalizedID)
	assert.True(t, cf.IncomingSupersedes)
	assert.Equal(t, first.Refs["place"], cf.ExistingTargetID)
	assert.InDelta(t, 0.9, cf.ConfidenceBefore, 1e-9)
	assert.InDelta(t, 0.9*(1-0.5*0.7), cf.ConfidenceAfter, 1e-9)

	desk, err := g.Relations.Get(deskEdge)
	require.NoError(t, err)
	assert.InDelta(t, cf.ConfidenceAfter, desk.Confidence, 1e-9)
	assert.Equal(t, 2, len(g.Relations.Query(store.Filter{SourceID: first.Refs["laptop"], Type: models.RelOn})))
}

func TestApply_OlderConflictPenalizesIncomingEdge(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	first := c.Apply(g, nil, laptopOn("desk", 0.9, t2))
	second := c.Apply(g, nil, laptopOn("nightstand", 0.7, t1))
	require.Len(t, second.Manifest.Conflicts, 1)

	cf := second.Manifest.Conflicts[0]
	assert.False(t, cf.IncomingSupersedes)
	assert.Equal(t, second.Manifest.RelationshipsCreated[0], cf.PenalizedID)
	assert.InDelta(t, 0.7*(1-0.5*0.9), cf.ConfidenceAfter, 1e-9)

	desk, err := g.Relations.Get(first.Manifest.RelationshipsCreated[0])
	require.NoError(t, err)
	assert.InDelta(t, 0.9, desk.Confidence, 1e-9)
}

func TestApply_NestedLocationIsNotAConflict(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	res := c.Apply(g, nil, observe("phone", t1,
		[]models.EntityCandidate{
			ent("keys", "keys", models.EntityTypeObject, 0.9),
			ent("bowl", "bowl", models.EntityTypeContainer, 0.9),
			ent("counter", "counter", models.EntityTypeSurface, 0.9),
		},
		rel(models.RelIn, "keys", "bowl", 0.9),
		rel(models.RelOn, "bowl", "counter", 0.9)))
	require.Equal(t, models.StateCommitted, res.Manifest.State)

	res = c.Apply(g, nil, observe("phone", t2,
		[]models.EntityCandidate{ent("keys", "keys", models.EntityTypeObject, 0.8)},
		rel(models.RelOn, "keys", res.Refs["counter"], 0.6)))
	require.Equal(t, models.StateCommitted, res.Manifest.State)
	assert.Empty(t, res.Manifest.Conflicts)
	assert.Len(t, res.Manifest.RelationshipsCreated, 1)
}

func TestApply_Idempotent(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	c.Apply(g, nil, laptopOn("desk", 0.8, t1))
	entities, edges := g.Entities.Count(), g.Relations.Count()

	res := c.Apply(g, nil, laptopOn("desk", 0.8, t1))
	require.Equal(t, models.StateCommitted, res.Manifest.State)
	assert.Empty(t, res.Manifest.EntitiesCreated)
	assert.Empty(t, res.Manifest.RelationshipsCreated)
	assert.Len(t, res.Manifest.RelationshipsMerged, 1)
	assert.Equal(t, entities, g.Entities.Count())
	assert.Equal(t, edges, g.Relations.Count())
}

func TestApply_TypeVetoCreatesSeparateEntity(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	c.Apply(g, nil, observe("phone", t1, []models.EntityCandidate{ent("", "table", models.EntityTypeSurface, 0.9)}))
	res := c.Apply(g, nil, observe("phone", t2, []models.EntityCandidate{ent("", "table", models.EntityTypeObject, 0.9)}))

	require.Len(t, res.Manifest.Resolutions, 1)
	assert.Equal(t, models.DecisionCreate, res.Manifest.Resolutions[0].Decision)
	assert.True(t, res.Manifest.Resolutions[0].Vetoed)
	assert.Equal(t, "0", res.Manifest.Resolutions[0].Ref)
	assert.Equal(t, 2, g.Entities.Count())
}

func TestApply_AmbiguousIsCreatedAndFlagged(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	first := c.Apply(g, nil, observe("phone", t1, []models.EntityCandidate{
		{Ref: "m", Name: "coffee mug", Type: models.EntityTypeObject, Confidence: 0.8, Tags: []string{"kitchen"}},
	}))
	res := c.Apply(g, nil, observe("phone", t2, []models.EntityCandidate{
		{Ref: "m", Name: "mug", Type: models.EntityTypeObject, Confidence: 0.8, Tags: []string{"office"}},
	}))

	require.Len(t, res.Manifest.EntitiesAmbiguous, 1)
	assert.Equal(t, res.Manifest.EntitiesCreated, res.Manifest.EntitiesAmbiguous)
	rv, ok := g.Entities.Review(res.Refs["m"])
	require.True(t, ok)
	assert.Equal(t, first.Refs["m"], rv.CandidateID)
	assert.Equal(t, res.Manifest.ObservationID, rv.ObservationID)
	assert.Equal(t, 1, g.Entities.ReviewCount())
}

func TestApply_PerCandidateFailuresAreIsolated(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	res := c.Apply(g, nil, observe("phone", t1,
		[]models.EntityCandidate{
			ent("mug", "mug", models.EntityTypeObject, 0.9),
			ent("bad", "", models.EntityTypeObject, 0.9),
			ent("worse", "plate", models.EntityTypeObject, 1.5),
			ent("mug", "saucer", models.EntityTypeObject, 0.9),
		},
		rel(models.RelOn, "mug", "ghost", 0.9),
		rel("levitates", "mug", "mug", 0.9),
		rel(models.RelNear, "bad", "mug", 0.9)))

	require.Equal(t, models.StateCommitted, res.Manifest.State)
	assert.Len(t, res.Manifest.EntitiesCreated, 1)
	assert.Equal(t, 1, g.Entities.Count())

	var refs []string
	for _, f := range res.Manifest.Failures {
		assert.Equal(t, models.FailureValidation, f.Kind)
		refs = append(refs, f.Ref)
	}
	assert.ElementsMatch(t, []string{"mug", "bad", "worse", "relationships[1]"}, refs)

	require.Len(t, res.Manifest.RelationshipsDropped, 2)
	for _, d := range res.Manifest.RelationshipsDropped {
		assert.Equal(t, models.FailureUnresolvedRef, d.Kind)
	}
	assert.Zero(t, g.Relations.Count())
}

func TestApply_SelfLoopAfterResolutionIsDropped(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	res := c.Apply(g, nil, observe("phone", t1,
		[]models.EntityCandidate{
			ent("a", "mug", models.EntityTypeObject, 0.9),
			ent("b", "mug", models.EntityTypeObject, 0.9),
		},
		rel(models.RelNear, "a", "b", 0.9)))

	require.Equal(t, models.StateCommitted, res.Manifest.State)
	assert.Equal(t, res.Refs["a"], res.Refs["b"])
	require.Len(t, res.Manifest.RelationshipsDropped, 1)
	assert.Equal(t, models.FailureSelfLoop, res.Manifest.RelationshipsDropped[0].Kind)
}

func TestApply_ExistingEntityIDAsEndpoint(t *testing.T) {
	g := newGraph(0, 0)
	c := newCoordinator()

	first := c.Apply(g, nil, observe("phone", t1, []models.EntityCandidate{ent("shelf", "shelf", models.EntityTypeSurface, 0.9)}))
	res := c.Apply(g, nil, observe("phone", t2,
		[]models.EntityCandidate{ent("book", "book", models.EntityTypeObject, 0.9)},
		rel(models.RelOn, "book", first.Refs["shelf"], 0.8)))

	require.Len(t, res.Manifest.RelationshipsCreated, 1)
	r, err := g.Relations.Get(res.Manifest.RelationshipsCreated[0])
	require.NoError(t, err)
	assert.Equal(t, first.Refs["shelf"], r.TargetID)
}

func TestApply_CapacityRollsBackEverything(t *testing.T) {
	g := newGraph(2, 0)
	c := newCoordinator()

	c.Apply(g, nil, observe("phone", t1, []models.EntityCandidate{ent("", "shelf", models.EntityTypeSurface, 0.9)}))
	before, err := g.Entities.Get("e01")
	require.NoError(t, err)

	tx := store.NewTx()
	res := c.Apply(g, tx, observe("phone", t2,
		[]models.EntityCandidate{
			ent("s", "shelf", models.EntityTypeSurface, 0.5),
			ent("b", "book", models.EntityTypeObject, 0.9),
			ent("l", "lamp", models.EntityTypeObject, 0.9),
		},
		rel(models.RelOn, "b", "s", 0.9)))

	assert.Equal(t, models.StateFailed, res.Manifest.State)
	require.Len(t, res.Manifest.Failures, 1)
	assert.Equal(t, models.FailureCapacity, res.Manifest.Failures[0].Kind)
	assert.Equal(t, "l", res.Manifest.Failures[0].Ref)
	assert.Empty(t, res.Manifest.EntitiesCreated)
	assert.Empty(t, res.Refs)
	assert.Zero(t, tx.Len())

	assert.Equal(t, 1, g.Entities.Count())
	after, err := g.Entities.Get("e01")
	require.NoError(t, err)
	assert.Equal(t, before, after, "the merged shelf is restored")
	require.NoError(t, g.Verify())
}

func TestApply_RelationshipCapacityRollsBack(t *testing.T) {
	g := newGraph(0, 1)
	c := newCoordinator()

	res := c.Apply(g, nil, observe("phone", t1,
		[]models.EntityCandidate{
			ent("a", "pen", models.EntityTypeObject, 0.9),
			ent("b", "desk", models.EntityTypeSurface, 0.9),
			ent("c", "lamp", models.EntityTypeObject, 0.9),
		},
		rel(models.RelOn, "a", "b", 0.9),
		rel(models.RelNear, "a", "c", 0.9)))

	assert.Equal(t, models.StateFailed, res.Manifest.State)
	assert.Equal(t, models.FailureCapacity, res.Manifest.Failures[0].Kind)
	assert.Equal(t, "relationships[1]", res.Manifest.Failures[0].Ref)
	assert.Zero(t, g.Entities.Count())
	assert.Zero(t, g.Relations.Count())
}

func TestApply_MissingProvenanceFails(t *testing.T) {
	g := newGraph(0, 0)
	res := newCoordinator().Apply(g, nil, &models.Observation{
		Entities: []models.EntityCandidate{ent("", "mug", models.EntityTypeObject, 0.9)},
	})
	assert.Equal(t, models.StateFailed, res.Manifest.State)
	assert.Equal(t, models.FailureValidation, res.Manifest.Failures[0].Kind)
	assert.Equal(t, "obs-1", res.Manifest.ObservationID)
	assert.Zero(t, g.Entities.Count())
}
