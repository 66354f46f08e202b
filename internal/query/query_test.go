package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t  *testing.T
	g  *store.Graph
	q  *Engine
	id map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n, m := 0, 0
	clock := t0
	g := store.NewGraph(
		store.RegistryOptions{
			NewID: func() string { n++; return fmt.Sprintf("e%02d", n) },
			Now:   func() time.Time { clock = clock.Add(time.Second); return clock },
		},
		store.RelationsOptions{NewID: func() string { m++; return fmt.Sprintf("r%02d", m) }},
	)
	q := New(DefaultConfig(), confidence.DefaultParams(), nil, func() time.Time { return t0 }, nil)
	return &fixture{t: t, g: g, q: q, id: map[string]string{}}
}

func (f *fixture) entity(name string, et models.EntityType) string {
	f.t.Helper()
	id, _, err := f.g.Entities.Upsert(nil, &models.EntityCandidate{Name: name, Type: et, Confidence: 0.9},
		models.Provenance{DeviceID: "cam", Timestamp: t0}, "")
	require.NoError(f.t, err)
	f.id[name] = id
	return id
}

func (f *fixture) edge(rt models.RelationType, src, dst string, c float64) string {
	return f.edgeAt(rt, src, dst, c, t0)
}

func (f *fixture) edgeAt(rt models.RelationType, src, dst string, c float64, at time.Time) string {
	f.t.Helper()
	id, _, err := f.g.Relations.Upsert(nil,
		models.ResolvedRelationship{Type: rt, SourceID: f.id[src], TargetID: f.id[dst], Confidence: c},
		models.Provenance{DeviceID: "cam", Timestamp: at})
	require.NoError(f.t, err)
	return id
}

func names(ns []Neighbor) []string {
	var out []string
	for _, n := range ns {
		out = append(out, n.Entity.Name)
	}
	return out
}

func TestStats_ReadsCounters(t *testing.T) {
	f := newFixture(t)
	f.entity("laptop", models.EntityTypeObject)
	f.entity("desk", models.EntityTypeSurface)
	f.entity("printer", models.EntityTypeEquipment)
	f.edge(models.RelOn, "laptop", "desk", 0.9)
	f.edge(models.RelUsedWith, "laptop", "printer", 0.6)

	s := f.q.Stats(f.g)
	assert.Equal(t, 3, s.EntityCount)
	assert.Equal(t, 2, s.RelationshipCount)
	assert.Equal(t, 1, s.SpatialRelationshipCount)
	assert.Equal(t, 1, s.EntitiesByType[models.EntityTypeSurface])
	assert.Equal(t, 1, s.RelationshipsByFamily[models.FamilyFunctional])
	assert.Equal(t, 1, s.RelationshipsByType[models.RelOn])
	assert.Zero(t, s.PendingReviews)
}

func TestNew_FillsDefaults(t *testing.T) {
	q := New(Config{}, confidence.DefaultParams(), nil, nil, nil)
	assert.Equal(t, 1.0, q.Config().BaseCost)
	assert.Equal(t, 1.0, q.Config().ReverseCostFactor)
	assert.Equal(t, 8, q.Config().MaxChainDepth)
}

func TestGetContext_MissingEntity(t *testing.T) {
	f := newFixture(t)
	_, err := f.q.GetContext(f.g, "nope", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestGetContext_ConflictingContainersBothReturned(t *testing.T) {
	f := newFixture(t)
	f.entity("laptop", models.EntityTypeObject)
	f.entity("desk", models.EntityTypeSurface)
	f.entity("nightstand", models.EntityTypeSurface)
	f.edge(models.RelOn, "laptop", "desk", 0.45)
	f.edgeAt(models.RelOn, "laptop", "nightstand", 0.7, t0)

	ctx, err := f.q.GetContext(f.g, f.id["laptop"], 1)
	require.NoError(t, err)
	require.Len(t, ctx.Container, 2)
	assert.Equal(t, []string{"nightstand", "desk"}, names(ctx.Container), "strongest first")
	assert.InDelta(t, 0.7, ctx.Container[0].Confidence, 1e-9)
	assert.InDelta(t, 0.45, ctx.Container[1].Confidence, 1e-9)
	assert.Empty(t, ctx.Contents)
}

func TestGetContext_ClassifiesNeighbors(t *testing.T) {
	f := newFixture(t)
	f.entity("keys", models.EntityTypeObject)
	f.entity("bowl", models.EntityTypeContainer)
	f.entity("counter", models.EntityTypeSurface)
	f.entity("kitchen", models.EntityTypeSpace)
	f.entity("coin", models.EntityTypeObject)
	f.entity("phone", models.EntityTypeObject)
	f.entity("car", models.EntityTypeEquipment)

	f.edge(models.RelIn, "keys", "bowl", 0.9)
	f.edge(models.RelOn, "bowl", "counter", 0.9)
	f.edge(models.RelIn, "counter", "kitchen", 0.9)
	f.edge(models.RelIn, "coin", "keys", 0.6)
	f.edge(models.RelNextTo, "phone", "keys", 0.8)
	f.edge(models.RelUsedWith, "keys", "car", 0.7)

	ctx, err := f.q.GetContext(f.g, f.id["keys"], 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bowl", "counter"}, names(ctx.Container))
	assert.Equal(t, []string{"coin"}, names(ctx.Contents))
	assert.Equal(t, []string{"phone"}, names(ctx.Nearby))
	assert.Equal(t, []string{"car"}, names(ctx.Related))
	assert.Equal(t, 2, ctx.Container[1].Hops)

	ctx, err = f.q.GetContext(f.g, f.id["keys"], 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"bowl", "counter", "kitchen"}, names(ctx.Container))
}

func TestGetContext_RadiusZeroIsJustTheEntity(t *testing.T) {
	f := newFixture(t)
	f.entity("keys", models.EntityTypeObject)
	f.entity("bowl", models.EntityTypeContainer)
	f.edge(models.RelIn, "keys", "bowl", 0.9)

	ctx, err := f.q.GetContext(f.g, f.id["keys"], 0)
	require.NoError(t, err)
	assert.Equal(t, "keys", ctx.Entity.Name)
	assert.Empty(t, ctx.Container)
}

func TestGetContext_TerminatesOnCycles(t *testing.T) {
	f := newFixture(t)
	f.entity("a", models.EntityTypeObject)
	f.entity("b", models.EntityTypeObject)
	f.entity("c", models.EntityTypeObject)
	f.edge(models.RelIn, "a", "b", 0.9)
	f.edge(models.RelIn, "b", "c", 0.9)
	f.edge(models.RelIn, "c", "a", 0.9)
	f.edge(models.RelNear, "b", "a", 0.5)

	ctx, err := f.q.GetContext(f.g, f.id["a"], 10)
	require.NoError(t, err)
	total := len(ctx.Container) + len(ctx.Contents) + len(ctx.Nearby) + len(ctx.Related)
	assert.Equal(t, 2, total, "each neighbor is reported once")
}

func TestGetContext_DecaysOldEdges(t *testing.T) {
	f := newFixture(t)
	f.entity("mug", models.EntityTypeObject)
	f.entity("shelf", models.EntityTypeSurface)
	f.edgeAt(models.RelOn, "mug", "shelf", 0.8, t0.Add(-30*24*time.Hour))

	ctx, err := f.q.GetContext(f.g, f.id["mug"], 1)
	require.NoError(t, err)
	require.Len(t, ctx.Container, 1)
	assert.InDelta(t, 0.8, ctx.Container[0].Confidence, 1e-9)
	assert.InDelta(t, 0.4, ctx.Container[0].Decayed, 1e-9)
}

func TestFindPath_Disconnected(t *testing.T) {
	f := newFixture(t)
	f.entity("keys", models.EntityTypeObject)
	f.entity("front door", models.EntityTypeLandmark)

	_, err := f.q.FindPath(f.g, f.id["keys"], f.id["front door"], PathOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPath))
	assert.True(t, models.IsNotFound(err))
}

func TestFindPath_MissingEndpoint(t *testing.T) {
	f := newFixture(t)
	f.entity("keys", models.EntityTypeObject)
	_, err := f.q.FindPath(f.g, f.id["keys"], "ghost", PathOptions{})
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Contains(t, err.Error(), "ghost")
}

func TestFindPath_SameEntity(t *testing.T) {
	f := newFixture(t)
	id := f.entity("keys", models.EntityTypeObject)
	p, err := f.q.FindPath(f.g, id, id, PathOptions{})
	require.NoError(t, err)
	assert.Len(t, p.Steps, 1)
	assert.Zero(t, p.Hops)
	assert.Zero(t, p.Cost)
}

func TestFindPath_PrefersConfidentEdges(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"keys", "bowl", "shelf", "hallway"} {
		f.entity(n, models.EntityTypeObject)
	}
	// keys-bowl-hallway costs 1/0.9 + 1/0.9; keys-shelf-hallway costs 1/0.2 + 1/0.9
	f.edge(models.RelIn, "keys", "bowl", 0.9)
	f.edge(models.RelIn, "bowl", "hallway", 0.9)
	f.edge(models.RelOn, "keys", "shelf", 0.2)
	f.edge(models.RelIn, "shelf", "hallway", 0.9)

	p, err := f.q.FindPath(f.g, f.id["keys"], f.id["hallway"], PathOptions{})
	require.NoError(t, err)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, "bowl", p.Steps[1].Entity.Name)
	assert.Equal(t, 2, p.Hops)
	assert.InDelta(t, 2/0.9, p.Cost, 1e-9)
	assert.Nil(t, p.Steps[0].Via)
}

func TestFindPath_EqualCostPrefersFewerHops(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"a", "b", "c"} {
		f.entity(n, models.EntityTypeObject)
	}
	f.edge(models.RelNear, "a", "b", 1.0)
	f.edge(models.RelNear, "b", "c", 1.0)
	f.edge(models.RelNear, "a", "c", 0.5)

	p, err := f.q.FindPath(f.g, f.id["a"], f.id["c"], PathOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Hops)
	assert.InDelta(t, 2.0, p.Cost, 1e-9)
}

func TestFindPath_WalksEdgesBackwards(t *testing.T) {
	f := newFixture(t)
	f.entity("kitchen", models.EntityTypeSpace)
	f.entity("counter", models.EntityTypeSurface)
	f.edge(models.RelIn, "counter", "kitchen", 0.8)

	p, err := f.q.FindPath(f.g, f.id["kitchen"], f.id["counter"], PathOptions{})
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.True(t, p.Steps[1].Reversed)
	assert.Equal(t, models.RelIn, p.Steps[1].Via.Type)
}

func TestFindPath_TypeFilter(t *testing.T) {
	f := newFixture(t)
	f.entity("drill", models.EntityTypeEquipment)
	f.entity("bench", models.EntityTypeSurface)
	f.edge(models.RelUsedWith, "drill", "bench", 0.9)

	_, err := f.q.FindPath(f.g, f.id["drill"], f.id["bench"], PathOptions{Types: []models.RelationType{models.RelOn, models.RelIn}})
	assert.True(t, errors.Is(err, ErrNoPath))
}

func TestQueryRelationships_Direct(t *testing.T) {
	f := newFixture(t)
	f.entity("keys", models.EntityTypeObject)
	f.entity("drawer", models.EntityTypeContainer)
	f.entity("phone", models.EntityTypeObject)
	f.edge(models.RelIn, "keys", "drawer", 0.9)
	f.edge(models.RelIn, "phone", "drawer", 0.6)

	got, err := f.q.QueryRelationships(f.g, RelationFilter{TargetID: f.id["drawer"], Relation: "in"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, f.id["keys"], got[0].Relationship.SourceID, "strongest first")
	assert.False(t, got[0].Inverted)
	assert.Equal(t, "in", got[0].As)
}

func TestQueryRelationships_QueryOnlyInverse(t *testing.T) {
	f := newFixture(t)
	f.entity("keys", models.EntityTypeObject)
	f.entity("drawer", models.EntityTypeContainer)
	f.edge(models.RelIn, "keys", "drawer", 0.9)

	got, err := f.q.QueryRelationships(f.g, RelationFilter{SourceID: f.id["drawer"], Relation: "contains"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Inverted)
	assert.Equal(t, "contains", got[0].As)
	assert.Equal(t, f.id["keys"], got[0].Relationship.SourceID)
	assert.Equal(t, 1, f.g.Relations.Count(), "inverse is never stored")
}

func TestQueryRelationships_IncludeInverse(t *testing.T) {
	f := newFixture(t)
	f.entity("lamp", models.EntityTypeObject)
	f.entity("table", models.EntityTypeSurface)
	f.entity("rug", models.EntityTypeObject)
	f.edge(models.RelAbove, "lamp", "table", 0.8)
	f.edge(models.RelBelow, "rug", "lamp", 0.7)

	got, err := f.q.QueryRelationships(f.g, RelationFilter{SourceID: f.id["lamp"], Relation: "above", IncludeInverse: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Inverted)
	assert.True(t, got[1].Inverted)
	assert.Equal(t, models.RelBelow, got[1].Relationship.Type)
	assert.Equal(t, "above", got[1].As)

	got, err = f.q.QueryRelationships(f.g, RelationFilter{SourceID: f.id["lamp"], Relation: "above"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestQueryRelationships_UnknownRelation(t *testing.T) {
	f := newFixture(t)
	_, err := f.q.QueryRelationships(f.g, RelationFilter{Relation: "levitates"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestLocate_FollowsContainmentChain(t *testing.T) {
	f := newFixture(t)
	f.entity("car keys", models.EntityTypeObject)
	f.entity("bowl", models.EntityTypeContainer)
	f.entity("shelf", models.EntityTypeSurface)
	f.entity("counter", models.EntityTypeSurface)
	f.entity("kitchen", models.EntityTypeSpace)
	f.edge(models.RelIn, "car keys", "bowl", 0.9)
	f.edge(models.RelOn, "car keys", "shelf", 0.3)
	f.edge(models.RelOn, "bowl", "counter", 0.8)
	f.edge(models.RelIn, "counter", "kitchen", 0.9)

	got := f.q.Locate(f.g, "keys", 5)
	require.Len(t, got, 1)
	p := got[0]
	assert.Equal(t, "car keys", p.Entity.Name)
	require.NotNil(t, p.Location())
	assert.Equal(t, "bowl", p.Location().Name)
	var chain []string
	for _, l := range p.Chain {
		chain = append(chain, l.Entity.Name)
	}
	assert.Equal(t, []string{"bowl", "counter", "kitchen"}, chain)
	assert.InDelta(t, 0.9, p.Score.Confidence, 1e-9)
	assert.Greater(t, p.Score.FinalScore, 0.0)
}

func TestLocate_StopsOnCycle(t *testing.T) {
	f := newFixture(t)
	f.entity("box", models.EntityTypeContainer)
	f.entity("crate", models.EntityTypeContainer)
	f.edge(models.RelIn, "box", "crate", 0.9)
	f.edge(models.RelIn, "crate", "box", 0.9)

	got := f.q.Locate(f.g, "box", 0)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Chain, 1)
}

func TestLocate_RanksAndLimits(t *testing.T) {
	f := newFixture(t)
	f.entity("red mug", models.EntityTypeObject)
	f.entity("mug", models.EntityTypeObject)
	f.entity("sink", models.EntityTypeContainer)
	f.edge(models.RelIn, "mug", "sink", 0.9)

	got := f.q.Locate(f.g, "mug", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "mug", got[0].Entity.Name)
	assert.Nil(t, got[1].Location())

	assert.Len(t, f.q.Locate(f.g, "mug", 1), 1)
	assert.Empty(t, f.q.Locate(f.g, "", 3))
}
