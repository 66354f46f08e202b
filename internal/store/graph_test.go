package store

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

func newTestGraph() *Graph {
	return NewGraph(
		RegistryOptions{NewID: seqIDs("e"), Now: tickingClock()},
		RelationsOptions{NewID: seqIDs("r")},
	)
}

func addEntity(t *testing.T, g *Graph, name string, et models.EntityType) string {
	t.Helper()
	id, _, err := g.Entities.Upsert(nil, &models.EntityCandidate{Name: name, Type: et, Confidence: 0.8}, prov("d", t0), "")
	require.NoError(t, err)
	return id
}

func TestGraph_DeleteEntityCascades(t *testing.T) {
	g := newTestGraph()
	laptop := addEntity(t, g, "laptop", models.EntityTypeObject)
	desk := addEntity(t, g, "desk", models.EntityTypeSurface)
	lamp := addEntity(t, g, "lamp", models.EntityTypeObject)
	_, _, _ = g.Relations.Upsert(nil, rel(models.RelOn, laptop, desk, 0.9), prov("d", t0))
	_, _, _ = g.Relations.Upsert(nil, rel(models.RelOn, lamp, desk, 0.9), prov("d", t0))
	_, _, _ = g.Relations.Upsert(nil, rel(models.RelNear, lamp, laptop, 0.5), prov("d", t0))

	tx := NewTx()
	removed, err := g.DeleteEntity(tx, laptop)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, g.Relations.Count())
	require.NoError(t, g.Verify())

	tx.Rollback()
	assert.Equal(t, 3, g.Relations.Count())
	assert.True(t, g.Entities.Exists(laptop))
	require.NoError(t, g.Verify())

	_, err = g.DeleteEntity(nil, "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGraph_ContainmentLinked(t *testing.T) {
	g := newTestGraph()
	keys := addEntity(t, g, "keys", models.EntityTypeObject)
	bowl := addEntity(t, g, "bowl", models.EntityTypeContainer)
	counter := addEntity(t, g, "counter", models.EntityTypeSurface)
	kitchen := addEntity(t, g, "kitchen", models.EntityTypeSpace)
	door := addEntity(t, g, "front door", models.EntityTypeLandmark)

	_, _, _ = g.Relations.Upsert(nil, rel(models.RelIn, keys, bowl, 0.9), prov("d", t0))
	_, _, _ = g.Relations.Upsert(nil, rel(models.RelOn, bowl, counter, 0.9), prov("d", t0))
	_, _, _ = g.Relations.Upsert(nil, rel(models.RelIn, counter, kitchen, 0.9), prov("d", t0))
	_, _, _ = g.Relations.Upsert(nil, rel(models.RelNear, counter, door, 0.9), prov("d", t0))
	// a containment cycle must not hang the walk
	_, _, _ = g.Relations.Upsert(nil, rel(models.RelIn, kitchen, bowl, 0.1), prov("d", t0))

	assert.True(t, g.ContainedIn(keys, kitchen))
	assert.True(t, g.ContainmentLinked(kitchen, bowl))
	assert.False(t, g.ContainedIn(keys, door), "NEAR is not containment")
	assert.False(t, g.ContainmentLinked(door, keys))
	assert.False(t, g.ContainedIn(keys, keys))
}
