package graph

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

func snapEntity(id, name string, et models.EntityType, c float64) *models.Entity {
	return &models.Entity{
		ID: id, Name: name, Type: et, Confidence: c, ObservationCount: 1,
		FirstSeen: t1, LastSeen: t1, CreatedAt: t1, Sources: []string{"seed"},
	}
}

func snapEdge(id string, rt models.RelationType, src, dst string, c float64) *models.Relationship {
	return &models.Relationship{
		ID: id, Type: rt, SourceID: src, TargetID: dst, Confidence: c, ObservationCount: 1,
		FirstSeen: t1, LastSeen: t1, Sources: []string{"seed"},
	}
}

func snapshotOf(es []*models.Entity, rs []*models.Relationship, reviews ...models.Review) *models.Snapshot {
	s := &models.Snapshot{
		Version:       models.SnapshotVersion,
		Graph:         "seed",
		ExportedAt:    t1,
		Entities:      map[string]*models.Entity{},
		Relationships: map[string]*models.Relationship{},
		Reviews:       reviews,
	}
	for _, e := range es {
		s.Entities[e.ID] = e
	}
	for _, r := range rs {
		s.Relationships[r.ID] = r
	}
	return s
}

func kitchenSnapshot() *models.Snapshot {
	return snapshotOf(
		[]*models.Entity{
			snapEntity("m", "mug", models.EntityTypeObject, 0.8),
			snapEntity("c", "cup", models.EntityTypeObject, 0.7),
			snapEntity("t", "table", models.EntityTypeSurface, 0.9),
			snapEntity("s", "shelf", models.EntityTypeSurface, 0.9),
		},
		[]*models.Relationship{
			snapEdge("r1", models.RelOn, "m", "t", 0.6),
			snapEdge("r2", models.RelOn, "c", "s", 0.8),
			snapEdge("r3", models.RelNear, "c", "m", 0.5),
			snapEdge("r4", models.RelOn, "c", "t", 0.7),
		},
	)
}

func TestMergeEntities_RewiresEdges(t *testing.T) {
	e, _ := newEngine(t, nil)
	_, err := e.ImportSnapshot(kitchenSnapshot(), models.ImportReplace)
	require.NoError(t, err)

	// Same CreatedAt, so the smaller ID survives.
	merged, err := e.MergeEntities("m", "c")
	require.NoError(t, err)
	assert.Equal(t, "c", merged.ID)
	assert.ElementsMatch(t, []string{"mug", "cup"}, merged.Names())
	assert.Equal(t, 2, merged.ObservationCount)
	assert.InDelta(t, 1-0.2*0.3, merged.Confidence, 1e-9)

	_, err = e.GetEntity("m")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	snap := e.ExportSnapshot()
	require.Len(t, snap.Relationships, 2)
	onTable := snap.Relationships["r4"]
	require.NotNil(t, onTable)
	assert.Equal(t, "c", onTable.SourceID)
	assert.InDelta(t, 1-0.4*0.3, onTable.Confidence, 1e-9)
	assert.Equal(t, 2, onTable.ObservationCount)

	onShelf := snap.Relationships["r2"]
	require.NotNil(t, onShelf)
	assert.Equal(t, "c", onShelf.SourceID)
	assert.Nil(t, snap.Relationships["r1"], "duplicate triple folds into the existing edge")
	assert.Nil(t, snap.Relationships["r3"], "self-loop is dropped")
	require.NoError(t, e.Verify())
}

func TestMergeEntities_OlderEntitySurvivesRegardlessOfOrder(t *testing.T) {
	for _, args := range [][2]string{{"m", "c"}, {"c", "m"}} {
		t.Run(args[0]+"_"+args[1], func(t *testing.T) {
			e, _ := newEngine(t, nil)
			snap := kitchenSnapshot()
			snap.Entities["m"].CreatedAt = t1.Add(-time.Hour)
			_, err := e.ImportSnapshot(snap, models.ImportReplace)
			require.NoError(t, err)

			merged, err := e.MergeEntities(args[0], args[1])
			require.NoError(t, err)
			assert.Equal(t, "m", merged.ID)
			assert.Equal(t, "mug", merged.Name)
			assert.True(t, merged.CreatedAt.Equal(t1.Add(-time.Hour)))

			_, err = e.GetEntity("c")
			assert.True(t, models.IsNotFound(err))
			out := e.ExportSnapshot()
			require.NotNil(t, out.Relationships["r1"])
			assert.Equal(t, "m", out.Relationships["r1"].SourceID)
			assert.Nil(t, out.Relationships["r4"])
			require.NoError(t, e.Verify())
		})
	}
}

func TestMergeEntities_RetargetsPendingReviews(t *testing.T) {
	e, _ := newEngine(t, nil)
	snap := kitchenSnapshot()
	snap.Entities["b"] = snapEntity("b", "beaker", models.EntityTypeObject, 0.6)
	snap.Reviews = []models.Review{
		{EntityID: "b", CandidateID: "m", Score: 0.7, ObservationID: "obs-1", FlaggedAt: t1},
	}
	_, err := e.ImportSnapshot(snap, models.ImportReplace)
	require.NoError(t, err)

	merged, err := e.MergeEntities("c", "m")
	require.NoError(t, err)
	require.Equal(t, "c", merged.ID)

	reviews := e.Reviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, "b", reviews[0].EntityID)
	assert.Equal(t, "c", reviews[0].CandidateID)
	assert.Equal(t, "obs-1", reviews[0].ObservationID)
	require.NoError(t, e.Verify())
}

func TestMergeEntities_FailedMergeKeepsReviews(t *testing.T) {
	e, _ := newEngine(t, nil)
	snap := kitchenSnapshot()
	snap.Entities["b"] = snapEntity("b", "beaker", models.EntityTypeObject, 0.6)
	snap.Reviews = []models.Review{{EntityID: "b", CandidateID: "m", Score: 0.7, FlaggedAt: t1}}
	_, err := e.ImportSnapshot(snap, models.ImportReplace)
	require.NoError(t, err)

	_, err = e.MergeEntities("m", "ghost")
	require.True(t, models.IsNotFound(err))
	reviews := e.Reviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, "m", reviews[0].CandidateID)
}

func TestMergeEntities_Errors(t *testing.T) {
	e, _ := newEngine(t, nil)
	_, err := e.ImportSnapshot(kitchenSnapshot(), models.ImportReplace)
	require.NoError(t, err)

	_, err = e.MergeEntities("m", "m")
	assert.True(t, errors.Is(err, models.ErrValidation))
	_, err = e.MergeEntities("m", "ghost")
	assert.True(t, models.IsNotFound(err))
	_, err = e.MergeEntities("ghost", "c")
	assert.True(t, models.IsNotFound(err))
	assert.Equal(t, 4, e.Stats().EntityCount)
}

func ambiguousPair(t *testing.T, e *Engine) (flagged, candidate string) {
	t.Helper()
	first := submit(t, e, observation("phone", t1, []models.EntityCandidate{
		{Ref: "m", Name: "coffee mug", Type: models.EntityTypeObject, Confidence: 0.8, Tags: []string{"kitchen"}},
	}))
	second := submit(t, e, observation("phone", t1.Add(time.Hour), []models.EntityCandidate{
		{Ref: "m", Name: "mug", Type: models.EntityTypeObject, Confidence: 0.8, Tags: []string{"office"}},
	}))
	require.Len(t, second.Manifest.EntitiesAmbiguous, 1)
	return second.Refs["m"], first.Refs["m"]
}

func TestAcceptReview_MergesIntoCandidate(t *testing.T) {
	e, _ := newEngine(t, nil)
	flagged, candidate := ambiguousPair(t, e)

	reviews := e.Reviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, flagged, reviews[0].EntityID)
	assert.Equal(t, candidate, reviews[0].CandidateID)

	merged, err := e.AcceptReview(flagged)
	require.NoError(t, err)
	assert.Equal(t, candidate, merged.ID)
	assert.ElementsMatch(t, []string{"coffee mug", "mug"}, merged.Names())
	assert.ElementsMatch(t, []string{"kitchen", "office"}, merged.Tags)
	assert.Empty(t, e.Reviews())
	assert.Equal(t, 1, e.Stats().EntityCount)
}

func TestDismissReview_KeepsBoth(t *testing.T) {
	e, _ := newEngine(t, nil)
	flagged, _ := ambiguousPair(t, e)

	require.NoError(t, e.DismissReview(flagged))
	assert.Empty(t, e.Reviews())
	assert.Equal(t, 2, e.Stats().EntityCount)
	assert.True(t, models.IsNotFound(e.DismissReview(flagged)))
	_, err := e.AcceptReview(flagged)
	assert.True(t, models.IsNotFound(err))
}
