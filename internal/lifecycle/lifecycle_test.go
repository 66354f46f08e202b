package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

type fakeGraph struct {
	stale    []*models.Relationship
	entities []*models.Entity
	deleted  []string
	failOn   string
	askedAge time.Duration
}

func (f *fakeGraph) StaleRelationships(maxAge time.Duration) []*models.Relationship {
	f.askedAge = maxAge
	return f.stale
}

func (f *fakeGraph) StaleEntities() []*models.Entity { return f.entities }

func (f *fakeGraph) DeleteRelationship(id string) error {
	if id == f.failOn {
		return errors.New("boom")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func staleGraph() *fakeGraph {
	return &fakeGraph{
		stale: []*models.Relationship{
			{ID: "r1", Type: models.RelOn, SourceID: "a", TargetID: "b"},
			{ID: "r2", Type: models.RelNear, SourceID: "a", TargetID: "c"},
		},
		entities: []*models.Entity{{ID: "a", Name: "old box"}},
	}
}

func TestLifecycle_PrunesStaleRelationships(t *testing.T) {
	g := staleGraph()
	report, err := NewManager(g, 72*time.Hour, quietLogger()).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Pruned)
	assert.Equal(t, []string{"r1", "r2"}, g.deleted)
	assert.Equal(t, 1, report.StaleEntities, "entities are reported, never deleted")
	assert.Equal(t, 72*time.Hour, g.askedAge)
}

func TestLifecycle_DryRunDeletesNothing(t *testing.T) {
	g := staleGraph()
	report, err := NewManager(g, time.Hour, quietLogger()).Run(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Pruned)
	assert.Equal(t, []string{"r1", "r2"}, report.PrunedIDs)
	assert.Empty(t, g.deleted)
}

func TestLifecycle_DeleteErrorSkipsRecord(t *testing.T) {
	g := staleGraph()
	g.failOn = "r1"
	report, err := NewManager(g, time.Hour, quietLogger()).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pruned)
	assert.Equal(t, []string{"r2"}, report.PrunedIDs)
}

func TestLifecycle_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := staleGraph()
	report, err := NewManager(g, time.Hour, nil).Run(ctx, false)
	require.Error(t, err)
	assert.Zero(t, report.Pruned)
	assert.Empty(t, g.deleted)
}
