package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/spatial-cortex/internal/metrics"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// Graph is the slice of graph.Engine the sweep needs.
type Graph interface {
	StaleRelationships(maxAge time.Duration) []*models.Relationship
	StaleEntities() []*models.Entity
	DeleteRelationship(id string) error
}

// Report summarizes the results of a lifecycle run.
type Report struct {
	Pruned        int      `json:"pruned"`
	PrunedIDs     []string `json:"pruned_ids,omitempty"`
	StaleEntities int      `json:"stale_entities"`
	DryRun        bool     `json:"dry_run"`
}

// Manager prunes relationships that have decayed to the floor and gone
// unseen for longer than MaxStaleAge. Entities are never deleted: a stale
// entity stays discoverable at low rank.
type Manager struct {
	graph       Graph
	maxStaleAge time.Duration
	logger      *slog.Logger
}

// NewManager creates a new lifecycle manager.
func NewManager(g Graph, maxStaleAge time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		graph:       g,
		maxStaleAge: maxStaleAge,
		logger:      logger,
	}
}

// Run executes the sweep. With dryRun set nothing is deleted.
func (m *Manager) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun}

	pruned, err := m.pruneRelationships(ctx, dryRun, report)
	if err != nil {
		return report, err
	}
	report.Pruned = pruned

	stale := m.graph.StaleEntities()
	report.StaleEntities = len(stale)
	metrics.LifecycleStale.Set(int64(len(stale)))
	if len(stale) > 0 {
		m.logger.Info("stale entities kept", "count", len(stale))
	}
	return report, nil
}

func (m *Manager) pruneRelationships(ctx context.Context, dryRun bool, report *Report) (int, error) {
	pruned := 0
	for _, r := range m.graph.StaleRelationships(m.maxStaleAge) {
		if err := ctx.Err(); err != nil {
			return pruned, fmt.Errorf("pruning relationships: %w", err)
		}
		m.logger.Info("pruning stale relationship",
			"id", r.ID, "type", r.Type, "source", r.SourceID, "target", r.TargetID, "last_seen", r.LastSeen)
		if !dryRun {
			if err := m.graph.DeleteRelationship(r.ID); err != nil {
				m.logger.Error("deleting stale relationship", "id", r.ID, "error", err)
				continue
			}
			metrics.Inc(metrics.LifecyclePruned)
		}
		report.PrunedIDs = append(report.PrunedIDs, r.ID)
		pruned++
	}
	return pruned, nil
}
