package models

import (
	"strings"
	"time"
)

// SnapshotVersion is the current snapshot layout version.
const SnapshotVersion = 1

// Snapshot is the full exported state of one graph.
type Snapshot struct {
	Version       int                      `json:"version" yaml:"version"`
	Graph         string                   `json:"graph" yaml:"graph"`
	ExportedAt    time.Time                `json:"exported_at" yaml:"exported_at"`
	Entities      map[string]*Entity       `json:"entities" yaml:"entities"`
	Relationships map[string]*Relationship `json:"relationships" yaml:"relationships"`
	Reviews       []Review                 `json:"reviews,omitempty" yaml:"reviews,omitempty"`
}

// Review flags an entity whose resolution was ambiguous so it can be
// reconciled later instead of being silently merged.
type Review struct {
	EntityID      string    `json:"entity_id" yaml:"entity_id"`
	CandidateID   string    `json:"candidate_id" yaml:"candidate_id"`
	Score         float64   `json:"score" yaml:"score"`
	ObservationID string    `json:"observation_id" yaml:"observation_id"`
	FlaggedAt     time.Time `json:"flagged_at" yaml:"flagged_at"`
}

// ImportMode selects how ImportSnapshot treats existing state.
type ImportMode string

const (
	ImportReplace ImportMode = "replace"
	ImportMerge   ImportMode = "merge"
)

// ParseImportMode parses "replace" or "merge".
func ParseImportMode(s string) (ImportMode, error) {
	m := ImportMode(strings.ToLower(strings.TrimSpace(s)))
	if m != ImportReplace && m != ImportMerge {
		return "", Validationf("unknown import mode %q (use replace or merge)", s)
	}
	return m, nil
}

// ImportReport summarizes an import.
type ImportReport struct {
	Mode                 ImportMode `json:"mode"`
	EntitiesCreated      int        `json:"entities_created"`
	EntitiesMerged       int        `json:"entities_merged"`
	RelationshipsCreated int        `json:"relationships_created"`
	RelationshipsMerged  int        `json:"relationships_merged"`
	Reviews              int        `json:"reviews"`
}

// Validate checks every record of the snapshot without touching any graph.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return Validationf("snapshot version %d is not supported", s.Version)
	}
	for key, e := range s.Entities {
		if e == nil {
			return Validationf("snapshot entity %q is empty", key)
		}
		if e.ID != key {
			return Validationf("snapshot entity key %q does not match id %q", key, e.ID)
		}
		if strings.TrimSpace(e.Name) == "" {
			return Validationf("snapshot entity %q has no name", key)
		}
		if !e.Type.IsValid() {
			return Validationf("snapshot entity %q has unknown type %q", key, e.Type)
		}
		if err := validConfidence(e.Confidence); err != nil {
			return Validationf("snapshot entity %q: %v", key, err)
		}
	}
	seen := make(map[TripleKey]string, len(s.Relationships))
	for key, r := range s.Relationships {
		if r == nil {
			return Validationf("snapshot relationship %q is empty", key)
		}
		if r.ID != key {
			return Validationf("snapshot relationship key %q does not match id %q", key, r.ID)
		}
		if !r.Type.IsValid() {
			return Validationf("snapshot relationship %q has unknown type %q", key, r.Type)
		}
		if r.SourceID == r.TargetID {
			return Validationf("snapshot relationship %q is a self-loop", key)
		}
		if _, ok := s.Entities[r.SourceID]; !ok {
			return Validationf("snapshot relationship %q references missing source %q", key, r.SourceID)
		}
		if _, ok := s.Entities[r.TargetID]; !ok {
			return Validationf("snapshot relationship %q references missing target %q", key, r.TargetID)
		}
		if err := validConfidence(r.Confidence); err != nil {
			return Validationf("snapshot relationship %q: %v", key, err)
		}
		if err := r.Spatial.validate(); err != nil {
			return Validationf("snapshot relationship %q: %v", key, err)
		}
		if other, dup := seen[r.Key()]; dup {
			return Validationf("snapshot relationships %q and %q share a triple", other, key)
		}
		seen[r.Key()] = key
	}
	for _, rv := range s.Reviews {
		if _, ok := s.Entities[rv.EntityID]; !ok {
			return Validationf("snapshot review references missing entity %q", rv.EntityID)
		}
	}
	return nil
}

// GraphStats holds the maintained counters of a graph.
type GraphStats struct {
	Graph                    string               `json:"graph"`
	EntityCount              int                  `json:"entity_count"`
	RelationshipCount        int                  `json:"relationship_count"`
	SpatialRelationshipCount int                  `json:"spatial_relationship_count"`
	EntitiesByType           map[EntityType]int   `json:"entities_by_type"`
	RelationshipsByFamily    map[Family]int       `json:"relationships_by_family"`
	RelationshipsByType      map[RelationType]int `json:"relationships_by_type"`
	PendingReviews           int                  `json:"pending_reviews"`
}
