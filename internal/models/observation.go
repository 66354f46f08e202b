package models

import (
	"strconv"
	"strings"
	"time"
)

// Provenance records which device produced an observation and when.
type Provenance struct {
	DeviceID   string    `json:"device_id" yaml:"device_id"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	SourceNote string    `json:"source_note,omitempty" yaml:"source_note,omitempty"`
}

// Validate checks that the provenance identifies a device and a time.
func (p *Provenance) Validate() error {
	if strings.TrimSpace(p.DeviceID) == "" {
		return Validationf("provenance: device_id is required")
	}
	if p.Timestamp.IsZero() {
		return Validationf("provenance: timestamp is required")
	}
	return nil
}

// Observation is one atomic submission of candidates from a single capture.
type Observation struct {
	ID            string                  `json:"id,omitempty" yaml:"id,omitempty"`
	Entities      []EntityCandidate       `json:"entities" yaml:"entities"`
	Relationships []RelationshipCandidate `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Provenance    Provenance              `json:"provenance" yaml:"provenance"`
}

// CandidateRef returns the observation-local handle of the i-th entity.
func (o *Observation) CandidateRef(i int) string {
	if ref := o.Entities[i].Ref; ref != "" {
		return ref
	}
	return strconv.Itoa(i)
}

// IngestState is a step of the per-observation state machine.
type IngestState string

const (
	StateReceived              IngestState = "RECEIVED"
	StateEntitiesResolved      IngestState = "ENTITIES_RESOLVED"
	StateRelationshipsResolved IngestState = "RELATIONSHIPS_RESOLVED"
	StateCommitted             IngestState = "COMMITTED"
	StateFailed                IngestState = "FAILED"
)

// IsTerminal reports whether no further transition is possible.
func (s IngestState) IsTerminal() bool {
	return s == StateCommitted || s == StateFailed
}

// FailureKind classifies a per-candidate failure.
type FailureKind string

const (
	FailureValidation    FailureKind = "validation_error"
	FailureUnresolvedRef FailureKind = "unresolved_reference"
	FailureSelfLoop      FailureKind = "self_loop"
	FailureCapacity      FailureKind = "capacity_exceeded"
	FailureInconsistency FailureKind = "internal_inconsistency"
)

// Failure describes one candidate that could not be applied.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Ref    string      `json:"ref"`
	Reason string      `json:"reason"`
}

// Conflict records a contradiction between an incoming exclusive-location
// claim and an existing edge. Conflicts are resolved, never fatal.
type Conflict struct {
	SubjectID          string       `json:"subject_id"`
	Type               RelationType `json:"relation_type"`
	ExistingTargetID   string       `json:"existing_target_id"`
	IncomingTargetID   string       `json:"incoming_target_id"`
	PenalizedID        string       `json:"penalized_relationship_id"`
	ConfidenceBefore   float64      `json:"confidence_before"`
	ConfidenceAfter    float64      `json:"confidence_after"`
	IncomingSupersedes bool         `json:"incoming_supersedes"`
}

// DecisionKind tags the outcome of entity resolution.
type DecisionKind string

const (
	DecisionMerge     DecisionKind = "merge"
	DecisionCreate    DecisionKind = "create"
	DecisionAmbiguous DecisionKind = "ambiguous"
)

// Resolution records how one entity candidate was resolved.
type Resolution struct {
	Ref         string       `json:"ref"`
	Decision    DecisionKind `json:"decision"`
	EntityID    string       `json:"entity_id"`
	CandidateID string       `json:"candidate_id,omitempty"`
	Score       float64      `json:"score"`
	Vetoed      bool         `json:"vetoed,omitempty"`
}

// Manifest describes exactly what one observation did to the graph.
type Manifest struct {
	ObservationID        string       `json:"observation_id"`
	State                IngestState  `json:"state"`
	EntitiesCreated      []string     `json:"entities_created"`
	EntitiesMerged       []string     `json:"entities_merged"`
	EntitiesAmbiguous    []string     `json:"entities_ambiguous"`
	RelationshipsCreated []string     `json:"relationships_created"`
	RelationshipsMerged  []string     `json:"relationships_merged"`
	RelationshipsDropped []Failure    `json:"relationships_dropped"`
	Conflicts            []Conflict   `json:"conflicts"`
	Failures             []Failure    `json:"failures"`
	Resolutions          []Resolution `json:"resolutions"`
	DeviceID             string       `json:"device_id"`
	Timestamp            time.Time    `json:"timestamp"`
}

// IngestResult is returned by every observation submission, including failed ones.
type IngestResult struct {
	Manifest Manifest `json:"manifest"`
	// Refs maps each candidate ref to the entity ID it resolved to.
	Refs map[string]string `json:"refs"`
}
