package models

import (
	"math"
	"strings"
	"time"
)

// RelationType is a typed, directed edge label. REL(A,B) reads "A rel B":
// ON(keys, counter) means the keys are on the counter.
type RelationType string

// Spatial relations.
const (
	RelOn         RelationType = "on"
	RelIn         RelationType = "in"
	RelNear       RelationType = "near"
	RelNextTo     RelationType = "next_to"
	RelAbove      RelationType = "above"
	RelBelow      RelationType = "below"
	RelLeftOf     RelationType = "left_of"
	RelRightOf    RelationType = "right_of"
	RelInFrontOf  RelationType = "in_front_of"
	RelBehind     RelationType = "behind"
	RelAttachedTo RelationType = "attached_to"
)

// Functional relations.
const (
	RelPartOf   RelationType = "part_of"
	RelUsedWith RelationType = "used_with"
	RelOperates RelationType = "operates"
	RelProduces RelationType = "produces"
	RelConsumes RelationType = "consumes"
)

// Organizational relations.
const (
	RelOwnedBy    RelationType = "owned_by"
	RelAssignedTo RelationType = "assigned_to"
	RelStoredIn   RelationType = "stored_in"
)

// Family groups relation types.
type Family string

const (
	FamilySpatial        Family = "spatial"
	FamilyFunctional     Family = "functional"
	FamilyOrganizational Family = "organizational"
)

var relationFamilies = map[RelationType]Family{
	RelOn:         FamilySpatial,
	RelIn:         FamilySpatial,
	RelNear:       FamilySpatial,
	RelNextTo:     FamilySpatial,
	RelAbove:      FamilySpatial,
	RelBelow:      FamilySpatial,
	RelLeftOf:     FamilySpatial,
	RelRightOf:    FamilySpatial,
	RelInFrontOf:  FamilySpatial,
	RelBehind:     FamilySpatial,
	RelAttachedTo: FamilySpatial,

	RelPartOf:   FamilyFunctional,
	RelUsedWith: FamilyFunctional,
	RelOperates: FamilyFunctional,
	RelProduces: FamilyFunctional,
	RelConsumes: FamilyFunctional,

	RelOwnedBy:    FamilyOrganizational,
	RelAssignedTo: FamilyOrganizational,
	RelStoredIn:   FamilyOrganizational,
}

// ValidRelationTypes lists every storable relation type in declaration order.
var ValidRelationTypes = []RelationType{
	RelOn, RelIn, RelNear, RelNextTo, RelAbove, RelBelow, RelLeftOf, RelRightOf,
	RelInFrontOf, RelBehind, RelAttachedTo,
	RelPartOf, RelUsedWith, RelOperates, RelProduces, RelConsumes,
	RelOwnedBy, RelAssignedTo, RelStoredIn,
}

// IsValid returns true if the relation type is recognized.
func (rt RelationType) IsValid() bool {
	_, ok := relationFamilies[rt]
	return ok
}

// Family returns the family of rt, or "" for unknown types.
func (rt RelationType) Family() Family {
	return relationFamilies[rt]
}

// IsSpatial reports whether rt belongs to the spatial family.
func (rt RelationType) IsSpatial() bool {
	return relationFamilies[rt] == FamilySpatial
}

// IsExclusiveLocation reports whether an entity can hold only one such edge
// at a time: a thing rests on or in one place.
func (rt RelationType) IsExclusiveLocation() bool {
	return rt == RelOn || rt == RelIn
}

// IsContainment reports whether the target of rt contains its source.
func (rt RelationType) IsContainment() bool {
	return rt == RelOn || rt == RelIn
}

// IsProximity reports whether rt expresses plain nearness.
func (rt RelationType) IsProximity() bool {
	return rt == RelNear || rt == RelNextTo
}

// ParseRelationType parses a case-insensitive storable relation type.
func ParseRelationType(s string) (RelationType, error) {
	rt := RelationType(strings.ToLower(strings.TrimSpace(s)))
	if !rt.IsValid() {
		return "", Validationf("unknown relation type %q", s)
	}
	return rt, nil
}

// SpatialProperties carries optional geometric hints for spatial edges.
type SpatialProperties struct {
	DistanceMeters     *float64 `json:"distance_estimate,omitempty" yaml:"distance_estimate,omitempty"`
	OrientationDegrees *float64 `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	ElevationDelta     *float64 `json:"elevation_delta,omitempty" yaml:"elevation_delta,omitempty"`
}

// IsEmpty reports whether no property is set.
func (sp *SpatialProperties) IsEmpty() bool {
	return sp == nil || (sp.DistanceMeters == nil && sp.OrientationDegrees == nil && sp.ElevationDelta == nil)
}

// Clone returns a deep copy.
func (sp *SpatialProperties) Clone() *SpatialProperties {
	if sp == nil {
		return nil
	}
	return &SpatialProperties{
		DistanceMeters:     cloneFloat(sp.DistanceMeters),
		OrientationDegrees: cloneFloat(sp.OrientationDegrees),
		ElevationDelta:     cloneFloat(sp.ElevationDelta),
	}
}

func (sp *SpatialProperties) validate() error {
	if sp == nil {
		return nil
	}
	for _, f := range []*float64{sp.DistanceMeters, sp.OrientationDegrees, sp.ElevationDelta} {
		if f != nil && (math.IsNaN(*f) || math.IsInf(*f, 0)) {
			return Validationf("spatial properties contain non-finite values")
		}
	}
	if sp.DistanceMeters != nil && *sp.DistanceMeters < 0 {
		return Validationf("distance estimate must be >= 0")
	}
	return nil
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	ID               string             `json:"id" yaml:"id"`
	Type             RelationType       `json:"relation_type" yaml:"relation_type"`
	SourceID         string             `json:"source_id" yaml:"source_id"`
	TargetID         string             `json:"target_id" yaml:"target_id"`
	Confidence       float64            `json:"confidence" yaml:"confidence"`
	Spatial          *SpatialProperties `json:"spatial_properties,omitempty" yaml:"spatial_properties,omitempty"`
	ObservationCount int                `json:"observation_count" yaml:"observation_count"`
	Sources          []string           `json:"sources,omitempty" yaml:"sources,omitempty"`
	FirstSeen        time.Time          `json:"first_seen" yaml:"first_seen"`
	LastSeen         time.Time          `json:"last_seen" yaml:"last_seen"`
}

// Key returns the identity triple of the edge.
func (r *Relationship) Key() TripleKey {
	return TripleKey{SourceID: r.SourceID, TargetID: r.TargetID, Type: r.Type}
}

// Other returns the endpoint opposite to id.
func (r *Relationship) Other(id string) string {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

// Clone returns a deep copy.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	c := *r
	c.Spatial = r.Spatial.Clone()
	c.Sources = cloneStrings(r.Sources)
	return &c
}

// TripleKey identifies a relationship: at most one edge exists per triple.
type TripleKey struct {
	SourceID string
	TargetID string
	Type     RelationType
}

// RelationshipCandidate is one relationship as reported by an upstream
// extractor. Source and Target name candidate Refs from the same observation,
// or IDs of entities already in the graph.
type RelationshipCandidate struct {
	Type       RelationType       `json:"relation_type" yaml:"relation_type"`
	Source     string             `json:"source" yaml:"source"`
	Target     string             `json:"target" yaml:"target"`
	Confidence float64            `json:"confidence" yaml:"confidence"`
	Spatial    *SpatialProperties `json:"spatial_properties,omitempty" yaml:"spatial_properties,omitempty"`
}

// Validate checks the candidate's shape. Reference resolution happens later.
func (c *RelationshipCandidate) Validate() error {
	if !c.Type.IsValid() {
		return Validationf("relationship candidate %s->%s: unknown relation type %q", c.Source, c.Target, c.Type)
	}
	if strings.TrimSpace(c.Source) == "" || strings.TrimSpace(c.Target) == "" {
		return Validationf("relationship candidate %q: source and target are required", c.Type)
	}
	if c.Source == c.Target {
		return Validationf("relationship candidate %s->%s: self-loops are not allowed", c.Source, c.Target)
	}
	if err := validConfidence(c.Confidence); err != nil {
		return Validationf("relationship candidate %s->%s: %v", c.Source, c.Target, err)
	}
	return c.Spatial.validate()
}

// ResolvedRelationship is a candidate whose endpoints map to entity IDs.
type ResolvedRelationship struct {
	Type       RelationType
	SourceID   string
	TargetID   string
	Confidence float64
	Spatial    *SpatialProperties
}

// Key returns the identity triple.
func (r *ResolvedRelationship) Key() TripleKey {
	return TripleKey{SourceID: r.SourceID, TargetID: r.TargetID, Type: r.Type}
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
