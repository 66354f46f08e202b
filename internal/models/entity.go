package models

import (
	"math"
	"strings"
	"time"
)

// EntityType classifies the kind of physical entity.
type EntityType string

const (
	EntityTypeObject    EntityType = "object"
	EntityTypeSurface   EntityType = "surface"
	EntityTypeContainer EntityType = "container"
	EntityTypeSpace     EntityType = "space"
	EntityTypeEquipment EntityType = "equipment"
	EntityTypeLandmark  EntityType = "landmark"
	EntityTypeUnknown   EntityType = "unknown"
)

// ValidEntityTypes is the set of all valid entity types.
var ValidEntityTypes = []EntityType{
	EntityTypeObject,
	EntityTypeSurface,
	EntityTypeContainer,
	EntityTypeSpace,
	EntityTypeEquipment,
	EntityTypeLandmark,
	EntityTypeUnknown,
}

// IsValid returns true if the entity type is recognized.
func (et EntityType) IsValid() bool {
	for i := range ValidEntityTypes {
		if et == ValidEntityTypes[i] {
			return true
		}
	}
	return false
}

// CompatibleWith reports whether two types may describe the same entity.
// UNKNOWN is compatible with everything.
func (et EntityType) CompatibleWith(other EntityType) bool {
	return et == other || et == EntityTypeUnknown || other == EntityTypeUnknown
}

// ParseEntityType parses a case-insensitive entity type name.
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !et.IsValid() {
		return "", Validationf("unknown entity type %q", s)
	}
	return et, nil
}

// Entity is a node in the world model: a physical object, surface, space or
// piece of equipment.
type Entity struct {
	ID               string            `json:"id" yaml:"id"`
	Type             EntityType        `json:"entity_type" yaml:"entity_type"`
	Name             string            `json:"name" yaml:"name"`
	Aliases          []string          `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Tags             []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Description      string            `json:"description,omitempty" yaml:"description,omitempty"`
	VisualSignature  []float32         `json:"visual_signature,omitempty" yaml:"visual_signature,omitempty"`
	Confidence       float64           `json:"confidence" yaml:"confidence"`
	ObservationCount int               `json:"observation_count" yaml:"observation_count"`
	FirstSeen        time.Time         `json:"first_seen" yaml:"first_seen"`
	LastSeen         time.Time         `json:"last_seen" yaml:"last_seen"`
	Sources          []string          `json:"sources,omitempty" yaml:"sources,omitempty"`
	Properties       map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	CreatedAt        time.Time         `json:"created_at" yaml:"created_at"`
}

// Names returns the primary name followed by every alias.
func (e *Entity) Names() []string {
	names := make([]string, 0, 1+len(e.Aliases))
	names = append(names, e.Name)
	return append(names, e.Aliases...)
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Aliases = cloneStrings(e.Aliases)
	c.Tags = cloneStrings(e.Tags)
	c.Sources = cloneStrings(e.Sources)
	if e.VisualSignature != nil {
		c.VisualSignature = make([]float32, len(e.VisualSignature))
		copy(c.VisualSignature, e.VisualSignature)
	}
	if e.Properties != nil {
		c.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// EntityCandidate is one entity as reported by an upstream extractor. Every
// optional field is explicit; nothing else is accepted at the boundary.
type EntityCandidate struct {
	// Ref is the observation-local handle relationships use to point at this
	// candidate. Defaults to the candidate's index when empty.
	Ref             string            `json:"ref,omitempty" yaml:"ref,omitempty"`
	Type            EntityType        `json:"entity_type" yaml:"entity_type"`
	Name            string            `json:"name" yaml:"name"`
	Aliases         []string          `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Tags            []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty"`
	VisualSignature []float32         `json:"visual_signature,omitempty" yaml:"visual_signature,omitempty"`
	Confidence      float64           `json:"confidence" yaml:"confidence"`
	Properties      map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Names returns the reported name followed by every alias.
func (c *EntityCandidate) Names() []string {
	names := make([]string, 0, 1+len(c.Aliases))
	names = append(names, c.Name)
	return append(names, c.Aliases...)
}

// Validate checks required fields and ranges. visualDim of 0 accepts any
// signature length.
func (c *EntityCandidate) Validate(visualDim int) error {
	if strings.TrimSpace(c.Name) == "" {
		return Validationf("entity candidate %q: name is required", c.Ref)
	}
	if !c.Type.IsValid() {
		return Validationf("entity candidate %q: unknown entity type %q", c.Ref, c.Type)
	}
	if err := validConfidence(c.Confidence); err != nil {
		return Validationf("entity candidate %q: %v", c.Ref, err)
	}
	if len(c.VisualSignature) > 0 {
		if visualDim > 0 && len(c.VisualSignature) != visualDim {
			return Validationf("entity candidate %q: visual signature has %d dimensions, want %d",
				c.Ref, len(c.VisualSignature), visualDim)
		}
		for _, v := range c.VisualSignature {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return Validationf("entity candidate %q: visual signature contains non-finite values", c.Ref)
			}
		}
	}
	return nil
}

func validConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return Validationf("confidence %v outside [0,1]", c)
	}
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
