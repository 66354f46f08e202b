package models

import "strings"

// inverseOf is the static inverse table consulted by relation queries. Edges
// are stored once, in the direction they were observed.
var inverseOf = map[RelationType]RelationType{
	RelAbove:     RelBelow,
	RelBelow:     RelAbove,
	RelLeftOf:    RelRightOf,
	RelRightOf:   RelLeftOf,
	RelInFrontOf: RelBehind,
	RelBehind:    RelInFrontOf,
	RelNear:      RelNear,
	RelNextTo:    RelNextTo,
	RelUsedWith:  RelUsedWith,
}

// queryOnly names read the stored relation from the target's side. They can
// be queried but never stored.
var queryOnly = map[string]RelationType{
	"contains":        RelIn,
	"supports":        RelOn,
	"stores":          RelStoredIn,
	"has_part":        RelPartOf,
	"owns":            RelOwnedBy,
	"operated_by":     RelOperates,
	"produced_by":     RelProduces,
	"consumed_by":     RelConsumes,
	"has_attached":    RelAttachedTo,
	"responsible_for": RelAssignedTo,
}

// InverseOf returns the stored relation type that expresses rt from the other
// endpoint, if one exists.
func InverseOf(rt RelationType) (RelationType, bool) {
	inv, ok := inverseOf[rt]
	return inv, ok
}

// IsSymmetric reports whether rt is its own inverse.
func (rt RelationType) IsSymmetric() bool {
	inv, ok := inverseOf[rt]
	return ok && inv == rt
}

// ParseQueryRelation accepts either a storable relation type or a query-only
// inverse name such as "contains". inverted is true when the stored edge runs
// from the filter's target to its source.
func ParseQueryRelation(s string) (rt RelationType, inverted bool, err error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if stored, ok := queryOnly[name]; ok {
		return stored, true, nil
	}
	rt, err = ParseRelationType(name)
	return rt, false, err
}

// QueryOnlyNames returns every query-only relation name.
func QueryOnlyNames() []string {
	names := make([]string, 0, len(queryOnly))
	for n := range queryOnly {
		names = append(names, n)
	}
	return names
}
