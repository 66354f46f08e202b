package query

import (
	"strings"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// RelationFilter selects relationships as read from SourceID's side.
// Relation may be a stored type ("in") or a query-only inverse name
// ("contains"). Empty fields match anything.
type RelationFilter struct {
	SourceID       string `json:"source_id,omitempty"`
	TargetID       string `json:"target_id,omitempty"`
	Relation       string `json:"relation,omitempty"`
	IncludeInverse bool   `json:"include_inverse,omitempty"`
}

// RelationMatch is a stored edge and how it answers the filter.
type RelationMatch struct {
	Relationship *models.Relationship `json:"relationship"`
	// Inverted is set when the stored edge runs from the filter's target to
	// its source.
	Inverted bool `json:"inverted"`
	// As names the relation as read in the filter's direction.
	As string `json:"as"`
}

// QueryRelationships looks up stored edges, expanding through the static
// inverse table. Inverse edges are never stored, so "what does the drawer
// contain" is answered from IN edges pointing at the drawer.
func (q *Engine) QueryRelationships(g *store.Graph, f RelationFilter) ([]RelationMatch, error) {
	var (
		rt       models.RelationType
		queryAs  bool
		err      error
		seen     = map[string]bool{}
		out      []RelationMatch
		appendTo = func(rs []*models.Relationship, inverted bool, as func(*models.Relationship) string) {
			for _, r := range rs {
				if seen[r.ID] {
					continue
				}
				seen[r.ID] = true
				out = append(out, RelationMatch{Relationship: r, Inverted: inverted, As: as(r)})
			}
		}
	)
	if f.Relation != "" {
		rt, queryAs, err = models.ParseQueryRelation(f.Relation)
		if err != nil {
			return nil, err
		}
	}
	swapped := store.Filter{SourceID: f.TargetID, TargetID: f.SourceID, Type: rt}

	if queryAs {
		name := strings.ToLower(strings.TrimSpace(f.Relation))
		appendTo(g.Relations.Query(swapped), true, func(*models.Relationship) string { return name })
		return out, nil
	}

	appendTo(g.Relations.Query(store.Filter{SourceID: f.SourceID, TargetID: f.TargetID, Type: rt}), false,
		func(r *models.Relationship) string { return string(r.Type) })

	if !f.IncludeInverse {
		return out, nil
	}
	if rt == "" {
		// every edge pointing back, read through its inverse where one exists
		appendTo(g.Relations.Query(swapped), true, inverseName)
		return out, nil
	}
	if inv, ok := models.InverseOf(rt); ok {
		swapped.Type = inv
		appendTo(g.Relations.Query(swapped), true, func(*models.Relationship) string { return string(rt) })
	}
	return out, nil
}

func inverseName(r *models.Relationship) string {
	if inv, ok := models.InverseOf(r.Type); ok {
		return string(inv)
	}
	return "~" + string(r.Type)
}
