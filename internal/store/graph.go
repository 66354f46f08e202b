package store

import (
	"github.com/cockroachdb/errors"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

// maxContainmentDepth bounds containment-chain walks.
const maxContainmentDepth = 32

// Graph pairs a registry with its relationship store. The pair is the unit
// the engine swaps on import.
type Graph struct {
	Entities  *Registry
	Relations *Relations
}

// NewGraph creates an empty registry and relationship store.
func NewGraph(ro RegistryOptions, so RelationsOptions) *Graph {
	return &Graph{
		Entities:  NewRegistry(ro),
		Relations: NewRelations(so),
	}
}

// EachEntity calls fn for every stored entity without copying.
func (g *Graph) EachEntity(fn func(e *models.Entity)) {
	g.Entities.Each(fn)
}

// Entity returns the stored entity without copying.
func (g *Graph) Entity(id string) (*models.Entity, bool) {
	return g.Entities.Peek(id)
}

// Outgoing returns the stored edges leaving id.
func (g *Graph) Outgoing(id string) []*models.Relationship {
	return g.Relations.Outgoing(id)
}

// Incoming returns the stored edges entering id.
func (g *Graph) Incoming(id string) []*models.Relationship {
	return g.Relations.Incoming(id)
}

// DeleteEntity removes an entity and every edge touching it, returning the
// number of edges removed.
func (g *Graph) DeleteEntity(tx *Tx, id string) (int, error) {
	if !g.Entities.Exists(id) {
		return 0, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	removed := g.Relations.DeleteForEntity(tx, id)
	if err := g.Entities.Delete(tx, id); err != nil {
		return removed, err
	}
	return removed, nil
}

// ContainedIn reports whether a sits on or in b, directly or through a chain
// of ON/IN edges.
func (g *Graph) ContainedIn(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	visited := map[string]bool{a: true}
	frontier := []string{a}
	for depth := 0; depth < maxContainmentDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, r := range g.Relations.Outgoing(id) {
				if !r.Type.IsContainment() || visited[r.TargetID] {
					continue
				}
				if r.TargetID == b {
					return true
				}
				visited[r.TargetID] = true
				next = append(next, r.TargetID)
			}
		}
		frontier = next
	}
	return false
}

// ContainmentLinked reports whether either entity contains the other. Keys
// in a bowl on the counter are also on the counter.
func (g *Graph) ContainmentLinked(a, b string) bool {
	return g.ContainedIn(a, b) || g.ContainedIn(b, a)
}

// Verify checks both stores and that every edge endpoint exists.
func (g *Graph) Verify() error {
	if err := g.Entities.Verify(); err != nil {
		return errors.Wrap(err, "registry")
	}
	if err := g.Relations.Verify(); err != nil {
		return errors.Wrap(err, "relations")
	}
	for _, r := range g.Relations.edges {
		if !g.Entities.Exists(r.SourceID) || !g.Entities.Exists(r.TargetID) {
			return errors.Newf("relationship %s has a dangling endpoint", r.ID)
		}
	}
	return nil
}
