package query

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// Role classifies a neighbor relative to the focal entity.
type Role string

const (
	RoleContainer Role = "container"
	RoleContents  Role = "contents"
	RoleNearby    Role = "nearby"
	RoleRelated   Role = "related"
)

// Neighbor is one entity reached from the focal entity.
type Neighbor struct {
	Entity *models.Entity `json:"entity"`
	// Via is the edge that first reached this entity.
	Via        *models.Relationship `json:"via"`
	Hops       int                  `json:"hops"`
	Confidence float64              `json:"confidence"`
	// Decayed is Confidence aged by the edge's last sighting.
	Decayed float64 `json:"decayed_confidence"`
}

// Context is the classified neighborhood of an entity.
type Context struct {
	Entity    *models.Entity `json:"entity"`
	Radius    int            `json:"radius"`
	Container []Neighbor     `json:"container"`
	Contents  []Neighbor     `json:"contents"`
	Nearby    []Neighbor     `json:"nearby"`
	Related   []Neighbor     `json:"related"`
}

type hop struct {
	edge     *models.Relationship
	next     string
	outgoing bool
}

// GetContext walks edges in both directions up to radius hops from
// entityID. A neighbor is a container when reached along ON/IN edges leaving
// the focal entity (transitively), contents when reached along ON/IN edges
// entering it, nearby when directly NEAR or NEXT_TO it, related otherwise.
func (q *Engine) GetContext(g *store.Graph, entityID string, radius int) (*Context, error) {
	focal, ok := g.Entity(entityID)
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "entity %s", entityID)
	}
	if radius < 0 {
		radius = 0
	}
	ctx := &Context{Entity: focal.Clone(), Radius: radius}

	roles := map[string]Role{entityID: ""}
	frontier := []string{entityID}
	for depth := 1; depth <= radius && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, h := range hopsFrom(g, id) {
				if _, seen := roles[h.next]; seen {
					continue
				}
				target, ok := g.Entity(h.next)
				if !ok {
					continue
				}
				role := classify(roles[id], depth, h)
				roles[h.next] = role
				next = append(next, h.next)

				n := Neighbor{
					Entity:     target.Clone(),
					Via:        h.edge.Clone(),
					Hops:       depth,
					Confidence: h.edge.Confidence,
					Decayed:    q.decayed(h.edge),
				}
				switch role {
				case RoleContainer:
					ctx.Container = append(ctx.Container, n)
				case RoleContents:
					ctx.Contents = append(ctx.Contents, n)
				case RoleNearby:
					ctx.Nearby = append(ctx.Nearby, n)
				default:
					ctx.Related = append(ctx.Related, n)
				}
			}
		}
		frontier = next
	}

	for _, list := range [][]Neighbor{ctx.Container, ctx.Contents, ctx.Nearby, ctx.Related} {
		sortNeighbors(list)
	}
	return ctx, nil
}

// classify derives a neighbor's role from its parent's role and the edge
// between them. Containment chains keep their role; anything else past the
// first hop is related.
func classify(parent Role, depth int, h hop) Role {
	containment := h.edge.Type.IsContainment()
	switch {
	case depth == 1 && containment && h.outgoing:
		return RoleContainer
	case depth == 1 && containment:
		return RoleContents
	case depth == 1 && h.edge.Type.IsProximity():
		return RoleNearby
	case parent == RoleContainer && containment && h.outgoing:
		return RoleContainer
	case parent == RoleContents && containment && !h.outgoing:
		return RoleContents
	}
	return RoleRelated
}

// hopsFrom lists every edge touching id, containment first, then proximity,
// then the rest, strongest first within each group.
func hopsFrom(g *store.Graph, id string) []hop {
	var hops []hop
	for _, r := range g.Outgoing(id) {
		hops = append(hops, hop{edge: r, next: r.TargetID, outgoing: true})
	}
	for _, r := range g.Incoming(id) {
		hops = append(hops, hop{edge: r, next: r.SourceID})
	}
	sort.SliceStable(hops, func(i, j int) bool {
		pi, pj := hopPriority(hops[i].edge), hopPriority(hops[j].edge)
		if pi != pj {
			return pi < pj
		}
		if hops[i].edge.Confidence != hops[j].edge.Confidence {
			return hops[i].edge.Confidence > hops[j].edge.Confidence
		}
		return hops[i].edge.ID < hops[j].edge.ID
	})
	return hops
}

func hopPriority(r *models.Relationship) int {
	switch {
	case r.Type.IsContainment():
		return 0
	case r.Type.IsProximity():
		return 1
	}
	return 2
}

func sortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Decayed != ns[j].Decayed {
			return ns[i].Decayed > ns[j].Decayed
		}
		if ns[i].Hops != ns[j].Hops {
			return ns[i].Hops < ns[j].Hops
		}
		return ns[i].Entity.ID < ns[j].Entity.ID
	})
}
