package query

import (
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/recall"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// Link is one step outward along a containment chain.
type Link struct {
	Entity  *models.Entity       `json:"entity"`
	Via     *models.Relationship `json:"via"`
	Decayed float64              `json:"decayed_confidence"`
}

// Placement answers "where is it" for one matching entity. Chain runs from
// the immediate container outward; it is empty when no location is known.
type Placement struct {
	Entity    *models.Entity `json:"entity"`
	NameScore float64        `json:"name_score"`
	Chain     []Link         `json:"chain,omitempty"`
	Score     recall.Ranked  `json:"score"`
}

// Location is the immediate container, or nil.
func (p *Placement) Location() *models.Entity {
	if len(p.Chain) == 0 {
		return nil
	}
	return p.Chain[0].Entity
}

// Locate finds entities named like name and, for each, follows the most
// confident ON/IN edge outward until the chain ends, loops or reaches
// MaxChainDepth. Results are ranked best first; limit <= 0 keeps all.
func (q *Engine) Locate(g *store.Graph, name string, limit int) []Placement {
	matches := g.Entities.FindByNameFuzzy(name, q.cfg.LocateNameFloor)
	if len(matches) == 0 {
		return nil
	}

	byID := make(map[string]*Placement, len(matches))
	items := make([]recall.Item, 0, len(matches))
	for _, m := range matches {
		p := &Placement{Entity: m.Entity, NameScore: m.Score, Chain: q.chain(g, m.Entity.ID)}
		byID[m.Entity.ID] = p

		item := recall.Item{
			ID:           m.Entity.ID,
			NameScore:    m.Score,
			LastSeen:     m.Entity.LastSeen,
			Observations: m.Entity.ObservationCount,
		}
		if len(p.Chain) > 0 {
			item.Confidence = p.Chain[0].Decayed
			item.LastSeen = p.Chain[0].Via.LastSeen
		}
		items = append(items, item)
	}

	ranked := q.ranker.Rank(items, q.now())
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Placement, 0, len(ranked))
	for _, r := range ranked {
		p := byID[r.ID]
		p.Score = r
		out = append(out, *p)
	}
	q.logger.Debug("locate", "name", name, "matches", len(matches), "returned", len(out))
	return out
}

func (q *Engine) chain(g *store.Graph, id string) []Link {
	var out []Link
	visited := map[string]bool{id: true}
	for cur := id; len(out) < q.cfg.MaxChainDepth; {
		var (
			best      *models.Relationship
			bestScore float64
		)
		for _, r := range g.Outgoing(cur) {
			if !r.Type.IsContainment() || visited[r.TargetID] {
				continue
			}
			d := q.decayed(r)
			if best == nil || d > bestScore || (d == bestScore && r.ID < best.ID) {
				best, bestScore = r, d
			}
		}
		if best == nil {
			break
		}
		target, ok := g.Entity(best.TargetID)
		if !ok {
			break
		}
		out = append(out, Link{Entity: target.Clone(), Via: best.Clone(), Decayed: bestScore})
		visited[best.TargetID] = true
		cur = best.TargetID
	}
	return out
}
