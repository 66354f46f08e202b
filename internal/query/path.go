package query

import (
	"container/heap"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/store"
)

// ErrNoPath is returned when source and target are not connected. It is a
// NotFound: a disconnected graph is a normal state.
var ErrNoPath = errors.Mark(errors.New("no path"), models.ErrNotFound)

// minEdgeConfidence keeps zero-confidence edges traversable at a high cost.
const minEdgeConfidence = 1e-6

// PathStep is one entity on a path and the edge that led to it.
type PathStep struct {
	Entity *models.Entity       `json:"entity"`
	Via    *models.Relationship `json:"via,omitempty"`
	// Reversed is set when Via was walked from its target to its source.
	Reversed bool `json:"reversed,omitempty"`
}

// Path is a weighted route between two entities.
type Path struct {
	Steps []PathStep `json:"steps"`
	Cost  float64    `json:"cost"`
	Hops  int        `json:"hops"`
}

// PathOptions restricts which edges a path may use.
type PathOptions struct {
	// Types limits the walk to these relation types. Empty allows all.
	Types []models.RelationType
}

type pathItem struct {
	id    string
	cost  float64
	hops  int
	index int
}

type pathQueue []*pathItem

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	if pq[i].hops != pq[j].hops {
		return pq[i].hops < pq[j].hops
	}
	return pq[i].id < pq[j].id
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	item := x.(*pathItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

type pathVia struct {
	from     string
	edge     *models.Relationship
	reversed bool
}

// FindPath returns the cheapest route from sourceID to targetID. Edges are
// walked in either direction; each costs BaseCost/confidence, times
// ReverseCostFactor when walked against its direction. Equal costs prefer
// fewer hops.
func (q *Engine) FindPath(g *store.Graph, sourceID, targetID string, opts PathOptions) (*Path, error) {
	src, ok := g.Entity(sourceID)
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "entity %s", sourceID)
	}
	if _, ok := g.Entity(targetID); !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "entity %s", targetID)
	}
	if sourceID == targetID {
		return &Path{Steps: []PathStep{{Entity: src.Clone()}}}, nil
	}

	allowed := make(map[models.RelationType]bool, len(opts.Types))
	for _, t := range opts.Types {
		allowed[t] = true
	}

	dist := map[string]float64{sourceID: 0}
	hops := map[string]int{sourceID: 0}
	prev := map[string]pathVia{}
	done := map[string]bool{}

	pq := &pathQueue{}
	heap.Init(pq)
	heap.Push(pq, &pathItem{id: sourceID})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pathItem)
		if done[cur.id] {
			continue
		}
		done[cur.id] = true
		if cur.id == targetID {
			break
		}
		relax := func(r *models.Relationship, next string, reversed bool) {
			if done[next] || (len(allowed) > 0 && !allowed[r.Type]) {
				return
			}
			cost := cur.cost + q.edgeCost(r, reversed)
			h := cur.hops + 1
			best, seen := dist[next]
			if seen && (cost > best || (cost == best && h >= hops[next])) {
				return
			}
			dist[next] = cost
			hops[next] = h
			prev[next] = pathVia{from: cur.id, edge: r, reversed: reversed}
			heap.Push(pq, &pathItem{id: next, cost: cost, hops: h})
		}
		for _, r := range g.Outgoing(cur.id) {
			relax(r, r.TargetID, false)
		}
		for _, r := range g.Incoming(cur.id) {
			relax(r, r.SourceID, true)
		}
	}

	if !done[targetID] {
		return nil, errors.Wrapf(ErrNoPath, "%s to %s", sourceID, targetID)
	}

	var steps []PathStep
	for id := targetID; id != sourceID; {
		via := prev[id]
		e, _ := g.Entity(id)
		steps = append(steps, PathStep{Entity: e.Clone(), Via: via.edge.Clone(), Reversed: via.reversed})
		id = via.from
	}
	steps = append(steps, PathStep{Entity: src.Clone()})
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return &Path{Steps: steps, Cost: dist[targetID], Hops: hops[targetID]}, nil
}

func (q *Engine) edgeCost(r *models.Relationship, reversed bool) float64 {
	cost := q.cfg.BaseCost / math.Max(r.Confidence, minEdgeConfidence)
	if reversed {
		cost *= q.cfg.ReverseCostFactor
	}
	return cost
}
