package nav

import (
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// Adjacency indexes the non-containment relations of a graph.
type Adjacency struct {
	g   *graph.CodeGraph
	out map[string][]*graph.Relation
	in  map[string][]*graph.Relation
}

// NewAdjacency keeps relations of the given types, or NavigableTypes when
// none are given. Edge lists are ordered by relation id.
func NewAdjacency(g *graph.CodeGraph, types ...graph.RelationType) *Adjacency {
	if len(types) == 0 {
		types = NavigableTypes
	}
	a := &Adjacency{g: g, out: make(map[string][]*graph.Relation), in: make(map[string][]*graph.Relation)}
	for _, t := range types {
		for _, r := range g.RelationsOfType(t) {
			a.out[r.SourceID] = append(a.out[r.SourceID], r)
			a.in[r.TargetID] = append(a.in[r.TargetID], r)
		}
	}
	for _, m := range []map[string][]*graph.Relation{a.out, a.in} {
		for id := range m {
			rels := m[id]
			sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
		}
	}
	return a
}

// Neighbors returns the nodes one hop from id, sorted by node id.
func (a *Adjacency) Neighbors(id string, dir Direction) []EdgeRecord {
	rels := a.out[id]
	if dir == Incoming {
		rels = a.in[id]
	}
	out := make([]EdgeRecord, 0, len(rels))
	for _, r := range rels {
		other := r.TargetID
		if dir == Incoming {
			other = r.SourceID
		}
		n, ok := a.g.Node(other)
		if !ok {
			continue
		}
		out = append(out, EdgeRecord{Node: RecordFromNode(n), Type: r.Type, Label: r.Label})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Node.ID < out[j].Node.ID
	})
	return out
}

// Trace follows outgoing relations breadth first up to depth hops. Each
// node is expanded once.
func (a *Adjacency) Trace(fromID string, depth int) []TraceHop {
	if depth < 1 {
		depth = 1
	}
	from, ok := a.g.Node(fromID)
	if !ok {
		return nil
	}
	hops := make([]TraceHop, 0)
	visited := map[string]bool{fromID: true}
	frontier := []*graph.Node{from}
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		next := make([]*graph.Node, 0)
		for _, n := range frontier {
			for _, r := range a.out[n.ID] {
				to, ok := a.g.Node(r.TargetID)
				if !ok {
					continue
				}
				hops = append(hops, TraceHop{Depth: level, From: RecordFromNode(n), To: RecordFromNode(to), Type: r.Type, Label: r.Label})
				if !visited[to.ID] {
					visited[to.ID] = true
					next = append(next, to)
				}
			}
		}
		frontier = next
	}
	return hops
}

// ShortestPath returns node ids from fromID to toID along outgoing
// relations, or nil when toID is unreachable.
func (a *Adjacency) ShortestPath(fromID, toID string) []string {
	if fromID == toID {
		return []string{fromID}
	}

	queue := []string{fromID}
	visited := map[string]bool{fromID: true}
	parent := map[string]string{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, r := range a.out[current] {
			nextID := r.TargetID
			if visited[nextID] {
				continue
			}
			visited[nextID] = true
			parent[nextID] = current
			if nextID == toID {
				return ReconstructPath(parent, fromID, toID)
			}
			queue = append(queue, nextID)
		}
	}

	return nil
}

func ReconstructPath(parent map[string]string, fromID, toID string) []string {
	out := []string{toID}
	for current := toID; current != fromID; {
		prev, ok := parent[current]
		if !ok {
			return nil
		}
		out = append(out, prev)
		current = prev
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
