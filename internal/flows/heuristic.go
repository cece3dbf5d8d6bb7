package flows

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

const (
	// DefaultMaxDepth bounds a traversal to this many files.
	DefaultMaxDepth = 8
	// MinChainLength is the shortest chain that becomes a flow.
	MinChainLength = 3
)

// Chain is a dependency path over file node ids. Labels[i] names the edge
// from Nodes[i] to Nodes[i+1].
type Chain struct {
	Nodes  []string
	Labels []string
}

// DiscoverChains walks depends_on edges depth first from every entry point
// and records each maximal path. Each traversal keeps its own visited set,
// so a file appears at most once per entry point. Chains shorter than
// MinChainLength are dropped.
func DiscoverChains(s *Summary, maxDepth int) []Chain {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	adj := make(map[string][]Edge)
	for _, e := range s.Edges {
		if e.From == e.To {
			continue
		}
		adj[e.From] = append(adj[e.From], e)
	}
	for from := range adj {
		sort.SliceStable(adj[from], func(i, j int) bool { return adj[from][i].To < adj[from][j].To })
	}

	out := make([]Chain, 0)
	for _, entry := range s.EntryPoints {
		visited := map[string]bool{entry: true}
		var walk func(nodes, labels []string)
		walk = func(nodes, labels []string) {
			extended := false
			if len(nodes) < maxDepth {
				for _, e := range adj[nodes[len(nodes)-1]] {
					if visited[e.To] {
						continue
					}
					visited[e.To] = true
					extended = true
					walk(appendCopy(nodes, e.To), appendCopy(labels, e.Label))
				}
			}
			if !extended && len(nodes) >= MinChainLength {
				out = append(out, Chain{Nodes: nodes, Labels: labels})
			}
		}
		walk([]string{entry}, nil)
	}
	return out
}

func appendCopy(in []string, v string) []string {
	out := make([]string, len(in), len(in)+1)
	copy(out, in)
	return append(out, v)
}

// Overlaps reports whether a and b share more than 70% of the shorter
// chain's nodes.
func Overlaps(a, b Chain) bool {
	shorter, longer := a, b
	if len(b.Nodes) < len(a.Nodes) {
		shorter, longer = b, a
	}
	if len(shorter.Nodes) == 0 {
		return false
	}
	in := make(map[string]bool, len(longer.Nodes))
	for _, n := range longer.Nodes {
		in[n] = true
	}
	shared := 0
	for _, n := range shorter.Nodes {
		if in[n] {
			shared++
		}
	}
	return shared*10 > len(shorter.Nodes)*7
}

// DedupeChains merges overlapping chains, keeping the longer of each pair.
// Among equal lengths the earlier chain wins.
func DedupeChains(chains []Chain) []Chain {
	sorted := make([]Chain, len(chains))
	copy(sorted, chains)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Nodes) > len(sorted[j].Nodes) })

	kept := make([]Chain, 0, len(sorted))
	for _, c := range sorted {
		merged := false
		for _, k := range kept {
			if Overlaps(c, k) {
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, c)
		}
	}
	return kept
}

// GenerateHeuristic turns the deduplicated dependency chains of s into flows.
func GenerateHeuristic(s *Summary, maxDepth int) []*graph.Flow {
	chains := DedupeChains(DiscoverChains(s, maxDepth))
	out := make([]*graph.Flow, 0, len(chains))
	for _, c := range chains {
		out = append(out, chainFlow(s, c))
	}
	return out
}

func chainFlow(s *Summary, c Chain) *graph.Flow {
	modules := make(map[string]bool)
	steps := make([]graph.FlowStep, 0, len(c.Nodes))
	participants := make([]Participant, 0, len(c.Nodes))
	names := make([]string, 0, len(c.Nodes))
	for i, id := range c.Nodes {
		modules[s.ModuleOf(id)] = true
		f, _ := s.File(id)
		label := f.Label()
		steps = append(steps, graph.FlowStep{NodeID: id, Label: label, Order: i + 1})
		participants = append(participants, Participant{Label: label})
		names = append(names, label)
	}

	scope := s.RootID
	if len(modules) == 1 {
		for m := range modules {
			if m != "" {
				scope = m
			}
		}
	}

	return &graph.Flow{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("%s to %s", names[0], names[len(names)-1]),
		Description: "Dependency chain: " + strings.Join(names, " -> "),
		ScopeNodeID: scope,
		Steps:       steps,
		Diagram:     SequenceDiagram(participants, c.Labels),
	}
}
