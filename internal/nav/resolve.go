package nav

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/search"
)

// Resolve maps a user reference to nodes: an exact id or file path, then a
// case-insensitive name, then the best search hits.
func Resolve(g *graph.CodeGraph, idx *search.Index, ref string, limit int) ([]*graph.Node, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty node reference")
	}
	if exact := exactMatches(g, ref); len(exact) > 0 {
		return exact, nil
	}

	if idx == nil {
		idx = search.Build(g)
	}
	hits := search.Search(idx, ref, limit)
	out := make([]*graph.Node, 0, len(hits))
	for _, hit := range hits {
		if n, ok := g.Node(hit.ID); ok {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("node %q not found", ref)
	}
	return out, nil
}

// ResolveOne picks a single node. Several exact name matches are an error;
// search hits resolve to the best-ranked one.
func ResolveOne(g *graph.CodeGraph, idx *search.Index, ref string) (*graph.Node, error) {
	exact := exactMatches(g, strings.TrimSpace(ref))
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		ids := make([]string, 0, len(exact))
		for _, n := range exact {
			ids = append(ids, n.ID)
		}
		return nil, fmt.Errorf("node %q is ambiguous: %s", ref, strings.Join(ids, ", "))
	}
	nodes, err := Resolve(g, idx, ref, 1)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

func exactMatches(g *graph.CodeGraph, ref string) []*graph.Node {
	if ref == "" {
		return nil
	}
	if n, ok := g.Node(ref); ok {
		return []*graph.Node{n}
	}
	if n, ok := g.FileNodeByPath(ref); ok {
		return []*graph.Node{n}
	}
	out := make([]*graph.Node, 0)
	for _, n := range g.Nodes {
		if n.Depth != graph.DepthSystem && strings.EqualFold(n.Name, ref) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
