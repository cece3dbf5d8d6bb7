// Package report renders a stored graph as Markdown for ARCHITECTURE.md.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// DefaultFile is the document the export command maintains.
const DefaultFile = "ARCHITECTURE.md"

// Render returns the managed block body for g.
func Render(g *graph.CodeGraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s architecture\n\n", g.Name)
	if root := g.Root(); root != nil && root.Description != "" {
		b.WriteString(root.Description)
		b.WriteString("\n\n")
	}

	modules := g.NodesAtDepth(graph.DepthModule)
	files := g.NodesAtDepth(graph.DepthFile)
	fmt.Fprintf(&b, "%d modules, %d files, %d flows.\n\n", len(modules), len(files), len(g.Flows))

	b.WriteString("## Modules\n\n")
	b.WriteString("| Module | Files | Description |\n|---|---|---|\n")
	for _, m := range modules {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", cell(m.Name), len(g.ChildrenOf(m.ID)), cell(m.Description))
	}

	if deps := moduleDependencies(g); len(deps) > 0 {
		b.WriteString("\n## Module dependencies\n\n```mermaid\nflowchart LR\n")
		index := make(map[string]int, len(modules))
		for i, m := range modules {
			index[m.ID] = i
			fmt.Fprintf(&b, "    M%d[%q]\n", i, m.Name)
		}
		for _, r := range deps {
			if r.Label != "" {
				fmt.Fprintf(&b, "    M%d -->|%s| M%d\n", index[r.SourceID], strings.ReplaceAll(r.Label, "|", "/"), index[r.TargetID])
			} else {
				fmt.Fprintf(&b, "    M%d --> M%d\n", index[r.SourceID], index[r.TargetID])
			}
		}
		b.WriteString("```\n")
	}

	flows := g.SortedFlows()
	if len(flows) > 0 {
		b.WriteString("\n## Flows\n")
	}
	for _, f := range flows {
		fmt.Fprintf(&b, "\n### %s\n\n", f.Name)
		if f.Description != "" {
			b.WriteString(f.Description)
			b.WriteString("\n\n")
		}
		if scope, ok := g.Node(f.ScopeNodeID); ok && f.ScopeNodeID != graph.RootID {
			fmt.Fprintf(&b, "Scope: %s\n\n", scope.Name)
		}
		for _, s := range f.Steps {
			name := s.NodeID
			if n, ok := g.Node(s.NodeID); ok {
				name = n.Name
			}
			fmt.Fprintf(&b, "%d. `%s`: %s\n", s.Order, name, s.Label)
		}
		if f.Diagram != "" {
			b.WriteString("\n```mermaid\n")
			b.WriteString(strings.TrimRight(f.Diagram, "\n"))
			b.WriteString("\n```\n")
		}
	}

	if drift := driftLines(g); len(drift) > 0 {
		b.WriteString("\n## Drift\n\n")
		for _, line := range drift {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func moduleDependencies(g *graph.CodeGraph) []*graph.Relation {
	out := make([]*graph.Relation, 0)
	for _, r := range g.RelationsOfType(graph.RelDependsOn) {
		src, okSrc := g.Node(r.SourceID)
		dst, okDst := g.Node(r.TargetID)
		if okSrc && okDst && src.Depth == graph.DepthModule && dst.Depth == graph.DepthModule {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func driftLines(g *graph.CodeGraph) []string {
	out := make([]string, 0)
	for _, id := range fileutil.MapKeysSorted(g.SyncLock) {
		e := g.SyncLock[id]
		if e.Status == graph.StatusLocked {
			continue
		}
		out = append(out, fmt.Sprintf("- `%s` %s", e.SourceRef.FilePath, e.Status))
	}
	return out
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
