// Package flows discovers runtime flows over a code graph, either by asking
// a model for narrative flows or by walking file dependency chains.
package flows

import (
	"path"
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// fallbackEntryPoints is how many low in-degree files stand in for entry
// points when no file qualifies.
const fallbackEntryPoints = 3

type SymbolSummary struct {
	Name string         `json:"name"`
	Kind graph.NodeKind `json:"kind"`
}

type FileSummary struct {
	ID      string          `json:"id"`
	Path    string          `json:"path"`
	Primary string          `json:"primary,omitempty"`
	Symbols []SymbolSummary `json:"symbols,omitempty"`
}

// Label is the display name of a file: its primary symbol, or the base name.
func (f FileSummary) Label() string {
	if f.Primary != "" {
		return f.Primary
	}
	return path.Base(f.Path)
}

type ModuleSummary struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Files       []FileSummary `json:"files"`
}

// Edge is a labeled file-to-file edge.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Summary is the file-level view of a graph that both generators work from.
type Summary struct {
	RootID      string          `json:"root_id"`
	Modules     []ModuleSummary `json:"modules"`
	Edges       []Edge          `json:"edges"`
	Calls       []Edge          `json:"calls"`
	EntryPoints []string        `json:"entry_points"`

	files  map[string]FileSummary
	module map[string]string
}

// FileCount is the number of summarized files.
func (s *Summary) FileCount() int {
	return len(s.files)
}

// File looks a summarized file up by node id.
func (s *Summary) File(id string) (FileSummary, bool) {
	f, ok := s.files[id]
	return f, ok
}

// ModuleOf returns the id of the module owning a file node.
func (s *Summary) ModuleOf(fileID string) string {
	return s.module[fileID]
}

// Summarize builds the file-level summary of g.
func Summarize(g *graph.CodeGraph) *Summary {
	s := &Summary{
		RootID: g.RootID,
		files:  make(map[string]FileSummary),
		module: make(map[string]string),
	}

	for _, m := range g.NodesAtDepth(graph.DepthModule) {
		ms := ModuleSummary{ID: m.ID, Name: m.Name, Description: m.Description}
		for _, f := range g.ChildrenOf(m.ID) {
			if f.Depth != graph.DepthFile {
				continue
			}
			fs := summarizeFile(g, f)
			ms.Files = append(ms.Files, fs)
			s.files[f.ID] = fs
			s.module[f.ID] = m.ID
		}
		s.Modules = append(s.Modules, ms)
	}

	seen := make(map[[2]string]bool)
	for _, r := range g.RelationsOfType(graph.RelDependsOn) {
		if _, ok := s.files[r.SourceID]; !ok {
			continue
		}
		if _, ok := s.files[r.TargetID]; !ok {
			continue
		}
		key := [2]string{r.SourceID, r.TargetID}
		if seen[key] {
			continue
		}
		seen[key] = true
		s.Edges = append(s.Edges, Edge{From: r.SourceID, To: r.TargetID, Label: r.Label})
	}

	seenCalls := make(map[[2]string]bool)
	for _, r := range g.RelationsOfType(graph.RelCalls) {
		from, okFrom := g.OwningFile(r.SourceID)
		to, okTo := g.OwningFile(r.TargetID)
		if !okFrom || !okTo || from.ID == to.ID {
			continue
		}
		key := [2]string{from.ID, to.ID}
		if seenCalls[key] {
			continue
		}
		seenCalls[key] = true
		label := r.Label
		if target, ok := g.Node(r.TargetID); ok && label == "" {
			label = target.Name
		}
		s.Calls = append(s.Calls, Edge{From: from.ID, To: to.ID, Label: label})
	}

	s.EntryPoints = s.entryPoints()
	return s
}

func summarizeFile(g *graph.CodeGraph, f *graph.Node) FileSummary {
	fs := FileSummary{ID: f.ID, Path: f.Name}
	if f.SourceRef != nil && f.SourceRef.FilePath != "" {
		fs.Path = f.SourceRef.FilePath
	}
	for _, sym := range g.ChildrenOf(f.ID) {
		fs.Symbols = append(fs.Symbols, SymbolSummary{Name: sym.Name, Kind: sym.Kind})
	}
	fs.Primary = primarySymbol(fs.Symbols)
	return fs
}

// primarySymbol prefers the first type or function over variables and fields.
func primarySymbol(symbols []SymbolSummary) string {
	for _, sym := range symbols {
		switch sym.Kind {
		case graph.KindClass, graph.KindInterface, graph.KindFunction:
			return sym.Name
		}
	}
	if len(symbols) > 0 {
		return symbols[0].Name
	}
	return ""
}

func (s *Summary) entryPoints() []string {
	incoming := make(map[string]int, len(s.files))
	for _, e := range s.Edges {
		incoming[e.To]++
	}

	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]string, 0)
	for _, id := range ids {
		if incoming[id] == 0 || analysis.IsEntryPoint(s.files[id].Path) {
			out = append(out, id)
		}
	}
	if len(out) > 0 {
		return out
	}

	sort.SliceStable(ids, func(i, j int) bool { return incoming[ids[i]] < incoming[ids[j]] })
	if len(ids) > fallbackEntryPoints {
		ids = ids[:fallbackEntryPoints]
	}
	return ids
}

// Restrict narrows the summary to one module: its files, the edges between
// them and the entry points among them.
func (s *Summary) Restrict(moduleID string) *Summary {
	out := &Summary{
		RootID: s.RootID,
		files:  make(map[string]FileSummary),
		module: make(map[string]string),
	}
	for _, m := range s.Modules {
		if m.ID != moduleID {
			continue
		}
		out.Modules = append(out.Modules, m)
		for _, f := range m.Files {
			out.files[f.ID] = f
			out.module[f.ID] = m.ID
		}
	}
	inside := func(e Edge) bool {
		_, a := out.files[e.From]
		_, b := out.files[e.To]
		return a && b
	}
	for _, e := range s.Edges {
		if inside(e) {
			out.Edges = append(out.Edges, e)
		}
	}
	for _, e := range s.Calls {
		if inside(e) {
			out.Calls = append(out.Calls, e)
		}
	}
	out.EntryPoints = out.entryPoints()
	return out
}

// EdgeLabel returns the label of the depends_on edge from -> to, if any.
func (s *Summary) EdgeLabel(from, to string) string {
	for _, e := range s.Edges {
		if e.From == from && e.To == to {
			return e.Label
		}
	}
	return ""
}
