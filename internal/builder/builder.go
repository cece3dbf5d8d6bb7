// Package builder turns a codebase analysis into a CodeGraph.
package builder

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
)

// OtherModule collects files no analysis module claims.
const OtherModule = "Other"

// SourceParser extracts class hierarchy and call references from a file.
type SourceParser interface {
	ExtractRelations(path string, content []byte) (*parser.FileRelations, error)
}

type ScanConfig struct {
	AliasPrefixes []string
}

type Input struct {
	Analysis    *analysis.CodebaseAnalysis
	WorkspaceID string
	RepoID      string
	Name        string
	// Dir is the live directory. Nil for remote repositories: no hashing,
	// no sync lock and no hierarchy or call extraction.
	Dir      fs.FS
	Scan     *ScanConfig
	Parser   SourceParser
	Reporter *events.Reporter
}

type builder struct {
	in      Input
	draft   *graph.Draft
	rep     *events.Reporter
	now     time.Time
	prefix  []string
	known   map[string]bool
	symbols map[string][]symbolRef // file path -> symbols in declaration order
	byName  map[string]string      // symbol name -> first node id
}

type symbolRef struct {
	name string
	id   string
}

// Build runs the construction passes in order: root, modules, files,
// symbols, import dependencies, hierarchy and calls, module dependencies.
// Cancellation between files aborts with llm.ErrCancelled.
func Build(ctx context.Context, in Input) (*graph.CodeGraph, error) {
	if in.Analysis == nil {
		return nil, fmt.Errorf("analysis is required")
	}
	b := &builder{
		in:      in,
		draft:   graph.NewDraft(in.WorkspaceID, in.RepoID, in.Name),
		rep:     in.Reporter,
		now:     time.Now().UTC(),
		prefix:  analysis.DefaultAliasPrefixes,
		known:   make(map[string]bool, len(in.Analysis.Files)),
		symbols: make(map[string][]symbolRef, len(in.Analysis.Files)),
		byName:  make(map[string]string),
	}
	if in.Scan != nil && len(in.Scan.AliasPrefixes) > 0 {
		b.prefix = in.Scan.AliasPrefixes
	}

	passes := []func(context.Context) error{
		b.addRoot,
		b.addModules,
		b.addFiles,
		b.addSymbols,
		b.addImportDependencies,
		b.addHierarchyAndCalls,
		b.addModuleDependencies,
	}
	for _, pass := range passes {
		if err := llm.CheckContext(ctx); err != nil {
			return nil, err
		}
		if err := pass(ctx); err != nil {
			return nil, err
		}
	}
	return b.draft.Finish()
}

func (b *builder) addRoot(context.Context) error {
	a := b.in.Analysis
	name := b.in.Name
	if name == "" {
		name = "system"
	}
	desc := fmt.Sprintf("%d files, %d symbols across %d modules", a.TotalFiles, a.TotalSymbols, len(a.Modules))
	_, err := b.draft.AddRoot(name, desc)
	return err
}

func (b *builder) addModules(context.Context) error {
	for _, m := range b.in.Analysis.Modules {
		if _, ok := b.draft.Node(graph.ModuleNodeID(m.Name)); ok {
			b.rep.Warn(events.CategoryParse, "duplicate module skipped", m.Name)
			continue
		}
		tags := []string(nil)
		if m.Path != "" {
			tags = []string{"path:" + m.Path}
		}
		if _, err := b.draft.AddChild(graph.RootID, graph.Node{
			ID:          graph.ModuleNodeID(m.Name),
			Name:        m.Name,
			Description: m.Description,
			Kind:        graph.KindPackage,
			Tags:        tags,
		}); err != nil {
			return fmt.Errorf("failed to add module %s: %w", m.Name, err)
		}
	}
	return nil
}

func (b *builder) addFiles(ctx context.Context) error {
	owner := make(map[string]string)
	for _, m := range b.in.Analysis.Modules {
		for _, f := range m.Files {
			if _, claimed := owner[f]; !claimed {
				owner[f] = graph.ModuleNodeID(m.Name)
			}
		}
	}

	files := b.in.Analysis.Files
	for i, f := range files {
		if err := llm.CheckContext(ctx); err != nil {
			return err
		}
		b.rep.Step("graph:files", i+1, len(files))

		parentID, ok := owner[f.FilePath]
		if !ok {
			id, err := b.otherModule()
			if err != nil {
				return err
			}
			parentID = id
		}

		ref := &graph.SourceRef{FilePath: f.FilePath}
		if b.in.Dir != nil {
			content, err := fs.ReadFile(b.in.Dir, f.FilePath)
			if err != nil {
				b.rep.Warn(events.CategoryParse, "failed to read file", map[string]string{"file": f.FilePath, "error": err.Error()})
			} else {
				ref.ContentHash = parser.HashContent(content)
				ref.LineStart = 1
				ref.LineEnd = lineCount(content)
			}
		}

		node := graph.Node{
			ID:        graph.FileNodeID(f.FilePath),
			Name:      f.FilePath,
			Kind:      graph.KindModule,
			SourceRef: ref,
		}
		if f.Language != "" {
			node.Tags = []string{f.Language}
		}
		if _, err := b.draft.AddChild(parentID, node); err != nil {
			b.rep.Warn(events.CategoryParse, "file skipped", map[string]string{"file": f.FilePath, "error": err.Error()})
			continue
		}
		b.known[f.FilePath] = true

		if ref.ContentHash != "" {
			if err := b.draft.Lock(node.ID, *ref, b.now); err != nil {
				return fmt.Errorf("failed to lock %s: %w", f.FilePath, err)
			}
		}
	}
	return nil
}

func (b *builder) otherModule() (string, error) {
	id := graph.ModuleNodeID(OtherModule)
	if _, ok := b.draft.Node(id); ok {
		return id, nil
	}
	if _, err := b.draft.AddChild(graph.RootID, graph.Node{
		ID:          id,
		Name:        OtherModule,
		Description: "Files not assigned to any module",
		Kind:        graph.KindPackage,
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (b *builder) addSymbols(context.Context) error {
	for _, f := range b.in.Analysis.Files {
		if !b.known[f.FilePath] {
			continue
		}
		fileID := graph.FileNodeID(f.FilePath)
		for _, sym := range f.Symbols {
			id := graph.SymbolNodeID(f.FilePath, sym.Name, sym.LineStart)
			if _, exists := b.draft.Node(id); exists {
				continue
			}
			if _, err := b.draft.AddChild(fileID, graph.Node{
				ID:   id,
				Name: sym.Name,
				Kind: symbolKind(sym.Kind),
				SourceRef: &graph.SourceRef{
					FilePath:  f.FilePath,
					LineStart: sym.LineStart,
					LineEnd:   sym.LineEnd,
				},
			}); err != nil {
				return fmt.Errorf("failed to add symbol %s: %w", id, err)
			}
			b.symbols[f.FilePath] = append(b.symbols[f.FilePath], symbolRef{name: sym.Name, id: id})
			if _, taken := b.byName[sym.Name]; !taken {
				b.byName[sym.Name] = id
			}
		}
	}
	return nil
}

func (b *builder) addImportDependencies(context.Context) error {
	for _, f := range b.in.Analysis.Files {
		if !b.known[f.FilePath] {
			continue
		}
		for _, imp := range f.Imports {
			if imp.IsExternal {
				continue
			}
			target, ok := analysis.ResolveImport(f.FilePath, imp.Source, b.prefix, b.known)
			if !ok || target == f.FilePath {
				continue
			}
			if _, err := b.draft.AddRelation(graph.FileNodeID(f.FilePath), graph.FileNodeID(target), graph.RelDependsOn, imp.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) addHierarchyAndCalls(ctx context.Context) error {
	if b.in.Dir == nil || b.in.Parser == nil {
		return nil
	}
	files := b.in.Analysis.Files
	for i, f := range files {
		if err := llm.CheckContext(ctx); err != nil {
			return err
		}
		b.rep.Step("graph:relations", i+1, len(files))
		if !b.known[f.FilePath] {
			continue
		}

		content, err := fs.ReadFile(b.in.Dir, f.FilePath)
		if err != nil {
			b.rep.Warn(events.CategoryParse, "failed to read file", map[string]string{"file": f.FilePath, "error": err.Error()})
			continue
		}
		rels, err := b.in.Parser.ExtractRelations(f.FilePath, content)
		if err != nil {
			b.rep.Warn(events.CategoryParse, "failed to extract relations", map[string]string{"file": f.FilePath, "error": err.Error()})
			continue
		}
		if rels == nil {
			continue
		}

		for _, h := range rels.Heritage {
			relType := graph.RelInherits
			if h.Kind == parser.HeritageImplements {
				relType = graph.RelImplements
			}
			b.link(f.FilePath, h.Symbol, h.Target, relType)
		}
		for _, c := range rels.Calls {
			b.link(f.FilePath, c.From, c.To, graph.RelCalls)
		}
	}
	return nil
}

// link connects a symbol declared in file to the first symbol named target
// anywhere in the graph.
func (b *builder) link(file, from, target string, relType graph.RelationType) {
	sourceID := b.localSymbol(file, from)
	targetID, ok := b.byName[target]
	if sourceID == "" || !ok || sourceID == targetID {
		return
	}
	if _, err := b.draft.AddRelation(sourceID, targetID, relType, ""); err != nil {
		b.rep.Debug(events.CategoryParse, "relation skipped", err.Error())
	}
}

func (b *builder) localSymbol(file, name string) string {
	for _, s := range b.symbols[file] {
		if s.name == name {
			return s.id
		}
	}
	return ""
}

func (b *builder) addModuleDependencies(context.Context) error {
	for _, m := range b.in.Analysis.Modules {
		sourceID := graph.ModuleNodeID(m.Name)
		for _, dep := range m.Dependencies {
			targetID := graph.ModuleNodeID(dep)
			if dep == m.Name {
				continue
			}
			if _, ok := b.draft.Node(targetID); !ok {
				continue
			}
			if _, err := b.draft.AddRelation(sourceID, targetID, graph.RelDependsOn, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func symbolKind(kind string) graph.NodeKind {
	switch kind {
	case "class", "struct":
		return graph.KindClass
	case "interface":
		return graph.KindInterface
	case "method":
		return graph.KindMethod
	case "field":
		return graph.KindField
	case "const", "variable", "var", "module":
		return graph.KindVariable
	default:
		return graph.KindFunction
	}
}

func lineCount(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 1
	for i, c := range content {
		if c == '\n' && i < len(content)-1 {
			n++
		}
	}
	return n
}
