package builder

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
)

type stubParser map[string]*parser.FileRelations

func (s stubParser) ExtractRelations(path string, content []byte) (*parser.FileRelations, error) {
	rels, ok := s[path]
	if !ok {
		return nil, errors.New("unsupported")
	}
	return rels, nil
}

func sampleAnalysis() *analysis.CodebaseAnalysis {
	return &analysis.CodebaseAnalysis{
		Modules: []analysis.Module{
			{Name: "core", Files: []string{"src/a.ts", "src/b.ts"}, Dependencies: []string{"util", "missing"}},
			{Name: "util", Files: []string{"lib/u.ts"}},
		},
		Files: []analysis.AnalyzedFile{
			{
				FilePath: "src/a.ts",
				Language: "typescript",
				Symbols: []analysis.Symbol{
					{Name: "A", Kind: "class", LineStart: 1, LineEnd: 5},
					{Name: "run", Kind: "method", LineStart: 2, LineEnd: 4},
				},
				Imports: []analysis.Import{
					{Source: "./b", Name: "B"},
					{Source: "react", Name: "React", IsExternal: true},
					{Source: "./nowhere", Name: "X"},
				},
			},
			{
				FilePath: "src/b.ts",
				Language: "typescript",
				Symbols:  []analysis.Symbol{{Name: "B", Kind: "class", LineStart: 1, LineEnd: 3}},
				Imports:  []analysis.Import{{Source: "@/lib/u", Name: "u"}},
			},
			{
				FilePath: "lib/u.ts",
				Language: "typescript",
				Symbols:  []analysis.Symbol{{Name: "helper", Kind: "function", LineStart: 1, LineEnd: 1}},
			},
			{
				FilePath: "lib/x.ts",
				Language: "typescript",
				Symbols:  []analysis.Symbol{{Name: "helper", Kind: "const", LineStart: 1, LineEnd: 1}},
			},
		},
		TotalFiles:   4,
		TotalSymbols: 5,
	}
}

func sampleDir() fstest.MapFS {
	return fstest.MapFS{
		"src/a.ts": {Data: []byte("export class A extends B {\n  run() {\n    helper();\n  }\n}\n")},
		"src/b.ts": {Data: []byte("export class B implements Missing {\n}\n")},
		"lib/u.ts": {Data: []byte("export function helper() {}\n")},
	}
}

func sampleParser() stubParser {
	return stubParser{
		"src/a.ts": {
			Heritage: []parser.Heritage{{Symbol: "A", Target: "B", Kind: parser.HeritageExtends}},
			Calls:    []parser.CallRef{{From: "run", To: "helper"}},
		},
		"src/b.ts": {
			Heritage: []parser.Heritage{{Symbol: "B", Target: "Missing", Kind: parser.HeritageImplements}},
		},
	}
}

func TestBuildWithLiveDirectory(t *testing.T) {
	var warnings []events.Event
	rep := &events.Reporter{Log: func(ev events.Event) {
		if ev.Category == events.CategoryParse {
			warnings = append(warnings, ev)
		}
	}}

	g, err := Build(context.Background(), Input{
		Analysis:    sampleAnalysis(),
		WorkspaceID: "ws",
		RepoID:      "repo",
		Name:        "sample",
		Dir:         sampleDir(),
		Parser:      sampleParser(),
		Reporter:    rep,
	})
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	root := g.Root()
	require.NotNil(t, root)
	assert.Equal(t, graph.KindSystem, root.Kind)

	modules := g.NodesAtDepth(graph.DepthModule)
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Name)
		assert.Equal(t, graph.KindPackage, m.Kind)
	}
	assert.ElementsMatch(t, []string{"core", "util", OtherModule}, names)

	a, ok := g.FileNodeByPath("src/a.ts")
	require.True(t, ok)
	assert.Equal(t, graph.ModuleNodeID("core"), a.ParentID)
	assert.Equal(t, graph.KindModule, a.Kind)
	require.NotNil(t, a.SourceRef)
	assert.Equal(t, parser.HashContent(sampleDir()["src/a.ts"].Data), a.SourceRef.ContentHash)
	assert.Equal(t, 5, a.SourceRef.LineEnd)

	x, ok := g.FileNodeByPath("lib/x.ts")
	require.True(t, ok)
	assert.Equal(t, graph.ModuleNodeID(OtherModule), x.ParentID)
	assert.Empty(t, x.SourceRef.ContentHash)

	assert.Len(t, g.SyncLock, 3)
	assert.NotContains(t, g.SyncLock, graph.FileNodeID("lib/x.ts"))
	for id, entry := range g.SyncLock {
		assert.Equal(t, graph.StatusLocked, entry.Status, id)
	}

	for _, sym := range g.NodesAtDepth(graph.DepthSymbol) {
		require.NotNil(t, sym.SourceRef)
		assert.Empty(t, sym.SourceRef.ContentHash)
	}
	run, ok := g.Node(graph.SymbolNodeID("src/a.ts", "run", 2))
	require.True(t, ok)
	assert.Equal(t, graph.KindMethod, run.Kind)
	xHelper, ok := g.Node(graph.SymbolNodeID("lib/x.ts", "helper", 1))
	require.True(t, ok)
	assert.Equal(t, graph.KindVariable, xHelper.Kind)

	deps := relationSet(g, graph.RelDependsOn)
	assert.Equal(t, "B", deps[graph.FileNodeID("src/a.ts")+"->"+graph.FileNodeID("src/b.ts")])
	assert.Equal(t, "u", deps[graph.FileNodeID("src/b.ts")+"->"+graph.FileNodeID("lib/u.ts")])
	assert.Contains(t, deps, graph.ModuleNodeID("core")+"->"+graph.ModuleNodeID("util"))
	assert.Len(t, deps, 3)

	inherits := relationSet(g, graph.RelInherits)
	assert.Contains(t, inherits, graph.SymbolNodeID("src/a.ts", "A", 1)+"->"+graph.SymbolNodeID("src/b.ts", "B", 1))
	assert.Empty(t, relationSet(g, graph.RelImplements))

	calls := relationSet(g, graph.RelCalls)
	require.Len(t, calls, 1)
	assert.Contains(t, calls, graph.SymbolNodeID("src/a.ts", "run", 2)+"->"+graph.SymbolNodeID("lib/u.ts", "helper", 1))

	// lib/x.ts cannot be read and lib/u.ts has no relations.
	assert.NotEmpty(t, warnings)
}

func TestBuildWithoutDirectory(t *testing.T) {
	g, err := Build(context.Background(), Input{Analysis: sampleAnalysis(), Parser: sampleParser()})
	require.NoError(t, err)

	assert.Empty(t, g.SyncLock)
	for _, f := range g.NodesAtDepth(graph.DepthFile) {
		require.NotNil(t, f.SourceRef)
		assert.NotEmpty(t, f.SourceRef.FilePath)
		assert.Empty(t, f.SourceRef.ContentHash)
	}
	assert.Empty(t, relationSet(g, graph.RelInherits))
	assert.Empty(t, relationSet(g, graph.RelCalls))
	assert.NotEmpty(t, relationSet(g, graph.RelDependsOn))
}

func TestBuildDepthMonotonicity(t *testing.T) {
	g, err := Build(context.Background(), Input{Analysis: sampleAnalysis(), Dir: sampleDir(), Parser: sampleParser()})
	require.NoError(t, err)

	contains := g.RelationsOfType(graph.RelContains)
	require.NotEmpty(t, contains)
	for _, rel := range contains {
		parent, ok := g.Node(rel.SourceID)
		require.True(t, ok)
		child, ok := g.Node(rel.TargetID)
		require.True(t, ok)
		assert.Equal(t, parent.Depth+1, child.Depth, rel.ID)
		assert.Equal(t, parent.ID, child.ParentID)
	}
}

func TestBuildHonoursAliasPrefixes(t *testing.T) {
	a := sampleAnalysis()
	a.Files[1].Imports = []analysis.Import{{Source: "#lib/u", Name: "u"}}

	g, err := Build(context.Background(), Input{Analysis: a, Scan: &ScanConfig{AliasPrefixes: []string{"#"}}})
	require.NoError(t, err)
	deps := relationSet(g, graph.RelDependsOn)
	assert.Contains(t, deps, graph.FileNodeID("src/b.ts")+"->"+graph.FileNodeID("lib/u.ts"))
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := Build(ctx, Input{Analysis: sampleAnalysis(), Dir: sampleDir()})
	require.Error(t, err)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, llm.ErrCancelled)
	assert.True(t, llm.IsCancelled(err))
}

func relationSet(g *graph.CodeGraph, t graph.RelationType) map[string]string {
	out := make(map[string]string)
	for _, rel := range g.RelationsOfType(t) {
		out[rel.SourceID+"->"+rel.TargetID] = rel.Label
	}
	return out
}

func TestBuildModuleDependenciesUseConfiguredAliases(t *testing.T) {
	a := &analysis.CodebaseAnalysis{Files: []analysis.AnalyzedFile{
		{FilePath: "app/main.ts", Language: "typescript", Imports: []analysis.Import{{Source: "#/lib/u", Name: "u"}}},
		{FilePath: "lib/u.ts", Language: "typescript"},
	}}
	prefixes := []string{"#/"}
	regrouped := a.Regroup([]analysis.Module{
		{Name: "App", Files: []string{"app/main.ts"}},
		{Name: "Lib", Files: []string{"lib/u.ts"}},
	}, prefixes)
	require.Equal(t, []string{"Lib"}, regrouped.Modules[0].Dependencies)

	g, err := Build(context.Background(), Input{
		Analysis: regrouped,
		Scan:     &ScanConfig{AliasPrefixes: prefixes},
		Parser:   stubParser{},
	})
	require.NoError(t, err)

	deps := relationSet(g, graph.RelDependsOn)
	assert.Contains(t, deps, graph.FileNodeID("app/main.ts")+"->"+graph.FileNodeID("lib/u.ts"))
	assert.Contains(t, deps, graph.ModuleNodeID("App")+"->"+graph.ModuleNodeID("Lib"))
}
