package flows

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
)

type testModule struct {
	name  string
	files []string
}

type dep struct {
	from, to, label string
}

func buildGraph(t *testing.T, modules []testModule, deps []dep) *graph.CodeGraph {
	t.Helper()
	d := graph.NewDraft("ws", "repo", "demo")
	_, err := d.AddRoot("demo", "")
	require.NoError(t, err)
	for _, m := range modules {
		_, err := d.AddChild(graph.RootID, graph.Node{ID: graph.ModuleNodeID(m.name), Name: m.name, Kind: graph.KindPackage})
		require.NoError(t, err)
		for _, f := range m.files {
			_, err := d.AddChild(graph.ModuleNodeID(m.name), graph.Node{
				ID:        graph.FileNodeID(f),
				Name:      f,
				Kind:      graph.KindModule,
				SourceRef: &graph.SourceRef{FilePath: f},
			})
			require.NoError(t, err)
		}
	}
	for _, e := range deps {
		_, err := d.AddRelation(graph.FileNodeID(e.from), graph.FileNodeID(e.to), graph.RelDependsOn, e.label)
		require.NoError(t, err)
	}
	g, err := d.Finish()
	require.NoError(t, err)
	return g
}

func threeTierGraph(t *testing.T) *graph.CodeGraph {
	return buildGraph(t, []testModule{
		{name: "Web", files: []string{"src/web/main.ts"}},
		{name: "API", files: []string{"src/api/routes.ts"}},
		{name: "Data", files: []string{"src/data/db.ts"}},
	}, []dep{
		{"src/web/main.ts", "src/api/routes.ts", "routes"},
		{"src/api/routes.ts", "src/data/db.ts", "query"},
	})
}

func stepIDs(f *graph.Flow) []string {
	out := make([]string, 0, len(f.Steps))
	for _, s := range f.Steps {
		out = append(out, s.NodeID)
	}
	return out
}

func chainOf(prefix string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

func TestHeuristicMergesOverlappingChains(t *testing.T) {
	g := buildGraph(t, []testModule{
		{name: "Core", files: []string{"src/a.ts", "src/b.ts", "src/c.ts", "src/d.ts", "src/e.ts", "src/f.ts", "src/x.ts"}},
	}, []dep{
		{"src/a.ts", "src/b.ts", ""},
		{"src/b.ts", "src/c.ts", ""},
		{"src/c.ts", "src/d.ts", ""},
		{"src/d.ts", "src/e.ts", ""},
		{"src/e.ts", "src/f.ts", ""},
		{"src/x.ts", "src/b.ts", ""},
	})

	s := Summarize(g)
	assert.Equal(t, []string{"file:src/a.ts", "file:src/x.ts"}, s.EntryPoints)
	require.Len(t, DiscoverChains(s, 0), 2)

	flows := GenerateHeuristic(s, 0)
	require.Len(t, flows, 1)
	assert.Equal(t, []string{
		"file:src/a.ts", "file:src/b.ts", "file:src/c.ts",
		"file:src/d.ts", "file:src/e.ts", "file:src/f.ts",
	}, stepIDs(flows[0]))
	assert.Equal(t, "module:Core", flows[0].ScopeNodeID)
	for i, st := range flows[0].Steps {
		assert.Equal(t, i+1, st.Order)
	}
}

func TestOverlapBoundary(t *testing.T) {
	a := Chain{Nodes: chainOf("n", 10)}
	exactly70 := Chain{Nodes: append(chainOf("n", 7), chainOf("y", 3)...)}
	above70 := Chain{Nodes: append(chainOf("n", 5), chainOf("z", 2)...)}

	assert.False(t, Overlaps(a, exactly70))
	assert.Len(t, DedupeChains([]Chain{a, exactly70}), 2)

	assert.True(t, Overlaps(above70, a))
	kept := DedupeChains([]Chain{above70, a})
	require.Len(t, kept, 1)
	assert.Equal(t, a.Nodes, kept[0].Nodes)
}

func TestHeuristicScopeFollowsModules(t *testing.T) {
	flows := GenerateHeuristic(Summarize(threeTierGraph(t)), 0)
	require.Len(t, flows, 1)
	assert.Equal(t, graph.RootID, flows[0].ScopeNodeID)
	assert.Equal(t, "main.ts to db.ts", flows[0].Name)
	assert.Contains(t, flows[0].Diagram, "P1->>P2: routes")
	assert.Contains(t, flows[0].Diagram, "P2->>P3: query")
}

func TestHeuristicDropsShortChains(t *testing.T) {
	g := buildGraph(t, []testModule{{name: "Core", files: []string{"src/a.ts", "src/b.ts"}}},
		[]dep{{"src/a.ts", "src/b.ts", ""}})
	assert.Empty(t, GenerateHeuristic(Summarize(g), 0))
}

func TestHeuristicRespectsMaxDepth(t *testing.T) {
	paths := make([]string, 0, 12)
	deps := make([]dep, 0, 11)
	for i := 0; i < 12; i++ {
		paths = append(paths, fmt.Sprintf("src/f%02d.ts", i))
		if i > 0 {
			deps = append(deps, dep{paths[i-1], paths[i], ""})
		}
	}
	g := buildGraph(t, []testModule{{name: "Core", files: paths}}, deps)
	chains := DiscoverChains(Summarize(g), 0)
	require.Len(t, chains, 1)
	assert.Len(t, chains[0].Nodes, DefaultMaxDepth)
}

func TestSummarizeEntryPointFallbackAndCalls(t *testing.T) {
	paths := []string{"src/a.ts", "src/b.ts", "src/c.ts", "src/d.ts"}
	d := graph.NewDraft("ws", "repo", "demo")
	_, err := d.AddRoot("demo", "")
	require.NoError(t, err)
	_, err = d.AddChild(graph.RootID, graph.Node{ID: "module:Core", Name: "Core", Kind: graph.KindPackage})
	require.NoError(t, err)
	for _, p := range paths {
		_, err = d.AddChild("module:Core", graph.Node{ID: graph.FileNodeID(p), Name: p, Kind: graph.KindModule})
		require.NoError(t, err)
	}
	_, err = d.AddChild("file:src/a.ts", graph.Node{ID: graph.SymbolNodeID("src/a.ts", "counter", 1), Name: "counter", Kind: graph.KindVariable})
	require.NoError(t, err)
	_, err = d.AddChild("file:src/a.ts", graph.Node{ID: graph.SymbolNodeID("src/a.ts", "run", 3), Name: "run", Kind: graph.KindFunction})
	require.NoError(t, err)
	_, err = d.AddChild("file:src/b.ts", graph.Node{ID: graph.SymbolNodeID("src/b.ts", "save", 1), Name: "save", Kind: graph.KindFunction})
	require.NoError(t, err)
	for i := range paths {
		_, err = d.AddRelation(graph.FileNodeID(paths[i]), graph.FileNodeID(paths[(i+1)%len(paths)]), graph.RelDependsOn, "")
		require.NoError(t, err)
	}
	_, err = d.AddRelation(graph.SymbolNodeID("src/a.ts", "run", 3), graph.SymbolNodeID("src/b.ts", "save", 1), graph.RelCalls, "")
	require.NoError(t, err)
	g, err := d.Finish()
	require.NoError(t, err)

	s := Summarize(g)
	assert.Equal(t, []string{"file:src/a.ts", "file:src/b.ts", "file:src/c.ts"}, s.EntryPoints)
	assert.Equal(t, []Edge{{From: "file:src/a.ts", To: "file:src/b.ts", Label: "save"}}, s.Calls)

	f, ok := s.File("file:src/a.ts")
	require.True(t, ok)
	assert.Equal(t, "run", f.Primary)
	assert.Len(t, f.Symbols, 2)
}

func TestSequenceDiagramFallsBackToUses(t *testing.T) {
	out := SequenceDiagram([]Participant{{Label: "App"}, {Label: "api: client"}, {Label: "db"}}, []string{"fetch", ""})
	assert.True(t, strings.HasPrefix(out, "sequenceDiagram\n"))
	assert.Contains(t, out, "participant P2 as api  client")
	assert.Contains(t, out, "P1->>P2: fetch")
	assert.Contains(t, out, "P2->>P3: uses")

	_, ok := NormalizeDiagram("graph TD\nA-->B")
	assert.False(t, ok)
	got, ok := NormalizeDiagram("```mermaid\nsequenceDiagram\n  A->>B: hi\n```")
	assert.True(t, ok)
	assert.Equal(t, "sequenceDiagram\n  A->>B: hi\n", got)
}

const llmFlows = `{"flows": [
  {"name": "Serve request", "description": "A page asks the API", "scope": "root",
   "steps": [{"nodeId": "file:src/web/main.ts", "label": "sends the request"}, {"nodeId": "file:src/api/routes.ts", "label": "routes it"}, {"nodeId": "file:ghost.ts", "label": "?"}],
   "diagram": "` + "```mermaid\\nsequenceDiagram\\n  Web->>API: GET\\n```" + `"},
  {"name": "Persist", "scope": "root",
   "steps": [{"nodeId": "file:src/api/routes.ts"}, {"nodeId": "file:src/data/db.ts", "label": "writes"}]},
  {"name": "Broken", "scope": "module:Nope",
   "steps": [{"nodeId": "file:src/api/routes.ts"}, {"nodeId": "file:src/data/db.ts"}]}
]}`

func TestGenerateLLMKeepsValidFlows(t *testing.T) {
	g := threeTierGraph(t)
	var prompt string
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		assert.Equal(t, "flows", req.Purpose)
		prompt = req.Messages[0].Content
		return llmFlows, nil
	})

	res, err := (&Engine{Client: client}).Generate(context.Background(), g, Options{CustomRequest: "checkout path"})
	require.NoError(t, err)
	assert.Equal(t, SourceLLM, res.Source)
	require.Len(t, res.Flows, 2)
	assert.Contains(t, prompt, "file:src/api/routes.ts -> file:src/data/db.ts: query")
	assert.Contains(t, prompt, "Focus on this request: checkout path")

	serve := res.Flows[0]
	assert.Equal(t, []string{"file:src/web/main.ts", "file:src/api/routes.ts"}, stepIDs(serve))
	assert.Equal(t, "sequenceDiagram\n  Web->>API: GET\n", serve.Diagram)

	persist := res.Flows[1]
	assert.Equal(t, "routes.ts", persist.Steps[0].Label)
	assert.Contains(t, persist.Diagram, "P1->>P2: query")
	assert.NotEmpty(t, res.Warnings)

	for _, f := range res.Flows {
		assert.True(t, g.IsValidScope(f.ScopeNodeID))
	}
}

func TestGenerateRejectsMostlyInvalidResponse(t *testing.T) {
	g := threeTierGraph(t)
	calls := 0
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		calls++
		return `{"flows": [
		  {"name": "ok", "scope": "root", "steps": [{"nodeId": "file:src/web/main.ts"}, {"nodeId": "file:src/data/db.ts"}]},
		  {"name": "bad scope", "scope": "file:src/web/main.ts", "steps": [{"nodeId": "file:src/web/main.ts"}, {"nodeId": "file:src/data/db.ts"}]},
		  {"name": "one step", "scope": "root", "steps": [{"nodeId": "file:src/web/main.ts"}]}
		]}`, nil
	})

	res, err := (&Engine{Client: client}).Generate(context.Background(), g, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, SourceHeuristic, res.Source)
	require.Len(t, res.Flows, 1)
	assert.Contains(t, res.Warnings, "flow generation failed; heuristic flows used")
}

func TestGenerateEmptyGraph(t *testing.T) {
	g := buildGraph(t, nil, nil)
	res, err := (&Engine{}).Generate(context.Background(), g, Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceNone, res.Source)
	assert.Empty(t, res.Flows)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	res, err := (&Engine{Client: client}).Generate(ctx, threeTierGraph(t), Options{})
	assert.Nil(t, res)
	assert.True(t, llm.IsCancelled(err))
}

func TestGenerateScopeMode(t *testing.T) {
	g := buildGraph(t, []testModule{
		{name: "Web", files: []string{"src/web/main.ts", "src/web/page.ts", "src/web/view.ts"}},
		{name: "Data", files: []string{"src/data/db.ts"}},
	}, []dep{
		{"src/web/main.ts", "src/web/page.ts", ""},
		{"src/web/page.ts", "src/web/view.ts", ""},
		{"src/web/view.ts", "src/data/db.ts", ""},
	})

	res, err := (&Engine{}).Generate(context.Background(), g, Options{Mode: MergeScope, ScopeID: "module:Web"})
	require.NoError(t, err)
	require.Len(t, res.Flows, 1)
	assert.Equal(t, "module:Web", res.Flows[0].ScopeNodeID)
	assert.Len(t, res.Flows[0].Steps, 3)

	_, err = (&Engine{}).Generate(context.Background(), g, Options{Mode: MergeScope, ScopeID: graph.RootID})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestMergeModes(t *testing.T) {
	g := threeTierGraph(t)
	webFlow := &graph.Flow{ID: "w", Name: "web", ScopeNodeID: "module:Web",
		Steps: []graph.FlowStep{{NodeID: "file:src/web/main.ts", Order: 1}}}
	rootFlow := &graph.Flow{ID: "r", Name: "root", ScopeNodeID: graph.RootID,
		Steps: []graph.FlowStep{{NodeID: "file:src/web/main.ts", Order: 1}, {NodeID: "file:src/data/db.ts", Order: 2}}}
	g = g.WithFlows([]*graph.Flow{webFlow, rootFlow})

	fresh := &graph.Flow{ID: "n", Name: "new web", ScopeNodeID: "module:Web",
		Steps: []graph.FlowStep{{NodeID: "file:src/web/main.ts", Order: 1}}}
	res := &Result{Flows: []*graph.Flow{fresh}, Source: SourceHeuristic}

	replaced, err := Merge(g, res, MergeReplace, "")
	require.NoError(t, err)
	assert.Len(t, replaced.Flows, 1)

	added, err := Merge(g, res, MergeAdditive, "")
	require.NoError(t, err)
	assert.Len(t, added.Flows, 3)

	scoped, err := Merge(g, res, MergeScope, "module:Web")
	require.NoError(t, err)
	require.Len(t, scoped.Flows, 2)
	assert.Contains(t, scoped.Flows, "r")
	assert.Contains(t, scoped.Flows, "n")
	assert.Len(t, g.Flows, 2)

	_, err = Merge(g, res, MergeScope, "file:src/web/main.ts")
	assert.ErrorIs(t, err, ErrInvalidScope)
	_, err = Merge(g, res, MergeMode("sideways"), "")
	assert.ErrorIs(t, err, ErrUnknownMergeMode)
}

func TestFileQuotasTruncateLargeGraphs(t *testing.T) {
	big := make([]string, 0, 195)
	for i := 0; i < 195; i++ {
		big = append(big, fmt.Sprintf("src/big/f%03d.ts", i))
	}
	g := buildGraph(t, []testModule{
		{name: "Big", files: big},
		{name: "Small", files: []string{"src/s/a.ts", "src/s/b.ts", "src/s/c.ts"}},
		{name: "Tiny", files: []string{"src/t/a.ts", "src/t/b.ts"}},
	}, nil)

	s := Summarize(g)
	q := fileQuotas(s, DefaultMaxPromptFiles)
	assert.Equal(t, 146, q["module:Big"])
	assert.Equal(t, 3, q["module:Small"])
	assert.Equal(t, 2, q["module:Tiny"])

	prompt := flowPrompt(s, DefaultMaxPromptFiles, "")
	assert.Contains(t, prompt, "(49 more files omitted)")
}

func TestParseMergeMode(t *testing.T) {
	m, err := ParseMergeMode(" Scope ")
	require.NoError(t, err)
	assert.Equal(t, MergeScope, m)
	m, err = ParseMergeMode("")
	require.NoError(t, err)
	assert.Equal(t, MergeReplace, m)
	_, err = ParseMergeMode("merge")
	assert.ErrorIs(t, err, ErrUnknownMergeMode)
}
