package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
)

func files(paths ...string) []analysis.AnalyzedFile {
	out := make([]analysis.AnalyzedFile, 0, len(paths))
	for _, p := range paths {
		out = append(out, analysis.AnalyzedFile{FilePath: p, Language: "typescript"})
	}
	return out
}

func moduleOf(modules []Module, file string) string {
	for _, m := range modules {
		for _, f := range m.Files {
			if f == file {
				return m.Name
			}
		}
	}
	return ""
}

func assertCoverage(t *testing.T, input []string, modules []Module) {
	t.Helper()
	seen := make(map[string]int)
	for _, m := range modules {
		for _, f := range m.Files {
			seen[f]++
		}
	}
	assert.Len(t, seen, len(input))
	for _, p := range input {
		assert.Equal(t, 1, seen[p], p)
	}
}

func TestHeuristicGroupsAIFilesTogether(t *testing.T) {
	input := []string{
		"src/hooks/useChatHandlers.ts",
		"src/services/aiChatService.ts",
		"src/services/llmService.ts",
		"src/auth/login.ts",
		"src/auth/session.ts",
		"src/db/client.ts",
		"src/db/migrations.ts",
		"src/main.tsx",
		"src/components/Header.tsx",
		"src/components/Footer.tsx",
		"src/types.ts",
		"src/lib/format.ts",
	}
	modules, _ := GroupHeuristically(files(input...), nil)
	assertCoverage(t, input, modules)

	ai := moduleOf(modules, "src/hooks/useChatHandlers.ts")
	assert.Equal(t, "AI & Chat", ai)
	assert.Equal(t, ai, moduleOf(modules, "src/services/aiChatService.ts"))
	assert.Equal(t, ai, moduleOf(modules, "src/services/llmService.ts"))

	assert.Equal(t, AppShellModule, moduleOf(modules, "src/main.tsx"))
	assert.Equal(t, AppShellModule, moduleOf(modules, "src/components/Header.tsx"))
	assert.Equal(t, CoreModule, moduleOf(modules, "src/types.ts"))
	assert.Equal(t, CoreModule, moduleOf(modules, "src/lib/format.ts"))

	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Name)
		assert.NotEmpty(t, m.Description, m.Name)
	}
	assert.Equal(t, []string{"AI & Chat", AppShellModule, "Authentication", CoreModule, "Data & Persistence"}, names)
}

func TestHeuristicUnmatchedFileFallsIntoCore(t *testing.T) {
	modules, rels := GroupHeuristically(files("src/lib/format.ts", "src/auth/login.ts"), nil)
	assert.Equal(t, CoreModule, moduleOf(modules, "src/lib/format.ts"))
	assert.Empty(t, rels)
}

func TestHeuristicImportAffinity(t *testing.T) {
	in := files("src/auth/login.ts", "src/auth/session.ts", "src/lib/cart.ts")
	in[2].Imports = []analysis.Import{{Source: "../auth/session", Name: "session"}}

	modules, rels := GroupHeuristically(in, nil)
	require.Len(t, modules, 1)
	assert.Equal(t, "Authentication", moduleOf(modules, "src/lib/cart.ts"))
	assert.Empty(t, rels)
}

func TestHeuristicMergesSmallGroups(t *testing.T) {
	in := files(
		"src/chat/llm.ts",
		"src/chat/prompt.ts",
		"src/auth/login.ts",
		"src/auth/session.ts",
		"src/db/client.ts",
		"src/db/queries.ts",
		"src/chart.ts",
	)
	in[6].Imports = []analysis.Import{{Source: "./db/client", Name: "client"}}

	modules, rels := GroupHeuristically(in, nil)
	require.Len(t, modules, 3)
	assert.Equal(t, "Data & Persistence", moduleOf(modules, "src/chart.ts"))
	assert.Equal(t, "Data & Persistence", modules[0].Name)
	assert.Len(t, modules[0].Files, 3)
	assert.Empty(t, rels)
	assertCoverage(t, []string{
		"src/chat/llm.ts", "src/chat/prompt.ts", "src/auth/login.ts", "src/auth/session.ts",
		"src/db/client.ts", "src/db/queries.ts", "src/chart.ts",
	}, modules)
}

func TestHeuristicRelationships(t *testing.T) {
	in := files("src/auth/login.ts", "src/db/client.ts")
	in[0].Imports = []analysis.Import{{Source: "../db/client", Name: "db"}, {Source: "react", IsExternal: true}}

	_, rels := GroupHeuristically(in, nil)
	require.Len(t, rels, 1)
	assert.Equal(t, Relationship{From: "Authentication", To: "Data & Persistence", Label: "1 import"}, rels[0])
}

func TestImportEdges(t *testing.T) {
	in := files("src/a.ts", "src/b.ts", "src/components/index.ts", "src/lib/api.ts", "src/x/api.ts")
	in[0].Imports = []analysis.Import{
		{Source: "./b"},
		{Source: "./b"},
		{Source: "./components"},
		{Source: "@/lib/api"},
		{Source: "lodash", IsExternal: true},
	}
	in[1].Imports = []analysis.Import{{Source: "./b"}}

	edges := ImportEdges(in, nil)
	assert.Equal(t, []ImportEdge{
		{From: "src/a.ts", To: "src/b.ts"},
		{From: "src/a.ts", To: "src/components/index.ts"},
		{From: "src/a.ts", To: "src/lib/api.ts"},
	}, edges)
}

func TestImportEdgesHonourAliasPrefixes(t *testing.T) {
	in := files("app/main.ts", "lib/u.ts")
	in[0].Imports = []analysis.Import{{Source: "#/lib/u"}}

	assert.Equal(t, []ImportEdge{{From: "app/main.ts", To: "lib/u.ts"}}, ImportEdges(in, []string{"#/"}))
}

func TestHeuristicRelationshipsHonourAliasPrefixes(t *testing.T) {
	in := files("src/auth/login.ts", "src/db/index.ts")
	in[0].Imports = []analysis.Import{{Source: "#/db", Name: "db"}}

	_, rels := GroupHeuristically(in, nil)
	assert.Empty(t, rels)

	_, rels = GroupHeuristically(in, []string{"#/"})
	require.Len(t, rels, 1)
	assert.Equal(t, Relationship{From: "Authentication", To: "Data & Persistence", Label: "1 import"}, rels[0])
}
