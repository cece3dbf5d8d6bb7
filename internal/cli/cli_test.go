package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/config"
	"github.com/codeatlas-dev/codeatlas/internal/flows"
	"github.com/codeatlas-dev/codeatlas/internal/report"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sampleRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "src/main.ts"), "import { route } from \"./api/routes\";\nexport function main() { route(); }\n")
	mustWriteFile(t, filepath.Join(root, "src/api/routes.ts"), "import { query } from \"../db/client\";\nexport function route() { return query(); }\n")
	mustWriteFile(t, filepath.Join(root, "src/db/client.ts"), "export function query() { return 1; }\n")
	mustWriteFile(t, filepath.Join(root, "src/auth/login.ts"), "import { query } from \"../db/client\";\nexport function login() { return query(); }\n")
	return root
}

func heuristicEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ATLAS_LLM_API_KEY", "")
	t.Setenv("ATLAS_GROUPING_MODE", "heuristic")
	t.Setenv("ATLAS_FLOWS_MODE", "heuristic")
}

// run executes the root command against root and returns stdout.
func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--dir", root))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, root string, args ...string) string {
	t.Helper()
	out, err := run(t, root, args...)
	require.NoError(t, err, "atlas %v", args)
	return out
}

func TestInitBuildSyncExportLifecycle(t *testing.T) {
	heuristicEnv(t)
	root := sampleRepo(t)

	out := mustRun(t, root, "init")
	assert.Contains(t, out, "Wrote default config")
	assert.FileExists(t, config.DefaultPath(root))
	out = mustRun(t, root, "init")
	assert.Contains(t, out, "Config already present")

	var built RunSummary
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "build", "--name", "shop", "--json")), &built))
	assert.Equal(t, "build", built.Mode)
	assert.Equal(t, "shop", built.Name)
	assert.Equal(t, "heuristic", built.Grouping)
	assert.Equal(t, 4, built.Files)
	assert.NotEmpty(t, built.GraphID)
	assert.FileExists(t, filepath.Join(root, config.Dir, "atlas.db"))

	var infos []store.GraphInfo
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "list", "--json")), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, built.GraphID, infos[0].ID)

	out = mustRun(t, root, "show", "shop")
	assert.Contains(t, out, "shop ("+built.GraphID+")")
	assert.Contains(t, out, "modules:")

	var clean SyncSummary
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "sync", "shop", "--json")), &clean))
	assert.True(t, clean.Clean)
	assert.Equal(t, 4, clean.Unchanged)

	mustWriteFile(t, filepath.Join(root, "src/db/client.ts"), "export function query() { return 2; }\n")
	var drift SyncSummary
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "sync", built.GraphID, "--json")), &drift))
	assert.False(t, drift.Clean)
	assert.Equal(t, []string{"src/db/client.ts"}, drift.Modified)
	assert.Empty(t, drift.Missing)
	assert.Contains(t, drift.Impacted, "src/auth/login.ts")

	out = mustRun(t, root, "export", "shop")
	assert.Contains(t, out, "Updated")
	data, err := os.ReadFile(filepath.Join(root, report.DefaultFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), report.BlockStart)
	assert.Contains(t, string(data), "# shop architecture")
	assert.Contains(t, string(data), "`src/db/client.ts` modified")
	out = mustRun(t, root, "export", "shop")
	assert.Contains(t, out, "is up to date")

	var resynced RunSummary
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "resync", "shop", "--json")), &resynced))
	assert.Equal(t, built.GraphID, resynced.GraphID)
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "sync", "shop", "--json")), &clean))
	assert.True(t, clean.Clean)

	out = mustRun(t, root, "delete", "shop")
	assert.Contains(t, out, "Deleted graph shop")
	out = mustRun(t, root, "list")
	assert.Contains(t, out, "no graphs stored")
}

func TestFlowsCommand(t *testing.T) {
	heuristicEnv(t)
	root := sampleRepo(t)

	var built RunSummary
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "build", "--json")), &built))

	var summary FlowsSummary
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "flows", built.GraphID, "--mode", "additive", "--json")), &summary))
	assert.Equal(t, "additive", summary.Mode)
	assert.Equal(t, string(flows.SourceHeuristic), summary.Source)
	assert.Equal(t, built.Flows+summary.Added, summary.Total)

	_, err := run(t, root, "flows", built.GraphID, "--mode", "bogus")
	assert.ErrorIs(t, err, flows.ErrUnknownMergeMode)

	_, err = run(t, root, "flows", built.GraphID, "--mode", "scope", "--scope", "root")
	assert.ErrorIs(t, err, flows.ErrInvalidScope)
}

func TestCommandErrors(t *testing.T) {
	heuristicEnv(t)
	root := sampleRepo(t)

	_, err := run(t, root, "show", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = run(t, root, "build", "--lang", "cobol")
	assert.ErrorContains(t, err, "unsupported language")

	_, err = run(t, root, "build", "--grouping", "magic")
	assert.ErrorContains(t, err, "unknown --grouping")

	t.Setenv("ATLAS_GROUPING_MODE", "ai")
	_, err = run(t, root, "build")
	assert.Error(t, err)
}

func TestVersionAndLanguageFilter(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	assert.Equal(t, "atlas test\n", out)

	cmd := NewRootCommand("test")
	build, _, err := cmd.Find([]string{"build"})
	require.NoError(t, err)
	require.NoError(t, build.Flags().Set("lang", "ts,py,typescript"))
	langs, err := ParseLanguageFilter(build)
	require.NoError(t, err)
	assert.Equal(t, []string{"typescript", "python"}, langs)
}

func TestSummarizePaths(t *testing.T) {
	assert.Equal(t, "a, b", SummarizePaths([]string{"a", "b"}, 8))
	assert.Equal(t, "a, b ... (+1 more)", SummarizePaths([]string{"a", "b", "c"}, 2))
}

func TestNavigationCommands(t *testing.T) {
	heuristicEnv(t)
	root := sampleRepo(t)
	mustRun(t, root, "build", "--name", "shop")

	out := mustRun(t, root, "find", "shop", "login")
	assert.Contains(t, out, "src/auth/login.ts")

	var callees struct {
		Callees []struct {
			Node struct {
				ID string `json:"id"`
			} `json:"node"`
			Type string `json:"type"`
		} `json:"callees"`
	}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, root, "callees", "shop", "src/main.ts", "--rel", "depends_on", "--json")), &callees))
	require.Len(t, callees.Callees, 1)
	assert.Equal(t, "file:src/api/routes.ts", callees.Callees[0].Node.ID)
	assert.Equal(t, "depends_on", callees.Callees[0].Type)

	out = mustRun(t, root, "callers", "shop", "src/db/client.ts", "--rel", "depends_on")
	assert.Contains(t, out, "file:src/auth/login.ts")
	assert.Contains(t, out, "file:src/api/routes.ts")

	out = mustRun(t, root, "path", "shop", "src/main.ts", "src/db/client.ts", "--rel", "depends_on")
	assert.Equal(t, "file:src/main.ts -> file:src/api/routes.ts -> file:src/db/client.ts\n", out)

	out = mustRun(t, root, "trace", "shop", "src/main.ts", "--rel", "depends_on", "--depth", "1")
	assert.Contains(t, out, "hops=1")

	_, err := run(t, root, "trace", "shop", "src/main.ts", "--rel", "owns")
	assert.ErrorContains(t, err, "unknown relation type")
}
