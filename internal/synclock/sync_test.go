package synclock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
)

var lockedFiles = map[string]string{
	"src/a.ts": "export const a = 1\n",
	"src/b.ts": "export const b = 2\n",
	"src/c.ts": "export const c = 3\n",
}

func lockedGraph(t *testing.T, name string) *graph.CodeGraph {
	t.Helper()
	d := graph.NewDraft("ws", "repo", name)
	_, err := d.AddRoot(name, "")
	require.NoError(t, err)
	_, err = d.AddChild(graph.RootID, graph.Node{ID: "module:Core", Name: "Core", Kind: graph.KindPackage})
	require.NoError(t, err)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, p := range []string{"src/a.ts", "src/b.ts", "src/c.ts"} {
		ref := graph.SourceRef{FilePath: p, ContentHash: parser.HashContent([]byte(lockedFiles[p]))}
		_, err := d.AddChild("module:Core", graph.Node{ID: graph.FileNodeID(p), Name: p, Kind: graph.KindModule, SourceRef: &ref})
		require.NoError(t, err)
		require.NoError(t, d.Lock(graph.FileNodeID(p), ref, at))
	}
	_, err = d.AddRelation("file:src/b.ts", "file:src/a.ts", graph.RelDependsOn, "a")
	require.NoError(t, err)
	_, err = d.AddRelation("file:src/c.ts", "file:src/b.ts", graph.RelDependsOn, "b")
	require.NoError(t, err)
	g, err := d.Finish()
	require.NoError(t, err)
	return g
}

func TestDetectChangesPartitionsEveryEntry(t *testing.T) {
	g := lockedGraph(t, "demo")
	dir := fstest.MapFS{
		"src/a.ts":   {Data: []byte(lockedFiles["src/a.ts"])},
		"src/b.ts":   {Data: []byte("export const b = 20\n")},
		"src/new.ts": {Data: []byte("export {}\n")},
	}

	r, err := DetectChanges(context.Background(), g, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"file:src/a.ts"}, r.Unchanged)
	assert.Equal(t, []string{"file:src/b.ts"}, r.Modified)
	assert.Equal(t, []string{"file:src/c.ts"}, r.Missing)
	assert.Equal(t, len(g.SyncLock), r.Total())
	assert.False(t, r.Clean())

	seen := make(map[string]int)
	for _, bucket := range [][]string{r.Modified, r.Missing, r.Unchanged} {
		for _, id := range bucket {
			seen[id]++
		}
	}
	for id := range g.SyncLock {
		assert.Equal(t, 1, seen[id], id)
	}
}

func TestApplyReportTouchesOnlySyncLock(t *testing.T) {
	g := lockedGraph(t, "demo")
	dir := fstest.MapFS{
		"src/a.ts": {Data: []byte(lockedFiles["src/a.ts"])},
		"src/b.ts": {Data: []byte("changed\n")},
		"src/c.ts": {Data: []byte(lockedFiles["src/c.ts"])},
	}
	r, err := DetectChanges(context.Background(), g, dir, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"file:src/b.ts"}, r.Modified)

	out := ApplyReport(g, r)
	assert.Equal(t, g.Nodes, out.Nodes)
	assert.Equal(t, g.Relations, out.Relations)

	b := out.SyncLock["file:src/b.ts"]
	assert.Equal(t, graph.StatusModified, b.Status)
	assert.Equal(t, r.CheckedAt, b.LastChecked)
	assert.Equal(t, g.SyncLock["file:src/b.ts"].SourceRef, b.SourceRef)
	assert.Equal(t, graph.StatusLocked, out.SyncLock["file:src/a.ts"].Status)

	assert.Equal(t, graph.StatusLocked, g.SyncLock["file:src/b.ts"].Status)
	require.NoError(t, out.Validate())
}

func TestDetectChangesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DetectChanges(ctx, lockedGraph(t, "demo"), fstest.MapFS{}, nil)
	assert.True(t, llm.IsCancelled(err))
}

func TestFullResyncSplicesIdentityAndOverlays(t *testing.T) {
	prior := lockedGraph(t, "prior")
	prior = prior.WithOverlays(graph.Overlays{
		Lenses:       []graph.Lens{{ID: "lens-1", Name: "Reviewer"}},
		ActiveLensID: "lens-1",
		DomainNodes: map[string]*graph.DomainNode{
			"billing": {ID: "billing", Name: "Billing", NodeRefs: []string{"file:src/a.ts", "file:src/gone.ts"}},
		},
	})
	prior = prior.WithFlows([]*graph.Flow{{ID: "f", Name: "old", ScopeNodeID: graph.RootID}})

	rebuilt := lockedGraph(t, "fresh")
	out, err := FullResync(context.Background(), prior, func(ctx context.Context) (*graph.CodeGraph, error) {
		return rebuilt, nil
	})
	require.NoError(t, err)
	assert.Equal(t, prior.ID, out.ID)
	assert.Equal(t, "prior", out.Name)
	assert.Equal(t, prior.CreatedAt, out.CreatedAt)
	assert.Equal(t, "lens-1", out.ActiveLensID)
	require.Contains(t, out.DomainNodes, "billing")
	assert.Equal(t, []string{"file:src/a.ts"}, out.DomainNodes["billing"].NodeRefs)
	assert.Empty(t, out.Flows)
	assert.Equal(t, rebuilt.Relations, out.Relations)
}

func TestFullResyncPropagatesRebuildFailure(t *testing.T) {
	boom := assert.AnError
	_, err := FullResync(context.Background(), lockedGraph(t, "demo"), func(ctx context.Context) (*graph.CodeGraph, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestImpactedFollowsReverseDependencies(t *testing.T) {
	g := lockedGraph(t, "demo")
	assert.Equal(t, []string{"file:src/a.ts", "file:src/b.ts", "file:src/c.ts"}, Impacted(g, []string{"file:src/a.ts"}))
	assert.Equal(t, []string{"file:src/c.ts"}, Impacted(g, []string{"file:src/c.ts"}))
}

func TestWatcherDebouncesChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	var (
		mu      sync.Mutex
		batches [][]string
	)
	w, err := NewWatcher(root, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, paths)
	}, WatchOptions{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("aa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"src/a.ts"}, batches[0])
}
