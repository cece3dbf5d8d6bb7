// Package synclock detects drift between a graph's sync-lock snapshot and the
// live source tree, and rebuilds graphs when structure has changed.
package synclock

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/metrics"
)

// Hasher digests file content. It must match the hasher used at build time;
// nil means parser.HashContent.
type Hasher func(content []byte) string

// Report partitions sync-lock entries by node id. Every entry lands in
// exactly one bucket.
type Report struct {
	Modified  []string  `json:"modified"`
	Missing   []string  `json:"missing"`
	Unchanged []string  `json:"unchanged"`
	CheckedAt time.Time `json:"checked_at"`
}

// Total is the number of classified entries.
func (r *Report) Total() int {
	return len(r.Modified) + len(r.Missing) + len(r.Unchanged)
}

// Clean reports whether nothing drifted.
func (r *Report) Clean() bool {
	return len(r.Modified) == 0 && len(r.Missing) == 0
}

// DetectChanges re-reads and re-hashes every tracked file under dir. A read
// failure marks the entry missing. New files are not detected; that takes a
// full resync.
func DetectChanges(ctx context.Context, g *graph.CodeGraph, dir fs.FS, hash Hasher) (*Report, error) {
	ids := make([]string, 0, len(g.SyncLock))
	for id := range g.SyncLock {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r := &Report{
		Modified:  make([]string, 0),
		Missing:   make([]string, 0),
		Unchanged: make([]string, 0),
	}
	for _, id := range ids {
		if err := llm.CheckContext(ctx); err != nil {
			return nil, err
		}
		entry := g.SyncLock[id]
		current, err := hashFile(dir, entry.SourceRef.FilePath, hash)
		switch {
		case err != nil:
			r.Missing = append(r.Missing, id)
		case current != entry.SourceRef.ContentHash:
			r.Modified = append(r.Modified, id)
		default:
			r.Unchanged = append(r.Unchanged, id)
		}
	}
	r.CheckedAt = time.Now().UTC()

	metrics.SyncEntries.WithLabelValues(string(graph.StatusModified)).Add(float64(len(r.Modified)))
	metrics.SyncEntries.WithLabelValues(string(graph.StatusMissing)).Add(float64(len(r.Missing)))
	metrics.SyncEntries.WithLabelValues(string(graph.StatusLocked)).Add(float64(len(r.Unchanged)))
	return r, nil
}

// hashFile streams the file through fileutil.HashFS unless a custom hasher
// needs the whole content.
func hashFile(dir fs.FS, path string, hash Hasher) (string, error) {
	if hash == nil {
		return fileutil.HashFS(dir, path)
	}
	content, err := fs.ReadFile(dir, path)
	if err != nil {
		return "", err
	}
	return hash(content), nil
}

// ApplyReport folds the report's statuses and check time into the sync
// lock. Nodes and relations are left alone, as is each entry's locked hash.
func ApplyReport(g *graph.CodeGraph, r *Report) *graph.CodeGraph {
	entries := make(map[string]graph.SyncLockEntry, len(g.SyncLock))
	for id, e := range g.SyncLock {
		entries[id] = e
	}
	mark := func(ids []string, status graph.SyncStatus) {
		for _, id := range ids {
			e, ok := entries[id]
			if !ok {
				continue
			}
			e.Status = status
			e.LastChecked = r.CheckedAt
			entries[id] = e
		}
	}
	mark(r.Unchanged, graph.StatusLocked)
	mark(r.Modified, graph.StatusModified)
	mark(r.Missing, graph.StatusMissing)
	return g.WithSyncLock(entries)
}

// RebuildFunc runs the scan and parse pipeline against the live tree.
type RebuildFunc func(ctx context.Context) (*graph.CodeGraph, error)

// FullResync rebuilds the graph and carries over prior's identity, lens
// configuration and domain overlay. Everything else comes from the rebuild.
func FullResync(ctx context.Context, prior *graph.CodeGraph, rebuild RebuildFunc) (*graph.CodeGraph, error) {
	if err := llm.CheckContext(ctx); err != nil {
		return nil, err
	}
	next, err := rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild graph: %w", err)
	}
	if err := llm.CheckContext(ctx); err != nil {
		return nil, err
	}
	out := next.WithIdentity(prior.ID, prior.Name, prior.CreatedAt).WithOverlays(prior.Overlays())
	return out, nil
}

// Impacted returns the given file nodes plus every file that transitively
// depends on one of them, sorted.
func Impacted(g *graph.CodeGraph, fileIDs []string) []string {
	reverse := make(map[string][]string)
	for _, r := range g.RelationsOfType(graph.RelDependsOn) {
		reverse[r.TargetID] = append(reverse[r.TargetID], r.SourceID)
	}

	impacted := make(map[string]bool)
	queue := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		if !impacted[id] {
			impacted[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, depender := range reverse[id] {
			if impacted[depender] {
				continue
			}
			impacted[depender] = true
			queue = append(queue, depender)
		}
	}

	out := make([]string, 0, len(impacted))
	for id := range impacted {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
