package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codeatlas-dev/codeatlas/internal/engine"
	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/store"
	"github.com/codeatlas-dev/codeatlas/internal/synclock"
)

type RunSummary struct {
	Mode       string   `json:"mode"`
	RootPath   string   `json:"root_path"`
	GraphID    string   `json:"graph_id"`
	Name       string   `json:"name"`
	Grouping   string   `json:"grouping"`
	FlowSource string   `json:"flow_source"`
	Files      int      `json:"files"`
	Modules    int      `json:"modules"`
	Flows      int      `json:"flows"`
	DurationMS int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
}

type SyncSummary struct {
	GraphID   string   `json:"graph_id"`
	Clean     bool     `json:"clean"`
	Modified  []string `json:"modified"`
	Missing   []string `json:"missing"`
	Unchanged int      `json:"unchanged"`
	Impacted  []string `json:"impacted,omitempty"`
}

type FlowsSummary struct {
	GraphID  string   `json:"graph_id"`
	Mode     string   `json:"mode"`
	Source   string   `json:"source"`
	Added    int      `json:"added"`
	Total    int      `json:"total"`
	Warnings []string `json:"warnings,omitempty"`
}

func newRunSummary(mode, root string, res *engine.BuildResult, started time.Time) RunSummary {
	return RunSummary{
		Mode:       mode,
		RootPath:   root,
		GraphID:    res.GraphID,
		Name:       res.Graph.Name,
		Grouping:   string(res.Grouping),
		FlowSource: string(res.Flows),
		Files:      res.Files,
		Modules:    res.Modules,
		Flows:      len(res.Graph.Flows),
		DurationMS: time.Since(started).Milliseconds(),
		Warnings:   res.Warnings,
	}
}

func newSyncSummary(g *graph.CodeGraph, report *synclock.Report) SyncSummary {
	changed := append(append([]string(nil), report.Modified...), report.Missing...)
	return SyncSummary{
		GraphID:   g.ID,
		Clean:     report.Clean(),
		Modified:  filePaths(g, report.Modified),
		Missing:   filePaths(g, report.Missing),
		Unchanged: len(report.Unchanged),
		Impacted:  filePaths(g, synclock.Impacted(g, changed)),
	}
}

func PrintRunSummary(w io.Writer, summary RunSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, summary)
	}

	fmt.Fprintf(w, "%s complete in %dms\n", summary.Mode, summary.DurationMS)
	fmt.Fprintf(w, "graph: %s (%s)\n", summary.Name, summary.GraphID)
	fmt.Fprintf(w, "files=%d modules=%d flows=%d grouping=%s flow_source=%s\n",
		summary.Files, summary.Modules, summary.Flows, summary.Grouping, summary.FlowSource)
	for _, warning := range summary.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func PrintSyncSummary(w io.Writer, summary SyncSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, summary)
	}

	if summary.Clean {
		fmt.Fprintf(w, "sync: clean (%d files unchanged)\n", summary.Unchanged)
		return nil
	}
	fmt.Fprintf(w, "sync: modified=%d missing=%d unchanged=%d\n", len(summary.Modified), len(summary.Missing), summary.Unchanged)
	if len(summary.Modified) > 0 {
		fmt.Fprintf(w, "modified files (%d): %s\n", len(summary.Modified), SummarizePaths(summary.Modified, 8))
	}
	if len(summary.Missing) > 0 {
		fmt.Fprintf(w, "missing files (%d): %s\n", len(summary.Missing), SummarizePaths(summary.Missing, 8))
	}
	if len(summary.Impacted) > 0 {
		fmt.Fprintf(w, "impacted files (%d): %s\n", len(summary.Impacted), SummarizePaths(summary.Impacted, 8))
	}
	fmt.Fprintln(w, "run atlas resync to rebuild the structure")
	return nil
}

func PrintFlowsSummary(w io.Writer, summary FlowsSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, summary)
	}
	fmt.Fprintf(w, "flows: mode=%s source=%s added=%d total=%d\n", summary.Mode, summary.Source, summary.Added, summary.Total)
	for _, warning := range summary.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func PrintGraphList(w io.Writer, infos []store.GraphInfo, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "no graphs stored; run atlas build")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tNODES\tFLOWS\tUPDATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", shortID(info.ID), info.Name, info.Nodes, info.Flows, info.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// PrintGraph writes a human overview: modules with file counts, flows and
// any drift recorded by the last sync.
func PrintGraph(w io.Writer, g *graph.CodeGraph) error {
	fmt.Fprintf(w, "%s (%s)\n", g.Name, g.ID)
	fmt.Fprintf(w, "repo: %s\n", g.RepoID)
	fmt.Fprintf(w, "updated: %s\n\n", g.UpdatedAt.Local().Format(time.DateTime))

	fmt.Fprintln(w, "modules:")
	for _, m := range g.NodesAtDepth(graph.DepthModule) {
		fmt.Fprintf(w, "  %s  %s (%d files)\n", m.ID, m.Name, len(g.ChildrenOf(m.ID)))
	}

	sorted := g.SortedFlows()
	if len(sorted) > 0 {
		fmt.Fprintln(w, "\nflows:")
	}
	for _, f := range sorted {
		steps := make([]string, 0, len(f.Steps))
		for _, s := range f.Steps {
			steps = append(steps, s.Label)
		}
		fmt.Fprintf(w, "  %s: %s\n", f.Name, strings.Join(steps, " -> "))
	}

	drift := make([]string, 0)
	for _, id := range fileutil.MapKeysSorted(g.SyncLock) {
		e := g.SyncLock[id]
		if e.Status != graph.StatusLocked {
			drift = append(drift, fmt.Sprintf("%s (%s)", e.SourceRef.FilePath, e.Status))
		}
	}
	if len(drift) > 0 {
		fmt.Fprintf(w, "\ndrift (%d): %s\n", len(drift), SummarizePaths(drift, 8))
	}
	return nil
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}

func filePaths(g *graph.CodeGraph, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if e, ok := g.SyncLock[id]; ok {
			out = append(out, e.SourceRef.FilePath)
			continue
		}
		if n, ok := g.Node(id); ok && n.SourceRef != nil {
			out = append(out, n.SourceRef.FilePath)
			continue
		}
		out = append(out, id)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
