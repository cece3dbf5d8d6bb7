// Package engine orchestrates construction, enrichment and sync runs over
// a workspace's stored graphs.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/builder"
	"github.com/codeatlas-dev/codeatlas/internal/config"
	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/flows"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/grouping"
	"github.com/codeatlas-dev/codeatlas/internal/languages"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/metrics"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
	"github.com/codeatlas-dev/codeatlas/internal/scanner"
	"github.com/codeatlas-dev/codeatlas/internal/store"
	"github.com/codeatlas-dev/codeatlas/internal/synclock"
)

var tracer = otel.Tracer("codeatlas/engine")

// Engine runs one operation at a time per workspace; callers serialize runs.
// It holds no lock of its own.
type Engine struct {
	Config   *config.Config
	Store    *store.GraphStore
	Client   llm.Client
	Registry *parser.Registry
	Reporter *events.Reporter
}

// New wires an engine from cfg. The model client is created only when a
// credential is configured.
func New(cfg *config.Config, gs *store.GraphStore, rep *events.Reporter) (*Engine, error) {
	registry := languages.NewDefaultRegistry()
	registry.Restrict(cfg.Scan.Languages)

	e := &Engine{Config: cfg, Store: gs, Registry: registry, Reporter: rep}
	if cfg.HasCredential() {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			MaxTokens:         cfg.LLM.MaxTokens,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			Timeout:           cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		e.Client = client
	}
	return e, nil
}

type BuildRequest struct {
	// Dir is the repository to scan; empty means the config root.
	Dir  string
	Name string
	// FS overrides the filesystem view of Dir.
	FS fs.FS
}

type BuildResult struct {
	Graph    *graph.CodeGraph `json:"-"`
	GraphID  string           `json:"graph_id"`
	Grouping grouping.Source  `json:"grouping"`
	Flows    flows.Source     `json:"flows"`
	Files    int              `json:"files"`
	Modules  int              `json:"modules"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Build scans, groups, builds and generates flows, then persists the graph.
// Nothing is saved unless every stage succeeds.
func (e *Engine) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "atlas.build")
	defer span.End()
	start := time.Now()

	dir, fsys, err := e.resolveDir(req.Dir, req.FS)
	if err != nil {
		return nil, err
	}
	name := req.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	res, err := e.construct(ctx, dir, fsys, name)
	if err != nil {
		return nil, err
	}
	if err := llm.CheckContext(ctx); err != nil {
		return nil, err
	}
	if err := e.Store.Save(ctx, res.Graph); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}
	metrics.BuildDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("graph.id", res.GraphID), attribute.Int("files", res.Files))
	e.Reporter.Info(events.CategoryStore, "graph saved", map[string]string{"id": res.GraphID})
	return res, nil
}

// construct runs the full pipeline without persisting anything.
func (e *Engine) construct(ctx context.Context, dir string, fsys fs.FS, name string) (*BuildResult, error) {
	if e.Config.Flows.Mode == config.ModeAI && e.Client == nil {
		return nil, llm.ErrNotConfigured
	}
	a, err := scanner.ScanFS(ctx, fsys, scanner.Options{
		Registry:      e.Registry,
		Ignore:        e.Config.Scan.Ignore,
		AliasPrefixes: e.Config.Scan.AliasPrefixes,
		Reporter:      e.Reporter,
	})
	if err != nil {
		return nil, err
	}
	grouped, err := e.group(ctx, a)
	if err != nil {
		return nil, err
	}

	g, err := builder.Build(ctx, builder.Input{
		Analysis:    grouped.Apply(a, e.Config.Scan.AliasPrefixes),
		WorkspaceID: e.Config.Workspace,
		RepoID:      dir,
		Name:        name,
		Dir:         fsys,
		Scan:        &builder.ScanConfig{AliasPrefixes: e.Config.Scan.AliasPrefixes},
		Parser:      e.Registry,
		Reporter:    e.Reporter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	fr, err := e.flowEngine().Generate(ctx, g, flows.Options{})
	if err != nil {
		return nil, err
	}
	g, err = flows.Merge(g, fr, flows.MergeReplace, "")
	if err != nil {
		return nil, err
	}

	warnings := append(append([]string(nil), grouped.Warnings...), fr.Warnings...)
	return &BuildResult{
		Graph:    g,
		GraphID:  g.ID,
		Grouping: grouped.Source,
		Flows:    fr.Source,
		Files:    len(g.NodesAtDepth(graph.DepthFile)),
		Modules:  len(g.NodesAtDepth(graph.DepthModule)),
		Warnings: warnings,
	}, nil
}

func (e *Engine) group(ctx context.Context, a *analysis.CodebaseAnalysis) (*grouping.Result, error) {
	switch e.Config.Grouping.Mode {
	case config.ModeHeuristic:
		return grouping.RunHeuristic(a, e.Config.Scan.AliasPrefixes), nil
	case config.ModeAI:
		if e.Client == nil {
			return nil, llm.ErrNotConfigured
		}
	default:
		if e.Client == nil {
			e.Reporter.Warn(events.CategoryConfig, "no LLM credential configured, using heuristic grouping", nil)
			res := grouping.RunHeuristic(a, e.Config.Scan.AliasPrefixes)
			res.Warnings = append(res.Warnings, "no LLM credential configured; heuristic grouping used")
			return res, nil
		}
	}
	p := &grouping.Pipeline{
		Client:        e.Client,
		BatchSize:     e.Config.Grouping.BatchSize,
		MaxRetries:    e.Config.Grouping.MaxRetries,
		AliasPrefixes: e.Config.Scan.AliasPrefixes,
		Reporter:      e.Reporter,
	}
	return p.Run(ctx, a)
}

func (e *Engine) flowEngine() *flows.Engine {
	fe := &flows.Engine{
		MaxRetries:     e.Config.Flows.MaxRetries,
		MaxDepth:       e.Config.Flows.MaxDepth,
		MaxPromptFiles: e.Config.Flows.MaxPromptFiles,
		Reporter:       e.Reporter,
	}
	if e.Config.Flows.Mode != config.ModeHeuristic {
		fe.Client = e.Client
	}
	return fe
}

func (e *Engine) resolveDir(dir string, fsys fs.FS) (string, fs.FS, error) {
	if dir == "" {
		dir = e.Config.Root
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	if fsys != nil {
		return abs, fsys, nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("%s is not a directory", abs)
	}
	return abs, os.DirFS(abs), nil
}

// Load resolves ref (id, id prefix or name) in the configured workspace.
func (e *Engine) Load(ctx context.Context, ref string) (*graph.CodeGraph, error) {
	info, err := e.Store.Resolve(ctx, e.Config.Workspace, ref)
	if err != nil {
		return nil, err
	}
	return e.Store.Load(ctx, e.Config.Workspace, info.ID)
}

type SyncResult struct {
	GraphID string           `json:"graph_id"`
	Report  *synclock.Report `json:"report"`
}

// Sync classifies drift of the graph's tracked files and saves the updated
// sync lock. Structure is never changed; see Resync.
func (e *Engine) Sync(ctx context.Context, ref string, fsys fs.FS) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "atlas.sync")
	defer span.End()

	g, err := e.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if fsys == nil {
		_, fsys, err = e.resolveDir(g.RepoID, nil)
		if err != nil {
			return nil, err
		}
	}
	report, err := synclock.DetectChanges(ctx, g, fsys, nil)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("modified", len(report.Modified)), attribute.Int("missing", len(report.Missing)))
	e.Reporter.Info(events.CategorySync, "sync classified", map[string]int{
		"modified":  len(report.Modified),
		"missing":   len(report.Missing),
		"unchanged": len(report.Unchanged),
	})

	if err := e.Store.Save(ctx, synclock.ApplyReport(g, report)); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}
	return &SyncResult{GraphID: g.ID, Report: report}, nil
}

// Resync rebuilds the graph from its live directory, keeping identity and
// overlays, and saves it in place.
func (e *Engine) Resync(ctx context.Context, ref string, fsys fs.FS) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "atlas.resync")
	defer span.End()

	prior, err := e.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	dir, fsys, err := e.resolveDir(prior.RepoID, fsys)
	if err != nil {
		return nil, err
	}

	var built *BuildResult
	g, err := synclock.FullResync(ctx, prior, func(ctx context.Context) (*graph.CodeGraph, error) {
		res, err := e.construct(ctx, dir, fsys, prior.Name)
		if err != nil {
			return nil, err
		}
		built = res
		return res.Graph, nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.Store.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}
	built.Graph = g
	built.GraphID = g.ID
	return built, nil
}

type FlowRequest struct {
	Mode          flows.MergeMode
	ScopeID       string
	CustomRequest string
}

// RegenerateFlows generates flows for a stored graph and merges them per
// req.Mode.
func (e *Engine) RegenerateFlows(ctx context.Context, ref string, req FlowRequest) (*flows.Result, *graph.CodeGraph, error) {
	if e.Config.Flows.Mode == config.ModeAI && e.Client == nil {
		return nil, nil, llm.ErrNotConfigured
	}
	g, err := e.Load(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = flows.MergeReplace
	}
	res, err := e.flowEngine().Generate(ctx, g, flows.Options{
		Mode:          mode,
		ScopeID:       req.ScopeID,
		CustomRequest: req.CustomRequest,
	})
	if err != nil {
		return nil, nil, err
	}
	out, err := flows.Merge(g, res, mode, req.ScopeID)
	if err != nil {
		return nil, nil, err
	}
	if err := llm.CheckContext(ctx); err != nil {
		return nil, nil, err
	}
	if err := e.Store.Save(ctx, out); err != nil {
		return nil, nil, fmt.Errorf("failed to save graph: %w", err)
	}
	return res, out, nil
}
