package grouping

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/metrics"
)

var tracer = otel.Tracer("codeatlas/grouping")

// Source records which path produced a grouping.
type Source string

const (
	SourceAI        Source = "ai"
	SourceHeuristic Source = "heuristic"
)

func (s Source) Valid() bool {
	switch s {
	case SourceAI, SourceHeuristic:
		return true
	default:
		return false
	}
}

type Result struct {
	Modules       []Module       `json:"modules"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Source        Source         `json:"source"`
	Analyses      []FileAnalysis `json:"analyses,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// Apply returns a copy of a regrouped by the result's modules. aliasPrefixes
// must match the ones the scan resolved imports with.
func (r *Result) Apply(a *analysis.CodebaseAnalysis, aliasPrefixes []string) *analysis.CodebaseAnalysis {
	modules := make([]analysis.Module, 0, len(r.Modules))
	for _, m := range r.Modules {
		modules = append(modules, analysis.Module{
			Name:        m.Name,
			Description: m.Description,
			Files:       append([]string(nil), m.Files...),
		})
	}
	return a.Regroup(modules, aliasPrefixes)
}

// Pipeline runs the File Analyst over every batch, then the Architect, and
// falls back to the heuristic grouper when the Architect yields nothing.
type Pipeline struct {
	Client     llm.Client
	BatchSize  int
	MaxRetries int
	// AliasPrefixes mark internal import specifiers; empty means the defaults.
	AliasPrefixes []string
	Reporter      *events.Reporter
}

// Run returns a grouping that covers every file. The only errors are
// llm.ErrNotConfigured, raised before any request, and cancellation.
func (p *Pipeline) Run(ctx context.Context, a *analysis.CodebaseAnalysis) (*Result, error) {
	if p.Client == nil {
		return nil, llm.ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "atlas.grouping")
	defer span.End()
	span.SetAttributes(attribute.Int("files", len(a.Files)))

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = llm.DefaultMaxRetries
	}

	analyst := &Analyst{Client: p.Client, MaxRetries: maxRetries, Reporter: p.Reporter}
	batches := batchFiles(a, batchSize)
	analyses := make([]FileAnalysis, 0, len(a.Files))
	for i, batch := range batches {
		if err := llm.CheckContext(ctx); err != nil {
			return nil, err
		}
		got, err := analyst.AnalyzeBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, got...)
		p.Reporter.Step("grouping:analyst", i+1, len(batches))
	}

	edges := ImportEdges(uniqueFiles(a), p.AliasPrefixes)
	p.Reporter.Info(events.CategoryGrouping, fmt.Sprintf("derived %d import edges", len(edges)), nil)

	if err := llm.CheckContext(ctx); err != nil {
		return nil, err
	}
	architect := &Architect{Client: p.Client, MaxRetries: maxRetries, Reporter: p.Reporter}
	bp, err := architect.Design(ctx, analyses, edges)
	if err != nil {
		return nil, err
	}
	p.Reporter.Step("grouping:architect", 1, 1)

	if bp == nil {
		metrics.Fallbacks.WithLabelValues("architect").Inc()
		p.Reporter.Warn(events.CategoryGrouping, "architect produced no blueprint, using heuristic grouping", nil)
		res := RunHeuristic(a, p.AliasPrefixes)
		res.Analyses = analyses
		res.Warnings = append(res.Warnings, "architect failed; heuristic grouping used")
		span.SetAttributes(attribute.String("source", string(res.Source)))
		return res, nil
	}

	span.SetAttributes(attribute.String("source", string(SourceAI)), attribute.Int("modules", len(bp.Modules)))
	return &Result{
		Modules:       bp.Modules,
		Relationships: bp.Relationships,
		Source:        SourceAI,
		Analyses:      analyses,
		Warnings:      bp.Warnings,
	}, nil
}

// RunHeuristic groups a without any model.
func RunHeuristic(a *analysis.CodebaseAnalysis, aliasPrefixes []string) *Result {
	modules, rels := GroupHeuristically(uniqueFiles(a), aliasPrefixes)
	return &Result{Modules: modules, Relationships: rels, Source: SourceHeuristic}
}

func batchFiles(a *analysis.CodebaseAnalysis, size int) [][]analysis.AnalyzedFile {
	files := uniqueFiles(a)
	out := make([][]analysis.AnalyzedFile, 0, (len(files)+size-1)/size)
	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}
		out = append(out, files[start:end])
	}
	return out
}

func uniqueFiles(a *analysis.CodebaseAnalysis) []analysis.AnalyzedFile {
	seen := make(map[string]bool, len(a.Files))
	out := make([]analysis.AnalyzedFile, 0, len(a.Files))
	for _, f := range a.Files {
		if seen[f.FilePath] {
			continue
		}
		seen[f.FilePath] = true
		out = append(out, f)
	}
	return out
}
