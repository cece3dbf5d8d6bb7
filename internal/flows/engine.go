package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/metrics"
)

var tracer = otel.Tracer("codeatlas/flows")

var (
	ErrInvalidScope     = errors.New("scope must be a module id")
	ErrUnknownMergeMode = errors.New("unknown merge mode")
)

// Source records which generator produced a flow set.
type Source string

const (
	SourceLLM       Source = "llm"
	SourceHeuristic Source = "heuristic"
	SourceNone      Source = "none"
)

func (s Source) Valid() bool {
	switch s {
	case SourceLLM, SourceHeuristic, SourceNone:
		return true
	default:
		return false
	}
}

// MergeMode decides how generated flows combine with existing ones.
type MergeMode string

const (
	MergeReplace  MergeMode = "replace"
	MergeAdditive MergeMode = "additive"
	MergeScope    MergeMode = "scope"
)

func ParseMergeMode(s string) (MergeMode, error) {
	switch m := MergeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case MergeReplace, MergeAdditive, MergeScope:
		return m, nil
	case "":
		return MergeReplace, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMergeMode, s)
	}
}

type Result struct {
	Flows    []*graph.Flow `json:"flows"`
	Source   Source        `json:"source"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Options shape one generation run. ScopeID is required for MergeScope and
// limits generation to that module. CustomRequest is appended to the model
// prompt.
type Options struct {
	Mode          MergeMode
	ScopeID       string
	CustomRequest string
}

// Engine generates flows. A nil Client always takes the heuristic path.
type Engine struct {
	Client         llm.Client
	MaxRetries     int
	MaxDepth       int
	MaxPromptFiles int
	Reporter       *events.Reporter
}

// Generate returns flows for g. Errors are limited to cancellation,
// llm.ErrNotConfigured and an invalid scope.
func (e *Engine) Generate(ctx context.Context, g *graph.CodeGraph, opts Options) (*Result, error) {
	ctx, span := tracer.Start(ctx, "atlas.flows")
	defer span.End()

	if len(g.NodesAtDepth(graph.DepthFile)) == 0 {
		return &Result{Source: SourceNone}, nil
	}
	if err := llm.CheckContext(ctx); err != nil {
		return nil, err
	}

	s := Summarize(g)
	validScope := g.IsValidScope
	if opts.Mode == MergeScope {
		if !isModule(g, opts.ScopeID) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, opts.ScopeID)
		}
		s = s.Restrict(opts.ScopeID)
		validScope = func(id string) bool { return id == opts.ScopeID }
	}
	span.SetAttributes(attribute.Int("files", s.FileCount()), attribute.Int("entry_points", len(s.EntryPoints)))

	res := &Result{}
	if e.Client != nil {
		maxRetries := e.MaxRetries
		if maxRetries <= 0 {
			maxRetries = llm.DefaultMaxRetries
		}
		gen := &llmGenerator{
			client:         e.Client,
			maxRetries:     maxRetries,
			maxPromptFiles: e.MaxPromptFiles,
			reporter:       e.Reporter,
		}
		flows, warnings, err := gen.generate(ctx, s, validScope, opts.CustomRequest)
		if err != nil {
			return nil, err
		}
		res.Warnings = append(res.Warnings, warnings...)
		if len(flows) > 0 {
			res.Flows = flows
			res.Source = SourceLLM
			e.Reporter.Info(events.CategoryFlows, fmt.Sprintf("generated %d flows", len(flows)), nil)
			span.SetAttributes(attribute.String("source", string(res.Source)), attribute.Int("flows", len(flows)))
			return res, nil
		}
		metrics.Fallbacks.WithLabelValues("flows").Inc()
		res.Warnings = append(res.Warnings, "flow generation failed; heuristic flows used")
		e.Reporter.Warn(events.CategoryFlows, "model produced no flows, using heuristic generator", nil)
	} else if strings.TrimSpace(opts.CustomRequest) != "" {
		res.Warnings = append(res.Warnings, "custom request ignored without a model")
	}

	if err := llm.CheckContext(ctx); err != nil {
		return nil, err
	}
	res.Flows = GenerateHeuristic(s, e.MaxDepth)
	res.Source = SourceHeuristic
	e.Reporter.Info(events.CategoryHeuristic, fmt.Sprintf("discovered %d dependency flows", len(res.Flows)), nil)
	span.SetAttributes(attribute.String("source", string(res.Source)), attribute.Int("flows", len(res.Flows)))
	return res, nil
}

// Merge combines res with the flows already on g and returns a new graph.
// MergeScope replaces only the flows scoped to scopeID.
func Merge(g *graph.CodeGraph, res *Result, mode MergeMode, scopeID string) (*graph.CodeGraph, error) {
	var flows []*graph.Flow
	switch mode {
	case MergeReplace:
		flows = append(flows, res.Flows...)
	case MergeAdditive:
		flows = append(flows, g.SortedFlows()...)
		flows = append(flows, res.Flows...)
	case MergeScope:
		if !isModule(g, scopeID) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scopeID)
		}
		for _, f := range g.SortedFlows() {
			if f.ScopeNodeID != scopeID {
				flows = append(flows, f)
			}
		}
		for _, f := range res.Flows {
			if f.ScopeNodeID == scopeID {
				flows = append(flows, f)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMergeMode, mode)
	}

	out := g.WithFlows(flows)
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("merged graph is invalid: %w", err)
	}
	return out, nil
}

func isModule(g *graph.CodeGraph, id string) bool {
	n, ok := g.Node(id)
	return ok && n.Depth == graph.DepthModule
}
