package grouping

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
	"github.com/codeatlas-dev/codeatlas/internal/metrics"
)

// DefaultBatchSize is the number of files sent to the analyst per request.
const DefaultBatchSize = 10

// FileAnalysis is the analyst's verdict on one file.
type FileAnalysis struct {
	FilePath  string `json:"filePath"`
	Purpose   string `json:"purpose"`
	Role      Role   `json:"role"`
	Heuristic bool   `json:"heuristic,omitempty"`
}

type analystEntry struct {
	FilePath string `json:"filePath"`
	Purpose  string `json:"purpose"`
	Role     string `json:"role"`
}

// Analyst is the File Analyst agent.
type Analyst struct {
	Client     llm.Client
	MaxRetries int
	Reporter   *events.Reporter
}

// AnalyzeBatch returns exactly one analysis per input file, in input order.
// Only cancellation and ErrNotConfigured are returned as errors: when every
// attempt fails the batch is synthesized from path heuristics.
func (a *Analyst) AnalyzeBatch(ctx context.Context, batch []analysis.AnalyzedFile) ([]FileAnalysis, error) {
	paths := make([]string, 0, len(batch))
	for _, f := range batch {
		paths = append(paths, f.FilePath)
	}
	resolver := NewPathResolver(paths)

	var accepted map[string]FileAnalysis
	retrier := &llm.Retrier{
		Client:     a.Client,
		MaxRetries: a.MaxRetries,
		Category:   events.CategoryAnalyst,
		Reporter:   a.Reporter,
		Fallback: func(lastErr error) {
			metrics.Fallbacks.WithLabelValues("analyst").Inc()
		},
	}
	req := llm.Request{
		Purpose:  "analyst",
		System:   analystSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: analystPrompt(batch)}},
	}
	out, err := retrier.Run(ctx, req, func(text string) error {
		got, verr := validateAnalystResponse(text, resolver, len(batch))
		if verr != nil {
			return verr
		}
		accepted = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Accepted {
		a.Reporter.Warn(events.CategoryAnalyst, "batch synthesized from path heuristics", map[string]any{"files": len(batch)})
		accepted = nil
	}

	result := make([]FileAnalysis, 0, len(batch))
	backfilled := 0
	for _, f := range batch {
		if fa, ok := accepted[f.FilePath]; ok {
			result = append(result, fa)
			continue
		}
		if out.Accepted {
			backfilled++
		}
		result = append(result, heuristicAnalysis(f))
	}
	if backfilled > 0 {
		a.Reporter.Debug(events.CategoryAnalyst, "back-filled files missing from response", backfilled)
	}
	return result, nil
}

// validateAnalystResponse accepts a response when at least half of the
// expected files resolve. Invalid roles fall back to ClassifyRole.
func validateAnalystResponse(text string, resolver *PathResolver, expected int) (map[string]FileAnalysis, error) {
	var entries []analystEntry
	if err := llm.DecodeJSON(text, &entries); err != nil {
		var wrapped struct {
			Files []analystEntry `json:"files"`
		}
		if werr := llm.DecodeJSON(text, &wrapped); werr != nil || len(wrapped.Files) == 0 {
			return nil, err
		}
		entries = wrapped.Files
	}

	got := make(map[string]FileAnalysis, len(entries))
	for _, e := range entries {
		p, ok := resolver.Resolve(e.FilePath)
		if !ok {
			continue
		}
		if _, dup := got[p]; dup {
			continue
		}
		role, valid := ParseRole(e.Role)
		if !valid {
			role = ClassifyRole(p)
		}
		purpose := strings.TrimSpace(e.Purpose)
		if purpose == "" {
			purpose = heuristicPurpose(p, role, nil)
		}
		got[p] = FileAnalysis{FilePath: p, Purpose: purpose, Role: role}
	}
	if len(got)*2 < expected {
		return nil, fmt.Errorf("only %d of %d files matched the requested paths", len(got), expected)
	}
	return got, nil
}

func heuristicAnalysis(f analysis.AnalyzedFile) FileAnalysis {
	role := ClassifyRole(f.FilePath)
	return FileAnalysis{
		FilePath:  f.FilePath,
		Purpose:   heuristicPurpose(f.FilePath, role, f.ExportedSymbols),
		Role:      role,
		Heuristic: true,
	}
}

func heuristicPurpose(filePath string, role Role, exports []string) string {
	if len(exports) == 0 {
		return fmt.Sprintf("%s file %s", role, filePath)
	}
	if len(exports) > 3 {
		exports = append(append([]string(nil), exports[:3]...), "...")
	}
	return fmt.Sprintf("%s file exporting %s", role, strings.Join(exports, ", "))
}

const analystSystemPrompt = `You are a senior software engineer documenting an unfamiliar codebase.
You answer with JSON only.`

func analystPrompt(batch []analysis.AnalyzedFile) string {
	roles := make([]string, 0, len(Roles()))
	for _, r := range Roles() {
		roles = append(roles, string(r))
	}

	var b strings.Builder
	b.WriteString("Describe the purpose of each file below in one sentence and assign it exactly one role.\n")
	fmt.Fprintf(&b, "Allowed roles: %s.\n", strings.Join(roles, ", "))
	b.WriteString("Copy every filePath verbatim from the list. Return a JSON array:\n")
	b.WriteString(`[{"filePath": "...", "purpose": "...", "role": "..."}]`)
	b.WriteString("\n\nFiles:\n")
	for _, f := range batch {
		fmt.Fprintf(&b, "- %s (%s)", f.FilePath, f.Language)
		if len(f.ExportedSymbols) > 0 {
			fmt.Fprintf(&b, " exports: %s", strings.Join(limitStrings(f.ExportedSymbols, 12), ", "))
		}
		internal := make([]string, 0)
		for _, imp := range f.Imports {
			if !imp.IsExternal {
				internal = append(internal, imp.Source)
			}
		}
		if len(internal) > 0 {
			fmt.Fprintf(&b, " imports: %s", strings.Join(limitStrings(internal, 8), ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func limitStrings(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
