package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
)

const (
	DefaultMaxPromptFiles = 150
	minFilesPerModule     = 5
	maxPromptEdges        = 200
	maxPromptCalls        = 150
	minRequestedFlows     = 5
	maxRequestedFlows     = 15
)

type flowResponse struct {
	Flows []json.RawMessage `json:"flows"`
}

type flowEntry struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Scope       string      `json:"scope"`
	Steps       []stepEntry `json:"steps"`
	Diagram     string      `json:"diagram"`
}

type stepEntry struct {
	NodeID string `json:"nodeId"`
	Label  string `json:"label"`
}

type llmGenerator struct {
	client         llm.Client
	maxRetries     int
	maxPromptFiles int
	reporter       *events.Reporter
}

// generate returns nil flows without error when every attempt fails.
func (l *llmGenerator) generate(ctx context.Context, s *Summary, validScope func(string) bool, custom string) ([]*graph.Flow, []string, error) {
	var (
		flows    []*graph.Flow
		warnings []string
	)
	retrier := &llm.Retrier{
		Client:     l.client,
		MaxRetries: l.maxRetries,
		Category:   events.CategoryFlows,
		Reporter:   l.reporter,
	}
	req := llm.Request{
		Purpose:  "flows",
		System:   flowSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: flowPrompt(s, l.maxPromptFiles, custom)}},
	}
	out, err := retrier.Run(ctx, req, func(text string) error {
		got, warn, verr := ValidateFlows(text, s, validScope)
		if verr != nil {
			return verr
		}
		flows, warnings = got, warn
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !out.Accepted {
		return nil, nil, nil
	}
	return flows, warnings, nil
}

// ValidateFlows parses a model response. Flows with an invalid scope or
// fewer than two valid file steps are dropped; the whole response is
// rejected when fewer than half of the returned entries survive.
func ValidateFlows(text string, s *Summary, validScope func(string) bool) ([]*graph.Flow, []string, error) {
	entries, err := decodeFlowEntries(text)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return nil, nil, errors.New("response contains no flows")
	}

	out := make([]*graph.Flow, 0, len(entries))
	warnings := make([]string, 0)
	for i, raw := range entries {
		var fe flowEntry
		if err := json.Unmarshal(raw, &fe); err != nil {
			warnings = append(warnings, fmt.Sprintf("flow %d dropped: %v", i, err))
			continue
		}
		f, reason := buildFlow(fe, s, validScope)
		if f == nil {
			warnings = append(warnings, fmt.Sprintf("flow %d dropped: %s", i, reason))
			continue
		}
		out = append(out, f)
	}
	if len(out)*2 < len(entries) {
		return nil, nil, fmt.Errorf("only %d of %d flows are valid; scopes must be listed scope ids and steps must use listed file ids", len(out), len(entries))
	}
	return out, warnings, nil
}

func decodeFlowEntries(text string) ([]json.RawMessage, error) {
	raw, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(raw, "[") {
		var entries []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return entries, nil
	}
	var resp flowResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return resp.Flows, nil
}

func buildFlow(fe flowEntry, s *Summary, validScope func(string) bool) (*graph.Flow, string) {
	scope := strings.TrimSpace(fe.Scope)
	if !validScope(scope) {
		return nil, fmt.Sprintf("invalid scope %q", scope)
	}

	steps := make([]graph.FlowStep, 0, len(fe.Steps))
	for _, st := range fe.Steps {
		id := strings.TrimSpace(st.NodeID)
		f, ok := s.File(id)
		if !ok {
			continue
		}
		label := strings.TrimSpace(st.Label)
		if label == "" {
			label = f.Label()
		}
		steps = append(steps, graph.FlowStep{NodeID: id, Label: label, Order: len(steps) + 1})
	}
	if len(steps) < 2 {
		return nil, "fewer than two valid steps"
	}

	name := strings.TrimSpace(fe.Name)
	if name == "" {
		return nil, "missing name"
	}

	diagram, ok := NormalizeDiagram(fe.Diagram)
	if !ok {
		diagram = stepDiagram(s, steps)
	}
	return &graph.Flow{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(fe.Description),
		ScopeNodeID: scope,
		Steps:       steps,
		Diagram:     diagram,
	}, ""
}

func stepDiagram(s *Summary, steps []graph.FlowStep) string {
	participants := make([]Participant, 0, len(steps))
	arrows := make([]string, 0, len(steps))
	for i, st := range steps {
		participants = append(participants, Participant{Label: st.Label})
		if i+1 < len(steps) {
			arrows = append(arrows, s.EdgeLabel(st.NodeID, steps[i+1].NodeID))
		}
	}
	return SequenceDiagram(participants, arrows)
}

const flowSystemPrompt = `You are a software architect who explains how a codebase behaves at runtime.
You describe flows of control and data between files. You answer with JSON only.`

func flowPrompt(s *Summary, maxFiles int, custom string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Identify %d to %d runtime flows in this codebase, such as a request being served, a user action being handled or data being loaded and saved.\n", minRequestedFlows, maxRequestedFlows)
	b.WriteString("Rules:\n")
	b.WriteString("- scope is the root id for flows that cross modules, or the module id when the flow stays inside one module.\n")
	b.WriteString("- Each flow has at least two ordered steps. nodeId must be a file id from the list, copied verbatim.\n")
	b.WriteString("- Each step label describes the action that file performs in the flow.\n")
	b.WriteString("- diagram is a Mermaid sequenceDiagram with one participant per step.\n\n")
	b.WriteString("Return JSON:\n")
	b.WriteString(`{"flows": [{"name": "...", "description": "...", "scope": "...", "steps": [{"nodeId": "...", "label": "..."}], "diagram": "sequenceDiagram\n..."}]}`)
	b.WriteString("\n")

	if custom = strings.TrimSpace(custom); custom != "" {
		b.WriteString("\nFocus on this request: ")
		b.WriteString(custom)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nRoot id: %s\n", s.RootID)
	b.WriteString("\nModules and files:\n")
	quotas := fileQuotas(s, maxFiles)
	for _, m := range s.Modules {
		fmt.Fprintf(&b, "## %s (id: %s)", m.Name, m.ID)
		if m.Description != "" {
			fmt.Fprintf(&b, ": %s", m.Description)
		}
		b.WriteString("\n")
		limit := quotas[m.ID]
		for i, f := range m.Files {
			if i >= limit {
				fmt.Fprintf(&b, "(%d more files omitted)\n", len(m.Files)-limit)
				break
			}
			fmt.Fprintf(&b, "- %s%s\n", f.ID, symbolList(f.Symbols))
		}
	}

	writeEdges(&b, "Dependencies (from -> to: imported names)", s.Edges, maxPromptEdges)
	writeEdges(&b, "Calls (from -> to: called symbol)", s.Calls, maxPromptCalls)

	if len(s.EntryPoints) > 0 {
		b.WriteString("\nEntry points:\n")
		for _, id := range s.EntryPoints {
			b.WriteString(id)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// fileQuotas caps the files listed per module. Above maxFiles, each module
// keeps its proportional share but never fewer than five files.
func fileQuotas(s *Summary, maxFiles int) map[string]int {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxPromptFiles
	}
	total := s.FileCount()
	out := make(map[string]int, len(s.Modules))
	for _, m := range s.Modules {
		n := len(m.Files)
		if total > maxFiles {
			share := (n*maxFiles + total/2) / total
			if share < minFilesPerModule {
				share = minFilesPerModule
			}
			if share < n {
				n = share
			}
		}
		out[m.ID] = n
	}
	return out
}

func symbolList(symbols []SymbolSummary) string {
	if len(symbols) == 0 {
		return ""
	}
	parts := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		parts = append(parts, fmt.Sprintf("%s (%s)", sym.Name, sym.Kind))
	}
	return " symbols: " + strings.Join(parts, ", ")
}

func writeEdges(b *strings.Builder, title string, edges []Edge, limit int) {
	if len(edges) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i, e := range edges {
		if i >= limit {
			fmt.Fprintf(b, "(%d more omitted)\n", len(edges)-limit)
			break
		}
		if e.Label != "" {
			fmt.Fprintf(b, "%s -> %s: %s\n", e.From, e.To, e.Label)
		} else {
			fmt.Fprintf(b, "%s -> %s\n", e.From, e.To)
		}
	}
}
