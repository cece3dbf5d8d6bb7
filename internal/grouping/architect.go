package grouping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/llm"
)

// OtherModuleName receives files the architect left unassigned.
const OtherModuleName = "Other"

var architectValidate = validator.New()

// Blueprint is a validated architect response.
type Blueprint struct {
	Modules       []Module       `json:"modules"`
	Relationships []Relationship `json:"relationships"`
	Warnings      []string       `json:"warnings,omitempty"`
}

type architectResponse struct {
	Modules       []json.RawMessage `json:"modules"`
	Relationships []json.RawMessage `json:"relationships"`
}

type architectModule struct {
	Name        string   `json:"name" validate:"required,max=80"`
	Description string   `json:"description" validate:"max=600"`
	Files       []string `json:"files" validate:"required,min=1,dive,required"`
}

type architectRelationship struct {
	From  string `json:"from" validate:"required"`
	To    string `json:"to" validate:"required"`
	Label string `json:"label"`
}

// Architect is the agent that turns file analyses into functional modules.
type Architect struct {
	Client     llm.Client
	MaxRetries int
	Reporter   *events.Reporter
}

// Design returns nil without error when every attempt fails; callers fall
// back to the heuristic grouper.
func (a *Architect) Design(ctx context.Context, analyses []FileAnalysis, edges []ImportEdge) (*Blueprint, error) {
	paths := make([]string, 0, len(analyses))
	for _, fa := range analyses {
		paths = append(paths, fa.FilePath)
	}
	resolver := NewPathResolver(paths)

	var bp *Blueprint
	retrier := &llm.Retrier{
		Client:     a.Client,
		MaxRetries: a.MaxRetries,
		Category:   events.CategoryArchitect,
		Reporter:   a.Reporter,
	}
	req := llm.Request{
		Purpose:  "architect",
		System:   architectSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: architectPrompt(analyses, edges)}},
	}
	out, err := retrier.Run(ctx, req, func(text string) error {
		got, verr := ValidateBlueprint(text, resolver, paths)
		if verr != nil {
			return verr
		}
		bp = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Accepted {
		return nil, nil
	}
	for _, w := range bp.Warnings {
		a.Reporter.Debug(events.CategoryArchitect, w, nil)
	}
	return bp, nil
}

// ValidateBlueprint parses an architect response leniently: malformed
// modules are skipped, names made unique, files resolved and claimed first
// come first served, empty modules dropped, leftovers collected under
// Other. It fails only when no module survives.
func ValidateBlueprint(text string, resolver *PathResolver, inputOrder []string) (*Blueprint, error) {
	var resp architectResponse
	if err := llm.DecodeJSON(text, &resp); err != nil {
		return nil, err
	}

	bp := &Blueprint{}
	claimed := make(map[string]string)
	names := make(map[string]bool)
	aliases := make(map[string]string) // name as written -> surviving name
	for i, raw := range resp.Modules {
		var m architectModule
		if err := json.Unmarshal(raw, &m); err != nil {
			bp.Warnings = append(bp.Warnings, fmt.Sprintf("module %d skipped: %v", i, err))
			continue
		}
		m.Name = strings.TrimSpace(m.Name)
		if err := architectValidate.Struct(m); err != nil {
			bp.Warnings = append(bp.Warnings, fmt.Sprintf("module %d skipped: %v", i, err))
			continue
		}

		files := make([]string, 0, len(m.Files))
		for _, raw := range m.Files {
			p, ok := resolver.Resolve(raw)
			if !ok {
				continue
			}
			if _, taken := claimed[p]; taken {
				continue
			}
			claimed[p] = m.Name
			files = append(files, p)
		}
		if len(files) == 0 {
			bp.Warnings = append(bp.Warnings, fmt.Sprintf("module %q dropped: no resolvable files", m.Name))
			continue
		}

		name := uniqueName(m.Name, names)
		if _, seen := aliases[m.Name]; !seen {
			aliases[m.Name] = name
		}
		if _, seen := aliases[name]; !seen {
			aliases[name] = name
		}
		bp.Modules = append(bp.Modules, Module{
			Name:        name,
			Description: strings.TrimSpace(m.Description),
			Files:       files,
		})
	}
	if len(bp.Modules) == 0 {
		return nil, errors.New("no valid modules in response")
	}

	leftovers := make([]string, 0)
	for _, p := range inputOrder {
		if _, ok := claimed[p]; !ok {
			leftovers = append(leftovers, p)
			claimed[p] = OtherModuleName
		}
	}
	if len(leftovers) > 0 {
		bp.Modules = append(bp.Modules, Module{
			Name:        uniqueName(OtherModuleName, names),
			Description: "Files not assigned to a functional module",
			Files:       leftovers,
		})
	}

	seen := make(map[Relationship]bool)
	for _, raw := range resp.Relationships {
		var r architectRelationship
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		if architectValidate.Struct(r) != nil {
			continue
		}
		from, okFrom := aliases[strings.TrimSpace(r.From)]
		to, okTo := aliases[strings.TrimSpace(r.To)]
		if !okFrom || !okTo || from == to {
			continue
		}
		rel := Relationship{From: from, To: to, Label: strings.TrimSpace(r.Label)}
		if seen[rel] {
			continue
		}
		seen[rel] = true
		bp.Relationships = append(bp.Relationships, rel)
	}
	return bp, nil
}

// uniqueName suffixes duplicates with " 2", " 3", ... and records the result.
func uniqueName(name string, taken map[string]bool) string {
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s %d", name, n)
	}
	taken[candidate] = true
	return candidate
}

const architectSystemPrompt = `You are a software architect. You organise a codebase into functional modules
that a newcomer can navigate. You answer with JSON only.`

func architectPrompt(analyses []FileAnalysis, edges []ImportEdge) string {
	var b strings.Builder
	b.WriteString("Group the files below into 2 to 10 functional modules.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Group by functional cohesion: files that work together on one feature or capability belong together.\n")
	b.WriteString("- Do not use generic technical names such as Services, Utils, Helpers, Components, Hooks or Types.\n")
	b.WriteString("- Every file must appear in exactly one module. Use only paths from the list, copied verbatim.\n")
	b.WriteString("- Give each module a one or two sentence description.\n")
	b.WriteString("- List the dependencies between modules as relationships.\n\n")
	b.WriteString("Return JSON:\n")
	b.WriteString(`{"modules": [{"name": "...", "description": "...", "files": ["..."]}], "relationships": [{"from": "...", "to": "...", "label": "..."}]}`)
	b.WriteString("\n\nFiles (path | role | purpose):\n")
	for _, fa := range analyses {
		fmt.Fprintf(&b, "%s | %s | %s\n", fa.FilePath, fa.Role, fa.Purpose)
	}
	if len(edges) > 0 {
		b.WriteString("\nImports (from -> to):\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "%s -> %s\n", e.From, e.To)
		}
	}
	b.WriteString("\nValid paths:\n")
	for _, fa := range analyses {
		b.WriteString(fa.FilePath)
		b.WriteString("\n")
	}
	return b.String()
}
