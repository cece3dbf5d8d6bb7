// Package analysis defines the scanner output consumed by graph construction
// and grouping.
package analysis

import (
	"path"
	"sort"
	"strings"
)

type Symbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
}

type Import struct {
	Source     string `json:"source"`
	Name       string `json:"name,omitempty"`
	IsExternal bool   `json:"is_external"`
}

type AnalyzedFile struct {
	FilePath        string   `json:"file_path"`
	Language        string   `json:"language"`
	Symbols         []Symbol `json:"symbols,omitempty"`
	Imports         []Import `json:"imports,omitempty"`
	ExportedSymbols []string `json:"exported_symbols,omitempty"`
	Size            int64    `json:"size"`
}

// PrimarySymbol is the first exported symbol, else the first declared one.
func (f AnalyzedFile) PrimarySymbol() string {
	if len(f.ExportedSymbols) > 0 {
		return f.ExportedSymbols[0]
	}
	if len(f.Symbols) > 0 {
		return f.Symbols[0].Name
	}
	return ""
}

type Module struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Path         string   `json:"path,omitempty"`
	Files        []string `json:"files"`
	Dependencies []string `json:"dependencies,omitempty"`
}

type CodebaseAnalysis struct {
	Modules      []Module       `json:"modules"`
	Files        []AnalyzedFile `json:"files"`
	ExternalDeps []string       `json:"external_deps,omitempty"`
	EntryPoints  []string       `json:"entry_points,omitempty"`
	TotalFiles   int            `json:"total_files"`
	TotalSymbols int            `json:"total_symbols"`
}

// FilePaths returns every analyzed file path in input order.
func (a *CodebaseAnalysis) FilePaths() []string {
	out := make([]string, 0, len(a.Files))
	for _, f := range a.Files {
		out = append(out, f.FilePath)
	}
	return out
}

// FileByPath indexes files by path.
func (a *CodebaseAnalysis) FileByPath() map[string]*AnalyzedFile {
	out := make(map[string]*AnalyzedFile, len(a.Files))
	for i := range a.Files {
		out[a.Files[i].FilePath] = &a.Files[i]
	}
	return out
}

// Regroup returns a copy of the analysis with its module list replaced.
// Module dependencies are recomputed from internal imports between the new
// groups, resolving aliased specifiers with aliasPrefixes (the defaults when
// empty). Callers pass a grouping that covers every file.
func (a *CodebaseAnalysis) Regroup(modules []Module, aliasPrefixes []string) *CodebaseAnalysis {
	aliasPrefixes = AliasPrefixesOrDefault(aliasPrefixes)
	out := *a
	out.Files = append([]AnalyzedFile(nil), a.Files...)
	out.Modules = make([]Module, len(modules))

	owner := make(map[string]string)
	for i, m := range modules {
		out.Modules[i] = Module{
			Name:        m.Name,
			Description: m.Description,
			Path:        m.Path,
			Files:       append([]string(nil), m.Files...),
		}
		for _, f := range m.Files {
			owner[f] = m.Name
		}
	}

	known := make(map[string]bool, len(a.Files))
	for _, f := range a.Files {
		known[f.FilePath] = true
	}
	deps := make(map[string]map[string]bool)
	for _, f := range a.Files {
		from := owner[f.FilePath]
		if from == "" {
			continue
		}
		for _, imp := range f.Imports {
			if imp.IsExternal {
				continue
			}
			target, ok := ResolveImport(f.FilePath, imp.Source, aliasPrefixes, known)
			if !ok {
				continue
			}
			to := owner[target]
			if to == "" || to == from {
				continue
			}
			if deps[from] == nil {
				deps[from] = make(map[string]bool)
			}
			deps[from][to] = true
		}
	}
	for i := range out.Modules {
		names := make([]string, 0, len(deps[out.Modules[i].Name]))
		for name := range deps[out.Modules[i].Name] {
			names = append(names, name)
		}
		sort.Strings(names)
		out.Modules[i].Dependencies = names
	}
	return &out
}

// ImportCandidates are tried in order when resolving an internal import.
var ImportCandidates = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".go", ".py"}

// DefaultAliasPrefixes are the path aliases treated as internal when the scan
// configuration names none.
var DefaultAliasPrefixes = []string{"@/", "~/"}

func AliasPrefixesOrDefault(prefixes []string) []string {
	if len(prefixes) == 0 {
		return DefaultAliasPrefixes
	}
	return prefixes
}

// IsInternalSpecifier reports whether spec is relative or alias-prefixed.
func IsInternalSpecifier(spec string, aliasPrefixes []string) bool {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".." {
		return true
	}
	for _, prefix := range aliasPrefixes {
		if prefix != "" && strings.HasPrefix(spec, prefix) {
			return true
		}
	}
	return false
}

// ResolveImport resolves a relative or alias-prefixed specifier. Aliased
// paths are tried from the repository root and from src/.
func ResolveImport(fromFile, spec string, aliasPrefixes []string, known map[string]bool) (string, bool) {
	if target, ok := ResolveRelative(fromFile, spec, known); ok {
		return target, true
	}
	for _, prefix := range aliasPrefixes {
		if prefix == "" || !strings.HasPrefix(spec, prefix) {
			continue
		}
		rest := strings.TrimPrefix(spec, prefix)
		if target, ok := ResolveCandidates(path.Clean(rest), known); ok {
			return target, true
		}
		if target, ok := ResolveCandidates(path.Join("src", rest), known); ok {
			return target, true
		}
	}
	return "", false
}

// ResolveRelative resolves a relative specifier from fromFile against the
// known path set using the fixed candidate list.
func ResolveRelative(fromFile, spec string, known map[string]bool) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") && spec != "." && spec != ".." {
		return "", false
	}
	base := path.Clean(path.Join(path.Dir(fromFile), spec))
	return ResolveCandidates(base, known)
}

// ResolveCandidates tries base as-is, with each extension, as a directory
// index and as a Python package.
func ResolveCandidates(base string, known map[string]bool) (string, bool) {
	base = strings.TrimPrefix(base, "./")
	if known[base] {
		return base, true
	}
	for _, ext := range ImportCandidates {
		if known[base+ext] {
			return base + ext, true
		}
	}
	for _, ext := range ImportCandidates {
		candidate := path.Join(base, "index"+ext)
		if known[candidate] {
			return candidate, true
		}
	}
	if candidate := path.Join(base, "__init__.py"); known[candidate] {
		return candidate, true
	}
	return "", false
}
