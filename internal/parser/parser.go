package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// LanguageParser defines the interface each language must implement
type LanguageParser interface {
	// Language returns the language name (e.g., "go", "python")
	Language() string

	// Extensions returns file extensions this parser handles
	Extensions() []string

	// Parse extracts symbols from source code
	Parse(filename string, content []byte) (*FileSymbols, error)
}

// Registry holds all registered language parsers
type Registry struct {
	parsers   map[string]LanguageParser // language name -> parser
	extToLang map[string]string         // extension -> language name
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers:   make(map[string]LanguageParser),
		extToLang: make(map[string]string),
	}
}

// Register adds a language parser to the registry
func (r *Registry) Register(p LanguageParser) {
	lang := p.Language()
	r.parsers[lang] = p
	for _, ext := range p.Extensions() {
		r.extToLang[ext] = lang
	}
}

// Restrict drops every parser whose language is not listed. An empty list keeps all.
func (r *Registry) Restrict(languages []string) {
	if len(languages) == 0 {
		return
	}
	keep := make(map[string]bool, len(languages))
	for _, lang := range languages {
		keep[strings.ToLower(strings.TrimSpace(lang))] = true
	}
	for lang := range r.parsers {
		if !keep[lang] {
			delete(r.parsers, lang)
		}
	}
	for ext, lang := range r.extToLang {
		if !keep[lang] {
			delete(r.extToLang, ext)
		}
	}
}

// GetParserForFile returns the appropriate parser for a file
func (r *Registry) GetParserForFile(filename string) (LanguageParser, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	parser, ok := r.parsers[lang]
	return parser, ok
}

// Supports reports whether some registered parser handles filename.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.GetParserForFile(filename)
	return ok
}

// SupportedExtensions returns all supported file extensions
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ParseFile parses file content and returns its symbols. Unsupported files
// return nil without error.
func (r *Registry) ParseFile(path string, content []byte) (*FileSymbols, error) {
	parser, ok := r.GetParserForFile(path)
	if !ok {
		return nil, nil
	}

	symbols, err := parser.Parse(path, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	symbols.Path = path
	symbols.Imports = normalizeImports(symbols.Imports)
	symbols.ImportAliases = normalizeImportAliases(symbols.ImportAliases)
	lines := strings.Count(string(content), "\n") + 1
	for i := range symbols.Symbols {
		symbols.Symbols[i].Calls = normalizeCallSites(symbols.Symbols[i].Calls)
		if symbols.Symbols[i].EndLine < symbols.Symbols[i].Line {
			symbols.Symbols[i].EndLine = symbols.Symbols[i].Line
		}
		if symbols.Symbols[i].EndLine > lines {
			symbols.Symbols[i].EndLine = lines
		}
	}

	symbols.Hash = HashContent(content)

	return symbols, nil
}

// ExtractRelations parses content and returns its class hierarchy and the
// calls made by each declared symbol.
func (r *Registry) ExtractRelations(path string, content []byte) (*FileRelations, error) {
	symbols, err := r.ParseFile(path, content)
	if err != nil {
		return nil, err
	}
	out := &FileRelations{Path: path}
	if symbols == nil {
		return out, nil
	}

	seenCalls := make(map[string]bool)
	for _, sym := range symbols.Symbols {
		for _, target := range sym.Extends {
			out.Heritage = append(out.Heritage, Heritage{Symbol: sym.Name, Target: target, Kind: HeritageExtends})
		}
		for _, target := range sym.Implements {
			out.Heritage = append(out.Heritage, Heritage{Symbol: sym.Name, Target: target, Kind: HeritageImplements})
		}
		for _, call := range sym.Calls {
			if call.Name == sym.Name {
				continue
			}
			key := sym.Name + "|" + call.Name
			if seenCalls[key] {
				continue
			}
			seenCalls[key] = true
			out.Calls = append(out.Calls, CallRef{From: sym.Name, To: call.Name})
		}
	}
	return out, nil
}

// HashContent returns the short sha256 digest used for sync snapshots.
func HashContent(content []byte) string {
	h := sha256.New()
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:16] // short hash
}

func normalizeImports(values []ImportRef) []ImportRef {
	if len(values) == 0 {
		return nil
	}

	index := make(map[string]int, len(values))
	out := make([]ImportRef, 0, len(values))
	for _, value := range values {
		value.Source = strings.TrimSpace(value.Source)
		if value.Source == "" {
			continue
		}
		if i, ok := index[value.Source]; ok {
			out[i].Names = append(out[i].Names, value.Names...)
			continue
		}
		index[value.Source] = len(out)
		out = append(out, ImportRef{Source: value.Source, Names: append([]string(nil), value.Names...)})
	}
	for i := range out {
		out[i].Names = normalizeStrings(out[i].Names)
	}
	return out
}

func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}

func normalizeCallSites(values []CallSite) []CallSite {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(values))
	out := make([]CallSite, 0, len(values))
	for _, value := range values {
		value.Name = strings.TrimSpace(value.Name)
		value.Qualifier = strings.TrimSpace(value.Qualifier)
		value.Receiver = strings.TrimSpace(value.Receiver)
		value.Raw = strings.TrimSpace(value.Raw)
		if value.Name == "" {
			continue
		}

		key := strings.Join([]string{
			value.Name,
			value.Qualifier,
			value.Receiver,
			fmt.Sprintf("%d", value.Arity),
			fmt.Sprintf("%d", value.Line),
		}, "|")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, value)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		if out[i].Qualifier != out[j].Qualifier {
			return out[i].Qualifier < out[j].Qualifier
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Receiver != out[j].Receiver {
			return out[i].Receiver < out[j].Receiver
		}
		return out[i].Raw < out[j].Raw
	})

	return out
}

func normalizeImportAliases(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}

	out := make(map[string]string, len(values))
	for alias, target := range values {
		alias = strings.TrimSpace(alias)
		target = strings.TrimSpace(target)
		if alias == "" || target == "" {
			continue
		}
		out[alias] = target
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
