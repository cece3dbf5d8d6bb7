package grouping

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
)

// Module is one functional group of files.
type Module struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

// Relationship is a named dependency between two modules.
type Relationship struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

const (
	AppShellModule = "App Shell"
	CoreModule     = "Core"
)

const (
	appShellDescription = "Entry points, layout and top-level UI composition"
	coreDescription     = "Shared types, models and core logic"
)

type pattern struct {
	re          *regexp.Regexp
	name        string
	description string
}

// patterns is ordered: the first match wins.
var patterns = []pattern{
	{
		re:          regexp.MustCompile(`(?i:chat|llm|openai|anthropic|prompt|embedding|completion|gpt)|ai[A-Z_-]|(^|/)ai(/|\.)`),
		name:        "AI & Chat",
		description: "Language-model integration, chat handling and prompt construction",
	},
	{
		re:          regexp.MustCompile(`_test\.go$|\.test\.|\.spec\.|(^|/)(tests?|__tests__|testdata|fixtures?)/|(?i:mock)`),
		name:        "Testing",
		description: "Test suites, fixtures and mocks",
	},
	{
		re:          regexp.MustCompile(`(?i)(auth|login|logout|session|oauth|passw|signup|signin|credential|permission)`),
		name:        "Authentication",
		description: "User identity, sessions and access control",
	},
	{
		re:          regexp.MustCompile(`(?i)((^|/|[._-])(db|sql|orm)([/._-]|$)|database|storage|repositor|persist|migration|cache|sqlite|redis)`),
		name:        "Data & Persistence",
		description: "Storage, databases, caching and data access",
	},
	{
		re:          regexp.MustCompile(`(?i)((^|/|[._-])(api|rpc)([/._-]|$)|http|fetch|request|route|endpoint|controller|handler|graphql|socket)`),
		name:        "API & Networking",
		description: "HTTP endpoints, request handling and remote clients",
	},
	{
		re:          regexp.MustCompile(`(?i)(config|settings|(^|/|[._-])env([/._-]|$)|constants|preferences)`),
		name:        "Configuration",
		description: "Settings, constants and environment configuration",
	},
	{
		re:          regexp.MustCompile(`(?i)(pars(e|er|ing)|lexer|tokeniz|scanner|analy[sz])`),
		name:        "Parsing & Analysis",
		description: "Source parsing, scanning and analysis",
	},
	{
		re:          regexp.MustCompile(`(?i)(graph|chart|diagram|canvas|render|viz|mermaid|plot)`),
		name:        "Visualization",
		description: "Graph, chart and diagram rendering",
	},
}

var (
	typeLikeWords  = []string{"type", "model", "schema", "interface", "constant", "config", "enum", "dto"}
	componentsDirs = []string{"components", "component", "ui", "views", "pages", "layouts", "screens", "widgets"}
)

type heuristicGroup struct {
	name        string
	description string
	files       []string
}

type heuristicGrouper struct {
	files  []analysis.AnalyzedFile
	index  map[string]int
	groups map[string]*heuristicGroup
	order  []string
	owner  map[string]string
	// targets[i][k] lists the files the k-th internal import of files[i]
	// loosely matches.
	targets [][][]string
}

// GroupHeuristically assigns every file to exactly one functional module
// without any network access. Modules come back sorted by descending size.
func GroupHeuristically(files []analysis.AnalyzedFile, aliasPrefixes []string) ([]Module, []Relationship) {
	h := &heuristicGrouper{
		files:  files,
		index:  make(map[string]int, len(files)),
		groups: make(map[string]*heuristicGroup),
		owner:  make(map[string]string, len(files)),
	}
	for i, f := range files {
		if _, dup := h.index[f.FilePath]; !dup {
			h.index[f.FilePath] = i
		}
	}
	h.matchImports(analysis.AliasPrefixesOrDefault(aliasPrefixes))

	unmatched := make([]analysis.AnalyzedFile, 0)
	for i, f := range files {
		if h.index[f.FilePath] != i {
			continue
		}
		if p, ok := matchPattern(f.FilePath); ok {
			h.assign(f.FilePath, p.name, p.description)
			continue
		}
		unmatched = append(unmatched, f)
	}

	for _, f := range unmatched {
		if name, ok := h.bestAffinity(f); ok {
			h.assign(f.FilePath, name, "")
			continue
		}
		name, desc := structuralBucket(f.FilePath)
		h.assign(f.FilePath, name, desc)
	}

	h.mergeSmallGroups()
	return h.modules(), h.relationships()
}

func matchPattern(filePath string) (pattern, bool) {
	for _, p := range patterns {
		if p.re.MatchString(filePath) {
			return p, true
		}
	}
	return pattern{}, false
}

func structuralBucket(filePath string) (string, string) {
	stem := strings.ToLower(trimExt(path.Base(filePath)))
	dirs := strings.Split(strings.ToLower(path.Dir(filePath)), "/")
	switch {
	case analysis.IsEntryPoint(filePath):
		return AppShellModule, appShellDescription
	case strings.HasSuffix(stem, ".d") || containsAny(stem, typeLikeWords):
		return CoreModule, coreDescription
	case hasAny(dirs, componentsDirs):
		return AppShellModule, appShellDescription
	default:
		return CoreModule, coreDescription
	}
}

func (h *heuristicGrouper) assign(filePath, name, description string) {
	g, ok := h.groups[name]
	if !ok {
		g = &heuristicGroup{name: name, description: description}
		h.groups[name] = g
		h.order = append(h.order, name)
	}
	if g.description == "" {
		g.description = description
	}
	g.files = append(g.files, filePath)
	h.owner[filePath] = name
}

func (h *heuristicGrouper) matchImports(aliasPrefixes []string) {
	paths := make([]string, 0, len(h.index))
	for i, f := range h.files {
		if h.index[f.FilePath] == i {
			paths = append(paths, f.FilePath)
		}
	}
	sort.Strings(paths)

	h.targets = make([][][]string, len(h.files))
	for i, f := range h.files {
		if h.index[f.FilePath] != i {
			continue
		}
		for _, imp := range f.Imports {
			if imp.IsExternal {
				continue
			}
			h.targets[i] = append(h.targets[i], matchImportCandidates(f.FilePath, imp.Source, paths, aliasPrefixes, true))
		}
	}
}

// importGroups returns, per internal import of f, the set of groups its
// loose match lands in. Unassigned targets are ignored.
func (h *heuristicGrouper) importGroups(filePath string) []map[string]bool {
	targets := h.targets[h.index[filePath]]
	out := make([]map[string]bool, 0, len(targets))
	for _, matches := range targets {
		hit := make(map[string]bool)
		for _, target := range matches {
			if name := h.owner[target]; name != "" {
				hit[name] = true
			}
		}
		out = append(out, hit)
	}
	return out
}

// bestAffinity picks the group most of f's imports point into. Ties and
// the absence of any signal report false.
func (h *heuristicGrouper) bestAffinity(f analysis.AnalyzedFile) (string, bool) {
	counts := make(map[string]int)
	for _, hit := range h.importGroups(f.FilePath) {
		for name := range hit {
			counts[name]++
		}
	}
	best, bestCount, tie := "", 0, false
	for _, name := range h.order {
		switch c := counts[name]; {
		case c > bestCount:
			best, bestCount, tie = name, c, false
		case c == bestCount && c > 0:
			tie = true
		}
	}
	if bestCount == 0 || tie {
		return "", false
	}
	return best, true
}

// affinities counts, for every ordered group pair, the imports from the
// files of the first group into the second.
func (h *heuristicGrouper) affinities() map[string]map[string]int {
	out := make(map[string]map[string]int, len(h.groups))
	for _, name := range h.order {
		counts := make(map[string]int)
		for _, p := range h.groups[name].files {
			for _, hit := range h.importGroups(p) {
				for to := range hit {
					counts[to]++
				}
			}
		}
		out[name] = counts
	}
	return out
}

func (h *heuristicGrouper) mergeSmallGroups() {
	for _, name := range append([]string(nil), h.order...) {
		g, ok := h.groups[name]
		if !ok || len(g.files) >= 2 || len(h.groups) <= 3 {
			continue
		}
		scores := h.affinities()[name]
		target, bestScore := "", -1
		for _, other := range h.order {
			og, ok := h.groups[other]
			if !ok || other == name {
				continue
			}
			score := scores[other]
			switch {
			case score > bestScore:
				target, bestScore = other, score
			case score == bestScore && len(og.files) > len(h.groups[target].files):
				target = other
			}
		}
		if target == "" {
			continue
		}
		for _, p := range g.files {
			h.groups[target].files = append(h.groups[target].files, p)
			h.owner[p] = target
		}
		delete(h.groups, name)
		h.order = removeString(h.order, name)
	}
}

func (h *heuristicGrouper) modules() []Module {
	out := make([]Module, 0, len(h.groups))
	for _, name := range h.order {
		g := h.groups[name]
		files := append([]string(nil), g.files...)
		sort.Slice(files, func(i, j int) bool { return h.index[files[i]] < h.index[files[j]] })
		out = append(out, Module{Name: g.name, Description: g.description, Files: files})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Files) != len(out[j].Files) {
			return len(out[i].Files) > len(out[j].Files)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (h *heuristicGrouper) relationships() []Relationship {
	matrix := h.affinities()
	out := make([]Relationship, 0)
	for _, from := range h.order {
		for _, to := range h.order {
			if from == to {
				continue
			}
			n := matrix[from][to]
			if n == 0 {
				continue
			}
			label := fmt.Sprintf("%d imports", n)
			if n == 1 {
				label = "1 import"
			}
			out = append(out, Relationship{From: from, To: to, Label: label})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func removeString(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
