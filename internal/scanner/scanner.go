// Package scanner walks a source tree and produces the codebase analysis
// consumed by graph construction.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/events"
	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
	"github.com/codeatlas-dev/codeatlas/internal/ignore"
	"github.com/codeatlas-dev/codeatlas/internal/languages"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
)

type Options struct {
	// Registry defaults to languages.NewDefaultRegistry.
	Registry      *parser.Registry
	Ignore        []string
	AliasPrefixes []string
	Reporter      *events.Reporter
}

// Scan walks root on the local filesystem.
func Scan(ctx context.Context, root string, opts Options) (*analysis.CodebaseAnalysis, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return ScanFS(ctx, os.DirFS(root), opts)
}

// ScanFS walks fsys, parses every supported file and assembles the analysis.
// Unreadable or unparsable files are reported and skipped.
func ScanFS(ctx context.Context, fsys fs.FS, opts Options) (*analysis.CodebaseAnalysis, error) {
	registry := opts.Registry
	if registry == nil {
		registry = languages.NewDefaultRegistry()
	}
	aliasPrefixes := analysis.AliasPrefixesOrDefault(opts.AliasPrefixes)
	rep := opts.Reporter

	matcher := ignore.NewMatcher(opts.Ignore)
	if err := matcher.LoadGitignore(fsys); err != nil {
		rep.Warn(events.CategoryScan, "failed to read .gitignore", err.Error())
	}

	paths, err := collectPaths(ctx, fsys, matcher, registry, rep)
	if err != nil {
		return nil, err
	}
	rep.Info(events.CategoryScan, fmt.Sprintf("found %d source files", len(paths)), nil)

	parsed := make([]*parser.FileSymbols, 0, len(paths))
	sizes := make(map[string]int64, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Step("scan", i+1, len(paths))

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			rep.Warn(events.CategoryParse, "failed to read file", map[string]string{"file": p, "error": err.Error()})
			continue
		}
		symbols, err := registry.ParseFile(p, content)
		if err != nil {
			rep.Warn(events.CategoryParse, "failed to parse file", map[string]string{"file": p, "error": err.Error()})
			continue
		}
		if symbols == nil {
			continue
		}
		parsed = append(parsed, symbols)
		sizes[p] = int64(len(content))
	}

	r := &resolver{
		known:         make(map[string]bool, len(parsed)),
		aliasPrefixes: aliasPrefixes,
		goModule:      readGoModule(fsys),
	}
	for _, fsyms := range parsed {
		r.known[fsyms.Path] = true
	}

	out := &analysis.CodebaseAnalysis{
		Files: make([]analysis.AnalyzedFile, 0, len(parsed)),
	}
	external := make(map[string]bool)
	for _, fsyms := range parsed {
		file := analysis.AnalyzedFile{
			FilePath:        fsyms.Path,
			Language:        fsyms.Language,
			ExportedSymbols: fsyms.Exports(),
			Size:            sizes[fsyms.Path],
		}
		for _, sym := range fsyms.Symbols {
			file.Symbols = append(file.Symbols, analysis.Symbol{
				Name:      sym.Name,
				Kind:      sym.Kind.String(),
				LineStart: sym.Line,
				LineEnd:   sym.EndLine,
			})
		}
		for _, ref := range fsyms.Imports {
			imp := r.classify(fsyms.Path, fsyms.Language, ref)
			if imp.IsExternal {
				if root := analysis.ExternalPackageRoot(imp.Source); root != "" && !isStdlib(fsyms.Language, imp.Source) {
					external[root] = true
				}
			}
			file.Imports = append(file.Imports, imp)
		}
		out.Files = append(out.Files, file)
		out.TotalSymbols += len(file.Symbols)
		if analysis.IsEntryPoint(file.FilePath) {
			out.EntryPoints = append(out.EntryPoints, file.FilePath)
		}
	}
	out.TotalFiles = len(out.Files)
	out.ExternalDeps = fileutil.MapKeysSorted(external)
	out.Modules = directoryModules(out, aliasPrefixes)

	return out, nil
}

func collectPaths(ctx context.Context, fsys fs.FS, matcher *ignore.Matcher, registry *parser.Registry, rep *events.Reporter) ([]string, error) {
	paths := make([]string, 0)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			rep.Warn(events.CategoryScan, "walk error", map[string]string{"file": p, "error": walkErr.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == "." {
			return nil
		}
		if matcher.ShouldIgnore(p, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if registry.Supports(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

type resolver struct {
	known         map[string]bool
	aliasPrefixes []string
	goModule      string
}

// classify decides whether an import is internal and rewrites internal
// module-path imports (Go packages, dotted Python modules) into relative
// specifiers that resolve against the known file set.
func (r *resolver) classify(fromFile, language string, ref parser.ImportRef) analysis.Import {
	imp := analysis.Import{Source: ref.Source}
	if len(ref.Names) > 0 {
		imp.Name = ref.Names[0]
	}

	if analysis.IsInternalSpecifier(ref.Source, r.aliasPrefixes) {
		return imp
	}

	switch language {
	case "go":
		if r.goModule != "" && (ref.Source == r.goModule || strings.HasPrefix(ref.Source, r.goModule+"/")) {
			dir := strings.TrimPrefix(strings.TrimPrefix(ref.Source, r.goModule), "/")
			if target := r.goPackageFile(dir); target != "" {
				imp.Source = relativeSpec(fromFile, target)
				return imp
			}
		}
	case "python":
		modPath := strings.ReplaceAll(ref.Source, ".", "/")
		for _, base := range []string{modPath, path.Join("src", modPath)} {
			if target, ok := analysis.ResolveCandidates(base, r.known); ok {
				imp.Source = relativeSpec(fromFile, target)
				return imp
			}
		}
	}

	imp.IsExternal = true
	return imp
}

// goPackageFile picks the file that stands for a Go package directory: the
// one named after the directory, else doc.go, else the first non-test file.
func (r *resolver) goPackageFile(dir string) string {
	candidates := make([]string, 0)
	for p := range r.known {
		if path.Dir(p) == dirOrDot(dir) && strings.HasSuffix(p, ".go") && !strings.HasSuffix(p, "_test.go") {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	for _, preferred := range []string{path.Base(dir) + ".go", "doc.go"} {
		for _, c := range candidates {
			if path.Base(c) == preferred {
				return c
			}
		}
	}
	return candidates[0]
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func relativeSpec(fromFile, target string) string {
	fromDir := strings.Split(path.Dir(fromFile), "/")
	if fromDir[0] == "." {
		fromDir = nil
	}
	targetParts := strings.Split(target, "/")
	common := 0
	for common < len(fromDir) && common < len(targetParts)-1 && fromDir[common] == targetParts[common] {
		common++
	}
	ups := len(fromDir) - common
	rest := strings.Join(targetParts[common:], "/")
	if ups == 0 {
		return "./" + rest
	}
	return strings.Repeat("../", ups) + rest
}

func readGoModule(fsys fs.FS) string {
	content, err := fs.ReadFile(fsys, "go.mod")
	if err != nil {
		return ""
	}
	return modfile.ModulePath(content)
}

func isStdlib(language, spec string) bool {
	switch language {
	case "go":
		first := strings.SplitN(spec, "/", 2)[0]
		return !strings.Contains(first, ".")
	case "typescript", "javascript":
		return strings.HasPrefix(spec, "node:")
	}
	return false
}

// directoryModules groups files by ModuleDir and derives module dependencies
// from resolved internal imports.
func directoryModules(a *analysis.CodebaseAnalysis, aliasPrefixes []string) []analysis.Module {
	byName := make(map[string]*analysis.Module)
	owner := make(map[string]string, len(a.Files))
	known := make(map[string]bool, len(a.Files))
	for _, f := range a.Files {
		known[f.FilePath] = true
	}
	for _, f := range a.Files {
		name := analysis.ModuleDir(f.FilePath)
		m, ok := byName[name]
		if !ok {
			m = &analysis.Module{Name: name, Path: name}
			if name == "root" {
				m.Path = "."
			}
			byName[name] = m
		}
		m.Files = append(m.Files, f.FilePath)
		owner[f.FilePath] = name
	}

	deps := make(map[string]map[string]bool)
	for _, f := range a.Files {
		from := owner[f.FilePath]
		for _, imp := range f.Imports {
			if imp.IsExternal {
				continue
			}
			target, ok := analysis.ResolveImport(f.FilePath, imp.Source, aliasPrefixes, known)
			if !ok {
				continue
			}
			if to := owner[target]; to != from {
				if deps[from] == nil {
					deps[from] = make(map[string]bool)
				}
				deps[from][to] = true
			}
		}
	}

	names := fileutil.MapKeysSorted(byName)
	out := make([]analysis.Module, 0, len(names))
	for _, name := range names {
		m := byName[name]
		m.Dependencies = fileutil.MapKeysSorted(deps[name])
		m.Description = fmt.Sprintf("%d files under %s", len(m.Files), m.Path)
		out = append(out, *m)
	}
	return out
}
