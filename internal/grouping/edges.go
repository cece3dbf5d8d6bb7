package grouping

import (
	"path"
	"sort"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
)

// ImportEdge is a deduplicated file-to-file import.
type ImportEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ImportEdges derives file-level edges from internal imports by matching
// normalized specifiers against file paths. It does not use the graph
// builder's resolver; aliasPrefixes defaults like the scanner's.
func ImportEdges(files []analysis.AnalyzedFile, aliasPrefixes []string) []ImportEdge {
	aliasPrefixes = analysis.AliasPrefixesOrDefault(aliasPrefixes)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}

	seen := make(map[ImportEdge]bool)
	out := make([]ImportEdge, 0)
	for _, f := range files {
		for _, imp := range f.Imports {
			if imp.IsExternal {
				continue
			}
			for _, target := range matchImportCandidates(f.FilePath, imp.Source, paths, aliasPrefixes, false) {
				edge := ImportEdge{From: f.FilePath, To: target}
				if target == f.FilePath || seen[edge] {
					continue
				}
				seen[edge] = true
				out = append(out, edge)
			}
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

func matchImportCandidates(sourceFile, importPath string, allFiles, aliasPrefixes []string, loose bool) []string {
	matches := make([]string, 0, 1)
	for _, candidate := range allFiles {
		if candidate == sourceFile {
			continue
		}
		if importMatchesFile(sourceFile, importPath, candidate, aliasPrefixes) || (loose && importMatchesBasename(importPath, candidate)) {
			matches = append(matches, candidate)
		}
	}
	return matches
}

func importMatchesFile(sourceFile, importPath, targetFile string, aliasPrefixes []string) bool {
	targetNoExt := trimExt(targetFile)
	targetDir := path.Dir(targetFile)
	indexFile := isIndexFile(targetFile)

	if strings.HasPrefix(importPath, ".") {
		resolved := path.Clean(path.Join(path.Dir(sourceFile), importPath))
		return resolved == targetFile || resolved == targetNoExt || (indexFile && resolved == targetDir)
	}

	normalized := strings.TrimPrefix(stripAlias(importPath, aliasPrefixes), "/")
	if normalized == "" {
		return false
	}
	return normalized == targetFile ||
		normalized == targetNoExt ||
		strings.HasSuffix(targetNoExt, "/"+normalized) ||
		(indexFile && (normalized == targetDir || strings.HasSuffix(targetDir, "/"+normalized)))
}

// importMatchesBasename is the loose form used for affinity scoring.
func importMatchesBasename(importPath, targetFile string) bool {
	spec := strings.TrimRight(importPath, "/")
	base := trimExt(path.Base(spec))
	if base == "" || base == "." || base == ".." {
		return false
	}
	return base == trimExt(path.Base(targetFile))
}

func stripAlias(spec string, aliasPrefixes []string) string {
	for _, prefix := range aliasPrefixes {
		if prefix != "" && strings.HasPrefix(spec, prefix) {
			return strings.TrimPrefix(spec, prefix)
		}
	}
	return spec
}

func isIndexFile(p string) bool {
	stem := trimExt(path.Base(p))
	return stem == "index" || stem == "__init__" || stem == "mod"
}
