package grouping

import (
	"path"
	"sort"
	"strings"
)

// PathResolver maps loosely written paths (as returned by a model) onto a
// known path set. It never guesses: a basename shared by two or more known
// files resolves to no match.
type PathResolver struct {
	known  map[string]bool
	noExt  map[string][]string
	base   map[string][]string
	stem   map[string][]string
	sorted []string
}

func NewPathResolver(known []string) *PathResolver {
	r := &PathResolver{
		known: make(map[string]bool, len(known)),
		noExt: make(map[string][]string),
		base:  make(map[string][]string),
		stem:  make(map[string][]string),
	}
	for _, p := range known {
		if r.known[p] {
			continue
		}
		r.known[p] = true
		r.sorted = append(r.sorted, p)
		b := path.Base(p)
		r.noExt[trimExt(p)] = append(r.noExt[trimExt(p)], p)
		r.base[b] = append(r.base[b], p)
		r.stem[trimExt(b)] = append(r.stem[trimExt(b)], p)
	}
	sort.Strings(r.sorted)
	return r
}

// Known reports whether p is in the known set verbatim.
func (r *PathResolver) Known(p string) bool {
	return r.known[p]
}

// Paths returns the known set in sorted order.
func (r *PathResolver) Paths() []string {
	return append([]string(nil), r.sorted...)
}

// Resolve tries, in order: exact, normalized, extension-stripped, unique
// path suffix, unique basename, unique basename without extension.
func (r *PathResolver) Resolve(raw string) (string, bool) {
	if r.known[raw] {
		return raw, true
	}
	p := normalizePath(raw)
	if p == "" {
		return "", false
	}
	if r.known[p] {
		return p, true
	}
	if match, ok := single(r.noExt[trimExt(p)]); ok {
		return match, true
	}
	if strings.Contains(p, "/") {
		if match, ok := single(r.suffixMatches(p)); ok {
			return match, true
		}
	}
	b := path.Base(p)
	if candidates := r.base[b]; len(candidates) > 0 {
		return single(candidates)
	}
	return single(r.stem[trimExt(b)])
}

func (r *PathResolver) suffixMatches(p string) []string {
	out := make([]string, 0, 1)
	noExt := trimExt(p)
	for _, k := range r.sorted {
		if strings.HasSuffix(k, "/"+p) || strings.HasSuffix(trimExt(k), "/"+noExt) {
			out = append(out, k)
		}
	}
	return out
}

func single(candidates []string) (string, bool) {
	if len(candidates) != 1 {
		return "", false
	}
	return candidates[0], true
}

func normalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.Trim(p, "\"'`")
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

func trimExt(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}
