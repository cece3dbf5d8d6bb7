package languages

import (
	"path/filepath"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

func splitQualifiedName(raw string) (qualifier, name string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if idx := strings.LastIndex(raw, "."); idx != -1 {
		qualifier = strings.TrimSpace(raw[:idx])
		name = strings.TrimSpace(raw[idx+1:])
		return qualifier, name
	}
	return "", raw
}

func defaultImportAlias(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(base)
}

func mergeImportAliases(dst map[string]string, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for alias, target := range src {
		alias = strings.TrimSpace(alias)
		target = strings.TrimSpace(target)
		if alias == "" || target == "" {
			continue
		}
		dst[alias] = target
	}
	return dst
}

func splitAliasByAs(raw string) (base string, alias string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	parts := strings.Split(raw, " as ")
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), ""
	}
	base = strings.TrimSpace(strings.Join(parts[:len(parts)-1], " as "))
	alias = strings.TrimSpace(parts[len(parts)-1])
	return base, alias
}

// lineSpan returns the 1-based first and last line of node.
func lineSpan(node *sitter.Node) (int, int) {
	return int(node.StartPoint().Row) + 1, int(node.EndPoint().Row) + 1
}

// typeNames splits a heritage list such as "Base<T>, mixins.Other" into bare names.
func typeNames(raw string) []string {
	out := make([]string, 0)
	for _, part := range splitTopLevelCSV(raw) {
		part = strings.TrimSpace(part)
		if idx := strings.IndexAny(part, "<([{"); idx != -1 {
			part = part[:idx]
		}
		_, name := splitQualifiedName(part)
		name = strings.TrimSpace(strings.TrimPrefix(name, "*"))
		if name == "" || !isIdentifier(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}

func splitTopLevelCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := make([]string, 0)
	depth := 0
	start := 0
	for i, ch := range raw {
		switch ch {
		case '{', '<', '(', '[':
			depth++
		case '}', '>', ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(raw[start:]))
	return parts
}
