package analysis

import (
	"path"
	"strings"
)

var entryBasenames = map[string]bool{
	"main":     true,
	"index":    true,
	"app":      true,
	"server":   true,
	"cli":      true,
	"__main__": true,
	"manage":   true,
	"wsgi":     true,
	"asgi":     true,
}

// IsEntryPoint reports whether a file path follows an entry-point naming
// convention. index files only count at the repository root or directly
// under src/.
func IsEntryPoint(filePath string) bool {
	base := strings.ToLower(path.Base(filePath))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if !entryBasenames[stem] {
		return false
	}
	if stem == "index" {
		dir := path.Dir(filePath)
		return dir == "." || dir == "src"
	}
	return true
}

// ModuleDir returns the directory-module a path belongs to: its first path
// segment, one level deeper under src/, and "root" for top-level files.
func ModuleDir(filePath string) string {
	parts := strings.Split(path.Clean(filePath), "/")
	if len(parts) == 1 {
		return "root"
	}
	if parts[0] == "src" && len(parts) > 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// ExternalPackageRoot reduces an external specifier to its package name:
// "@scope/pkg/sub" -> "@scope/pkg", "lodash/fp" -> "lodash",
// "github.com/a/b/c" -> "github.com/a/b", "os.path" -> "os".
func ExternalPackageRoot(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ""
	}
	parts := strings.Split(spec, "/")
	switch {
	case strings.HasPrefix(spec, "@") && len(parts) >= 2:
		return parts[0] + "/" + parts[1]
	case strings.Contains(parts[0], ".") && len(parts) >= 3:
		return strings.Join(parts[:3], "/")
	case len(parts) == 1 && strings.Contains(spec, ".") && !strings.HasPrefix(spec, "."):
		return strings.SplitN(spec, ".", 2)[0]
	default:
		return parts[0]
	}
}
