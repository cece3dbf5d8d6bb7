package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
)

const (
	BlockStart = "<!-- atlas:managed:start -->"
	BlockEnd   = "<!-- atlas:managed:end -->"
)

// UpsertFile replaces the managed block in path with body, appending one
// when the file has none. Text outside the markers is preserved.
func UpsertFile(path, body string) (bool, error) {
	existing := ""
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	managed := fmt.Sprintf("%s\n%s\n%s", BlockStart, strings.TrimSpace(body), BlockEnd)
	return fileutil.WriteIfChangedTracked(path, []byte(Upsert(existing, managed)))
}

func Upsert(existing, managed string) string {
	if existing == "" {
		return managed + "\n"
	}

	start := strings.Index(existing, BlockStart)
	end := strings.Index(existing, BlockEnd)
	if start >= 0 && end >= start {
		end += len(BlockEnd)
		return fileutil.EnsureTrailingNewline(existing[:start] + managed + existing[end:])
	}
	return fileutil.EnsureTrailingNewline(existing) + "\n" + managed + "\n"
}

// HasBlock reports whether path already carries both markers.
func HasBlock(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	text := string(data)
	return strings.Contains(text, BlockStart) && strings.Contains(text, BlockEnd)
}
