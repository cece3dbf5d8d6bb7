package ignore

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_DefaultAndUserOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"vendor/**",
		"!vendor/keep/file.go",
		"*.tmp",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git/config", isDir: false, ignored: true},
		{path: ".atlas/graphs.db", isDir: false, ignored: true},
		{path: "node_modules/pkg/index.js", isDir: false, ignored: true},
		{path: "vendor/lib/a.go", isDir: false, ignored: true},
		{path: "vendor/keep/file.go", isDir: false, ignored: false},
		{path: "nested/cache.tmp", isDir: false, ignored: true},
		{path: "types/global.d.ts", isDir: false, ignored: true},
		{path: "src/main.go", isDir: false, ignored: false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ignored, m.ShouldIgnore(tc.path, tc.isDir), tc.path)
	}
}

func TestMatcher_NegatedDirectoryRule(t *testing.T) {
	m := NewMatcher([]string{
		"build/",
		"!build/include/",
	})

	assert.True(t, m.ShouldIgnore("build/out/file.go", false))
	assert.False(t, m.ShouldIgnore("build/include/file.go", false))
}

func TestMatcher_Gitignore(t *testing.T) {
	fsys := fstest.MapFS{
		".gitignore": {Data: []byte("# generated\ngenerated/\n*.log\n")},
	}
	m := NewMatcher([]string{"!keep.log"})
	require.NoError(t, m.LoadGitignore(fsys))

	assert.True(t, m.ShouldIgnore("generated/api.ts", false))
	assert.True(t, m.ShouldIgnore("logs/app.log", false))
	assert.False(t, m.ShouldIgnore("keep.log", false))
	assert.False(t, m.ShouldIgnore("src/app.ts", false))
}

func TestMatcher_MissingGitignore(t *testing.T) {
	m := NewMatcher(nil)
	require.NoError(t, m.LoadGitignore(fstest.MapFS{}))
	assert.False(t, m.ShouldIgnore("src/app.ts", false))
}
