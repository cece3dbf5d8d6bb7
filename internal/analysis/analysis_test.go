package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aliasedAnalysis() *CodebaseAnalysis {
	return &CodebaseAnalysis{Files: []AnalyzedFile{
		{FilePath: "app/main.ts", Imports: []Import{{Source: "#/lib/u"}, {Source: "@/lib/v"}}},
		{FilePath: "lib/u.ts"},
		{FilePath: "src/lib/v.ts"},
	}}
}

func regroupModules() []Module {
	return []Module{
		{Name: "App", Files: []string{"app/main.ts"}},
		{Name: "Lib", Files: []string{"lib/u.ts"}},
		{Name: "Src", Files: []string{"src/lib/v.ts"}},
	}
}

func TestRegroupResolvesConfiguredAliases(t *testing.T) {
	a := aliasedAnalysis()
	out := a.Regroup(regroupModules(), []string{"#/"})
	require.Len(t, out.Modules, 3)
	assert.Equal(t, []string{"Lib"}, out.Modules[0].Dependencies)
	assert.Empty(t, a.Modules)
}

func TestRegroupDefaultsAliases(t *testing.T) {
	out := aliasedAnalysis().Regroup(regroupModules(), nil)
	assert.Equal(t, []string{"Src"}, out.Modules[0].Dependencies)
}

func TestResolveImport(t *testing.T) {
	known := map[string]bool{"src/lib/v.ts": true, "lib/index.ts": true, "pkg/__init__.py": true}
	tests := []struct {
		from, spec string
		want       string
		ok         bool
	}{
		{"src/a.ts", "./lib/v", "src/lib/v.ts", true},
		{"app/x.ts", "~/lib/v", "src/lib/v.ts", true},
		{"app/x.ts", "../lib", "lib/index.ts", true},
		{"app/x.py", "../pkg", "pkg/__init__.py", true},
		{"app/x.ts", "#/lib/v", "", false},
		{"app/x.ts", "react", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveImport(tt.from, tt.spec, DefaultAliasPrefixes, known)
		assert.Equal(t, tt.ok, ok, tt.spec)
		assert.Equal(t, tt.want, got, tt.spec)
	}
}
