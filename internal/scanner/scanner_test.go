package scanner

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/analysis"
	"github.com/codeatlas-dev/codeatlas/internal/events"
)

func sampleFS() fstest.MapFS {
	return fstest.MapFS{
		"go.mod":     {Data: []byte("module example.com/app\n\ngo 1.22\n")},
		".gitignore": {Data: []byte("generated/\n")},
		"cmd/app/main.go": {Data: []byte(`package main

import (
	"fmt"
	"example.com/app/internal/store"
)

func main() { fmt.Println(store.Open()) }
`)},
		"internal/store/store.go": {Data: []byte(`package store

func Open() string { return "ok" }
`)},
		"src/components/Button.tsx": {Data: []byte(`import { Icon } from "./Icon";
import { fetchItems } from "@/lib/api";
export function Button() { return <Icon />; }
`)},
		"src/components/Icon.tsx": {Data: []byte(`export const Icon = () => null;
`)},
		"src/lib/api.ts": {Data: []byte(`import axios from "axios";
export async function fetchItems() { return axios.get("/items"); }
`)},
		"app.py": {Data: []byte(`from models import User

def main():
    User()
`)},
		"models.py":          {Data: []byte("class User:\n    pass\n")},
		"generated/types.ts": {Data: []byte("export type X = string;\n")},
		"README.md":          {Data: []byte("# readme\n")},
	}
}

func TestScanFSBuildsAnalysis(t *testing.T) {
	var warnings []events.Event
	rep := &events.Reporter{Log: func(ev events.Event) {
		if ev.Level > 0 {
			warnings = append(warnings, ev)
		}
	}}

	a, err := ScanFS(context.Background(), sampleFS(), Options{Reporter: rep})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, []string{
		"app.py",
		"cmd/app/main.go",
		"internal/store/store.go",
		"models.py",
		"src/components/Button.tsx",
		"src/components/Icon.tsx",
		"src/lib/api.ts",
	}, a.FilePaths())
	assert.Equal(t, 7, a.TotalFiles)

	files := a.FileByPath()

	mainImports := files["cmd/app/main.go"].Imports
	require.Len(t, mainImports, 2)
	assert.True(t, mainImports[0].IsExternal)
	assert.Equal(t, "../../internal/store/store.go", mainImports[1].Source)
	assert.False(t, mainImports[1].IsExternal)

	buttonImports := files["src/components/Button.tsx"].Imports
	require.Len(t, buttonImports, 2)
	assert.Equal(t, "Icon", buttonImports[0].Name)
	assert.False(t, buttonImports[1].IsExternal)
	assert.Equal(t, []string{"Button"}, files["src/components/Button.tsx"].ExportedSymbols)

	appImports := files["app.py"].Imports
	require.Len(t, appImports, 1)
	assert.Equal(t, "./models.py", appImports[0].Source)

	assert.Equal(t, []string{"axios"}, a.ExternalDeps)
	assert.ElementsMatch(t, []string{"app.py", "cmd/app/main.go"}, a.EntryPoints)

	modules := make(map[string]analysis.Module)
	for _, m := range a.Modules {
		modules[m.Name] = m
	}
	require.Contains(t, modules, "root")
	require.Contains(t, modules, "cmd")
	require.Contains(t, modules, "internal")
	require.Contains(t, modules, "src/components")
	require.Contains(t, modules, "src/lib")
	assert.Equal(t, []string{"internal"}, modules["cmd"].Dependencies)
	assert.Equal(t, []string{"src/lib"}, modules["src/components"].Dependencies)
	assert.ElementsMatch(t, []string{"app.py", "models.py"}, modules["root"].Files)
}

func TestScanFSHonorsConfiguredIgnores(t *testing.T) {
	a, err := ScanFS(context.Background(), sampleFS(), Options{Ignore: []string{"src/"}})
	require.NoError(t, err)
	for _, p := range a.FilePaths() {
		assert.NotContains(t, p, "src/")
	}
}

func TestScanFSStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ScanFS(ctx, sampleFS(), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRelativeSpec(t *testing.T) {
	assert.Equal(t, "./models.py", relativeSpec("app.py", "models.py"))
	assert.Equal(t, "./b.go", relativeSpec("pkg/a.go", "pkg/b.go"))
	assert.Equal(t, "../../internal/x.go", relativeSpec("cmd/app/main.go", "internal/x.go"))
	assert.Equal(t, "./sub/x.go", relativeSpec("pkg/a.go", "pkg/sub/x.go"))
}
