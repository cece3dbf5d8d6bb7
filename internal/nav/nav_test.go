package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

const apiFile = "src/api.ts"

func sym(name string, line int) string { return graph.SymbolNodeID(apiFile, name, line) }

// callGraph: handle -> validate -> load, handle -> load, save isolated.
func callGraph(t *testing.T) *graph.CodeGraph {
	t.Helper()
	d := graph.NewDraft("ws", "repo", "demo")
	_, err := d.AddRoot("demo", "")
	require.NoError(t, err)
	_, err = d.AddChild(graph.RootID, graph.Node{ID: graph.ModuleNodeID("API"), Name: "API", Kind: graph.KindPackage})
	require.NoError(t, err)
	_, err = d.AddChild(graph.ModuleNodeID("API"), graph.Node{
		ID: graph.FileNodeID(apiFile), Name: apiFile, Kind: graph.KindModule, SourceRef: &graph.SourceRef{FilePath: apiFile},
	})
	require.NoError(t, err)
	for i, name := range []string{"handle", "validate", "load", "save"} {
		_, err = d.AddChild(graph.FileNodeID(apiFile), graph.Node{
			ID: sym(name, i+1), Name: name, Kind: graph.KindFunction,
			SourceRef: &graph.SourceRef{FilePath: apiFile, LineStart: i + 1},
		})
		require.NoError(t, err)
	}
	for _, e := range [][2]string{{"handle", "validate"}, {"validate", "load"}, {"handle", "load"}} {
		from, to := map[string]int{"handle": 1, "validate": 2, "load": 3}[e[0]], map[string]int{"handle": 1, "validate": 2, "load": 3}[e[1]]
		_, err = d.AddRelation(sym(e[0], from), sym(e[1], to), graph.RelCalls, e[1])
		require.NoError(t, err)
	}
	g, err := d.Finish()
	require.NoError(t, err)
	return g
}

func TestNeighbors(t *testing.T) {
	a := NewAdjacency(callGraph(t))

	callees := a.Neighbors(sym("handle", 1), Outgoing)
	require.Len(t, callees, 2)
	assert.Equal(t, "load", callees[0].Node.Name)
	assert.Equal(t, "validate", callees[1].Node.Name)
	assert.Equal(t, graph.RelCalls, callees[0].Type)
	assert.Equal(t, apiFile, callees[0].Node.File)

	callers := a.Neighbors(sym("load", 3), Incoming)
	require.Len(t, callers, 2)
	assert.Equal(t, "handle", callers[0].Node.Name)
	assert.Empty(t, a.Neighbors(sym("save", 4), Incoming))
}

func TestContainsIsNotNavigable(t *testing.T) {
	a := NewAdjacency(callGraph(t))
	assert.Empty(t, a.Neighbors(graph.FileNodeID(apiFile), Outgoing))

	withContains := NewAdjacency(callGraph(t), graph.RelContains)
	assert.Len(t, withContains.Neighbors(graph.FileNodeID(apiFile), Outgoing), 4)
}

func TestShortestPathAndTrace(t *testing.T) {
	a := NewAdjacency(callGraph(t))

	assert.Equal(t, []string{sym("handle", 1), sym("load", 3)}, a.ShortestPath(sym("handle", 1), sym("load", 3)))
	assert.Equal(t, []string{sym("save", 4)}, a.ShortestPath(sym("save", 4), sym("save", 4)))
	assert.Nil(t, a.ShortestPath(sym("load", 3), sym("handle", 1)))

	hops := a.Trace(sym("handle", 1), 2)
	require.Len(t, hops, 3)
	assert.Equal(t, 1, hops[0].Depth)
	assert.Equal(t, 2, hops[2].Depth)
	assert.Equal(t, "validate", hops[2].From.Name)
	assert.Len(t, a.Trace(sym("handle", 1), 0), 2)
	assert.Nil(t, a.Trace("missing", 3))
}

func TestResolve(t *testing.T) {
	g := callGraph(t)

	n, err := ResolveOne(g, nil, sym("load", 3))
	require.NoError(t, err)
	assert.Equal(t, "load", n.Name)

	n, err = ResolveOne(g, nil, "VALIDATE")
	require.NoError(t, err)
	assert.Equal(t, sym("validate", 2), n.ID)

	n, err = ResolveOne(g, nil, apiFile)
	require.NoError(t, err)
	assert.Equal(t, graph.FileNodeID(apiFile), n.ID)

	n, err = ResolveOne(g, nil, "valdate")
	require.NoError(t, err)
	assert.Equal(t, "validate", n.Name)

	_, err = ResolveOne(g, nil, "zzzzzzzz")
	assert.Error(t, err)
}
