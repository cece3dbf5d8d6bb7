package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

func runBackendTests(t *testing.T, b Backend) {
	ctx := context.Background()

	_, err := b.Get(ctx, "graphs/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Put(ctx, "graphs/ws/a", []byte("one")))
	require.NoError(t, b.Put(ctx, "graphs/ws/b", []byte("two")))
	require.NoError(t, b.Put(ctx, "graphs/other/c", []byte("three")))
	require.NoError(t, b.Put(ctx, "graphs/ws/a", []byte("uno")))

	got, err := b.Get(ctx, "graphs/ws/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), got)

	keys, err := b.Keys(ctx, "graphs/ws/")
	require.NoError(t, err)
	assert.Equal(t, []string{"graphs/ws/a", "graphs/ws/b"}, keys)

	require.NoError(t, b.Delete(ctx, "graphs/ws/a"))
	_, err = b.Get(ctx, "graphs/ws/a")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, b.Delete(ctx, "graphs/ws/a"))
}

func TestMemoryBackend(t *testing.T) {
	runBackendTests(t, NewMemoryBackend())
}

func TestSQLiteBackend(t *testing.T) {
	b, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "atlas.db"))
	require.NoError(t, err)
	defer b.Close()
	runBackendTests(t, b)
}

func TestSQLiteKeysTreatsPrefixLiterally(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "atlas.db"))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Put(ctx, "a%b/1", []byte("x")))
	require.NoError(t, b.Put(ctx, "axb/2", []byte("y")))
	keys, err := b.Keys(ctx, "a%b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a%b/1"}, keys)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackend(client, "test:")
	defer b.Close()
	runBackendTests(t, b)
	assert.True(t, mr.Exists("test:graphs/ws/b"))
}

func TestEncryptedBackend(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryBackend()
	enc, err := NewEncryptedBackend(ctx, inner, "correct horse")
	require.NoError(t, err)
	runBackendTests(t, enc)

	require.NoError(t, enc.Put(ctx, "k", []byte("secret value")))
	raw, err := inner.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	again, err := NewEncryptedBackend(ctx, inner, "correct horse")
	require.NoError(t, err)
	got, err := again.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret value"), got)

	wrong, err := NewEncryptedBackend(ctx, inner, "battery staple")
	require.NoError(t, err)
	_, err = wrong.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrDecrypt)

	require.NoError(t, inner.Put(ctx, "moved", raw))
	_, err = enc.Get(ctx, "moved")
	assert.ErrorIs(t, err, ErrDecrypt)

	keys, err := enc.Keys(ctx, "")
	require.NoError(t, err)
	assert.NotContains(t, keys, saltKey)
}

func sampleGraph(t *testing.T, name string) *graph.CodeGraph {
	t.Helper()
	d := graph.NewDraft("ws", "repo", name)
	_, err := d.AddRoot(name, "")
	require.NoError(t, err)
	_, err = d.AddChild(graph.RootID, graph.Node{ID: "module:Core", Name: "Core", Kind: graph.KindPackage})
	require.NoError(t, err)
	_, err = d.AddChild("module:Core", graph.Node{ID: "file:main.go", Name: "main.go", Kind: graph.KindModule,
		SourceRef: &graph.SourceRef{FilePath: "main.go", ContentHash: "abc"}})
	require.NoError(t, err)
	g, err := d.Finish()
	require.NoError(t, err)
	return g
}

func TestGraphStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "atlas.db"))
	require.NoError(t, err)
	s, err := NewGraphStore(b)
	require.NoError(t, err)
	defer s.Close()

	g := sampleGraph(t, "demo")
	require.NoError(t, s.Save(ctx, g))

	loaded, err := s.Load(ctx, "ws", g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, loaded.ID)
	assert.Equal(t, g.Nodes, loaded.Nodes)
	assert.Equal(t, g.Relations, loaded.Relations)
	assert.True(t, g.CreatedAt.Equal(loaded.CreatedAt))
	require.NoError(t, loaded.Validate())

	other := sampleGraph(t, "second")
	require.NoError(t, s.Save(ctx, other))

	infos, err := s.List(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 3, infos[0].Nodes)

	empty, err := s.List(ctx, "elsewhere")
	require.NoError(t, err)
	assert.Empty(t, empty)

	info, err := s.Resolve(ctx, "ws", "second")
	require.NoError(t, err)
	assert.Equal(t, other.ID, info.ID)

	require.NoError(t, s.Delete(ctx, "ws", g.ID))
	_, err = s.Load(ctx, "ws", g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "ws", g.ID), ErrNotFound)

	infos, err = s.List(ctx, "ws")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Options{Kind: KindMemory, Passphrase: "pw"})
	require.NoError(t, err)
	_, ok := b.(*EncryptedBackend)
	assert.True(t, ok)

	_, err = Open(ctx, Options{Kind: "etcd"})
	assert.Error(t, err)
}
