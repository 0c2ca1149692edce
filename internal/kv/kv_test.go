package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runStoreSuite(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "cfg", []byte(`{"mode":"strict"}`)))
	require.NoError(t, store.Set(ctx, "stale:alpha", []byte("1")))
	require.NoError(t, store.Set(ctx, "stale:beta", []byte("2")))

	value, ok, err := store.Get(ctx, "cfg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"mode":"strict"}`, string(value))

	keys, err := store.Keys(ctx, "stale:")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"stale:alpha", "stale:beta"}, keys)

	require.NoError(t, store.Delete(ctx, "stale:alpha"))
	require.NoError(t, store.Delete(ctx, "stale:alpha"), "double delete is a no-op")

	require.NoError(t, store.DeletePrefix(ctx, "stale:"))
	keys, err = store.Keys(ctx, "stale:")
	require.NoError(t, err)
	require.Empty(t, keys)

	_, ok, err = store.Get(ctx, "cfg")
	require.NoError(t, err)
	require.True(t, ok, "prefix delete must not touch other keys")
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewFile(path)
	require.NoError(t, err)

	runStoreSuite(t, store)

	// Reopen and confirm state survived the process boundary.
	reopened, err := NewFile(path)
	require.NoError(t, err)
	value, ok, err := reopened.Get(context.Background(), "cfg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"mode":"strict"}`, string(value))
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	store, err := NewFile(path)
	require.NoError(t, err)

	keys, err := store.Keys(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestFileStoreRequiresPath(t *testing.T) {
	_, err := NewFile("")
	require.Error(t, err)
}
