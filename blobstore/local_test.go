package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreLifecycle(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	data := "hello world, this is a test object"
	require.NoError(t, store.Put(ctx, "export/17", strings.NewReader(data), int64(len(data))))
	require.NoError(t, store.Put(ctx, "export/3", strings.NewReader("x"), 1))
	require.NoError(t, store.Put(ctx, "other", strings.NewReader("y"), -1))

	rc, err := store.Open(ctx, "export/17")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, string(got))

	names, err := store.List(ctx, "export/")
	require.NoError(t, err)
	assert.Equal(t, []string{"export/17", "export/3"}, names)

	// Overwrite replaces.
	require.NoError(t, store.Put(ctx, "export/3", strings.NewReader("zz"), 2))
	rc, err = store.Open(ctx, "export/3")
	require.NoError(t, err)
	got, _ = io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "zz", string(got))

	require.NoError(t, store.Delete(ctx, "export/17"))
	require.NoError(t, store.Delete(ctx, "export/17"), "deleting twice is fine")
	_, err = store.Open(ctx, "export/17")
	assert.ErrorIs(t, err, ErrNotFound)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"export/3", "other"}, names)
}

func TestLocalStore_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	testStoreLifecycle(t, NewLocalStore(dir))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "export"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".put-"), e.Name())
	}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewMemoryStore())
}

func TestLocalStore_RejectsEscapingNames(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	err := store.Put(context.Background(), "../outside", strings.NewReader("x"), 1)
	assert.Error(t, err)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Put(ctx, "a", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
