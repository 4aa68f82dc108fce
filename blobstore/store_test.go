package blobstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ivfgo/blobstore"
	"github.com/hupe1980/ivfgo/blobstore/blobstoretest"
)

func TestMemoryStore(t *testing.T) {
	blobstoretest.Run(t, blobstore.NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	blobstoretest.Run(t, blobstore.NewLocalStore(t.TempDir()))
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "not", "yet"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Put(context.Background(), "x.ivf", []byte("x")))
	_, err = os.Stat(filepath.Join(store.Root(), "x.ivf"))
	require.NoError(t, err)
}

func TestLocalStore_SkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.ivf.tmp-123"), []byte("partial"), 0o600))

	store := blobstore.NewLocalStore(dir)
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_InvalidName(t *testing.T) {
	store := blobstore.NewLocalStore(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, "../escape.ivf", []byte("x")))
	_, err := store.Get(ctx, "")
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, store := range []blobstore.Store{blobstore.NewMemoryStore(), blobstore.NewLocalStore(t.TempDir())} {
		assert.ErrorIs(t, store.Put(ctx, "x.ivf", []byte("x")), context.Canceled)
		_, err := store.Get(ctx, "x.ivf")
		assert.ErrorIs(t, err, context.Canceled)
	}
}
