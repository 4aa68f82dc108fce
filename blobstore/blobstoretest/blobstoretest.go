// Package blobstoretest provides a conformance suite for blobstore.Store
// implementations.
package blobstoretest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ivfgo/blobstore"
)

// Run exercises the Store contract against an empty store.
func Run(t *testing.T, store blobstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing.ivf")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		data := []byte("hello world, this is a test blob")
		require.NoError(t, store.Put(ctx, "docs.ivf", data))

		got, err := store.Get(ctx, "docs.ivf")
		require.NoError(t, err)
		assert.Equal(t, data, got)

		// The store keeps its own copy.
		data[0] = 'H'
		got, err = store.Get(ctx, "docs.ivf")
		require.NoError(t, err)
		assert.Equal(t, byte('h'), got[0])
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "docs.ivf", []byte("v2")))
		got, err := store.Get(ctx, "docs.ivf")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("Empty", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "empty.ivf", nil))
		got, err := store.Get(ctx, "empty.ivf")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a/1.ivf", []byte("1")))
		require.NoError(t, store.Put(ctx, "a/2.ivf", []byte("2")))
		require.NoError(t, store.Put(ctx, "b/1.ivf", []byte("3")))

		names, err := store.List(ctx, "a/")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/1.ivf", "a/2.ivf"}, names)

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/1.ivf", "a/2.ivf", "b/1.ivf", "docs.ivf", "empty.ivf"}, all)

		none, err := store.List(ctx, "zzz")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "docs.ivf"))
		_, err := store.Get(ctx, "docs.ivf")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		require.NoError(t, store.Delete(ctx, "docs.ivf"))
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("c/%d.ivf", i)
				payload := []byte(name)
				assert.NoError(t, store.Put(ctx, name, payload))
				got, err := store.Get(ctx, name)
				assert.NoError(t, err)
				assert.Equal(t, payload, got)
			}(i)
		}
		wg.Wait()

		names, err := store.List(ctx, "c/")
		require.NoError(t, err)
		assert.Len(t, names, 8)
	})
}
