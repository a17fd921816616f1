// Package blobtest holds the contract tests shared by every blob backend.
package blobtest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Suite runs the Store contract against fresh instances from NewStore.
//
//	func TestMyStore(t *testing.T) {
//	    blobtest.Suite{NewStore: func(t *testing.T) blobstore.Store { return mystore.New() }}.Run(t)
//	}
type Suite struct {
	NewStore func(t *testing.T) blobstore.Store
}

func (s Suite) Run(t *testing.T) {
	t.Run("PutGet", s.testPutGet)
	t.Run("EmptyBlob", s.testEmptyBlob)
	t.Run("HandlesAreUnique", s.testHandlesAreUnique)
	t.Run("GetMissing", s.testGetMissing)
	t.Run("DeleteIsIdempotent", s.testDeleteIsIdempotent)
	t.Run("PutCopiesInput", s.testPutCopiesInput)
	t.Run("Copy", s.testCopy)
}

func (s Suite) store(t *testing.T) blobstore.Store {
	t.Helper()
	store := s.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func (s Suite) testPutGet(t *testing.T) {
	ctx := context.Background()
	store := s.store(t)

	data := []byte("quarterly numbers")
	handle, err := store.Put(ctx, blobstore.AreaContent, data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle, "content/"))

	got, err := store.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func (s Suite) testEmptyBlob(t *testing.T) {
	ctx := context.Background()
	store := s.store(t)

	handle, err := store.Put(ctx, blobstore.AreaContent, nil)
	require.NoError(t, err)

	got, err := store.Get(ctx, handle)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (s Suite) testHandlesAreUnique(t *testing.T) {
	ctx := context.Background()
	store := s.store(t)

	h1, err := store.Put(ctx, blobstore.AreaVersions, []byte("same"))
	require.NoError(t, err)
	h2, err := store.Put(ctx, blobstore.AreaVersions, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, strings.HasPrefix(h1, "versions/"))
}

func (s Suite) testGetMissing(t *testing.T) {
	ctx := context.Background()
	store := s.store(t)

	_, err := store.Get(ctx, blobstore.NewHandle(blobstore.AreaContent))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	_, err = store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func (s Suite) testDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := s.store(t)

	handle, err := store.Put(ctx, blobstore.AreaContent, []byte("bye"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, handle))
	require.NoError(t, store.Delete(ctx, handle))
	require.NoError(t, store.Delete(ctx, blobstore.NewHandle(blobstore.AreaVersions)))

	_, err = store.Get(ctx, handle)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func (s Suite) testPutCopiesInput(t *testing.T) {
	ctx := context.Background()
	store := s.store(t)

	data := []byte("original")
	handle, err := store.Put(ctx, blobstore.AreaContent, data)
	require.NoError(t, err)
	copy(data, "mutated!")

	got, err := store.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func (s Suite) testCopy(t *testing.T) {
	ctx := context.Background()
	store := s.store(t)

	src, err := store.Put(ctx, blobstore.AreaContent, []byte("v1 bytes"))
	require.NoError(t, err)

	dst, err := blobstore.Copy(ctx, store, src, blobstore.AreaVersions)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, src))

	got, err := store.Get(ctx, dst)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("v1 bytes"), got))
}
