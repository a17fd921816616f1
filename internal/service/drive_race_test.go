package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReplaceContent(t *testing.T) {
	h := newHarness(t, withLimit(1_000_000))
	file := h.upload(u1, "shared.bin", nil, 10)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.ReplaceContent(h.ctx, u1, file.ID, contentInput(11+i, fmt.Sprintf("w%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	versions, err := h.svc.ListVersions(h.ctx, u1, file.ID)
	require.NoError(t, err)
	require.Len(t, versions, writers+1)
	for i, v := range versions {
		assert.Equal(t, writers+1-i, v.VersionNumber)
	}
	assert.Equal(t, int64(10), versions[writers].Size)

	node, err := h.svc.Get(h.ctx, u1, file.ID)
	require.NoError(t, err)
	assert.Equal(t, writers+1, node.CurrentVersion)
	assert.Equal(t, versions[0].Size, node.Size)
	assert.Equal(t, h.liveSize(u1), h.used(u1))

	// One blob per version. The original upload was archived and released.
	assert.Equal(t, writers+1, h.blobs.Len())
}

func TestConcurrentTrashRestore(t *testing.T) {
	h := newHarness(t)
	folder := h.folder(u1, "box", nil)
	child := h.upload(u1, "inside.txt", &folder.ID, 5)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 40 {
		wg.Add(1)
		go func(trash bool) {
			defer wg.Done()
			var err error
			if trash {
				_, err = h.svc.Trash(h.ctx, u1, folder.ID)
			} else {
				_, err = h.svc.Restore(h.ctx, u1, folder.ID)
			}
			errs <- err
		}(i%2 == 0)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	gotFolder, err := h.svc.Get(h.ctx, u1, folder.ID)
	require.NoError(t, err)
	gotChild, err := h.svc.Get(h.ctx, u1, child.ID)
	require.NoError(t, err)

	for _, n := range []*models.FileNode{gotFolder, gotChild} {
		assert.Equal(t, n.Trashed, n.TrashedAt != nil, "node %s", n.Name)
	}
	assert.Equal(t, gotFolder.Trashed, gotChild.Trashed)
	if gotFolder.Trashed {
		assert.Equal(t, *gotFolder.TrashedAt, *gotChild.TrashedAt)
	}
	assert.Equal(t, h.liveSize(u1), h.used(u1))
}

func TestUploadStorageFailure(t *testing.T) {
	h := newHarness(t)
	h.faults.failPuts(blobstore.AreaContent, 0)

	_, err := h.svc.Upload(h.ctx, u1, uploadInput("lost.txt", nil, 8))
	assert.True(t, IsKind(err, errkind.StorageUnavailable), "got %v", err)

	nodes, err := h.svc.List(h.ctx, u1, models.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Zero(t, h.used(u1))
	assert.Zero(t, h.blobs.Len())
	assert.NotContains(t, h.events.verbs(), audit.VerbUpload)
}

func TestReplaceContentStorageFailure(t *testing.T) {
	unchanged := func(t *testing.T, h *harness, id string, versions int, size int64, blobs int) {
		t.Helper()
		got, err := h.svc.ListVersions(h.ctx, u1, id)
		require.NoError(t, err)
		assert.Len(t, got, versions)

		node, err := h.svc.Get(h.ctx, u1, id)
		require.NoError(t, err)
		assert.Equal(t, size, node.Size)
		assert.Equal(t, size, h.used(u1))
		assert.Equal(t, blobs, h.blobs.Len())
	}

	t.Run("archiving the original fails", func(t *testing.T) {
		h := newHarness(t)
		file := h.upload(u1, "doc.txt", nil, 5)
		h.faults.failPuts(blobstore.AreaVersions, 0)

		_, err := h.svc.ReplaceContent(h.ctx, u1, file.ID, contentInput(9, "new"))
		assert.True(t, IsKind(err, errkind.StorageUnavailable), "got %v", err)
		unchanged(t, h, file.ID, 0, 5, 1)

		_, data, err := h.svc.Download(h.ctx, u1, file.ID)
		require.NoError(t, err)
		assert.Equal(t, payload(5, "doc.txt"), data)
	})

	t.Run("storing new content fails after archiving", func(t *testing.T) {
		h := newHarness(t)
		file := h.upload(u1, "doc.txt", nil, 5)
		h.faults.failPuts(blobstore.AreaVersions, 1)

		_, err := h.svc.ReplaceContent(h.ctx, u1, file.ID, contentInput(9, "new"))
		assert.True(t, IsKind(err, errkind.StorageUnavailable), "got %v", err)
		unchanged(t, h, file.ID, 0, 5, 1)

		deleted := h.faults.deletedHandles()
		require.Len(t, deleted, 1)
		assert.True(t, strings.HasPrefix(deleted[0], string(blobstore.AreaVersions)+"/"), deleted[0])
	})

	t.Run("later replace fails", func(t *testing.T) {
		h := newHarness(t)
		file := h.upload(u1, "doc.txt", nil, 5)
		_, err := h.svc.ReplaceContent(h.ctx, u1, file.ID, contentInput(7, "v2"))
		require.NoError(t, err)
		h.faults.failPuts(blobstore.AreaVersions, 0)

		_, err = h.svc.ReplaceContent(h.ctx, u1, file.ID, contentInput(9, "v3"))
		assert.True(t, IsKind(err, errkind.StorageUnavailable), "got %v", err)
		unchanged(t, h, file.ID, 2, 7, 2)
	})
}

// raceFirstReplace starts the first content replacement while the next blob
// read is in flight and gives it time to finish if nothing holds it back.
func raceFirstReplace(h *harness, id string) <-chan error {
	replaced := make(chan error, 1)
	h.faults.beforeNextGet(func() {
		go func() {
			_, err := h.svc.ReplaceContent(h.ctx, u1, id, contentInput(6, "newer"))
			replaced <- err
		}()
		time.Sleep(20 * time.Millisecond)
	})
	return replaced
}

func TestDownloadDuringFirstReplace(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		h := newHarness(t)
		file := h.upload(u1, "race.txt", nil, 4)
		replaced := raceFirstReplace(h, file.ID)

		node, data, err := h.svc.Download(h.ctx, u1, file.ID)
		require.NoError(t, err)
		assert.Equal(t, payload(4, "race.txt"), data)
		assert.Equal(t, int64(4), node.Size)

		require.NoError(t, <-replaced)
		_, data, err = h.svc.Download(h.ctx, u1, file.ID)
		require.NoError(t, err)
		assert.Equal(t, payload(6, "newer"), data)
	})

	t.Run("link", func(t *testing.T) {
		h := newHarness(t)
		file := h.upload(u1, "race.txt", nil, 4)
		grant, err := h.svc.GenerateLink(h.ctx, u1, file.ID, models.PermissionViewer)
		require.NoError(t, err)
		replaced := raceFirstReplace(h, file.ID)

		_, data, err := h.svc.DownloadByLink(h.ctx, *grant.LinkToken)
		require.NoError(t, err)
		assert.Equal(t, payload(4, "race.txt"), data)
		require.NoError(t, <-replaced)
	})
}

func TestCreateRejectsOverlongPaddedName(t *testing.T) {
	h := newHarness(t)
	padded := strings.Repeat("a", MaxNameLength) + "   "

	_, err := h.svc.CreateFolder(h.ctx, u1, padded, nil)
	assert.True(t, IsKind(err, errkind.InvalidInput), "got %v", err)

	folder := h.folder(u1, strings.Repeat("a", MaxNameLength), nil)
	_, err = h.svc.Rename(h.ctx, u1, folder.ID, padded)
	assert.True(t, IsKind(err, errkind.InvalidInput), "got %v", err)

	got, err := h.svc.Get(h.ctx, u1, folder.ID)
	require.NoError(t, err)
	assert.Len(t, got.Name, MaxNameLength)
}
