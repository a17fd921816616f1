package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionedFileLifecycle(t *testing.T) {
	h := newHarness(t)

	// Folder at root, file inside it.
	reports := h.folder(u1, "Reports", nil)
	assert.Equal(t, int64(0), reports.Size)
	assert.Nil(t, reports.ParentID)

	q1 := h.upload(u1, "q1.csv", &reports.ID, 500)
	assert.Equal(t, int64(500), h.used(u1))
	versions, err := h.svc.ListVersions(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	assert.Equal(t, 0, q1.CurrentVersion)

	// First re-upload archives the original as version 1.
	original, err := h.blobs.Get(h.ctx, *q1.ContentHandle)
	require.NoError(t, err)

	q1, err = h.svc.ReplaceContent(h.ctx, u1, q1.ID, contentInput(700, "v2"))
	require.NoError(t, err)
	assert.Equal(t, int64(700), q1.Size)
	assert.Equal(t, 2, q1.CurrentVersion)
	assert.Equal(t, int64(700), h.used(u1))

	versions, err = h.svc.ListVersions(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)
	assert.Equal(t, int64(700), versions[0].Size)
	assert.Equal(t, 1, versions[1].VersionNumber)
	assert.Equal(t, int64(500), versions[1].Size)
	assert.Equal(t, u1, versions[1].UploadedBy)

	_, v1, err := h.svc.DownloadVersion(h.ctx, u1, q1.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, original, v1)

	// Restore appends instead of rewinding.
	q1, err = h.svc.RestoreVersion(h.ctx, u1, q1.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), q1.Size)
	assert.Equal(t, 3, q1.CurrentVersion)
	assert.Equal(t, int64(500), h.used(u1))

	versions, err = h.svc.ListVersions(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, 3-i, v.VersionNumber)
	}

	_, current, err := h.svc.Download(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, original, current)

	// Original upload blob was released, three version blobs remain.
	assert.Equal(t, 3, h.blobs.Len())
	assert.Equal(t, h.liveSize(u1), h.used(u1))
}

func TestCommenterCannotReplaceButCanComment(t *testing.T) {
	h := newHarness(t)

	q1 := h.upload(u1, "q1.csv", nil, 500)
	_, err := h.svc.Share(h.ctx, u1, q1.ID, u2, models.PermissionCommenter)
	require.NoError(t, err)

	_, err = h.svc.ReplaceContent(h.ctx, u2, q1.ID, contentInput(10, "x"))
	assert.True(t, IsKind(err, errkind.AccessDenied), "got %v", err)

	comment, err := h.svc.AddComment(h.ctx, u2, q1.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, u2, comment.AuthorID)

	comments, err := h.svc.ListComments(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "looks good", comments[0].Body)

	_, err = h.svc.AddComment(h.ctx, u3, q1.ID, "who am I")
	assert.True(t, IsKind(err, errkind.AccessDenied))
}

func TestDeleteFolderWithoutCascadeOrphansChildren(t *testing.T) {
	h := newHarness(t, withoutCascade())

	reports := h.folder(u1, "Reports", nil)
	q1 := h.upload(u1, "q1.csv", &reports.ID, 500)

	_, err := h.svc.Trash(h.ctx, u1, reports.ID)
	require.NoError(t, err)
	require.NoError(t, h.svc.PermanentlyDelete(h.ctx, u1, reports.ID))

	child, err := h.svc.Get(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	assert.False(t, child.Trashed)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, reports.ID, *child.ParentID)
	assert.Equal(t, int64(500), h.used(u1))

	path, err := h.svc.ResolveAncestryPath(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.PathEntry{{ID: q1.ID, Name: "q1.csv"}}, path)
}

func TestDeleteFolderWithCascadeReclaimsSubtree(t *testing.T) {
	h := newHarness(t)

	reports := h.folder(u1, "Reports", nil)
	inner := h.folder(u1, "2026", &reports.ID)
	q1 := h.upload(u1, "q1.csv", &inner.ID, 500)
	_, err := h.svc.ReplaceContent(h.ctx, u1, q1.ID, contentInput(300, "v2"))
	require.NoError(t, err)
	keep := h.upload(u1, "keep.txt", nil, 40)
	assert.Equal(t, int64(340), h.used(u1))

	_, err = h.svc.Trash(h.ctx, u1, reports.ID)
	require.NoError(t, err)

	trashedChild, err := h.svc.Get(h.ctx, u1, q1.ID)
	require.NoError(t, err)
	assert.True(t, trashedChild.Trashed)

	require.NoError(t, h.svc.PermanentlyDelete(h.ctx, u1, reports.ID))

	for _, id := range []string{reports.ID, inner.ID, q1.ID} {
		_, err := h.svc.Get(h.ctx, u1, id)
		assert.True(t, IsKind(err, errkind.NotFound), "node %s should be gone", id)
	}
	assert.Equal(t, int64(40), h.used(u1))
	assert.Equal(t, h.liveSize(u1), h.used(u1))
	assert.Equal(t, 1, h.blobs.Len(), "only keep.txt content should remain")

	_, err = h.svc.Get(h.ctx, u1, keep.ID)
	require.NoError(t, err)
}

func TestBatchDeleteReportsPartialFailure(t *testing.T) {
	h := newHarness(t)

	fileA := h.upload(u1, "a.txt", nil, 10)
	fileB := h.upload(u1, "b.txt", nil, 20)
	for _, id := range []string{fileA.ID, fileB.ID} {
		_, err := h.svc.Trash(h.ctx, u1, id)
		require.NoError(t, err)
	}
	require.NoError(t, h.svc.PermanentlyDelete(h.ctx, u1, fileB.ID))

	result, err := h.svc.BatchDelete(h.ctx, u1, []string{fileA.ID, fileB.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{fileA.ID}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, fileB.ID, result.Failed[0].ID)
	assert.Equal(t, errkind.NotFound.String(), result.Failed[0].Reason)
	assert.Equal(t, int64(0), h.used(u1))
}

func TestBatchRejectsEmptyList(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.BatchTrash(h.ctx, u1, nil)
	assert.True(t, IsKind(err, errkind.InvalidInput))
}

func TestBatchOperations(t *testing.T) {
	h := newHarness(t)

	dest := h.folder(u1, "dest", nil)
	a := h.upload(u1, "a.txt", nil, 1)
	b := h.upload(u1, "b.txt", nil, 1)
	foreign := h.upload(u2, "c.txt", nil, 1)

	res, err := h.svc.BatchMove(h.ctx, u1, []string{a.ID, b.ID, foreign.ID, a.ID}, &dest.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, errkind.AccessDenied.String(), res.Failed[0].Reason)

	res, err = h.svc.BatchSetStarred(h.ctx, u1, []string{a.ID, b.ID}, true)
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 2)

	starred := true
	nodes, err := h.svc.List(h.ctx, u1, models.ListFilter{Starred: &starred})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	res, err = h.svc.BatchTrash(h.ctx, u1, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 2)

	res, err = h.svc.BatchRestore(h.ctx, u1, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 2)

	nodes, err = h.svc.List(h.ctx, u1, models.ListFilter{ParentID: &dest.ID})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestUploadQuotaBoundary(t *testing.T) {
	h := newHarness(t, withLimit(100))

	h.upload(u1, "exact.bin", nil, 100)
	assert.Equal(t, int64(100), h.used(u1))

	_, err := h.svc.Upload(h.ctx, u1, uploadInput("more.bin", nil, 1))
	assert.True(t, IsKind(err, errkind.QuotaExceeded))
	assert.Equal(t, int64(100), h.used(u1))
	assert.Equal(t, 1, h.blobs.Len())

	// Empty files never exceed.
	h.upload(u1, "empty.bin", nil, 0)
}

func TestUploadRejectsSizeMismatch(t *testing.T) {
	h := newHarness(t)

	in := uploadInput("short.bin", nil, 10)
	in.Size = 20
	_, err := h.svc.Upload(h.ctx, u1, in)
	assert.True(t, IsKind(err, errkind.InvalidInput))

	in = uploadInput("long.bin", nil, 30)
	in.Size = 20
	_, err = h.svc.Upload(h.ctx, u1, in)
	assert.True(t, IsKind(err, errkind.InvalidInput))

	assert.Equal(t, int64(0), h.used(u1))
	assert.Equal(t, 0, h.blobs.Len())
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t)
	file := h.upload(u1, "file.txt", nil, 1)
	other := h.folder(u2, "theirs", nil)
	missing := "missing"

	tests := []struct {
		name   string
		in     UploadInput
		expect errkind.Kind
	}{
		{"empty name", uploadInput("", nil, 1), errkind.InvalidInput},
		{"slash in name", uploadInput("a/b", nil, 1), errkind.InvalidInput},
		{"long name", uploadInput(strings.Repeat("n", 256), nil, 1), errkind.InvalidInput},
		{"long name after padding", uploadInput(strings.Repeat("n", 255)+"   ", nil, 1), errkind.InvalidInput},
		{"missing parent", uploadInput("x", &missing, 1), errkind.NotFound},
		{"file as parent", uploadInput("x", &file.ID, 1), errkind.InvalidInput},
		{"foreign parent", uploadInput("x", &other.ID, 1), errkind.AccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Upload(h.ctx, u1, tt.in)
			assert.True(t, IsKind(err, tt.expect), "got %v", err)
		})
	}
	assert.Equal(t, int64(1), h.used(u1))
}

func TestMoveRules(t *testing.T) {
	h := newHarness(t)

	a := h.folder(u1, "a", nil)
	b := h.folder(u1, "b", &a.ID)
	c := h.folder(u1, "c", &b.ID)

	t.Run("into own subtree", func(t *testing.T) {
		_, err := h.svc.Move(h.ctx, u1, a.ID, &c.ID)
		assert.True(t, IsKind(err, errkind.Conflict))
	})

	t.Run("into itself", func(t *testing.T) {
		_, err := h.svc.Move(h.ctx, u1, a.ID, &a.ID)
		assert.True(t, IsKind(err, errkind.Conflict))
	})

	t.Run("same parent is a no-op", func(t *testing.T) {
		before := len(h.events.verbs())
		node, err := h.svc.Move(h.ctx, u1, c.ID, &b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, *node.ParentID)
		assert.Len(t, h.events.verbs(), before)
	})

	t.Run("to root", func(t *testing.T) {
		node, err := h.svc.Move(h.ctx, u1, c.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, node.ParentID)
	})

	t.Run("into trashed folder", func(t *testing.T) {
		_, err := h.svc.Trash(h.ctx, u1, b.ID)
		require.NoError(t, err)
		_, err = h.svc.Move(h.ctx, u1, c.ID, &b.ID)
		assert.True(t, IsKind(err, errkind.InvalidInput))
	})
}

func TestTrashRestoreRoundTrip(t *testing.T) {
	h := newHarness(t)

	parent := h.folder(u1, "parent", nil)
	child := h.upload(u1, "child.txt", &parent.ID, 5)
	separately := h.upload(u1, "separate.txt", &parent.ID, 5)

	// Trashed on its own before the folder, so it must stay trashed.
	_, err := h.svc.Trash(h.ctx, u1, separately.ID)
	require.NoError(t, err)

	_, err = h.svc.Trash(h.ctx, u1, parent.ID)
	require.NoError(t, err)

	// Idempotent.
	again, err := h.svc.Trash(h.ctx, u1, parent.ID)
	require.NoError(t, err)
	assert.True(t, again.Trashed)

	restored, err := h.svc.Restore(h.ctx, u1, parent.ID)
	require.NoError(t, err)
	assert.False(t, restored.Trashed)
	assert.Nil(t, restored.TrashedAt)

	c, err := h.svc.Get(h.ctx, u1, child.ID)
	require.NoError(t, err)
	assert.False(t, c.Trashed)
	assert.Equal(t, parent.ID, *c.ParentID)

	s, err := h.svc.Get(h.ctx, u1, separately.ID)
	require.NoError(t, err)
	assert.True(t, s.Trashed)

	assert.Equal(t, int64(10), h.used(u1))
}

func TestRestoreRehomesWhenParentStillTrashed(t *testing.T) {
	h := newHarness(t)

	parent := h.folder(u1, "parent", nil)
	child := h.upload(u1, "child.txt", &parent.ID, 5)

	_, err := h.svc.Trash(h.ctx, u1, parent.ID)
	require.NoError(t, err)

	restored, err := h.svc.Restore(h.ctx, u1, child.ID)
	require.NoError(t, err)
	assert.False(t, restored.Trashed)
	assert.Nil(t, restored.ParentID)
}

func TestPermanentDeleteRequiresTrash(t *testing.T) {
	h := newHarness(t)

	file := h.upload(u1, "f.txt", nil, 5)
	err := h.svc.PermanentlyDelete(h.ctx, u1, file.ID)
	assert.True(t, IsKind(err, errkind.Conflict))

	_, err = h.svc.Trash(h.ctx, u1, file.ID)
	require.NoError(t, err)
	require.NoError(t, h.svc.PermanentlyDelete(h.ctx, u1, file.ID))
	assert.Equal(t, int64(0), h.used(u1))
	assert.Equal(t, 0, h.blobs.Len())
}

func TestVersionBoundaries(t *testing.T) {
	h := newHarness(t)

	file := h.upload(u1, "f.txt", nil, 5)
	folder := h.folder(u1, "dir", nil)

	_, _, err := h.svc.DownloadVersion(h.ctx, u1, file.ID, 0)
	assert.True(t, IsKind(err, errkind.InvalidInput))
	_, _, err = h.svc.DownloadVersion(h.ctx, u1, file.ID, -1)
	assert.True(t, IsKind(err, errkind.InvalidInput))
	_, _, err = h.svc.DownloadVersion(h.ctx, u1, file.ID, 1)
	assert.True(t, IsKind(err, errkind.NotFound))
	_, err = h.svc.RestoreVersion(h.ctx, u1, file.ID, 1)
	assert.True(t, IsKind(err, errkind.NotFound))
	_, err = h.svc.ListVersions(h.ctx, u1, folder.ID)
	assert.True(t, IsKind(err, errkind.InvalidInput))
	_, err = h.svc.ReplaceContent(h.ctx, u1, folder.ID, contentInput(1, "x"))
	assert.True(t, IsKind(err, errkind.InvalidInput))
}

func TestMissingVersionBlobIsContentMissing(t *testing.T) {
	h := newHarness(t)

	file := h.upload(u1, "f.txt", nil, 5)
	_, err := h.svc.ReplaceContent(h.ctx, u1, file.ID, contentInput(6, "v2"))
	require.NoError(t, err)

	v1, err := h.store.Versions().Find(h.ctx, file.ID, 1)
	require.NoError(t, err)
	require.NoError(t, h.blobs.Delete(h.ctx, v1.ContentHandle))

	_, _, err = h.svc.DownloadVersion(h.ctx, u1, file.ID, 1)
	assert.True(t, IsKind(err, errkind.ContentMissing))

	_, err = h.svc.RestoreVersion(h.ctx, u1, file.ID, 1)
	assert.True(t, IsKind(err, errkind.ContentMissing))

	latest, err := h.store.Versions().LatestNumber(h.ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
}

func TestReplaceContentChargesOwner(t *testing.T) {
	h := newHarness(t, withLimit(1000))

	file := h.upload(u1, "f.txt", nil, 900)
	_, err := h.svc.Share(h.ctx, u1, file.ID, u2, models.PermissionEditor)
	require.NoError(t, err)

	_, err = h.svc.ReplaceContent(h.ctx, u2, file.ID, contentInput(950, "e"))
	require.NoError(t, err)
	assert.Equal(t, int64(950), h.used(u1))
	assert.Equal(t, int64(0), h.used(u2))

	_, err = h.svc.ReplaceContent(h.ctx, u2, file.ID, contentInput(1001, "e"))
	assert.True(t, IsKind(err, errkind.QuotaExceeded))
	assert.Equal(t, int64(950), h.used(u1))
}

func TestSharingFlow(t *testing.T) {
	h := newHarness(t)

	file := h.upload(u1, "f.txt", nil, 5)

	_, err := h.svc.Get(h.ctx, u2, file.ID)
	assert.True(t, IsKind(err, errkind.AccessDenied))

	grant, err := h.svc.Share(h.ctx, u1, file.ID, u2, models.PermissionViewer)
	require.NoError(t, err)

	_, err = h.svc.Share(h.ctx, u1, file.ID, u2, models.PermissionEditor)
	assert.True(t, IsKind(err, errkind.Conflict))
	_, err = h.svc.Share(h.ctx, u1, file.ID, u1, models.PermissionEditor)
	assert.True(t, IsKind(err, errkind.Conflict))
	_, err = h.svc.Share(h.ctx, u1, file.ID, u3, models.PermissionOwner)
	assert.True(t, IsKind(err, errkind.InvalidInput))
	_, err = h.svc.Share(h.ctx, u2, file.ID, u3, models.PermissionViewer)
	assert.True(t, IsKind(err, errkind.AccessDenied))

	_, data, err := h.svc.Download(h.ctx, u2, file.ID)
	require.NoError(t, err)
	assert.Len(t, data, 5)

	shared, err := h.svc.SharedWithMe(h.ctx, u2)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, file.ID, shared[0].Node.ID)

	_, err = h.svc.UpdateSharePermission(h.ctx, u1, grant.ID, models.PermissionEditor)
	require.NoError(t, err)
	_, err = h.svc.ReplaceContent(h.ctx, u2, file.ID, contentInput(3, "z"))
	require.NoError(t, err)

	require.NoError(t, h.svc.RevokeShare(h.ctx, u1, grant.ID))
	_, err = h.svc.Get(h.ctx, u2, file.ID)
	assert.True(t, IsKind(err, errkind.AccessDenied))

	err = h.svc.RevokeShare(h.ctx, u1, grant.ID)
	assert.True(t, IsKind(err, errkind.NotFound))
	err = h.svc.RevokeShare(h.ctx, u1, "no-such-grant")
	assert.True(t, IsKind(err, errkind.NotFound))
}

func TestLinkSharing(t *testing.T) {
	h := newHarness(t)

	file := h.upload(u1, "f.txt", nil, 5)

	link, err := h.svc.GenerateLink(h.ctx, u1, file.ID, models.PermissionViewer)
	require.NoError(t, err)
	require.NotNil(t, link.LinkToken)
	assert.True(t, link.IsLink())

	again, err := h.svc.GenerateLink(h.ctx, u1, file.ID, models.PermissionViewer)
	require.NoError(t, err)
	assert.Equal(t, link.ID, again.ID)

	node, data, err := h.svc.DownloadByLink(h.ctx, *link.LinkToken)
	require.NoError(t, err)
	assert.Equal(t, file.ID, node.ID)
	assert.Len(t, data, 5)

	_, _, err = h.svc.ResolveLink(h.ctx, "bogus")
	assert.True(t, IsKind(err, errkind.NotFound))

	_, err = h.svc.Trash(h.ctx, u1, file.ID)
	require.NoError(t, err)
	_, _, err = h.svc.ResolveLink(h.ctx, *link.LinkToken)
	assert.True(t, IsKind(err, errkind.NotFound))

	grants, err := h.svc.ListShares(h.ctx, u1, file.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestPermissionMonotonicity(t *testing.T) {
	levels := []models.Permission{
		models.PermissionViewer,
		models.PermissionCommenter,
		models.PermissionEditor,
	}

	type action struct {
		name     string
		required models.Permission
		run      func(h *harness, fileID string) error
	}
	actions := []action{
		{"get", models.PermissionViewer, func(h *harness, id string) error {
			_, err := h.svc.Get(h.ctx, u2, id)
			return err
		}},
		{"list versions", models.PermissionViewer, func(h *harness, id string) error {
			_, err := h.svc.ListVersions(h.ctx, u2, id)
			return err
		}},
		{"comment", models.PermissionCommenter, func(h *harness, id string) error {
			_, err := h.svc.AddComment(h.ctx, u2, id, "hi")
			return err
		}},
		{"replace", models.PermissionEditor, func(h *harness, id string) error {
			_, err := h.svc.ReplaceContent(h.ctx, u2, id, contentInput(2, "r"))
			return err
		}},
		{"rename", models.PermissionOwner, func(h *harness, id string) error {
			_, err := h.svc.Rename(h.ctx, u2, id, "renamed")
			return err
		}},
	}

	for _, level := range levels {
		for _, a := range actions {
			t.Run(level.String()+"/"+a.name, func(t *testing.T) {
				h := newHarness(t)
				file := h.upload(u1, "f.txt", nil, 4)
				_, err := h.svc.Share(h.ctx, u1, file.ID, u2, level)
				require.NoError(t, err)

				err = a.run(h, file.ID)
				if level.AtLeast(a.required) {
					assert.NoError(t, err)
				} else {
					assert.True(t, IsKind(err, errkind.AccessDenied), "got %v", err)
				}
			})
		}
	}
}

func TestAuditOnePerMutation(t *testing.T) {
	h := newHarness(t)

	folder := h.folder(u1, "docs", nil)
	file := h.upload(u1, "a.txt", &folder.ID, 3)
	_, err := h.svc.Rename(h.ctx, u1, file.ID, "b.txt")
	require.NoError(t, err)
	_, err = h.svc.SetStarred(h.ctx, u1, file.ID, true)
	require.NoError(t, err)
	_, err = h.svc.SetStarred(h.ctx, u1, file.ID, true)
	require.NoError(t, err)
	_, err = h.svc.Rename(h.ctx, u1, file.ID, "bad/name")
	require.Error(t, err)

	assert.Equal(t, []string{
		audit.VerbCreateFolder,
		audit.VerbUpload,
		audit.VerbRename,
		audit.VerbStar,
	}, h.events.verbs())

	activity, err := h.svc.ListActivity(h.ctx, u1, file.ID, 0)
	require.NoError(t, err)
	require.Len(t, activity, 3)
	assert.Equal(t, audit.VerbStar, activity[0].Verb)
	assert.Equal(t, `Renamed "a.txt" to "b.txt"`, activity[1].Detail)

	_, err = h.svc.ListActivity(h.ctx, u2, file.ID, 0)
	assert.True(t, IsKind(err, errkind.AccessDenied))
}

func TestListFiltersAndPath(t *testing.T) {
	h := newHarness(t)

	root := h.folder(u1, "root", nil)
	sub := h.folder(u1, "sub", &root.ID)
	h.upload(u1, "Big.csv", &sub.ID, 50)
	small := h.upload(u1, "small.txt", &sub.ID, 5)
	h.upload(u2, "foreign.csv", nil, 5)

	nodes, err := h.svc.List(h.ctx, u1, models.ListFilter{NameQuery: "BIG"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Big.csv", nodes[0].Name)

	nodes, err = h.svc.List(h.ctx, u1, models.ListFilter{ParentID: &sub.ID, SortBy: models.SortBySize, SortOrder: models.SortDesc})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Big.csv", nodes[0].Name)

	_, err = h.svc.List(h.ctx, u2, models.ListFilter{ParentID: &sub.ID})
	assert.True(t, IsKind(err, errkind.AccessDenied))
	_, err = h.svc.List(h.ctx, u1, models.ListFilter{SortBy: "colour"})
	assert.True(t, IsKind(err, errkind.InvalidInput))

	path, err := h.svc.ResolveAncestryPath(h.ctx, u1, small.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.PathEntry{
		{ID: root.ID, Name: "root"},
		{ID: sub.ID, Name: "sub"},
		{ID: small.ID, Name: "small.txt"},
	}, path)

	_, err = h.svc.Share(h.ctx, u1, small.ID, u2, models.PermissionViewer)
	require.NoError(t, err)
	path, err = h.svc.ResolveAncestryPath(h.ctx, u2, small.ID)
	require.NoError(t, err)
	assert.Len(t, path, 1)
}

func TestDownloadTouchesLastOpened(t *testing.T) {
	h := newHarness(t)

	file := h.upload(u1, "f.txt", nil, 3)
	assert.Nil(t, file.LastOpenedAt)

	node, data, err := h.svc.Download(h.ctx, u1, file.ID)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload(3, "f.txt"), data))
	assert.NotNil(t, node.LastOpenedAt)
}

func TestReconcileQuotaRepairsDrift(t *testing.T) {
	h := newHarness(t)

	h.upload(u1, "a.bin", nil, 30)
	h.upload(u2, "b.bin", nil, 10)
	require.NoError(t, h.store.Quotas().SetUsed(h.ctx, u1, 999))

	corrections, err := h.svc.ReconcileAll(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []QuotaCorrection{{UserID: u1, Drift: 30 - 999}}, corrections)
	assert.Equal(t, int64(30), h.used(u1))

	drift, err := h.svc.ReconcileQuota(h.ctx, u1)
	require.NoError(t, err)
	assert.Zero(t, drift)
}

func TestReconcileRepairsNegativeUsage(t *testing.T) {
	h := newHarness(t)
	h.upload(u1, "a.bin", nil, 30)

	_, err := h.store.Quotas().Adjust(h.ctx, u1, -50)
	require.NoError(t, err)
	assert.Equal(t, int64(-20), h.used(u1))

	drift, err := h.svc.ReconcileQuota(h.ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), drift)
	assert.Equal(t, int64(30), h.used(u1))
}
