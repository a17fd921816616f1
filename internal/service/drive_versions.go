package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
)

// contentSnapshot is what a content change was planned against. The
// transaction refuses to apply the change if the node moved on meanwhile.
type contentSnapshot struct {
	handle string
	size   int64
	latest int
}

func snapshotOf(node *models.FileNode, latest int) contentSnapshot {
	snap := contentSnapshot{size: node.Size, latest: latest}
	if node.ContentHandle != nil {
		snap.handle = *node.ContentHandle
	}
	return snap
}

// prepareContentChange loads a file for a content change and checks the
// actor, the node state and the owner's quota for growth by newSize.
func (s *driveService) prepareContentChange(ctx context.Context, actorID string, id string, newSize int64) (*models.FileNode, contentSnapshot, error) {
	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, contentSnapshot{}, err
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionEditor); err != nil {
		return nil, contentSnapshot{}, err
	}
	if !node.IsFile() {
		return nil, contentSnapshot{}, newError(errkind.InvalidInput, "folders have no content")
	}
	if node.Trashed {
		return nil, contentSnapshot{}, newError(errkind.InvalidInput, "file is in trash")
	}

	latest, err := s.versions.LatestVersionNumber(ctx, id)
	if err != nil {
		return nil, contentSnapshot{}, err
	}

	if delta := newSize - node.Size; delta > 0 {
		exceed, err := s.quota.WouldExceed(ctx, node.OwnerID, delta)
		if err != nil {
			return nil, contentSnapshot{}, err
		}
		if exceed {
			return nil, contentSnapshot{}, newError(errkind.QuotaExceeded, "new content exceeds the owner's storage quota")
		}
	}
	return node, snapshotOf(node, latest), nil
}

// applyContentChange appends a version and points the node at it. It runs
// inside the caller's transaction and returns the handle that is no longer
// referenced, if any.
func (s *driveService) applyContentChange(ctx context.Context, actorID string, id string, snap contentSnapshot, handle string, size int64, contentType *string) (*models.FileNode, string, error) {
	node, err := s.directory.GetForUpdate(ctx, id)
	if err != nil {
		return nil, "", err
	}
	latest, err := s.versions.LatestVersionNumber(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if snapshotOf(node, latest) != snap {
		return nil, "", newError(errkind.Conflict, "file changed concurrently, retry")
	}

	next := latest + 1
	if _, err := s.versions.RecordVersion(ctx, models.Version{
		FileID:        id,
		VersionNumber: next,
		ContentHandle: handle,
		Size:          size,
		UploadedBy:    actorID,
		CreatedAt:     s.opts.Now(),
	}); err != nil {
		return nil, "", err
	}

	if err := s.directory.SetContent(ctx, node, handle, size, contentType, next); err != nil {
		return nil, "", err
	}

	delta := size - snap.size
	usage, err := s.quota.Adjust(ctx, node.OwnerID, delta)
	if err != nil {
		return nil, "", err
	}
	if delta > 0 && usage.StorageUsed > usage.StorageLimit {
		return nil, "", newError(errkind.QuotaExceeded, "new content exceeds the owner's storage quota")
	}

	if snap.handle == "" {
		return node, "", nil
	}
	referenced, err := s.versions.ReferencesHandle(ctx, id, snap.handle)
	if err != nil {
		return nil, "", err
	}
	if referenced {
		return node, "", nil
	}
	return node, snap.handle, nil
}

func (s *driveService) ReplaceContent(ctx context.Context, actorID string, id string, in ContentInput) (node *models.FileNode, err error) {
	const op = "service.driveService.ReplaceContent"
	defer func(started time.Time) { s.observe("replace_content", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("ReplaceContent", slog.String("id", id), slog.Int64("size", in.Size))

	owner, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	unlock := s.locks.LockMany(nodeKey(id), userKey(owner.OwnerID))
	defer unlock()

	current, snap, err := s.prepareContentChange(ctx, actorID, id, in.Size)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	data, err := s.readContent(in.Content, in.Size)
	if err != nil {
		return nil, err
	}

	// The first replacement keeps the original upload as version 1.
	var archived string
	if snap.latest == 0 {
		if current.ContentHandle == nil {
			return nil, newError(errkind.ContentMissing, "file has no content to archive")
		}
		archived, err = blobstore.Copy(ctx, s.blobs, *current.ContentHandle, blobstore.AreaVersions)
		if err != nil {
			logger.Error("Failed to archive original content", slogext.Err(err))
			return nil, blobError(err, "failed to archive original content")
		}
	}

	handle, err := s.blobs.Put(ctx, blobstore.AreaVersions, data)
	if err != nil {
		s.releaseBlobs(ctx, archived)
		logger.Error("Failed to store content", slogext.Err(err))
		return nil, blobError(err, "failed to store content")
	}

	var released string
	var recorded int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if archived != "" {
			if _, err := s.versions.RecordVersion(ctx, models.Version{
				FileID:        id,
				VersionNumber: 1,
				ContentHandle: archived,
				Size:          snap.size,
				UploadedBy:    current.OwnerID,
				CreatedAt:     current.UpdatedAt,
			}); err != nil {
				return err
			}
			// Planned against the archived state from here on.
			snap.latest = 1
		}

		updated, old, err := s.applyContentChange(ctx, actorID, id, snap, handle, in.Size, in.ContentType)
		if err != nil {
			return err
		}
		node, released, recorded = updated, old, updated.CurrentVersion
		return nil
	})
	if err != nil {
		logger.Debug("Replace rolled back, releasing blobs", slogext.Err(err))
		s.releaseBlobs(ctx, handle, archived)
		return nil, wrapUnexpected(op, err)
	}

	s.releaseBlobs(ctx, released)
	s.metrics.AddUploadedBytes(in.Size)
	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  id,
		Verb:    audit.VerbReplaceContent,
		Detail:  fmt.Sprintf("Uploaded a new version of %q (v%d, %d bytes)", node.Name, recorded, node.Size),
	})
	return node, nil
}

func (s *driveService) ListVersions(ctx context.Context, actorID string, id string) (versions []models.Version, err error) {
	const op = "service.driveService.ListVersions"
	defer func(started time.Time) { s.observe("list_versions", started, err) }(time.Now())

	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionViewer); err != nil {
		return nil, err
	}
	if !node.IsFile() {
		return nil, newError(errkind.InvalidInput, "folders have no versions")
	}

	versions, err = s.versions.ListVersions(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	return versions, nil
}

func (s *driveService) DownloadVersion(ctx context.Context, actorID string, id string, number int) (version *models.Version, data []byte, err error) {
	const op = "service.driveService.DownloadVersion"
	defer func(started time.Time) { s.observe("download_version", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, nil, wrapUnexpected(op, err)
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionViewer); err != nil {
		return nil, nil, err
	}
	if !node.IsFile() {
		return nil, nil, newError(errkind.InvalidInput, "folders have no versions")
	}

	version, err = s.versions.FindVersion(ctx, id, number)
	if err != nil {
		return nil, nil, wrapUnexpected(op, err)
	}

	data, err = s.blobs.Get(ctx, version.ContentHandle)
	if err != nil {
		logger.Error("Failed to read version content", slogext.Err(err), slog.Int("version", number))
		return nil, nil, blobError(err, fmt.Sprintf("content of version %d is unavailable", number))
	}
	return version, data, nil
}

// RestoreVersion makes version N current again by appending a copy of it as
// a new version. History is never rewritten.
func (s *driveService) RestoreVersion(ctx context.Context, actorID string, id string, number int) (node *models.FileNode, err error) {
	const op = "service.driveService.RestoreVersion"
	defer func(started time.Time) { s.observe("restore_version", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("RestoreVersion", slog.String("id", id), slog.Int("version", number))

	owner, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	unlock := s.locks.LockMany(nodeKey(id), userKey(owner.OwnerID))
	defer unlock()

	if err := s.authorize(ctx, owner, actorID, models.PermissionEditor); err != nil {
		return nil, err
	}
	if !owner.IsFile() {
		return nil, newError(errkind.InvalidInput, "folders have no versions")
	}

	version, err := s.versions.FindVersion(ctx, id, number)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	_, snap, err := s.prepareContentChange(ctx, actorID, id, version.Size)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	handle, err := blobstore.Copy(ctx, s.blobs, version.ContentHandle, blobstore.AreaVersions)
	if err != nil {
		logger.Error("Failed to copy version content", slogext.Err(err))
		return nil, blobError(err, fmt.Sprintf("content of version %d is unavailable", number))
	}

	var released string
	var recorded int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, old, err := s.applyContentChange(ctx, actorID, id, snap, handle, version.Size, nil)
		if err != nil {
			return err
		}
		node, released, recorded = updated, old, updated.CurrentVersion
		return nil
	})
	if err != nil {
		s.releaseBlobs(ctx, handle)
		return nil, wrapUnexpected(op, err)
	}

	s.releaseBlobs(ctx, released)
	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  id,
		Verb:    audit.VerbRestoreVersion,
		Detail:  fmt.Sprintf("Restored %q to version %d (now v%d)", node.Name, number, recorded),
	})
	return node, nil
}
