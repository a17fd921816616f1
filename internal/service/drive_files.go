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

func (s *driveService) CreateFolder(ctx context.Context, actorID string, name string, parentID *string) (node *models.FileNode, err error) {
	const op = "service.driveService.CreateFolder"
	defer func(started time.Time) { s.observe("create_folder", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("CreateFolder", slog.String("actor_id", actorID), slog.String("name", name))

	if parentID != nil {
		unlock := s.locks.Lock(nodeKey(*parentID))
		defer unlock()
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err := s.directory.CreateFolder(ctx, name, actorID, parentID)
		node = created
		return err
	})
	if err != nil {
		logger.Debug("Failed to create folder", slogext.Err(err))
		return nil, wrapUnexpected(op, err)
	}

	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  node.ID,
		Verb:    audit.VerbCreateFolder,
		Detail:  fmt.Sprintf("Created folder %q", node.Name),
	})
	return node, nil
}

func (s *driveService) Upload(ctx context.Context, actorID string, in UploadInput) (node *models.FileNode, err error) {
	const op = "service.driveService.Upload"
	defer func(started time.Time) { s.observe("upload", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Upload",
		slog.String("actor_id", actorID),
		slog.String("name", in.Name),
		slog.Int64("size", in.Size))

	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}
	if in.Size < 0 {
		return nil, newError(errkind.InvalidInput, "size must not be negative")
	}

	keys := []string{userKey(actorID)}
	if in.ParentID != nil {
		keys = append(keys, nodeKey(*in.ParentID))
	}
	unlock := s.locks.LockMany(keys...)
	defer unlock()

	exceed, err := s.quota.WouldExceed(ctx, actorID, in.Size)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	if exceed {
		logger.Debug("Upload rejected by quota", slog.String("actor_id", actorID))
		return nil, newError(errkind.QuotaExceeded, "upload of %d bytes exceeds storage quota", in.Size)
	}

	data, err := s.readContent(in.Content, in.Size)
	if err != nil {
		return nil, err
	}

	handle, err := s.blobs.Put(ctx, blobstore.AreaContent, data)
	if err != nil {
		logger.Error("Failed to store content", slogext.Err(err))
		return nil, blobError(err, "failed to store content")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		usage, err := s.quota.Adjust(ctx, actorID, in.Size)
		if err != nil {
			return err
		}
		if usage.StorageUsed > usage.StorageLimit {
			return newError(errkind.QuotaExceeded, "upload of %d bytes exceeds storage quota", in.Size)
		}

		created, err := s.directory.CreateFile(ctx, NewFile{
			Name:          in.Name,
			ContentType:   in.ContentType,
			Size:          in.Size,
			ContentHandle: handle,
			OwnerID:       actorID,
			ParentID:      in.ParentID,
		})
		node = created
		return err
	})
	if err != nil {
		logger.Debug("Upload metadata rolled back, releasing blob", slogext.Err(err))
		s.releaseBlobs(ctx, handle)
		return nil, wrapUnexpected(op, err)
	}

	s.metrics.AddUploadedBytes(in.Size)
	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  node.ID,
		Verb:    audit.VerbUpload,
		Detail:  fmt.Sprintf("Uploaded %q (%d bytes)", node.Name, node.Size),
	})
	return node, nil
}

func (s *driveService) Get(ctx context.Context, actorID string, id string) (node *models.FileNode, err error) {
	const op = "service.driveService.Get"
	defer func(started time.Time) { s.observe("get", started, err) }(time.Now())

	node, err = s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionViewer); err != nil {
		return nil, wrapUnexpected(op, err)
	}
	return node, nil
}

func (s *driveService) Download(ctx context.Context, actorID string, id string) (node *models.FileNode, data []byte, err error) {
	const op = "service.driveService.Download"
	defer func(started time.Time) { s.observe("download", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionViewer); err != nil {
			return err
		}
		if !n.IsFile() {
			return newError(errkind.InvalidInput, "cannot download a folder")
		}
		// Read under the node lock so a concurrent first replace cannot
		// release the handle between lookup and read.
		content, err := s.readBlob(ctx, n)
		if err != nil {
			logger.Error("Failed to read content", slogext.Err(err), slog.String("id", id))
			return err
		}
		node, data = n, content
		return s.directory.TouchLastOpened(ctx, n)
	})
	if err != nil {
		return nil, nil, wrapUnexpected(op, err)
	}
	return node, data, nil
}

// List lists the actor's own tree. Shared nodes are listed by SharedWithMe.
func (s *driveService) List(ctx context.Context, actorID string, filter models.ListFilter) (nodes []models.FileNode, err error) {
	const op = "service.driveService.List"
	defer func(started time.Time) { s.observe("list", started, err) }(time.Now())

	if filter.ParentID != nil {
		parent, err := s.directory.Get(ctx, *filter.ParentID)
		if err != nil {
			return nil, wrapUnexpected(op, err)
		}
		if parent.OwnerID != actorID {
			return nil, newError(errkind.AccessDenied, "folder belongs to another user")
		}
		if !parent.IsFolder() {
			return nil, newError(errkind.InvalidInput, "not a folder")
		}
	}

	filter.OwnerID = actorID
	nodes, err = s.directory.List(ctx, filter)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	return nodes, nil
}

func (s *driveService) Rename(ctx context.Context, actorID string, id string, name string) (node *models.FileNode, err error) {
	const op = "service.driveService.Rename"
	defer func(started time.Time) { s.observe("rename", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Rename", slog.String("id", id), slog.String("name", name))

	var oldName string
	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		oldName = n.Name
		node = n
		return s.directory.Rename(ctx, n, name)
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	if oldName != name {
		s.emit(ctx, audit.Event{
			ActorID: actorID,
			FileID:  id,
			Verb:    audit.VerbRename,
			Detail:  fmt.Sprintf("Renamed %q to %q", oldName, name),
		})
	}
	return node, nil
}

func (s *driveService) Move(ctx context.Context, actorID string, id string, parentID *string) (node *models.FileNode, err error) {
	const op = "service.driveService.Move"
	defer func(started time.Time) { s.observe("move", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Move", slog.String("id", id))

	// Moves of one owner are serialised through the owner key so two moves
	// cannot race each other into a cycle.
	var moved bool
	err = s.withNode(ctx, id, true, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		node = n
		ok, err := s.directory.Move(ctx, n, parentID)
		moved = ok
		return err
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	if moved {
		s.emit(ctx, audit.Event{
			ActorID: actorID,
			FileID:  id,
			Verb:    audit.VerbMove,
			Detail:  fmt.Sprintf("Moved %q to %s", node.Name, s.describeParent(ctx, parentID)),
		})
	}
	return node, nil
}

func (s *driveService) describeParent(ctx context.Context, parentID *string) string {
	if parentID == nil {
		return "root"
	}
	parent, err := s.directory.Get(ctx, *parentID)
	if err != nil {
		return "folder " + *parentID
	}
	return fmt.Sprintf("folder %q", parent.Name)
}

func (s *driveService) SetStarred(ctx context.Context, actorID string, id string, starred bool) (node *models.FileNode, err error) {
	const op = "service.driveService.SetStarred"
	defer func(started time.Time) { s.observe("set_starred", started, err) }(time.Now())

	var changed bool
	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		node = n
		ok, err := s.directory.SetStarred(ctx, n, starred)
		changed = ok
		return err
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	if changed {
		verb, detail := audit.VerbStar, "Starred %q"
		if !starred {
			verb, detail = audit.VerbUnstar, "Unstarred %q"
		}
		s.emit(ctx, audit.Event{
			ActorID: actorID,
			FileID:  id,
			Verb:    verb,
			Detail:  fmt.Sprintf(detail, node.Name),
		})
	}
	return node, nil
}

// ResolveAncestryPath returns the full path to the owner. Other users only
// see the node itself, since folder access is not inherited.
func (s *driveService) ResolveAncestryPath(ctx context.Context, actorID string, id string) (path []models.PathEntry, err error) {
	const op = "service.driveService.ResolveAncestryPath"
	defer func(started time.Time) { s.observe("path", started, err) }(time.Now())

	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionViewer); err != nil {
		return nil, err
	}
	if node.OwnerID != actorID {
		return []models.PathEntry{{ID: node.ID, Name: node.Name}}, nil
	}

	path, err = s.directory.ResolveAncestryPath(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	return path, nil
}
