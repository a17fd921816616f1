package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/pkg/logging"
)

// Trash moves an active node to trash. Trashing a trashed node is a no-op.
func (s *driveService) Trash(ctx context.Context, actorID string, id string) (node *models.FileNode, err error) {
	const op = "service.driveService.Trash"
	defer func(started time.Time) { s.observe("trash", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Trash", slog.String("id", id))

	var changed bool
	var cascaded int
	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		node = n

		at := s.opts.Now()
		ok, err := s.directory.Trash(ctx, n, at)
		if err != nil || !ok {
			return err
		}
		changed = true

		if !s.opts.CascadeTrash || !n.IsFolder() {
			return nil
		}

		descendants, err := s.directory.Descendants(ctx, n.ID)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			if d.Trashed {
				continue
			}
			fresh, err := s.directory.GetForUpdate(ctx, d.ID)
			if err != nil {
				return err
			}
			if _, err := s.directory.Trash(ctx, fresh, at); err != nil {
				return err
			}
			cascaded++
		}
		return nil
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	if changed {
		logger.Debug("Trashed", slog.String("id", id), slog.Int("cascaded", cascaded))
		s.emit(ctx, audit.Event{
			ActorID: actorID,
			FileID:  id,
			Verb:    audit.VerbTrash,
			Detail:  fmt.Sprintf("Moved %q to trash", node.Name),
		})
	}
	return node, nil
}

// Restore brings a trashed node back. With cascade enabled the descendants
// trashed together with it come back too.
func (s *driveService) Restore(ctx context.Context, actorID string, id string) (node *models.FileNode, err error) {
	const op = "service.driveService.Restore"
	defer func(started time.Time) { s.observe("restore", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Restore", slog.String("id", id))

	var changed, rehomed bool
	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		node = n

		trashedAt := n.TrashedAt
		ok, moved, err := s.directory.Restore(ctx, n)
		if err != nil || !ok {
			return err
		}
		changed, rehomed = true, moved

		if !s.opts.CascadeTrash || !n.IsFolder() || trashedAt == nil {
			return nil
		}

		descendants, err := s.directory.Descendants(ctx, n.ID)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			if !d.Trashed || d.TrashedAt == nil || !d.TrashedAt.Equal(*trashedAt) {
				continue
			}
			fresh, err := s.directory.GetForUpdate(ctx, d.ID)
			if err != nil {
				return err
			}
			if _, _, err := s.directory.Restore(ctx, fresh); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	if changed {
		detail := fmt.Sprintf("Restored %q from trash", node.Name)
		if rehomed {
			detail += " to root"
		}
		s.emit(ctx, audit.Event{
			ActorID: actorID,
			FileID:  id,
			Verb:    audit.VerbRestore,
			Detail:  detail,
		})
	}
	return node, nil
}

// PermanentlyDelete removes a trashed node with its history, grants and
// comments, and gives the bytes back to the owner's quota. Blobs are released
// after commit.
func (s *driveService) PermanentlyDelete(ctx context.Context, actorID string, id string) (err error) {
	const op = "service.driveService.PermanentlyDelete"
	defer func(started time.Time) { s.observe("delete", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("PermanentlyDelete", slog.String("id", id))

	var name string
	var released []string
	err = s.withNode(ctx, id, true, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		if !n.Trashed {
			return newError(errkind.Conflict, "move %q to trash before deleting it permanently", n.Name)
		}
		name = n.Name

		targets := []models.FileNode{*n}
		if s.opts.CascadeTrash && n.IsFolder() {
			descendants, err := s.directory.Descendants(ctx, n.ID)
			if err != nil {
				return err
			}
			targets = append(targets, descendants...)
		}

		released = released[:0]
		for i := range targets {
			handles, err := s.purge(ctx, &targets[i])
			if err != nil {
				return err
			}
			released = append(released, handles...)
		}
		return nil
	})
	if err != nil {
		return wrapUnexpected(op, err)
	}

	s.releaseBlobs(ctx, released...)
	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  id,
		Verb:    audit.VerbDelete,
		Detail:  fmt.Sprintf("Permanently deleted %q", name),
	})
	return nil
}

// purge deletes one node's metadata and returns the blob handles it owned.
func (s *driveService) purge(ctx context.Context, node *models.FileNode) ([]string, error) {
	versions, err := s.versions.Purge(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.shares.RevokeAll(ctx, node.ID); err != nil {
		return nil, err
	}
	if _, err := s.comments.DeleteByFile(ctx, node.ID); err != nil {
		return nil, err
	}
	if err := s.directory.PermanentlyDelete(ctx, node.ID); err != nil {
		return nil, err
	}

	if !node.IsFile() {
		return nil, nil
	}
	if _, err := s.quota.Adjust(ctx, node.OwnerID, -node.Size); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(versions)+1)
	handles := make([]string, 0, len(versions)+1)
	add := func(h string) {
		if _, ok := seen[h]; ok || h == "" {
			return
		}
		seen[h] = struct{}{}
		handles = append(handles, h)
	}
	if node.ContentHandle != nil {
		add(*node.ContentHandle)
	}
	for _, v := range versions {
		add(v.ContentHandle)
	}
	return handles, nil
}
