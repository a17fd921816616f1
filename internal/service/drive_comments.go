package service

import (
	"context"
	"fmt"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/google/uuid"
)

func (s *driveService) AddComment(ctx context.Context, actorID string, id string, body string) (comment *models.Comment, err error) {
	const op = "service.driveService.AddComment"
	defer func(started time.Time) { s.observe("add_comment", started, err) }(time.Now())

	if err := validateComment(body); err != nil {
		return nil, err
	}

	var name string
	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionCommenter); err != nil {
			return err
		}
		if n.Trashed {
			return newError(errkind.InvalidInput, "file is in trash")
		}
		name = n.Name

		c := &models.Comment{
			ID:        uuid.NewString(),
			FileID:    id,
			AuthorID:  actorID,
			Body:      body,
			CreatedAt: s.opts.Now(),
		}
		if err := s.comments.Create(ctx, c); err != nil {
			return err
		}
		comment = c
		return nil
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  id,
		Verb:    audit.VerbComment,
		Detail:  fmt.Sprintf("Commented on %q", name),
	})
	return comment, nil
}

func (s *driveService) ListComments(ctx context.Context, actorID string, id string) (comments []models.Comment, err error) {
	const op = "service.driveService.ListComments"
	defer func(started time.Time) { s.observe("list_comments", started, err) }(time.Now())

	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionViewer); err != nil {
		return nil, err
	}

	comments, err = s.comments.ListByFile(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	return comments, nil
}

// ListActivity returns the owner's view of what happened to a node, newest
// first.
func (s *driveService) ListActivity(ctx context.Context, actorID string, id string, limit int) (activity []models.Activity, err error) {
	const op = "service.driveService.ListActivity"
	defer func(started time.Time) { s.observe("list_activity", started, err) }(time.Now())

	if limit < 0 {
		return nil, newError(errkind.InvalidInput, "limit must not be negative")
	}

	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionOwner); err != nil {
		return nil, err
	}

	activity, err = s.activities.ListByFile(ctx, id, limit)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	return activity, nil
}
