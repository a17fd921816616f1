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
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
)

func (s *driveService) Share(ctx context.Context, actorID string, id string, granteeUserID string, permission models.Permission) (grant *models.ShareGrant, err error) {
	const op = "service.driveService.Share"
	defer func(started time.Time) { s.observe("share", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Share",
		slog.String("id", id),
		slog.String("grantee", granteeUserID),
		slog.String("permission", permission.String()))

	var name string
	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		if n.Trashed {
			return newError(errkind.InvalidInput, "file is in trash")
		}
		name = n.Name

		g, err := s.shares.Grant(ctx, id, actorID, granteeUserID, permission)
		grant = g
		return err
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  id,
		Verb:    audit.VerbShare,
		Detail:  fmt.Sprintf("Shared %q with %s as %s", name, granteeUserID, permission),
	})
	return grant, nil
}

func (s *driveService) UpdateSharePermission(ctx context.Context, actorID string, grantID string, permission models.Permission) (grant *models.ShareGrant, err error) {
	const op = "service.driveService.UpdateSharePermission"
	defer func(started time.Time) { s.observe("update_share", started, err) }(time.Now())

	existing, err := s.shares.Get(ctx, grantID)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	var name string
	err = s.withNode(ctx, existing.FileID, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		name = n.Name

		g, err := s.shares.UpdatePermission(ctx, grantID, permission)
		grant = g
		return err
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  grant.FileID,
		Verb:    audit.VerbUpdateShare,
		Detail:  fmt.Sprintf("Changed access to %q for %s to %s", name, granteeLabel(grant), permission),
	})
	return grant, nil
}

func (s *driveService) RevokeShare(ctx context.Context, actorID string, grantID string) (err error) {
	const op = "service.driveService.RevokeShare"
	defer func(started time.Time) { s.observe("revoke_share", started, err) }(time.Now())

	existing, err := s.shares.Get(ctx, grantID)
	if err != nil {
		return wrapUnexpected(op, err)
	}

	var name string
	err = s.withNode(ctx, existing.FileID, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		name = n.Name

		_, err := s.shares.Revoke(ctx, grantID)
		return err
	})
	if err != nil {
		return wrapUnexpected(op, err)
	}

	s.emit(ctx, audit.Event{
		ActorID: actorID,
		FileID:  existing.FileID,
		Verb:    audit.VerbRevokeShare,
		Detail:  fmt.Sprintf("Revoked access to %q for %s", name, granteeLabel(existing)),
	})
	return nil
}

func (s *driveService) GenerateLink(ctx context.Context, actorID string, id string, permission models.Permission) (grant *models.ShareGrant, err error) {
	const op = "service.driveService.GenerateLink"
	defer func(started time.Time) { s.observe("generate_link", started, err) }(time.Now())

	var name string
	var created bool
	err = s.withNode(ctx, id, false, func(ctx context.Context, n *models.FileNode) error {
		if err := s.authorize(ctx, n, actorID, models.PermissionOwner); err != nil {
			return err
		}
		if n.Trashed {
			return newError(errkind.InvalidInput, "file is in trash")
		}
		name = n.Name

		g, ok, err := s.shares.GenerateLink(ctx, id, actorID, permission)
		grant, created = g, ok
		return err
	})
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	if created {
		s.emit(ctx, audit.Event{
			ActorID: actorID,
			FileID:  id,
			Verb:    audit.VerbGenerateLink,
			Detail:  fmt.Sprintf("Created a %s link for %q", permission, name),
		})
	}
	return grant, nil
}

func (s *driveService) ListShares(ctx context.Context, actorID string, id string) (grants []models.ShareGrant, err error) {
	const op = "service.driveService.ListShares"
	defer func(started time.Time) { s.observe("list_shares", started, err) }(time.Now())

	node, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	if err := s.authorize(ctx, node, actorID, models.PermissionOwner); err != nil {
		return nil, err
	}

	grants, err = s.shares.ListGrantsForFile(ctx, id)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}
	return grants, nil
}

// SharedWithMe lists active nodes other users shared with the actor.
func (s *driveService) SharedWithMe(ctx context.Context, actorID string) (items []models.SharedItem, err error) {
	const op = "service.driveService.SharedWithMe"
	defer func(started time.Time) { s.observe("shared_with_me", started, err) }(time.Now())

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	grants, err := s.shares.ListGrantsForGrantee(ctx, actorID)
	if err != nil {
		return nil, wrapUnexpected(op, err)
	}

	items = make([]models.SharedItem, 0, len(grants))
	for _, g := range grants {
		node, err := s.directory.Get(ctx, g.FileID)
		if IsKind(err, errkind.NotFound) {
			logger.Warn("Grant points at a missing file", slog.String("grant_id", g.ID))
			continue
		}
		if err != nil {
			logger.Error("Failed to load shared file", slogext.Err(err), slog.String("file_id", g.FileID))
			return nil, wrapUnexpected(op, err)
		}
		if node.Trashed {
			continue
		}
		items = append(items, models.SharedItem{Grant: g, Node: *node})
	}
	return items, nil
}

// ResolveLink opens a link grant. Links to trashed files do not resolve.
func (s *driveService) ResolveLink(ctx context.Context, token string) (grant *models.ShareGrant, node *models.FileNode, err error) {
	const op = "service.driveService.ResolveLink"
	defer func(started time.Time) { s.observe("resolve_link", started, err) }(time.Now())

	grant, err = s.shares.ResolveByLinkToken(ctx, token)
	if err != nil {
		return nil, nil, wrapUnexpected(op, err)
	}
	node, err = s.directory.Get(ctx, grant.FileID)
	if err != nil {
		return nil, nil, wrapUnexpected(op, err)
	}
	if node.Trashed {
		return nil, nil, newError(errkind.NotFound, "link not found")
	}
	return grant, node, nil
}

func (s *driveService) DownloadByLink(ctx context.Context, token string) (node *models.FileNode, data []byte, err error) {
	const op = "service.driveService.DownloadByLink"
	defer func(started time.Time) { s.observe("download_link", started, err) }(time.Now())

	grant, resolved, err := s.ResolveLink(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !grant.Permission.AtLeast(models.PermissionViewer) {
		return nil, nil, newError(errkind.AccessDenied, "link does not allow downloads")
	}
	if !resolved.IsFile() {
		return nil, nil, newError(errkind.InvalidInput, "cannot download a folder")
	}

	unlock := s.locks.Lock(nodeKey(resolved.ID))
	defer unlock()

	// The content may have been replaced since the link was resolved.
	node, err = s.directory.Get(ctx, resolved.ID)
	if err != nil {
		return nil, nil, wrapUnexpected(op, err)
	}
	if node.Trashed {
		return nil, nil, newError(errkind.NotFound, "link not found")
	}
	data, err = s.readBlob(ctx, node)
	if err != nil {
		return nil, nil, wrapUnexpected(op, err)
	}
	return node, data, nil
}

func granteeLabel(g *models.ShareGrant) string {
	if g.IsLink() {
		return "link"
	}
	return *g.GranteeUserID
}
