package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/pkg/errkind"
	"github.com/S1riyS/drive-core/server/internal/repository"
	"github.com/S1riyS/drive-core/server/pkg/logging"
	"github.com/S1riyS/drive-core/server/pkg/logging/slogext"
	"github.com/google/uuid"
)

const linkTokenBytes = 32

// ShareRegistry manages grants and answers permission questions. Grants are
// per node: a grant on a folder says nothing about its children.
type ShareRegistry interface {
	Grant(ctx context.Context, fileID string, grantedBy string, granteeUserID string, permission models.Permission) (*models.ShareGrant, error)
	// GenerateLink returns the existing link grant when there is one.
	GenerateLink(ctx context.Context, fileID string, grantedBy string, permission models.Permission) (grant *models.ShareGrant, created bool, err error)
	Get(ctx context.Context, grantID string) (*models.ShareGrant, error)
	UpdatePermission(ctx context.Context, grantID string, permission models.Permission) (*models.ShareGrant, error)
	Revoke(ctx context.Context, grantID string) (*models.ShareGrant, error)
	ResolveEffectivePermission(ctx context.Context, fileID string, userID string) (models.Permission, error)
	PermissionFor(ctx context.Context, node *models.FileNode, userID string) (models.Permission, error)
	HasAtLeast(ctx context.Context, fileID string, userID string, required models.Permission) (bool, error)
	ResolveByLinkToken(ctx context.Context, token string) (*models.ShareGrant, error)
	ListGrantsForFile(ctx context.Context, fileID string) ([]models.ShareGrant, error)
	ListGrantsForGrantee(ctx context.Context, userID string) ([]models.ShareGrant, error)
	RevokeAll(ctx context.Context, fileID string) (int64, error)
}

type shareRegistry struct {
	shares repository.ShareRepository
	files  repository.FileRepository
	now    func() time.Time
}

func NewShareRegistry(shares repository.ShareRepository, files repository.FileRepository, now func() time.Time) ShareRegistry {
	if now == nil {
		now = time.Now
	}
	return &shareRegistry{shares: shares, files: files, now: now}
}

func (r *shareRegistry) Grant(ctx context.Context, fileID string, grantedBy string, granteeUserID string, permission models.Permission) (*models.ShareGrant, error) {
	const op = "service.shareRegistry.Grant"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Granting access",
		slog.String("file_id", fileID),
		slog.String("grantee", granteeUserID),
		slog.String("permission", permission.String()))

	if !permission.Grantable() {
		return nil, newError(errkind.InvalidInput, "permission %s cannot be granted", permission)
	}
	if granteeUserID == "" {
		return nil, newError(errkind.InvalidInput, "grantee must not be empty")
	}

	node, err := r.node(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID == granteeUserID {
		return nil, newError(errkind.Conflict, "file is already owned by %s", granteeUserID)
	}

	existing, err := r.shares.FindByGrantee(ctx, fileID, granteeUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, newError(errkind.Conflict, "file is already shared with %s", granteeUserID)
	}

	grantee := granteeUserID
	grant := &models.ShareGrant{
		ID:            uuid.NewString(),
		FileID:        fileID,
		GrantedBy:     grantedBy,
		GranteeUserID: &grantee,
		Permission:    permission,
		CreatedAt:     r.now(),
	}
	if err := r.shares.Create(ctx, grant); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(errkind.Conflict, "file is already shared with %s", granteeUserID)
		}
		logger.Error("Failed to create grant", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

func (r *shareRegistry) GenerateLink(ctx context.Context, fileID string, grantedBy string, permission models.Permission) (*models.ShareGrant, bool, error) {
	const op = "service.shareRegistry.GenerateLink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if !permission.Grantable() {
		return nil, false, newError(errkind.InvalidInput, "permission %s cannot be granted", permission)
	}
	if _, err := r.node(ctx, fileID); err != nil {
		return nil, false, err
	}

	existing, err := r.shares.FindLink(ctx, fileID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		logger.Debug("Link already exists", slog.String("file_id", fileID))
		return existing, false, nil
	}

	token, err := newLinkToken()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	grant := &models.ShareGrant{
		ID:         uuid.NewString(),
		FileID:     fileID,
		GrantedBy:  grantedBy,
		Permission: permission,
		LinkToken:  &token,
		CreatedAt:  r.now(),
	}
	if err := r.shares.Create(ctx, grant); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with another generator; hand out the winner's link.
			existing, findErr := r.shares.FindLink(ctx, fileID)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
			return nil, false, newError(errkind.Conflict, "link already exists")
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return grant, true, nil
}

func (r *shareRegistry) Get(ctx context.Context, grantID string) (*models.ShareGrant, error) {
	const op = "service.shareRegistry.Get"

	grant, err := r.shares.Get(ctx, grantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if grant == nil {
		return nil, newError(errkind.NotFound, "share not found")
	}
	return grant, nil
}

func (r *shareRegistry) UpdatePermission(ctx context.Context, grantID string, permission models.Permission) (*models.ShareGrant, error) {
	const op = "service.shareRegistry.UpdatePermission"

	if !permission.Grantable() {
		return nil, newError(errkind.InvalidInput, "permission %s cannot be granted", permission)
	}

	grant, err := r.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if err := r.shares.UpdatePermission(ctx, grantID, permission); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	grant.Permission = permission
	return grant, nil
}

func (r *shareRegistry) Revoke(ctx context.Context, grantID string) (*models.ShareGrant, error) {
	const op = "service.shareRegistry.Revoke"

	grant, err := r.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if err := r.shares.Delete(ctx, grantID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

func (r *shareRegistry) ResolveEffectivePermission(ctx context.Context, fileID string, userID string) (models.Permission, error) {
	node, err := r.node(ctx, fileID)
	if err != nil {
		return models.PermissionNone, err
	}
	return r.PermissionFor(ctx, node, userID)
}

func (r *shareRegistry) PermissionFor(ctx context.Context, node *models.FileNode, userID string) (models.Permission, error) {
	const op = "service.shareRegistry.PermissionFor"

	if userID == "" {
		return models.PermissionNone, nil
	}
	if node.OwnerID == userID {
		return models.PermissionOwner, nil
	}

	grant, err := r.shares.FindByGrantee(ctx, node.ID, userID)
	if err != nil {
		return models.PermissionNone, fmt.Errorf("%s: %w", op, err)
	}
	if grant == nil {
		return models.PermissionNone, nil
	}
	return grant.Permission, nil
}

func (r *shareRegistry) HasAtLeast(ctx context.Context, fileID string, userID string, required models.Permission) (bool, error) {
	p, err := r.ResolveEffectivePermission(ctx, fileID, userID)
	if err != nil {
		return false, err
	}
	return p.AtLeast(required), nil
}

func (r *shareRegistry) ResolveByLinkToken(ctx context.Context, token string) (*models.ShareGrant, error) {
	const op = "service.shareRegistry.ResolveByLinkToken"

	if token == "" {
		return nil, newError(errkind.InvalidInput, "link token must not be empty")
	}

	grant, err := r.shares.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if grant == nil {
		return nil, newError(errkind.NotFound, "link not found")
	}
	return grant, nil
}

func (r *shareRegistry) ListGrantsForFile(ctx context.Context, fileID string) ([]models.ShareGrant, error) {
	const op = "service.shareRegistry.ListGrantsForFile"

	grants, err := r.shares.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grants, nil
}

func (r *shareRegistry) ListGrantsForGrantee(ctx context.Context, userID string) ([]models.ShareGrant, error) {
	const op = "service.shareRegistry.ListGrantsForGrantee"

	grants, err := r.shares.ListByGrantee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grants, nil
}

func (r *shareRegistry) RevokeAll(ctx context.Context, fileID string) (int64, error) {
	const op = "service.shareRegistry.RevokeAll"

	n, err := r.shares.DeleteByFile(ctx, fileID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (r *shareRegistry) node(ctx context.Context, fileID string) (*models.FileNode, error) {
	const op = "service.shareRegistry.node"

	node, err := r.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if node == nil {
		return nil, newError(errkind.NotFound, "file not found")
	}
	return node, nil
}

func newLinkToken() (string, error) {
	b := make([]byte, linkTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
