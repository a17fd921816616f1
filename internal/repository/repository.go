package repository

import (
	"context"
	"errors"

	"github.com/S1riyS/drive-core/server/internal/models"
)

// ErrDuplicate is returned when an insert hits a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Lookups return (nil, nil) when the record does not exist.

type FileRepository interface {
	Get(ctx context.Context, id string) (*models.FileNode, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.FileNode, error)
	Create(ctx context.Context, node *models.FileNode) error
	Update(ctx context.Context, node *models.FileNode) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ListFilter) ([]models.FileNode, error)
	// ListDescendants returns every node below id, trashed or not.
	ListDescendants(ctx context.Context, id string) ([]models.FileNode, error)
	SumFileSizes(ctx context.Context, ownerID string) (int64, error)
	ListOwnerIDs(ctx context.Context) ([]string, error)
}

type VersionRepository interface {
	LatestNumber(ctx context.Context, fileID string) (int, error)
	Create(ctx context.Context, version *models.Version) error
	Find(ctx context.Context, fileID string, number int) (*models.Version, error)
	// List is ordered by version number, newest first.
	List(ctx context.Context, fileID string) ([]models.Version, error)
	DeleteByFile(ctx context.Context, fileID string) ([]models.Version, error)
	ReferencesHandle(ctx context.Context, fileID string, handle string) (bool, error)
}

type ShareRepository interface {
	Create(ctx context.Context, grant *models.ShareGrant) error
	Get(ctx context.Context, id string) (*models.ShareGrant, error)
	FindByGrantee(ctx context.Context, fileID string, userID string) (*models.ShareGrant, error)
	FindLink(ctx context.Context, fileID string) (*models.ShareGrant, error)
	FindByToken(ctx context.Context, token string) (*models.ShareGrant, error)
	UpdatePermission(ctx context.Context, id string, permission models.Permission) error
	Delete(ctx context.Context, id string) error
	ListByFile(ctx context.Context, fileID string) ([]models.ShareGrant, error)
	ListByGrantee(ctx context.Context, userID string) ([]models.ShareGrant, error)
	DeleteByFile(ctx context.Context, fileID string) (int64, error)
}

// QuotaRepository stores per-user usage. Rows are created lazily with the
// repository's default limit.
type QuotaRepository interface {
	Get(ctx context.Context, userID string) (models.Usage, error)
	// GetForUpdate creates the row if needed and locks it.
	GetForUpdate(ctx context.Context, userID string) (models.Usage, error)
	Adjust(ctx context.Context, userID string, delta int64) (models.Usage, error)
	SetUsed(ctx context.Context, userID string, used int64) error
	SetLimit(ctx context.Context, userID string, limit int64) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByFile(ctx context.Context, fileID string) ([]models.Comment, error)
	DeleteByFile(ctx context.Context, fileID string) (int64, error)
}

type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	// ListByFile returns the newest entries first. limit <= 0 means no limit.
	ListByFile(ctx context.Context, fileID string, limit int) ([]models.Activity, error)
}
