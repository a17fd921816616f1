package service

import (
	"context"
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

// maxAncestryDepth bounds parent walks so a corrupted cycle cannot hang them.
const maxAncestryDepth = 1024

type NewFile struct {
	Name          string
	ContentType   *string
	Size          int64
	ContentHandle string
	OwnerID       string
	ParentID      *string
}

// Directory owns the node tree. Methods taking a *models.FileNode expect a
// copy loaded inside the caller's transaction and persist the change on it.
type Directory interface {
	CreateFolder(ctx context.Context, name string, ownerID string, parentID *string) (*models.FileNode, error)
	CreateFile(ctx context.Context, in NewFile) (*models.FileNode, error)
	Get(ctx context.Context, id string) (*models.FileNode, error)
	GetForUpdate(ctx context.Context, id string) (*models.FileNode, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.FileNode, error)
	Rename(ctx context.Context, node *models.FileNode, name string) error
	// Move reports false when the node already sits under newParentID.
	Move(ctx context.Context, node *models.FileNode, newParentID *string) (bool, error)
	SetStarred(ctx context.Context, node *models.FileNode, starred bool) (bool, error)
	TouchLastOpened(ctx context.Context, node *models.FileNode) error
	Trash(ctx context.Context, node *models.FileNode, at time.Time) (bool, error)
	// Restore reports whether the node changed and whether it was re-homed
	// at root because its parent is gone or still trashed.
	Restore(ctx context.Context, node *models.FileNode) (changed bool, rehomed bool, err error)
	PermanentlyDelete(ctx context.Context, id string) error
	ResolveAncestryPath(ctx context.Context, id string) ([]models.PathEntry, error)
	SetContent(ctx context.Context, node *models.FileNode, handle string, size int64, contentType *string, version int) error
	Descendants(ctx context.Context, id string) ([]models.FileNode, error)
}

type directory struct {
	files repository.FileRepository
	now   func() time.Time
}

func NewDirectory(files repository.FileRepository, now func() time.Time) Directory {
	if now == nil {
		now = time.Now
	}
	return &directory{files: files, now: now}
}

func (d *directory) CreateFolder(ctx context.Context, name string, ownerID string, parentID *string) (*models.FileNode, error) {
	const op = "service.directory.CreateFolder"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Creating folder", slog.String("name", name), slog.String("owner_id", ownerID))

	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := d.checkParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	now := d.now()
	node := &models.FileNode{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      models.NodeTypeFolder,
		OwnerID:   ownerID,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.files.Create(ctx, node); err != nil {
		logger.Error("Failed to create folder", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return node, nil
}

func (d *directory) CreateFile(ctx context.Context, in NewFile) (*models.FileNode, error) {
	const op = "service.directory.CreateFile"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Creating file", slog.String("name", in.Name), slog.Int64("size", in.Size))

	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}
	if in.Size < 0 {
		return nil, newError(errkind.InvalidInput, "size must not be negative")
	}
	if err := d.checkParent(ctx, in.OwnerID, in.ParentID); err != nil {
		return nil, err
	}

	now := d.now()
	handle := in.ContentHandle
	node := &models.FileNode{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Type:          models.NodeTypeFile,
		ContentType:   in.ContentType,
		Size:          in.Size,
		OwnerID:       in.OwnerID,
		ParentID:      in.ParentID,
		CreatedAt:     now,
		UpdatedAt:     now,
		ContentHandle: &handle,
	}
	if err := d.files.Create(ctx, node); err != nil {
		logger.Error("Failed to create file", slogext.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return node, nil
}

func (d *directory) Get(ctx context.Context, id string) (*models.FileNode, error) {
	const op = "service.directory.Get"

	node, err := d.files.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if node == nil {
		return nil, newError(errkind.NotFound, "file not found")
	}
	return node, nil
}

func (d *directory) GetForUpdate(ctx context.Context, id string) (*models.FileNode, error) {
	const op = "service.directory.GetForUpdate"

	node, err := d.files.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if node == nil {
		return nil, newError(errkind.NotFound, "file not found")
	}
	return node, nil
}

func (d *directory) List(ctx context.Context, filter models.ListFilter) ([]models.FileNode, error) {
	const op = "service.directory.List"

	switch filter.SortBy {
	case "", models.SortByName, models.SortByCreated, models.SortByModified, models.SortBySize:
	default:
		return nil, newError(errkind.InvalidInput, "unknown sort field %q", filter.SortBy)
	}
	switch filter.SortOrder {
	case "", models.SortAsc, models.SortDesc:
	default:
		return nil, newError(errkind.InvalidInput, "unknown sort order %q", filter.SortOrder)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, newError(errkind.InvalidInput, "limit and offset must not be negative")
	}
	if filter.MinSize != nil && filter.MaxSize != nil && *filter.MinSize > *filter.MaxSize {
		return nil, newError(errkind.InvalidInput, "min size is greater than max size")
	}

	nodes, err := d.files.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nodes, nil
}

func (d *directory) Rename(ctx context.Context, node *models.FileNode, name string) error {
	const op = "service.directory.Rename"

	if err := ValidateName(name); err != nil {
		return err
	}

	node.Name = name
	node.UpdatedAt = d.now()
	if err := d.files.Update(ctx, node); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *directory) Move(ctx context.Context, node *models.FileNode, newParentID *string) (bool, error) {
	const op = "service.directory.Move"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if sameParent(node.ParentID, newParentID) {
		logger.Debug("Node already under target parent", slog.String("id", node.ID))
		return false, nil
	}
	if newParentID != nil && *newParentID == node.ID {
		return false, newError(errkind.Conflict, "cannot move a folder into itself")
	}
	if err := d.checkParent(ctx, node.OwnerID, newParentID); err != nil {
		return false, err
	}
	if newParentID != nil && node.IsFolder() {
		if err := d.checkNoCycle(ctx, node.ID, *newParentID); err != nil {
			return false, err
		}
	}

	node.ParentID = newParentID
	node.UpdatedAt = d.now()
	if err := d.files.Update(ctx, node); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (d *directory) SetStarred(ctx context.Context, node *models.FileNode, starred bool) (bool, error) {
	const op = "service.directory.SetStarred"

	if node.Starred == starred {
		return false, nil
	}

	node.Starred = starred
	if err := d.files.Update(ctx, node); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (d *directory) TouchLastOpened(ctx context.Context, node *models.FileNode) error {
	const op = "service.directory.TouchLastOpened"

	now := d.now()
	node.LastOpenedAt = &now
	if err := d.files.Update(ctx, node); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *directory) Trash(ctx context.Context, node *models.FileNode, at time.Time) (bool, error) {
	const op = "service.directory.Trash"

	if node.Trashed {
		return false, nil
	}

	node.Trashed = true
	node.TrashedAt = &at
	node.UpdatedAt = at
	if err := d.files.Update(ctx, node); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (d *directory) Restore(ctx context.Context, node *models.FileNode) (bool, bool, error) {
	const op = "service.directory.Restore"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	if !node.Trashed {
		return false, false, nil
	}

	rehomed := false
	if node.ParentID != nil {
		parent, err := d.files.Get(ctx, *node.ParentID)
		if err != nil {
			return false, false, fmt.Errorf("%s: %w", op, err)
		}
		if parent == nil || parent.Trashed {
			logger.Debug("Parent unavailable, restoring at root",
				slog.String("id", node.ID), slog.String("parent_id", *node.ParentID))
			node.ParentID = nil
			rehomed = true
		}
	}

	node.Trashed = false
	node.TrashedAt = nil
	node.UpdatedAt = d.now()
	if err := d.files.Update(ctx, node); err != nil {
		return false, false, fmt.Errorf("%s: %w", op, err)
	}
	return true, rehomed, nil
}

func (d *directory) PermanentlyDelete(ctx context.Context, id string) error {
	const op = "service.directory.PermanentlyDelete"

	if err := d.files.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *directory) ResolveAncestryPath(ctx context.Context, id string) ([]models.PathEntry, error) {
	const op = "service.directory.ResolveAncestryPath"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	node, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	degraded := []models.PathEntry{{ID: node.ID, Name: node.Name}}
	path := degraded
	seen := map[string]struct{}{node.ID: {}}

	for cur := node; cur.ParentID != nil; {
		if len(path) > maxAncestryDepth {
			logger.Warn("Ancestry too deep, returning node only", slog.String("id", id))
			return degraded, nil
		}

		parentID := *cur.ParentID
		if _, ok := seen[parentID]; ok {
			logger.Warn("Ancestry cycle detected, returning node only",
				slog.String("id", id), slog.String("parent_id", parentID))
			return degraded, nil
		}

		parent, err := d.files.Get(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if parent == nil {
			logger.Warn("Broken ancestor link, returning node only",
				slog.String("id", id), slog.String("parent_id", parentID))
			return degraded, nil
		}

		seen[parent.ID] = struct{}{}
		path = append(path, models.PathEntry{ID: parent.ID, Name: parent.Name})
		cur = parent
	}

	// Collected leaf first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (d *directory) SetContent(ctx context.Context, node *models.FileNode, handle string, size int64, contentType *string, version int) error {
	const op = "service.directory.SetContent"

	if !node.IsFile() {
		return newError(errkind.InvalidInput, "folders have no content")
	}

	node.ContentHandle = &handle
	node.Size = size
	if contentType != nil {
		node.ContentType = contentType
	}
	node.CurrentVersion = version
	node.UpdatedAt = d.now()
	if err := d.files.Update(ctx, node); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *directory) Descendants(ctx context.Context, id string) ([]models.FileNode, error) {
	const op = "service.directory.Descendants"

	nodes, err := d.files.ListDescendants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nodes, nil
}

func (d *directory) checkParent(ctx context.Context, ownerID string, parentID *string) error {
	const op = "service.directory.checkParent"

	if parentID == nil {
		return nil
	}

	parent, err := d.files.Get(ctx, *parentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case parent == nil:
		return newError(errkind.NotFound, "parent folder not found")
	case !parent.IsFolder():
		return newError(errkind.InvalidInput, "parent is not a folder")
	case parent.OwnerID != ownerID:
		return newError(errkind.AccessDenied, "parent folder belongs to another user")
	case parent.Trashed:
		return newError(errkind.InvalidInput, "parent folder is in trash")
	}
	return nil
}

// checkNoCycle walks up from the target parent and fails if it meets the
// node being moved.
func (d *directory) checkNoCycle(ctx context.Context, nodeID string, targetID string) error {
	const op = "service.directory.checkNoCycle"

	cur := &targetID
	for depth := 0; cur != nil; depth++ {
		if *cur == nodeID {
			return newError(errkind.Conflict, "cannot move a folder into its own subtree")
		}
		if depth > maxAncestryDepth {
			return newError(errkind.Conflict, "folder hierarchy too deep")
		}

		parent, err := d.files.Get(ctx, *cur)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if parent == nil {
			return nil
		}
		cur = parent.ParentID
	}
	return nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
