package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/repository"
)

type fileRepository struct {
	s *Store
}

func (r *fileRepository) Get(ctx context.Context, id string) (*models.FileNode, error) {
	var node *models.FileNode
	err := r.s.run(ctx, func(t *tables) error {
		node = t.files[id].Clone()
		return nil
	})
	return node, err
}

func (r *fileRepository) GetForUpdate(ctx context.Context, id string) (*models.FileNode, error) {
	return r.Get(ctx, id)
}

func (r *fileRepository) Create(ctx context.Context, node *models.FileNode) error {
	const op = "memory.fileRepository.Create"

	return r.s.run(ctx, func(t *tables) error {
		if _, ok := t.files[node.ID]; ok {
			return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
		}
		t.files[node.ID] = node.Clone()
		return nil
	})
}

func (r *fileRepository) Update(ctx context.Context, node *models.FileNode) error {
	return r.s.run(ctx, func(t *tables) error {
		existing, ok := t.files[node.ID]
		if !ok {
			return nil
		}
		updated := node.Clone()
		// Immutable columns stay as stored.
		updated.Type = existing.Type
		updated.OwnerID = existing.OwnerID
		updated.CreatedAt = existing.CreatedAt
		t.files[node.ID] = updated
		return nil
	})
}

func (r *fileRepository) Delete(ctx context.Context, id string) error {
	return r.s.run(ctx, func(t *tables) error {
		delete(t.files, id)
		return nil
	})
}

func (r *fileRepository) List(ctx context.Context, filter models.ListFilter) ([]models.FileNode, error) {
	var nodes []models.FileNode
	err := r.s.run(ctx, func(t *tables) error {
		for _, n := range t.files {
			if matches(filter, n) {
				nodes = append(nodes, *n.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNodes(nodes, filter.SortBy, filter.SortOrder)

	if filter.Offset > 0 {
		if filter.Offset >= len(nodes) {
			return nil, nil
		}
		nodes = nodes[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(nodes) {
		nodes = nodes[:filter.Limit]
	}

	return nodes, nil
}

func (r *fileRepository) ListDescendants(ctx context.Context, id string) ([]models.FileNode, error) {
	var nodes []models.FileNode
	err := r.s.run(ctx, func(t *tables) error {
		children := make(map[string][]*models.FileNode)
		for _, n := range t.files {
			if n.ParentID != nil {
				children[*n.ParentID] = append(children[*n.ParentID], n)
			}
		}

		seen := map[string]bool{id: true}
		queue := []string{id}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, child := range children[current] {
				if seen[child.ID] {
					continue
				}
				seen[child.ID] = true
				nodes = append(nodes, *child.Clone())
				queue = append(queue, child.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
	return nodes, nil
}

func (r *fileRepository) SumFileSizes(ctx context.Context, ownerID string) (int64, error) {
	var total int64
	err := r.s.run(ctx, func(t *tables) error {
		for _, n := range t.files {
			if n.OwnerID == ownerID && n.IsFile() {
				total += n.Size
			}
		}
		return nil
	})
	return total, err
}

func (r *fileRepository) ListOwnerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.s.run(ctx, func(t *tables) error {
		owners := make(map[string]struct{})
		for _, n := range t.files {
			owners[n.OwnerID] = struct{}{}
		}
		ids = sortedKeys(owners)
		return nil
	})
	return ids, err
}

func matches(f models.ListFilter, n *models.FileNode) bool {
	if n.OwnerID != f.OwnerID || n.Trashed != f.Trashed {
		return false
	}

	switch {
	case f.ParentID != nil:
		if n.ParentID == nil || *n.ParentID != *f.ParentID {
			return false
		}
	case f.RootOnly:
		if n.ParentID != nil {
			return false
		}
	}

	if f.Starred != nil && n.Starred != *f.Starred {
		return false
	}
	if f.Type != nil && n.Type != *f.Type {
		return false
	}
	if f.NameQuery != "" && !containsFold(n.Name, f.NameQuery) {
		return false
	}
	if f.ContentType != "" && (n.ContentType == nil || !containsFold(*n.ContentType, f.ContentType)) {
		return false
	}
	if f.CreatedAfter != nil && n.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && n.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.ModifiedAfter != nil && n.UpdatedAt.Before(*f.ModifiedAfter) {
		return false
	}
	if f.ModifiedBefore != nil && n.UpdatedAt.After(*f.ModifiedBefore) {
		return false
	}
	if f.MinSize != nil && n.Size < *f.MinSize {
		return false
	}
	if f.MaxSize != nil && n.Size > *f.MaxSize {
		return false
	}

	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func sortNodes(nodes []models.FileNode, field models.SortField, order models.SortOrder) {
	desc := order == models.SortDesc

	compare := func(a, b models.FileNode) int {
		switch field {
		case models.SortByName:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case models.SortByCreated:
			return a.CreatedAt.Compare(b.CreatedAt)
		case models.SortByModified:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case models.SortBySize:
			return compareInt64(a.Size, b.Size)
		default:
			if a.Type != b.Type {
				return int(a.Type) - int(b.Type)
			}
			// Default order ignores SortOrder.
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		c := compare(nodes[i], nodes[j])
		if c == 0 {
			return nodes[i].ID < nodes[j].ID
		}
		if desc && field != "" {
			return c > 0
		}
		return c < 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
