package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/repository"
)

type shareRepository struct {
	s *Store
}

func (r *shareRepository) Create(ctx context.Context, g *models.ShareGrant) error {
	const op = "memory.shareRepository.Create"

	return r.s.run(ctx, func(t *tables) error {
		for _, existing := range t.grants {
			if existing.ID == g.ID {
				return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
			}
			if existing.FileID != g.FileID {
				if g.LinkToken != nil && existing.LinkToken != nil && *existing.LinkToken == *g.LinkToken {
					return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
				}
				continue
			}
			if sameGrantee(existing.GranteeUserID, g.GranteeUserID) {
				return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
			}
		}
		cp := *g
		t.grants[g.ID] = &cp
		return nil
	})
}

func (r *shareRepository) Get(ctx context.Context, id string) (*models.ShareGrant, error) {
	return r.find(ctx, func(g *models.ShareGrant) bool { return g.ID == id })
}

func (r *shareRepository) FindByGrantee(ctx context.Context, fileID string, userID string) (*models.ShareGrant, error) {
	return r.find(ctx, func(g *models.ShareGrant) bool {
		return g.FileID == fileID && g.GranteeUserID != nil && *g.GranteeUserID == userID
	})
}

func (r *shareRepository) FindLink(ctx context.Context, fileID string) (*models.ShareGrant, error) {
	return r.find(ctx, func(g *models.ShareGrant) bool {
		return g.FileID == fileID && g.GranteeUserID == nil
	})
}

func (r *shareRepository) FindByToken(ctx context.Context, token string) (*models.ShareGrant, error) {
	return r.find(ctx, func(g *models.ShareGrant) bool {
		return g.LinkToken != nil && *g.LinkToken == token
	})
}

func (r *shareRepository) UpdatePermission(ctx context.Context, id string, permission models.Permission) error {
	return r.s.run(ctx, func(t *tables) error {
		if g, ok := t.grants[id]; ok {
			g.Permission = permission
		}
		return nil
	})
}

func (r *shareRepository) Delete(ctx context.Context, id string) error {
	return r.s.run(ctx, func(t *tables) error {
		delete(t.grants, id)
		return nil
	})
}

func (r *shareRepository) ListByFile(ctx context.Context, fileID string) ([]models.ShareGrant, error) {
	return r.filter(ctx, func(g *models.ShareGrant) bool { return g.FileID == fileID })
}

func (r *shareRepository) ListByGrantee(ctx context.Context, userID string) ([]models.ShareGrant, error) {
	return r.filter(ctx, func(g *models.ShareGrant) bool {
		return g.GranteeUserID != nil && *g.GranteeUserID == userID
	})
}

func (r *shareRepository) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	var n int64
	err := r.s.run(ctx, func(t *tables) error {
		for id, g := range t.grants {
			if g.FileID == fileID {
				delete(t.grants, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *shareRepository) find(ctx context.Context, match func(*models.ShareGrant) bool) (*models.ShareGrant, error) {
	grants, err := r.filter(ctx, match)
	if err != nil || len(grants) == 0 {
		return nil, err
	}
	return &grants[0], nil
}

func (r *shareRepository) filter(ctx context.Context, match func(*models.ShareGrant) bool) ([]models.ShareGrant, error) {
	var grants []models.ShareGrant
	err := r.s.run(ctx, func(t *tables) error {
		for _, g := range t.grants {
			if match(g) {
				grants = append(grants, *g)
			}
		}
		return nil
	})

	sort.Slice(grants, func(i, j int) bool {
		if grants[i].CreatedAt.Equal(grants[j].CreatedAt) {
			return grants[i].ID < grants[j].ID
		}
		return grants[i].CreatedAt.Before(grants[j].CreatedAt)
	})
	return grants, err
}

func sameGrantee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
