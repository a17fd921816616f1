package memory

import (
	"context"

	"github.com/S1riyS/drive-core/server/internal/models"
)

type quotaRepository struct {
	s *Store
}

func (r *quotaRepository) Get(ctx context.Context, userID string) (models.Usage, error) {
	usage := models.Usage{UserID: userID, StorageLimit: r.s.defaultLimit}
	err := r.s.run(ctx, func(t *tables) error {
		if u, ok := t.quotas[userID]; ok {
			usage = *u
		}
		return nil
	})
	return usage, err
}

func (r *quotaRepository) GetForUpdate(ctx context.Context, userID string) (models.Usage, error) {
	var usage models.Usage
	err := r.s.run(ctx, func(t *tables) error {
		usage = *r.ensure(t, userID)
		return nil
	})
	return usage, err
}

func (r *quotaRepository) Adjust(ctx context.Context, userID string, delta int64) (models.Usage, error) {
	var usage models.Usage
	err := r.s.run(ctx, func(t *tables) error {
		u := r.ensure(t, userID)
		u.StorageUsed += delta
		usage = *u
		return nil
	})
	return usage, err
}

func (r *quotaRepository) SetUsed(ctx context.Context, userID string, used int64) error {
	return r.s.run(ctx, func(t *tables) error {
		r.ensure(t, userID).StorageUsed = used
		return nil
	})
}

func (r *quotaRepository) SetLimit(ctx context.Context, userID string, limit int64) error {
	return r.s.run(ctx, func(t *tables) error {
		r.ensure(t, userID).StorageLimit = limit
		return nil
	})
}

func (r *quotaRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.s.run(ctx, func(t *tables) error {
		users := make(map[string]struct{}, len(t.quotas))
		for id := range t.quotas {
			users[id] = struct{}{}
		}
		for _, n := range t.files {
			users[n.OwnerID] = struct{}{}
		}
		ids = sortedKeys(users)
		return nil
	})
	return ids, err
}

func (r *quotaRepository) ensure(t *tables, userID string) *models.Usage {
	u, ok := t.quotas[userID]
	if !ok {
		u = &models.Usage{UserID: userID, StorageLimit: r.s.defaultLimit}
		t.quotas[userID] = u
	}
	return u
}
