package memory

import (
	"context"
	"sort"

	"github.com/S1riyS/drive-core/server/internal/models"
)

type commentRepository struct {
	s *Store
}

func (r *commentRepository) Create(ctx context.Context, c *models.Comment) error {
	return r.s.run(ctx, func(t *tables) error {
		t.comments[c.FileID] = append(t.comments[c.FileID], *c)
		return nil
	})
}

func (r *commentRepository) ListByFile(ctx context.Context, fileID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.s.run(ctx, func(t *tables) error {
		comments = append(comments, t.comments[fileID]...)
		return nil
	})
	return comments, err
}

func (r *commentRepository) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	var n int64
	err := r.s.run(ctx, func(t *tables) error {
		n = int64(len(t.comments[fileID]))
		delete(t.comments, fileID)
		return nil
	})
	return n, err
}

type activityRepository struct {
	s *Store
}

func (r *activityRepository) Create(ctx context.Context, a *models.Activity) error {
	return r.s.run(ctx, func(t *tables) error {
		t.activities = append(t.activities, *a)
		return nil
	})
}

func (r *activityRepository) ListByFile(ctx context.Context, fileID string, limit int) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.s.run(ctx, func(t *tables) error {
		for _, a := range t.activities {
			if a.FileID == fileID {
				activities = append(activities, a)
			}
		}
		return nil
	})

	// Newest first; insertion order breaks ties.
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
	}
	return activities, err
}
