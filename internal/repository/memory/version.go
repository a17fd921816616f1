package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/repository"
)

type versionRepository struct {
	s *Store
}

func (r *versionRepository) LatestNumber(ctx context.Context, fileID string) (int, error) {
	var latest int
	err := r.s.run(ctx, func(t *tables) error {
		for _, v := range t.versions[fileID] {
			if v.VersionNumber > latest {
				latest = v.VersionNumber
			}
		}
		return nil
	})
	return latest, err
}

func (r *versionRepository) Create(ctx context.Context, v *models.Version) error {
	const op = "memory.versionRepository.Create"

	return r.s.run(ctx, func(t *tables) error {
		for _, existing := range t.versions[v.FileID] {
			if existing.VersionNumber == v.VersionNumber {
				return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
			}
		}
		t.versions[v.FileID] = append(t.versions[v.FileID], *v)
		return nil
	})
}

func (r *versionRepository) Find(ctx context.Context, fileID string, number int) (*models.Version, error) {
	var found *models.Version
	err := r.s.run(ctx, func(t *tables) error {
		for _, v := range t.versions[fileID] {
			if v.VersionNumber == number {
				cp := v
				found = &cp
				break
			}
		}
		return nil
	})
	return found, err
}

func (r *versionRepository) List(ctx context.Context, fileID string) ([]models.Version, error) {
	var versions []models.Version
	err := r.s.run(ctx, func(t *tables) error {
		versions = append(versions, t.versions[fileID]...)
		return nil
	})
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	return versions, err
}

func (r *versionRepository) DeleteByFile(ctx context.Context, fileID string) ([]models.Version, error) {
	var removed []models.Version
	err := r.s.run(ctx, func(t *tables) error {
		removed = t.versions[fileID]
		delete(t.versions, fileID)
		return nil
	})
	return removed, err
}

func (r *versionRepository) ReferencesHandle(ctx context.Context, fileID string, handle string) (bool, error) {
	var found bool
	err := r.s.run(ctx, func(t *tables) error {
		for _, v := range t.versions[fileID] {
			if v.ContentHandle == handle {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}
