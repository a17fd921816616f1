package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/jackc/pgx/v5"
)

type versionRepository struct {
	db postgresql.Client
}

func NewVersionRepository(db postgresql.Client) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) LatestNumber(ctx context.Context, fileID string) (int, error) {
	const op = "repository.versionRepository.LatestNumber"

	if !isUUID(fileID) {
		return 0, nil
	}

	query := `
		SELECT COALESCE(MAX(version_number), 0)
		FROM file_versions
		WHERE file_id = $1
	`

	var latest int
	db := postgresql.GetDBClient(ctx, r.db)
	if err := db.QueryRow(ctx, query, fileID).Scan(&latest); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return latest, nil
}

func (r *versionRepository) Create(ctx context.Context, v *models.Version) error {
	const op = "repository.versionRepository.Create"

	query := `
		INSERT INTO file_versions (file_id, version_number, content_handle, size, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, query, v.FileID, v.VersionNumber, v.ContentHandle, v.Size, v.UploadedBy, v.CreatedAt)
	if err != nil {
		if postgresql.IsUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *versionRepository) Find(ctx context.Context, fileID string, number int) (*models.Version, error) {
	const op = "repository.versionRepository.Find"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `
		SELECT file_id::text, version_number, content_handle, size, uploaded_by, created_at
		FROM file_versions
		WHERE file_id = $1 AND version_number = $2
	`

	var v models.Version
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, fileID, number).Scan(
		&v.FileID,
		&v.VersionNumber,
		&v.ContentHandle,
		&v.Size,
		&v.UploadedBy,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &v, nil
}

func (r *versionRepository) List(ctx context.Context, fileID string) ([]models.Version, error) {
	const op = "repository.versionRepository.List"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `
		SELECT file_id::text, version_number, content_handle, size, uploaded_by, created_at
		FROM file_versions
		WHERE file_id = $1
		ORDER BY version_number DESC
	`

	versions, err := r.collect(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return versions, nil
}

func (r *versionRepository) DeleteByFile(ctx context.Context, fileID string) ([]models.Version, error) {
	const op = "repository.versionRepository.DeleteByFile"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `
		DELETE FROM file_versions
		WHERE file_id = $1
		RETURNING file_id::text, version_number, content_handle, size, uploaded_by, created_at
	`

	versions, err := r.collect(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return versions, nil
}

func (r *versionRepository) ReferencesHandle(ctx context.Context, fileID string, handle string) (bool, error) {
	const op = "repository.versionRepository.ReferencesHandle"

	if !isUUID(fileID) {
		return false, nil
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM file_versions WHERE file_id = $1 AND content_handle = $2
		)
	`

	var exists bool
	db := postgresql.GetDBClient(ctx, r.db)
	if err := db.QueryRow(ctx, query, fileID, handle).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (r *versionRepository) collect(ctx context.Context, query string, args ...any) ([]models.Version, error) {
	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Version, error) {
		var v models.Version
		err := row.Scan(&v.FileID, &v.VersionNumber, &v.ContentHandle, &v.Size, &v.UploadedBy, &v.CreatedAt)
		return v, err
	})
}
