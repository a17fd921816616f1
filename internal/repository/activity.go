package repository

import (
	"context"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/jackc/pgx/v5"
)

type activityRepository struct {
	db postgresql.Client
}

func NewActivityRepository(db postgresql.Client) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, a *models.Activity) error {
	const op = "repository.activityRepository.Create"

	query := `
		INSERT INTO activities (id, actor_id, file_id, verb, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	db := postgresql.GetDBClient(ctx, r.db)
	if _, err := db.Exec(ctx, query, a.ID, a.ActorID, a.FileID, a.Verb, a.Detail, a.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *activityRepository) ListByFile(ctx context.Context, fileID string, limit int) ([]models.Activity, error) {
	const op = "repository.activityRepository.ListByFile"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `
		SELECT id::text, actor_id, file_id::text, verb, detail, created_at
		FROM activities
		WHERE file_id = $1
		ORDER BY created_at DESC, id
	`
	args := []any{fileID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	activities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Activity, error) {
		var a models.Activity
		err := row.Scan(&a.ID, &a.ActorID, &a.FileID, &a.Verb, &a.Detail, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return activities, nil
}
