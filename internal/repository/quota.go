package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/jackc/pgx/v5"
)

type quotaRepository struct {
	db           postgresql.Client
	defaultLimit int64
}

func NewQuotaRepository(db postgresql.Client, defaultLimit int64) QuotaRepository {
	return &quotaRepository{db: db, defaultLimit: defaultLimit}
}

func (r *quotaRepository) Get(ctx context.Context, userID string) (models.Usage, error) {
	const op = "repository.quotaRepository.Get"

	query := `
		SELECT storage_used, storage_limit
		FROM user_quotas
		WHERE user_id = $1
	`

	usage := models.Usage{UserID: userID}
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, userID).Scan(&usage.StorageUsed, &usage.StorageLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			usage.StorageLimit = r.defaultLimit
			return usage, nil
		}
		return models.Usage{}, fmt.Errorf("%s: %w", op, err)
	}

	return usage, nil
}

func (r *quotaRepository) GetForUpdate(ctx context.Context, userID string) (models.Usage, error) {
	const op = "repository.quotaRepository.GetForUpdate"

	db := postgresql.GetDBClient(ctx, r.db)

	ensure := `
		INSERT INTO user_quotas (user_id, storage_used, storage_limit)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := db.Exec(ctx, ensure, userID, r.defaultLimit); err != nil {
		return models.Usage{}, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		SELECT storage_used, storage_limit
		FROM user_quotas
		WHERE user_id = $1
		FOR UPDATE
	`

	usage := models.Usage{UserID: userID}
	if err := db.QueryRow(ctx, query, userID).Scan(&usage.StorageUsed, &usage.StorageLimit); err != nil {
		return models.Usage{}, fmt.Errorf("%s: %w", op, err)
	}

	return usage, nil
}

func (r *quotaRepository) Adjust(ctx context.Context, userID string, delta int64) (models.Usage, error) {
	const op = "repository.quotaRepository.Adjust"

	query := `
		INSERT INTO user_quotas (user_id, storage_used, storage_limit)
		VALUES ($1, $2::bigint, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET storage_used = user_quotas.storage_used + $2::bigint
		RETURNING storage_used, storage_limit
	`

	usage := models.Usage{UserID: userID}
	db := postgresql.GetDBClient(ctx, r.db)
	err := db.QueryRow(ctx, query, userID, delta, r.defaultLimit).Scan(&usage.StorageUsed, &usage.StorageLimit)
	if err != nil {
		return models.Usage{}, fmt.Errorf("%s: %w", op, err)
	}

	return usage, nil
}

func (r *quotaRepository) SetUsed(ctx context.Context, userID string, used int64) error {
	const op = "repository.quotaRepository.SetUsed"

	query := `
		INSERT INTO user_quotas (user_id, storage_used, storage_limit)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET storage_used = EXCLUDED.storage_used
	`

	db := postgresql.GetDBClient(ctx, r.db)
	if _, err := db.Exec(ctx, query, userID, used, r.defaultLimit); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *quotaRepository) SetLimit(ctx context.Context, userID string, limit int64) error {
	const op = "repository.quotaRepository.SetLimit"

	query := `
		INSERT INTO user_quotas (user_id, storage_used, storage_limit)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET storage_limit = EXCLUDED.storage_limit
	`

	db := postgresql.GetDBClient(ctx, r.db)
	if _, err := db.Exec(ctx, query, userID, limit); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *quotaRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	const op = "repository.quotaRepository.ListUserIDs"

	query := `
		SELECT user_id FROM user_quotas
		UNION
		SELECT DISTINCT owner_id FROM files
		ORDER BY 1
	`

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}
