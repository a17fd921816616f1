package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/jackc/pgx/v5"
)

const grantColumns = `id::text, file_id::text, granted_by, grantee_user_id, permission, link_token, created_at`

type shareRepository struct {
	db postgresql.Client
}

func NewShareRepository(db postgresql.Client) ShareRepository {
	return &shareRepository{db: db}
}

func (r *shareRepository) Create(ctx context.Context, g *models.ShareGrant) error {
	const op = "repository.shareRepository.Create"

	query := `
		INSERT INTO share_grants (id, file_id, granted_by, grantee_user_id, permission, link_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, query, g.ID, g.FileID, g.GrantedBy, g.GranteeUserID, int(g.Permission), g.LinkToken, g.CreatedAt)
	if err != nil {
		if postgresql.IsUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *shareRepository) Get(ctx context.Context, id string) (*models.ShareGrant, error) {
	const op = "repository.shareRepository.Get"

	if !isUUID(id) {
		return nil, nil
	}

	grant, err := r.one(ctx, `SELECT `+grantColumns+` FROM share_grants WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

func (r *shareRepository) FindByGrantee(ctx context.Context, fileID string, userID string) (*models.ShareGrant, error) {
	const op = "repository.shareRepository.FindByGrantee"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE file_id = $1 AND grantee_user_id = $2`

	grant, err := r.one(ctx, query, fileID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

func (r *shareRepository) FindLink(ctx context.Context, fileID string) (*models.ShareGrant, error) {
	const op = "repository.shareRepository.FindLink"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE file_id = $1 AND grantee_user_id IS NULL`

	grant, err := r.one(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

func (r *shareRepository) FindByToken(ctx context.Context, token string) (*models.ShareGrant, error) {
	const op = "repository.shareRepository.FindByToken"

	grant, err := r.one(ctx, `SELECT `+grantColumns+` FROM share_grants WHERE link_token = $1`, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

func (r *shareRepository) UpdatePermission(ctx context.Context, id string, permission models.Permission) error {
	const op = "repository.shareRepository.UpdatePermission"

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, `UPDATE share_grants SET permission = $2 WHERE id = $1`, id, int(permission))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *shareRepository) Delete(ctx context.Context, id string) error {
	const op = "repository.shareRepository.Delete"

	if !isUUID(id) {
		return nil
	}

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, `DELETE FROM share_grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *shareRepository) ListByFile(ctx context.Context, fileID string) ([]models.ShareGrant, error) {
	const op = "repository.shareRepository.ListByFile"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE file_id = $1 ORDER BY created_at`

	grants, err := r.many(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grants, nil
}

func (r *shareRepository) ListByGrantee(ctx context.Context, userID string) ([]models.ShareGrant, error) {
	const op = "repository.shareRepository.ListByGrantee"

	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE grantee_user_id = $1 ORDER BY created_at`

	grants, err := r.many(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grants, nil
}

func (r *shareRepository) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	const op = "repository.shareRepository.DeleteByFile"

	if !isUUID(fileID) {
		return 0, nil
	}

	db := postgresql.GetDBClient(ctx, r.db)
	tag, err := db.Exec(ctx, `DELETE FROM share_grants WHERE file_id = $1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *shareRepository) one(ctx context.Context, query string, args ...any) (*models.ShareGrant, error) {
	db := postgresql.GetDBClient(ctx, r.db)

	g, err := scanGrant(db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &g, nil
}

func (r *shareRepository) many(ctx context.Context, query string, args ...any) ([]models.ShareGrant, error) {
	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ShareGrant, error) {
		return scanGrant(row)
	})
}

func scanGrant(row pgx.Row) (models.ShareGrant, error) {
	var (
		g          models.ShareGrant
		permission int16
	)
	err := row.Scan(&g.ID, &g.FileID, &g.GrantedBy, &g.GranteeUserID, &permission, &g.LinkToken, &g.CreatedAt)
	g.Permission = models.Permission(permission)
	return g, err
}
