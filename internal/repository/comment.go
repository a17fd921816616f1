package repository

import (
	"context"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/jackc/pgx/v5"
)

type commentRepository struct {
	db postgresql.Client
}

func NewCommentRepository(db postgresql.Client) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, c *models.Comment) error {
	const op = "repository.commentRepository.Create"

	query := `
		INSERT INTO file_comments (id, file_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	db := postgresql.GetDBClient(ctx, r.db)
	if _, err := db.Exec(ctx, query, c.ID, c.FileID, c.AuthorID, c.Body, c.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *commentRepository) ListByFile(ctx context.Context, fileID string) ([]models.Comment, error) {
	const op = "repository.commentRepository.ListByFile"

	if !isUUID(fileID) {
		return nil, nil
	}

	query := `
		SELECT id::text, file_id::text, author_id, body, created_at
		FROM file_comments
		WHERE file_id = $1
		ORDER BY created_at, id
	`

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Comment, error) {
		var c models.Comment
		err := row.Scan(&c.ID, &c.FileID, &c.AuthorID, &c.Body, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return comments, nil
}

func (r *commentRepository) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	const op = "repository.commentRepository.DeleteByFile"

	if !isUUID(fileID) {
		return 0, nil
	}

	db := postgresql.GetDBClient(ctx, r.db)
	tag, err := db.Exec(ctx, `DELETE FROM file_comments WHERE file_id = $1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}
