package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const fileColumns = `
	id::text, name, type, content_type, size, owner_id, parent_id::text,
	starred, trashed, trashed_at, created_at, updated_at, last_opened_at,
	content_handle, current_version
`

type fileRepository struct {
	db postgresql.Client
}

func NewFileRepository(db postgresql.Client) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Get(ctx context.Context, id string) (*models.FileNode, error) {
	const op = "repository.fileRepository.Get"

	node, err := r.get(ctx, id, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return node, nil
}

func (r *fileRepository) GetForUpdate(ctx context.Context, id string) (*models.FileNode, error) {
	const op = "repository.fileRepository.GetForUpdate"

	node, err := r.get(ctx, id, "FOR UPDATE")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return node, nil
}

func (r *fileRepository) get(ctx context.Context, id string, lock string) (*models.FileNode, error) {
	if !isUUID(id) {
		return nil, nil
	}

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 ` + lock

	db := postgresql.GetDBClient(ctx, r.db)
	node, err := scanFile(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return node, nil
}

func (r *fileRepository) Create(ctx context.Context, node *models.FileNode) error {
	const op = "repository.fileRepository.Create"

	query := `
		INSERT INTO files (
			id, name, type, content_type, size, owner_id, parent_id,
			starred, trashed, trashed_at, created_at, updated_at, last_opened_at,
			content_handle, current_version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, query,
		node.ID,
		node.Name,
		int16(node.Type),
		node.ContentType,
		node.Size,
		node.OwnerID,
		node.ParentID,
		node.Starred,
		node.Trashed,
		node.TrashedAt,
		node.CreatedAt,
		node.UpdatedAt,
		node.LastOpenedAt,
		node.ContentHandle,
		node.CurrentVersion,
	)
	if err != nil {
		if postgresql.IsUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *fileRepository) Update(ctx context.Context, node *models.FileNode) error {
	const op = "repository.fileRepository.Update"

	query := `
		UPDATE files
		SET name = $2, content_type = $3, size = $4, parent_id = $5,
			starred = $6, trashed = $7, trashed_at = $8, updated_at = $9,
			last_opened_at = $10, content_handle = $11, current_version = $12
		WHERE id = $1
	`

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, query,
		node.ID,
		node.Name,
		node.ContentType,
		node.Size,
		node.ParentID,
		node.Starred,
		node.Trashed,
		node.TrashedAt,
		node.UpdatedAt,
		node.LastOpenedAt,
		node.ContentHandle,
		node.CurrentVersion,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *fileRepository) Delete(ctx context.Context, id string) error {
	const op = "repository.fileRepository.Delete"

	if !isUUID(id) {
		return nil
	}

	db := postgresql.GetDBClient(ctx, r.db)
	_, err := db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *fileRepository) List(ctx context.Context, filter models.ListFilter) ([]models.FileNode, error) {
	const op = "repository.fileRepository.List"

	query, args := buildListQuery(filter)

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	nodes, err := collectFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return nodes, nil
}

func (r *fileRepository) ListDescendants(ctx context.Context, id string) ([]models.FileNode, error) {
	const op = "repository.fileRepository.ListDescendants"

	if !isUUID(id) {
		return nil, nil
	}

	// UNION (not UNION ALL) so a corrupted cycle still terminates.
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM files WHERE parent_id = $1
			UNION
			SELECT f.id FROM files f JOIN subtree s ON f.parent_id = s.id
		)
		SELECT ` + fileColumns + `
		FROM files
		WHERE id IN (SELECT id FROM subtree) AND id <> $1
		ORDER BY created_at
	`

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	nodes, err := collectFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return nodes, nil
}

func (r *fileRepository) SumFileSizes(ctx context.Context, ownerID string) (int64, error) {
	const op = "repository.fileRepository.SumFileSizes"

	query := `
		SELECT COALESCE(SUM(size), 0)::bigint
		FROM files
		WHERE owner_id = $1 AND type = $2
	`

	var total int64
	db := postgresql.GetDBClient(ctx, r.db)
	if err := db.QueryRow(ctx, query, ownerID, int16(models.NodeTypeFile)).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return total, nil
}

func (r *fileRepository) ListOwnerIDs(ctx context.Context) ([]string, error) {
	const op = "repository.fileRepository.ListOwnerIDs"

	db := postgresql.GetDBClient(ctx, r.db)
	rows, err := db.Query(ctx, `SELECT DISTINCT owner_id FROM files ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}

func buildListQuery(f models.ListFilter) (string, []any) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "owner_id = "+arg(f.OwnerID))
	where = append(where, "trashed = "+arg(f.Trashed))

	switch {
	case f.ParentID != nil:
		where = append(where, "parent_id = "+arg(*f.ParentID))
	case f.RootOnly:
		where = append(where, "parent_id IS NULL")
	}

	if f.Starred != nil {
		where = append(where, "starred = "+arg(*f.Starred))
	}
	if f.Type != nil {
		where = append(where, "type = "+arg(int16(*f.Type)))
	}
	if f.NameQuery != "" {
		where = append(where, "name ILIKE "+arg("%"+escapeLike(f.NameQuery)+"%"))
	}
	if f.ContentType != "" {
		where = append(where, "content_type ILIKE "+arg("%"+escapeLike(f.ContentType)+"%"))
	}
	if f.CreatedAfter != nil {
		where = append(where, "created_at >= "+arg(*f.CreatedAfter))
	}
	if f.CreatedBefore != nil {
		where = append(where, "created_at <= "+arg(*f.CreatedBefore))
	}
	if f.ModifiedAfter != nil {
		where = append(where, "updated_at >= "+arg(*f.ModifiedAfter))
	}
	if f.ModifiedBefore != nil {
		where = append(where, "updated_at <= "+arg(*f.ModifiedBefore))
	}
	if f.MinSize != nil {
		where = append(where, "size >= "+arg(*f.MinSize))
	}
	if f.MaxSize != nil {
		where = append(where, "size <= "+arg(*f.MaxSize))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(fileColumns)
	b.WriteString(" FROM files WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ORDER BY ")
	b.WriteString(orderClause(f.SortBy, f.SortOrder))

	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + arg(f.Offset))
	}

	return b.String(), args
}

func orderClause(field models.SortField, order models.SortOrder) string {
	dir := "ASC"
	if order == models.SortDesc {
		dir = "DESC"
	}

	switch field {
	case models.SortByName:
		return "LOWER(name) " + dir + ", id"
	case models.SortByCreated:
		return "created_at " + dir + ", id"
	case models.SortByModified:
		return "updated_at " + dir + ", id"
	case models.SortBySize:
		return "size " + dir + ", id"
	default:
		return "type ASC, LOWER(name) ASC, id"
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanFile(row pgx.Row) (*models.FileNode, error) {
	var (
		node     models.FileNode
		nodeType int16
	)
	err := row.Scan(
		&node.ID,
		&node.Name,
		&nodeType,
		&node.ContentType,
		&node.Size,
		&node.OwnerID,
		&node.ParentID,
		&node.Starred,
		&node.Trashed,
		&node.TrashedAt,
		&node.CreatedAt,
		&node.UpdatedAt,
		&node.LastOpenedAt,
		&node.ContentHandle,
		&node.CurrentVersion,
	)
	if err != nil {
		return nil, err
	}
	node.Type = models.NodeType(nodeType)
	return &node, nil
}

func collectFiles(rows pgx.Rows) ([]models.FileNode, error) {
	defer rows.Close()

	var nodes []models.FileNode
	for rows.Next() {
		node, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}

	return nodes, rows.Err()
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
