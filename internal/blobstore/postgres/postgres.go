// Package postgres keeps blobs in the metadata database's blobs table.
// Suited to small deployments where a separate object store is overkill.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/S1riyS/drive-core/server/pkg/database/postgresql"
	"github.com/jackc/pgx/v5"
)

type Store struct {
	db postgresql.Client
}

func New(db postgresql.Client) *Store {
	return &Store{db: db}
}

// Put writes outside any ambient transaction: blobs must exist before the
// metadata that references them commits.
func (s *Store) Put(ctx context.Context, area blobstore.Area, data []byte) (string, error) {
	const op = "blobstore.postgres.Put"

	handle := blobstore.NewHandle(area)
	if data == nil {
		data = []byte{}
	}

	query := `
		INSERT INTO blobs (handle, area, data)
		VALUES ($1, $2, $3)
	`

	if _, err := s.db.Exec(ctx, query, handle, string(area), data); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return handle, nil
}

func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	const op = "blobstore.postgres.Get"

	if _, _, err := blobstore.ParseHandle(handle); err != nil {
		return nil, err
	}

	query := `
		SELECT data
		FROM blobs
		WHERE handle = $1
	`

	var data []byte
	err := s.db.QueryRow(ctx, query, handle).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: blob %s: %w", op, handle, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, handle string) error {
	const op = "blobstore.postgres.Delete"

	if _, _, err := blobstore.ParseHandle(handle); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM blobs WHERE handle = $1`, handle); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close is a no-op, the pool belongs to the caller.
func (s *Store) Close() error {
	return nil
}
