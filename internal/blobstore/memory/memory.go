package memory

import (
	"context"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
	"github.com/puzpuzpuz/xsync/v4"
)

// Store keeps blobs in process memory. Used by tests and local runs.
type Store struct {
	blobs *xsync.Map[string, []byte]
}

func New() *Store {
	return &Store{blobs: xsync.NewMap[string, []byte]()}
}

func (s *Store) Put(ctx context.Context, area blobstore.Area, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := blobstore.NewHandle(area)
	s.blobs.Store(handle, append([]byte(nil), data...))
	return handle, nil
}

func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, ok := s.blobs.Load(handle)
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", handle, blobstore.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.blobs.Delete(handle)
	return nil
}

// Len reports how many blobs are stored.
func (s *Store) Len() int {
	return s.blobs.Size()
}

// Handles lists every stored handle.
func (s *Store) Handles() []string {
	var handles []string
	s.blobs.Range(func(key string, _ []byte) bool {
		handles = append(handles, key)
		return true
	})
	return handles
}

func (s *Store) Close() error {
	return nil
}
