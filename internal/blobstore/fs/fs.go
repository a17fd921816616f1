// Package fs stores blobs as plain files under a root directory,
// one subdirectory per area.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
)

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	for _, area := range []blobstore.Area{blobstore.AreaContent, blobstore.AreaVersions} {
		if err := os.MkdirAll(filepath.Join(root, string(area)), 0o750); err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(ctx context.Context, area blobstore.Area, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := blobstore.NewHandle(area)
	path, err := s.path(handle)
	if err != nil {
		return "", err
	}

	// Write to a temp file first so a crash never leaves a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", fmt.Errorf("blob %s: %w", handle, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("blob %s: %w", handle, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("blob %s: %w", handle, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("blob %s: %w", handle, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("blob %s: %w", handle, err)
	}

	return handle, nil
}

func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s: %w", handle, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("blob %s: %w", handle, err)
	}

	return data, nil
}

func (s *Store) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(handle)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blob %s: %w", handle, err)
	}

	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) path(handle string) (string, error) {
	area, id, err := blobstore.ParseHandle(handle)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, string(area), id), nil
}
