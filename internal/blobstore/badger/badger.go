// Package badger stores blobs in an embedded BadgerDB keyed by handle.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/S1riyS/drive-core/server/internal/blobstore"
	badgerdb "github.com/dgraph-io/badger/v4"
)

type Store struct {
	db *badgerdb.DB
}

type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
}

func New(cfg Config) (*Store, error) {
	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger blob store: path is required")
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, area blobstore.Area, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := blobstore.NewHandle(area)
	value := append([]byte(nil), data...)

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(handle), value)
	})
	if err != nil {
		return "", fmt.Errorf("blob %s: %w", handle, err)
	}

	return handle, nil
}

func (s *Store) Get(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, _, err := blobstore.ParseHandle(handle); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(handle))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil, fmt.Errorf("blob %s: %w", handle, blobstore.ErrNotFound)
		}
		return nil, fmt.Errorf("blob %s: %w", handle, err)
	}

	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, _, err := blobstore.ParseHandle(handle); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(handle))
	})
	if err != nil {
		return fmt.Errorf("blob %s: %w", handle, err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
