// Package memory is a process-local metadata backend. A transaction holds
// the store lock for its whole duration and restores a snapshot on error,
// so it is serializable but not meant for heavy concurrent load.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/repository"
)

type txKey struct{}

type tables struct {
	files      map[string]*models.FileNode
	versions   map[string][]models.Version
	grants     map[string]*models.ShareGrant
	quotas     map[string]*models.Usage
	comments   map[string][]models.Comment
	activities []models.Activity
}

func newTables() *tables {
	return &tables{
		files:    make(map[string]*models.FileNode),
		versions: make(map[string][]models.Version),
		grants:   make(map[string]*models.ShareGrant),
		quotas:   make(map[string]*models.Usage),
		comments: make(map[string][]models.Comment),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for id, n := range t.files {
		c.files[id] = n.Clone()
	}
	for id, vs := range t.versions {
		c.versions[id] = append([]models.Version(nil), vs...)
	}
	for id, g := range t.grants {
		cp := *g
		c.grants[id] = &cp
	}
	for id, u := range t.quotas {
		cp := *u
		c.quotas[id] = &cp
	}
	for id, cs := range t.comments {
		c.comments[id] = append([]models.Comment(nil), cs...)
	}
	c.activities = append([]models.Activity(nil), t.activities...)
	return c
}

// Store owns every table of the memory backend.
type Store struct {
	mu           sync.Mutex
	data         *tables
	defaultLimit int64
}

func NewStore(defaultLimit int64) *Store {
	return &Store{data: newTables(), defaultLimit: defaultLimit}
}

func (s *Store) WithinTx(ctx context.Context, fn func(context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
		if err != nil {
			s.data = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// run executes fn against the tables, taking the lock unless ctx already
// belongs to a transaction on this store.
func (s *Store) run(ctx context.Context, fn func(t *tables) error) error {
	if s.inTx(ctx) {
		return fn(s.data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) Files() repository.FileRepository { return &fileRepository{s: s} }
func (s *Store) Versions() repository.VersionRepository { return &versionRepository{s: s} }
func (s *Store) Shares() repository.ShareRepository { return &shareRepository{s: s} }
func (s *Store) Quotas() repository.QuotaRepository { return &quotaRepository{s: s} }
func (s *Store) Comments() repository.CommentRepository { return &commentRepository{s: s} }
func (s *Store) Activities() repository.ActivityRepository { return &activityRepository{s: s} }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
