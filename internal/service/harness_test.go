package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/S1riyS/drive-core/server/internal/audit"
	"github.com/S1riyS/drive-core/server/internal/blobstore"
	blobmem "github.com/S1riyS/drive-core/server/internal/blobstore/memory"
	"github.com/S1riyS/drive-core/server/internal/models"
	"github.com/S1riyS/drive-core/server/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

const (
	u1 = "user-1"
	u2 = "user-2"
	u3 = "user-3"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// Now advances by a second on every call so timestamps are distinct.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingSink) Record(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	verbs := make([]string, 0, len(r.events))
	for _, e := range r.events {
		verbs = append(verbs, e.Verb)
	}
	return verbs
}

var errStorageOffline = errors.New("storage offline")

// faultyBlobs wraps a real store and can be told to fail writes or to run a
// hook before the next read.
type faultyBlobs struct {
	blobstore.Store

	mu        sync.Mutex
	failArea  blobstore.Area
	putBudget int
	failing   bool
	beforeGet func()
	deleted   []string
}

// failPuts lets after more writes into area through and fails every later one.
func (f *faultyBlobs) failPuts(area blobstore.Area, after int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failArea, f.putBudget, f.failing = area, after, true
}

func (f *faultyBlobs) beforeNextGet(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeGet = hook
}

func (f *faultyBlobs) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *faultyBlobs) Put(ctx context.Context, area blobstore.Area, data []byte) (string, error) {
	f.mu.Lock()
	if f.failing && area == f.failArea {
		if f.putBudget == 0 {
			f.mu.Unlock()
			return "", errStorageOffline
		}
		f.putBudget--
	}
	f.mu.Unlock()
	return f.Store.Put(ctx, area, data)
}

func (f *faultyBlobs) Get(ctx context.Context, handle string) ([]byte, error) {
	f.mu.Lock()
	hook := f.beforeGet
	f.beforeGet = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return f.Store.Get(ctx, handle)
}

func (f *faultyBlobs) Delete(ctx context.Context, handle string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, handle)
	f.mu.Unlock()
	return f.Store.Delete(ctx, handle)
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	svc    DriveService
	store  *memory.Store
	blobs  *blobmem.Store
	faults *faultyBlobs
	events *recordingSink
}

type harnessOptions struct {
	limit   int64
	cascade bool
}

func newHarness(t *testing.T, configure ...func(*harnessOptions)) *harness {
	t.Helper()

	opts := harnessOptions{limit: 10_000, cascade: true}
	for _, fn := range configure {
		fn(&opts)
	}

	clock := newFakeClock()
	store := memory.NewStore(opts.limit)
	blobs := blobmem.New()
	faults := &faultyBlobs{Store: blobs}
	events := &recordingSink{}

	svc := NewDriveService(Deps{
		Transactor: store,
		Blobs:      faults,
		Directory:  NewDirectory(store.Files(), clock.Now),
		Versions:   NewVersionLedger(store.Versions()),
		Quota:      NewQuotaLedger(store, store.Quotas(), store.Files()),
		Shares:     NewShareRegistry(store.Shares(), store.Files(), clock.Now),
		Comments:   store.Comments(),
		Activities: store.Activities(),
		Audit:      audit.Multi(events, audit.NewRepositorySink(store.Activities())),
	}, Options{CascadeTrash: opts.cascade, Now: clock.Now})

	return &harness{
		t:      t,
		ctx:    context.Background(),
		svc:    svc,
		store:  store,
		blobs:  blobs,
		faults: faults,
		events: events,
	}
}

func withLimit(limit int64) func(*harnessOptions) {
	return func(o *harnessOptions) { o.limit = limit }
}

func withoutCascade() func(*harnessOptions) {
	return func(o *harnessOptions) { o.cascade = false }
}

func (h *harness) folder(owner, name string, parent *string) *models.FileNode {
	h.t.Helper()
	node, err := h.svc.CreateFolder(h.ctx, owner, name, parent)
	require.NoError(h.t, err)
	return node
}

func (h *harness) upload(owner, name string, parent *string, size int) *models.FileNode {
	h.t.Helper()
	node, err := h.svc.Upload(h.ctx, owner, uploadInput(name, parent, size))
	require.NoError(h.t, err)
	return node
}

func (h *harness) used(user string) int64 {
	h.t.Helper()
	usage, err := h.svc.Usage(h.ctx, user)
	require.NoError(h.t, err)
	return usage.StorageUsed
}

// liveSize sums the sizes of every file the user still has, trashed or not.
func (h *harness) liveSize(user string) int64 {
	h.t.Helper()
	total, err := h.store.Files().SumFileSizes(h.ctx, user)
	require.NoError(h.t, err)
	return total
}

func uploadInput(name string, parent *string, size int) UploadInput {
	return UploadInput{
		Name:     name,
		Size:     int64(size),
		ParentID: parent,
		Content:  bytes.NewReader(payload(size, name)),
	}
}

func contentInput(size int, seed string) ContentInput {
	return ContentInput{Size: int64(size), Content: bytes.NewReader(payload(size, seed))}
}

// payload builds size bytes that differ per seed.
func payload(size int, seed string) []byte {
	if seed == "" {
		seed = "x"
	}
	b := make([]byte, size)
	for i := range b {
		b[i] = seed[i%len(seed)]
	}
	return b
}
