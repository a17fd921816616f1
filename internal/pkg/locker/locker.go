// Package locker provides per-key mutual exclusion. Entries are reference
// counted and dropped once nobody holds or waits on them.
package locker

import (
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

type Locker struct {
	entries *xsync.Map[string, *entry]
}

func New() *Locker {
	return &Locker{entries: xsync.NewMap[string, *entry]()}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *Locker) Lock(key string) (unlock func()) {
	e, _ := l.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, xsync.UpdateOp
	})

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		l.release(key)
	}
}

// LockMany locks every distinct key in sorted order, so two callers with
// overlapping key sets can never deadlock.
func (l *Locker) LockMany(keys ...string) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, key := range sorted {
		unlocks = append(unlocks, l.Lock(key))
	}

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Len reports how many keys are currently held or awaited.
func (l *Locker) Len() int {
	return l.entries.Size()
}

func (l *Locker) release(key string) {
	l.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		old.refs--
		if old.refs == 0 {
			return old, xsync.DeleteOp
		}
		return old, xsync.UpdateOp
	})
}
