// Package keylock provides per-key exclusive locks.
//
// The ledger service takes the lock for an account before opening its unit
// of work, so balance mutations for one account are strictly serialized
// in-process while different accounts proceed in parallel. The database row
// lock covers the cross-process case.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem *semaphore.Weighted
	// holders + waiters; the entry is dropped when this reaches zero.
	refs int
}

// Locker hands out an exclusive lock per key. Idle keys hold no memory.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx is done. On success it
// returns a release func that must be called exactly once, on every exit
// path of the critical section.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	err := e.sem.Acquire(ctx, 1)
	if err != nil {
		l.unref(key, e)
		return nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(key, e)
		})
	}

	return release, nil
}

func (l *Locker) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
