package engine

import "sync"

// titleLocks serializes engine operations per book title. Operations on
// different titles proceed in parallel; operations on the same title run
// one at a time for their full duration.
type titleLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newTitleLocks() *titleLocks {
	return &titleLocks{locks: make(map[int64]*sync.Mutex)}
}

// get returns the mutex guarding a book, creating it on first use. Locks
// are never removed; the set of titles is small and long-lived.
func (t *titleLocks) get(bookID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[bookID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[bookID] = l
	}
	return l
}

// withTitle runs fn while holding the exclusive lock for a book.
func (t *titleLocks) withTitle(bookID int64, fn func() error) error {
	l := t.get(bookID)
	l.Lock()
	defer l.Unlock()
	return fn()
}
