package content

import (
	"slices"
	"sync"
)

// pageLocks hands out one mutex per page name. Entries are dropped once no
// goroutine holds or waits for them.
type pageLocks struct {
	mu    sync.Mutex
	locks map[string]*pageLock
}

type pageLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the locks of every distinct name, in sorted order so two
// callers locking overlapping sets can't deadlock. It returns the unlock
// function.
func (l *pageLocks) lock(names ...string) func() {
	names = slices.Clone(names)
	slices.Sort(names)
	names = slices.Compact(names)

	held := make([]*pageLock, len(names))
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*pageLock{}
	}
	for i, n := range names {
		pl := l.locks[n]
		if pl == nil {
			pl = &pageLock{}
			l.locks[n] = pl
		}
		pl.refs++
		held[i] = pl
	}
	l.mu.Unlock()

	for _, pl := range held {
		pl.mu.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		l.mu.Lock()
		for i, n := range names {
			if held[i].refs--; held[i].refs == 0 {
				delete(l.locks, n)
			}
		}
		l.mu.Unlock()
	}
}
