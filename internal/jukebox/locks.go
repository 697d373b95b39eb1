package jukebox

import "sync"

// titleLocks hands out one mutex per track directory. Entries are dropped
// once nobody holds or waits on them.
type titleLocks struct {
	mu    sync.Mutex
	locks map[string]*titleLock
}

type titleLock struct {
	mu   sync.Mutex
	refs int
}

func newTitleLocks() *titleLocks {
	return &titleLocks{locks: make(map[string]*titleLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *titleLocks) Lock(key string) func() {
	l.mu.Lock()
	tl, ok := l.locks[key]
	if !ok {
		tl = &titleLock{}
		l.locks[key] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *titleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
