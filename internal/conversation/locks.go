package conversation

import (
	"context"
	"sync"
)

// sessionLocks hands out one lock per session id. Entries are reference
// counted and dropped once nobody holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session's lock is held or ctx is done. The
// returned func releases it.
func (l *sessionLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(id, lock)
		return nil, ctx.Err()
	}

	return func() {
		<-lock.ch
		l.unref(id, lock)
	}, nil
}

func (l *sessionLocks) unref(id string, lock *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
