package lock

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	expires time.Time
	token   uint64
}

// LocalLocker is an in-process Locker used when redis is not configured.
// It only protects a single replica.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	next uint64
	now  func() time.Time
}

// NewLocalLocker creates a new LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) tryAcquire(key string, ttl time.Duration) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.held[key]; ok && l.now().Before(e.expires) {
		return 0, false
	}
	l.next++
	l.held[key] = localEntry{expires: l.now().Add(ttl), token: l.next}
	return l.next, true
}

// Acquire implements Locker
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	var token uint64
	err := retry(ctx, wait, func() (bool, error) {
		t, ok := l.tryAcquire(key, ttl)
		token = t
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// an expired lock may already belong to someone else
			if e, ok := l.held[key]; ok && e.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}
