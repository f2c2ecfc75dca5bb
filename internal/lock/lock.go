// Package lock serializes mutations per event across replicas (redis) or within one process.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the lock is held elsewhere and wait expired
var ErrNotAcquired = errors.New("lock not acquired")

// pollInterval is how often a waiting caller retries
const pollInterval = 50 * time.Millisecond

// Locker grants exclusive, expiring locks keyed by string.
// wait = 0 fails fast; the returned release func is idempotent.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)
}

// EventKey builds the lock key for all matching mutations on one event
func EventKey(eventID string) string {
	return "matching:lock:event:" + eventID
}

// retry calls try until it succeeds, wait elapses or ctx ends
func retry(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrNotAcquired
		}
		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
