// Package lock provides the advisory locks the hold/order services
// take before touching a product or hold row, built on the same
// Redis SETNX primitive the teacher's RedisCache already exposes.
package lock

import (
	"context"
	"fmt"
	"time"

	"checkout-core/pkg/cache"
)

var ErrNotAcquired = fmt.Errorf("lock not acquired")

// Locker acquires and releases a single named lock.
type Locker struct {
	cache cache.Cache
}

func NewLocker(c cache.Cache) *Locker {
	return &Locker{cache: c}
}

// Release is returned by Acquire; callers defer it immediately.
type Release func(ctx context.Context)

// Acquire polls SETNX for key until it succeeds, wait elapses, or ctx
// is cancelled. token is a per-call random-ish value so Release only
// deletes the lock if it's still the one this call set, avoiding a
// slow caller deleting a fresher holder's lock.
func (l *Locker) Acquire(ctx context.Context, key string, wait, ttl time.Duration) (Release, error) {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	deadline := time.Now().Add(wait)
	const pollInterval = 20 * time.Millisecond

	for {
		ok, err := l.cache.SetNX(ctx, key, token, ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func(releaseCtx context.Context) {
				// CompareAndDelete is atomic, so a releaser that stalls
				// past its own TTL can never delete a different
				// holder's lock acquired on the same key in the meantime.
				_, _ = l.cache.CompareAndDelete(releaseCtx, key, token)
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func ProductKey(productID string) string {
	return "lock:product:" + productID
}

func HoldKey(holdID string) string {
	return "lock:hold:" + holdID
}
