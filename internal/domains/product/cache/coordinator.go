// Package cache adapts the shared Redis cache into the stock
// coordinator the product service uses to avoid round-tripping to
// Postgres on every availability check.
package cache

import (
	"context"
	"fmt"
	"time"

	"checkout-core/pkg/cache"
)

func key(productID int64) string {
	return fmt.Sprintf("product:%d:available_stock", productID)
}

// Coordinator caches the last known available-stock count per
// product. It is advisory only: every write path that changes stock
// still recomputes from Postgres within its own transaction, and
// falls back to that recomputation whenever the cache misses or looks
// stale. The cache exists to answer read traffic and to give the
// create_hold fast path a number to decrement without a DB round trip.
type Coordinator struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewCoordinator(c cache.Cache, ttl time.Duration) *Coordinator {
	return &Coordinator{cache: c, ttl: ttl}
}

// Get returns the cached available count, or (0, false) on a miss.
func (co *Coordinator) Get(ctx context.Context, productID int64) (int, bool) {
	var v int
	found, err := co.cache.Get(ctx, key(productID), &v)
	if err != nil || !found {
		return 0, false
	}
	return v, true
}

// Refresh overwrites the cached count with an authoritative value,
// e.g. right after the stock calculator has recomputed it.
func (co *Coordinator) Refresh(ctx context.Context, productID int64, available int) {
	_ = co.cache.Set(ctx, key(productID), available, co.ttl)
}

// Decrement lowers the cached count by qty after a hold is created.
// Best-effort: a cache miss here just means the next read falls back
// to Postgres, it never blocks the hold itself.
func (co *Coordinator) Decrement(ctx context.Context, productID int64, qty int) {
	if n, err := co.cache.Exists(ctx, key(productID)); err != nil || n == 0 {
		return
	}
	if _, err := co.cache.IncrBy(ctx, key(productID), int64(-qty)); err != nil {
		return
	}
	// IncrBy creates the key at 0 with no TTL if it was absent; without
	// this the counter could outlive every Refresh and go stale forever.
	_ = co.cache.Expire(ctx, key(productID), co.ttl)
	co.floorAtZero(ctx, productID)
}

// Increment raises the cached count by qty after a hold is released
// or expires. A miss is left as a miss, so the next read recomputes
// from Postgres.
func (co *Coordinator) Increment(ctx context.Context, productID int64, qty int) {
	if n, err := co.cache.Exists(ctx, key(productID)); err != nil || n == 0 {
		return
	}
	if _, err := co.cache.IncrBy(ctx, key(productID), int64(qty)); err != nil {
		return
	}
	_ = co.cache.Expire(ctx, key(productID), co.ttl)
}

// floorAtZero guards against the cached counter drifting negative
// under concurrent decrements racing a stale read; it is corrective,
// not authoritative.
func (co *Coordinator) floorAtZero(ctx context.Context, productID int64) {
	v, ok := co.Get(ctx, productID)
	if ok && v < 0 {
		co.Refresh(ctx, productID, 0)
	}
}

func (co *Coordinator) Invalidate(ctx context.Context, productID int64) {
	_ = co.cache.Delete(ctx, key(productID))
}
