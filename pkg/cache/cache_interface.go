package cache

import (
	"context"
	"time"
)

// Cache is the contract for the cache layer. Redis is the only
// implementation today; the interface exists so the product/hold
// services never import go-redis directly.
type Cache interface {
	// Get reads a key and unmarshals it into dest. found=false on a
	// miss or a corrupted value (the entry is then dropped).
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error

	Ping(ctx context.Context) error

	Exists(ctx context.Context, keys ...string) (int64, error)

	Expire(ctx context.Context, key string, ttl time.Duration) error

	GetTTL(ctx context.Context, key string) (time.Duration, error)

	// IncrBy atomically adjusts a counter, creating it at 0 first if
	// absent. Used for the available-stock cache counter.
	IncrBy(ctx context.Context, key string, value int64) (int64, error)

	// SetNX sets key only if absent, the building block for the
	// advisory locks in internal/infrastructure/lock.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// CompareAndDelete atomically deletes key only if its current
	// value still equals value, so a lock holder can never evict a
	// lock a different holder acquired after its own expired.
	CompareAndDelete(ctx context.Context, key string, value interface{}) (bool, error)
}
