package lock

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-core/pkg/cache"
)

// fakeCache is an in-memory stand-in for cache.Cache, enough to drive
// Locker without a live Redis instance.
type fakeCache struct {
	mu    sync.Mutex
	store map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]string)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = string(b)
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.store, k)
	}
	return nil
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

func (f *fakeCache) Exists(ctx context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.store[k]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (f *fakeCache) GetTTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }

func (f *fakeCache) IncrBy(ctx context.Context, key string, value int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cur int64
	if raw, ok := f.store[key]; ok {
		_ = json.Unmarshal([]byte(raw), &cur)
	}
	cur += value
	b, _ := json.Marshal(cur)
	f.store[key] = string(b)
	return cur, nil
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.store[key]; exists {
		return false, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	f.store[key] = string(b)
	return true, nil
}

func (f *fakeCache) CompareAndDelete(ctx context.Context, key string, value interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if raw, ok := f.store[key]; ok && raw == string(b) {
		delete(f.store, key)
		return true, nil
	}
	return false, nil
}

var _ cache.Cache = (*fakeCache)(nil)

func TestAcquireSucceedsWhenKeyFree(t *testing.T) {
	l := NewLocker(newFakeCache())
	release, err := l.Acquire(context.Background(), "lock:product:1", 50*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NotNil(t, release)
	release(context.Background())
}

func TestAcquireFailsWhenAlreadyHeldAndWaitElapses(t *testing.T) {
	fc := newFakeCache()
	l := NewLocker(fc)

	release, err := l.Acquire(context.Background(), "lock:product:1", 50*time.Millisecond, time.Second)
	require.NoError(t, err)
	defer release(context.Background())

	_, err = l.Acquire(context.Background(), "lock:product:1", 30*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestReleaseOnlyClearsOwnToken(t *testing.T) {
	fc := newFakeCache()
	l := NewLocker(fc)

	release1, err := l.Acquire(context.Background(), "lock:hold:9", 50*time.Millisecond, time.Millisecond)
	require.NoError(t, err)

	// token expires and someone else grabs the same key
	time.Sleep(2 * time.Millisecond)
	_ = fc.Delete(context.Background(), "lock:hold:9")
	release2, err := l.Acquire(context.Background(), "lock:hold:9", 50*time.Millisecond, time.Second)
	require.NoError(t, err)

	// the stale first release must not evict the second holder's lock
	release1(context.Background())
	n, err := fc.Exists(context.Background(), "lock:hold:9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	release2(context.Background())
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	fc := newFakeCache()
	l := NewLocker(fc)

	release, err := l.Acquire(context.Background(), "lock:product:2", 50*time.Millisecond, time.Second)
	require.NoError(t, err)
	defer release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "lock:product:2", time.Second, time.Second)
	assert.Error(t, err)
}

func TestProductAndHoldKeyNamespacing(t *testing.T) {
	assert.Equal(t, "lock:product:42", ProductKey("42"))
	assert.Equal(t, "lock:hold:7", HoldKey("7"))
}
