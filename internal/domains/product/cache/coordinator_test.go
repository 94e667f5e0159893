package cache

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
// Coordinator without a live Redis instance.
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

func TestGetMissReturnsFalse(t *testing.T) {
	co := NewCoordinator(newFakeCache(), time.Minute)
	_, ok := co.Get(context.Background(), 1)
	assert.False(t, ok)
}

func TestRefreshThenGet(t *testing.T) {
	co := NewCoordinator(newFakeCache(), time.Minute)
	co.Refresh(context.Background(), 1, 42)

	v, ok := co.Get(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestDecrementLowersCount(t *testing.T) {
	co := NewCoordinator(newFakeCache(), time.Minute)
	co.Refresh(context.Background(), 1, 10)
	co.Decrement(context.Background(), 1, 3)

	v, ok := co.Get(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestDecrementFloorsAtZero(t *testing.T) {
	co := NewCoordinator(newFakeCache(), time.Minute)
	co.Refresh(context.Background(), 1, 2)
	co.Decrement(context.Background(), 1, 5)

	v, ok := co.Get(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestIncrementRaisesCount(t *testing.T) {
	co := NewCoordinator(newFakeCache(), time.Minute)
	co.Refresh(context.Background(), 1, 5)
	co.Increment(context.Background(), 1, 4)

	v, ok := co.Get(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 9, v)
}

func TestInvalidateClearsKey(t *testing.T) {
	co := NewCoordinator(newFakeCache(), time.Minute)
	co.Refresh(context.Background(), 1, 5)
	co.Invalidate(context.Background(), 1)

	_, ok := co.Get(context.Background(), 1)
	assert.False(t, ok)
}

func TestDifferentProductsUseDifferentKeys(t *testing.T) {
	co := NewCoordinator(newFakeCache(), time.Minute)
	co.Refresh(context.Background(), 1, 10)
	co.Refresh(context.Background(), 2, 20)

	v1, _ := co.Get(context.Background(), 1)
	v2, _ := co.Get(context.Background(), 2)
	assert.Equal(t, 10, v1)
	assert.Equal(t, 20, v2)
}
