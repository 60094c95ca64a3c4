package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// snapshotCache memoizes one computed value for a TTL. Concurrent misses
// share a single load. Invalidate drops the value and makes any load that
// started before it unable to store its result. A zero TTL disables caching.
type snapshotCache[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	value   T
	valid   bool
	expires time.Time
	gen     uint64

	group singleflight.Group
}

func newSnapshotCache[T any](ttl time.Duration) *snapshotCache[T] {
	return &snapshotCache[T]{ttl: ttl, now: time.Now}
}

// Get returns the cached value or loads a fresh one
func (c *snapshotCache[T]) Get(ctx context.Context, load func(ctx context.Context) (T, error)) (T, error) {
	if c.ttl <= 0 {
		return load(ctx)
	}

	c.mu.Lock()
	if c.valid && c.now().Before(c.expires) {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do("snapshot", func() (interface{}, error) {
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen == gen {
			c.value = val
			c.valid = true
			c.expires = c.now().Add(c.ttl)
		}
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops the cached value
func (c *snapshotCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.valid = false
	var zero T
	c.value = zero
	c.group.Forget("snapshot")
}
