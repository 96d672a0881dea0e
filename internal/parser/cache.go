package parser

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long category names are reused before reloading.
const DefaultCacheTTL = 5 * time.Minute

// loadTimeout bounds one shared reload. The reload outlives the caller that
// started it, since other callers may be waiting on it.
const loadTimeout = 2 * time.Second

// CategorySource loads the current category names.
type CategorySource interface {
	Names(ctx context.Context) ([]string, error)
}

// CategoryCache keeps the category names sent with every parse request.
// Concurrent reloads share one query.
type CategoryCache struct {
	src CategorySource
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	names   []string
	fetched time.Time
	gen     uint64

	group singleflight.Group
}

// NewCategoryCache returns a cache over src. A nil now uses time.Now.
func NewCategoryCache(src CategorySource, ttl time.Duration, now func() time.Time) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CategoryCache{src: src, ttl: ttl, now: now}
}

// Names returns cached names, loading them when the cache is empty, expired,
// or invalidated.
func (c *CategoryCache) Names(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if !c.fetched.IsZero() && c.now().Sub(c.fetched) < c.ttl {
		names := slices.Clone(c.names)
		c.mu.Unlock()
		return names, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do("names", func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		names, err := c.src.Names(lctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// An invalidation during the load means names may already be stale.
		if c.gen == gen {
			c.names = names
			c.fetched = c.now()
		}
		c.mu.Unlock()
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

// Invalidate forces the next Names call to reload.
func (c *CategoryCache) Invalidate() {
	c.mu.Lock()
	c.names = nil
	c.fetched = time.Time{}
	c.gen++
	c.mu.Unlock()
}
