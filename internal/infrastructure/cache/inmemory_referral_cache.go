package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// InMemoryReferralCache implements referral.ReferralCache on a process-local TTL cache.
// Suitable for single-instance deployments and tests; nothing is shared across processes.
type InMemoryReferralCache struct {
	entries *gocache.Cache
}

// NewInMemoryReferralCache creates an in-memory cache. Expired entries are
// swept every cleanupInterval; a non-positive interval disables sweeping.
func NewInMemoryReferralCache(cleanupInterval time.Duration) *InMemoryReferralCache {
	return &InMemoryReferralCache{
		entries: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get returns a copy of the cached value
func (c *InMemoryReferralCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	b := v.([]byte)
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

// Set stores a copy of value under key for ttl
func (c *InMemoryReferralCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b := make([]byte, len(value))
	copy(b, value)
	c.entries.Set(key, b, ttl)
	return nil
}

// Delete removes key
func (c *InMemoryReferralCache) Delete(_ context.Context, key string) error {
	c.entries.Delete(key)
	return nil
}

// Len returns the number of entries, including expired ones not yet swept
func (c *InMemoryReferralCache) Len() int {
	return c.entries.ItemCount()
}
