package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ExistenceCache is a short-lived in-memory presence store. It only ever
// holds positive confirmations; an expired or missing key reads as absent.
// It is a performance layer in front of the content ledger, never a source
// of truth, and starts empty on every process restart.
type ExistenceCache struct {
	store *gocache.Cache
}

// New creates an existence cache. Expired entries are swept in the
// background every sweepInterval.
func New(defaultTTL, sweepInterval time.Duration) *ExistenceCache {
	return &ExistenceCache{
		store: gocache.New(defaultTTL, sweepInterval),
	}
}

// Get reports whether key is present and unexpired.
func (c *ExistenceCache) Get(key string) bool {
	_, found := c.store.Get(key)
	return found
}

// Set marks key as present for ttl.
func (c *ExistenceCache) Set(key string, ttl time.Duration) {
	c.store.Set(key, struct{}{}, ttl)
}

// Delete removes key immediately.
func (c *ExistenceCache) Delete(key string) {
	c.store.Delete(key)
}

// Clear drops all entries.
func (c *ExistenceCache) Clear() {
	c.store.Flush()
}

// Len returns the number of unexpired entries, for health reporting.
func (c *ExistenceCache) Len() int {
	return c.store.ItemCount()
}
