package memory

import (
	"context"
	"sync"

	"github.com/nxtleveltech/mantis-sync/internal/core/domain"
	"github.com/nxtleveltech/mantis-sync/internal/core/ports/driven"
)

// Ensure DeltaCache implements the interface.
var _ driven.DeltaCache = (*DeltaCache)(nil)

// DeltaCache is an in-memory implementation of driven.DeltaCache with a
// bounded entry count. Eviction is oldest-insertion-first; callers must
// tolerate misses at any time.
type DeltaCache struct {
	mu      sync.Mutex
	entries map[string]domain.Delta
	keys    []string
	limit   int
}

// NewDeltaCache creates a cache bounded to limit entries. A limit of zero
// or less falls back to 128.
func NewDeltaCache(limit int) *DeltaCache {
	if limit <= 0 {
		limit = 128
	}
	return &DeltaCache{
		entries: make(map[string]domain.Delta),
		limit:   limit,
	}
}

// Get returns the cached delta for a key, if present.
func (c *DeltaCache) Get(_ context.Context, key string) (*domain.Delta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delta, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &delta, true
}

// Put stores a delta under a key, replacing any existing entry.
func (c *DeltaCache) Put(_ context.Context, key string, delta domain.Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.keys = append(c.keys, key)
		if len(c.keys) > c.limit {
			oldest := c.keys[0]
			c.keys = c.keys[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = delta
}
