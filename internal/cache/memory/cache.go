// Package memory provides a process-local identifier cache.
package memory

import (
	"context"
	"sync"
)

// Cache maps natural keys to surrogate ids. Entries never expire: ids in the store
// are immutable once assigned.
type Cache struct {
	mu  sync.RWMutex
	ids map[string]int64
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{ids: make(map[string]int64)}
}

// Get returns the cached id for key.
func (c *Cache) Get(_ context.Context, key string) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[key]
	return id, ok, nil
}

// Set records id for key.
func (c *Cache) Set(_ context.Context, key string, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[key] = id
	return nil
}

// Len reports the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}
