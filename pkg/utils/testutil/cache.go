package testutil

import (
	"context"
	"sync"
)

// MemoryCache is an in-process interfaces.EmbeddingCache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	Err     error // returned by every call when set
	Gets    int
	Puts    int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]float32)}
}

func (c *MemoryCache) GetMany(ctx context.Context, keys []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets++
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([][]float32, len(keys))
	for i, k := range keys {
		out[i] = c.entries[k]
	}
	return out, nil
}

func (c *MemoryCache) PutMany(ctx context.Context, keys []string, vectors [][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Puts++
	if c.Err != nil {
		return c.Err
	}
	for i, k := range keys {
		c.entries[k] = vectors[i]
	}
	return nil
}

// Len returns the number of cached entries
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
