package collector

import (
	"sync"

	"pinharvest/pkg/extract"
)

// DedupCache answers whether an item key has already been observed and
// records new observations.
type DedupCache interface {
	Seen(key extract.ItemKey) bool
	Mark(key extract.ItemKey)
}

// MemoryCache is a per-run dedup cache.
type MemoryCache struct {
	mu   sync.RWMutex
	keys map[extract.ItemKey]struct{}
}

// NewMemoryCache creates an empty per-run cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{keys: make(map[extract.ItemKey]struct{})}
}

// NewMemoryCacheFrom seeds the cache with previously seen keys, typically
// from a resumed checkpoint.
func NewMemoryCacheFrom(seen []extract.ItemKey) *MemoryCache {
	c := NewMemoryCache()
	for _, k := range seen {
		c.keys[k] = struct{}{}
	}
	return c
}

func (c *MemoryCache) Seen(key extract.ItemKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.keys[key]
	return ok
}

func (c *MemoryCache) Mark(key extract.ItemKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = struct{}{}
}

// Len returns the number of marked keys.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// KeyIndex is the natural-key lookup a document store exposes for cross-run
// deduplication.
type KeyIndex interface {
	HasKey(collection string, key string) bool
}

// StoreCache layers a persistent key index under a memory cache, so items
// persisted by earlier runs are skipped without re-querying the store twice.
type StoreCache struct {
	index      KeyIndex
	collection string
	memory     *MemoryCache
}

// NewStoreCache creates a cross-run cache over a store-backed key index.
func NewStoreCache(index KeyIndex, collection string) *StoreCache {
	return &StoreCache{index: index, collection: collection, memory: NewMemoryCache()}
}

func (c *StoreCache) Seen(key extract.ItemKey) bool {
	if c.memory.Seen(key) {
		return true
	}
	if c.index.HasKey(c.collection, string(key)) {
		c.memory.Mark(key)
		return true
	}
	return false
}

func (c *StoreCache) Mark(key extract.ItemKey) {
	c.memory.Mark(key)
}
