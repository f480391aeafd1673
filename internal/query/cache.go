package query

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Skotchmaster/bookstore/internal/models"
)

// Key identifies one page of one filtered collection. Two keys that differ in
// any field are different queries.
type Key struct {
	Resource string
	Page     int
	Size     int
	Text     string
	Type     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s[page=%d size=%d text=%q type=%q]", k.Resource, k.Page, k.Size, k.Text, k.Type)
}

type CacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Invalidations int64 `json:"invalidations"`
	Size          int   `json:"size"`
}

// maxEntries bounds each cache; the least recently used page goes first.
const maxEntries = 1024

// Cache memoizes pages by key. A mutation of a resource must call Invalidate
// for it; pages fetched before the invalidation are never stored after it.
type Cache[T any] struct {
	mu      sync.RWMutex
	pages   *expirable.LRU[Key, *models.Page[T]]
	epochs  map[string]uint64
	cleared uint64

	hits          int64
	misses        int64
	invalidations int64
}

func NewCache[T any](ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache[T]{
		pages:  expirable.NewLRU[Key, *models.Page[T]](maxEntries, nil, ttl),
		epochs: make(map[string]uint64),
	}
}

func (c *Cache[T]) Get(key Key) (*models.Page[T], bool) {
	page, ok := c.pages.Get(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return page, true
}

// Epoch is read before a fetch and handed back to SetAt.
func (c *Cache[T]) Epoch(resource string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epochLocked(resource)
}

// epochLocked only ever grows, and grows on every Invalidate or Clear that
// touches resource.
func (c *Cache[T]) epochLocked(resource string) uint64 {
	return c.cleared + c.epochs[resource]
}

// SetAt stores page unless the resource was invalidated since epoch.
func (c *Cache[T]) SetAt(key Key, page *models.Page[T], epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochLocked(key.Resource) != epoch {
		return false
	}
	c.pages.Add(key, page)
	return true
}

func (c *Cache[T]) Set(key Key, page *models.Page[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages.Add(key, page)
}

// Invalidate drops every cached page of resource and returns how many.
func (c *Cache[T]) Invalidate(resource string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochs[resource]++
	n := 0
	for _, k := range c.pages.Keys() {
		if k.Resource == resource && c.pages.Remove(k) {
			n++
		}
	}
	atomic.AddInt64(&c.invalidations, 1)
	return n
}

func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleared++
	c.pages.Purge()
}

func (c *Cache[T]) Len() int {
	return c.pages.Len()
}

func (c *Cache[T]) Stats() CacheStats {
	return CacheStats{
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Invalidations: atomic.LoadInt64(&c.invalidations),
		Size:          c.Len(),
	}
}
