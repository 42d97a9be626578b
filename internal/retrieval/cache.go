package retrieval

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// QueryCache is a TTL- and capacity-bounded response cache.
//
// Eviction is FIFO by insertion order, not LRU: reads never reorder
// entries, so evicting at capacity is a single O(1) list pop. Expired
// entries are evicted when touched by Get and reclaimed first by Put.
// The cache is a pure optimization layer; anomalies are absorbed as
// misses, never surfaced.
type QueryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	// order holds *cacheEntry front-to-back in insertion order (oldest front)
	order *list.List

	// nowFn is replaceable for TTL tests
	nowFn func() time.Time
}

// cacheEntry is one cached response with its insertion time.
type cacheEntry struct {
	key        string
	value      *RetrievalResponse
	insertedAt time.Time
}

// NewQueryCache creates a cache. capacity <= 0 disables caching entirely;
// ttl <= 0 means entries never expire.
func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

// CacheKey derives the deterministic cache key for a normalized query and
// the options that affect the response.
func CacheKey(normalizedQuery string, limit int, strategy Strategy, threshold float64, maxContextLength int, diversity bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%g\x00%d\x00%t",
		normalizedQuery, limit, strategy, threshold, maxContextLength, diversity)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key if present and unexpired.
// An expired or malformed entry is evicted and reported as a miss.
func (c *QueryCache) Get(key string) (*RetrievalResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry, valid := elem.Value.(*cacheEntry)
	if !valid || entry == nil || entry.value == nil {
		// Malformed entry: treat as a miss, overwritten by the next Put.
		c.removeElement(elem, key)
		return nil, false
	}

	if c.expired(entry) {
		c.removeElement(elem, key)
		return nil, false
	}

	return entry.value, true
}

// Put inserts a response. At capacity the single oldest entry by insertion
// order is evicted, after reclaiming any expired entries.
func (c *QueryCache) Put(key string, value *RetrievalResponse) {
	if c.capacity <= 0 || value == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Overwrite re-enters at the back with a fresh timestamp.
	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem, key)
	}

	if c.order.Len() >= c.capacity {
		c.evictExpired()
	}
	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	entry := &cacheEntry{key: key, value: value, insertedAt: c.nowFn()}
	c.entries[key] = c.order.PushBack(entry)
}

// Len returns the number of cached entries, including any not yet reclaimed
// expired ones.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops all entries.
func (c *QueryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// expired reports whether an entry's TTL has elapsed.
// Must be called with the lock held.
func (c *QueryCache) expired(entry *cacheEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.nowFn().Sub(entry.insertedAt) >= c.ttl
}

// evictExpired removes all expired entries.
// Must be called with the lock held.
func (c *QueryCache) evictExpired() {
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry, ok := elem.Value.(*cacheEntry)
		if !ok || c.expired(entry) {
			key := ""
			if ok {
				key = entry.key
			}
			c.removeElement(elem, key)
		}
		elem = next
	}
}

// evictOldest removes the front (oldest) entry.
// Must be called with the lock held.
func (c *QueryCache) evictOldest() {
	elem := c.order.Front()
	if elem == nil {
		return
	}
	key := ""
	if entry, ok := elem.Value.(*cacheEntry); ok {
		key = entry.key
	}
	c.removeElement(elem, key)
}

// removeElement drops one element from both structures.
// Must be called with the lock held.
func (c *QueryCache) removeElement(elem *list.Element, key string) {
	c.order.Remove(elem)
	if key != "" {
		delete(c.entries, key)
	}
}
