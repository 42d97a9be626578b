package retrieval

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedResponse(query string) *RetrievalResponse {
	return &RetrievalResponse{Query: query, Strategy: StrategyHybrid}
}

func TestQueryCache_PutGet(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	c.Put("k1", cachedResponse("q1"))

	got, hit := c.Get("k1")
	require.True(t, hit)
	assert.Equal(t, "q1", got.Query)

	_, miss := c.Get("absent")
	assert.False(t, miss)
}

func TestQueryCache_TTLExpiry(t *testing.T) {
	// Given: a cache with a 5 minute TTL and a controllable clock
	c := NewQueryCache(10, 5*time.Minute)
	now := time.Unix(1000, 0)
	c.nowFn = func() time.Time { return now }

	c.Put("k1", cachedResponse("q1"))

	// When: just inside the TTL
	now = now.Add(5*time.Minute - time.Second)
	_, hit := c.Get("k1")
	assert.True(t, hit)

	// Then: just past the TTL the entry is gone and evicted on access
	now = now.Add(2 * time.Second)
	_, hit = c.Get("k1")
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestQueryCache_FIFOEviction(t *testing.T) {
	// Given: a full cache
	c := NewQueryCache(3, time.Hour)
	c.Put("first", cachedResponse("1"))
	c.Put("second", cachedResponse("2"))
	c.Put("third", cachedResponse("3"))

	// Reading an entry must not protect it from eviction (FIFO, not LRU)
	_, hit := c.Get("first")
	require.True(t, hit)

	// When: inserting one more
	c.Put("fourth", cachedResponse("4"))

	// Then: the oldest inserted entry is gone despite the recent read
	_, hit = c.Get("first")
	assert.False(t, hit)
	_, hit = c.Get("second")
	assert.True(t, hit)
	_, hit = c.Get("fourth")
	assert.True(t, hit)
	assert.Equal(t, 3, c.Len())
}

func TestQueryCache_ExpiredReclaimedBeforeEviction(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	now := time.Unix(1000, 0)
	c.nowFn = func() time.Time { return now }

	c.Put("old", cachedResponse("1"))
	now = now.Add(2 * time.Minute) // "old" expires
	c.Put("fresh", cachedResponse("2"))

	// Capacity pressure reclaims the expired entry, keeping the fresh one
	c.Put("newer", cachedResponse("3"))

	_, hit := c.Get("fresh")
	assert.True(t, hit)
	_, hit = c.Get("newer")
	assert.True(t, hit)
}

func TestQueryCache_OverwriteMovesToBack(t *testing.T) {
	c := NewQueryCache(2, time.Hour)
	c.Put("a", cachedResponse("1"))
	c.Put("b", cachedResponse("2"))

	// Overwriting "a" re-inserts it at the back
	c.Put("a", cachedResponse("1v2"))
	c.Put("c", cachedResponse("3"))

	// "b" is now the oldest and gets evicted
	_, hit := c.Get("b")
	assert.False(t, hit)
	got, hit := c.Get("a")
	require.True(t, hit)
	assert.Equal(t, "1v2", got.Query)
}

func TestQueryCache_ZeroCapacityDisables(t *testing.T) {
	c := NewQueryCache(0, time.Minute)
	c.Put("k", cachedResponse("q"))

	_, hit := c.Get("k")
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestQueryCache_ConcurrentAccess(t *testing.T) {
	c := NewQueryCache(64, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%16)
				c.Put(key, cachedResponse(key))
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 64)
}

func TestCacheKey_Deterministic(t *testing.T) {
	k1 := CacheKey("query", 10, StrategyHybrid, 0.0, 4000, true)
	k2 := CacheKey("query", 10, StrategyHybrid, 0.0, 4000, true)
	assert.Equal(t, k1, k2)

	// Any parameter change produces a different key
	assert.NotEqual(t, k1, CacheKey("other", 10, StrategyHybrid, 0.0, 4000, true))
	assert.NotEqual(t, k1, CacheKey("query", 11, StrategyHybrid, 0.0, 4000, true))
	assert.NotEqual(t, k1, CacheKey("query", 10, StrategyKeyword, 0.0, 4000, true))
	assert.NotEqual(t, k1, CacheKey("query", 10, StrategyHybrid, 0.5, 4000, true))
	assert.NotEqual(t, k1, CacheKey("query", 10, StrategyHybrid, 0.0, 2000, true))
	assert.NotEqual(t, k1, CacheKey("query", 10, StrategyHybrid, 0.0, 4000, false))
}
