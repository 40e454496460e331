package summary

import (
	"time"

	"github.com/planweave/tally/internal/metrics"
	"github.com/planweave/tally/internal/variable"
)

// Cache defaults; overridable through Config.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000
)

// entry is one memoized summary keyed by item ID. The dependency set
// holds the IDs of every relationship traversed for the item's direct
// children, so invalidation can be scoped rather than global.
type entry struct {
	summary      variable.Summary
	deps         map[string]struct{}
	createdAt    time.Time
	accessCount  int64
	lastAccessed time.Time
}

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	Size           int     `json:"size"`
	HitRate        float64 `json:"hit_rate"`
	MemoryEstimate int64   `json:"memory_estimate_bytes"`
	AvgAccessCount float64 `json:"avg_access_count"`
}

// Cache memoizes summaries with TTL expiry, LRU eviction and
// dependency-set invalidation. Like the graph, it performs no
// internal locking; the owning facade serializes access.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	entries    map[string]*entry

	hits   int64
	misses int64

	now func() time.Time // injectable clock for tests
}

// NewCache creates a Cache. Non-positive arguments fall back to the
// defaults.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
		now:        time.Now,
	}
}

// Get returns the cached summary for itemID, expiring it first when
// its TTL has elapsed.
func (c *Cache) Get(itemID string) (variable.Summary, bool) {
	e, ok := c.entries[itemID]
	if !ok {
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}
	now := c.now()
	if now.Sub(e.createdAt) > c.ttl {
		delete(c.entries, itemID)
		metrics.CacheExpirations.Inc()
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}
	e.accessCount++
	e.lastAccessed = now
	c.hits++
	metrics.CacheHits.Inc()
	return e.summary, true
}

// Put stores a summary with the relationship IDs it depends on,
// evicting the least recently used entry once the bound is exceeded.
func (c *Cache) Put(itemID string, s variable.Summary, deps map[string]struct{}) {
	if _, exists := c.entries[itemID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	now := c.now()
	c.entries[itemID] = &entry{
		summary:      s,
		deps:         deps,
		createdAt:    now,
		lastAccessed: now,
	}
}

// InvalidateItem removes the entry for itemID. Returns true if an
// entry was present.
func (c *Cache) InvalidateItem(itemID string) bool {
	if _, ok := c.entries[itemID]; !ok {
		return false
	}
	delete(c.entries, itemID)
	metrics.CacheInvalidations.Inc()
	return true
}

// InvalidateByDeps removes every entry whose dependency set
// intersects relIDs, returning the number removed.
func (c *Cache) InvalidateByDeps(relIDs map[string]struct{}) int {
	if len(relIDs) == 0 {
		return 0
	}
	removed := 0
	for itemID, e := range c.entries {
		for relID := range e.deps {
			if _, hit := relIDs[relID]; hit {
				delete(c.entries, itemID)
				removed++
				break
			}
		}
	}
	if removed > 0 {
		metrics.CacheInvalidations.Add(float64(removed))
	}
	return removed
}

// Clear drops every entry and resets hit statistics.
func (c *Cache) Clear() {
	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}

// Stats reports size, hit rate, a rough memory estimate and the mean
// per-entry access count.
func (c *Cache) Stats() CacheStats {
	st := CacheStats{Size: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}
	var accesses int64
	for itemID, e := range c.entries {
		accesses += e.accessCount
		// Rough accounting: map overhead plus key and value payloads.
		st.MemoryEstimate += int64(64 + len(itemID) + len(e.deps)*40)
		for name, a := range e.summary {
			st.MemoryEstimate += int64(len(name) + len(a.Name) + len(a.Unit) + len(a.Category) + 24)
		}
	}
	if len(c.entries) > 0 {
		st.AvgAccessCount = float64(accesses) / float64(len(c.entries))
	}
	return st
}

func (c *Cache) evictLRU() {
	var oldest string
	var oldestAt time.Time
	first := true
	for itemID, e := range c.entries {
		if first || e.lastAccessed.Before(oldestAt) {
			oldest = itemID
			oldestAt = e.lastAccessed
			first = false
		}
	}
	if !first {
		delete(c.entries, oldest)
		metrics.CacheEvictions.Inc()
	}
}
