package dashboard

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FigureCache is a concurrent-safe LRU cache of encoded figures with TTL
// expiration. A figure depends only on the selection and metric, so
// sessions with the same view share one entry.
type FigureCache struct {
	mu         sync.RWMutex
	entries    map[string]*figureEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type figureEntry struct {
	data      []byte
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewFigureCache creates a cache. A capacity of zero or less disables it.
func NewFigureCache(maxEntries int, ttl time.Duration) *FigureCache {
	return &FigureCache{
		entries:    make(map[string]*figureEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// figureKey is order-insensitive in the selection.
func figureKey(metric string, selected []string) string {
	names := append([]string(nil), selected...)
	sort.Strings(names)
	return metric + "|" + strings.Join(names, "\x1f")
}

// Get retrieves a cached figure. Returns nil on miss or expiration.
func (c *FigureCache) Get(metric string, selected []string) []byte {
	if c == nil || c.maxEntries <= 0 {
		return nil
	}
	key := figureKey(metric, selected)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}

	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.data
}

// Put stores a figure, evicting the least recently used entry at capacity.
func (c *FigureCache) Put(metric string, selected []string, data []byte) {
	if c == nil || c.maxEntries <= 0 {
		return
	}
	key := figureKey(metric, selected)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &figureEntry{data: data, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &figureEntry{data: data, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// Stats returns cache performance statistics.
func (c *FigureCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *FigureCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
