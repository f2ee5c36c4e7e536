package recurrence

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"seriate/rule"
)

// cacheEntry holds one expanded sequence.
type cacheEntry struct {
	dates      []string
	expiresAt  time.Time
	accessedAt time.Time
}

// Cache memoizes generation results keyed by the full (rule, bounds) input.
// Entries expire after a TTL and the least recently accessed entries are
// evicted when the cache grows past its limit.
type Cache struct {
	entries         map[string]*cacheEntry
	mu              sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// CacheConfig holds configuration for the generation cache.
type CacheConfig struct {
	TTL             time.Duration // how long entries stay valid
	MaxEntries      int           // entry count that triggers eviction
	CleanupInterval time.Duration // how often expired entries are swept
}

// DefaultCacheConfig provides sensible defaults for generation caching.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewCache creates a cache and starts its background sweep. Call Close when
// done with it.
func NewCache(config CacheConfig) *Cache {
	cache := &Cache{
		entries:         make(map[string]*cacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go cache.cleanupLoop()
	return cache
}

// cacheKey hashes every input that influences generation. The rule's JSON
// form is stable for a given rule value, so identical inputs always map to
// the same key.
func cacheKey(r rule.Rule, b Bounds) (string, bool) {
	ruleJSON, err := json.Marshal(r)
	if err != nil {
		return "", false
	}

	hasher := sha256.New()
	hasher.Write(ruleJSON)
	hasher.Write([]byte(b.Start.String()))
	if end, ok := b.End.Get(); ok {
		hasher.Write([]byte(end.String()))
	}
	if n, ok := b.MaxOccurrences.Get(); ok {
		fmt.Fprintf(hasher, "max=%d", n)
	}
	hasher.Write([]byte(b.Until.String()))

	return fmt.Sprintf("%x", hasher.Sum(nil)), true
}

// Get returns a cached sequence if present and unexpired. The returned
// slice is a copy; callers may mutate it freely.
func (c *Cache) Get(r rule.Rule, b Bounds) ([]string, bool) {
	key, ok := cacheKey(r, b)
	if !ok {
		return nil, false
	}

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	entry.accessedAt = now
	dates := make([]string, len(entry.dates))
	copy(dates, entry.dates)
	c.mu.Unlock()

	return dates, true
}

// Set stores a sequence. The slice is copied; later mutation by the caller
// does not reach the cache.
func (c *Cache) Set(r rule.Rule, b Bounds, dates []string) {
	key, ok := cacheKey(r, b)
	if !ok {
		return
	}
	now := time.Now()
	stored := make([]string, len(dates))
	copy(stored, dates)
	entry := &cacheEntry{
		dates:      stored,
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	if len(c.entries) > c.maxEntries {
		c.evict()
	}
}

// evict removes expired entries, then the least recently accessed entries
// until the cache is back under its limit. Caller holds the write lock.
func (c *Cache) evict() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	byAge := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		byAge = append(byAge, keyAccess{key: key, accessedAt: entry.accessedAt})
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].accessedAt.Before(byAge[j].accessedAt)
	})

	for i := 0; i < len(byAge) && len(c.entries) > c.maxEntries; i++ {
		delete(c.entries, byAge[i].key)
	}
}

// cleanupLoop sweeps expired entries until Close is called.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.evict()
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the background sweep and clears the cache.
func (c *Cache) Close() {
	close(c.stopCleanup)
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Stats reports the cache's current occupancy.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.entries)
	expired := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}

	return CacheStats{
		TotalEntries:   total,
		ExpiredEntries: expired,
		ActiveEntries:  total - expired,
	}
}

// CacheStats describes cache occupancy at a point in time.
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
