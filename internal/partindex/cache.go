package partindex

import (
	"strings"
	"sync"
	"time"
)

// cacheEntry represents one cached listing page
type cacheEntry struct {
	page      PartitionPage
	expiresAt time.Time
}

// pageCache provides in-memory TTL caching for listing pages. Entries are
// keyed by prefix, continuation token, and page size, so invalidation by
// prefix can drop every page derived from a written partition.
type pageCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	stopCh  chan struct{}

	// gen counts invalidations. A fetch that started before an invalidation
	// must not write its page back afterwards; SetIfCurrent enforces that.
	gen uint64
}

// newPageCache creates a page cache. cleanupInterval bounds how long an
// expired entry can linger in memory.
func newPageCache(ttl, cleanupInterval time.Duration) *pageCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	cache := &pageCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup(cleanupInterval)

	return cache
}

// Get retrieves a page from cache
func (c *pageCache) Get(key string) (PartitionPage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return PartitionPage{}, false
	}

	if time.Now().After(entry.expiresAt) {
		return PartitionPage{}, false
	}

	return entry.page, true
}

// Set stores a page in cache
func (c *pageCache) Set(key string, page PartitionPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		page:      page,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Generation reports the current invalidation epoch.
func (c *pageCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.gen
}

// SetIfCurrent stores a page only if no invalidation ran since gen was
// observed. A stale fetch result is simply not cached.
func (c *pageCache) SetIfCurrent(key string, page PartitionPage, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	c.entries[key] = &cacheEntry{
		page:      page,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// DeletePrefix removes all entries whose cache key starts with prefix
func (c *pageCache) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// DeleteAncestors removes every page whose listing prefix is a prefix of the
// given object key. A listing can only contain a key beneath its prefix, so
// these are exactly the pages a write to that key can stale.
func (c *pageCache) DeleteAncestors(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	for cacheKey := range c.entries {
		prefix, _, ok := strings.Cut(cacheKey, "\x00")
		if ok && strings.HasPrefix(key, prefix) {
			delete(c.entries, cacheKey)
		}
	}
}

// Clear removes all entries
func (c *pageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.entries = make(map[string]*cacheEntry)
}

// Len reports the number of entries, expired ones included
func (c *pageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// cleanup periodically removes expired entries
func (c *pageCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (c *pageCache) Stop() {
	close(c.stopCh)
}
