package memory

import (
	"context"
	"sync"
	"time"
)

// Cache provides a simple in-memory cache implementation.
// Fences live beside the entries under the same lock.
type Cache struct {
	mu     sync.RWMutex
	items  map[string]cacheItem
	fences map[string]cacheFence

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

type cacheFence struct {
	version   int
	expiresAt time.Time
}

func (f cacheFence) expired(now time.Time) bool {
	return !f.expiresAt.IsZero() && now.After(f.expiresAt)
}

func expiresAfter(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// NewCache creates a new in-memory cache whose janitor sweeps every interval
func NewCache(cleanupInterval time.Duration) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	cache := &Cache{
		items:  make(map[string]cacheItem),
		fences: make(map[string]cacheFence),
		stop:   make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanupExpired(cleanupInterval)

	return cache
}

// Get retrieves a value from cache
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.expired(time.Now()) {
		return nil, false, nil
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

// Set stores a value in cache; a zero ttl never expires
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(key, value, ttl)
	return nil
}

func (c *Cache) store(key string, value []byte, ttl time.Duration) {
	item := cacheItem{value: make([]byte, len(value)), expiresAt: expiresAfter(ttl)}
	copy(item.value, value)
	c.items[key] = item
}

// Invalidate removes key and raises its fence to version
func (c *Cache) Invalidate(ctx context.Context, key string, version int, fenceTTL time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fence := cacheFence{version: version, expiresAt: expiresAfter(fenceTTL)}
	if current, ok := c.fences[key]; ok && !current.expired(time.Now()) && current.version > version {
		fence.version = current.version
	}
	c.fences[key] = fence
	delete(c.items, key)
	return nil
}

// SetIfNewer stores value unless a live fence on key is above version
func (c *Cache) SetIfNewer(ctx context.Context, key string, value []byte, version int, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fence, ok := c.fences[key]; ok && !fence.expired(time.Now()) && fence.version > version {
		return false, nil
	}
	c.store(key, value, ttl)
	return true, nil
}

// Delete removes a value from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Exists checks if a live entry is stored under key
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	return exists && !item.expired(time.Now()), nil
}

// Ping always succeeds
func (c *Cache) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor goroutine
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// cleanupExpired periodically removes expired items
func (c *Cache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if item.expired(now) {
					delete(c.items, key)
				}
			}
			for key, fence := range c.fences {
				if fence.expired(now) {
					delete(c.fences, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
