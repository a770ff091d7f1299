package cache

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	data       V
	expiration time.Time
}

// Cache is a TTL key/value store with background eviction.
// Call Stop when the cache is no longer needed.
type Cache[V any] struct {
	sync.RWMutex
	data map[string]cacheEntry[V]
	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// New creates a cache whose entries expire after ttl and starts the cleanup goroutine
func New[V any](ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		data: make(map[string]cacheEntry[V]),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go c.cleanup(time.Minute)
	return c
}

// TTL returns the default time to live
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.data[key] = cacheEntry[V]{
		data:       value,
		expiration: c.now().Add(ttl),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.RLock()
	entry, exists := c.data[key]
	c.RUnlock()

	var zero V
	if !exists {
		return zero, false
	}
	if c.now().After(entry.expiration) {
		c.Delete(key)
		return zero, false
	}
	return entry.data, true
}

func (c *Cache[V]) Delete(key string) {
	c.Lock()
	delete(c.data, key)
	c.Unlock()
}

// Len counts entries including expired ones not yet evicted
func (c *Cache[V]) Len() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.data)
}

// Stop ends the cleanup goroutine
func (c *Cache[V]) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache[V]) evictExpired() {
	c.Lock()
	defer c.Unlock()
	now := c.now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}
