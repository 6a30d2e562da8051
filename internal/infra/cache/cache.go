// Package cache provides an in-memory byte cache with per-key TTL,
// LRU eviction and prefix invalidation. In production, this could be
// backed by Redis.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// InMemory is a thread-safe cache with per-key TTL and a bounded number
// of entries. The least recently used entry is evicted on overflow.
type InMemory struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	lru        *list.List
	maxEntries int

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// Option configures an InMemory cache.
type Option func(*InMemory)

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *InMemory) { c.now = now }
}

// New creates a cache holding at most maxEntries values (0 means unbounded)
// and starts a janitor that drops expired entries every cleanupInterval.
// Call Close to stop the janitor.
func New(maxEntries int, cleanupInterval time.Duration, opts ...Option) *InMemory {
	c := &InMemory{
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}
	return c
}

// Get retrieves a value. Returns false if not found or expired.
func (c *InMemory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.remove(el)
		return nil, false, nil
	}
	c.lru.MoveToFront(el)

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a value for ttl. The last write to a key wins.
func (c *InMemory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{key: key, value: buf, expiresAt: c.now().Add(ttl)}
	if el, ok := c.items[key]; ok {
		el.Value = e
		c.lru.MoveToFront(el)
		return nil
	}
	c.items[key] = c.lru.PushFront(e)

	if c.maxEntries > 0 && c.lru.Len() > c.maxEntries {
		if oldest := c.lru.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
	return nil
}

// Delete removes a value from the cache.
func (c *InMemory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *InMemory) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, el := range c.items {
		if strings.HasPrefix(k, prefix) {
			c.remove(el)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *InMemory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close stops the background janitor.
func (c *InMemory) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *InMemory) remove(el *list.Element) {
	delete(c.items, el.Value.(*entry).key)
	c.lru.Remove(el)
}

// purgeExpired drops expired entries and returns how many were removed.
func (c *InMemory) purgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.remove(el)
			removed++
		}
		el = next
	}
	return removed
}

// cleanup periodically removes expired entries.
func (c *InMemory) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.done:
			return
		}
	}
}
