package storage

import (
	"container/list"
	"context"
	"sync"
)

// ShadowCache wraps a Store with an in-memory shadow of recently read
// keys, the same "load on demand, retain for next time" shape as the
// teacher's vcache.Object: a Get that misses the shadow reads through
// to the underlying Store and caches the result; a Get that hits never
// touches the Store again until evicted. Unlike vcache (which caches
// whole decoded vectors), the shadow here caches individual (key,
// weight) pairs, since that's the Store contract's unit of work.
type ShadowCache struct {
	backing Store
	mu      sync.Mutex
	cap     int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type cacheEntry struct {
	key    string
	weight int64
	ok     bool
}

// NewShadowCache wraps backing with an LRU shadow holding up to
// capacity keys.
func NewShadowCache(backing Store, capacity int) *ShadowCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ShadowCache{
		backing: backing,
		cap:     capacity,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get reads through the shadow to backing on a miss, caching the
// result (including a negative "not found" result, so repeated lookups
// of an absent key don't keep hitting the Store).
func (c *ShadowCache) Get(ctx context.Context, key []byte) (int64, bool, error) {
	k := string(key)
	c.mu.Lock()
	if el, ok := c.entries[k]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*cacheEntry)
		c.mu.Unlock()
		return e.weight, e.ok, nil
	}
	c.mu.Unlock()

	w, ok, err := c.backing.Get(ctx, key)
	if err != nil {
		return 0, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	el := c.order.PushFront(&cacheEntry{key: k, weight: w, ok: ok})
	c.entries[k] = el
	if c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return w, ok, nil
}

// Invalidate drops key from the shadow, forcing the next Get to read
// through to backing; callers must call this after any StoreBatch
// touching key, since ShadowCache itself has no write path.
func (c *ShadowCache) Invalidate(key []byte) {
	k := string(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		c.order.Remove(el)
		delete(c.entries, k)
	}
}

// Len returns the number of keys currently shadowed.
func (c *ShadowCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
