package cache

import (
	"container/list"
	"sync"
)

// TierCache is a fixed-capacity LRU container backing the in-memory cache
// tiers. All operations are O(1); recency order is exact request order, so
// the entry evicted is always the single least recently touched one.
type TierCache[V any] struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List
	onEvict   func(key string)
}

// tierEntry is the value stored in each list element.
type tierEntry[V any] struct {
	key   string
	value V
}

// NewTierCache creates a tier with the given entry capacity. Capacity is
// fixed for the lifetime of the tier.
func NewTierCache[V any](capacity int) *TierCache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &TierCache[V]{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// OnEvict registers a callback invoked with the key of every entry evicted
// by capacity pressure. Explicit Remove and Clear do not trigger it.
func (c *TierCache[V]) OnEvict(fn func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns the value for key and marks it most recently used. Other
// entries are not affected.
func (c *TierCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		var zero V
		return zero, false
	}

	c.evictList.MoveToFront(element)
	return element.Value.(*tierEntry[V]).value, true
}

// Set inserts or replaces the value for key and marks it most recently
// used. If the tier is full, the least recently used entry is evicted
// first.
func (c *TierCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		element.Value.(*tierEntry[V]).value = value
		c.evictList.MoveToFront(element)
		return
	}

	if c.evictList.Len() >= c.capacity {
		c.evictOldest()
	}

	element := c.evictList.PushFront(&tierEntry[V]{key: key, value: value})
	c.items[key] = element
}

// Remove deletes key from the tier. It reports whether the key was present.
func (c *TierCache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		return false
	}

	c.evictList.Remove(element)
	delete(c.items, key)
	return true
}

// Contains reports whether key is present without refreshing its recency.
func (c *TierCache[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]
	return exists
}

// Len returns the current number of entries.
func (c *TierCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the fixed entry capacity.
func (c *TierCache[V]) Capacity() int {
	return c.capacity
}

// Clear removes all entries without invoking the eviction callback.
func (c *TierCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Keys returns all keys ordered most to least recently used. It has no
// side effects on recency.
func (c *TierCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for element := c.evictList.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*tierEntry[V]).key)
	}
	return keys
}

// evictOldest removes the entry at the back of the recency list.
// Caller must hold c.mu.
func (c *TierCache[V]) evictOldest() {
	element := c.evictList.Back()
	if element == nil {
		return
	}

	entry := element.Value.(*tierEntry[V])
	c.evictList.Remove(element)
	delete(c.items, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key)
	}
}
