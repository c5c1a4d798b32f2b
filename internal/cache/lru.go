package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache bounds memory with size-based eviction and expires entries by TTL.
// Handlers cache rendered dashboard aggregates here keyed by company and period.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	byKey   map[string]*list.Element
	order   *list.List
}

type lruEntry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most maxSize entries, each valid for ttl.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		byKey:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value and true when present and not expired.
// Expired entries are removed on access.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.byKey[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*lruEntry[T])
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set stores value under key, resetting its TTL. The least recently used
// entry is evicted when the cache is over capacity.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &lruEntry[T]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, ok := c.byKey[key]; ok {
		elem.Value = entry
		c.order.MoveToFront(elem)
		return
	}

	c.byKey[key] = c.order.PushFront(entry)

	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes key. Posting or voiding an entry invalidates the
// overview for its period this way.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.byKey[key]; ok {
		c.removeElement(elem)
	}
}

// Purge drops every entry. Used after bulk changes such as seeding a chart
// of accounts, where stale aggregates could reference renamed accounts.
func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byKey = make(map[string]*list.Element)
	c.order.Init()
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	entry := elem.Value.(*lruEntry[T])
	delete(c.byKey, entry.key)
	c.order.Remove(elem)
}

// CleanExpired removes every expired entry and reports how many were dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var stale []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*lruEntry[T]).expiresAt) {
			stale = append(stale, elem)
		}
	}
	for _, elem := range stale {
		c.removeElement(elem)
	}
	return len(stale)
}

// Size returns the current number of entries, expired ones included.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}
