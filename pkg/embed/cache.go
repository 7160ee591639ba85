package embed

import (
	"container/list"
	"sync"
)

// Cache is an LRU map from input text to its embedding. Vectors are copied on
// the way in and out so cached entries are never aliased by callers.
type Cache struct {
	capacity int

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

type cacheEntry struct {
	key    string
	vector []float32
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	vector := el.Value.(*cacheEntry).vector
	out := make([]float32, len(vector))
	copy(out, vector)
	return out, true
}

func (c *Cache) Put(key string, vector []float32) {
	stored := make([]float32, len(vector))
	copy(stored, vector)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).vector = stored
		return
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, vector: stored})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
