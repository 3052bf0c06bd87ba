package memory

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/ports"
)

// Cache implements ports.AnalysisCache as an in-process LRU.
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates an LRU sized for sizeMB megabytes.
func NewCache(sizeMB int) *Cache {
	return &Cache{
		capacity: ports.CapacityFor(sizeMB),
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Save stores the entry and marks it as recently used. A shallower entry
// never replaces a deeper one.
func (c *Cache) Save(ctx context.Context, entry ports.AnalysisEntry) error {
	entry.PV = slices.Clone(entry.PV)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[entry.Key]; ok {
		cur := el.Value.(*ports.AnalysisEntry)
		if cur.Depth > entry.Depth {
			return nil
		}
		*cur = entry
		c.order.MoveToFront(el)
		return nil
	}

	c.items[entry.Key] = c.order.PushFront(&entry)
	c.evictLocked()
	return nil
}

// Load retrieves the entry and marks it as recently used.
func (c *Cache) Load(ctx context.Context, key string) (ports.AnalysisEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return ports.AnalysisEntry{}, domain.ErrCacheMiss
	}
	c.hits.Add(1)
	c.order.MoveToFront(el)

	ret := *el.Value.(*ports.AnalysisEntry)
	ret.PV = slices.Clone(ret.PV)
	return ret, nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), nil
}

// Resize changes the capacity, evicting least recently used entries.
func (c *Cache) Resize(ctx context.Context, sizeMB int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = ports.CapacityFor(sizeMB)
	c.evictLocked()
	return nil
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) evictLocked() {
	for len(c.items) > c.capacity {
		el := c.order.Back()
		if el == nil {
			return
		}
		c.order.Remove(el)
		delete(c.items, el.Value.(*ports.AnalysisEntry).Key)
	}
}
