package cache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// entry is one cached artifact plus its accounting metadata.
type entry struct {
	fingerprint string
	artifact    any
	size        int64
	refreshedAt time.Time
}

// Cache maps a content fingerprint to a previously computed artifact
// (batch result or change-set). Entries are evicted least-recently-used
// when the byte budget would be exceeded, and are never returned after
// their TTL elapses. Size accounting uses the exact serialized byte length
// of the artifact; the budget is a hard invariant, not an estimate.
type Cache struct {
	mu        sync.Mutex
	cfg       Config
	ll        *list.List // front = most recently used
	items     map[string]*list.Element
	usedBytes int64

	now func() time.Time
}

// New creates an empty cache.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:   cfg,
		ll:    list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
	}
}

// Get returns the artifact stored under fingerprint, if present and fresh.
// A hit refreshes the entry: both its recency position and its TTL clock.
func (c *Cache) Get(fingerprint string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[fingerprint]
	if !ok {
		return nil, false
	}

	e := el.Value.(*entry)
	if c.now().Sub(e.refreshedAt) > c.cfg.TTLDuration() {
		c.removeLocked(el)
		return nil, false
	}

	e.refreshedAt = c.now()
	c.ll.MoveToFront(el)
	return e.artifact, true
}

// Put stores artifact under fingerprint, evicting least-recently-used
// entries until the byte budget accommodates it. An artifact larger than
// the entire budget is not stored at all.
func (c *Cache) Put(fingerprint string, artifact any) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to size artifact for caching: %w", err)
	}
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[fingerprint]; ok {
		c.removeLocked(el)
	}

	if size > c.cfg.MaxBytes {
		// Would evict everything and still not fit; skip caching.
		return nil
	}

	for c.usedBytes+size > c.cfg.MaxBytes {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	el := c.ll.PushFront(&entry{
		fingerprint: fingerprint,
		artifact:    artifact,
		size:        size,
		refreshedAt: c.now(),
	})
	c.items[fingerprint] = el
	c.usedBytes += size
	return nil
}

// UsedBytes returns the exact number of bytes currently accounted for.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// removeLocked unlinks an element and releases its bytes. Caller holds c.mu.
func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.fingerprint)
	c.usedBytes -= e.size
}
