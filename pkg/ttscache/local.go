package ttscache

import (
	"container/list"
	"sync"
)

// LocalCache is a bounded, in-process mapping from cache key to PCM bytes
// with least-recently-used eviction, constrained by both entry count and
// aggregate byte size. All operations are safe for concurrent use.
type LocalCache struct {
	mu          sync.Mutex
	maxItems    int
	maxBytes    int64
	totalBytes  int64
	ll          *list.List // front = most recently used
	index       map[string]*list.Element

	hits    int64
	misses  int64
	evicted int64
}

type localEntry struct {
	key string
	pcm []byte
}

// NewLocalCache constructs a LocalCache bounded by maxItems entries and
// maxBytes aggregate PCM bytes. maxItems == 0 disables the tier entirely:
// every Get misses and every Set is a no-op.
func NewLocalCache(maxItems int, maxBytes int64) *LocalCache {
	return &LocalCache{
		maxItems: maxItems,
		maxBytes: maxBytes,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Get returns the PCM payload for key and promotes it to most-recently-used
// on a hit.
func (c *LocalCache) Get(key string) (pcm []byte, ok bool) {
	if c.maxItems == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.index[key]
	if !found {
		c.misses++
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	e := el.Value.(*localEntry)
	out := make([]byte, len(e.pcm))
	copy(out, e.pcm)
	return out, true
}

// Set inserts or replaces key's payload. A payload larger than maxBytes is
// silently rejected — an unevictable entry is never admitted. After
// insertion, entries are evicted least-recently-used-first until both
// bounds hold.
func (c *LocalCache) Set(key string, pcm []byte) {
	if c.maxItems == 0 {
		return
	}
	if int64(len(pcm)) > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(pcm))
	copy(stored, pcm)

	if el, found := c.index[key]; found {
		e := el.Value.(*localEntry)
		c.totalBytes += int64(len(stored)) - int64(len(e.pcm))
		e.pcm = stored
		c.ll.MoveToFront(el)
		c.evictUntilWithinBounds()
		return
	}

	el := c.ll.PushFront(&localEntry{key: key, pcm: stored})
	c.index[key] = el
	c.totalBytes += int64(len(stored))
	c.evictUntilWithinBounds()
}

// evictUntilWithinBounds must be called with mu held.
func (c *LocalCache) evictUntilWithinBounds() {
	for c.ll.Len() > c.maxItems || c.totalBytes > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		e := back.Value.(*localEntry)
		c.ll.Remove(back)
		delete(c.index, e.key)
		c.totalBytes -= int64(len(e.pcm))
		c.evicted++
	}
}

// Stats returns a point-in-time snapshot of hit/miss/eviction counters and
// the current size, mainly for tests and diagnostics.
type Stats struct {
	Items      int
	TotalBytes int64
	Hits       int64
	Misses     int64
	Evicted    int64
}

func (c *LocalCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Items:      c.ll.Len(),
		TotalBytes: c.totalBytes,
		Hits:       c.hits,
		Misses:     c.misses,
		Evicted:    c.evicted,
	}
}
