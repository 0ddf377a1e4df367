package storage

import "sync"

// LruCache is a fixed-capacity mapping from PageID to an in-memory Page,
// maintaining recency order and refusing to evict dirty pages.
//
// Strict LRU would force eviction of dirty pages, which the NO-STEAL
// policy forbids (a dirty page may only hit disk at commit). Skipping
// dirty nodes during eviction preserves NO-STEAL while keeping warm,
// clean pages under memory pressure.
type LruCache struct {
	mu       sync.Mutex
	capacity int
	nodes    map[PageID]*lruNode
	head     *lruNode // sentinel; head.next is most recently used
	tail     *lruNode // sentinel; tail.prev is least recently used

	hits   uint64
	misses uint64
	evicts uint64
}

type lruNode struct {
	id         PageID
	page       Page
	prev, next *lruNode
}

// NewLruCache creates a cache with the given fixed capacity.
func NewLruCache(capacity int) *LruCache {
	c := &LruCache{
		capacity: capacity,
		nodes:    make(map[PageID]*lruNode, capacity),
		head:     &lruNode{},
		tail:     &lruNode{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Capacity returns the cache's fixed capacity.
func (c *LruCache) Capacity() int {
	return c.capacity
}

// Len returns the number of pages currently cached.
func (c *LruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// Contains reports whether pid is cached. Key comparison uses PageID
// equality, not identity.
func (c *LruCache) Contains(pid PageID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.nodes[pid]
	return ok
}

// Get returns the cached page for pid, moving it to the MRU position, or
// (nil, false) if absent.
func (c *LruCache) Get(pid PageID) (Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[pid]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.moveToFrontLocked(n)
	return n.page, true
}

// Put inserts or replaces the page stored under pid, moving it to the MRU
// position. If the cache is full and pid is not already present, Put
// scans from the LRU end toward the MRU end for the first non-dirty node
// to evict. If every node is dirty, Put fails with NoEvictableError and
// leaves the cache unchanged.
func (c *LruCache) Put(pid PageID, page Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[pid]; ok {
		n.page = page
		c.moveToFrontLocked(n)
		return nil
	}

	if len(c.nodes) >= c.capacity {
		if !c.evictOneLocked() {
			return &NoEvictableError{Capacity: c.capacity}
		}
	}

	n := &lruNode{id: pid, page: page}
	c.nodes[pid] = n
	c.addToFrontLocked(n)
	return nil
}

// Remove unlinks and deletes pid's entry if present; it is a no-op
// otherwise. Used by the recovery path and by callers freeing a page for
// reuse.
func (c *LruCache) Remove(pid PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[pid]
	if !ok {
		return
	}
	c.unlinkLocked(n)
	delete(c.nodes, pid)
}

// Entries returns a snapshot of every cached (PageID, Page) pair. Order is
// unspecified; used only for bulk flush/rollback scans.
func (c *LruCache) Entries() []struct {
	ID   PageID
	Page Page
} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]struct {
		ID   PageID
		Page Page
	}, 0, len(c.nodes))
	for id, n := range c.nodes {
		out = append(out, struct {
			ID   PageID
			Page Page
		}{ID: id, Page: n.page})
	}
	return out
}

// LruStats reports cache hit/miss/eviction counters.
type LruStats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns a snapshot of the cache's counters.
func (c *LruCache) Stats() LruStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LruStats{
		Size:      len(c.nodes),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicts,
	}
}

// evictOneLocked scans from the LRU end toward the MRU end for the first
// non-dirty node, removes it, and reports whether it found one. Callers
// must hold c.mu.
func (c *LruCache) evictOneLocked() bool {
	for n := c.tail.prev; n != c.head; n = n.prev {
		if _, dirty := n.page.IsDirty(); dirty {
			continue
		}
		c.unlinkLocked(n)
		delete(c.nodes, n.id)
		c.evicts++
		return true
	}
	return false
}

func (c *LruCache) moveToFrontLocked(n *lruNode) {
	c.unlinkLocked(n)
	c.addToFrontLocked(n)
}

func (c *LruCache) addToFrontLocked(n *lruNode) {
	n.next = c.head.next
	n.prev = c.head
	c.head.next.prev = n
	c.head.next = n
}

func (c *LruCache) unlinkLocked(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}
