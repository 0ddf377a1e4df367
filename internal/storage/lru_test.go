package storage

import "testing"

// fakePage is a minimal Page implementation for exercising LruCache in
// isolation, without a real DbFile behind it.
type fakePage struct {
	pid     PageID
	dirty   bool
	tid     TransactionID
	before  *fakePage
	payload int
}

func newFakePage(pid PageID) *fakePage {
	return &fakePage{pid: pid}
}

func (p *fakePage) ID() PageID { return p.pid }

func (p *fakePage) IsDirty() (TransactionID, bool) {
	if !p.dirty {
		return 0, false
	}
	return p.tid, true
}

func (p *fakePage) MarkDirty(dirty bool, tid TransactionID) {
	p.dirty = dirty
	if dirty {
		p.tid = tid
	}
}

func (p *fakePage) BeforeImage() Page {
	if p.before == nil {
		cp := *p
		return &cp
	}
	return p.before
}

func (p *fakePage) SetBeforeImage() {
	cp := *p
	p.before = &cp
}

func TestLruCacheContainsAndGet(t *testing.T) {
	c := NewLruCache(3)
	pid := NewPageID(1, 1)

	if c.Contains(pid) {
		t.Fatal("expected empty cache to not contain pid")
	}
	if _, ok := c.Get(pid); ok {
		t.Fatal("expected Get on empty cache to miss")
	}

	if err := c.Put(pid, newFakePage(pid)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c.Contains(pid) {
		t.Fatal("expected cache to contain pid after Put")
	}
	if _, ok := c.Get(pid); !ok {
		t.Fatal("expected Get to hit after Put")
	}
}

// capacity=3; get pages A,B,C then A; evict candidate must now be B.
func TestLruCacheRecency(t *testing.T) {
	c := NewLruCache(3)
	a, b, cc := NewPageID(1, 1), NewPageID(1, 2), NewPageID(1, 3)

	for _, pid := range []PageID{a, b, cc} {
		if err := c.Put(pid, newFakePage(pid)); err != nil {
			t.Fatalf("Put(%s): %v", pid, err)
		}
	}
	if _, ok := c.Get(a); !ok {
		t.Fatalf("expected to find %s", a)
	}

	d := NewPageID(1, 4)
	if err := c.Put(d, newFakePage(d)); err != nil {
		t.Fatalf("Put(%s): %v", d, err)
	}

	if c.Contains(b) {
		t.Fatal("expected B to be evicted as the least recently used page")
	}
	for _, pid := range []PageID{a, cc, d} {
		if !c.Contains(pid) {
			t.Fatalf("expected %s to remain cached", pid)
		}
	}
}

// capacity=2; T1 dirties A; T2 reads B, then T2 requests fresh page C.
// The cache evicts B (clean) even though A is older.
func TestLruCacheDirtyEvictionSkip(t *testing.T) {
	c := NewLruCache(2)
	a, b, cc := NewPageID(1, 1), NewPageID(1, 2), NewPageID(1, 3)

	pageA := newFakePage(a)
	pageA.MarkDirty(true, 1)
	if err := c.Put(a, pageA); err != nil {
		t.Fatalf("Put(A): %v", err)
	}
	if err := c.Put(b, newFakePage(b)); err != nil {
		t.Fatalf("Put(B): %v", err)
	}

	if err := c.Put(cc, newFakePage(cc)); err != nil {
		t.Fatalf("Put(C): %v", err)
	}

	if !c.Contains(a) {
		t.Fatal("expected dirty page A to survive eviction")
	}
	if c.Contains(b) {
		t.Fatal("expected clean page B to be evicted instead of dirty A")
	}
	if !c.Contains(cc) {
		t.Fatal("expected newly inserted page C to be cached")
	}
}

// capacity=2; T1 dirties A and B; a third page fails with NoEvictableError.
func TestLruCacheAllDirtyFails(t *testing.T) {
	c := NewLruCache(2)
	a, b, cc := NewPageID(1, 1), NewPageID(1, 2), NewPageID(1, 3)

	pageA, pageB := newFakePage(a), newFakePage(b)
	pageA.MarkDirty(true, 1)
	pageB.MarkDirty(true, 1)
	if err := c.Put(a, pageA); err != nil {
		t.Fatalf("Put(A): %v", err)
	}
	if err := c.Put(b, pageB); err != nil {
		t.Fatalf("Put(B): %v", err)
	}

	err := c.Put(cc, newFakePage(cc))
	if err == nil {
		t.Fatal("expected NoEvictableError when every cached page is dirty")
	}
	if _, ok := err.(*NoEvictableError); !ok {
		t.Fatalf("expected NoEvictableError, got %T: %v", err, err)
	}
	if c.Contains(cc) {
		t.Fatal("expected failed Put to leave the cache unchanged")
	}
	if c.Len() != 2 {
		t.Fatalf("expected cache size to remain 2, got %d", c.Len())
	}
}

func TestLruCacheRemove(t *testing.T) {
	c := NewLruCache(2)
	pid := NewPageID(1, 1)
	c.Remove(pid) // no-op on empty cache, must not panic

	if err := c.Put(pid, newFakePage(pid)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	c.Remove(pid)
	if c.Contains(pid) {
		t.Fatal("expected Remove to delete the entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Remove, got size %d", c.Len())
	}
}

func TestLruCachePutReplacesExisting(t *testing.T) {
	c := NewLruCache(2)
	pid := NewPageID(1, 1)

	first := newFakePage(pid)
	first.payload = 1
	if err := c.Put(pid, first); err != nil {
		t.Fatalf("Put: %v", err)
	}

	second := newFakePage(pid)
	second.payload = 2
	if err := c.Put(pid, second); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	got, ok := c.Get(pid)
	if !ok {
		t.Fatal("expected page to still be present")
	}
	if got.(*fakePage).payload != 2 {
		t.Fatalf("expected replaced payload 2, got %d", got.(*fakePage).payload)
	}
	if c.Len() != 1 {
		t.Fatalf("expected size to stay 1 after replace, got %d", c.Len())
	}
}

func TestLruCacheEntries(t *testing.T) {
	c := NewLruCache(3)
	ids := []PageID{NewPageID(1, 1), NewPageID(1, 2), NewPageID(1, 3)}
	for _, pid := range ids {
		if err := c.Put(pid, newFakePage(pid)); err != nil {
			t.Fatalf("Put(%s): %v", pid, err)
		}
	}

	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	seen := map[PageID]bool{}
	for _, e := range entries {
		seen[e.ID] = true
	}
	for _, pid := range ids {
		if !seen[pid] {
			t.Fatalf("expected entries to include %s", pid)
		}
	}
}

func TestLruCacheSizeNeverExceedsCapacity(t *testing.T) {
	c := NewLruCache(2)
	for i := 0; i < 10; i++ {
		pid := NewPageID(1, int32(i))
		if err := c.Put(pid, newFakePage(pid)); err != nil {
			t.Fatalf("Put(%s): %v", pid, err)
		}
		if c.Len() > c.Capacity() {
			t.Fatalf("cache size %d exceeded capacity %d", c.Len(), c.Capacity())
		}
	}
}
