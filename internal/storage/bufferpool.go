package storage

import (
	"errors"
	"sync"
)

// DefaultNumPages is the buffer pool's default capacity, in pages.
const DefaultNumPages = 50

// DefaultPageSize is the nominal page size in bytes. The core never
// interprets page bytes itself; this constant exists for external
// collaborators (DbFile implementations) and is overridable only for
// tests via SetPageSizeForTest.
const DefaultPageSize = 4096

var pageSize = DefaultPageSize
var pageSizeMu sync.Mutex

// PageSize returns the page size currently configured for tests. It is
// not read by the core itself, which is page-content-agnostic; it exists
// for external collaborators that need to size their own buffers.
func PageSize() int {
	pageSizeMu.Lock()
	defer pageSizeMu.Unlock()
	return pageSize
}

// SetPageSizeForTest overrides the process-wide page size. Test-only:
// production code should size a BufferPool via its constructor instead of
// mutating shared state.
func SetPageSizeForTest(n int) {
	pageSizeMu.Lock()
	pageSize = n
	pageSizeMu.Unlock()
}

// ResetPageSize restores the default page size after a test override.
func ResetPageSize() {
	SetPageSizeForTest(DefaultPageSize)
}

// BufferPoolConfig configures a BufferPool's capacity and retry policy.
type BufferPoolConfig struct {
	// NumPages bounds the LruCache's capacity. Zero selects DefaultNumPages.
	NumPages int
	// Lock configures the LockManager's retry interval/budget. Zero
	// values select the stock defaults.
	Lock LockManagerConfig
}

// DefaultBufferPoolConfig returns NumPages=DefaultNumPages and the default
// lock manager configuration.
func DefaultBufferPoolConfig() BufferPoolConfig {
	return BufferPoolConfig{NumPages: DefaultNumPages, Lock: DefaultLockManagerConfig()}
}

// BufferPool is the sole entry point executors use to read or mutate
// pages. It composes a LockManager and an LruCache with transaction
// semantics: acquisition, fetch-or-load, dirty marking, commit/abort, and
// flush.
type BufferPool struct {
	mu sync.Mutex

	cache   *LruCache
	locks   *LockManager
	catalog *CatalogManager
	log     LogFile

	active map[TransactionID]struct{}
}

// NewBufferPool builds a BufferPool backed by catalog (for page-miss
// loads) and log (for the commit-time write-ahead hook).
func NewBufferPool(cfg BufferPoolConfig, catalog *CatalogManager, log LogFile) *BufferPool {
	if cfg.NumPages <= 0 {
		cfg.NumPages = DefaultNumPages
	}
	return &BufferPool{
		cache:   NewLruCache(cfg.NumPages),
		locks:   NewLockManager(cfg.Lock),
		catalog: catalog,
		log:     log,
		active:  make(map[TransactionID]struct{}),
	}
}

// ActiveTransactionCount reports how many transactions have an open
// get_page/insert_tuple/delete_tuple outstanding (have not yet called
// TransactionComplete). CheckpointScheduler uses this to decide whether
// FlushAllPages is safe to run.
func (bp *BufferPool) ActiveTransactionCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.active)
}

func (bp *BufferPool) markActive(tid TransactionID) {
	bp.mu.Lock()
	bp.active[tid] = struct{}{}
	bp.mu.Unlock()
}

func (bp *BufferPool) clearActive(tid TransactionID) {
	bp.mu.Lock()
	delete(bp.active, tid)
	bp.mu.Unlock()
}

// GetPage acquires the lock implied by perm, loading the page from its
// DbFile on a cache miss, and returns the (now recency-bumped) cached
// Page. The lock is acquired before any cache mutation, so the caller
// never holds the BufferPool's bookkeeping across a LockManager wait.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageID, perm Permission) (Page, error) {
	bp.markActive(tid)

	requested := perm.LockMode()
	if !bp.locks.Acquire(pid, tid, requested, 0) {
		return nil, &TransactionAbortedError{TID: tid, Pid: pid}
	}

	page, ok := bp.cache.Get(pid)
	if !ok {
		file, err := bp.catalog.GetFile(pid.TableID)
		if err != nil {
			return nil, err
		}
		page, err = file.ReadPage(pid)
		if err != nil {
			return nil, err
		}
		if err := bp.cache.Put(pid, page); err != nil {
			// NoEvictableError: the lock has already been granted above and
			// is not released here — the caller is expected to call
			// TransactionComplete(tid, false) to unwind it.
			return nil, err
		}
	}
	return page, nil
}

// InsertTuple delegates to the table's DbFile and marks every page it
// touched as dirty.
func (bp *BufferPool) InsertTuple(tid TransactionID, tableID int32, t Tuple) error {
	bp.markActive(tid)
	file, err := bp.catalog.GetFile(tableID)
	if err != nil {
		return err
	}
	pages, err := file.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.updateBufferPool(pages, tid)
}

// DeleteTuple resolves the table from the tuple's record id and delegates
// to its DbFile, marking every page it touched as dirty.
func (bp *BufferPool) DeleteTuple(tid TransactionID, t Tuple) error {
	bp.markActive(tid)
	file, err := bp.catalog.GetFile(t.RID.Pid.TableID)
	if err != nil {
		return err
	}
	pages, err := file.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.updateBufferPool(pages, tid)
}

func (bp *BufferPool) updateBufferPool(pages []Page, tid TransactionID) error {
	for _, p := range pages {
		p.MarkDirty(true, tid)
		if err := bp.cache.Put(p.ID(), p); err != nil {
			return err
		}
	}
	return nil
}

// TransactionComplete ends tid: on commit it flushes tid's dirty pages
// (write-ahead logged), on abort it rolls them back to their on-disk
// contents. Either way, every lock tid holds is released.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	var err error
	if commit {
		err = bp.FlushPages(tid)
	} else {
		err = bp.Rollback(tid)
	}
	bp.locks.ReleaseAll(tid)
	bp.clearActive(tid)
	return err
}

// FlushPages writes every page tid dirtied to disk, write-ahead logging
// each one first. The dirty marker is not cleared: under NO-STEAL/
// NO-FORCE, commit is the only durable point, and a subsequent read still
// needs to know which transaction last wrote the page.
func (bp *BufferPool) FlushPages(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, e := range bp.cache.Entries() {
		owner, dirty := e.Page.IsDirty()
		if !dirty || owner != tid {
			continue
		}
		if err := bp.flushOneLocked(e.Page); err != nil {
			return err
		}
	}
	return nil
}

// FlushAllPages flushes every dirty page regardless of owning
// transaction. It is test/recovery-only: invoked mid-transaction it
// violates NO-STEAL. CheckpointScheduler is the only production caller,
// and only when ActiveTransactionCount() == 0.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, e := range bp.cache.Entries() {
		if _, dirty := e.Page.IsDirty(); !dirty {
			continue
		}
		if err := bp.flushOneLocked(e.Page); err != nil {
			return err
		}
	}
	return nil
}

func (bp *BufferPool) flushOneLocked(page Page) error {
	owner, _ := page.IsDirty()
	before := page.BeforeImage()
	page.SetBeforeImage()

	if _, err := bp.log.LogWrite(owner, before, page); err != nil {
		return err
	}

	file, err := bp.catalog.GetFile(page.ID().TableID)
	if err != nil {
		return err
	}
	return file.WritePage(page)
}

// Rollback replaces every page tid dirtied with a fresh on-disk read,
// discarding in-memory modifications. Each replaced entry is clean. A page
// that tid allocated but that was never durably persisted (no prior disk
// image exists) has nothing to revert to; it is simply dropped from the
// cache instead, so it does not linger as a stale dirty entry.
func (bp *BufferPool) Rollback(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, e := range bp.cache.Entries() {
		owner, dirty := e.Page.IsDirty()
		if !dirty || owner != tid {
			continue
		}
		file, err := bp.catalog.GetFile(e.ID.TableID)
		if err != nil {
			return err
		}
		fresh, err := file.ReadPage(e.ID)
		if err != nil {
			if errors.Is(err, ErrPageNotFound) {
				bp.cache.Remove(e.ID)
				continue
			}
			return err
		}
		bp.cache.Remove(e.ID)
		if err := bp.cache.Put(e.ID, fresh); err != nil {
			return err
		}
	}
	return nil
}

// UnsafeRelease releases tid's lock on pid without any safety check. The
// caller assumes responsibility for isolation; this exists to support
// specialized tree operations (e.g. releasing a parent latch early during
// B+-tree descent).
func (bp *BufferPool) UnsafeRelease(tid TransactionID, pid PageID) {
	bp.locks.Release(tid, pid)
}

// RemovePage evicts pid's cache entry without flushing it. Used when a
// page is freed for reuse or when a rolled-back page must not linger.
func (bp *BufferPool) RemovePage(pid PageID) {
	bp.cache.Remove(pid)
}

// BufferPoolStats reports cache and lock bookkeeping in one snapshot, for
// logging and the CLI demo.
type BufferPoolStats struct {
	Cache              LruStats
	HeldPages          int
	ActiveTransactions int
}

// Stats returns a snapshot of the pool's internal counters.
func (bp *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		Cache:              bp.cache.Stats(),
		HeldPages:          bp.locks.HolderCount(),
		ActiveTransactions: bp.ActiveTransactionCount(),
	}
}
