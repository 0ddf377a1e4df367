package storage

import (
	"sync"
	"time"
)

// defaultRetryInterval is the default bounded wait before an acquisition retries.
const defaultRetryInterval = 100 * time.Millisecond

// defaultRetryMax is the default number of blocking retries before Acquire gives
// up and reports failure to the caller.
const defaultRetryMax = 3

// PageLock is a single (transaction, page, mode) holder entry in the
// LockManager's per-page holder table.
type PageLock struct {
	TID  TransactionID
	Pid  PageID
	Mode LockMode
}

// LockManagerConfig configures retry/backoff behavior. NewLockManager
// replaces a zero (or negative) field with its DefaultLockManagerConfig
// value, so the zero value selects the stock policy.
type LockManagerConfig struct {
	// RetryInterval is how long Acquire suspends between attempts.
	RetryInterval time.Duration
	// RetryMax is how many blocking retries Acquire allows before
	// reporting failure (a transaction-abort signal to the caller).
	RetryMax int
}

// DefaultLockManagerConfig returns the stock policy: ~100ms retry
// interval, 3 retries.
func DefaultLockManagerConfig() LockManagerConfig {
	return LockManagerConfig{
		RetryInterval: defaultRetryInterval,
		RetryMax:      defaultRetryMax,
	}
}

// LockManager implements per-page two-phase locking with shared/exclusive
// modes, upgrade, and bounded-retry blocking. It replaces explicit
// deadlock detection with time-bounded livelock avoidance: any cycle is
// broken by the first transaction whose retry budget elapses.
type LockManager struct {
	mu      sync.Mutex
	cond    *sync.Cond
	holders map[PageID]map[TransactionID]*PageLock
	cfg     LockManagerConfig
}

// NewLockManager creates a LockManager with the given configuration.
func NewLockManager(cfg LockManagerConfig) *LockManager {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}
	lm := &LockManager{
		holders: make(map[PageID]map[TransactionID]*PageLock),
		cfg:     cfg,
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

// Holds reports whether tid appears in pid's holder table, in any mode.
func (lm *LockManager) Holds(tid TransactionID, pid PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	holders := lm.holders[pid]
	if holders == nil {
		return false
	}
	_, ok := holders[tid]
	return ok
}

// HeldMode returns the mode tid currently holds on pid, if any.
func (lm *LockManager) HeldMode(tid TransactionID, pid PageID) (LockMode, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	holders := lm.holders[pid]
	if holders == nil {
		return 0, false
	}
	l, ok := holders[tid]
	if !ok {
		return 0, false
	}
	return l.Mode, true
}

// Acquire attempts to grant tid the requested lock mode on pid. It returns
// true once granted, or false once the retry budget (starting at `retry`,
// normally 0) is exhausted. Acquire may suspend the caller for bounded
// intervals while a conflicting holder releases.
//
// Decision table (holders = current holder table for pid, self = tid's
// own entry if present):
//
//	no entry                                          -> create, grant
//	self absent, requested=Exclusive                   -> wait, retry
//	self absent, requested=Shared, all holders Shared  -> grant
//	self absent, requested=Shared, exclusive present   -> wait, retry
//	self=Exclusive                                     -> grant (no-op)
//	self=Shared, requested=Shared                      -> grant (idempotent)
//	self=Shared, requested=Exclusive, sole holder      -> upgrade, grant
//	self=Shared, requested=Exclusive, other holders    -> wait, retry
func (lm *LockManager) Acquire(pid PageID, tid TransactionID, requested LockMode, retry int) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.acquireLocked(pid, tid, requested, retry)
}

func (lm *LockManager) acquireLocked(pid PageID, tid TransactionID, requested LockMode, retry int) bool {
	holders := lm.holders[pid]
	if holders == nil {
		lm.holders[pid] = map[TransactionID]*PageLock{
			tid: {TID: tid, Pid: pid, Mode: requested},
		}
		return true
	}

	if self, ok := holders[tid]; ok {
		switch {
		case self.Mode == Exclusive:
			return true
		case requested == Shared:
			return true
		case len(holders) == 1:
			// Upgrade: this happens under the monitor with no intervening
			// suspension, so no other transaction observes an empty slot —
			// model it as a single atomic transition.
			self.Mode = Exclusive
			return true
		}
	} else if requested == Shared {
		allShared := true
		for _, h := range holders {
			if h.Mode == Exclusive {
				allShared = false
				break
			}
		}
		if allShared {
			holders[tid] = &PageLock{TID: tid, Pid: pid, Mode: Shared}
			return true
		}
	}

	if retry >= lm.cfg.RetryMax {
		return false
	}
	lm.waitLocked()
	return lm.acquireLocked(pid, tid, requested, retry+1)
}

// waitLocked suspends the caller for the configured retry interval. It
// must be called with lm.mu held; it releases the lock for the duration
// of the wait and reacquires it before returning. A release anywhere
// broadcasts immediately, so the waiter can wake early; a timer
// broadcasts unconditionally after the interval as a fallback. Lost and
// spurious wakeups are harmless: the caller always re-evaluates the
// decision table against current state.
func (lm *LockManager) waitLocked() {
	timer := time.AfterFunc(lm.cfg.RetryInterval, func() {
		lm.mu.Lock()
		lm.cond.Broadcast()
		lm.mu.Unlock()
	})
	lm.cond.Wait()
	timer.Stop()
}

// Release removes tid from pid's holder table; if the table empties, the
// page entry is removed from the lock map. All waiters are broadcast so
// they re-evaluate the decision table.
func (lm *LockManager) Release(tid TransactionID, pid PageID) {
	lm.mu.Lock()
	lm.releaseLocked(tid, pid)
	lm.cond.Broadcast()
	lm.mu.Unlock()
}

func (lm *LockManager) releaseLocked(tid TransactionID, pid PageID) {
	holders := lm.holders[pid]
	if holders == nil {
		return
	}
	delete(holders, tid)
	if len(holders) == 0 {
		delete(lm.holders, pid)
	}
}

// ReleaseAll releases every lock tid holds, across all pages.
func (lm *LockManager) ReleaseAll(tid TransactionID) {
	lm.mu.Lock()
	for pid, holders := range lm.holders {
		if _, ok := holders[tid]; ok {
			delete(holders, tid)
			if len(holders) == 0 {
				delete(lm.holders, pid)
			}
		}
	}
	lm.cond.Broadcast()
	lm.mu.Unlock()
}

// HolderCount returns the number of pages with at least one live lock —
// used by tests and reported as HeldPages by BufferPool.Stats.
func (lm *LockManager) HolderCount() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.holders)
}
