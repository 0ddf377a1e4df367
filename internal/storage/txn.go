package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TransactionID uniquely identifies a transaction for the lifetime of the
// process. A transaction starts implicitly on its first GetPage and ends
// with a single call to BufferPool.TransactionComplete.
type TransactionID uint64

// LockMode is the mode a transaction requests or holds on a page.
type LockMode int

const (
	// Shared permits concurrent readers.
	Shared LockMode = iota
	// Exclusive permits a single writer and excludes all other holders.
	Exclusive
)

func (m LockMode) String() string {
	if m == Exclusive {
		return "Exclusive"
	}
	return "Shared"
}

// Permission is the caller-facing read/write intent passed to
// BufferPool.GetPage; it maps onto a LockMode.
type Permission int

const (
	// ReadOnly maps to a Shared lock request.
	ReadOnly Permission = iota
	// ReadWrite maps to an Exclusive lock request.
	ReadWrite
)

// LockMode translates a Permission into the LockMode requested from the
// LockManager.
func (p Permission) LockMode() LockMode {
	if p == ReadWrite {
		return Exclusive
	}
	return Shared
}

// TransactionManager hands out monotonically increasing TransactionIDs and,
// for callers that need an opaque, serializable handle, a matching UUID
// ticket. The core itself only ever deals in TransactionID; the ticket
// exists purely as client-facing glue (see cmd/pagecached) for a caller
// that only has the string or wire form of a ticket and needs the
// TransactionID back.
type TransactionManager struct {
	mu       sync.Mutex
	next     atomic.Uint64
	tickets  map[TransactionID]uuid.UUID
	byTicket map[uuid.UUID]TransactionID
}

// NewTransactionManager returns an empty TransactionManager.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{
		tickets:  make(map[TransactionID]uuid.UUID),
		byTicket: make(map[uuid.UUID]TransactionID),
	}
}

// Begin allocates a fresh TransactionID and mints a UUID ticket for it.
func (tm *TransactionManager) Begin() (TransactionID, uuid.UUID) {
	tid := TransactionID(tm.next.Add(1))
	ticket := uuid.New()

	tm.mu.Lock()
	tm.tickets[tid] = ticket
	tm.byTicket[ticket] = tid
	tm.mu.Unlock()

	return tid, ticket
}

// Ticket returns the UUID ticket minted for tid, if any.
func (tm *TransactionManager) Ticket(tid TransactionID) (uuid.UUID, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	t, ok := tm.tickets[tid]
	return t, ok
}

// TicketBytes returns the 16-byte wire form of tid's ticket, if any, for
// callers that need to serialize or log it rather than carry the string
// form.
func (tm *TransactionManager) TicketBytes(tid TransactionID) ([]byte, bool) {
	tm.mu.Lock()
	t, ok := tm.tickets[tid]
	tm.mu.Unlock()
	if !ok {
		return nil, false
	}
	return UUIDToBytes(t), true
}

// Resolve parses a ticket string (e.g. one handed back by a client that
// only stored the UUID's string form) and maps it back to the
// TransactionID it was minted for.
func (tm *TransactionManager) Resolve(ticket string) (TransactionID, error) {
	u, err := ParseUUID(ticket)
	if err != nil {
		return 0, fmt.Errorf("resolve ticket: %w", err)
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tid, ok := tm.byTicket[u]
	if !ok {
		return 0, fmt.Errorf("ticket %s not recognized", ticket)
	}
	return tid, nil
}

// Forget drops the bookkeeping for a completed transaction.
func (tm *TransactionManager) Forget(tid TransactionID) {
	tm.mu.Lock()
	if t, ok := tm.tickets[tid]; ok {
		delete(tm.byTicket, t)
	}
	delete(tm.tickets, tid)
	tm.mu.Unlock()
}
