package storage

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestTransactionManagerBeginAssignsDistinctIDs(t *testing.T) {
	tm := NewTransactionManager()

	tid1, ticket1 := tm.Begin()
	tid2, ticket2 := tm.Begin()

	if tid1 == tid2 {
		t.Fatalf("expected distinct transaction ids, got %d twice", tid1)
	}
	if ticket1 == ticket2 {
		t.Fatal("expected distinct UUID tickets")
	}

	got, ok := tm.Ticket(tid1)
	if !ok || got != ticket1 {
		t.Fatalf("expected Ticket(%d) = %v, got %v (ok=%v)", tid1, ticket1, got, ok)
	}
}

func TestTransactionManagerForget(t *testing.T) {
	tm := NewTransactionManager()
	tid, ticket := tm.Begin()

	tm.Forget(tid)
	if _, ok := tm.Ticket(tid); ok {
		t.Fatal("expected Forget to drop the ticket")
	}
	if _, err := tm.Resolve(ticket.String()); err == nil {
		t.Fatal("expected Resolve to fail for a forgotten ticket")
	}
}

func TestTransactionManagerResolveRoundTrips(t *testing.T) {
	tm := NewTransactionManager()
	tid, ticket := tm.Begin()

	got, err := tm.Resolve(ticket.String())
	if err != nil {
		t.Fatalf("Resolve(%s): %v", ticket, err)
	}
	if got != tid {
		t.Fatalf("Resolve(%s) = %d, want %d", ticket, got, tid)
	}

	if _, err := tm.Resolve("not-a-uuid"); err == nil {
		t.Fatal("expected Resolve to reject a malformed ticket")
	}
	if _, err := tm.Resolve(uuid.New().String()); err == nil {
		t.Fatal("expected Resolve to reject an unminted ticket")
	}
}

func TestTransactionManagerTicketBytes(t *testing.T) {
	tm := NewTransactionManager()
	tid, ticket := tm.Begin()

	b, ok := tm.TicketBytes(tid)
	if !ok {
		t.Fatalf("expected TicketBytes(%d) to be found", tid)
	}
	if len(b) != 16 {
		t.Fatalf("expected a 16-byte UUID, got %d bytes", len(b))
	}
	if !bytes.Equal(b, UUIDToBytes(ticket)) {
		t.Fatal("TicketBytes did not match UUIDToBytes(ticket)")
	}

	if _, ok := tm.TicketBytes(TransactionID(999)); ok {
		t.Fatal("expected TicketBytes for an unknown tid to report not found")
	}
}

func TestPermissionLockMode(t *testing.T) {
	if ReadOnly.LockMode() != Shared {
		t.Fatalf("expected ReadOnly to map to Shared, got %v", ReadOnly.LockMode())
	}
	if ReadWrite.LockMode() != Exclusive {
		t.Fatalf("expected ReadWrite to map to Exclusive, got %v", ReadWrite.LockMode())
	}
}

func TestLockModeString(t *testing.T) {
	if Shared.String() != "Shared" {
		t.Fatalf("expected Shared.String() == \"Shared\", got %q", Shared.String())
	}
	if Exclusive.String() != "Exclusive" {
		t.Fatalf("expected Exclusive.String() == \"Exclusive\", got %q", Exclusive.String())
	}
}
