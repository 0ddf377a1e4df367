package storage

import (
	"github.com/google/uuid"
)

// ParseUUID parses a client-supplied ticket string back into a uuid.UUID.
// TransactionManager.Resolve uses it to map a ticket handed back by a
// caller (e.g. over the wire, or replayed from a log line) to the
// TransactionID it was minted for.
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// UUIDToBytes returns the 16-byte wire form of a ticket, for callers that
// need to serialize it (logging, framing) rather than carry the string
// form. TransactionManager.TicketBytes is the only caller.
func UUIDToBytes(u uuid.UUID) []byte {
	return u[:]
}
