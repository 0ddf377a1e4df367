// Package storage implements the transactional page cache at the heart of
// the database: a bounded, dirty-aware LRU page cache (LruCache), a
// two-phase page-level lock manager (LockManager), and the BufferPool
// facade that composes them for the executor above.
package storage

import (
	"encoding/binary"
	"fmt"
)

// PageID is the opaque, hashable identity of a page: (table_id,
// page_number). It is a value type; equality and hash are derived from
// both fields, so it can be used directly as a map key.
type PageID struct {
	TableID    int32
	PageNumber int32
}

// NewPageID builds a PageID from a table id and a page number.
func NewPageID(tableID, pageNumber int32) PageID {
	return PageID{TableID: tableID, PageNumber: pageNumber}
}

// String renders the PageID for logs and error messages.
func (p PageID) String() string {
	return fmt.Sprintf("page(table=%d,no=%d)", p.TableID, p.PageNumber)
}

// Serialize encodes the PageID as two big-endian signed 32-bit integers,
// table_id first, page_number second — the canonical wire form.
func (p PageID) Serialize() [8]byte {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.TableID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.PageNumber))
	return buf
}

// DeserializePageID reconstructs a PageID from its canonical serialization.
func DeserializePageID(buf [8]byte) PageID {
	return PageID{
		TableID:    int32(binary.BigEndian.Uint32(buf[0:4])),
		PageNumber: int32(binary.BigEndian.Uint32(buf[4:8])),
	}
}
