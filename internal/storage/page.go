package storage

// Page is the external contract the cache requires of every in-memory page.
// The cache never interprets page contents; it only needs identity, the
// dirty marker, and a before-image anchor for undo/rollback.
type Page interface {
	// ID returns this page's identity.
	ID() PageID

	// IsDirty returns the transaction that last dirtied this page, or
	// (0, false) if the page is clean.
	IsDirty() (TransactionID, bool)

	// MarkDirty sets or clears the dirty owner. Clearing (dirty=false)
	// drops the owner regardless of which transaction calls it.
	MarkDirty(dirty bool, tid TransactionID)

	// BeforeImage returns the snapshot captured at the last
	// SetBeforeImage call — the redo/undo anchor.
	BeforeImage() Page

	// SetBeforeImage captures the page's current contents as the new
	// before-image anchor.
	SetBeforeImage()
}
