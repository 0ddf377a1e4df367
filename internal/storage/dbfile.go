package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
)

// DbFile is the on-disk collaborator behind a table: it resolves a page
// miss into bytes and durably applies tuple mutations. The cache never
// talks to the filesystem directly; every GetPage miss and every
// FlushPages write goes through a DbFile.
type DbFile interface {
	// ID returns the table id this file backs.
	ID() int32

	// ReadPage loads a single page from disk, constructing a fresh Page
	// value with no before-image set.
	ReadPage(pid PageID) (Page, error)

	// WritePage durably persists page's current contents at its own
	// identity. Called by BufferPool.FlushPages at commit, never mid
	// transaction (NO-STEAL).
	WritePage(page Page) error

	// InsertTuple finds or creates room for t on behalf of tid and returns
	// every page it modified, with t's RecordID populated. The caller
	// marks the returned pages dirty.
	InsertTuple(tid TransactionID, t Tuple) ([]Page, error)

	// DeleteTuple removes the tuple at t's record id on behalf of tid and
	// returns every page it modified. The caller marks them dirty.
	DeleteTuple(tid TransactionID, t Tuple) ([]Page, error)

	// NumPages reports how many pages this file currently spans.
	NumPages() int
}

// HeapPage is the concrete Page implementation HeapFile hands to the
// cache: a fixed-size slot array of Tuples plus the dirty/before-image
// bookkeeping the Page interface requires.
type HeapPage struct {
	mu sync.Mutex

	pid   PageID
	desc  TupleDesc
	slots []*Tuple // nil slot = empty

	dirtyTID TransactionID
	isDirty  bool

	before *HeapPage // snapshot taken by SetBeforeImage
}

// NewHeapPage allocates an empty page with slotCount slots.
func NewHeapPage(pid PageID, desc TupleDesc, slotCount int) *HeapPage {
	return &HeapPage{pid: pid, desc: desc, slots: make([]*Tuple, slotCount)}
}

func (p *HeapPage) ID() PageID { return p.pid }

func (p *HeapPage) IsDirty() (TransactionID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isDirty {
		return 0, false
	}
	return p.dirtyTID, true
}

func (p *HeapPage) MarkDirty(dirty bool, tid TransactionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isDirty = dirty
	if dirty {
		p.dirtyTID = tid
	}
}

// BeforeImage returns the snapshot captured by the last SetBeforeImage
// call, or a snapshot of the page's current state if none was taken yet.
func (p *HeapPage) BeforeImage() Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.before == nil {
		return p.cloneLocked()
	}
	return p.before
}

func (p *HeapPage) SetBeforeImage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.before = p.cloneLocked()
}

func (p *HeapPage) cloneLocked() *HeapPage {
	slots := make([]*Tuple, len(p.slots))
	for i, t := range p.slots {
		if t == nil {
			continue
		}
		cp := *t
		slots[i] = &cp
	}
	return &HeapPage{pid: p.pid, desc: p.desc, slots: slots}
}

// Tuples returns a copy of the occupied slots in slot order, each with its
// RecordID populated. Callers use it to scan a page for rows to read or
// delete.
func (p *HeapPage) Tuples() []Tuple {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Tuple, 0, len(p.slots))
	for _, s := range p.slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// insert places t in the first empty slot and returns the slot index, or
// -1 if the page is full.
func (p *HeapPage) insert(t Tuple) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.slots {
		if s == nil {
			cp := t
			cp.RID = RecordID{Pid: p.pid, Slot: i}
			p.slots[i] = &cp
			return i
		}
	}
	return -1
}

func (p *HeapPage) delete(slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot < 0 || slot >= len(p.slots) || p.slots[slot] == nil {
		return ErrRowNotFound
	}
	p.slots[slot] = nil
	return nil
}

// gobPage is the on-disk encoding for a HeapPage: the slot count and just
// the occupied slots (keyed by slot index), not the dirty/before-image
// bookkeeping, which is transient.
type gobPage struct {
	SlotCount int
	Slots     map[int]Tuple
}

func (p *HeapPage) encode() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := gobPage{SlotCount: len(p.slots), Slots: make(map[int]Tuple)}
	for i, t := range p.slots {
		if t != nil {
			g.Slots[i] = *t
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHeapPage(pid PageID, desc TupleDesc, raw []byte) (*HeapPage, error) {
	var g gobPage
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&g); err != nil {
		return nil, err
	}
	slots := make([]*Tuple, g.SlotCount)
	for i, t := range g.Slots {
		t := t
		slots[i] = &t
	}
	return &HeapPage{pid: pid, desc: desc, slots: slots}, nil
}

// HeapFile is a single-table, page-granular, GOB-encoded disk file: one
// physical file per table, a fixed slot count per page, pages addressed
// by their offset in the file. It is the reference DbFile implementation;
// it favors simplicity and readability over real on-disk compaction.
type HeapFile struct {
	mu sync.Mutex

	tableID   int32
	desc      TupleDesc
	slotCount int
	path      string
	pages     [][]byte // gob-encoded page bodies, index = page number
}

// NewHeapFile opens (or creates) the backing file at path for tableID.
// slotCount bounds how many tuples fit on one page; zero or negative
// derives it from the configured page size and the row width. An existing
// file's manifest wins over both.
func NewHeapFile(path string, tableID int32, desc TupleDesc, slotCount int) (*HeapFile, error) {
	if slotCount <= 0 {
		slotCount = PageSize() / desc.Size()
		if slotCount < 1 {
			slotCount = 1
		}
	}
	hf := &HeapFile{tableID: tableID, desc: desc, slotCount: slotCount, path: path}
	if raw, err := os.ReadFile(path); err == nil {
		if err := hf.loadManifest(raw); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, &IoError{Op: "open", Err: err}
	}
	return hf, nil
}

func (f *HeapFile) ID() int32 { return f.tableID }

func (f *HeapFile) NumPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pages)
}

func (f *HeapFile) ReadPage(pid PageID) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pid.TableID != f.tableID {
		return nil, fmt.Errorf("table mismatch: file serves table %d, got %s", f.tableID, pid)
	}
	if int(pid.PageNumber) < 0 || int(pid.PageNumber) >= len(f.pages) {
		return nil, fmt.Errorf("read %s: %w", pid, ErrPageNotFound)
	}
	raw := f.pages[pid.PageNumber]
	if len(raw) == 0 {
		return NewHeapPage(pid, f.desc, f.slotCount), nil
	}
	page, err := decodeHeapPage(pid, f.desc, raw)
	if err != nil {
		return nil, &IoError{Op: "read", Pid: pid, Err: err}
	}
	return page, nil
}

func (f *HeapFile) WritePage(page Page) error {
	hp, ok := page.(*HeapPage)
	if !ok {
		return fmt.Errorf("heap file received non-heap page %T", page)
	}
	raw, err := hp.encode()
	if err != nil {
		return &IoError{Op: "write", Pid: page.ID(), Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	n := int(page.ID().PageNumber)
	for len(f.pages) <= n {
		f.pages = append(f.pages, nil)
	}
	f.pages[n] = raw
	return f.persistLocked()
}

// InsertTuple scans existing pages for room and, if every existing page is
// full, places t on a fresh in-memory page numbered NumPages(). The file
// itself is not extended here; the new page reaches disk only when it is
// passed to WritePage. The dirtying transaction is recorded by the caller,
// not here.
func (f *HeapFile) InsertTuple(_ TransactionID, t Tuple) ([]Page, error) {
	f.mu.Lock()
	n := len(f.pages)
	f.mu.Unlock()

	for i := 0; i < n; i++ {
		pid := NewPageID(f.tableID, int32(i))
		page, err := f.ReadPage(pid)
		if err != nil {
			return nil, err
		}
		hp := page.(*HeapPage)
		if hp.insert(t) >= 0 {
			return []Page{hp}, nil
		}
	}

	pid := NewPageID(f.tableID, int32(n))
	hp := NewHeapPage(pid, f.desc, f.slotCount)
	if hp.insert(t) < 0 {
		return nil, fmt.Errorf("new heap page has zero slots")
	}
	return []Page{hp}, nil
}

func (f *HeapFile) DeleteTuple(_ TransactionID, t Tuple) ([]Page, error) {
	page, err := f.ReadPage(t.RID.Pid)
	if err != nil {
		return nil, err
	}
	hp := page.(*HeapPage)
	if err := hp.delete(t.RID.Slot); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

// manifest is the whole-file envelope persisted to disk: the slot count
// (so a reopen knows page layout) and every page's raw bytes.
type manifest struct {
	SlotCount int
	Pages     [][]byte
}

func (f *HeapFile) loadManifest(raw []byte) error {
	var m manifest
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return &IoError{Op: "load", Err: err}
	}
	f.slotCount = m.SlotCount
	f.pages = m.Pages
	return nil
}

// persistLocked rewrites the whole file. Callers must hold f.mu. A real
// storage engine would append or mmap; this favors a reference
// implementation's clarity over write amplification.
func (f *HeapFile) persistLocked() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(manifest{SlotCount: f.slotCount, Pages: f.pages}); err != nil {
		return &IoError{Op: "persist", Err: err}
	}
	if err := os.WriteFile(f.path, buf.Bytes(), 0o644); err != nil {
		return &IoError{Op: "persist", Err: err}
	}
	return nil
}
