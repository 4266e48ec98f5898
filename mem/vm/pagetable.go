// Package vm holds the hardware-facing side of virtual memory: process IDs,
// the page table that translates virtual pages to physical frames, and the
// description of a page fault.
package vm

import (
	"container/list"
	"sync"
)

// PID stands for Process ID.
type PID uint32

// A PTE is an entry in the page table. It translates one virtual page of a
// process to a physical page and carries the bits the hardware maintains.
type PTE struct {
	PID      PID
	VAddr    uint64
	PAddr    uint64
	Writable bool
	Accessed bool
	Dirty    bool
}

// A PageTable holds the translations of all the processes.
type PageTable interface {
	// Install adds a translation. It returns false if the virtual page of
	// the process is already mapped.
	Install(pid PID, vAddr, pAddr uint64, writable bool) bool

	// Find returns the translation of the page that contains the address.
	Find(pid PID, vAddr uint64) (PTE, bool)

	// Clear removes the translation of the page that contains the address.
	// Clearing an unmapped page has no effect.
	Clear(pid PID, vAddr uint64)

	IsDirty(pid PID, vAddr uint64) bool
	SetDirty(pid PID, vAddr uint64, dirty bool)
	IsAccessed(pid PID, vAddr uint64) bool
	SetAccessed(pid PID, vAddr uint64, accessed bool)

	// Entries lists the translations of a process in installation order.
	Entries(pid PID) []PTE

	// RemoveProcess drops every translation of the process.
	RemoveProcess(pid PID)
}

// NewPageTable creates a new PageTable.
func NewPageTable(log2PageSize uint64) PageTable {
	return &pageTableImpl{
		log2PageSize: log2PageSize,
		tables:       make(map[PID]*processTable),
	}
}

type pageTableImpl struct {
	sync.Mutex
	log2PageSize uint64
	tables       map[PID]*processTable
}

func (pt *pageTableImpl) getTable(pid PID) *processTable {
	pt.Lock()
	defer pt.Unlock()

	table, found := pt.tables[pid]
	if !found {
		table = &processTable{
			entries:      list.New(),
			entriesTable: make(map[uint64]*list.Element),
		}
		pt.tables[pid] = table
	}

	return table
}

func (pt *pageTableImpl) alignToPage(addr uint64) uint64 {
	return (addr >> pt.log2PageSize) << pt.log2PageSize
}

func (pt *pageTableImpl) Install(
	pid PID,
	vAddr, pAddr uint64,
	writable bool,
) bool {
	table := pt.getTable(pid)

	return table.insert(PTE{
		PID:      pid,
		VAddr:    pt.alignToPage(vAddr),
		PAddr:    pt.alignToPage(pAddr),
		Writable: writable,
	})
}

func (pt *pageTableImpl) Find(pid PID, vAddr uint64) (PTE, bool) {
	table := pt.getTable(pid)
	return table.find(pt.alignToPage(vAddr))
}

func (pt *pageTableImpl) Clear(pid PID, vAddr uint64) {
	table := pt.getTable(pid)
	table.remove(pt.alignToPage(vAddr))
}

func (pt *pageTableImpl) IsDirty(pid PID, vAddr uint64) bool {
	pte, found := pt.Find(pid, vAddr)
	return found && pte.Dirty
}

func (pt *pageTableImpl) SetDirty(pid PID, vAddr uint64, dirty bool) {
	table := pt.getTable(pid)
	table.update(pt.alignToPage(vAddr), func(pte *PTE) {
		pte.Dirty = dirty
	})
}

func (pt *pageTableImpl) IsAccessed(pid PID, vAddr uint64) bool {
	pte, found := pt.Find(pid, vAddr)
	return found && pte.Accessed
}

func (pt *pageTableImpl) SetAccessed(pid PID, vAddr uint64, accessed bool) {
	table := pt.getTable(pid)
	table.update(pt.alignToPage(vAddr), func(pte *PTE) {
		pte.Accessed = accessed
	})
}

func (pt *pageTableImpl) Entries(pid PID) []PTE {
	table := pt.getTable(pid)
	return table.list()
}

func (pt *pageTableImpl) RemoveProcess(pid PID) {
	pt.Lock()
	defer pt.Unlock()

	delete(pt.tables, pid)
}

type processTable struct {
	sync.Mutex
	entries      *list.List
	entriesTable map[uint64]*list.Element
}

func (t *processTable) insert(pte PTE) bool {
	t.Lock()
	defer t.Unlock()

	if _, found := t.entriesTable[pte.VAddr]; found {
		return false
	}

	elem := t.entries.PushBack(pte)
	t.entriesTable[pte.VAddr] = elem

	return true
}

func (t *processTable) remove(vAddr uint64) {
	t.Lock()
	defer t.Unlock()

	elem, found := t.entriesTable[vAddr]
	if !found {
		return
	}

	t.entries.Remove(elem)
	delete(t.entriesTable, vAddr)
}

// update applies f to the entry at vAddr. Bits of unmapped pages are not
// tracked, so updating an unmapped page has no effect.
func (t *processTable) update(vAddr uint64, f func(pte *PTE)) {
	t.Lock()
	defer t.Unlock()

	elem, found := t.entriesTable[vAddr]
	if !found {
		return
	}

	pte := elem.Value.(PTE)
	f(&pte)
	elem.Value = pte
}

func (t *processTable) find(vAddr uint64) (PTE, bool) {
	t.Lock()
	defer t.Unlock()

	elem, found := t.entriesTable[vAddr]
	if found {
		return elem.Value.(PTE), true
	}

	return PTE{}, false
}

func (t *processTable) list() []PTE {
	t.Lock()
	defer t.Unlock()

	ptes := make([]PTE, 0, t.entries.Len())
	for e := t.entries.Front(); e != nil; e = e.Next() {
		ptes = append(ptes, e.Value.(PTE))
	}

	return ptes
}
