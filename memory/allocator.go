package memory

import (
	"fmt"
	"sync"
)

// An Allocator hands out fixed-size physical pages from a contiguous range of
// a storage. It is the user pool of the simulated machine.
type Allocator struct {
	lock      sync.Mutex
	base      uint64
	pageSize  uint64
	numFrames uint64
	free      []uint64
	inUse     map[uint64]bool
}

// NewAllocator creates an allocator that owns numFrames pages of pageSize
// bytes starting at base.
func NewAllocator(base, pageSize, numFrames uint64) *Allocator {
	if pageSize == 0 || base%pageSize != 0 {
		panic("base must be aligned to a non-zero page size")
	}

	a := &Allocator{
		base:      base,
		pageSize:  pageSize,
		numFrames: numFrames,
		free:      make([]uint64, 0, numFrames),
		inUse:     make(map[uint64]bool),
	}

	// Push in reverse so that Alloc hands out the lowest address first.
	for i := numFrames; i > 0; i-- {
		a.free = append(a.free, base+(i-1)*pageSize)
	}

	return a
}

// Alloc returns the address of a free page. The bool is false when the pool
// is exhausted.
func (a *Allocator) Alloc() (uint64, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if len(a.free) == 0 {
		return 0, false
	}

	addr := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.inUse[addr] = true

	return addr, true
}

// Free returns a page to the pool. Freeing an address that is not currently
// allocated is a programming error.
func (a *Allocator) Free(addr uint64) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if !a.inUse[addr] {
		panic(fmt.Sprintf("freeing page 0x%x that is not allocated", addr))
	}

	delete(a.inUse, addr)
	a.free = append(a.free, addr)
}

// NumFree returns the number of pages that can still be allocated.
func (a *Allocator) NumFree() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return len(a.free)
}

// NumFrames returns the total number of pages the allocator owns.
func (a *Allocator) NumFrames() int {
	return int(a.numFrames)
}

// PageSize returns the size of the pages handed out.
func (a *Allocator) PageSize() uint64 {
	return a.pageSize
}
