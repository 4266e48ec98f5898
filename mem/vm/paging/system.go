// Package paging implements demand paging on top of the hardware page
// table. Address spaces keep a supplemental page table of lazily populated
// pages. A System owns the frames and the swap store shared by all address
// spaces and evicts frames with a victim finder when memory runs out.
package paging

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/memory"
	"github.com/sarchlab/vmsim/sim"
)

// Layout describes the virtual address space of user processes.
type Layout struct {
	// KernelBase is the first kernel address. User addresses are below.
	KernelBase uint64

	// UserStackTop is the address just above the user stack.
	UserStackTop uint64

	// MaxStackSize bounds how far the stack may grow below UserStackTop.
	MaxStackSize uint64
}

// DefaultLayout returns the layout of a 64-bit teaching kernel.
func DefaultLayout() Layout {
	return Layout{
		KernelBase:   0x8004000000,
		UserStackTop: 0x47480000,
		MaxStackSize: 1 << 20,
	}
}

// IsKernel tells if the address belongs to the kernel.
func (l Layout) IsKernel(addr uint64) bool {
	return addr >= l.KernelBase
}

// StackLimit returns the lowest address the stack may grow to.
func (l Layout) StackLimit() uint64 {
	return l.UserStackTop - l.MaxStackSize
}

// A System is the process-wide state of the paging subsystem. Every frame
// table, swap and page-table mutation happens while holding its lock.
type System struct {
	*sim.HookableBase

	name string
	mu   sync.Mutex

	log2PageSize uint64
	pageSize     uint64
	layout       Layout

	storage      *memory.Storage
	allocator    *memory.Allocator
	pageTable    vm.PageTable
	swap         *swap.Store
	frames       *FrameTable
	victimFinder VictimFinder

	spaces map[vm.PID]*AddressSpace
	logger logrus.FieldLogger
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// PageSize returns the page size in bytes.
func (s *System) PageSize() uint64 {
	return s.pageSize
}

// Layout returns the virtual address layout.
func (s *System) Layout() Layout {
	return s.layout
}

// Storage returns the physical memory.
func (s *System) Storage() *memory.Storage {
	return s.storage
}

// PageTable returns the hardware page table.
func (s *System) PageTable() vm.PageTable {
	return s.pageTable
}

// Swap returns the swap store.
func (s *System) Swap() *swap.Store {
	return s.swap
}

// Locker returns the lock of the system. Code that accesses physical memory
// through a translation must hold it so that the frame is not evicted in
// the middle of the access.
func (s *System) Locker() sync.Locker {
	return &s.mu
}

// NewAddressSpace creates and registers an empty address space.
func (s *System) NewAddressSpace(pid vm.PID) (*AddressSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.newAddressSpace(pid)
}

func (s *System) newAddressSpace(pid vm.PID) (*AddressSpace, error) {
	if _, found := s.spaces[pid]; found {
		return nil, fmt.Errorf("%w: process %d already has an address space",
			ErrDuplicateInsertion, pid)
	}

	as := newAddressSpace(s, pid)
	s.spaces[pid] = as

	return as, nil
}

// AddressSpace returns the address space of the process, or nil.
func (s *System) AddressSpace(pid vm.PID) *AddressSpace {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.spaces[pid]
}

// HandlePageFault resolves a fault raised by the process. A returned error
// is a *FaultError and the process must not continue.
func (s *System) HandlePageFault(pid vm.PID, f vm.Fault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	as := s.spaces[pid]

	var err error
	if as == nil {
		err = fmt.Errorf("%w: process %d has no address space",
			ErrInvalidAddress, pid)
	} else {
		err = as.handleFault(f)
	}

	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"pid":   pid,
			"vaddr": fmt.Sprintf("0x%x", f.Addr),
			"write": f.Write,
		}).WithError(err).Warn("page fault rejected")

		s.emit(HookPosFaultRejected, Event{PID: pid, VAddr: f.Addr, Err: err})

		return &FaultError{PID: pid, Fault: f, Err: err}
	}

	s.emit(HookPosPageFault, Event{PID: pid, VAddr: f.Addr})

	return nil
}

// TryHandleFault reports whether the fault was resolved.
func (s *System) TryHandleFault(pid vm.PID, f vm.Fault) bool {
	return s.HandlePageFault(pid, f) == nil
}

// Fork creates the address space of child as a copy of the address space of
// parent. On failure the child is not registered.
func (s *System) Fork(parent, child vm.PID) (*AddressSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.spaces[parent]
	if src == nil {
		return nil, fmt.Errorf("%w: process %d has no address space",
			ErrInvalidAddress, parent)
	}

	dst, err := s.newAddressSpace(child)
	if err != nil {
		return nil, err
	}

	err = dst.copyFrom(src)
	if err != nil {
		delete(s.spaces, child)

		s.logger.WithFields(logrus.Fields{
			"parent": parent,
			"child":  child,
		}).WithError(err).Error("address space duplication failed")

		s.emit(HookPosFork, Event{PID: child, Err: err})

		return nil, err
	}

	s.emit(HookPosFork, Event{PID: child})

	return dst, nil
}

// DestroyAddressSpace tears down the address space of the process and
// unregisters it. Dirty file pages are written back first.
func (s *System) DestroyAddressSpace(pid vm.PID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	as := s.spaces[pid]
	if as == nil {
		return fmt.Errorf("%w: process %d has no address space",
			ErrInvalidAddress, pid)
	}

	delete(s.spaces, pid)

	return as.destroy()
}

// Shutdown tears down every address space and releases the swap store.
func (s *System) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	for _, pid := range s.pids() {
		errs = append(errs, s.spaces[pid].destroy())
		delete(s.spaces, pid)
	}

	s.swap.Reset()

	return errors.Join(errs...)
}

func (s *System) pids() []vm.PID {
	pids := make([]vm.PID, 0, len(s.spaces))
	for pid := range s.spaces {
		pids = append(pids, pid)
	}

	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	return pids
}

func (s *System) frameContent(f *Frame) ([]byte, error) {
	data, err := s.storage.Read(f.addr, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: frame 0x%x: %w", ErrCorruptMapping, f.addr, err)
	}

	return data, nil
}

func (s *System) pageAlign(addr uint64) uint64 {
	return (addr >> s.log2PageSize) << s.log2PageSize
}

func (s *System) isAligned(addr uint64) bool {
	return addr&(s.pageSize-1) == 0
}
