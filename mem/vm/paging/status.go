package paging

import (
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/swap"
)

// Status is a snapshot of the occupancy of a System.
type Status struct {
	Name       string
	PageSize   uint64
	NumFrames  int
	FreeFrames int
	SwapSlots  int
	SwapUsed   int
	Spaces     []SpaceStatus
}

// SpaceStatus summarizes one address space.
type SpaceStatus struct {
	PID         vm.PID
	NumPages    int
	Resident    int
	Swapped     int
	StackBottom uint64
	Mappings    int
}

// FrameStatus describes one frame of the frame table.
type FrameStatus struct {
	Addr     uint64
	PID      vm.PID
	VAddr    uint64
	Kind     string
	Accessed bool
	Dirty    bool
	Hand     bool
}

// PageStatus describes one page of an address space.
type PageStatus struct {
	VAddr    uint64
	Kind     string
	Type     string
	Writable bool
	Stack    bool
	Resident bool
	Frame    uint64
	Slot     swap.Slot
}

// Status returns a snapshot of the system.
func (s *System) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Name:       s.name,
		PageSize:   s.pageSize,
		NumFrames:  s.allocator.NumFrames(),
		FreeFrames: s.allocator.NumFree(),
		SwapSlots:  s.swap.NumSlots(),
		SwapUsed:   s.swap.NumUsed(),
	}

	for _, pid := range s.pids() {
		as := s.spaces[pid]
		ss := SpaceStatus{
			PID:         pid,
			NumPages:    len(as.pages),
			StackBottom: as.stackBottom,
			Mappings:    as.mappings.Len(),
		}

		for _, p := range as.pages {
			if p.frame != nil {
				ss.Resident++
			}

			if p.SwapSlot() != swap.NoSlot {
				ss.Swapped++
			}
		}

		st.Spaces = append(st.Spaces, ss)
	}

	return st
}

// Frames describes the frame table in clock order.
func (s *System) Frames() []FrameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	hand := s.frames.Hand()
	frames := s.frames.Frames()
	list := make([]FrameStatus, 0, len(frames))

	for _, f := range frames {
		fs := FrameStatus{Addr: f.addr, Hand: f == hand}

		if p := f.page; p != nil {
			fs.PID = p.as.pid
			fs.VAddr = p.vaddr
			fs.Kind = p.Kind().String()
			fs.Accessed = s.pageTable.IsAccessed(p.as.pid, p.vaddr)
			fs.Dirty = s.pageTable.IsDirty(p.as.pid, p.vaddr)
		}

		list = append(list, fs)
	}

	return list
}

// PageStatuses describes the pages of the address space in address order.
func (as *AddressSpace) PageStatuses() []PageStatus {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	pages := as.sortedPages()
	list := make([]PageStatus, 0, len(pages))

	for _, p := range pages {
		ps := PageStatus{
			VAddr:    p.vaddr,
			Kind:     p.Kind().String(),
			Type:     p.Type().String(),
			Writable: p.writable,
			Stack:    p.marker&MarkerStack != 0,
			Resident: p.frame != nil,
			Slot:     p.SwapSlot(),
		}

		if p.frame != nil {
			ps.Frame = p.frame.addr
		}

		list = append(list, ps)
	}

	return list
}
