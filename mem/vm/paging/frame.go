package paging

import (
	"container/list"

	"github.com/sarchlab/vmsim/mem/vm"
)

// A Frame is one physical page handed out by the allocator.
type Frame struct {
	addr uint64
	page *Page
	elem *list.Element
}

// Addr returns the physical address of the frame.
func (f *Frame) Addr() uint64 {
	return f.addr
}

// Page returns the page that occupies the frame, or nil.
func (f *Frame) Page() *Page {
	return f.page
}

// A FrameTable keeps every frame carved out of the physical pool in
// allocation order, together with the position of the clock hand.
type FrameTable struct {
	frames *list.List
	hand   *list.Element
}

// NewFrameTable creates an empty frame table.
func NewFrameTable() *FrameTable {
	return &FrameTable{frames: list.New()}
}

// Len returns the number of frames in the table.
func (t *FrameTable) Len() int {
	return t.frames.Len()
}

// Add registers a frame at the tail of the table.
func (t *FrameTable) Add(f *Frame) {
	if f.elem != nil {
		panic("frame is already in a frame table")
	}

	f.elem = t.frames.PushBack(f)
}

// Remove takes a frame out of the table. A hand that points at the frame
// moves on to the next one.
func (t *FrameTable) Remove(f *Frame) {
	if f.elem == nil {
		panic("frame is not in the frame table")
	}

	if t.hand == f.elem {
		t.hand = t.next(f.elem)
		if t.hand == f.elem {
			t.hand = nil
		}
	}

	t.frames.Remove(f.elem)
	f.elem = nil
}

// Frames lists the frames in table order.
func (t *FrameTable) Frames() []*Frame {
	frames := make([]*Frame, 0, t.frames.Len())
	for e := t.frames.Front(); e != nil; e = e.Next() {
		frames = append(frames, e.Value.(*Frame))
	}

	return frames
}

// Hand returns the frame the next victim scan starts from.
func (t *FrameTable) Hand() *Frame {
	e := t.handElem()
	if e == nil {
		return nil
	}

	return e.Value.(*Frame)
}

// SetHand moves the hand to the frame.
func (t *FrameTable) SetHand(f *Frame) {
	if f.elem == nil {
		panic("frame is not in the frame table")
	}

	t.hand = f.elem
}

// Advance moves the hand to the next frame, wrapping around the table.
func (t *FrameTable) Advance() {
	e := t.handElem()
	if e == nil {
		return
	}

	t.hand = t.next(e)
}

func (t *FrameTable) handElem() *list.Element {
	if t.hand == nil {
		t.hand = t.frames.Front()
	}

	return t.hand
}

func (t *FrameTable) next(e *list.Element) *list.Element {
	if n := e.Next(); n != nil {
		return n
	}

	return t.frames.Front()
}

// A VictimFinder decides which frame to evict when the pool is exhausted.
// Every frame in the table holds a page when a victim is searched.
type VictimFinder interface {
	FindVictim(table *FrameTable, pt vm.PageTable) *Frame
}

// ClockVictimFinder is the second-chance policy. The hand sweeps the table
// and spares a frame whose page was accessed, clearing the accessed bit.
// The first frame found with a clear bit is the victim. A sweep covers the
// table once at most.
type ClockVictimFinder struct{}

// NewClockVictimFinder creates a ClockVictimFinder.
func NewClockVictimFinder() *ClockVictimFinder {
	return &ClockVictimFinder{}
}

// FindVictim returns the victim and leaves the hand just past it.
func (f *ClockVictimFinder) FindVictim(
	table *FrameTable,
	pt vm.PageTable,
) *Frame {
	start := table.Hand()
	if start == nil {
		return nil
	}

	for range table.Len() {
		frame := table.Hand()
		table.Advance()

		p := frame.page
		if !pt.IsAccessed(p.as.pid, p.vaddr) {
			return frame
		}

		pt.SetAccessed(p.as.pid, p.vaddr, false)
	}

	// Every page was accessed. The bits are all clear now, so the frame
	// the sweep started from gets evicted.
	table.SetHand(start)
	table.Advance()

	return start
}
