package paging

import (
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/sim"
)

// Hook positions of the paging system. The hook item is always an Event.
var (
	// HookPosPageFault is invoked after a fault is resolved.
	HookPosPageFault = &sim.HookPos{Name: "PageFault"}

	// HookPosFaultRejected is invoked when a fault is fatal.
	HookPosFaultRejected = &sim.HookPos{Name: "FaultRejected"}

	HookPosStackGrowth = &sim.HookPos{Name: "StackGrowth"}

	// HookPosSwapIn is invoked when a page is read back from a swap slot.
	HookPosSwapIn  = &sim.HookPos{Name: "SwapIn"}
	HookPosSwapOut = &sim.HookPos{Name: "SwapOut"}

	// HookPosEvict is invoked when a frame is taken from its page.
	HookPosEvict = &sim.HookPos{Name: "Evict"}

	HookPosMap   = &sim.HookPos{Name: "Map"}
	HookPosUnmap = &sim.HookPos{Name: "Unmap"}
	HookPosFork  = &sim.HookPos{Name: "Fork"}
)

// HookPositions lists every hook position of the paging system.
var HookPositions = []*sim.HookPos{
	HookPosPageFault,
	HookPosFaultRejected,
	HookPosStackGrowth,
	HookPosSwapIn,
	HookPosSwapOut,
	HookPosEvict,
	HookPosMap,
	HookPosUnmap,
	HookPosFork,
}

// An Event describes what happened at a hook position.
type Event struct {
	System string
	PID    vm.PID
	VAddr  uint64
	Kind   Kind
	Frame  uint64
	Slot   swap.Slot
	Length int
	Err    error
}

func (s *System) emit(pos *sim.HookPos, e Event) {
	if s.NumHooks() == 0 {
		return
	}

	e.System = s.name

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   e,
	})
}

func pageEvent(p *Page) Event {
	e := Event{
		PID:   p.as.pid,
		VAddr: p.vaddr,
		Kind:  p.Type(),
		Slot:  p.SwapSlot(),
	}

	if p.frame != nil {
		e.Frame = p.frame.addr
	}

	return e
}
