package paging

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/vm/swap"
)

// getFrame returns a frame with no page attached. It allocates from the
// pool and evicts a victim when the pool is exhausted.
func (s *System) getFrame() (*Frame, error) {
	addr, ok := s.allocator.Alloc()
	if ok {
		f := &Frame{addr: addr}
		s.frames.Add(f)

		return f, nil
	}

	return s.evict()
}

// evict takes the frame of a victim page. The victim may belong to any
// address space.
func (s *System) evict() (*Frame, error) {
	victim := s.victimFinder.FindVictim(s.frames, s.pageTable)
	if victim == nil {
		return nil, fmt.Errorf("%w: no frame to evict", ErrOutOfMemory)
	}

	p := victim.page
	if p == nil || p.frame != victim {
		panic(fmt.Sprintf("frame 0x%x is not linked to its page", victim.addr))
	}

	data, err := s.frameContent(victim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}

	err = p.backing.swapOut(p, data)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"pid":   p.as.pid,
			"vaddr": fmt.Sprintf("0x%x", p.vaddr),
			"frame": fmt.Sprintf("0x%x", victim.addr),
		}).WithError(err).Warn("eviction failed")

		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}

	s.pageTable.Clear(p.as.pid, p.vaddr)

	evicted := pageEvent(p)
	p.frame = nil
	victim.page = nil

	s.logger.WithFields(logrus.Fields{
		"pid":   evicted.PID,
		"vaddr": fmt.Sprintf("0x%x", evicted.VAddr),
		"frame": fmt.Sprintf("0x%x", victim.addr),
		"slot":  evicted.Slot,
	}).Debug("page evicted")

	s.emit(HookPosSwapOut, evicted)
	s.emit(HookPosEvict, evicted)

	return victim, nil
}

// releaseFrame returns a frame with no page to the pool.
func (s *System) releaseFrame(f *Frame) {
	if f.page != nil {
		panic(fmt.Sprintf("releasing frame 0x%x that holds a page", f.addr))
	}

	s.frames.Remove(f)

	err := s.storage.Zero(f.addr, s.pageSize)
	if err != nil {
		panic(err)
	}

	s.allocator.Free(f.addr)
}

// claim makes the page resident. The fill function produces the content in
// a zeroed buffer. The translation is installed only after the content is
// in the frame, and a failure leaves no frame or translation behind.
func (as *AddressSpace) claim(p *Page, fill func(data []byte) error) error {
	if p.frame != nil {
		return nil
	}

	s := as.sys

	if _, found := s.pageTable.Find(as.pid, p.vaddr); found {
		return fmt.Errorf("%w: page 0x%x is mapped but not resident",
			ErrCorruptMapping, p.vaddr)
	}

	f, err := s.getFrame()
	if err != nil {
		return err
	}

	f.page = p
	p.frame = f

	data := make([]byte, s.pageSize)

	err = fill(data)
	if err == nil {
		err = s.storage.Write(f.addr, data)
	}

	if err != nil {
		p.frame = nil
		f.page = nil
		s.releaseFrame(f)

		return err
	}

	if !s.pageTable.Install(as.pid, p.vaddr, f.addr, p.writable) {
		panic(fmt.Sprintf("translation of 0x%x appeared during a claim",
			p.vaddr))
	}

	return nil
}

// claimPage makes the page resident with the content of its backing.
func (as *AddressSpace) claimPage(p *Page) error {
	if p.frame != nil {
		return nil
	}

	swappedIn := p.SwapSlot()

	err := as.claim(p, func(data []byte) error {
		return p.backing.swapIn(p, data)
	})
	if err != nil {
		return err
	}

	as.sys.logger.WithFields(logrus.Fields{
		"pid":   as.pid,
		"vaddr": fmt.Sprintf("0x%x", p.vaddr),
		"frame": fmt.Sprintf("0x%x", p.frame.addr),
		"slot":  swappedIn,
	}).Debug("page claimed")

	if swappedIn != swap.NoSlot {
		e := pageEvent(p)
		e.Slot = swappedIn
		as.sys.emit(HookPosSwapIn, e)
	}

	return nil
}
