package paging

import (
	"errors"
	"fmt"

	"github.com/sarchlab/vmsim/mem/vm/swap"
)

// anonBacking holds a page with no file origin. Its content lives in the
// frame or, after eviction, in a swap slot.
type anonBacking struct {
	slot swap.Slot
}

func (b *anonBacking) kind() Kind {
	return KindAnon
}

func (b *anonBacking) swapIn(p *Page, data []byte) error {
	if b.slot == swap.NoSlot {
		return nil
	}

	err := p.as.sys.swap.SwapIn(b.slot, data)
	if errors.Is(err, swap.ErrSlotNotInUse) {
		return fmt.Errorf("%w: page 0x%x: %w", ErrCorruptMapping, p.vaddr, err)
	}

	if err != nil {
		return fmt.Errorf("%w: swap in page 0x%x: %w", ErrDiskFault, p.vaddr, err)
	}

	b.slot = swap.NoSlot

	return nil
}

func (b *anonBacking) swapOut(p *Page, data []byte) error {
	slot, err := p.as.sys.swap.SwapOut(data)
	if err != nil {
		return fmt.Errorf("%w: swap out page 0x%x: %w", ErrDiskFault, p.vaddr, err)
	}

	b.slot = slot

	return nil
}

func (b *anonBacking) destroy(p *Page) error {
	p.as.sys.swap.Free(b.slot)
	b.slot = swap.NoSlot

	return nil
}
