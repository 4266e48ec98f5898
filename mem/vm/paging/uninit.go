package paging

import (
	"fmt"

	"github.com/sarchlab/vmsim/mem/vm/swap"
)

// uninitBacking holds a page that was never populated. The first swap-in
// turns the page into its target kind and runs the initializer.
type uninitBacking struct {
	target Kind
	init   Initializer
	aux    any
}

func (b *uninitBacking) kind() Kind {
	return KindUninit
}

func (b *uninitBacking) swapIn(p *Page, data []byte) error {
	next := b.targetBacking()
	p.backing = next

	err := next.swapIn(p, data)
	if err == nil && b.init != nil {
		err = b.init(p, data, b.aux)
	}

	if err != nil {
		p.backing = b
		return err
	}

	return nil
}

func (b *uninitBacking) targetBacking() backing {
	switch b.target {
	case KindAnon:
		return &anonBacking{slot: swap.NoSlot}
	case KindFile:
		return &fileBacking{seg: *b.aux.(*FileSegment)}
	default:
		panic(fmt.Sprintf("cannot initialize a page as %s", b.target))
	}
}

func (b *uninitBacking) swapOut(p *Page, _ []byte) error {
	panic(fmt.Sprintf("uninitialized page 0x%x cannot be resident", p.vaddr))
}

func (b *uninitBacking) destroy(_ *Page) error {
	return nil
}
