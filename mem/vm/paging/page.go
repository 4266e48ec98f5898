package paging

import (
	"fmt"

	"github.com/sarchlab/vmsim/mem/vfs"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/swap"
)

// Kind is the backing kind of a page.
type Kind int

// The backing kinds. A page starts as KindUninit and becomes KindAnon or
// KindFile the first time it is populated.
const (
	KindUninit Kind = iota
	KindAnon
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindUninit:
		return "uninit"
	case KindAnon:
		return "anon"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Marker tags pages with their origin.
type Marker uint8

// MarkerStack tags the pages of the user stack.
const MarkerStack Marker = 1 << 0

// An Initializer fills the content of a page the first time it is populated.
// The data is one page long and is zeroed, or already holds the file content
// for file-backed pages.
type Initializer func(p *Page, data []byte, aux any) error

// A FileSegment is the part of a file that backs one page. The rest of the
// page after ReadBytes is zero-filled.
type FileSegment struct {
	File      vfs.File
	Offset    int64
	ReadBytes int
}

// A PageSpec describes a page to allocate. Kind is the kind the page
// becomes when populated. Only Map creates KindFile pages, with a
// *FileSegment as Aux.
type PageSpec struct {
	Kind     Kind
	Marker   Marker
	VAddr    uint64
	Writable bool
	Init     Initializer
	Aux      any
}

// A Page is one virtual page of an address space.
type Page struct {
	as       *AddressSpace
	vaddr    uint64
	writable bool
	marker   Marker
	frame    *Frame
	backing  backing
}

// VAddr returns the page-aligned virtual address of the page.
func (p *Page) VAddr() uint64 {
	return p.vaddr
}

// PID returns the process that owns the page.
func (p *Page) PID() vm.PID {
	return p.as.pid
}

// Writable tells if user code may write the page.
func (p *Page) Writable() bool {
	return p.writable
}

// Marker returns the origin tags of the page.
func (p *Page) Marker() Marker {
	return p.marker
}

// Kind returns the current backing kind.
func (p *Page) Kind() Kind {
	return p.backing.kind()
}

// Type returns the kind the page has or will have once populated.
func (p *Page) Type() Kind {
	if u, ok := p.backing.(*uninitBacking); ok {
		return u.target
	}

	return p.backing.kind()
}

// Resident tells if the page currently occupies a frame.
func (p *Page) Resident() bool {
	return p.frame != nil
}

// Frame returns the frame the page occupies, or nil.
func (p *Page) Frame() *Frame {
	return p.frame
}

// SwapSlot returns the swap slot that holds the content of an anonymous
// page, or swap.NoSlot.
func (p *Page) SwapSlot() swap.Slot {
	if a, ok := p.backing.(*anonBacking); ok {
		return a.slot
	}

	return swap.NoSlot
}

// Segment returns the file segment of a file-backed page.
func (p *Page) Segment() (FileSegment, bool) {
	switch b := p.backing.(type) {
	case *fileBacking:
		return b.seg, true
	case *uninitBacking:
		if seg, ok := b.aux.(*FileSegment); ok && b.target == KindFile {
			return *seg, true
		}
	}

	return FileSegment{}, false
}

// backing is the behavior that differs between the page kinds.
type backing interface {
	kind() Kind

	// swapIn fills data, which is one zeroed page, with the content of the
	// page.
	swapIn(p *Page, data []byte) error

	// swapOut persists data, the current content of the resident page, as
	// the backing requires.
	swapOut(p *Page, data []byte) error

	// destroy releases the resources of the backing. Resident pages are
	// still mapped when destroy is called.
	destroy(p *Page) error
}
