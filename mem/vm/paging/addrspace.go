package paging

import (
	"fmt"
	"sort"

	"github.com/google/btree"

	"github.com/sarchlab/vmsim/mem/vm"
)

// An AddressSpace is the virtual memory of one process. Its supplemental
// page table owns every page of the process.
type AddressSpace struct {
	sys *System
	pid vm.PID

	pages    map[uint64]*Page
	mappings *btree.BTreeG[*mapping]

	stackBottom uint64
	userSP      uint64
}

func newAddressSpace(s *System, pid vm.PID) *AddressSpace {
	return &AddressSpace{
		sys:         s,
		pid:         pid,
		pages:       make(map[uint64]*Page),
		mappings:    btree.NewG(2, mappingLess),
		stackBottom: s.layout.UserStackTop,
		userSP:      s.layout.UserStackTop,
	}
}

// PID returns the process that owns the address space.
func (as *AddressSpace) PID() vm.PID {
	return as.pid
}

// Find returns the page that contains the address, or nil.
func (as *AddressSpace) Find(vaddr uint64) *Page {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.find(vaddr)
}

func (as *AddressSpace) find(vaddr uint64) *Page {
	return as.pages[as.sys.pageAlign(vaddr)]
}

// NewPage creates an uninitialized anonymous page owned by the address space
// without inserting it. File pages are created by Map only.
func (as *AddressSpace) NewPage(spec PageSpec) *Page {
	if spec.Kind != KindAnon {
		panic(fmt.Sprintf("cannot create a page of kind %s", spec.Kind))
	}

	return as.newPage(spec)
}

func (as *AddressSpace) newPage(spec PageSpec) *Page {
	if spec.Kind != KindAnon && spec.Kind != KindFile {
		panic(fmt.Sprintf("cannot allocate a page of kind %s", spec.Kind))
	}

	if spec.Kind == KindFile {
		if _, ok := spec.Aux.(*FileSegment); !ok {
			panic("file pages require a *FileSegment aux")
		}
	}

	return &Page{
		as:       as,
		vaddr:    as.sys.pageAlign(spec.VAddr),
		writable: spec.Writable,
		marker:   spec.Marker,
		backing: &uninitBacking{
			target: spec.Kind,
			init:   spec.Init,
			aux:    spec.Aux,
		},
	}
}

// Insert adds the page to the supplemental page table. It fails if a page
// already exists at the address.
func (as *AddressSpace) Insert(p *Page) error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.insert(p)
}

func (as *AddressSpace) insert(p *Page) error {
	if p.as != as {
		panic("inserting a page owned by another address space")
	}

	if _, found := as.pages[p.vaddr]; found {
		return fmt.Errorf("%w: process %d, page 0x%x",
			ErrDuplicateInsertion, as.pid, p.vaddr)
	}

	as.pages[p.vaddr] = p

	return nil
}

// Remove takes the page out of the supplemental page table and destroys it,
// releasing its frame and its backing resources.
func (as *AddressSpace) Remove(p *Page) error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.remove(p)
}

func (as *AddressSpace) remove(p *Page) error {
	if as.pages[p.vaddr] != p {
		panic(fmt.Sprintf("page 0x%x is not in the address space", p.vaddr))
	}

	delete(as.pages, p.vaddr)

	return as.destroyPage(p)
}

// destroyPage releases the backing resources of the page, then its frame
// and translation.
func (as *AddressSpace) destroyPage(p *Page) error {
	err := p.backing.destroy(p)

	if f := p.frame; f != nil {
		as.sys.pageTable.Clear(as.pid, p.vaddr)
		p.frame = nil
		f.page = nil
		as.sys.releaseFrame(f)
	}

	return err
}

// discardPage destroys the page without writing back its content.
func (as *AddressSpace) discardPage(p *Page) {
	if p.frame != nil {
		as.sys.pageTable.SetDirty(as.pid, p.vaddr, false)
	}

	_ = as.destroyPage(p)
}

// AllocPage creates an uninitialized anonymous page and inserts it. The
// content is produced when the page is first claimed. File pages belong to
// a mapping and are created by Map.
func (as *AddressSpace) AllocPage(spec PageSpec) (*Page, error) {
	if spec.Kind != KindAnon {
		return nil, fmt.Errorf("%w: cannot allocate a page of kind %s",
			ErrInvalidAddress, spec.Kind)
	}

	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.allocPage(spec)
}

func (as *AddressSpace) allocPage(spec PageSpec) (*Page, error) {
	if as.sys.layout.IsKernel(spec.VAddr) {
		return nil, fmt.Errorf("%w: 0x%x is a kernel address",
			ErrInvalidAddress, spec.VAddr)
	}

	p := as.newPage(spec)

	err := as.insert(p)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Claim makes the page at the address resident.
func (as *AddressSpace) Claim(vaddr uint64) error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	p := as.find(vaddr)
	if p == nil {
		return fmt.Errorf("%w: no page at 0x%x", ErrInvalidAddress, vaddr)
	}

	return as.claimPage(p)
}

// Pages lists the pages in address order.
func (as *AddressSpace) Pages() []*Page {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.sortedPages()
}

func (as *AddressSpace) sortedPages() []*Page {
	pages := make([]*Page, 0, len(as.pages))
	for _, p := range as.pages {
		pages = append(pages, p)
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].vaddr < pages[j].vaddr
	})

	return pages
}

// NumPages returns the number of pages in the supplemental page table.
func (as *AddressSpace) NumPages() int {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return len(as.pages)
}
