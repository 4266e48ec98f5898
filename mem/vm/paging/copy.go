package paging

import (
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/sarchlab/vmsim/mem/vfs"
	"github.com/sarchlab/vmsim/mem/vm/swap"
)

// Copy fills the empty address space with a copy of src. Pages that were
// never populated stay lazy. Every other page is copied eagerly into a
// private frame, so the two address spaces never share memory. On failure
// the address space is left empty.
//
// Src must not fault while it is being copied.
func (as *AddressSpace) Copy(src *AddressSpace) error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.copyFrom(src)
}

func (as *AddressSpace) copyFrom(src *AddressSpace) error {
	if src.sys != as.sys {
		panic("copying an address space of another system")
	}

	if len(as.pages) != 0 || as.mappings.Len() != 0 {
		return fmt.Errorf("%w: process %d already has pages",
			ErrDuplicateInsertion, as.pid)
	}

	err := as.copyMappings(src)
	if err == nil {
		err = as.copyPages(src)
	}

	if err != nil {
		as.clear()
		return err
	}

	as.stackBottom = src.stackBottom
	as.userSP = src.userSP

	return nil
}

// copyMappings gives every mapping of src a counterpart with its own file
// handle.
func (as *AddressSpace) copyMappings(src *AddressSpace) error {
	var err error

	src.mappings.Ascend(func(m *mapping) bool {
		var f vfs.File

		f, err = m.file.Reopen()
		if err != nil {
			err = fmt.Errorf("%w: reopening %s: %w",
				ErrDiskFault, m.file.Name(), err)
			return false
		}

		clone := *m
		clone.file = f
		as.mappings.ReplaceOrInsert(&clone)

		return true
	})

	return err
}

// mappedFile returns the handle the copy uses for a file handle of src.
// Segments outside any mapping, such as LoadSegment arguments, keep the
// handle of their owner.
func (as *AddressSpace) mappedFile(
	src *AddressSpace,
	f vfs.File,
	vaddr uint64,
) vfs.File {
	var found vfs.File

	src.mappings.DescendLessOrEqual(&mapping{start: vaddr},
		func(m *mapping) bool {
			if m.file == f {
				clone, _ := as.mappings.Get(m)
				found = clone.file
			}

			return false
		})

	if found == nil {
		return f
	}

	return found
}

func (as *AddressSpace) copyPages(src *AddressSpace) error {
	for _, sp := range src.sortedPages() {
		var err error

		if u, ok := sp.backing.(*uninitBacking); ok {
			err = as.copyLazyPage(src, sp, u)
		} else {
			err = as.copyResidentPage(src, sp)
		}

		if err != nil {
			return fmt.Errorf("copying page 0x%x: %w", sp.vaddr, err)
		}
	}

	return nil
}

func (as *AddressSpace) copyLazyPage(
	src *AddressSpace,
	sp *Page,
	u *uninitBacking,
) error {
	aux := u.aux
	if seg, ok := aux.(*FileSegment); ok {
		clone := *seg
		clone.File = as.mappedFile(src, seg.File, sp.vaddr)
		aux = &clone
	} else if aux != nil {
		aux = deepcopy.Copy(aux)
	}

	_, err := as.allocPage(PageSpec{
		Kind:     u.target,
		Marker:   sp.marker,
		VAddr:    sp.vaddr,
		Writable: sp.writable,
		Init:     u.init,
		Aux:      aux,
	})

	return err
}

// copyResidentPage copies a populated page, whether it is in memory, in
// swap, or only in its file, into a frame of the copy.
func (as *AddressSpace) copyResidentPage(src *AddressSpace, sp *Page) error {
	s := as.sys

	content, err := s.pageContent(sp)
	if err != nil {
		return err
	}

	dirty := sp.frame != nil && s.pageTable.IsDirty(src.pid, sp.vaddr)

	p := &Page{
		as:       as,
		vaddr:    sp.vaddr,
		writable: sp.writable,
		marker:   sp.marker,
	}

	switch b := sp.backing.(type) {
	case *anonBacking:
		p.backing = &anonBacking{slot: swap.NoSlot}
	case *fileBacking:
		seg := b.seg
		seg.File = as.mappedFile(src, seg.File, sp.vaddr)
		p.backing = &fileBacking{seg: seg}
	default:
		panic(fmt.Sprintf("cannot copy a page of kind %s", sp.Kind()))
	}

	err = as.insert(p)
	if err != nil {
		return err
	}

	err = as.claim(p, func(data []byte) error {
		copy(data, content)
		return nil
	})
	if err != nil {
		delete(as.pages, p.vaddr)
		return err
	}

	if dirty {
		s.pageTable.SetDirty(as.pid, p.vaddr, true)
	}

	return nil
}

// pageContent returns the current content of a populated page.
func (s *System) pageContent(p *Page) ([]byte, error) {
	if p.frame != nil {
		return s.frameContent(p.frame)
	}

	data := make([]byte, s.pageSize)

	switch b := p.backing.(type) {
	case *anonBacking:
		if b.slot == swap.NoSlot {
			return data, nil
		}

		err := s.swap.Peek(b.slot, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDiskFault, err)
		}
	case *fileBacking:
		err := readSegment(b.seg, data)
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}
