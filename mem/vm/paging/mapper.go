package paging

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/vfs"
)

// A mapping is a file mapped into an address space by Map. Its pages share
// one file handle that was opened for the mapping alone.
type mapping struct {
	start    uint64
	numPages int
	writable bool
	offset   int64
	file     vfs.File
}

func mappingLess(a, b *mapping) bool {
	return a.start < b.start
}

// A Mapping describes a file mapping.
type Mapping struct {
	Start    uint64
	Length   uint64
	Writable bool
	File     string
	Offset   int64
}

// Map maps length bytes of the file starting at offset into the address
// space at addr. Pages are populated on first access. The mapping keeps
// its own handle to the file, so the caller may close file right away.
//
// If the file is shorter than length, only the pages covering the file
// are mapped. The tail of the last page reads as zero.
func (as *AddressSpace) Map(
	addr, length uint64,
	writable bool,
	file vfs.File,
	offset int64,
) (uint64, error) {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	mapped, err := as.mapFile(addr, length, writable, file, offset)
	if err != nil {
		as.sys.logger.WithFields(logrus.Fields{
			"pid":   as.pid,
			"vaddr": fmt.Sprintf("0x%x", addr),
		}).WithError(err).Warn("mapping failed")

		return 0, err
	}

	return mapped, nil
}

func (as *AddressSpace) mapFile(
	addr, length uint64,
	writable bool,
	file vfs.File,
	offset int64,
) (uint64, error) {
	s := as.sys

	if file == nil {
		return 0, fmt.Errorf("%w: no file to map", ErrInvalidAddress)
	}

	fileLen, err := file.Length()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDiskFault, err)
	}

	err = as.checkMapArgs(addr, length, offset, fileLen)
	if err != nil {
		return 0, err
	}

	readBytes := min(uint64(fileLen-offset), length)
	numPages := int((readBytes + s.pageSize - 1) / s.pageSize)

	reopened, err := file.Reopen()
	if err != nil {
		return 0, fmt.Errorf("%w: reopening %s: %w",
			ErrDiskFault, file.Name(), err)
	}

	m := &mapping{
		start:    addr,
		numPages: numPages,
		writable: writable,
		offset:   offset,
		file:     reopened,
	}

	err = as.populateMapping(m, readBytes)
	if err != nil {
		_ = reopened.Close()
		return 0, err
	}

	as.mappings.ReplaceOrInsert(m)

	s.logger.WithFields(logrus.Fields{
		"pid":   as.pid,
		"vaddr": fmt.Sprintf("0x%x", addr),
		"pages": numPages,
		"file":  file.Name(),
	}).Debug("file mapped")

	s.emit(HookPosMap, Event{
		PID:    as.pid,
		VAddr:  addr,
		Kind:   KindFile,
		Length: numPages * int(s.pageSize),
	})

	return addr, nil
}

func (as *AddressSpace) checkMapArgs(
	addr, length uint64,
	offset, fileLen int64,
) error {
	s := as.sys

	switch {
	case addr == 0:
		return fmt.Errorf("%w: cannot map at address 0", ErrInvalidAddress)
	case !s.isAligned(addr):
		return fmt.Errorf("%w: 0x%x is not page aligned",
			ErrInvalidAddress, addr)
	case length == 0:
		return fmt.Errorf("%w: empty mapping", ErrInvalidAddress)
	case offset < 0 || !s.isAligned(uint64(offset)):
		return fmt.Errorf("%w: offset %d is not page aligned",
			ErrInvalidAddress, offset)
	case fileLen <= offset:
		return fmt.Errorf("%w: offset %d is beyond a file of %d bytes",
			ErrInvalidAddress, offset, fileLen)
	}

	readBytes := min(uint64(fileLen-offset), length)
	end := addr + (readBytes+s.pageSize-1)/s.pageSize*s.pageSize

	if end < addr || s.layout.IsKernel(end-1) {
		return fmt.Errorf("%w: [0x%x, 0x%x) reaches the kernel",
			ErrInvalidAddress, addr, end)
	}

	for va := addr; va < end; va += s.pageSize {
		if as.find(va) != nil {
			return fmt.Errorf("%w: page 0x%x is already mapped",
				ErrDuplicateInsertion, va)
		}
	}

	return nil
}

// populateMapping inserts one lazy page per page of the mapping. Either all
// pages are inserted or none is.
func (as *AddressSpace) populateMapping(m *mapping, readBytes uint64) error {
	ps := as.sys.pageSize
	inserted := make([]*Page, 0, m.numPages)

	for i := 0; i < m.numPages; i++ {
		n := min(readBytes-uint64(i)*ps, ps)

		p, err := as.allocPage(PageSpec{
			Kind:     KindFile,
			VAddr:    m.start + uint64(i)*ps,
			Writable: m.writable,
			Aux: &FileSegment{
				File:      m.file,
				Offset:    m.offset + int64(i)*int64(ps),
				ReadBytes: int(n),
			},
		})
		if err != nil {
			for _, p := range inserted {
				delete(as.pages, p.vaddr)
				as.discardPage(p)
			}

			return err
		}

		inserted = append(inserted, p)
	}

	return nil
}

// Unmap removes the mapping that starts at addr. Written pages are written
// back to the file first. The address must be the one Map returned.
func (as *AddressSpace) Unmap(addr uint64) error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	m, found := as.mappings.Get(&mapping{start: addr})
	if !found {
		return fmt.Errorf("%w: no mapping starts at 0x%x",
			ErrInvalidAddress, addr)
	}

	err := as.unmap(m)

	as.sys.emit(HookPosUnmap, Event{
		PID:    as.pid,
		VAddr:  addr,
		Kind:   KindFile,
		Length: m.numPages * int(as.sys.pageSize),
		Err:    err,
	})

	return err
}

func (as *AddressSpace) unmap(m *mapping) error {
	var errs []error

	end := m.start + uint64(m.numPages)*as.sys.pageSize
	for va := m.start; va < end; va += as.sys.pageSize {
		p := as.find(va)
		if p == nil {
			continue
		}

		errs = append(errs, as.remove(p))
	}

	as.mappings.Delete(m)
	errs = append(errs, m.file.Close())

	return errors.Join(errs...)
}

// Mappings lists the file mappings in address order.
func (as *AddressSpace) Mappings() []Mapping {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	list := make([]Mapping, 0, as.mappings.Len())
	as.mappings.Ascend(func(m *mapping) bool {
		list = append(list, Mapping{
			Start:    m.start,
			Length:   uint64(m.numPages) * as.sys.pageSize,
			Writable: m.writable,
			File:     m.file.Name(),
			Offset:   m.offset,
		})

		return true
	})

	return list
}
