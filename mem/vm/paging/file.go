package paging

import (
	"fmt"
	"io"
)

// fileBacking holds a page whose content comes from a file segment.
// Written pages are written back to the file when they leave memory.
type fileBacking struct {
	seg FileSegment
}

func (b *fileBacking) kind() Kind {
	return KindFile
}

func (b *fileBacking) swapIn(_ *Page, data []byte) error {
	return readSegment(b.seg, data)
}

func (b *fileBacking) swapOut(p *Page, data []byte) error {
	return b.writeBack(p, data)
}

func (b *fileBacking) destroy(p *Page) error {
	if p.frame == nil {
		return nil
	}

	data, err := p.as.sys.frameContent(p.frame)
	if err != nil {
		return err
	}

	return b.writeBack(p, data)
}

func (b *fileBacking) writeBack(p *Page, data []byte) error {
	pt := p.as.sys.pageTable
	if !pt.IsDirty(p.as.pid, p.vaddr) {
		return nil
	}

	_, err := b.seg.File.WriteAt(data[:b.seg.ReadBytes], b.seg.Offset)
	if err != nil {
		return fmt.Errorf("%w: write back page 0x%x: %w",
			ErrDiskFault, p.vaddr, err)
	}

	pt.SetDirty(p.as.pid, p.vaddr, false)

	return nil
}

func readSegment(seg FileSegment, data []byte) error {
	n, err := seg.File.ReadAt(data[:seg.ReadBytes], seg.Offset)
	if n == seg.ReadBytes {
		return nil
	}

	if err == nil {
		err = io.ErrUnexpectedEOF
	}

	return fmt.Errorf("%w: read %d of %d bytes at offset %d: %w",
		ErrCorruptMapping, n, seg.ReadBytes, seg.Offset, err)
}

// LoadSegment is an Initializer for anonymous pages whose initial content
// comes from a file, such as the data segment of a program. The aux must be
// a *FileSegment.
func LoadSegment(_ *Page, data []byte, aux any) error {
	seg, ok := aux.(*FileSegment)
	if !ok {
		return fmt.Errorf("%w: aux %T is not a file segment",
			ErrCorruptMapping, aux)
	}

	return readSegment(*seg, data)
}
