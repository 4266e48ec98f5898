package vfs

import (
	"errors"
	"io"
	"sync"
)

type inode struct {
	sync.RWMutex
	data []byte
}

// MemFile is a handle to a file kept in memory.
type MemFile struct {
	name   string
	inode  *inode
	lock   sync.Mutex
	pos    int64
	closed bool
}

// NewMemFile creates an in-memory file with a copy of data as its content
// and returns the first handle to it.
func NewMemFile(name string, data []byte) *MemFile {
	content := make([]byte, len(data))
	copy(content, data)

	return &MemFile{
		name:  name,
		inode: &inode{data: content},
	}
}

// Name returns the name of the file.
func (f *MemFile) Name() string {
	return f.name
}

// Bytes returns a copy of the current content of the file.
func (f *MemFile) Bytes() []byte {
	f.inode.RLock()
	defer f.inode.RUnlock()

	res := make([]byte, len(f.inode.data))
	copy(res, f.inode.data)

	return res
}

// Length returns the size of the file.
func (f *MemFile) Length() (int64, error) {
	if f.isClosed() {
		return 0, ErrClosed
	}

	f.inode.RLock()
	defer f.inode.RUnlock()

	return int64(len(f.inode.data)), nil
}

// Reopen returns an independent handle to the same content.
func (f *MemFile) Reopen() (File, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}

	return &MemFile{name: f.name, inode: f.inode}, nil
}

// Close closes this handle. Other handles stay usable.
func (f *MemFile) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return ErrClosed
	}

	f.closed = true

	return nil
}

func (f *MemFile) isClosed() bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.closed
}

// Seek sets the position of this handle.
func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return 0, ErrClosed
	}

	var base int64

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		f.inode.RLock()
		base = int64(len(f.inode.data))
		f.inode.RUnlock()
	default:
		return 0, errors.New("invalid whence")
	}

	if base+offset < 0 {
		return 0, errors.New("negative position")
	}

	f.pos = base + offset

	return f.pos, nil
}

// Read reads from the current position and advances it.
func (f *MemFile) Read(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return 0, ErrClosed
	}

	n, err := f.readAt(p, f.pos)
	f.pos += int64(n)

	if n > 0 && err == io.EOF {
		err = nil
	}

	return n, err
}

// ReadAt reads len(p) bytes at off without moving the position.
func (f *MemFile) ReadAt(p []byte, off int64) (int, error) {
	if f.isClosed() {
		return 0, ErrClosed
	}

	return f.readAt(p, off)
}

func (f *MemFile) readAt(p []byte, off int64) (int, error) {
	f.inode.RLock()
	defer f.inode.RUnlock()

	if off >= int64(len(f.inode.data)) {
		return 0, io.EOF
	}

	n := copy(p, f.inode.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt writes p at off, growing the file if needed.
func (f *MemFile) WriteAt(p []byte, off int64) (int, error) {
	if f.isClosed() {
		return 0, ErrClosed
	}

	if off < 0 {
		return 0, errors.New("negative offset")
	}

	f.inode.Lock()
	defer f.inode.Unlock()

	end := off + int64(len(p))
	if end > int64(len(f.inode.data)) {
		grown := make([]byte, end)
		copy(grown, f.inode.data)
		f.inode.data = grown
	}

	return copy(f.inode.data[off:end], p), nil
}
