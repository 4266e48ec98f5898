// Package vfs provides the files that can be mapped into an address space.
package vfs

import (
	"errors"
	"io"
)

// ErrClosed is returned by operations on a closed handle.
var ErrClosed = errors.New("file handle is closed")

// A File is an open handle to a file. Each handle has its own position and
// lifetime; handles obtained through Reopen refer to the same content but
// can be closed independently.
type File interface {
	io.Reader
	io.ReaderAt
	io.WriterAt
	io.Seeker
	io.Closer

	// Name returns the name the file was opened with.
	Name() string

	// Length returns the current size of the file in bytes.
	Length() (int64, error)

	// Reopen returns a new handle to the same file.
	Reopen() (File, error)
}
