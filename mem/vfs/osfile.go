package vfs

import (
	"os"
)

// OSFile is a File backed by a host file.
type OSFile struct {
	*os.File
	path string
	flag int
}

// OpenOSFile opens the host file at path for reading and writing.
func OpenOSFile(path string) (*OSFile, error) {
	return openOSFile(path, os.O_RDWR)
}

// OpenOSFileReadOnly opens the host file at path for reading.
func OpenOSFileReadOnly(path string) (*OSFile, error) {
	return openOSFile(path, os.O_RDONLY)
}

func openOSFile(path string, flag int) (*OSFile, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	return &OSFile{File: f, path: path, flag: flag}, nil
}

// Length returns the size of the file.
func (f *OSFile) Length() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// Reopen opens the same path again with the same flags.
func (f *OSFile) Reopen() (File, error) {
	return openOSFile(f.path, f.flag)
}
