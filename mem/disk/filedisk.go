package disk

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FileDisk is a disk backed by a host file. Sector i occupies bytes
// [i*SectorSize, (i+1)*SectorSize) of the file.
type FileDisk struct {
	fd         int
	path       string
	numSectors uint64
}

// OpenFileDisk opens (creating if needed) the host file at path and sizes it
// to numSectors sectors. Existing content is discarded.
func OpenFileDisk(path string, numSectors uint64) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening swap file %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("truncating swap file %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, int64(numSectors*SectorSize)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sizing swap file %s: %w", path, err)
	}

	return &FileDisk{fd: fd, path: path, numSectors: numSectors}, nil
}

// Size returns the number of sectors.
func (d *FileDisk) Size() uint64 {
	return d.numSectors
}

// Path returns the host path of the disk.
func (d *FileDisk) Path() string {
	return d.path
}

// Read fills buf with the content of the sector.
func (d *FileDisk) Read(sector uint64, buf []byte) error {
	if err := checkAccess(d, sector, buf); err != nil {
		return err
	}

	n, err := unix.Pread(d.fd, buf, int64(sector*SectorSize))
	if err != nil {
		return fmt.Errorf("reading sector %d: %w", sector, err)
	}

	// The file is sized up front, so a short read only happens on a
	// truncated file.
	if n != SectorSize {
		return fmt.Errorf("reading sector %d: short read of %d bytes",
			sector, n)
	}

	return nil
}

// Write stores buf into the sector.
func (d *FileDisk) Write(sector uint64, buf []byte) error {
	if err := checkAccess(d, sector, buf); err != nil {
		return err
	}

	n, err := unix.Pwrite(d.fd, buf, int64(sector*SectorSize))
	if err != nil {
		return fmt.Errorf("writing sector %d: %w", sector, err)
	}

	if n != SectorSize {
		return fmt.Errorf("writing sector %d: short write of %d bytes",
			sector, n)
	}

	return nil
}

// Sync flushes written sectors to the host device.
func (d *FileDisk) Sync() error {
	return unix.Fsync(d.fd)
}

// Close releases the host file.
func (d *FileDisk) Close() error {
	return unix.Close(d.fd)
}
