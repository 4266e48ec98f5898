// Package disk models the block devices the paging system swaps to.
package disk

import (
	"errors"
	"fmt"
)

// SectorSize is the size of a sector in bytes.
const SectorSize = 512

var (
	// ErrOutOfRange is returned when a sector number is beyond the disk.
	ErrOutOfRange = errors.New("sector out of range")

	// ErrBadBuffer is returned when a buffer is not exactly one sector.
	ErrBadBuffer = errors.New("buffer is not one sector long")
)

// A Disk is a fixed-size array of sectors.
type Disk interface {
	// Read fills buf, which must be SectorSize bytes, with the content of
	// the sector.
	Read(sector uint64, buf []byte) error

	// Write stores buf, which must be SectorSize bytes, into the sector.
	Write(sector uint64, buf []byte) error

	// Size returns the number of sectors.
	Size() uint64
}

func checkAccess(d Disk, sector uint64, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("%w: got %d bytes", ErrBadBuffer, len(buf))
	}

	if sector >= d.Size() {
		return fmt.Errorf("%w: sector %d, disk has %d",
			ErrOutOfRange, sector, d.Size())
	}

	return nil
}
