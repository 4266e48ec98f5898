package disk

import "github.com/sarchlab/vmsim/memory"

// MemDisk is a disk whose sectors live in a memory.Storage.
type MemDisk struct {
	storage    *memory.Storage
	numSectors uint64
}

// NewMemDisk creates an in-memory disk with numSectors sectors.
func NewMemDisk(numSectors uint64) *MemDisk {
	return &MemDisk{
		storage:    memory.NewStorage(numSectors * SectorSize),
		numSectors: numSectors,
	}
}

// Size returns the number of sectors.
func (d *MemDisk) Size() uint64 {
	return d.numSectors
}

// Read fills buf with the content of the sector.
func (d *MemDisk) Read(sector uint64, buf []byte) error {
	if err := checkAccess(d, sector, buf); err != nil {
		return err
	}

	data, err := d.storage.Read(sector*SectorSize, SectorSize)
	if err != nil {
		return err
	}

	copy(buf, data)

	return nil
}

// Write stores buf into the sector.
func (d *MemDisk) Write(sector uint64, buf []byte) error {
	if err := checkAccess(d, sector, buf); err != nil {
		return err
	}

	return d.storage.Write(sector*SectorSize, buf)
}
