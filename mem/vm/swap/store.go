// Package swap implements the swap store, a disk region split into
// page-sized slots whose occupancy is tracked by an in-memory bitmap.
package swap

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/vmsim/mem/disk"
)

// Slot is the index of a page-sized region of the swap disk.
type Slot int

// NoSlot marks a page that has never been swapped out.
const NoSlot Slot = -1

var (
	// ErrNoFreeSlot is returned when every slot holds swapped-out content.
	ErrNoFreeSlot = errors.New("no free swap slot")

	// ErrSlotNotInUse is returned when reading a slot that holds nothing.
	ErrSlotNotInUse = errors.New("swap slot not in use")
)

// Store manages the slots of a swap disk. Slot 0 starts at sector 0 and
// slots are laid out contiguously; there is no on-disk header.
//
// A Store is not safe for concurrent use. The paging system serializes
// access to it with its own lock.
type Store struct {
	disk           disk.Disk
	used           *bitset.BitSet
	numSlots       uint
	pageSize       int
	sectorsPerSlot uint64
}

// NewStore creates a Store that covers as many whole slots as fit on the
// disk.
func NewStore(d disk.Disk, pageSize int) *Store {
	if pageSize <= 0 || pageSize%disk.SectorSize != 0 {
		panic("page size must be a positive multiple of the sector size")
	}

	sectorsPerSlot := uint64(pageSize / disk.SectorSize)
	numSlots := uint(d.Size() / sectorsPerSlot)

	return &Store{
		disk:           d,
		used:           bitset.New(numSlots),
		numSlots:       numSlots,
		pageSize:       pageSize,
		sectorsPerSlot: sectorsPerSlot,
	}
}

// NumSlots returns the number of slots.
func (s *Store) NumSlots() int {
	return int(s.numSlots)
}

// NumUsed returns the number of slots that hold content.
func (s *Store) NumUsed() int {
	return int(s.used.Count())
}

// InUse tells if the slot holds content.
func (s *Store) InUse(slot Slot) bool {
	if !s.valid(slot) {
		return false
	}

	return s.used.Test(uint(slot))
}

// SwapOut writes one page of data to the first free slot and marks the slot
// as used.
func (s *Store) SwapOut(data []byte) (Slot, error) {
	s.mustBePage(data)

	idx, found := s.used.NextClear(0)
	if !found || idx >= s.numSlots {
		return NoSlot, ErrNoFreeSlot
	}

	slot := Slot(idx)

	err := s.transfer(slot, data, s.disk.Write)
	if err != nil {
		return NoSlot, err
	}

	s.used.Set(idx)

	return slot, nil
}

// SwapIn reads the content of the slot into data and releases the slot.
func (s *Store) SwapIn(slot Slot, data []byte) error {
	err := s.Peek(slot, data)
	if err != nil {
		return err
	}

	s.used.Clear(uint(slot))

	return nil
}

// Peek reads the content of the slot into data. The slot stays in use.
func (s *Store) Peek(slot Slot, data []byte) error {
	s.mustBePage(data)

	if !s.InUse(slot) {
		return fmt.Errorf("slot %d: %w", slot, ErrSlotNotInUse)
	}

	return s.transfer(slot, data, s.disk.Read)
}

// Free releases the slot without reading it. Freeing NoSlot is a no-op.
func (s *Store) Free(slot Slot) {
	if slot == NoSlot {
		return
	}

	if !s.InUse(slot) {
		panic(fmt.Sprintf("freeing swap slot %d that is not in use", slot))
	}

	s.used.Clear(uint(slot))
}

// Reset releases every slot.
func (s *Store) Reset() {
	s.used.ClearAll()
}

func (s *Store) transfer(
	slot Slot,
	data []byte,
	op func(sector uint64, buf []byte) error,
) error {
	first := uint64(slot) * s.sectorsPerSlot

	for i := uint64(0); i < s.sectorsPerSlot; i++ {
		buf := data[i*disk.SectorSize : (i+1)*disk.SectorSize]

		err := op(first+i, buf)
		if err != nil {
			return fmt.Errorf("slot %d sector %d: %w", slot, first+i, err)
		}
	}

	return nil
}

func (s *Store) valid(slot Slot) bool {
	return slot >= 0 && uint(slot) < s.numSlots
}

func (s *Store) mustBePage(data []byte) {
	if len(data) != s.pageSize {
		panic(fmt.Sprintf("swap buffer must be %d bytes, got %d",
			s.pageSize, len(data)))
	}
}
