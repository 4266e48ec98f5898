// Package memory models the physical memory of the simulated machine: a
// sparse byte store and the allocator that carves it into user frames.
package memory

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfRange is returned when an access falls outside the storage.
var ErrOutOfRange = errors.New("access beyond the storage capacity")

// A Storage keeps the bytes of a simulated physical medium.
//
// The storage manages its data in units. For the units that are not touched
// by Write, no memory is allocated and reads return zeros.
type Storage struct {
	sync.Mutex
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity uint64) *Storage {
	return NewStorageWithUnitSize(capacity, 4096)
}

// NewStorageWithUnitSize creates a storage that allocates its backing memory
// unitSize bytes at a time.
func NewStorageWithUnitSize(capacity, unitSize uint64) *Storage {
	if unitSize == 0 {
		panic("unit size must not be 0")
	}

	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) mustBeInRange(address, length uint64) error {
	if address+length > s.capacity || address+length < address {
		return fmt.Errorf("%w: [0x%x, 0x%x) exceeds 0x%x",
			ErrOutOfRange, address, address+length, s.capacity)
	}

	return nil
}

func (s *Storage) unit(baseAddr uint64, create bool) []byte {
	unit, ok := s.data[baseAddr]
	if !ok && create {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr
	return
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	if err := s.mustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	s.walk(address, length, func(unitBase, inUnit, offset, n uint64) {
		unit := s.unit(unitBase, false)
		if unit != nil {
			copy(res[offset:offset+n], unit[inUnit:inUnit+n])
		}
	})

	return res, nil
}

// Write copies data into the storage starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	s.Lock()
	defer s.Unlock()

	length := uint64(len(data))
	if err := s.mustBeInRange(address, length); err != nil {
		return err
	}

	s.walk(address, length, func(unitBase, inUnit, offset, n uint64) {
		unit := s.unit(unitBase, true)
		copy(unit[inUnit:inUnit+n], data[offset:offset+n])
	})

	return nil
}

// Zero clears length bytes starting at address. Units that are cleared
// entirely are released.
func (s *Storage) Zero(address uint64, length uint64) error {
	s.Lock()
	defer s.Unlock()

	if err := s.mustBeInRange(address, length); err != nil {
		return err
	}

	s.walk(address, length, func(unitBase, inUnit, _, n uint64) {
		if n == s.unitSize {
			delete(s.data, unitBase)
			return
		}

		unit := s.unit(unitBase, false)
		if unit != nil {
			clear(unit[inUnit : inUnit+n])
		}
	})

	return nil
}

// walk splits [address, address+length) into per-unit pieces.
func (s *Storage) walk(
	address, length uint64,
	fn func(unitBase, inUnit, offset, n uint64),
) {
	offset := uint64(0)
	for offset < length {
		currAddr := address + offset
		unitBase, inUnit := s.parseAddress(currAddr)

		n := s.unitSize - inUnit
		if n > length-offset {
			n = length - offset
		}

		fn(unitBase, inUnit, offset, n)
		offset += n
	}
}
