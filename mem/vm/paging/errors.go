package paging

import (
	"errors"
	"fmt"

	"github.com/sarchlab/vmsim/mem/vm"
)

var (
	// ErrOutOfMemory means that no frame could be allocated and no frame
	// could be evicted.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrDiskFault means that the swap store is full or a sector or file
	// transfer failed.
	ErrDiskFault = errors.New("disk fault")

	// ErrInvalidAddress means that an address is outside every valid region
	// and outside the stack growth window.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrCorruptMapping means that a file returned fewer bytes than the page
	// recorded, or that the page table disagrees with the page state.
	ErrCorruptMapping = errors.New("corrupt mapping")

	// ErrDuplicateInsertion means that a page already exists at the
	// address.
	ErrDuplicateInsertion = errors.New("duplicate page insertion")
)

// IsRetryable tells if an operation that failed with err may succeed when
// tried again after some memory is released.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrDiskFault)
}

// A FaultError reports a page fault that could not be handled. The faulting
// process is expected to be terminated.
type FaultError struct {
	PID   vm.PID
	Fault vm.Fault
	Err   error
}

func (e *FaultError) Error() string {
	access := "read"
	if e.Fault.Write {
		access = "write"
	}

	return fmt.Sprintf("process %d: %s fault at 0x%x: %v",
		e.PID, access, e.Fault.Addr, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
