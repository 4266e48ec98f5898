// Package mmu provides a memory management unit that user threads access
// memory through. It translates virtual addresses with the page table,
// maintains the accessed and dirty bits, and raises page faults.
package mmu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/memory"
)

// ErrTooManyFaults is returned when an access keeps faulting after the
// fault handler reported success.
var ErrTooManyFaults = errors.New("access faulted too many times")

// A FaultHandler resolves page faults. A returned error means that the
// faulting thread must not continue.
type FaultHandler interface {
	HandlePageFault(pid vm.PID, f vm.Fault) error
}

// A Thread is the context an access is made in.
type Thread struct {
	PID vm.PID

	// SP is the user stack pointer.
	SP uint64

	// KernelSP is the stack pointer reported for traps taken while the
	// thread runs in the kernel.
	KernelSP uint64

	// InKernel tells if the thread runs in the kernel, such as during a
	// system call that touches user memory.
	InKernel bool
}

func (t *Thread) trapSP() uint64 {
	if t.InKernel {
		return t.KernelSP
	}

	return t.SP
}

// Comp is the default mmu implementation.
type Comp struct {
	name         string
	log2PageSize uint64
	pageTable    vm.PageTable
	storage      *memory.Storage
	faultHandler FaultHandler
	locker       sync.Locker
	maxRetries   int
	logger       logrus.FieldLogger
}

// Name returns the name of the MMU.
func (c *Comp) Name() string {
	return c.name
}

// Read returns n bytes from vaddr as seen by the thread.
func (c *Comp) Read(t *Thread, vaddr uint64, n uint64) ([]byte, error) {
	res := make([]byte, n)

	err := c.walk(vaddr, n, func(va, offset, length uint64) error {
		return c.accessPage(t, va, false, func(pAddr uint64) error {
			data, err := c.storage.Read(pAddr, length)
			if err != nil {
				return err
			}

			copy(res[offset:offset+length], data)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Write stores data at vaddr as the thread.
func (c *Comp) Write(t *Thread, vaddr uint64, data []byte) error {
	return c.walk(vaddr, uint64(len(data)),
		func(va, offset, length uint64) error {
			return c.accessPage(t, va, true, func(pAddr uint64) error {
				return c.storage.Write(pAddr, data[offset:offset+length])
			})
		})
}

// walk splits [vaddr, vaddr+n) into pieces that do not cross a page.
func (c *Comp) walk(
	vaddr, n uint64,
	fn func(va, offset, length uint64) error,
) error {
	pageSize := uint64(1) << c.log2PageSize

	for offset := uint64(0); offset < n; {
		va := vaddr + offset
		length := min(pageSize-va%pageSize, n-offset)

		err := fn(va, offset, length)
		if err != nil {
			return err
		}

		offset += length
	}

	return nil
}

// accessPage translates va and calls access with the physical address while
// the translation is guaranteed to stay valid. Missing or insufficient
// translations raise a fault and the access is retried.
func (c *Comp) accessPage(
	t *Thread,
	va uint64,
	write bool,
	access func(pAddr uint64) error,
) error {
	for i := 0; i <= c.maxRetries; i++ {
		done, present, err := c.tryAccess(t.PID, va, write, access)
		if done || err != nil {
			return err
		}

		fault := vm.Fault{
			Addr:       va,
			SP:         t.trapSP(),
			Write:      write,
			NotPresent: !present,
			User:       !t.InKernel,
		}

		c.logger.WithFields(logrus.Fields{
			"pid":     t.PID,
			"vaddr":   fmt.Sprintf("0x%x", va),
			"write":   write,
			"present": present,
		}).Trace("page fault")

		err = c.faultHandler.HandlePageFault(t.PID, fault)
		if err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: process %d at 0x%x", ErrTooManyFaults, t.PID, va)
}

func (c *Comp) tryAccess(
	pid vm.PID,
	va uint64,
	write bool,
	access func(pAddr uint64) error,
) (done, present bool, err error) {
	c.locker.Lock()
	defer c.locker.Unlock()

	pte, found := c.pageTable.Find(pid, va)
	if !found {
		return false, false, nil
	}

	if write && !pte.Writable {
		return false, true, nil
	}

	offset := va & (uint64(1)<<c.log2PageSize - 1)

	err = access(pte.PAddr + offset)
	if err != nil {
		return false, true, err
	}

	c.pageTable.SetAccessed(pid, va, true)

	if write {
		c.pageTable.SetDirty(pid, va, true)
	}

	return true, true, nil
}
