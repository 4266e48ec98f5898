package paging

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/vm"
)

// stackSlack is how far below the stack pointer an access may fault and
// still count as a stack access. A push writes 8 bytes below the pointer
// before moving it.
const stackSlack = 8

// HandleFault resolves a fault raised by the owner of the address space.
func (as *AddressSpace) HandleFault(f vm.Fault) error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.handleFault(f)
}

func (as *AddressSpace) handleFault(f vm.Fault) error {
	layout := as.sys.layout

	if layout.IsKernel(f.Addr) {
		return fmt.Errorf("%w: 0x%x is a kernel address",
			ErrInvalidAddress, f.Addr)
	}

	sp := as.stackPointer(f)

	if f.IsProtection() {
		return fmt.Errorf("%w: protection violation at 0x%x",
			ErrInvalidAddress, f.Addr)
	}

	p := as.find(f.Addr)
	if p != nil {
		if p.frame != nil {
			return fmt.Errorf("%w: page 0x%x is resident but not mapped",
				ErrCorruptMapping, p.vaddr)
		}

		return as.claimPage(p)
	}

	if !as.inStackWindow(f.Addr, sp) {
		return fmt.Errorf("%w: no page at 0x%x", ErrInvalidAddress, f.Addr)
	}

	target := as.sys.pageAlign(f.Addr)
	for as.stackBottom > target {
		err := as.growStack(as.stackBottom - as.sys.pageSize)
		if err != nil {
			return err
		}
	}

	// The stack bottom is above a page that was unmapped or never grown
	// into, such as after the stack page was removed explicitly.
	if as.find(f.Addr) == nil {
		return as.growStack(target)
	}

	return nil
}

// stackPointer resolves the user stack pointer of the faulting thread. A
// trap taken in kernel mode reports the kernel stack pointer, so the value
// saved at the last entry from user mode is used instead.
func (as *AddressSpace) stackPointer(f vm.Fault) uint64 {
	if as.sys.layout.IsKernel(f.SP) {
		return as.userSP
	}

	if f.User {
		as.userSP = f.SP
	}

	return f.SP
}

func (as *AddressSpace) inStackWindow(addr, sp uint64) bool {
	l := as.sys.layout

	return addr+stackSlack >= sp &&
		addr >= l.StackLimit() &&
		addr < l.UserStackTop
}

// GrowStack adds a stack page at the address and makes it resident. The
// caller decides if the address is within the stack limit.
func (as *AddressSpace) GrowStack(vaddr uint64) error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.growStack(as.sys.pageAlign(vaddr))
}

func (as *AddressSpace) growStack(vaddr uint64) error {
	p, err := as.allocPage(PageSpec{
		Kind:     KindAnon,
		Marker:   MarkerStack,
		VAddr:    vaddr,
		Writable: true,
	})
	if err != nil {
		return err
	}

	err = as.claimPage(p)
	if err != nil {
		delete(as.pages, p.vaddr)
		as.discardPage(p)

		return err
	}

	if vaddr < as.stackBottom {
		as.stackBottom = vaddr
	}

	as.sys.logger.WithFields(logrus.Fields{
		"pid":   as.pid,
		"vaddr": fmt.Sprintf("0x%x", vaddr),
	}).Debug("stack grown")

	as.sys.emit(HookPosStackGrowth, pageEvent(p))

	return nil
}

// SetupStack creates the first stack page just below the stack top.
func (as *AddressSpace) SetupStack() error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.growStack(as.sys.layout.UserStackTop - as.sys.pageSize)
}

// SetUserSP records the user stack pointer, as the kernel does when a thread
// enters it from user mode.
func (as *AddressSpace) SetUserSP(sp uint64) {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	as.userSP = sp
}

// StackBottom returns the lowest address of the stack grown so far.
func (as *AddressSpace) StackBottom() uint64 {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.stackBottom
}
