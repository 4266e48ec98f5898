package vm

// A Fault describes one faulting access as the trap reports it.
type Fault struct {
	// Addr is the faulting virtual address.
	Addr uint64

	// SP is the stack pointer at the time of the trap. It is only reliable
	// when the trap was taken from user mode.
	SP uint64

	Write      bool
	NotPresent bool
	User       bool
}

// IsProtection tells if the fault hit a present page whose permissions
// disallow the access.
func (f Fault) IsProtection() bool {
	return !f.NotPresent
}
