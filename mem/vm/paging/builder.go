package paging

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/disk"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/memory"
	"github.com/sarchlab/vmsim/sim"
)

// userPoolBase is where the frames of the user pool start in physical
// memory. The memory below belongs to the kernel.
const userPoolBase = 1 << 20

// A Builder can build paging systems.
type Builder struct {
	log2PageSize uint64
	numFrames    uint64
	numSwapSlots uint64
	swapDisk     disk.Disk
	layout       Layout
	pageTable    vm.PageTable
	victimFinder VictimFinder
	logger       logrus.FieldLogger
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		log2PageSize: 12,
		numFrames:    64,
		numSwapSlots: 256,
		layout:       DefaultLayout(),
	}
}

// WithLog2PageSize sets the page size.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithNumFrames sets the number of frames in the user pool.
func (b Builder) WithNumFrames(n uint64) Builder {
	b.numFrames = n
	return b
}

// WithNumSwapSlots sets the number of slots of the in-memory swap disk that
// is created when no swap disk is given.
func (b Builder) WithNumSwapSlots(n uint64) Builder {
	b.numSwapSlots = n
	return b
}

// WithSwapDisk sets the disk to swap to.
func (b Builder) WithSwapDisk(d disk.Disk) Builder {
	b.swapDisk = d
	return b
}

// WithLayout sets the virtual address layout of user processes.
func (b Builder) WithLayout(l Layout) Builder {
	b.layout = l
	return b
}

// WithPageTable sets the hardware page table.
func (b Builder) WithPageTable(pt vm.PageTable) Builder {
	b.pageTable = pt
	return b
}

// WithVictimFinder sets the eviction policy.
func (b Builder) WithVictimFinder(f VictimFinder) Builder {
	b.victimFinder = f
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// Build creates the paging system.
func (b Builder) Build(name string) *System {
	b.mustBeValid()

	pageSize := uint64(1) << b.log2PageSize

	s := &System{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		log2PageSize: b.log2PageSize,
		pageSize:     pageSize,
		layout:       b.layout,
		storage:      memory.NewStorage(userPoolBase + b.numFrames*pageSize),
		allocator:    memory.NewAllocator(userPoolBase, pageSize, b.numFrames),
		frames:       NewFrameTable(),
		spaces:       make(map[vm.PID]*AddressSpace),
	}

	s.pageTable = b.pageTable
	if s.pageTable == nil {
		s.pageTable = vm.NewPageTable(b.log2PageSize)
	}

	d := b.swapDisk
	if d == nil {
		d = disk.NewMemDisk(b.numSwapSlots * pageSize / disk.SectorSize)
	}

	s.swap = swap.NewStore(d, int(pageSize))

	s.victimFinder = b.victimFinder
	if s.victimFinder == nil {
		s.victimFinder = NewClockVictimFinder()
	}

	s.logger = b.logger
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	s.logger = s.logger.WithField("system", name)

	return s
}

func (b Builder) mustBeValid() {
	if b.log2PageSize < 9 {
		panic("page size must be at least one sector")
	}

	if b.numFrames == 0 {
		panic("the user pool must have at least one frame")
	}

	pageSize := uint64(1) << b.log2PageSize
	l := b.layout

	if l.UserStackTop%pageSize != 0 || l.MaxStackSize%pageSize != 0 {
		panic("the stack must be page aligned")
	}

	if l.MaxStackSize == 0 || l.MaxStackSize > l.UserStackTop {
		panic("invalid maximum stack size")
	}

	if l.UserStackTop > l.KernelBase {
		panic("the user stack must be below the kernel")
	}
}
