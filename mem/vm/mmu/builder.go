package mmu

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/memory"
)

// A Builder can build MMU component
type Builder struct {
	log2PageSize uint64
	pageTable    vm.PageTable
	storage      *memory.Storage
	faultHandler FaultHandler
	locker       sync.Locker
	maxRetries   int
	logger       logrus.FieldLogger
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		log2PageSize: 12,
		maxRetries:   4,
	}
}

// WithLog2PageSize sets the page size that the mmu support.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithPageTable sets the page table that the MMU uses.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithStorage sets the physical memory that translated accesses reach.
func (b Builder) WithStorage(s *memory.Storage) Builder {
	b.storage = s
	return b
}

// WithFaultHandler sets the handler that page faults are raised to.
func (b Builder) WithFaultHandler(h FaultHandler) Builder {
	b.faultHandler = h
	return b
}

// WithLocker sets the lock that keeps a frame from being evicted while it
// is accessed. It must be the lock of the paging system that evicts frames.
func (b Builder) WithLocker(l sync.Locker) Builder {
	b.locker = l
	return b
}

// WithMaxRetries sets how many faults one page access may raise before it
// gives up.
func (b Builder) WithMaxRetries(n int) Builder {
	b.maxRetries = n
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// Build returns a newly created MMU component
func (b Builder) Build(name string) *Comp {
	if b.pageTable == nil || b.storage == nil || b.faultHandler == nil {
		panic("an MMU needs a page table, a storage, and a fault handler")
	}

	mmu := &Comp{
		name:         name,
		log2PageSize: b.log2PageSize,
		pageTable:    b.pageTable,
		storage:      b.storage,
		faultHandler: b.faultHandler,
		locker:       b.locker,
		maxRetries:   b.maxRetries,
		logger:       b.logger,
	}

	if mmu.locker == nil {
		mmu.locker = &sync.Mutex{}
	}

	if mmu.logger == nil {
		mmu.logger = logrus.StandardLogger()
	}

	mmu.logger = mmu.logger.WithField("mmu", name)

	return mmu
}
