// Package workload drives paging systems with processes that make random
// memory accesses through an MMU and check every value they read back.
package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sarchlab/vmsim/mem/vfs"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/mmu"
	"github.com/sarchlab/vmsim/mem/vm/paging"
)

// ErrMismatch is returned when a process reads a value other than the one it
// last wrote.
var ErrMismatch = errors.New("memory content mismatch")

// Virtual addresses of the regions of an agent.
const (
	DataBase = uint64(0x08000000)
	HeapBase = uint64(0x10000000)
	MmapBase = uint64(0x20000000)
)

const (
	accessSize = 4
	frameSize  = 256
)

// A ProgressReporter is told about every finished access.
type ProgressReporter interface {
	IncrementInProgress(amount uint64)
	MoveInProgressToFinished(amount uint64)
}

// AgentConfig describes the process an agent runs.
type AgentConfig struct {
	PID       vm.PID
	ChildPID  vm.PID
	Accesses  int
	HeapPages int
	MmapPages int
	Fork      bool
	Seed      int64

	// MaxStackPages bounds how deep the agent pushes onto its stack.
	MaxStackPages int

	// MaxRetries bounds the retries of an access that failed with a
	// retryable error.
	MaxRetries uint64
}

// Result summarizes what an agent did.
type Result struct {
	PID      vm.PID
	Reads    int
	Writes   int
	Pushes   int
	Pops     int
	MapReads int
	Retries  int
	Forked   bool
}

// An Agent is one process of a workload.
type Agent struct {
	cfg      AgentConfig
	sys      *paging.System
	mmu      *mmu.Comp
	limiter  *rate.Limiter
	progress ProgressReporter
	log      logrus.FieldLogger

	rng      *rand.Rand
	pageSize uint64
	thread   *mmu.Thread

	file      *vfs.MemFile
	fileBytes []byte

	heap   []byte
	data   []byte
	frames [][]byte

	result Result
}

// NewAgent creates an agent. The limiter and the progress reporter may be
// nil.
func NewAgent(
	cfg AgentConfig,
	sys *paging.System,
	m *mmu.Comp,
	limiter *rate.Limiter,
	progress ProgressReporter,
	logger logrus.FieldLogger,
) *Agent {
	if cfg.MaxStackPages <= 0 {
		cfg.MaxStackPages = 4
	}

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	pageSize := sys.PageSize()

	return &Agent{
		cfg:      cfg,
		sys:      sys,
		mmu:      m,
		limiter:  limiter,
		progress: progress,
		log:      logger.WithField("pid", cfg.PID),
		rng:      rand.New(rand.NewSource(cfg.Seed + int64(cfg.PID))),
		pageSize: pageSize,
		thread: &mmu.Thread{
			PID: cfg.PID,
			SP:  sys.Layout().UserStackTop,
		},
		heap: make([]byte, uint64(cfg.HeapPages)*pageSize),
		result: Result{
			PID: cfg.PID,
		},
	}
}

// Result returns what the agent has done so far.
func (a *Agent) Result() Result {
	return a.result
}

// Setup creates the address space: a stack page, a lazily allocated heap,
// a data page loaded from a file, and a read-only mapping of the same file.
func (a *Agent) Setup() error {
	if MmapBase+uint64(a.cfg.MmapPages+1)*a.pageSize >
		a.sys.Layout().StackLimit() {
		return fmt.Errorf("%w: the regions of the agent overlap the stack",
			paging.ErrInvalidAddress)
	}

	as, err := a.sys.NewAddressSpace(a.cfg.PID)
	if err != nil {
		return err
	}

	err = a.retry(as.SetupStack)
	if err != nil {
		return err
	}

	for i := 0; i < a.cfg.HeapPages; i++ {
		_, err = as.AllocPage(paging.PageSpec{
			Kind:     paging.KindAnon,
			VAddr:    HeapBase + uint64(i)*a.pageSize,
			Writable: true,
		})
		if err != nil {
			return err
		}
	}

	return a.setupFile(as)
}

// setupFile creates a file that ends in the middle of a page so that the
// zeroed tail of the mapping is exercised too.
func (a *Agent) setupFile(as *paging.AddressSpace) error {
	length := a.pageSize / 2
	if a.cfg.MmapPages > 0 {
		length = uint64(a.cfg.MmapPages)*a.pageSize - a.pageSize/2
	}

	a.fileBytes = make([]byte, length)
	a.rng.Read(a.fileBytes)
	a.file = vfs.NewMemFile(fmt.Sprintf("agent%d.bin", a.cfg.PID),
		a.fileBytes)

	readBytes := min(length, a.pageSize)
	a.data = make([]byte, a.pageSize)
	copy(a.data, a.fileBytes[:readBytes])

	_, err := as.AllocPage(paging.PageSpec{
		Kind:     paging.KindAnon,
		VAddr:    DataBase,
		Writable: true,
		Init:     paging.LoadSegment,
		Aux: &paging.FileSegment{
			File:      a.file,
			ReadBytes: int(readBytes),
		},
	})
	if err != nil {
		return err
	}

	if a.cfg.MmapPages == 0 {
		return nil
	}

	_, err = as.Map(MmapBase, length, false, a.file, 0)

	return err
}

// Run makes the configured number of accesses. A process that is configured
// to fork does so half way.
func (a *Agent) Run(ctx context.Context) error {
	for i := 0; i < a.cfg.Accesses; i++ {
		if a.cfg.Fork && i == a.cfg.Accesses/2 {
			err := a.forkAndCheck()
			if err != nil {
				return fmt.Errorf("process %d fork: %w", a.cfg.PID, err)
			}
		}

		err := a.limiter.Wait(ctx)
		if err != nil {
			return err
		}

		if a.progress != nil {
			a.progress.IncrementInProgress(1)
		}

		err = a.step()
		if err != nil {
			return fmt.Errorf("process %d access %d: %w", a.cfg.PID, i, err)
		}

		if a.progress != nil {
			a.progress.MoveInProgressToFinished(1)
		}
	}

	return nil
}

func (a *Agent) step() error {
	switch n := a.rng.Intn(100); {
	case n < 40:
		return a.writeHeap()
	case n < 70:
		return a.readHeap()
	case n < 80:
		return a.accessData()
	case n < 90:
		return a.readMapping()
	default:
		return a.pushOrPop()
	}
}

func (a *Agent) randomOffset(size uint64) uint64 {
	return uint64(a.rng.Int63n(int64(size/accessSize))) * accessSize
}

func (a *Agent) writeHeap() error {
	offset := a.randomOffset(uint64(len(a.heap)))
	value := make([]byte, accessSize)
	a.rng.Read(value)

	err := a.retry(func() error {
		return a.mmu.Write(a.thread, HeapBase+offset, value)
	})
	if err != nil {
		return err
	}

	copy(a.heap[offset:], value)
	a.result.Writes++

	return nil
}

func (a *Agent) readHeap() error {
	offset := a.randomOffset(uint64(len(a.heap)))

	err := a.readAndCompare(HeapBase+offset, a.heap[offset:offset+accessSize])
	if err != nil {
		return err
	}

	a.result.Reads++

	return nil
}

func (a *Agent) accessData() error {
	offset := a.randomOffset(a.pageSize)

	if a.rng.Intn(2) == 0 {
		err := a.readAndCompare(DataBase+offset,
			a.data[offset:offset+accessSize])
		if err != nil {
			return err
		}

		a.result.Reads++

		return nil
	}

	value := make([]byte, accessSize)
	a.rng.Read(value)

	err := a.retry(func() error {
		return a.mmu.Write(a.thread, DataBase+offset, value)
	})
	if err != nil {
		return err
	}

	copy(a.data[offset:], value)
	a.result.Writes++

	return nil
}

func (a *Agent) readMapping() error {
	if a.cfg.MmapPages == 0 {
		return a.readHeap()
	}

	size := uint64(a.cfg.MmapPages) * a.pageSize
	offset := a.randomOffset(size)

	expected := make([]byte, accessSize)
	if offset < uint64(len(a.fileBytes)) {
		copy(expected, a.fileBytes[offset:])
	}

	err := a.readAndCompare(MmapBase+offset, expected)
	if err != nil {
		return err
	}

	a.result.MapReads++

	return nil
}

// pushOrPop pushes a frame onto the stack or pops the last one and checks
// its content.
func (a *Agent) pushOrPop() error {
	maxFrames := a.cfg.MaxStackPages * int(a.pageSize) / frameSize
	if len(a.frames) > 0 && (len(a.frames) >= maxFrames || a.rng.Intn(3) == 0) {
		return a.pop()
	}

	return a.push()
}

func (a *Agent) push() error {
	frame := make([]byte, frameSize)
	a.rng.Read(frame)

	sp := a.thread.SP - frameSize
	a.thread.SP = sp

	err := a.retry(func() error {
		return a.mmu.Write(a.thread, sp, frame)
	})
	if err != nil {
		a.thread.SP += frameSize
		return err
	}

	a.frames = append(a.frames, frame)
	a.result.Pushes++

	return nil
}

func (a *Agent) pop() error {
	last := a.frames[len(a.frames)-1]

	err := a.readAndCompare(a.thread.SP, last)
	if err != nil {
		return err
	}

	a.frames = a.frames[:len(a.frames)-1]
	a.thread.SP += frameSize
	a.result.Pops++

	return nil
}

func (a *Agent) readAndCompare(vaddr uint64, expected []byte) error {
	return a.readAndCompareAs(a.thread, vaddr, expected)
}

func (a *Agent) readAndCompareAs(
	t *mmu.Thread,
	vaddr uint64,
	expected []byte,
) error {
	var data []byte

	err := a.retry(func() error {
		var err error
		data, err = a.mmu.Read(t, vaddr, uint64(len(expected)))

		return err
	})
	if err != nil {
		return err
	}

	for i := range expected {
		if data[i] != expected[i] {
			return fmt.Errorf("%w: process %d at 0x%x: read %x, expected %x",
				ErrMismatch, t.PID, vaddr+uint64(i), data[i], expected[i])
		}
	}

	return nil
}

// forkAndCheck forks the process, checks that the child sees the memory of
// the parent, writes into the child, checks that the parent did not change,
// and destroys the child.
func (a *Agent) forkAndCheck() (err error) {
	err = a.retry(func() error {
		_, err := a.sys.Fork(a.cfg.PID, a.cfg.ChildPID)
		return err
	})
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, a.sys.DestroyAddressSpace(a.cfg.ChildPID))
	}()

	child := &mmu.Thread{PID: a.cfg.ChildPID, SP: a.thread.SP}

	err = a.checkChild(child)
	if err != nil {
		return err
	}

	a.result.Forked = true
	a.log.Debug("fork checked")

	return nil
}

func (a *Agent) checkChild(child *mmu.Thread) error {
	for page := uint64(0); page < uint64(a.cfg.HeapPages); page++ {
		offset := page*a.pageSize + a.randomOffset(a.pageSize)
		expected := a.heap[offset : offset+accessSize]

		err := a.readAndCompareAs(child, HeapBase+offset, expected)
		if err != nil {
			return err
		}
	}

	err := a.readAndCompareAs(child, DataBase, a.data)
	if err != nil {
		return err
	}

	if len(a.frames) > 0 {
		err = a.readAndCompareAs(child, child.SP, a.frames[len(a.frames)-1])
		if err != nil {
			return err
		}
	}

	offset := a.randomOffset(uint64(len(a.heap)))
	scribble := make([]byte, accessSize)
	for i := range scribble {
		scribble[i] = ^a.heap[offset+uint64(i)]
	}

	err = a.retry(func() error {
		return a.mmu.Write(child, HeapBase+offset, scribble)
	})
	if err != nil {
		return err
	}

	err = a.readAndCompareAs(child, HeapBase+offset, scribble)
	if err != nil {
		return err
	}

	return a.readAndCompare(HeapBase+offset, a.heap[offset:offset+accessSize])
}

// retry runs op again, with exponential backoff, while it fails with a
// retryable error.
func (a *Agent) retry(op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 20 * time.Millisecond
	b.MaxElapsedTime = 0

	attempt := 0

	return backoff.Retry(func() error {
		if attempt > 0 {
			a.result.Retries++
		}
		attempt++

		err := op()
		if err != nil && !paging.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}, backoff.WithMaxRetries(b, a.cfg.MaxRetries))
}

// Close destroys the address space of the agent.
func (a *Agent) Close() error {
	var err error

	if a.sys.AddressSpace(a.cfg.PID) != nil {
		err = a.sys.DestroyAddressSpace(a.cfg.PID)
	}

	if a.file != nil {
		err = errors.Join(err, a.file.Close())
	}

	return err
}
