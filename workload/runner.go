package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/mmu"
	"github.com/sarchlab/vmsim/mem/vm/paging"
	"github.com/sarchlab/vmsim/monitoring"
)

// A Runner runs a group of agents against one paging system concurrently.
type Runner struct {
	name    string
	sys     *paging.System
	mmu     *mmu.Comp
	monitor *monitoring.Monitor
	log     logrus.FieldLogger

	processes  int
	accesses   int
	heapPages  int
	mmapPages  int
	fork       bool
	seed       int64
	rate       float64
	maxRetries uint64
}

// A Builder can build runners.
type Builder struct {
	sys        *paging.System
	mmu        *mmu.Comp
	monitor    *monitoring.Monitor
	logger     logrus.FieldLogger
	processes  int
	accesses   int
	heapPages  int
	mmapPages  int
	fork       bool
	seed       int64
	rate       float64
	maxRetries uint64
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		processes:  4,
		accesses:   1000,
		heapPages:  16,
		mmapPages:  2,
		seed:       1,
		maxRetries: 16,
	}
}

// WithSystem sets the paging system to run on.
func (b Builder) WithSystem(s *paging.System) Builder {
	b.sys = s
	return b
}

// WithMMU sets the MMU that the processes access memory through.
func (b Builder) WithMMU(m *mmu.Comp) Builder {
	b.mmu = m
	return b
}

// WithMonitor makes the runner report progress to the monitor.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// WithProcesses sets the number of processes.
func (b Builder) WithProcesses(n int) Builder {
	b.processes = n
	return b
}

// WithAccesses sets the number of accesses of every process.
func (b Builder) WithAccesses(n int) Builder {
	b.accesses = n
	return b
}

// WithHeapPages sets the number of heap pages of every process.
func (b Builder) WithHeapPages(n int) Builder {
	b.heapPages = n
	return b
}

// WithMmapPages sets the number of pages of the file every process maps.
// Zero disables the mapping.
func (b Builder) WithMmapPages(n int) Builder {
	b.mmapPages = n
	return b
}

// WithFork makes every process fork half way.
func (b Builder) WithFork(fork bool) Builder {
	b.fork = fork
	return b
}

// WithSeed sets the seed of the random accesses.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithRate limits all processes together to the given number of accesses
// per second. Zero means unlimited.
func (b Builder) WithRate(r float64) Builder {
	b.rate = r
	return b
}

// WithMaxRetries bounds the retries of an access that failed with a
// retryable error.
func (b Builder) WithMaxRetries(n uint64) Builder {
	b.maxRetries = n
	return b
}

// Build creates a runner.
func (b Builder) Build(name string) *Runner {
	if b.sys == nil || b.mmu == nil {
		panic("a runner needs a paging system and an mmu")
	}

	if b.logger == nil {
		b.logger = logrus.StandardLogger()
	}

	return &Runner{
		name:       name,
		sys:        b.sys,
		mmu:        b.mmu,
		monitor:    b.monitor,
		log:        b.logger.WithField("runner", name),
		processes:  b.processes,
		accesses:   b.accesses,
		heapPages:  b.heapPages,
		mmapPages:  b.mmapPages,
		fork:       b.fork,
		seed:       b.seed,
		rate:       b.rate,
		maxRetries: b.maxRetries,
	}
}

// Name returns the name of the runner.
func (r *Runner) Name() string {
	return r.name
}

// Run runs every process to completion and tears them down. The results
// are ordered by PID. The returned error joins the errors of all processes.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.rate), 1)
	}

	agents := make([]*Agent, r.processes)
	errs := make([]error, r.processes)

	var g errgroup.Group

	for i := range agents {
		cfg := AgentConfig{
			PID:        vm.PID(i + 1),
			ChildPID:   vm.PID(r.processes + i + 1),
			Accesses:   r.accesses,
			HeapPages:  r.heapPages,
			MmapPages:  r.mmapPages,
			Fork:       r.fork,
			Seed:       r.seed,
			MaxRetries: r.maxRetries,
		}

		var bar *monitoring.ProgressBar
		var progress ProgressReporter
		if r.monitor != nil {
			bar = r.monitor.CreateProgressBar(
				fmt.Sprintf("%s process %d", r.name, cfg.PID),
				uint64(r.accesses))
			progress = bar
		}

		agent := NewAgent(cfg, r.sys, r.mmu, limiter, progress, r.log)
		agents[i] = agent

		g.Go(func() error {
			errs[i] = r.runAgent(ctx, agent)

			if bar != nil {
				r.monitor.CompleteProgressBar(bar)
			}

			return nil
		})
	}

	_ = g.Wait()

	results := make([]Result, 0, len(agents))
	for _, a := range agents {
		results = append(results, a.Result())
	}

	return results, errors.Join(errs...)
}

func (r *Runner) runAgent(ctx context.Context, a *Agent) error {
	err := a.Setup()
	if err == nil {
		err = a.Run(ctx)
	}

	if err != nil {
		r.log.WithField("pid", a.cfg.PID).WithError(err).Error("process failed")
	}

	return errors.Join(err, a.Close())
}
