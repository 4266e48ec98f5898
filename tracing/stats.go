package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/paging"
	"github.com/sarchlab/vmsim/sim"
)

// Stats is a snapshot of the counters of a StatsCollector.
type Stats struct {
	// Counts maps a hook position name to the number of events.
	Counts map[string]uint64

	// Faults maps a process to the number of page faults it resolved.
	Faults map[vm.PID]uint64
}

// Names returns the position names that have been counted, sorted.
func (s Stats) Names() []string {
	names := make([]string, 0, len(s.Counts))
	for name := range s.Counts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// StatsCollector is a hook that counts paging events per hook position.
type StatsCollector struct {
	lock   sync.Mutex
	counts map[string]uint64
	faults map[vm.PID]uint64
}

// NewStatsCollector creates a StatsCollector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		counts: make(map[string]uint64),
		faults: make(map[vm.PID]uint64),
	}
}

// Func counts the event.
func (c *StatsCollector) Func(ctx sim.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.counts[ctx.Pos.Name]++

	if ctx.Pos == paging.HookPosPageFault {
		e := ctx.Item.(paging.Event)
		c.faults[e.PID]++
	}
}

// Count returns the number of events seen at the position.
func (c *StatsCollector) Count(pos *sim.HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.counts[pos.Name]
}

// Snapshot returns a copy of the counters.
func (c *StatsCollector) Snapshot() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()

	s := Stats{
		Counts: make(map[string]uint64, len(c.counts)),
		Faults: make(map[vm.PID]uint64, len(c.faults)),
	}

	for k, v := range c.counts {
		s.Counts[k] = v
	}

	for k, v := range c.faults {
		s.Faults[k] = v
	}

	return s
}
