// Package tracing turns the events of a paging system into records and
// counters.
package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/vm/paging"
	"github.com/sarchlab/vmsim/sim"
)

// EventTableName is the table the EventRecorder writes into.
const EventTableName = "paging_events"

// An EventEntry is one row of the event table.
type EventEntry struct {
	ID       string
	Time     float64
	System   string
	Position string
	PID      uint32
	VAddr    uint64
	Kind     string
	Frame    uint64
	Slot     int
	Length   int
	Error    string
}

// EventRecorder is a hook that writes one row per paging event.
type EventRecorder struct {
	lock     sync.Mutex
	recorder datarecording.DataRecorder
	idGen    sim.IDGenerator
	start    time.Time
}

// NewEventRecorder creates an EventRecorder and the table it writes into.
func NewEventRecorder(recorder datarecording.DataRecorder) *EventRecorder {
	recorder.CreateTable(EventTableName, EventEntry{})

	return &EventRecorder{
		recorder: recorder,
		idGen:    sim.GetIDGenerator(),
		start:    time.Now(),
	}
}

// Func records the event carried by the hook context. Contexts that do not
// carry a paging event are ignored.
func (r *EventRecorder) Func(ctx sim.HookCtx) {
	e, ok := ctx.Item.(paging.Event)
	if !ok {
		return
	}

	entry := EventEntry{
		ID:       r.idGen.Generate(),
		Time:     time.Since(r.start).Seconds(),
		System:   e.System,
		Position: ctx.Pos.Name,
		PID:      uint32(e.PID),
		VAddr:    e.VAddr,
		Kind:     e.Kind.String(),
		Frame:    e.Frame,
		Slot:     int(e.Slot),
		Length:   e.Length,
	}

	if e.Err != nil {
		entry.Error = e.Err.Error()
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.recorder.InsertData(EventTableName, entry)
}
