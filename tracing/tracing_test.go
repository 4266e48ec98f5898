package tracing_test

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/paging"
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/sim"
	"github.com/sarchlab/vmsim/tracing"
)

var _ = Describe("StatsCollector", func() {
	It("should count events per position and faults per process", func() {
		c := tracing.NewStatsCollector()

		c.Func(sim.HookCtx{
			Pos:  paging.HookPosPageFault,
			Item: paging.Event{PID: 1},
		})
		c.Func(sim.HookCtx{
			Pos:  paging.HookPosPageFault,
			Item: paging.Event{PID: 2},
		})
		c.Func(sim.HookCtx{
			Pos:  paging.HookPosSwapOut,
			Item: paging.Event{PID: 1},
		})

		s := c.Snapshot()

		expected := tracing.Stats{
			Counts: map[string]uint64{"PageFault": 2, "SwapOut": 1},
			Faults: map[vm.PID]uint64{1: 1, 2: 1},
		}
		Expect(cmp.Diff(expected, s)).To(BeEmpty())
		Expect(s.Names()).To(Equal([]string{"PageFault", "SwapOut"}))
		Expect(c.Count(paging.HookPosSwapOut)).To(Equal(uint64(1)))
	})
})

var _ = Describe("EventRecorder", func() {
	It("should write one row per event", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		writer := datarecording.New(path)
		r := tracing.NewEventRecorder(writer)

		r.Func(sim.HookCtx{
			Pos: paging.HookPosSwapOut,
			Item: paging.Event{
				System: "Paging",
				PID:    1,
				VAddr:  0x10000,
				Kind:   paging.KindAnon,
				Slot:   swap.Slot(3),
			},
		})
		r.Func(sim.HookCtx{
			Pos: paging.HookPosFaultRejected,
			Item: paging.Event{
				PID: 1,
				Err: errors.New("invalid address"),
			},
		})
		r.Func(sim.HookCtx{Pos: paging.HookPosMap, Item: "not an event"})
		Expect(writer.Close()).To(Succeed())

		reader := datarecording.NewReader(path + ".sqlite3")
		defer reader.Close()

		count, err := reader.CountRows(context.Background(),
			tracing.EventTableName)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})
})

var _ = Describe("ReadEvents", func() {
	var reader datarecording.DataReader

	BeforeEach(func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		writer := datarecording.New(path)
		r := tracing.NewEventRecorder(writer)

		for i, pid := range []vm.PID{1, 2, 1, 1} {
			pos := paging.HookPosPageFault
			if i == 3 {
				pos = paging.HookPosSwapOut
			}

			r.Func(sim.HookCtx{
				Pos: pos,
				Item: paging.Event{
					System: "Paging",
					PID:    pid,
					VAddr:  0x10000 + uint64(i)*0x1000,
					Kind:   paging.KindAnon,
				},
			})
		}
		Expect(writer.Close()).To(Succeed())

		reader = datarecording.NewReader(path + ".sqlite3")
		DeferCleanup(reader.Close)
	})

	It("should read every event in order", func() {
		events, total, err := tracing.ReadEvents(context.Background(), reader,
			tracing.EventQuery{})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(4))
		Expect(events).To(HaveLen(4))
		for i, e := range events {
			Expect(e.VAddr).To(Equal(0x10000 + uint64(i)*0x1000))
			Expect(e.System).To(Equal("Paging"))
			Expect(e.Kind).To(Equal("anon"))
		}
	})

	It("should select events by process and position", func() {
		events, total, err := tracing.ReadEvents(context.Background(), reader,
			tracing.EventQuery{PID: 1, Position: "PageFault", Limit: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
		Expect(events).To(HaveLen(1))
		Expect(events[0].PID).To(Equal(uint32(1)))
		Expect(events[0].Position).To(Equal("PageFault"))
		Expect(events[0].VAddr).To(Equal(uint64(0x10000)))
	})
})
