package workload

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/monitoring"
)

var _ = Describe("Runner", func() {
	It("should run processes concurrently on a small memory", func() {
		sys, m := newTestSystem(6, 128)

		r := MakeBuilder().
			WithSystem(sys).
			WithMMU(m).
			WithLogger(testLogger()).
			WithProcesses(3).
			WithAccesses(300).
			WithHeapPages(6).
			WithFork(true).
			Build("Runner")

		results, err := r.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for i, res := range results {
			Expect(res.PID).To(Equal(vm.PID(i + 1)))
			Expect(res.Forked).To(BeTrue())
		}

		st := sys.Status()
		Expect(st.Spaces).To(BeEmpty())
		Expect(st.FreeFrames).To(Equal(st.NumFrames))
	})

	It("should pace accesses and report progress", func() {
		sys, m := newTestSystem(8, 64)
		monitor := monitoring.NewMonitor().WithLogger(testLogger())

		r := MakeBuilder().
			WithSystem(sys).
			WithMMU(m).
			WithMonitor(monitor).
			WithLogger(testLogger()).
			WithProcesses(2).
			WithAccesses(20).
			WithRate(2000).
			Build("Runner")

		results, err := r.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
	})

	It("should report the processes that failed", func() {
		sys, m := newTestSystem(1, 0)

		r := MakeBuilder().
			WithSystem(sys).
			WithMMU(m).
			WithLogger(testLogger()).
			WithProcesses(2).
			WithAccesses(50).
			WithMaxRetries(1).
			Build("Runner")

		_, err := r.Run(context.Background())

		Expect(err).To(HaveOccurred())
		Expect(sys.Status().Spaces).To(BeEmpty())
	})

	It("should need a system and an mmu", func() {
		Expect(func() { MakeBuilder().Build("Runner") }).To(Panic())
	})
})
