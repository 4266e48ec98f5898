package paging

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/mmu"
	"github.com/sarchlab/vmsim/sim"
)

var _ = Describe("System", func() {
	var (
		sys *System
		m   *mmu.Comp
	)

	BeforeEach(func() {
		sys = newTestSystem(2, 8)
		m = newTestMMU(sys)
	})

	It("should refuse a second address space for a process", func() {
		_, err := sys.NewAddressSpace(1)
		Expect(err).NotTo(HaveOccurred())

		_, err = sys.NewAddressSpace(1)
		Expect(err).To(MatchError(ErrDuplicateInsertion))
	})

	It("should describe its occupancy", func() {
		as, _ := sys.NewAddressSpace(1)
		Expect(as.SetupStack()).To(Succeed())
		for i := uint64(0); i < 2; i++ {
			as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10000 + i*0x1000, Writable: true})
		}

		thread := &mmu.Thread{PID: 1, SP: sys.Layout().UserStackTop}
		Expect(m.Write(thread, 0x10000, []byte{1})).To(Succeed())
		Expect(m.Write(thread, 0x11000, []byte{1})).To(Succeed())

		st := sys.Status()

		Expect(st.NumFrames).To(Equal(2))
		Expect(st.FreeFrames).To(Equal(0))
		Expect(st.SwapUsed).To(Equal(1))
		Expect(st.Spaces).To(Equal([]SpaceStatus{{
			PID:         1,
			NumPages:    3,
			Resident:    2,
			Swapped:     1,
			StackBottom: sys.Layout().UserStackTop - 4096,
		}}))

		frames := sys.Frames()
		Expect(frames).To(HaveLen(2))
		Expect(frames[0].PID).To(Equal(vm.PID(1)))

		pages := as.PageStatuses()
		Expect(pages).To(HaveLen(3))
		Expect(pages[2].Stack).To(BeTrue())
	})

	It("should emit events for evictions", func() {
		counts := map[string]int{}
		sys.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			counts[ctx.Pos.Name]++
		}))

		as, _ := sys.NewAddressSpace(1)
		for i := uint64(0); i < 3; i++ {
			as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10000 + i*0x1000, Writable: true})
		}

		thread := &mmu.Thread{PID: 1, SP: sys.Layout().UserStackTop}
		for i := uint64(0); i < 3; i++ {
			Expect(m.Write(thread, 0x10000+i*0x1000, []byte{1})).To(Succeed())
		}

		Expect(counts[HookPosPageFault.Name]).To(Equal(3))
		Expect(counts[HookPosSwapIn.Name]).To(Equal(0))
		Expect(counts[HookPosSwapOut.Name]).To(Equal(1))
		Expect(counts[HookPosEvict.Name]).To(Equal(1))

		data, err := m.Read(thread, 0x10000, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{1}))

		Expect(counts[HookPosPageFault.Name]).To(Equal(4))
		Expect(counts[HookPosSwapIn.Name]).To(Equal(1))
		Expect(counts[HookPosSwapOut.Name]).To(Equal(2))
		Expect(counts[HookPosEvict.Name]).To(Equal(2))
	})

	It("should release everything on shutdown", func() {
		for pid := vm.PID(1); pid <= 2; pid++ {
			as, _ := sys.NewAddressSpace(pid)
			Expect(as.SetupStack()).To(Succeed())
		}

		Expect(sys.Shutdown()).To(Succeed())

		Expect(sys.Status().FreeFrames).To(Equal(2))
		Expect(sys.Status().Spaces).To(BeEmpty())
		Expect(sys.Swap().NumUsed()).To(Equal(0))
	})

	It("should classify errors", func() {
		Expect(IsRetryable(ErrOutOfMemory)).To(BeTrue())
		Expect(IsRetryable(ErrDiskFault)).To(BeTrue())
		Expect(IsRetryable(ErrInvalidAddress)).To(BeFalse())
		Expect(IsRetryable(ErrCorruptMapping)).To(BeFalse())
		Expect(IsRetryable(errors.New("other"))).To(BeFalse())
	})
})
