package paging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/vfs"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/mmu"
	"github.com/sarchlab/vmsim/mem/vm/swap"
)

var _ = Describe("AddressSpace", func() {
	var (
		sys    *System
		as     *AddressSpace
		m      *mmu.Comp
		thread *mmu.Thread
	)

	BeforeEach(func() {
		sys = newTestSystem(8, 16)
		m = newTestMMU(sys)

		var err error
		as, err = sys.NewAddressSpace(1)
		Expect(err).NotTo(HaveOccurred())

		thread = &mmu.Thread{PID: 1, SP: sys.Layout().UserStackTop}
	})

	Context("supplemental page table", func() {
		It("should find a page from any address in it", func() {
			p, err := as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10000})
			Expect(err).NotTo(HaveOccurred())

			Expect(as.Find(0x10000)).To(BeIdenticalTo(p))
			Expect(as.Find(0x10abc)).To(BeIdenticalTo(p))
			Expect(as.Find(0x10fff)).To(BeIdenticalTo(p))
			Expect(as.Find(0x11000)).To(BeNil())
		})

		It("should align the address of a new page", func() {
			p, _ := as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10123})

			Expect(p.VAddr()).To(Equal(uint64(0x10000)))
		})

		It("should reject a second page at the same address", func() {
			first, _ := as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10000})
			second := as.NewPage(PageSpec{Kind: KindAnon, VAddr: 0x10800})

			err := as.Insert(second)

			Expect(err).To(MatchError(ErrDuplicateInsertion))
			Expect(IsRetryable(err)).To(BeFalse())
			Expect(as.Find(0x10000)).To(BeIdenticalTo(first))
			Expect(as.NumPages()).To(Equal(1))
		})

		It("should reject kernel addresses", func() {
			_, err := as.AllocPage(PageSpec{
				Kind:  KindAnon,
				VAddr: sys.Layout().KernelBase,
			})

			Expect(err).To(MatchError(ErrInvalidAddress))
		})

		It("should leave file pages to Map", func() {
			spec := PageSpec{
				Kind:  KindFile,
				VAddr: 0x10000,
				Aux: &FileSegment{
					File:      vfs.NewMemFile("f.bin", make([]byte, 4096)),
					ReadBytes: 4096,
				},
			}

			_, err := as.AllocPage(spec)

			Expect(err).To(MatchError(ErrInvalidAddress))
			Expect(as.NumPages()).To(Equal(0))
			Expect(func() { as.NewPage(spec) }).To(Panic())
		})

		It("should release the frame of a removed page", func() {
			p, _ := as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10000})
			Expect(as.Claim(0x10000)).To(Succeed())
			Expect(sys.Status().FreeFrames).To(Equal(7))

			Expect(as.Remove(p)).To(Succeed())

			Expect(as.Find(0x10000)).To(BeNil())
			Expect(sys.Status().FreeFrames).To(Equal(8))
			_, found := sys.PageTable().Find(1, 0x10000)
			Expect(found).To(BeFalse())
		})

		It("should fail to claim an address without a page", func() {
			Expect(as.Claim(0x10000)).To(MatchError(ErrInvalidAddress))
		})
	})

	Context("anonymous pages", func() {
		It("should be lazy and zero filled", func() {
			p, _ := as.AllocPage(PageSpec{
				Kind:     KindAnon,
				VAddr:    0x10000,
				Writable: true,
			})
			Expect(p.Kind()).To(Equal(KindUninit))
			Expect(p.Type()).To(Equal(KindAnon))
			Expect(p.Resident()).To(BeFalse())

			data, err := m.Read(thread, 0x10010, 16)

			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(make([]byte, 16)))
			Expect(p.Kind()).To(Equal(KindAnon))
			Expect(p.Resident()).To(BeTrue())
			Expect(p.Frame().Page()).To(BeIdenticalTo(p))
		})

		It("should run the initializer on first touch", func() {
			fill := func(_ *Page, data []byte, aux any) error {
				data[0] = *aux.(*byte)
				return nil
			}
			b := byte(42)
			as.AllocPage(PageSpec{
				Kind:  KindAnon,
				VAddr: 0x10000,
				Init:  fill,
				Aux:   &b,
			})

			data, err := m.Read(thread, 0x10000, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{42}))
		})

		It("should release the frame when the initializer fails", func() {
			fail := func(*Page, []byte, any) error { return ErrCorruptMapping }
			p, _ := as.AllocPage(PageSpec{
				Kind:  KindAnon,
				VAddr: 0x10000,
				Init:  fail,
			})

			_, err := m.Read(thread, 0x10000, 1)

			Expect(err).To(MatchError(ErrCorruptMapping))
			Expect(p.Resident()).To(BeFalse())
			Expect(p.Kind()).To(Equal(KindUninit))
			Expect(sys.Status().FreeFrames).To(Equal(8))
		})
	})
})

var _ = Describe("Eviction", func() {
	var (
		sys    *System
		as     *AddressSpace
		m      *mmu.Comp
		thread *mmu.Thread
	)

	BeforeEach(func() {
		sys = newTestSystem(2, 4)
		m = newTestMMU(sys)
		as, _ = sys.NewAddressSpace(1)
		thread = &mmu.Thread{PID: 1, SP: sys.Layout().UserStackTop}

		for i := uint64(0); i < 3; i++ {
			_, err := as.AllocPage(PageSpec{
				Kind:     KindAnon,
				VAddr:    0x10000 + i*0x1000,
				Writable: true,
			})
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("should swap a victim out and restore it intact", func() {
		contents := make([][]byte, 3)
		for i := range contents {
			contents[i] = pattern(4096, byte(i+1))
			err := m.Write(thread, 0x10000+uint64(i)*0x1000, contents[i])
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(sys.Swap().NumUsed()).To(Equal(1))
		Expect(as.Find(0x10000).Resident()).To(BeFalse())
		Expect(as.Find(0x10000).SwapSlot()).To(Equal(swap.Slot(0)))

		for i := range contents {
			data, err := m.Read(thread, 0x10000+uint64(i)*0x1000, 4096)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(contents[i]))
		}
	})

	It("should evict pages of other processes", func() {
		other, _ := sys.NewAddressSpace(2)
		other.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10000, Writable: true})
		otherThread := &mmu.Thread{PID: 2, SP: sys.Layout().UserStackTop}

		Expect(m.Write(otherThread, 0x10000, []byte{7})).To(Succeed())
		Expect(m.Write(thread, 0x10000, []byte{1})).To(Succeed())
		Expect(m.Write(thread, 0x11000, []byte{2})).To(Succeed())

		Expect(other.Find(0x10000).Resident()).To(BeFalse())
		_, found := sys.PageTable().Find(2, 0x10000)
		Expect(found).To(BeFalse())

		data, err := m.Read(otherThread, 0x10000, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{7}))
	})

	It("should fail with a retryable error when swap is full", func() {
		sys = newTestSystem(1, 0)
		m = newTestMMU(sys)
		as, _ = sys.NewAddressSpace(1)
		as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x10000, Writable: true})
		as.AllocPage(PageSpec{Kind: KindAnon, VAddr: 0x11000, Writable: true})

		Expect(m.Write(thread, 0x10000, []byte{5})).To(Succeed())
		err := m.Write(thread, 0x11000, []byte{6})

		Expect(err).To(MatchError(ErrOutOfMemory))
		Expect(err).To(MatchError(ErrDiskFault))
		Expect(IsRetryable(err)).To(BeTrue())

		var faultErr *FaultError
		Expect(err).To(BeAssignableToTypeOf(faultErr))

		data, err := m.Read(thread, 0x10000, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{5}))
	})

	It("should free the swap slot of a destroyed page", func() {
		for i := uint64(0); i < 3; i++ {
			Expect(m.Write(thread, 0x10000+i*0x1000, []byte{1})).To(Succeed())
		}
		Expect(sys.Swap().NumUsed()).To(Equal(1))

		Expect(sys.DestroyAddressSpace(1)).To(Succeed())

		Expect(sys.Swap().NumUsed()).To(Equal(0))
		Expect(sys.Status().FreeFrames).To(Equal(2))
		Expect(sys.AddressSpace(vm.PID(1))).To(BeNil())
	})
})
