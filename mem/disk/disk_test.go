package disk_test

import (
	"bytes"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/disk"
)

func sector(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, disk.SectorSize)
}

func behavesLikeADisk(newDisk func() disk.Disk) {
	var d disk.Disk

	BeforeEach(func() {
		d = newDisk()
	})

	It("should report its size", func() {
		Expect(d.Size()).To(Equal(uint64(4)))
	})

	It("should read back what was written", func() {
		Expect(d.Write(2, sector(0xab))).To(Succeed())

		buf := make([]byte, disk.SectorSize)
		Expect(d.Read(2, buf)).To(Succeed())
		Expect(buf).To(Equal(sector(0xab)))
	})

	It("should keep sectors independent", func() {
		Expect(d.Write(0, sector(1))).To(Succeed())
		Expect(d.Write(1, sector(2))).To(Succeed())

		buf := make([]byte, disk.SectorSize)
		Expect(d.Read(0, buf)).To(Succeed())
		Expect(buf).To(Equal(sector(1)))
	})

	It("should read zeros from a fresh sector", func() {
		buf := sector(0xff)
		Expect(d.Read(3, buf)).To(Succeed())
		Expect(buf).To(Equal(sector(0)))
	})

	It("should reject sectors beyond the disk", func() {
		err := d.Write(4, sector(1))
		Expect(err).To(MatchError(disk.ErrOutOfRange))
	})

	It("should reject partial buffers", func() {
		err := d.Read(0, make([]byte, 10))
		Expect(err).To(MatchError(disk.ErrBadBuffer))
	})
}

var _ = Describe("MemDisk", func() {
	behavesLikeADisk(func() disk.Disk {
		return disk.NewMemDisk(4)
	})
})

var _ = Describe("FileDisk", func() {
	behavesLikeADisk(func() disk.Disk {
		path := filepath.Join(GinkgoT().TempDir(), "swap.dsk")

		d, err := disk.OpenFileDisk(path, 4)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(d.Close)

		return d
	})
})
