package cmd

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/tracing"
)

var _ = Describe("Run", func() {
	var (
		cfg config.Config
		out *bytes.Buffer
	)

	BeforeEach(func() {
		cfg = config.Default()
		cfg.Memory.NumFrames = 8
		cfg.Swap.NumSlots = 128
		cfg.Workload.Processes = 2
		cfg.Workload.Accesses = 200
		cfg.Workload.HeapPages = 8
		cfg.Workload.Fork = true
		cfg.Log.Level = "error"

		out = &bytes.Buffer{}
	})

	It("should print the counted events and the processes", func() {
		Expect(runSimulation(context.Background(), cfg, out)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("PageFault"))
		Expect(out.String()).To(ContainSubstring("Fork"))
		Expect(out.String()).To(ContainSubstring("MAP READS"))
	})

	It("should record events into a database", func() {
		dir := GinkgoT().TempDir()
		cfg.Trace.DB = filepath.Join(dir, "trace")

		Expect(runSimulation(context.Background(), cfg, out)).To(Succeed())

		reader := datarecording.NewReader(cfg.Trace.DB + ".sqlite3")
		defer reader.Close()

		tables, err := reader.StoredTables(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(tables).To(ContainElements("exec_info", tracing.EventTableName))

		n, err := reader.CountRows(context.Background(), tracing.EventTableName)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">", 0))
	})

	It("should swap to a file", func() {
		cfg.Swap.Path = filepath.Join(GinkgoT().TempDir(), "swap.img")

		Expect(runSimulation(context.Background(), cfg, out)).To(Succeed())
		Expect(cfg.Swap.Path).To(BeAnExistingFile())
	})

	It("should fail when the processes do not fit", func() {
		cfg.Memory.NumFrames = 1
		cfg.Swap.NumSlots = 0

		Expect(runSimulation(context.Background(), cfg, out)).NotTo(Succeed())
	})

	It("should apply flags on top of the configuration", func() {
		Expect(runCmd.ParseFlags([]string{
			"--frames", "12",
			"--processes", "3",
			"--open-browser=false",
			"--log-level", "debug",
		})).To(Succeed())

		c, err := loadConfig(runCmd)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Memory.NumFrames).To(Equal(uint64(12)))
		Expect(c.Workload.Processes).To(Equal(3))
		Expect(c.Workload.Accesses).To(Equal(config.Default().Workload.Accesses))
		Expect(c.Monitor.Enabled).To(BeFalse())
		Expect(c.Log.Level).To(Equal("debug"))
	})
})
