package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/tracing"
)

var _ = Describe("Report", func() {
	var (
		db  string
		out *bytes.Buffer
	)

	BeforeEach(func() {
		cfg := config.Default()
		cfg.Memory.NumFrames = 8
		cfg.Workload.Processes = 2
		cfg.Workload.Accesses = 100
		cfg.Workload.HeapPages = 8
		cfg.Log.Level = "error"
		cfg.Trace.DB = filepath.Join(GinkgoT().TempDir(), "trace")

		Expect(runSimulation(context.Background(), cfg, &bytes.Buffer{})).
			To(Succeed())

		db = cfg.Trace.DB
		out = &bytes.Buffer{}
	})

	It("should list the events of one process and kind", func() {
		q := tracing.EventQuery{PID: 1, Position: "PageFault", Limit: 3}

		Expect(report(context.Background(), db, q, out)).To(Succeed())

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(5))
		Expect(lines[0]).To(HavePrefix("TIME"))
		for _, l := range lines[1:4] {
			Expect(strings.Fields(l)[1:3]).To(Equal([]string{"PageFault", "1"}))
		}
		Expect(lines[4]).To(MatchRegexp(`^3 of \d+ events$`))
	})

	It("should accept the database file name", func() {
		err := report(context.Background(), db+".sqlite3",
			tracing.EventQuery{Limit: 1}, out)

		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(ContainSubstring("1 of "))
	})

	It("should fail without a database", func() {
		err := report(context.Background(), db+".missing",
			tracing.EventQuery{}, out)

		Expect(err).To(HaveOccurred())
	})

	It("should build the query from the flags", func() {
		Expect(reportCmd.ParseFlags([]string{
			"--pid", "2",
			"--event", "SwapOut",
			"--limit", "0",
		})).To(Succeed())

		q, err := eventQuery(reportCmd)

		Expect(err).NotTo(HaveOccurred())
		Expect(q).To(Equal(tracing.EventQuery{PID: 2, Position: "SwapOut"}))
	})
})
