package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/vm/paging"
)

var _ = Describe("Monitor", func() {
	var (
		m   *Monitor
		sys *paging.System
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

		return rec
	}

	BeforeEach(func() {
		logger := logrus.New()
		logger.SetOutput(GinkgoWriter)

		m = NewMonitor().WithLogger(logger)
		sys = paging.MakeBuilder().
			WithNumFrames(4).
			WithNumSwapSlots(4).
			WithLogger(logger).
			Build("Paging")
	})

	It("should register a system once", func() {
		m.RegisterSystem(sys)
		m.RegisterSystem(sys)

		rec := get("/api/systems")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["Paging"]`))
	})

	It("should list the frames of a system", func() {
		m.RegisterSystem(sys)
		as, err := sys.NewAddressSpace(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(as.SetupStack()).To(Succeed())

		rec := get("/api/frames/Paging")

		var frames []paging.FrameStatus
		Expect(json.Unmarshal(rec.Body.Bytes(), &frames)).To(Succeed())
		Expect(frames).To(HaveLen(1))
		Expect(frames[0].VAddr).To(Equal(sys.Layout().UserStackTop - 4096))
	})

	It("should list the pages of a process", func() {
		m.RegisterSystem(sys)
		as, _ := sys.NewAddressSpace(3)
		Expect(as.SetupStack()).To(Succeed())

		rec := get("/api/spaces/Paging/3")

		var pages []paging.PageStatus
		Expect(json.Unmarshal(rec.Body.Bytes(), &pages)).To(Succeed())
		Expect(pages).To(HaveLen(1))
		Expect(pages[0].Stack).To(BeTrue())
		Expect(pages[0].Resident).To(BeTrue())
	})

	It("should serialize the status of a system", func() {
		m.RegisterSystem(sys)

		rec := get("/api/system/Paging")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Paging"))
	})

	DescribeTable("should answer unknown targets with errors",
		func(url string, code int) {
			m.RegisterSystem(sys)

			Expect(get(url).Code).To(Equal(code))
		},
		Entry("system", "/api/system/None", http.StatusNotFound),
		Entry("frames", "/api/frames/None", http.StatusNotFound),
		Entry("process", "/api/spaces/Paging/9", http.StatusNotFound),
		Entry("bad pid", "/api/spaces/Paging/x", http.StatusBadRequest),
	)

	It("should report progress bars until they complete", func() {
		bar := m.CreateProgressBar("agent 1", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		rec := get("/api/progress")

		var bars []progressBarRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("agent 1"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)

		Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should report process resources", func() {
		rec := get("/api/resource")

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should listen on a random port when the port is too low", func() {
		m.WithPortNumber(80).StartServer()
		defer m.StopServer()

		Expect(m.Port()).To(BeNumerically(">", 0))
	})
})
