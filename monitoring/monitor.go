// Package monitoring serves the state of running paging systems over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/paging"
	"github.com/sarchlab/vmsim/monitoring/web"
	"github.com/sarchlab/vmsim/sim"
)

// Monitor turns a simulation into a server so that the paging systems can be
// inspected while the workload runs.
type Monitor struct {
	portNumber  int
	openBrowser bool
	log         logrus.FieldLogger

	systemsLock sync.RWMutex
	systems     []*paging.System

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		log: logrus.StandardLogger().WithField("component", "monitor"),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.log.Warnf("port %d is not allowed for the monitoring server, "+
			"using a random port instead", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(l logrus.FieldLogger) *Monitor {
	m.log = l
	return m
}

// RegisterSystem registers a paging system to be monitored. Registering the
// same system twice has no effect.
func (m *Monitor) RegisterSystem(s *paging.System) {
	m.systemsLock.Lock()
	defer m.systemsLock.Unlock()

	for _, existing := range m.systems {
		if existing == s {
			return
		}
	}

	m.systems = append(m.systems, s)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server in the background.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d", m.Port())
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	handler := m.router()
	go func() {
		err := http.Serve(listener, handler)
		if err != nil {
			m.log.WithError(err).Debug("monitoring server stopped")
		}
	}()

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			m.log.WithError(err).Warn("cannot open browser")
		}
	}
}

// Port returns the port the server listens on, or 0 if it is not started.
func (m *Monitor) Port() int {
	if m.listener == nil {
		return 0
	}

	return m.listener.Addr().(*net.TCPAddr).Port
}

// StopServer closes the listener of the server.
func (m *Monitor) StopServer() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/systems", m.listSystems)
	r.HandleFunc("/api/system/{name}", m.systemDetails)
	r.HandleFunc("/api/frames/{name}", m.listFrames)
	r.HandleFunc("/api/spaces/{name}/{pid}", m.listPages)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

func (m *Monitor) listSystems(w http.ResponseWriter, _ *http.Request) {
	m.systemsLock.RLock()
	names := make([]string, 0, len(m.systems))
	for _, s := range m.systems {
		names = append(names, s.Name())
	}
	m.systemsLock.RUnlock()

	writeJSON(w, names)
}

func (m *Monitor) systemDetails(w http.ResponseWriter, r *http.Request) {
	s := m.findSystemOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	status := s.Status()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&status)
	serializer.SetMaxDepth(3)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) listFrames(w http.ResponseWriter, r *http.Request) {
	s := m.findSystemOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	writeJSON(w, s.Frames())
}

func (m *Monitor) listPages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s := m.findSystemOr404(w, vars["name"])
	if s == nil {
		return
	}

	pid, err := strconv.ParseUint(vars["pid"], 10, 32)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	as := s.AddressSpace(vm.PID(pid))
	if as == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Process not found"))
		dieOnErr(err)
		return
	}

	writeJSON(w, as.PageStatuses())
}

func (m *Monitor) findSystemOr404(
	w http.ResponseWriter,
	name string,
) *paging.System {
	m.systemsLock.RLock()
	defer m.systemsLock.RUnlock()

	for _, s := range m.systems {
		if s.Name() == name {
			return s
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("System not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
