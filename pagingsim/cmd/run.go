package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/config"
	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/disk"
	"github.com/sarchlab/vmsim/mem/vm/mmu"
	"github.com/sarchlab/vmsim/mem/vm/paging"
	"github.com/sarchlab/vmsim/monitoring"
	"github.com/sarchlab/vmsim/sim"
	"github.com/sarchlab/vmsim/tracing"
	"github.com/sarchlab/vmsim/workload"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a random workload on a paging system.",
	Long: "`run` builds a paging system from the configuration, runs " +
		"processes that make random accesses and check what they read, " +
		"and prints how often every paging event happened.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sim.UseParallelIDGenerator()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runSimulation(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.String("config", "", "TOML configuration file")
	f.Uint64("frames", 0, "number of physical frames of the user pool")
	f.Int("processes", 0, "number of processes")
	f.Int("accesses", 0, "number of accesses of every process")
	f.Bool("fork", false, "make every process fork half way")
	f.Int64("seed", 0, "seed of the random accesses")
	f.String("trace-db", "", "record paging events into this SQLite database")
	f.Bool("monitor", false, "serve the monitoring page")
	f.Bool("open-browser", false, "open the monitoring page in a browser")
	f.String("log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
}

// loadConfig loads the configuration and applies the flags that were set on
// the command line on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()

	path, _ := f.GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if f.Changed("frames") {
		cfg.Memory.NumFrames, _ = f.GetUint64("frames")
	}

	if f.Changed("processes") {
		cfg.Workload.Processes, _ = f.GetInt("processes")
	}

	if f.Changed("accesses") {
		cfg.Workload.Accesses, _ = f.GetInt("accesses")
	}

	if f.Changed("fork") {
		cfg.Workload.Fork, _ = f.GetBool("fork")
	}

	if f.Changed("seed") {
		cfg.Workload.Seed, _ = f.GetInt64("seed")
	}

	if f.Changed("trace-db") {
		cfg.Trace.DB, _ = f.GetString("trace-db")
	}

	if f.Changed("monitor") {
		cfg.Monitor.Enabled, _ = f.GetBool("monitor")
	}

	if f.Changed("open-browser") {
		cfg.Monitor.OpenBrowser, _ = f.GetBool("open-browser")
		cfg.Monitor.Enabled = cfg.Monitor.Enabled || cfg.Monitor.OpenBrowser
	}

	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}

	return cfg, cfg.Validate()
}

func runSimulation(
	ctx context.Context,
	cfg config.Config,
	out io.Writer,
) (err error) {
	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel())

	builder := paging.MakeBuilder().
		WithLog2PageSize(cfg.Memory.Log2PageSize).
		WithNumFrames(cfg.Memory.NumFrames).
		WithNumSwapSlots(cfg.Swap.NumSlots).
		WithLayout(cfg.PagingLayout()).
		WithLogger(logger)

	if cfg.Swap.Path != "" {
		swapDisk, err := disk.OpenFileDisk(cfg.Swap.Path, cfg.SwapSectors())
		if err != nil {
			return fmt.Errorf("opening swap: %w", err)
		}
		defer swapDisk.Close()

		builder = builder.WithSwapDisk(swapDisk)
	}

	sys := builder.Build("Paging")

	m := mmu.MakeBuilder().
		WithLog2PageSize(cfg.Memory.Log2PageSize).
		WithPageTable(sys.PageTable()).
		WithStorage(sys.Storage()).
		WithFaultHandler(sys).
		WithLocker(sys.Locker()).
		WithLogger(logger).
		Build("MMU")

	stats := tracing.NewStatsCollector()
	sys.AcceptHook(stats)

	if logger.IsLevelEnabled(logrus.TraceLevel) {
		sys.AcceptHook(sim.NewLogHook(logger, logrus.TraceLevel))
	}

	if cfg.Trace.DB != "" {
		recorder := datarecording.New(cfg.Trace.DB)
		sys.AcceptHook(tracing.NewEventRecorder(recorder))

		execRecorder := datarecording.NewExecRecorder(recorder)
		execRecorder.Start()
		recordConfig(execRecorder, cfg)

		defer func() {
			execRecorder.End()
			if closeErr := recorder.Close(); err == nil {
				err = closeErr
			}
		}()
	}

	runner := workload.MakeBuilder().
		WithSystem(sys).
		WithMMU(m).
		WithLogger(logger).
		WithProcesses(cfg.Workload.Processes).
		WithAccesses(cfg.Workload.Accesses).
		WithHeapPages(cfg.Workload.HeapPages).
		WithMmapPages(cfg.Workload.MmapPages).
		WithFork(cfg.Workload.Fork).
		WithSeed(cfg.Workload.Seed).
		WithRate(cfg.Workload.Rate)

	if cfg.Monitor.Enabled {
		monitor := monitoring.NewMonitor().
			WithPortNumber(cfg.Monitor.Port).
			WithBrowser(cfg.Monitor.OpenBrowser).
			WithLogger(logger)
		monitor.RegisterSystem(sys)
		monitor.StartServer()
		defer monitor.StopServer()

		runner = runner.WithMonitor(monitor)
	}

	results, runErr := runner.Build("Workload").Run(ctx)

	shutdownErr := sys.Shutdown()

	printSummary(out, results, stats.Snapshot())

	if runErr != nil {
		return runErr
	}

	return shutdownErr
}

func recordConfig(e *datarecording.ExecRecorder, cfg config.Config) {
	e.Record("Frames", strconv.FormatUint(cfg.Memory.NumFrames, 10))
	e.Record("Page Size", strconv.FormatUint(cfg.PageSize(), 10))
	e.Record("Swap Slots", strconv.FormatUint(cfg.Swap.NumSlots, 10))
	e.Record("Processes", strconv.Itoa(cfg.Workload.Processes))
	e.Record("Accesses", strconv.Itoa(cfg.Workload.Accesses))
	e.Record("Seed", strconv.FormatInt(cfg.Workload.Seed, 10))
	e.Record("Fork", strconv.FormatBool(cfg.Workload.Fork))
}

func printSummary(
	out io.Writer,
	results []workload.Result,
	stats tracing.Stats,
) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "EVENT\tCOUNT")
	for _, name := range stats.Names() {
		fmt.Fprintf(w, "%s\t%d\n", name, stats.Counts[name])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "PID\tREADS\tWRITES\tPUSHES\tPOPS\tMAP READS\tRETRIES\tFAULTS\tFORKED")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%t\n",
			r.PID, r.Reads, r.Writes, r.Pushes, r.Pops, r.MapReads,
			r.Retries, stats.Faults[r.PID], r.Forked)
	}

	w.Flush()
}
