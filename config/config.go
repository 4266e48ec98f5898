// Package config loads the settings of a paging simulation from a TOML file,
// a .env file and VMSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/vmsim/mem/disk"
	"github.com/sarchlab/vmsim/mem/vm/paging"
)

// ErrInvalid is returned for settings that cannot describe a simulation.
var ErrInvalid = errors.New("invalid configuration")

// Memory configures the user pool of physical memory.
type Memory struct {
	NumFrames    uint64 `toml:"num_frames"`
	Log2PageSize uint64 `toml:"log2_page_size"`
}

// Swap configures the swap disk. An empty Path keeps the swap in memory.
type Swap struct {
	NumSlots uint64 `toml:"num_slots"`
	Path     string `toml:"path"`
}

// Layout configures the virtual address layout of user processes.
type Layout struct {
	KernelBase   uint64 `toml:"kernel_base"`
	UserStackTop uint64 `toml:"user_stack_top"`
	MaxStackSize uint64 `toml:"max_stack_size"`
}

// Workload configures the random access agents.
type Workload struct {
	Processes int     `toml:"processes"`
	Accesses  int     `toml:"accesses"`
	HeapPages int     `toml:"heap_pages"`
	Seed      int64   `toml:"seed"`
	Fork      bool    `toml:"fork"`
	MmapPages int     `toml:"mmap_pages"`
	Rate      float64 `toml:"rate"`
}

// Trace configures where paging events are recorded. An empty DB disables
// recording.
type Trace struct {
	DB string `toml:"db"`
}

// Monitor configures the monitoring server.
type Monitor struct {
	Enabled     bool `toml:"enabled"`
	Port        int  `toml:"port"`
	OpenBrowser bool `toml:"open_browser"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Config is the whole configuration of a simulation.
type Config struct {
	Memory   Memory   `toml:"memory"`
	Swap     Swap     `toml:"swap"`
	Layout   Layout   `toml:"layout"`
	Workload Workload `toml:"workload"`
	Trace    Trace    `toml:"trace"`
	Monitor  Monitor  `toml:"monitor"`
	Log      Log      `toml:"log"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	l := paging.DefaultLayout()

	return Config{
		Memory: Memory{NumFrames: 64, Log2PageSize: 12},
		Swap:   Swap{NumSlots: 256},
		Layout: Layout{
			KernelBase:   l.KernelBase,
			UserStackTop: l.UserStackTop,
			MaxStackSize: l.MaxStackSize,
		},
		Workload: Workload{
			Processes: 4,
			Accesses:  1000,
			HeapPages: 16,
			Seed:      1,
			MmapPages: 2,
		},
		Log: Log{Level: "info"},
	}
}

// Load builds a configuration from the defaults, the TOML file at path (if
// path is not empty), the .env file in the working directory and the
// environment, in that order, and validates the result.
func Load(path string) (Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (Config, error) {
	c := Default()

	if path != "" {
		_, err := toml.DecodeFile(path, &c)
		if err != nil {
			return c, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, fmt.Errorf("reading %s: %w", envFile, err)
	}

	err = c.applyEnv(os.LookupEnv)
	if err != nil {
		return c, err
	}

	return c, c.Validate()
}

type envVar struct {
	name  string
	apply func(v string) error
}

func (c *Config) envVars() []envVar {
	return []envVar{
		{"VMSIM_NUM_FRAMES", uintSetter(&c.Memory.NumFrames)},
		{"VMSIM_LOG2_PAGE_SIZE", uintSetter(&c.Memory.Log2PageSize)},
		{"VMSIM_SWAP_SLOTS", uintSetter(&c.Swap.NumSlots)},
		{"VMSIM_SWAP_PATH", stringSetter(&c.Swap.Path)},
		{"VMSIM_KERNEL_BASE", uintSetter(&c.Layout.KernelBase)},
		{"VMSIM_USER_STACK_TOP", uintSetter(&c.Layout.UserStackTop)},
		{"VMSIM_MAX_STACK_SIZE", uintSetter(&c.Layout.MaxStackSize)},
		{"VMSIM_PROCESSES", intSetter(&c.Workload.Processes)},
		{"VMSIM_ACCESSES", intSetter(&c.Workload.Accesses)},
		{"VMSIM_HEAP_PAGES", intSetter(&c.Workload.HeapPages)},
		{"VMSIM_SEED", int64Setter(&c.Workload.Seed)},
		{"VMSIM_FORK", boolSetter(&c.Workload.Fork)},
		{"VMSIM_MMAP_PAGES", intSetter(&c.Workload.MmapPages)},
		{"VMSIM_RATE", floatSetter(&c.Workload.Rate)},
		{"VMSIM_TRACE_DB", stringSetter(&c.Trace.DB)},
		{"VMSIM_MONITOR", boolSetter(&c.Monitor.Enabled)},
		{"VMSIM_MONITOR_PORT", intSetter(&c.Monitor.Port)},
		{"VMSIM_OPEN_BROWSER", boolSetter(&c.Monitor.OpenBrowser)},
		{"VMSIM_LOG_LEVEL", stringSetter(&c.Log.Level)},
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range c.envVars() {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}

		err := ev.apply(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, ev.name, v, err)
		}
	}

	return nil
}

func uintSetter(dst *uint64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 0, 64)
		if err == nil {
			*dst = n
		}

		return err
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}

		return err
	}
}

func int64Setter(dst *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(v, 0, 64)
		if err == nil {
			*dst = n
		}

		return err
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*dst = f
		}

		return err
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}

		return err
	}
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

// Validate checks that the configuration describes a runnable simulation.
func (c Config) Validate() error {
	pageSize := c.PageSize()

	switch {
	case c.Memory.NumFrames == 0:
		return fmt.Errorf("%w: memory.num_frames must be positive", ErrInvalid)
	case c.Memory.Log2PageSize < 9 || c.Memory.Log2PageSize > 21:
		return fmt.Errorf("%w: memory.log2_page_size must be in [9, 21]",
			ErrInvalid)
	case c.Layout.UserStackTop%pageSize != 0 ||
		c.Layout.KernelBase%pageSize != 0 ||
		c.Layout.MaxStackSize%pageSize != 0:
		return fmt.Errorf("%w: layout addresses must be page aligned",
			ErrInvalid)
	case c.Layout.UserStackTop > c.Layout.KernelBase:
		return fmt.Errorf("%w: layout.user_stack_top is above the kernel",
			ErrInvalid)
	case c.Layout.MaxStackSize == 0 ||
		c.Layout.MaxStackSize > c.Layout.UserStackTop:
		return fmt.Errorf("%w: layout.max_stack_size out of range",
			ErrInvalid)
	case c.Workload.Processes <= 0:
		return fmt.Errorf("%w: workload.processes must be positive",
			ErrInvalid)
	case c.Workload.Accesses < 0 || c.Workload.HeapPages <= 0 ||
		c.Workload.MmapPages < 0:
		return fmt.Errorf("%w: workload sizes out of range", ErrInvalid)
	case c.Workload.Rate < 0:
		return fmt.Errorf("%w: workload.rate must not be negative", ErrInvalid)
	case c.Monitor.Port < 0 || c.Monitor.Port > 65535:
		return fmt.Errorf("%w: monitor.port out of range", ErrInvalid)
	}

	_, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}

	return nil
}

// PageSize returns the page size in bytes.
func (c Config) PageSize() uint64 {
	return 1 << c.Memory.Log2PageSize
}

// PagingLayout converts the layout section for the paging builder.
func (c Config) PagingLayout() paging.Layout {
	return paging.Layout{
		KernelBase:   c.Layout.KernelBase,
		UserStackTop: c.Layout.UserStackTop,
		MaxStackSize: c.Layout.MaxStackSize,
	}
}

// SwapSectors returns the number of disk sectors the swap slots need.
func (c Config) SwapSectors() uint64 {
	return c.Swap.NumSlots * (c.PageSize() / disk.SectorSize)
}

// LogLevel returns the parsed log level. It assumes Validate passed.
func (c Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}

	return level
}
