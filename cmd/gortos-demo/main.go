// Command gortos-demo runs the self-checking demo suites on an external
// tick clock and reports a PASS or FAIL status line every check period.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"gortos/console"
	"gortos/demo/countsem"
	"gortos/demo/dynamic"
	"gortos/demo/intsem"
	"gortos/demo/recmutex"
	"gortos/demo/timerdemo"
	"gortos/kernel"
)

var (
	configPath = flag.String("config", "", "YAML runner configuration file")
	device     = flag.String("device", "", "serial device for status output (overrides config)")
	duration   = flag.Duration("duration", 0, "how long to run (0 = forever)")
	debug      = flag.Bool("debug", false, "enable kernel debug output")
)

// runnerConfig is the YAML runner configuration.
type runnerConfig struct {
	TickMS               int      `yaml:"tick_ms"`
	NumPriorities        int      `yaml:"num_priorities"`
	TimerQueueLength     int      `yaml:"timer_queue_length"`
	TimerServicePriority int      `yaml:"timer_service_priority"`
	CheckPeriodTicks     int      `yaml:"check_period_ticks"`
	TimerBaseTicks       int      `yaml:"timer_base_ticks"`
	Suites               []string `yaml:"suites"`
	Serial               string   `yaml:"serial"`
}

func (c *runnerConfig) applyDefaults() {
	if c.TickMS == 0 {
		c.TickMS = 1
	}
	if c.CheckPeriodTicks == 0 {
		c.CheckPeriodTicks = 1000
	}
	if c.TimerBaseTicks == 0 {
		c.TimerBaseTicks = 10
	}
	if len(c.Suites) == 0 {
		c.Suites = []string{"countsem", "recmutex", "intsem", "dynamic", "timerdemo"}
	}
}

func loadConfig(path string) (*runnerConfig, error) {
	cfg := &runnerConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// checker is the common surface of the demo suites.
type checker interface {
	StillRunning() bool
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial = *device
	}

	var sink console.Sink
	if cfg.Serial != "" {
		s, err := console.OpenSerial(console.DefaultSerialConfig(cfg.Serial))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		sink = s
	} else {
		sink = console.NewStdout()
	}
	defer sink.Close()
	if *debug {
		console.Attach(sink)
	} else {
		// The trace dump on failure still needs somewhere to go.
		kernel.SetDebugWriter(sink.Println)
	}
	kernel.SetTraceEnabled(true)

	k := kernel.New(kernel.Config{
		NumPriorities:        cfg.NumPriorities,
		Clock:                kernel.ClockExternal,
		TimerQueueLength:     cfg.TimerQueueLength,
		TimerServicePriority: cfg.TimerServicePriority,
	})

	suites := make(map[string]checker)
	for _, name := range cfg.Suites {
		switch name {
		case "countsem":
			suites[name] = countsem.Start(k, 0)
		case "recmutex":
			suites[name] = recmutex.Start(k)
		case "intsem":
			suites[name] = intsem.Start(k)
		case "dynamic":
			suites[name] = dynamic.Start(k)
		case "timerdemo":
			// Must be created before the scheduler starts; the suite
			// checks the undrained command queue.
			suites[name] = timerdemo.Start(k, kernel.Tick(cfg.TimerBaseTicks), k.MaxPriority())
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown suite %q\n", name)
			os.Exit(1)
		}
	}

	sink.Println(fmt.Sprintf("gortos demo runner: %s, tick %dms",
		strings.Join(cfg.Suites, " "), cfg.TickMS))

	// The check loop runs as the main task, above the workloads and below
	// the timer service.
	k.Start(2)
	stop := k.StartTicker(time.Duration(cfg.TickMS) * time.Millisecond)
	defer stop()

	deadline := time.Time{}
	if *duration > 0 {
		deadline = time.Now().Add(*duration)
	}

	failed := false
	for {
		k.Delay(kernel.Tick(cfg.CheckPeriodTicks))

		var stalled []string
		for name, s := range suites {
			if !s.StillRunning() {
				stalled = append(stalled, name)
			}
		}
		tick := k.TickCount()
		if len(stalled) == 0 {
			sink.Println(fmt.Sprintf("PASS tick=%d all %d suites running", tick, len(suites)))
		} else {
			failed = true
			sink.Println(fmt.Sprintf("FAIL tick=%d stalled: %s", tick, strings.Join(stalled, " ")))
			kernel.DumpTraceRing()
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
	}
	if failed {
		os.Exit(1)
	}
}
