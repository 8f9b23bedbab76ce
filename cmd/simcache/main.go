// Package main provides simcache, a driver binary that loads a cache
// configuration, replays an access trace through it, and dumps end-of-run
// statistics.
package main

import (
	"fmt"
	"log"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/llcsim/approxcache/internal/replctl"
	"github.com/llcsim/approxcache/pkg/cache"
	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/region"
	"github.com/llcsim/approxcache/pkg/cache/timingbus"
	"github.com/llcsim/approxcache/pkg/cache/variant"
	"github.com/llcsim/approxcache/pkg/stats"
)

func main() {
	configPath := flag.String("config", "", "path to a cache config file (.yaml or .jsonc)")
	tracePath := flag.String("trace", "", "path to an access trace file")
	statsOut := flag.String("stats-out", "stats.json", "path to write end-of-run statistics")
	quiet := flag.Bool("quiet", false, "suppress per-access logging")
	interactive := flag.Bool("repl", false, "drop into an interactive stepper instead of replaying --trace")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: simcache --config=<file> --trace=<file> [--stats-out=<file>]\n\n")
		fmt.Fprintf(os.Stderr, "Replays an access trace through a cache built from config, then writes\nstatistics to --stats-out. With --repl, drives the cache interactively\ninstead of replaying a trace.\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *configPath == "" || (*tracePath == "" && !*interactive) {
		flag.Usage()
		os.Exit(2)
	}

	if *interactive {
		if err := runRepl(*configPath); err != nil {
			log.Fatalf("simcache: %v", err)
		}
		return
	}

	if err := run(*configPath, *tracePath, *statsOut, *quiet); err != nil {
		log.Fatalf("simcache: %v", err)
	}
}

func runRepl(configPath string) error {
	opts, err := cache.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	deps := cache.Deps{
		Coherence: coherence.NewSequential(0, 0),
		Recorder:  timingbus.NewSliceRecorder(),
		Regions:   region.NewTable(opts.Regions),
	}

	c, err := cache.New(opts, deps)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	return replctl.New(c, os.Stdout).Run()
}

func run(configPath, tracePath, statsOutPath string, quiet bool) error {
	opts, err := cache.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	traceFile, err := os.Open(tracePath)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer traceFile.Close()

	entries, err := readTrace(traceFile)
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}

	deps := cache.Deps{
		Coherence: coherence.NewSequential(0, 0),
		Recorder:  timingbus.NewSliceRecorder(),
		Regions:   region.NewTable(opts.Regions),
	}

	c, err := cache.New(opts, deps)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	var counters stats.Counters
	for _, e := range entries {
		for _, retried := range c.Retry(e.req.Cycle) {
			counters.Record(retried, nil)
		}

		res, accessErr := c.Access(&e.req, e.payload)
		counters.Record(res, accessErr)
		if accessErr != nil {
			if !quiet {
				log.Printf("cycle %d: %s 0x%x: parked (mshrs full)", e.req.Cycle, e.req.Type, e.req.LineAddr)
			}
			continue
		}
		if !quiet {
			log.Printf("cycle %d: %s 0x%x: hit=%v resp=%d", e.req.Cycle, e.req.Type, e.req.LineAddr, res.Hit, res.RespCycle)
		}
	}

	// Drain anything still parked once the trace itself is exhausted, using
	// the last request's cycle as a final retry point.
	if len(entries) > 0 {
		last := entries[len(entries)-1].req.Cycle
		for _, retried := range c.Retry(last) {
			counters.Record(retried, nil)
		}
	}

	if err := stats.Dump(statsOutPath, counters, finalStats(c)); err != nil {
		return fmt.Errorf("dump stats: %w", err)
	}
	return nil
}

func finalStats(c variant.Cache) variant.Stats {
	return c.Stats()
}
