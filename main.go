package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"green/app"
	"green/hal"
	"green/internal/buildinfo"
)

func main() {
	var cfg app.Config
	var showVersion, verbose bool
	flag.StringVar(&cfg.Scenario, "scenario", "", "Scenario TOML file (default: built-in ping-pong).")
	flag.IntVar(&cfg.StackSize, "stack", 0, "Per-thread stack size in bytes (0 = scenario or kernel default).")
	flag.IntVar(&cfg.MaxThreads, "max-threads", 0, "Maximum live threads (0 = kernel default).")
	flag.BoolVar(&cfg.Trace, "trace", false, "Log scheduler events.")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit.")
	flag.BoolVar(&verbose, "v", false, "Print a session banner and run statistics to stderr.")
	flag.Parse()

	if showVersion {
		fmt.Println(buildinfo.String("green"))
		return
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "%s session=%s\n", buildinfo.String("green"), uuid.New())
	}
	rep, err := app.Run(hal.New(), cfg)
	if verbose {
		s := rep.Stats
		fmt.Fprintf(os.Stderr, "threads=%d switches=%d yields=%d blocks=%d sent=%d received=%d dropped=%d discarded=%d peak=%d\n",
			s.Spawned, s.Switches, s.Yields, s.Blocks, s.Sent, s.Received, s.Dropped, s.Discarded, s.PeakThreads)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
