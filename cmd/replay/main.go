// Command replay runs one scenario many times on independent kernels in
// parallel and checks that every run produced the same trace.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"green/hal"
	"green/kernel"
	"green/scenario"
)

type options struct {
	runs       int
	parallel   int
	stackSize  int
	maxThreads int
}

type outcome struct {
	digest string
	lines  int
	err    string
}

// mismatch reports a run whose trace or result differs from run 0.
type mismatch struct {
	run       int
	got, want outcome
}

func (m *mismatch) Error() string {
	return fmt.Sprintf("run %d: trace %s (%d lines, err %q), want %s (%d lines, err %q)",
		m.run, m.got.digest, m.got.lines, m.got.err, m.want.digest, m.want.lines, m.want.err)
}

func main() {
	var (
		path     = flag.String("scenario", "", "Scenario TOML file (default: built-in ping-pong).")
		runs     = flag.Int("n", 100, "Number of runs.")
		parallel = flag.Int("parallel", runtime.GOMAXPROCS(0), "Runs in flight at once.")
		stack    = flag.Int("stack", 0, "Per-thread stack size in bytes (0 = scenario or kernel default).")
		maxThr   = flag.Int("max-threads", 0, "Maximum live threads (0 = kernel default).")
	)
	flag.Parse()

	if *runs <= 0 || *parallel <= 0 {
		fatalf("usage: replay [-scenario file.toml] [-n runs] [-parallel n]")
	}

	script := scenario.PingPong()
	if *path != "" {
		var err error
		if script, err = scenario.Load(*path); err != nil {
			fatalf("%v", err)
		}
	}

	first, err := replay(context.Background(), script, options{
		runs:       *runs,
		parallel:   *parallel,
		stackSize:  *stack,
		maxThreads: *maxThr,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d runs identical, %d lines, sha256 %s\n", script.Name, *runs, first.lines, first.digest)
	if first.err != "" {
		fmt.Printf("every run ended with: %s\n", first.err)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

// replay runs script opts.runs times and returns the outcome shared by all
// of them, or a *mismatch for the first run that differs.
func replay(ctx context.Context, script *scenario.Script, opts options) (outcome, error) {
	results := make([]outcome, opts.runs)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallel)
	for i := 0; i < opts.runs; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = runOnce(script, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcome{}, err
	}

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			return results[0], &mismatch{run: i, got: results[i], want: results[0]}
		}
	}
	return results[0], nil
}

func runOnce(script *scenario.Script, opts options) outcome {
	stackSize := script.StackSize
	if opts.stackSize > 0 {
		stackSize = opts.stackSize
	}
	k := kernel.New(kernel.Config{StackSize: stackSize, MaxThreads: opts.maxThreads})

	var trace hal.LineBuffer
	var o outcome
	if err := script.Run(k, &trace); err != nil {
		o.err = err.Error()
	}
	sum := sha256.Sum256([]byte(trace.String()))
	o.digest = hex.EncodeToString(sum[:])
	o.lines = len(trace.Lines())
	return o
}
