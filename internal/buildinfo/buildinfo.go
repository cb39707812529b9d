package buildinfo

import "fmt"

// Version is set at build time via -ldflags.
var Version = "dev"

// Commit is set at build time via -ldflags.
var Commit = "unknown"

// Date is set at build time via -ldflags.
var Date = "unknown"

// Short returns a compact build identifier for logging.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String returns a one-line version banner for the named program.
func String(program string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", program, Short(), Commit, Date)
}
