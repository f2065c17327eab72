package main

import (
	"os"

	"github.com/marmos91/tiercache/cmd/tiercache/commands"

	// Register Prometheus collectors with pkg/metrics.
	_ "github.com/marmos91/tiercache/pkg/metrics/prometheus"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
