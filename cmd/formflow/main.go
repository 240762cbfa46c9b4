package main

import (
	"fmt"
	"os"

	"github.com/marmos91/formflow/cmd/formflow/commands"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/formflow/pkg/metrics/prometheus"
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
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
