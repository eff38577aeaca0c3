package main

import (
	"os"

	"github.com/runnerr0/runtimelog/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// go-flags prints the error (PrintErrors is part of goflags.Default).
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
