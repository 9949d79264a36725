package main

import (
	"os"

	"github.com/dlaw/fixpoint/internal/cli"
)

func main() {
	// Commands print their own errors; Execute's return carries the
	// exit code.
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
