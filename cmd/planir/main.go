// Package main is the entry point for the planir CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/planir/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "planir:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
