// Package main provides the CLI for the sqlgrammar parsing and completion engine.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlgrammar/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
