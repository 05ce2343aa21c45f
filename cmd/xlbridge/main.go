// Package main provides the CLI for the xlbridge spreadsheet automation bridge.
package main

import (
	"os"

	"github.com/leapstack-labs/xlbridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
