// Package main is the entry point for the voxloop CLI.
//
// Usage:
//
//	voxloop [flags] <command> [args]
//
// Commands:
//
//	run        - Run a spoken conversation session from a YAML config
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/voxloop/voxloop/cmd/voxloop/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
