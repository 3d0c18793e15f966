// Package main is the entry point for the sonido-vox CLI.
//
// Usage:
//
//	sonido-vox [flags] <command> [args]
//
// Commands:
//
//	serve     - Run the HTTP and WebSocket detection API
//	train     - Fit a model on synthetic clips and persist it
//	classify  - Classify an audio file and print the JSON result
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-vox/cmd/sonido-vox/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
