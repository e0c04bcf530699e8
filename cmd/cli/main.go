// Package main is the entry point for the license-recon CLI.
package main

import (
	"os"

	"license-recon/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
