// Package cmd provides the CLI commands for license-recon.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"license-recon/internal/logging"
)

var (
	configDir string
	verbose   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "license-recon",
	Short: "Reconcile license entitlements against observed usage",
	Long: `license-recon is a batch reconciliation tool for software license estates.

It deduplicates license file exports, matches them against usage reports,
values each entitlement through a cascading price catalog, and flags
under-utilized licenses as transfer candidates.

Examples:
  license-recon analyze --entitlements ./raw --usage ./usage
  license-recon analyze --entitlements ./raw --usage ./usage --excel report.xlsx
  license-recon analyze --config ./config --json result.json ./data`,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory holding mapping and pricing rule files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	cfg := logging.DefaultConfig()
	if verbose {
		cfg.Level = "debug"
	}
	if err := logging.Initialize(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("license-recon version 0.1.0")
	},
}
