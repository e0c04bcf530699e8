// Package cmd - report command
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"license-recon/adapters/export"
)

var (
	reportInput string
	reportExcel string
)

// reportCmd re-renders a saved run result without re-running the
// pipeline, so a workbook can be produced later from a JSON result.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a previously saved run result",
	Long: `Load a JSON result written by a prior analyze run and print its
summary, optionally rendering it as an Excel workbook.

Examples:
  license-recon report --input result.json
  license-recon report --input result.json --excel report.xlsx`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportInput, "input", "i", "", "JSON result file from a prior analyze run (required)")
	reportCmd.Flags().StringVar(&reportExcel, "excel", "", "write a workbook report to this path")
	_ = reportCmd.MarkFlagRequired("input")
}

func runReport(cmd *cobra.Command, args []string) error {
	res, err := export.ReadJSON(reportInput)
	if err != nil {
		return err
	}

	printSummary(res)

	if reportExcel != "" {
		if err := export.WriteExcel(res, reportExcel); err != nil {
			return err
		}
		fmt.Printf("Workbook written to %s\n", reportExcel)
	}
	return nil
}
