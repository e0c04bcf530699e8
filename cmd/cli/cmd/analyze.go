// Package cmd - analyze command
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"license-recon/adapters/entitlement"
	"license-recon/adapters/export"
	"license-recon/adapters/usage"
	"license-recon/core/pipeline"
	"license-recon/core/types"
	"license-recon/internal/config"
	"license-recon/internal/logging"
)

var (
	entitlementDir string
	usageDir       string
	jsonOut        string
	excelOut       string
	strict         bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the reconciliation pipeline over license and usage exports",
	Long: `Extract license XML exports and Station Manager usage CSVs, then run
deduplication, matching, costing, and transfer detection over them.

Examples:
  license-recon analyze --entitlements ./raw/licenses --usage ./raw/usage
  license-recon analyze --entitlements ./raw --usage ./usage --excel report.xlsx --json result.json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&entitlementDir, "entitlements", "e", "", "directory holding license XML exports (required)")
	analyzeCmd.Flags().StringVarP(&usageDir, "usage", "u", "", "directory holding usage CSV exports")
	analyzeCmd.Flags().StringVar(&jsonOut, "json", "", "write the full result as JSON to this path")
	analyzeCmd.Flags().StringVar(&excelOut, "excel", "", "write a workbook report to this path")
	analyzeCmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the run reports any error")
	_ = analyzeCmd.MarkFlagRequired("entitlements")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	defer logging.Sync()

	cfg := config.Default()
	if configDir != "" {
		loaded, err := config.Load(configDir)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	in, err := extractInputs(ctx)
	if err != nil {
		return err
	}

	coord, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	res, err := coord.Run(ctx, in)
	if err != nil {
		return err
	}

	printSummary(res)

	if jsonOut != "" {
		if err := export.WriteJSON(res, jsonOut); err != nil {
			return err
		}
		fmt.Printf("JSON result written to %s\n", jsonOut)
	}
	if excelOut != "" {
		if err := export.WriteExcel(res, excelOut); err != nil {
			return err
		}
		fmt.Printf("Workbook written to %s\n", excelOut)
	}

	if strict && !res.Success {
		return fmt.Errorf("run completed with %d errors", res.Report.Count(types.SeverityError))
	}
	return nil
}

// extractInputs runs both adapters and folds their per-file results
// into the pipeline input contract.
func extractInputs(ctx context.Context) (pipeline.Inputs, error) {
	var in pipeline.Inputs

	if _, err := os.Stat(entitlementDir); err != nil {
		return in, fmt.Errorf("entitlement directory does not exist: %s", entitlementDir)
	}

	entResults, err := entitlement.New(nil).ExtractDir(ctx, entitlementDir)
	if err != nil {
		return in, err
	}
	for _, r := range entResults {
		if r.OK() {
			in.Entitlements = append(in.Entitlements, r.Record)
		} else {
			in.EntitlementFailures = append(in.EntitlementFailures,
				pipeline.SourceError{Path: r.Path, Errors: r.Errors})
		}
	}

	if usageDir != "" {
		if _, err := os.Stat(usageDir); err != nil {
			return in, fmt.Errorf("usage directory does not exist: %s", usageDir)
		}
		usageResults, err := usage.New(nil).ExtractDir(ctx, usageDir)
		if err != nil {
			return in, err
		}
		for _, r := range usageResults {
			if r.OK() {
				in.Usage = append(in.Usage, r.Records...)
			} else {
				in.UsageFailures = append(in.UsageFailures,
					pipeline.SourceError{Path: r.Path, Errors: r.Errors})
			}
		}
	}

	return in, nil
}

func printSummary(res *pipeline.Result) {
	fmt.Printf("Run %s finished in %s\n\n", res.RunID, res.Duration.Round(time.Millisecond))
	fmt.Printf("Systems:             %d unique (%d duplicates removed)\n",
		res.DedupStats.UniqueSystems, res.DedupStats.DuplicatesRemoved)
	fmt.Printf("Matches:             %d exact, %d fuzzy, %d unmatched\n",
		res.MatchStats.Exact, res.MatchStats.Fuzzy, res.MatchStats.Unmatched)
	fmt.Printf("Total license value: $%s\n", res.TotalCost.StringFixed(2))
	fmt.Printf("Transfer candidates: %d worth $%s\n",
		len(res.Transfers), res.TotalExcessValue.StringFixed(2))
	fmt.Printf("Issues:              %d errors, %d warnings, %d notes\n",
		res.Report.Count(types.SeverityError),
		res.Report.Count(types.SeverityWarning),
		res.Report.Count(types.SeverityInfo))
}
