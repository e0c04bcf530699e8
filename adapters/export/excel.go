package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"license-recon/core/pipeline"
	"license-recon/core/types"
	apperrors "license-recon/internal/errors"
)

const (
	summarySheet   = "Summary"
	transfersSheet = "Transfer Candidates"
	issuesSheet    = "Issues"
)

// priority fill colors, argb without alpha
var priorityColors = map[types.TransferPriority]string{
	types.PriorityHigh:   "FFC7CE",
	types.PriorityMedium: "FFEB9C",
	types.PriorityLow:    "C6EFCE",
}

// WriteExcel writes the run result as a workbook: a summary sheet, one
// cost sheet per cluster, a transfer candidate sheet with rows colored
// by priority, and an issue sheet.
func WriteExcel(res *pipeline.Result, path string) error {
	if res == nil {
		return apperrors.Export("nothing to export", nil)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return apperrors.Export("failed to initialize workbook", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return apperrors.Export("failed to build styles", err)
	}

	if err := writeSummary(f, res, header); err != nil {
		return err
	}
	if err := writeCostSheets(f, res, header); err != nil {
		return err
	}
	if err := writeTransfers(f, res, header); err != nil {
		return err
	}
	if err := writeIssues(f, res, header); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.Export("failed to write workbook", err)
	}
	return nil
}

func writeSummary(f *excelize.File, res *pipeline.Result, header int) error {
	rows := [][]interface{}{
		{"Run ID", res.RunID},
		{"Started", res.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", res.Duration.String()},
		{"Systems (unique)", res.DedupStats.UniqueSystems},
		{"Duplicates removed", res.DedupStats.DuplicatesRemoved},
		{"Exact matches", res.MatchStats.Exact},
		{"Fuzzy matches", res.MatchStats.Fuzzy},
		{"Unmatched systems", res.MatchStats.Unmatched},
		{"Total license value", res.TotalCost.StringFixed(2)},
		{"Transfer candidates", len(res.Transfers)},
		{"Total excess value", res.TotalExcessValue.StringFixed(2)},
		{"Errors", res.Report.Count(types.SeverityError)},
		{"Warnings", res.Report.Count(types.SeverityWarning)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return apperrors.Export("failed to address cell", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return apperrors.Export("failed to write summary", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), header); err != nil {
		return apperrors.Export("failed to style summary", err)
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

func writeCostSheets(f *excelize.File, res *pipeline.Result, header int) error {
	byCluster := make(map[string][]types.CostCalculation)
	for _, cost := range res.Costs {
		byCluster[cost.Cluster] = append(byCluster[cost.Cluster], cost)
	}
	clusters := make([]string, 0, len(byCluster))
	for cluster := range byCluster {
		clusters = append(clusters, cluster)
	}
	sort.Strings(clusters)

	for _, cluster := range clusters {
		sheet := "Costs - " + cluster
		if _, err := f.NewSheet(sheet); err != nil {
			return apperrors.Export("failed to add cost sheet", err)
		}
		head := []interface{}{"MSID", "System", "License Type", "Licensed",
			"Unit Price", "Per", "Total Cost", "Price Source"}
		if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
			return apperrors.Export("failed to write cost header", err)
		}
		if err := f.SetCellStyle(sheet, "A1", "H1", header); err != nil {
			return apperrors.Export("failed to style cost header", err)
		}
		for i, cost := range byCluster[cluster] {
			row := []interface{}{
				cost.MSID, cost.SystemNumber, cost.LicenseType, cost.LicensedQuantity,
				cost.UnitPrice.StringFixed(2), cost.Per,
				cost.TotalCost.StringFixed(2), cost.PriceSource,
			}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return apperrors.Export("failed to address cell", err)
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return apperrors.Export("failed to write cost row", err)
			}
		}
		if err := f.SetColWidth(sheet, "A", "H", 16); err != nil {
			return apperrors.Export("failed to size cost sheet", err)
		}
	}
	return nil
}

func writeTransfers(f *excelize.File, res *pipeline.Result, header int) error {
	if _, err := f.NewSheet(transfersSheet); err != nil {
		return apperrors.Export("failed to add transfer sheet", err)
	}
	head := []interface{}{"Priority", "Cluster", "MSID", "System", "License Type",
		"Licensed", "Used", "Excess", "Unit Price", "Excess Value", "Price Source"}
	if err := f.SetSheetRow(transfersSheet, "A1", &head); err != nil {
		return apperrors.Export("failed to write transfer header", err)
	}
	if err := f.SetCellStyle(transfersSheet, "A1", "K1", header); err != nil {
		return apperrors.Export("failed to style transfer header", err)
	}

	styles := make(map[types.TransferPriority]int, len(priorityColors))
	for priority, color := range priorityColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return apperrors.Export("failed to build priority style", err)
		}
		styles[priority] = id
	}

	for i, cand := range res.Transfers {
		row := []interface{}{
			string(cand.Priority), cand.Cluster, cand.MSID, cand.SystemNumber,
			cand.LicenseType, cand.LicensedQuantity, cand.UsedQuantity,
			cand.ExcessQuantity, cand.UnitPrice.StringFixed(2),
			cand.ExcessValue.StringFixed(2), cand.PriceSource,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.Export("failed to address cell", err)
		}
		if err := f.SetSheetRow(transfersSheet, cell, &row); err != nil {
			return apperrors.Export("failed to write transfer row", err)
		}
		if style, ok := styles[cand.Priority]; ok {
			end := fmt.Sprintf("K%d", i+2)
			if err := f.SetCellStyle(transfersSheet, cell, end, style); err != nil {
				return apperrors.Export("failed to style transfer row", err)
			}
		}
	}
	return f.SetColWidth(transfersSheet, "A", "K", 16)
}

func writeIssues(f *excelize.File, res *pipeline.Result, header int) error {
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return apperrors.Export("failed to add issue sheet", err)
	}
	head := []interface{}{"Severity", "Stage", "Record", "Message", "Source"}
	if err := f.SetSheetRow(issuesSheet, "A1", &head); err != nil {
		return apperrors.Export("failed to write issue header", err)
	}
	if err := f.SetCellStyle(issuesSheet, "A1", "E1", header); err != nil {
		return apperrors.Export("failed to style issue header", err)
	}
	for i, issue := range res.Report.Issues {
		row := []interface{}{
			string(issue.Severity), string(issue.Stage),
			issue.Record, issue.Message, issue.Source,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.Export("failed to address cell", err)
		}
		if err := f.SetSheetRow(issuesSheet, cell, &row); err != nil {
			return apperrors.Export("failed to write issue row", err)
		}
	}
	return f.SetColWidth(issuesSheet, "A", "E", 20)
}
