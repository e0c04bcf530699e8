// Package usage extracts consumption records from Station Manager CSV
// exports. One CSV covers one system and yields one record per license
// option that carries a "Used" row.
package usage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"license-recon/core/types"
	apperrors "license-recon/internal/errors"
	"license-recon/internal/logging"
)

// labelToLicenseType maps Station Manager row labels to the license
// type names used by entitlement files.
var labelToLicenseType = map[string]string{
	"Process point(s)":               "PROCESSPOINTS",
	"SCADA point(s)":                 "SCADAPOINTS",
	"Console station(s)":             "CONSOLE_STATIONS",
	"Flex station(s)":                "STATIONS",
	"Multi window flex station(s)":   "MULTISTATIONS",
	"Distributed server(s)":          "MULTI_COUNT",
	"Analog IO Point(s)":             "CDA_IO_ANA",
	"Digital IO Point(s)":            "CDA_IO_DIG",
	"Operator touch panel(s)":        "OPER_TOUCH_PANEL",
	"Modbus":                         "MODICON",
	"OPC client interface":           "OPCCLIENT",
	"Console extension station(s)":   "DIRECTCLIENTS",
	"Other point(s)":                 "OTHER_POINTS",
	"Total point(s)":                 "TOTAL_POINTS",
	"Equipment point(s)":             "EQUIPMENT_POINTS",
	"Composite Device point(s)":      "COMPOSITE_POINTS",
	"Collaboration station(s)":       "COLLABORATION_STATIONS",
	"Experion app client(s)":         "EXPERION_APP_CLIENTS",
	"Maximum active RCM instance(s)": "MAX_RCM_INSTANCES",
}

// Config configures the usage adapter
type Config struct {
	// Clusters are the site names recognized in source paths
	Clusters []string `yaml:"clusters" json:"clusters"`

	// MaxParallel caps concurrent file extractions
	MaxParallel int `yaml:"max_parallel" json:"max_parallel"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Clusters:    []string{"Carson", "Wilmington", "Salt Lake City"},
		MaxParallel: 8,
	}
}

// Adapter extracts usage records from Station Manager CSV files
type Adapter struct {
	config *Config
	log    *zap.Logger
}

// New creates a usage adapter
func New(config *Config) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = 1
	}
	return &Adapter{config: config, log: logging.Stage("usage")}
}

// FileResult is the outcome of extracting one CSV file
type FileResult struct {
	// Path is the source file
	Path string `json:"path"`

	// Records are the extracted usage rows, empty on failure
	Records []*types.UsageRecord `json:"records,omitempty"`

	// Errors are the failure descriptions
	Errors []string `json:"errors,omitempty"`

	// Warnings are non-fatal extraction notes
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether extraction succeeded
func (r FileResult) OK() bool {
	return len(r.Records) > 0 && len(r.Errors) == 0
}

// ExtractDir walks dir for .csv files and extracts them concurrently.
// Results are ordered by path; per-file failures never abort the walk.
func (a *Adapter) ExtractDir(ctx context.Context, dir string) ([]FileResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Extraction("failed to scan usage directory", dir, err)
	}
	sort.Strings(paths)

	results := make([]FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.MaxParallel)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.ExtractFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Extraction("usage extraction cancelled", dir, err)
	}

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	a.log.Info("usage extraction complete",
		zap.String("dir", dir),
		zap.Int("files", len(results)),
		zap.Int("succeeded", ok))
	return results, nil
}

// ExtractFile extracts one CSV export. Failures are recorded on the
// result rather than returned.
func (a *Adapter) ExtractFile(path string) FileResult {
	res := FileResult{Path: path}

	f, err := os.Open(path)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("cannot read file: %v", err))
		return res
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("CSV parse error: %v", err))
		return res
	}
	if len(rows) == 0 {
		res.Errors = append(res.Errors, "empty CSV file")
		return res
	}
	if len(rows[0]) < 4 {
		res.Errors = append(res.Errors,
			fmt.Sprintf("expected at least 4 columns, found %d", len(rows[0])))
		return res
	}
	if rows[0][0] != "Category" || rows[0][1] != "License Option" || rows[0][2] != "Detail Type" {
		res.Errors = append(res.Errors,
			fmt.Sprintf("unexpected header %v", rows[0][:3]))
		return res
	}

	cluster := a.clusterFromPath(path)
	systemName := rows[0][3]
	msid := certificateField(rows, "MSID", &res)
	asOf := collateDate(rows, &res)

	for _, row := range rows {
		if len(row) < 4 || row[2] != "Used" {
			continue
		}
		licenseType, known := labelToLicenseType[row[1]]
		if !known {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("unrecognized license option %q", row[1]))
			continue
		}
		qty := 0
		if row[3] != "" {
			qty, err = strconv.Atoi(strings.TrimSpace(row[3]))
			if err != nil {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("invalid usage value for %s: %q", row[1], row[3]))
				continue
			}
		}
		res.Records = append(res.Records, &types.UsageRecord{
			Cluster:      cluster,
			MSID:         msid,
			LicenseType:  licenseType,
			UsedQuantity: qty,
			SystemName:   systemName,
			AsOfDate:     asOf,
			SourcePath:   path,
		})
	}

	if len(res.Records) == 0 {
		res.Errors = append(res.Errors, "no usage data found in CSV")
	}
	return res
}

func (a *Adapter) clusterFromPath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, cluster := range a.config.Clusters {
			if part == cluster {
				return cluster
			}
		}
	}
	return ""
}

// certificateField reads a "License certificate" metadata row whose
// label column contains the given token.
func certificateField(rows [][]string, token string, res *FileResult) string {
	for _, row := range rows {
		if len(row) >= 4 && row[0] == "License certificate" && strings.Contains(row[1], token) {
			if v := strings.TrimSpace(row[3]); v != "" {
				return strings.ToUpper(v)
			}
		}
	}
	res.Warnings = append(res.Warnings, fmt.Sprintf("could not extract %s from CSV", token))
	return "Unknown"
}

// collateDate reads the export date from the "Collate date" row.
func collateDate(rows [][]string, res *FileResult) *time.Time {
	for _, row := range rows {
		if len(row) < 4 || row[1] != "Collate date" {
			continue
		}
		raw := strings.TrimSpace(row[3])
		if raw == "" {
			return nil
		}
		for _, layout := range []string{"2006-01-02", "01/02/2006", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("invalid collate date %q", raw))
		return nil
	}
	return nil
}
