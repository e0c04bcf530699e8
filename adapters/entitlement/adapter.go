// Package entitlement extracts entitlement records from license XML
// exports. One file describes one system; metadata the file body does
// not carry (cluster, MSID, system number, file version) is recovered
// from the directory layout and filename.
package entitlement

import (
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
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

// Config configures the entitlement adapter
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

// Adapter extracts entitlement records from XML license files
type Adapter struct {
	config *Config
	log    *zap.Logger
}

// New creates an entitlement adapter
func New(config *Config) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = 1
	}
	return &Adapter{config: config, log: logging.Stage("entitlement")}
}

// FileResult is the outcome of extracting one file. Exactly one of
// Record or Errors is populated; Warnings may accompany either.
type FileResult struct {
	// Path is the source file
	Path string `json:"path"`

	// Record is the extracted record, nil on failure
	Record *types.EntitlementRecord `json:"record,omitempty"`

	// Errors are the failure descriptions
	Errors []string `json:"errors,omitempty"`

	// Warnings are non-fatal extraction notes
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether extraction succeeded
func (r FileResult) OK() bool {
	return r.Record != nil && len(r.Errors) == 0
}

// licenseFile mirrors the XML export layout:
//
//	<licensefile><license>
//	  <details><detail name="customer" value="..."/></details>
//	  <options><option name="PROCESSPOINTS" value="500"/></options>
//	</license></licensefile>
type licenseFile struct {
	XMLName xml.Name `xml:"licensefile"`
	License *struct {
		Details *struct {
			Details []namedValue `xml:"detail"`
		} `xml:"details"`
		Options *struct {
			Options []namedValue `xml:"option"`
		} `xml:"options"`
	} `xml:"license"`
}

type namedValue struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

var (
	msidPattern    = regexp.MustCompile(`^([Mm]\d+(?:-EX\d+)?)_`)
	msidAnywhere   = regexp.MustCompile(`\b([Mm]\d+(?:-EX\d+)?)\b`)
	sysNumPattern  = regexp.MustCompile(`_x?_(\d{5,6})_`)
	sysNumAnywhere = regexp.MustCompile(`\b(\d{5,6})\b`)
	versionSuffix  = regexp.MustCompile(`_(\d+)$`)
)

// ExtractDir walks dir for .xml files and extracts them concurrently.
// Per-file failures become failed FileResults; the walk itself failing
// is the only error return. Results are ordered by path.
func (a *Adapter) ExtractDir(ctx context.Context, dir string) ([]FileResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Extraction("failed to scan entitlement directory", dir, err)
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
		return nil, apperrors.Extraction("entitlement extraction cancelled", dir, err)
	}

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	a.log.Info("entitlement extraction complete",
		zap.String("dir", dir),
		zap.Int("files", len(results)),
		zap.Int("succeeded", ok))
	return results, nil
}

// ExtractFile extracts one XML license file. It never returns an
// error; failures are recorded on the result so a bad file cannot
// abort a batch.
func (a *Adapter) ExtractFile(path string) FileResult {
	res := FileResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("cannot read file: %v", err))
		return res
	}

	var doc licenseFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("XML parse error: %v", err))
		return res
	}
	if doc.License == nil {
		res.Errors = append(res.Errors, "missing <license> element")
		return res
	}
	if doc.License.Details == nil {
		res.Errors = append(res.Errors, "missing <details> element")
		return res
	}
	if doc.License.Options == nil {
		res.Errors = append(res.Errors, "missing <options> element")
		return res
	}

	rec := &types.EntitlementRecord{
		Cluster:      a.clusterFromPath(path, &res),
		SystemName:   systemNameFromFolder(path),
		MSID:         msidFromPath(path, &res),
		SystemNumber: systemNumberFromPath(path, &res),
		FileVersion:  versionFromFilename(path, &res),
		SourcePath:   path,
		Licensed:     make(map[string]int),
	}

	for _, d := range doc.License.Details.Details {
		switch d.Name {
		case "release":
			rec.Release = d.Value
		case "product":
			rec.Product = d.Value
		case "customer":
			rec.Customer = d.Value
		case "generated":
			if d.Value == "" {
				continue
			}
			t, err := time.Parse("2006-01-02", d.Value)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("invalid license date %q", d.Value))
				continue
			}
			rec.LicenseDate = &t
		}
	}

	for _, opt := range doc.License.Options.Options {
		if opt.Name == "" || opt.Value == "" {
			continue
		}
		qty, err := strconv.Atoi(opt.Value)
		if err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("non-numeric option value: %s=%s", opt.Name, opt.Value))
			continue
		}
		rec.Licensed[opt.Name] = qty
	}

	res.Record = rec
	return res
}

// clusterFromPath finds a recognized cluster name among the path
// components.
func (a *Adapter) clusterFromPath(path string, res *FileResult) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, cluster := range a.config.Clusters {
			if part == cluster {
				return cluster
			}
		}
	}
	res.Warnings = append(res.Warnings, "could not determine cluster from path")
	return "Unknown"
}

// systemNameFromFolder reads the system name token from the parent
// folder, which is laid out as "<name> <msid> <system number>".
func systemNameFromFolder(path string) string {
	parts := strings.Fields(filepath.Base(filepath.Dir(path)))
	for i, part := range parts {
		if msidPattern.MatchString(part+"_") && i > 0 {
			return parts[0]
		}
	}
	return "Unknown"
}

func msidFromPath(path string, res *FileResult) string {
	stem := fileStem(path)
	if m := msidPattern.FindStringSubmatch(stem); m != nil {
		return strings.ToUpper(m[1])
	}
	folder := filepath.Base(filepath.Dir(path))
	if m := msidAnywhere.FindStringSubmatch(folder); m != nil {
		return strings.ToUpper(m[1])
	}
	res.Warnings = append(res.Warnings, "could not extract MSID from path")
	return "Unknown"
}

func systemNumberFromPath(path string, res *FileResult) string {
	stem := fileStem(path)
	if m := sysNumPattern.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	folder := filepath.Base(filepath.Dir(path))
	if m := sysNumAnywhere.FindStringSubmatch(folder); m != nil {
		return m[1]
	}
	res.Warnings = append(res.Warnings, "could not extract system number from path")
	return "00000"
}

func versionFromFilename(path string, res *FileResult) int {
	stem := fileStem(path)
	if m := versionSuffix.FindStringSubmatch(stem); m != nil {
		v, err := strconv.Atoi(m[1])
		if err == nil {
			return v
		}
	}
	res.Warnings = append(res.Warnings, "could not extract file version from filename")
	return 0
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
