// Package validate applies record-level quality rules before the
// reconciliation stages run. ERROR-severity findings exclude the
// record; WARNING and INFO findings travel with it into the report.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"license-recon/core/types"
	"license-recon/internal/config"
)

// Validator checks entitlement and usage records against the
// configured business rules.
type Validator struct {
	customerPatterns []string
	maxLicenseAge    time.Duration
	now              func() time.Time
}

// New builds a Validator from validation configuration
func New(cfg config.ValidationConfig) *Validator {
	return &Validator{
		customerPatterns: cfg.CustomerPatterns,
		maxLicenseAge:    time.Duration(cfg.MaxLicenseAgeDays) * 24 * time.Hour,
		now:              time.Now,
	}
}

// Entitlement validates one entitlement record. The returned issues
// include at least one ERROR when the record must not proceed.
func (v *Validator) Entitlement(rec *types.EntitlementRecord) []types.Issue {
	var issues []types.Issue
	name := rec.DisplayName()

	add := func(sev types.Severity, msg string) {
		issues = append(issues, types.Issue{
			Stage:    types.StageValidation,
			Severity: sev,
			Record:   name,
			Source:   rec.SourcePath,
			Message:  msg,
		})
	}

	if rec.MSID == "" || strings.EqualFold(rec.MSID, "unknown") {
		add(types.SeverityError, fmt.Sprintf("invalid MSID %q", rec.MSID))
	}
	if _, err := strconv.Atoi(rec.SystemNumber); err != nil {
		add(types.SeverityError, fmt.Sprintf("system number %q is not numeric", rec.SystemNumber))
	}
	if rec.Cluster == "" {
		add(types.SeverityError, "cluster is required for grouping")
	}
	if rec.FileVersion < 0 {
		add(types.SeverityError, fmt.Sprintf("file version %d is negative", rec.FileVersion))
	}
	for licenseType, quantity := range rec.Licensed {
		if quantity < 0 {
			add(types.SeverityError, fmt.Sprintf("negative licensed quantity %d for %s", quantity, licenseType))
		}
	}

	if len(v.customerPatterns) > 0 && rec.Customer != "" && !v.customerMatches(rec.Customer) {
		add(types.SeverityWarning, fmt.Sprintf("customer %q matches no expected pattern", rec.Customer))
	}
	if rec.LicenseDate != nil && v.maxLicenseAge > 0 {
		if age := v.now().Sub(*rec.LicenseDate); age > v.maxLicenseAge {
			add(types.SeverityWarning, fmt.Sprintf("license generated %s, older than the configured maximum age",
				rec.LicenseDate.Format("2006-01-02")))
		}
	}
	return issues
}

// Usage validates one usage record
func (v *Validator) Usage(rec *types.UsageRecord) []types.Issue {
	var issues []types.Issue

	add := func(sev types.Severity, msg string) {
		issues = append(issues, types.Issue{
			Stage:    types.StageValidation,
			Severity: sev,
			Record:   rec.MSID + "/" + rec.LicenseType,
			Source:   rec.SourcePath,
			Message:  msg,
		})
	}

	if rec.MSID == "" || strings.EqualFold(rec.MSID, "unknown") {
		add(types.SeverityError, fmt.Sprintf("invalid MSID %q", rec.MSID))
	}
	if rec.LicenseType == "" {
		add(types.SeverityError, "license type is required")
	}
	if rec.UsedQuantity < 0 {
		add(types.SeverityError, fmt.Sprintf("negative used quantity %d", rec.UsedQuantity))
	}
	return issues
}

// Blocks reports whether a set of issues contains an ERROR
func Blocks(issues []types.Issue) bool {
	for _, i := range issues {
		if i.Severity == types.SeverityError {
			return true
		}
	}
	return false
}

func (v *Validator) customerMatches(customer string) bool {
	for _, p := range v.customerPatterns {
		if strings.Contains(strings.ToLower(customer), strings.ToLower(p)) {
			return true
		}
	}
	return false
}
