// Package transfer computes excess licensed capacity per
// system/license-type and classifies it into priority tiers by excess
// value. Candidates are derived, read-only records; zero-excess pairs
// are never emitted.
package transfer

import (
	"sort"

	"github.com/shopspring/decimal"

	"license-recon/core/types"
	"license-recon/internal/config"
)

// Line is one matched, priced (licensed, used, unit price) triple,
// assembled by the coordinator from match and cost records.
type Line struct {
	Cluster      string
	MSID         string
	SystemNumber string
	LicenseType  string

	// Licensed is the entitled quantity
	Licensed int

	// Used is the observed consumption; 0 for unmatched systems
	Used int

	// UnitPrice is the effective per-single-unit price
	UnitPrice decimal.Decimal

	// PriceSource carries pricing provenance into the candidate
	PriceSource string

	// Placeholder marks a valuation resting on the placeholder price
	Placeholder bool
}

// Result carries the candidates plus aggregate figures
type Result struct {
	Candidates []types.TransferCandidate

	// TotalExcessValue sums every candidate's excess value
	TotalExcessValue decimal.Decimal

	// ByPriority counts candidates per tier
	ByPriority map[types.TransferPriority]int

	// SystemsAnalyzed is the number of lines examined
	SystemsAnalyzed int
}

// Detector classifies excess value against configured thresholds
type Detector struct {
	high   decimal.Decimal
	medium decimal.Decimal
}

// New builds a Detector. Defaults follow the fixed policy: above
// 50,000 is HIGH, 10,000 to 50,000 inclusive is MEDIUM, below 10,000
// is LOW.
func New(cfg config.TransferConfig) *Detector {
	return &Detector{
		high:   decimal.NewFromFloat(cfg.HighThreshold),
		medium: decimal.NewFromFloat(cfg.MediumThreshold),
	}
}

// Detect emits one candidate per line with positive excess, sorted by
// priority then descending excess value.
func (d *Detector) Detect(lines []Line) *Result {
	result := &Result{
		TotalExcessValue: decimal.Zero,
		ByPriority:       make(map[types.TransferPriority]int),
	}

	for _, line := range lines {
		result.SystemsAnalyzed++

		excess := line.Licensed - line.Used
		if excess <= 0 {
			continue
		}

		value := decimal.NewFromInt(int64(excess)).Mul(line.UnitPrice).Round(2)
		priority := d.Classify(value)

		result.Candidates = append(result.Candidates, types.TransferCandidate{
			Cluster:          line.Cluster,
			MSID:             line.MSID,
			SystemNumber:     line.SystemNumber,
			LicenseType:      line.LicenseType,
			LicensedQuantity: line.Licensed,
			UsedQuantity:     line.Used,
			ExcessQuantity:   excess,
			UnitPrice:        line.UnitPrice,
			ExcessValue:      value,
			Priority:         priority,
			PriceSource:      line.PriceSource,
			PlaceholderPrice: line.Placeholder,
		})
		result.TotalExcessValue = result.TotalExcessValue.Add(value)
		result.ByPriority[priority]++
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		a, b := result.Candidates[i], result.Candidates[j]
		if a.Priority != b.Priority {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		return a.ExcessValue.GreaterThan(b.ExcessValue)
	})
	return result
}

// Classify maps an excess value to a tier. Boundaries are exact:
// the high threshold itself is MEDIUM, the medium threshold itself is
// MEDIUM; operators size remediation effort from these.
func (d *Detector) Classify(excessValue decimal.Decimal) types.TransferPriority {
	if excessValue.GreaterThan(d.high) {
		return types.PriorityHigh
	}
	if excessValue.GreaterThanOrEqual(d.medium) {
		return types.PriorityMedium
	}
	return types.PriorityLow
}
