// Package pipeline - run result
package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"license-recon/core/dedup"
	"license-recon/core/types"
)

// SourceError tags one source file whose extraction failed. Failed
// files are excluded from processing but retained in the report.
type SourceError struct {
	// Path is the source file
	Path string `json:"path"`

	// Errors lists the extraction error descriptions
	Errors []string `json:"errors"`
}

// Inputs is the contract the coordinator consumes from the extraction
// collaborators: already-typed records plus per-file failure tags.
type Inputs struct {
	// Entitlements are the successfully extracted entitlement records
	Entitlements []*types.EntitlementRecord

	// EntitlementFailures are entitlement files that failed extraction
	EntitlementFailures []SourceError

	// Usage are the successfully extracted usage records
	Usage []*types.UsageRecord

	// UsageFailures are usage files that failed extraction
	UsageFailures []SourceError
}

// Result is everything one pipeline run produced: the final record
// collections for export plus the aggregated issue report. All
// collections are immutable once the run returns.
type Result struct {
	// RunID uniquely identifies this run
	RunID string `json:"run_id"`

	// StartedAt is when the run began
	StartedAt time.Time `json:"started_at"`

	// Duration is the total wall time
	Duration time.Duration `json:"duration"`

	// StageTimes records per-stage wall time
	StageTimes map[types.Stage]time.Duration `json:"stage_times"`

	// ExcludedEntitlements counts entitlement records dropped by
	// validation before deduplication
	ExcludedEntitlements int `json:"excluded_entitlements"`

	// ExcludedUsage counts usage records dropped by validation
	// before matching
	ExcludedUsage int `json:"excluded_usage"`

	// Entitlements are the deduplicated records
	Entitlements []*types.EntitlementRecord `json:"entitlements"`

	// DedupStats summarizes deduplication
	DedupStats dedup.Stats `json:"dedup_stats"`

	// Conflicts are the version conflicts found during deduplication
	Conflicts []dedup.Conflict `json:"conflicts,omitempty"`

	// Usage are the usage records that entered matching
	Usage []*types.UsageRecord `json:"usage"`

	// Matches are the confidence-scored match records
	Matches []*types.MatchRecord `json:"matches"`

	// MatchStats summarizes matching quality
	MatchStats types.MatchStats `json:"match_stats"`

	// Costs are the priced entitlement lines
	Costs []types.CostCalculation `json:"costs"`

	// TotalCost is the exact sum of all line totals
	TotalCost decimal.Decimal `json:"total_cost"`

	// Transfers are the detected transfer candidates
	Transfers []types.TransferCandidate `json:"transfers"`

	// TotalExcessValue sums every candidate's excess value
	TotalExcessValue decimal.Decimal `json:"total_excess_value"`

	// Report aggregates every issue from every stage
	Report *types.RunReport `json:"report"`

	// Success is true when no ERROR-severity issue was raised
	Success bool `json:"success"`
}
