// Package types - transfer candidates
package types

import "github.com/shopspring/decimal"

// TransferPriority tiers remediation effort by excess value
type TransferPriority string

const (
	// PriorityHigh is excess value strictly above the high threshold
	PriorityHigh TransferPriority = "HIGH"

	// PriorityMedium is excess value between the medium threshold and
	// the high threshold, both boundaries inclusive
	PriorityMedium TransferPriority = "MEDIUM"

	// PriorityLow is excess value strictly below the medium threshold
	PriorityLow TransferPriority = "LOW"
)

// Rank returns sort order, lower is more urgent
func (p TransferPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// TransferCandidate is a system/license-type pair with unused licensed
// capacity, eligible for license reallocation. Emitted only when
// ExcessQuantity > 0; derived, read-only.
type TransferCandidate struct {
	// Cluster is the site grouping
	Cluster string `json:"cluster"`

	// MSID is the system identifier
	MSID string `json:"msid"`

	// SystemNumber is the license certificate number
	SystemNumber string `json:"system_number"`

	// LicenseType is the entitlement-side license type name
	LicenseType string `json:"license_type"`

	// LicensedQuantity is the entitled quantity
	LicensedQuantity int `json:"licensed_quantity"`

	// UsedQuantity is the observed consumption (0 when unmatched)
	UsedQuantity int `json:"used_quantity"`

	// ExcessQuantity is max(0, licensed - used); always > 0 here
	ExcessQuantity int `json:"excess_quantity"`

	// UnitPrice is the effective per-unit price used for valuation
	UnitPrice decimal.Decimal `json:"unit_price"`

	// ExcessValue is ExcessQuantity * UnitPrice
	ExcessValue decimal.Decimal `json:"excess_value"`

	// Priority is the remediation tier derived from ExcessValue
	Priority TransferPriority `json:"priority"`

	// PriceSource carries the pricing provenance through to the
	// transfer report
	PriceSource string `json:"price_source"`

	// PlaceholderPrice is set when the valuation rests on the
	// placeholder price rather than a catalog entry
	PlaceholderPrice bool `json:"placeholder_price,omitempty"`
}

// UtilizationPercent returns used/licensed as a percentage
func (c TransferCandidate) UtilizationPercent() float64 {
	if c.LicensedQuantity == 0 {
		return 0
	}
	return float64(c.UsedQuantity) / float64(c.LicensedQuantity) * 100
}
