// Package types - cost calculations
package types

import "github.com/shopspring/decimal"

// CostCalculation is one priced license-type line for one system.
// All money values use exact decimal arithmetic; binary floats would
// drift across large aggregations.
type CostCalculation struct {
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

	// UnitPrice is the catalog price per Per increment
	UnitPrice decimal.Decimal `json:"unit_price"`

	// Per is the quantity increment the unit price applies to
	// (e.g., $45 per 50 points); 1 for simple per-unit pricing
	Per int `json:"per"`

	// TotalCost is (LicensedQuantity / Per) * UnitPrice, rounded to cents
	TotalCost decimal.Decimal `json:"total_cost"`

	// PriceSource records, verbatim, which pricing tier supplied the
	// price so reports can distinguish firm numbers from estimates
	PriceSource string `json:"price_source"`

	// Placeholder is set when no real catalog defined a price and the
	// fixed placeholder was used; never silently indistinguishable
	// from a confirmed price
	Placeholder bool `json:"placeholder"`
}

// EffectiveUnitPrice returns the per-single-unit price (UnitPrice / Per)
func (c CostCalculation) EffectiveUnitPrice() decimal.Decimal {
	if c.Per <= 1 {
		return c.UnitPrice
	}
	return c.UnitPrice.Div(decimal.NewFromInt(int64(c.Per)))
}
