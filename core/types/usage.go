// Package types - usage records
package types

import "time"

// UsageRecord is observed consumption for one system/license-type,
// extracted from a Station Manager CSV export. Immutable once created.
type UsageRecord struct {
	// MSID is the system identifier, matched against EntitlementRecord.MSID
	MSID string `json:"msid"`

	// LicenseType is the consumed license type, in the usage vocabulary
	LicenseType string `json:"license_type"`

	// UsedQuantity is the observed consumption (>= 0)
	UsedQuantity int `json:"used_quantity"`

	// Cluster is the site grouping when the export specifies one;
	// empty means the export did not disambiguate by site
	Cluster string `json:"cluster,omitempty"`

	// SystemName is the plant-area name from the export header (optional)
	SystemName string `json:"system_name,omitempty"`

	// AsOfDate is the collate date of the export
	AsOfDate *time.Time `json:"as_of_date,omitempty"`

	// SourcePath is the originating file, kept for error tracing
	SourcePath string `json:"source_path,omitempty"`
}
