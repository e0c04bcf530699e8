// Package types defines the immutable value objects that flow through
// the reconciliation pipeline. Each stage consumes the prior stage's
// records and produces new ones; nothing here is mutated after creation.
package types

import (
	"fmt"
	"time"
)

// EntitlementKey is the unique identity of one logical system.
// The triple must be globally unique after deduplication.
type EntitlementKey struct {
	// Cluster is the site grouping (e.g., "Carson", "Wilmington")
	Cluster string `json:"cluster"`

	// MSID is the mnemonic system identifier (e.g., "M0614")
	MSID string `json:"msid"`

	// SystemNumber is the license certificate number (e.g., "60806")
	SystemNumber string `json:"system_number"`
}

// String returns the canonical "cluster/msid/system_number" form
func (k EntitlementKey) String() string {
	return k.Cluster + "/" + k.MSID + "/" + k.SystemNumber
}

// EntitlementRecord is one system's licensed entitlements, extracted
// from a single license XML file. Multiple records may share a key
// until deduplication selects the highest file version.
type EntitlementRecord struct {
	// Cluster is the site grouping
	Cluster string `json:"cluster"`

	// MSID is the mnemonic system identifier
	MSID string `json:"msid"`

	// SystemNumber is the license certificate number
	SystemNumber string `json:"system_number"`

	// SystemName is the plant-area name from the source folder (optional)
	SystemName string `json:"system_name,omitempty"`

	// Release is the software version string (e.g., "R520")
	Release string `json:"release"`

	// Product is the product family (e.g., "PKS")
	Product string `json:"product,omitempty"`

	// Customer is the licensed customer name
	Customer string `json:"customer,omitempty"`

	// LicenseDate is when the license was generated
	LicenseDate *time.Time `json:"license_date,omitempty"`

	// FileVersion is the monotonic version from the filename suffix,
	// used for conflict resolution during deduplication
	FileVersion int `json:"file_version"`

	// SourcePath is the originating file, kept for error tracing
	SourcePath string `json:"source_path"`

	// Licensed maps license type name to licensed quantity (>= 0)
	Licensed map[string]int `json:"licensed"`
}

// Key returns the deduplication identity
func (r *EntitlementRecord) Key() EntitlementKey {
	return EntitlementKey{Cluster: r.Cluster, MSID: r.MSID, SystemNumber: r.SystemNumber}
}

// DisplayName returns a human-readable label like "M0614/60806 (Carson)"
func (r *EntitlementRecord) DisplayName() string {
	return fmt.Sprintf("%s/%s (%s)", r.MSID, r.SystemNumber, r.Cluster)
}

// LicensedQuantity returns the quantity for a license type and whether
// the type is present at all. Absence is distinct from an explicit zero.
func (r *EntitlementRecord) LicensedQuantity(licenseType string) (int, bool) {
	q, ok := r.Licensed[licenseType]
	return q, ok
}

// HasLicenseType reports whether the type is present with quantity > 0
func (r *EntitlementRecord) HasLicenseType(licenseType string) bool {
	q, ok := r.Licensed[licenseType]
	return ok && q > 0
}
