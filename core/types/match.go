// Package types - match records
package types

// MatchConfidence classifies how an entitlement was associated with
// usage data. The ordering is strict: exact outranks fuzzy, and fuzzy
// outranks unmatched.
type MatchConfidence string

const (
	// ConfidenceExact means identical MSID (and cluster, when the
	// usage record specifies one)
	ConfidenceExact MatchConfidence = "exact"

	// ConfidenceFuzzy means a textual-similarity association above
	// the configured threshold
	ConfidenceFuzzy MatchConfidence = "fuzzy"

	// ConfidenceUnmatched means no usage data was found; downstream
	// stages treat used quantity as zero
	ConfidenceUnmatched MatchConfidence = "unmatched"
)

// Rank returns a comparable strength, higher is stronger
func (c MatchConfidence) Rank() int {
	switch c {
	case ConfidenceExact:
		return 2
	case ConfidenceFuzzy:
		return 1
	default:
		return 0
	}
}

// MatchRecord is the outcome of associating one entitlement with zero
// or more usage records.
type MatchRecord struct {
	// Key identifies the entitlement
	Key EntitlementKey `json:"entitlement_key"`

	// Entitlement is the deduplicated record that was matched
	Entitlement *EntitlementRecord `json:"-"`

	// MatchedUsage is the ordered sequence of associated usage
	// records; empty when unmatched
	MatchedUsage []*UsageRecord `json:"matched_usage,omitempty"`

	// Confidence classifies the match strength
	Confidence MatchConfidence `json:"confidence"`

	// Similarity is the normalized textual similarity for fuzzy
	// matches (1.0 for exact, 0.0 for unmatched)
	Similarity float64 `json:"similarity"`

	// Ambiguous is set when more than one candidate existed with
	// comparable confidence; the top candidate is still chosen
	Ambiguous bool `json:"ambiguity_flag"`

	// SharedUsage is set when the matched usage record was also
	// fuzzy-matched to another entitlement
	SharedUsage bool `json:"shared_usage,omitempty"`

	// Notes carries human-readable match annotations
	Notes []string `json:"notes,omitempty"`
}

// UsedQuantities folds the matched usage rows into a map of
// license type to used quantity, in the usage vocabulary.
func (m *MatchRecord) UsedQuantities() map[string]int {
	out := make(map[string]int, len(m.MatchedUsage))
	for _, u := range m.MatchedUsage {
		out[u.LicenseType] += u.UsedQuantity
	}
	return out
}

// MatchStats summarizes a matching run for trustworthiness assessment
type MatchStats struct {
	// Total is the number of entitlements considered
	Total int `json:"total"`

	// Exact is the count of exact-key matches
	Exact int `json:"exact"`

	// Fuzzy is the count of similarity matches
	Fuzzy int `json:"fuzzy"`

	// Unmatched is the count of entitlements with no usage data
	Unmatched int `json:"unmatched"`

	// Ambiguous is the count of matches flagged for review
	Ambiguous int `json:"ambiguous"`

	// SharedUsage is the count of usage records fuzzy-matched to
	// more than one entitlement
	SharedUsage int `json:"shared_usage"`
}
