// Package dedup collapses conflicting entitlement records for the same
// logical system into one record per unique key, by file version
// precedence, keeping a full audit trail of what was superseded.
package dedup

import (
	"fmt"
	"sort"

	"license-recon/core/types"
	apperrors "license-recon/internal/errors"
)

// ErrEmptyInput is returned when deduplication receives zero records.
// Deduplicating nothing signals an upstream extraction failure, so it
// is structural and fatal to the run.
var ErrEmptyInput = apperrors.Structural("deduplication received no entitlement records")

// Conflict describes a unique key that appeared with more than one
// distinct file version.
type Conflict struct {
	// Key identifies the system
	Key types.EntitlementKey `json:"key"`

	// Versions is every distinct file version seen, descending
	Versions []int `json:"versions"`

	// Kept is the version that won (always Versions[0])
	Kept int `json:"kept"`
}

// Stats summarizes a deduplication run for operator audit
type Stats struct {
	TotalInput           int `json:"total_input"`
	UniqueSystems        int `json:"unique_systems"`
	DuplicatesRemoved    int `json:"duplicates_removed"`
	SystemsWithConflicts int `json:"systems_with_conflicts"`
}

// Result carries the deduplicated records plus the audit trail
type Result struct {
	// Unique holds exactly one record per unique key, ordered by key
	Unique []*types.EntitlementRecord

	// Removed holds every superseded record, retained for audit
	Removed []*types.EntitlementRecord

	// Conflicts lists systems that appeared with multiple distinct
	// file versions
	Conflicts []Conflict

	// Stats summarizes the run
	Stats Stats
}

// Deduplicate returns one record per unique key, keeping the maximum
// file version within each group. Ties on version fall to first-seen
// order; input is pre-sorted by source path so "first seen" is
// reproducible regardless of extraction order.
func Deduplicate(records []*types.EntitlementRecord) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	ordered := make([]*types.EntitlementRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SourcePath < ordered[j].SourcePath
	})

	groups := make(map[types.EntitlementKey][]*types.EntitlementRecord)
	var keys []types.EntitlementKey
	for _, rec := range ordered {
		k := rec.Key()
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], rec)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	result := &Result{}
	for _, k := range keys {
		group := groups[k]
		if len(group) == 1 {
			result.Unique = append(result.Unique, group[0])
			continue
		}

		winner := group[0]
		for _, rec := range group[1:] {
			// Strictly greater: equal versions keep the first seen.
			if rec.FileVersion > winner.FileVersion {
				winner = rec
			}
		}
		result.Unique = append(result.Unique, winner)
		for _, rec := range group {
			if rec != winner {
				result.Removed = append(result.Removed, rec)
			}
		}

		if versions := distinctVersions(group); len(versions) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Key:      k,
				Versions: versions,
				Kept:     winner.FileVersion,
			})
		}
	}

	result.Stats = Stats{
		TotalInput:           len(records),
		UniqueSystems:        len(result.Unique),
		DuplicatesRemoved:    len(result.Removed),
		SystemsWithConflicts: len(result.Conflicts),
	}
	return result, nil
}

// Report converts the audit trail into issue-report entries
func (r *Result) Report() *types.RunReport {
	report := &types.RunReport{}
	for _, c := range r.Conflicts {
		report.AddWarning(types.StageDedup, c.Key.String(),
			formatConflict(c))
	}
	return report
}

func formatConflict(c Conflict) string {
	return fmt.Sprintf("version conflict: versions %v seen, kept v%d", c.Versions, c.Kept)
}

func distinctVersions(group []*types.EntitlementRecord) []int {
	seen := make(map[int]bool, len(group))
	var versions []int
	for _, rec := range group {
		if !seen[rec.FileVersion] {
			seen[rec.FileVersion] = true
			versions = append(versions, rec.FileVersion)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	return versions
}
