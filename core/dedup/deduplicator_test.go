package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-recon/core/types"
	apperrors "license-recon/internal/errors"
)

func record(cluster, msid, sysNum string, version int, source string) *types.EntitlementRecord {
	return &types.EntitlementRecord{
		Cluster:      cluster,
		MSID:         msid,
		SystemNumber: sysNum,
		FileVersion:  version,
		SourcePath:   source,
		Licensed:     map[string]int{"PROCESSPOINTS": 100},
	}
}

func TestDeduplicateKeepsHighestVersion(t *testing.T) {
	v29 := record("Carson", "M0614", "60806", 29, "a/M0614_x_60806_29.xml")
	v40 := record("Carson", "M0614", "60806", 40, "a/M0614_x_60806_40.xml")

	result, err := Deduplicate([]*types.EntitlementRecord{v29, v40})
	require.NoError(t, err)

	require.Len(t, result.Unique, 1)
	assert.Same(t, v40, result.Unique[0])
	require.Len(t, result.Removed, 1)
	assert.Same(t, v29, result.Removed[0])

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, []int{40, 29}, result.Conflicts[0].Versions)
	assert.Equal(t, 40, result.Conflicts[0].Kept)

	assert.Equal(t, 2, result.Stats.TotalInput)
	assert.Equal(t, 1, result.Stats.UniqueSystems)
	assert.Equal(t, 1, result.Stats.DuplicatesRemoved)
	assert.Equal(t, 1, result.Stats.SystemsWithConflicts)
}

func TestDeduplicateVersionTieKeepsFirstBySourcePath(t *testing.T) {
	second := record("Carson", "M0614", "60806", 29, "b/M0614_29.xml")
	first := record("Carson", "M0614", "60806", 29, "a/M0614_29.xml")

	// Extraction order must not matter; source path order does.
	result, err := Deduplicate([]*types.EntitlementRecord{second, first})
	require.NoError(t, err)

	require.Len(t, result.Unique, 1)
	assert.Same(t, first, result.Unique[0])
	// Equal versions are not a version conflict.
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, 1, result.Stats.DuplicatesRemoved)
}

func TestDeduplicateDistinctKeysPassThrough(t *testing.T) {
	records := []*types.EntitlementRecord{
		record("Carson", "M0614", "60806", 40, "a.xml"),
		record("Carson", "M0614", "60807", 40, "b.xml"),
		record("Wilmington", "M0614", "60806", 40, "c.xml"),
	}

	result, err := Deduplicate(records)
	require.NoError(t, err)

	assert.Len(t, result.Unique, 3)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Conflicts)
}

func TestDeduplicateOutputOrderedByKey(t *testing.T) {
	records := []*types.EntitlementRecord{
		record("Wilmington", "M0922", "50215", 1, "z.xml"),
		record("Carson", "M0614", "60806", 1, "a.xml"),
	}

	result, err := Deduplicate(records)
	require.NoError(t, err)

	require.Len(t, result.Unique, 2)
	assert.Equal(t, "Carson", result.Unique[0].Cluster)
	assert.Equal(t, "Wilmington", result.Unique[1].Cluster)
}

func TestDeduplicateEmptyInputIsStructural(t *testing.T) {
	_, err := Deduplicate(nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeStructural))
}

func TestConflictReportWarns(t *testing.T) {
	v29 := record("Carson", "M0614", "60806", 29, "a.xml")
	v40 := record("Carson", "M0614", "60806", 40, "b.xml")

	result, err := Deduplicate([]*types.EntitlementRecord{v29, v40})
	require.NoError(t, err)

	report := result.Report()
	require.Len(t, report.Issues, 1)
	assert.Equal(t, types.SeverityWarning, report.Issues[0].Severity)
	assert.Equal(t, types.StageDedup, report.Issues[0].Stage)
	assert.Contains(t, report.Issues[0].Message, "kept v40")
}
