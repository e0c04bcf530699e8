package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-recon/core/types"
	"license-recon/internal/config"
	apperrors "license-recon/internal/errors"
)

func placeholder(v float64) *float64 { return &v }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pricing.Strategy = []config.PricingStrategy{
		{
			Name:     "MPC 2026 Confirmed",
			Priority: 1,
			Catalog: map[string]config.CatalogEntry{
				"PROCESSPOINTS": {UnitCost: 50, Per: 1},
				"STATIONS":      {UnitCost: 2500, Per: 1},
			},
		},
		{Name: "Placeholder $100", Priority: 99, Value: placeholder(100)},
	}
	return cfg
}

func entitlementRecord(version int, source string) *types.EntitlementRecord {
	return &types.EntitlementRecord{
		Cluster:      "Carson",
		MSID:         "M0614",
		SystemNumber: "60806",
		FileVersion:  version,
		SourcePath:   source,
		Licensed:     map[string]int{"PROCESSPOINTS": 500},
	}
}

func TestRunEndToEnd(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{
			entitlementRecord(29, "raw/Carson/M0614_x_60806_29.xml"),
			entitlementRecord(40, "raw/Carson/M0614_x_60806_40.xml"),
		},
		Usage: []*types.UsageRecord{
			{MSID: "M0614", LicenseType: "PROCESSPOINTS", UsedQuantity: 300, SourcePath: "usage/m0614.csv"},
		},
	})
	require.NoError(t, err)

	// Dedup kept the higher file version.
	require.Len(t, res.Entitlements, 1)
	assert.Equal(t, 40, res.Entitlements[0].FileVersion)
	assert.Equal(t, 1, res.DedupStats.DuplicatesRemoved)

	// Exact match carried the usage through.
	require.Len(t, res.Matches, 1)
	assert.Equal(t, types.ConfidenceExact, res.Matches[0].Confidence)

	// Costing: 500 points at $50.
	require.Len(t, res.Costs, 1)
	assert.Equal(t, "25000", res.TotalCost.String())
	assert.Equal(t, "MPC 2026 Confirmed", res.Costs[0].PriceSource)

	// Transfer: 200 excess at $50 is $10,000, exactly the MEDIUM floor.
	require.Len(t, res.Transfers, 1)
	cand := res.Transfers[0]
	assert.Equal(t, 200, cand.ExcessQuantity)
	assert.Equal(t, "10000", cand.ExcessValue.String())
	assert.Equal(t, types.PriorityMedium, cand.Priority)

	// The version conflict is the only non-INFO finding.
	assert.Equal(t, 0, res.Report.Count(types.SeverityError))
	assert.Equal(t, 1, res.Report.Count(types.SeverityWarning))
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.RunID)
	assert.Contains(t, res.StageTimes, types.StageDedup)
}

func TestRunUnmatchedSystemIsFullyExcess(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{
			entitlementRecord(40, "raw/Carson/M0614_x_60806_40.xml"),
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, types.ConfidenceUnmatched, res.Matches[0].Confidence)

	require.Len(t, res.Transfers, 1)
	assert.Equal(t, 500, res.Transfers[0].ExcessQuantity)
	assert.Equal(t, "25000", res.Transfers[0].ExcessValue.String())
}

func TestRunExtractionFailuresReportedNotFatal(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{
			entitlementRecord(40, "raw/Carson/M0614_x_60806_40.xml"),
		},
		EntitlementFailures: []SourceError{
			{Path: "raw/Carson/broken.xml", Errors: []string{"XML parse error: unexpected EOF"}},
		},
	})
	require.NoError(t, err)

	// The batch still processed the good record.
	assert.Len(t, res.Entitlements, 1)

	errs := res.Report.BySeverity(types.SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, types.StageExtraction, errs[0].Stage)
	assert.Equal(t, "raw/Carson/broken.xml", errs[0].Source)
	assert.False(t, res.Success)
}

func TestRunValidationErrorExcludesRecord(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	bad := entitlementRecord(40, "raw/b.xml")
	bad.SystemNumber = "ABC"

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{
			entitlementRecord(40, "raw/a.xml"),
			bad,
		},
	})
	require.NoError(t, err)

	// The invalid record is reported and dropped; only the valid one
	// reaches dedup and costing.
	errs := res.Report.BySeverity(types.SeverityError)
	require.NotEmpty(t, errs)
	assert.Equal(t, types.StageValidation, errs[0].Stage)
	assert.False(t, res.Success)

	assert.Equal(t, 1, res.ExcludedEntitlements)
	require.Len(t, res.Entitlements, 1)
	assert.Equal(t, "60806", res.Entitlements[0].SystemNumber)
	require.Len(t, res.Costs, 1)
	assert.Equal(t, "60806", res.Costs[0].SystemNumber)
}

func TestRunNegativeQuantityRecordNeverPriced(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	bad := entitlementRecord(40, "raw/b.xml")
	bad.MSID = "M0700"
	bad.Licensed = map[string]int{"PROCESSPOINTS": -500}

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{
			entitlementRecord(40, "raw/a.xml"),
			bad,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ExcludedEntitlements)
	for _, rec := range res.Entitlements {
		assert.NotEqual(t, "M0700", rec.MSID)
	}
	for _, cost := range res.Costs {
		assert.NotEqual(t, "M0700", cost.MSID)
		assert.False(t, cost.TotalCost.IsNegative())
	}
	assert.False(t, res.Success)
}

func TestRunInvalidUsageExcludedFromMatching(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{
			entitlementRecord(40, "raw/a.xml"),
		},
		Usage: []*types.UsageRecord{
			{MSID: "M0614", LicenseType: "PROCESSPOINTS", UsedQuantity: -5, SourcePath: "usage/a.csv"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ExcludedUsage)
	assert.Empty(t, res.Usage)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, types.ConfidenceUnmatched, res.Matches[0].Confidence)
	assert.False(t, res.Success)
}

func TestRunAllRecordsExcludedIsStructural(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	bad := entitlementRecord(40, "raw/a.xml")
	bad.Licensed = map[string]int{"PROCESSPOINTS": -500}

	_, err = coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{bad},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}

func TestRunPlaceholderPricingFlagsTransferValue(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	rec := entitlementRecord(40, "raw/a.xml")
	rec.Licensed = map[string]int{"OPCCLIENT": 10}

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{rec},
	})
	require.NoError(t, err)

	require.Len(t, res.Transfers, 1)
	assert.True(t, res.Transfers[0].PlaceholderPrice)
	assert.Equal(t, "Placeholder $100", res.Transfers[0].PriceSource)

	warnings := res.Report.BySeverity(types.SeverityWarning)
	require.NotEmpty(t, warnings)
}

func TestRunNotesUnmappedLicenseType(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	rec := entitlementRecord(40, "raw/a.xml")
	rec.Licensed = map[string]int{"EXPERIONBACKUP": 1}

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{rec},
	})
	require.NoError(t, err)

	var found bool
	for _, issue := range res.Report.BySeverity(types.SeverityInfo) {
		if issue.Stage == types.StageMapping {
			assert.Contains(t, issue.Message, "unmapped field EXPERIONBACKUP")
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunNotesUsageWithoutLicensedCounterpart(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{
			entitlementRecord(40, "raw/a.xml"),
		},
		Usage: []*types.UsageRecord{
			{MSID: "M0614", LicenseType: "PROCESSPOINTS", UsedQuantity: 300, SourcePath: "usage/a.csv"},
			{MSID: "M0614", LicenseType: "CONSOLE_STATIONS", UsedQuantity: 4, SourcePath: "usage/a.csv"},
		},
	})
	require.NoError(t, err)

	var notes []string
	for _, issue := range res.Report.BySeverity(types.SeverityInfo) {
		if issue.Stage == types.StageTransfer {
			notes = append(notes, issue.Message)
		}
	}
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], `usage field "CONSOLE_STATIONS" has no licensed counterpart`)
}

func TestRunMappedUsageFieldIsCovered(t *testing.T) {
	cfg := testConfig()
	cfg.FieldMappings.LicenseToUsage = map[string]config.FieldMapping{
		"DIRECTSTATIONS": {Primary: "CONSOLE_STATIONS"},
	}
	cfg.Pricing.Strategy = append(cfg.Pricing.Strategy, config.PricingStrategy{
		Name:     "Station Catalog",
		Priority: 2,
		Catalog:  map[string]config.CatalogEntry{"DIRECTSTATIONS": {UnitCost: 2500, Per: 1}},
	})
	coord, err := New(cfg)
	require.NoError(t, err)

	rec := entitlementRecord(40, "raw/a.xml")
	rec.Licensed = map[string]int{"DIRECTSTATIONS": 6}

	res, err := coord.Run(context.Background(), Inputs{
		Entitlements: []*types.EntitlementRecord{rec},
		Usage: []*types.UsageRecord{
			{MSID: "M0614", LicenseType: "CONSOLE_STATIONS", UsedQuantity: 4, SourcePath: "usage/a.csv"},
		},
	})
	require.NoError(t, err)

	// The usage field reaches DIRECTSTATIONS through the mapping
	// table, so no counterpart note is raised and the excess shrinks.
	for _, issue := range res.Report.BySeverity(types.SeverityInfo) {
		if issue.Stage == types.StageTransfer {
			assert.NotContains(t, issue.Message, "no licensed counterpart")
		}
	}
	require.Len(t, res.Transfers, 1)
	assert.Equal(t, 2, res.Transfers[0].ExcessQuantity)
}

func TestRunEmptyInputIsStructural(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	_, err = coord.Run(context.Background(), Inputs{})
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}

func TestRunHonorsCancellation(t *testing.T) {
	coord, err := New(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = coord.Run(ctx, Inputs{
		Entitlements: []*types.EntitlementRecord{entitlementRecord(40, "raw/a.xml")},
	})
	require.Error(t, err)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}
