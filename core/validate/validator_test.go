package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-recon/core/types"
	"license-recon/internal/config"
)

func validEntitlement() *types.EntitlementRecord {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &types.EntitlementRecord{
		Cluster:      "Carson",
		MSID:         "M0614",
		SystemNumber: "60806",
		Customer:     "Marathon Petroleum Company",
		LicenseDate:  &date,
		FileVersion:  40,
		Licensed:     map[string]int{"PROCESSPOINTS": 500},
	}
}

func TestValidEntitlementPasses(t *testing.T) {
	v := New(config.ValidationConfig{MaxLicenseAgeDays: 3650})
	assert.Empty(t, v.Entitlement(validEntitlement()))
}

func TestEntitlementErrors(t *testing.T) {
	v := New(config.ValidationConfig{})

	cases := []struct {
		name   string
		mutate func(*types.EntitlementRecord)
		want   string
	}{
		{"empty msid", func(r *types.EntitlementRecord) { r.MSID = "" }, "invalid MSID"},
		{"unknown msid", func(r *types.EntitlementRecord) { r.MSID = "Unknown" }, "invalid MSID"},
		{"non-numeric system number", func(r *types.EntitlementRecord) { r.SystemNumber = "ABC" }, "not numeric"},
		{"missing cluster", func(r *types.EntitlementRecord) { r.Cluster = "" }, "cluster"},
		{"negative version", func(r *types.EntitlementRecord) { r.FileVersion = -1 }, "negative"},
		{"negative quantity", func(r *types.EntitlementRecord) { r.Licensed["PROCESSPOINTS"] = -5 }, "negative licensed quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validEntitlement()
			tc.mutate(rec)
			issues := v.Entitlement(rec)
			require.NotEmpty(t, issues)
			assert.True(t, Blocks(issues))
			assert.Contains(t, issues[0].Message, tc.want)
		})
	}
}

func TestCustomerPatternMismatchWarnsOnly(t *testing.T) {
	v := New(config.ValidationConfig{CustomerPatterns: []string{"marathon"}})

	rec := validEntitlement()
	rec.Customer = "Someone Else Inc"
	issues := v.Entitlement(rec)

	require.Len(t, issues, 1)
	assert.Equal(t, types.SeverityWarning, issues[0].Severity)
	assert.False(t, Blocks(issues))
}

func TestStaleLicenseWarns(t *testing.T) {
	v := New(config.ValidationConfig{MaxLicenseAgeDays: 365})
	v.now = func() time.Time { return time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC) }

	rec := validEntitlement()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.LicenseDate = &old

	issues := v.Entitlement(rec)
	require.Len(t, issues, 1)
	assert.Equal(t, types.SeverityWarning, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "older than")
}

func TestUsageValidation(t *testing.T) {
	v := New(config.ValidationConfig{})

	ok := &types.UsageRecord{MSID: "M0614", LicenseType: "PROCESSPOINTS", UsedQuantity: 300}
	assert.Empty(t, v.Usage(ok))

	bad := &types.UsageRecord{MSID: "", LicenseType: "", UsedQuantity: -1}
	issues := v.Usage(bad)
	assert.Len(t, issues, 3)
	assert.True(t, Blocks(issues))
}
