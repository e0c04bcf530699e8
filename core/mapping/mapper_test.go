package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-recon/internal/config"
)

func testMapper() *Mapper {
	return New(config.FieldMappings{LicenseToUsage: map[string]config.FieldMapping{
		"DIRECTSTATIONS": {Primary: "CONSOLE_STATIONS"},
		"STATIONS":       {Primary: "STATIONS", Fallbacks: []string{"FLEX_STATIONS", "TOTAL_STATIONS"}},
		"SCADAPOINTS":    {Primary: "SCADAPOINTS"},
	}})
}

func TestCanonicalMapsSynonyms(t *testing.T) {
	m := testMapper()

	res := m.Canonical("DIRECTSTATIONS")
	assert.Equal(t, "CONSOLE_STATIONS", res.Target)
	assert.False(t, res.Unmapped)
}

func TestCanonicalUnmappedPassesThrough(t *testing.T) {
	m := testMapper()

	res := m.Canonical("OPCCLIENT")
	assert.Equal(t, "OPCCLIENT", res.Target)
	assert.True(t, res.Unmapped)
}

func TestResolveFallbackOrderIsDeterministic(t *testing.T) {
	m := testMapper()
	usage := map[string]int{"FLEX_STATIONS": 7, "TOTAL_STATIONS": 9}

	// Primary absent; the first present fallback wins every time.
	for i := 0; i < 50; i++ {
		qty, res := m.UsageValue("STATIONS", usage)
		require.True(t, res.Found)
		require.True(t, res.FallbackUsed)
		assert.Equal(t, "FLEX_STATIONS", res.Fallback)
		assert.Equal(t, 7, qty)
	}
}

func TestResolveSecondFallbackWhenFirstAbsent(t *testing.T) {
	m := testMapper()

	qty, res := m.UsageValue("STATIONS", map[string]int{"TOTAL_STATIONS": 9})
	require.True(t, res.Found)
	assert.Equal(t, "TOTAL_STATIONS", res.Fallback)
	assert.Equal(t, 9, qty)
}

func TestAbsenceIsNotZero(t *testing.T) {
	m := testMapper()

	// Explicit zero is a found value.
	qty, res := m.UsageValue("SCADAPOINTS", map[string]int{"SCADAPOINTS": 0})
	assert.True(t, res.Found)
	assert.Equal(t, 0, qty)

	// A missing field is absent, not zero.
	qty, res = m.UsageValue("SCADAPOINTS", map[string]int{"PROCESSPOINTS": 500})
	assert.False(t, res.Found)
	assert.Equal(t, 0, qty)
}

func TestUnmappedNameResolvesAgainstItself(t *testing.T) {
	m := testMapper()

	qty, res := m.UsageValue("OPCCLIENT", map[string]int{"OPCCLIENT": 3})
	assert.True(t, res.Unmapped)
	assert.True(t, res.Found)
	assert.Equal(t, 3, qty)
}

func TestEmptyPrimaryDefaultsToEntryName(t *testing.T) {
	m := New(config.FieldMappings{LicenseToUsage: map[string]config.FieldMapping{
		"MODICON": {Fallbacks: []string{"MODBUS"}},
	}})

	res := m.Canonical("MODICON")
	assert.Equal(t, "MODICON", res.Target)
}

func TestReverseLookupCoversFallbacks(t *testing.T) {
	m := testMapper()

	assert.Equal(t, []string{"DIRECTSTATIONS"}, m.ReverseLookup("CONSOLE_STATIONS"))
	assert.Equal(t, []string{"STATIONS"}, m.ReverseLookup("FLEX_STATIONS"))
	assert.Empty(t, m.ReverseLookup("NOTHING"))
}
