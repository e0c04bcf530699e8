package transfer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-recon/core/types"
	"license-recon/internal/config"
)

func defaultDetector() *Detector {
	return New(config.TransferConfig{HighThreshold: 50000, MediumThreshold: 10000})
}

func line(licensed, used int, unitPrice string) Line {
	price, _ := decimal.NewFromString(unitPrice)
	return Line{
		Cluster:      "Carson",
		MSID:         "M0614",
		SystemNumber: "60806",
		LicenseType:  "PROCESSPOINTS",
		Licensed:     licensed,
		Used:         used,
		UnitPrice:    price,
		PriceSource:  "MPC 2026 Confirmed",
	}
}

func TestDetectEmitsOnlyPositiveExcess(t *testing.T) {
	d := defaultDetector()

	result := d.Detect([]Line{
		line(500, 300, "50"),
		line(300, 300, "50"),
		line(200, 350, "50"),
	})

	require.Len(t, result.Candidates, 1)
	cand := result.Candidates[0]
	assert.Equal(t, 200, cand.ExcessQuantity)
	assert.Equal(t, "10000", cand.ExcessValue.String())
	assert.Equal(t, 3, result.SystemsAnalyzed)
}

func TestClassifyBoundaries(t *testing.T) {
	d := defaultDetector()

	cases := []struct {
		value string
		want  types.TransferPriority
	}{
		{"9999.99", types.PriorityLow},
		{"10000.00", types.PriorityMedium},
		{"10000.01", types.PriorityMedium},
		{"50000.00", types.PriorityMedium},
		{"50000.01", types.PriorityHigh},
		{"0.01", types.PriorityLow},
	}
	for _, tc := range cases {
		v, err := decimal.NewFromString(tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.want, d.Classify(v), "excess value %s", tc.value)
	}
}

func TestDetectSortsByPriorityThenValue(t *testing.T) {
	d := defaultDetector()

	low := line(10, 0, "50")        // 500
	medium := line(400, 0, "50")    // 20000
	high := line(2000, 0, "50")     // 100000
	mediumBig := line(800, 0, "50") // 40000

	result := d.Detect([]Line{low, medium, high, mediumBig})

	require.Len(t, result.Candidates, 4)
	assert.Equal(t, types.PriorityHigh, result.Candidates[0].Priority)
	assert.Equal(t, "40000", result.Candidates[1].ExcessValue.String())
	assert.Equal(t, "20000", result.Candidates[2].ExcessValue.String())
	assert.Equal(t, types.PriorityLow, result.Candidates[3].Priority)

	assert.Equal(t, "160500", result.TotalExcessValue.String())
	assert.Equal(t, 1, result.ByPriority[types.PriorityHigh])
	assert.Equal(t, 2, result.ByPriority[types.PriorityMedium])
	assert.Equal(t, 1, result.ByPriority[types.PriorityLow])
}

func TestUnmatchedSystemIsFullyExcess(t *testing.T) {
	d := defaultDetector()

	result := d.Detect([]Line{line(500, 0, "50")})

	require.Len(t, result.Candidates, 1)
	cand := result.Candidates[0]
	assert.Equal(t, 500, cand.ExcessQuantity)
	assert.Equal(t, "25000", cand.ExcessValue.String())
	assert.Equal(t, types.PriorityMedium, cand.Priority)
	assert.Equal(t, 0.0, cand.UtilizationPercent())
}

func TestPlaceholderProvenanceCarried(t *testing.T) {
	d := defaultDetector()

	l := line(500, 300, "100")
	l.PriceSource = "Placeholder $100"
	l.Placeholder = true

	result := d.Detect([]Line{l})
	require.Len(t, result.Candidates, 1)
	assert.True(t, result.Candidates[0].PlaceholderPrice)
	assert.Equal(t, "Placeholder $100", result.Candidates[0].PriceSource)
}
