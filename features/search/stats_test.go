package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
)

func pricedProvider(id string, prices ...float64) observation.PricedProvider {
	pp := observation.PricedProvider{Provider: provider.Provider{ID: id}}
	for _, p := range prices {
		pp.Observations = append(pp.Observations, observation.Observation{
			ProviderID: id, Price: p, Currency: "INR",
		})
	}
	return pp
}

func TestComputeStatsSingleProvider(t *testing.T) {
	stats := ComputeStats([]observation.PricedProvider{pricedProvider("p", 2500)})
	require.NotNil(t, stats)
	assert.Equal(t, 2500.0, stats.MinPrice)
	assert.Equal(t, 2500.0, stats.AvgPrice)
	assert.Equal(t, 2500.0, stats.MaxPrice)
	assert.Equal(t, 2500.0, stats.MedianPrice)
	assert.Equal(t, "INR", stats.Currency)
	assert.Equal(t, 1, stats.SampleSize)
}

func TestComputeStatsUsesLowestPricePerProvider(t *testing.T) {
	stats := ComputeStats([]observation.PricedProvider{
		pricedProvider("a", 3000, 1000, 2000),
		pricedProvider("b", 4000, 5000),
	})
	require.NotNil(t, stats)
	// two providers, lowest 1000 and 4000: sample size counts providers
	assert.Equal(t, 2, stats.SampleSize)
	assert.Equal(t, 1000.0, stats.MinPrice)
	assert.Equal(t, 4000.0, stats.MaxPrice)
	assert.Equal(t, 2500.0, stats.AvgPrice)
	assert.Equal(t, 2500.0, stats.MedianPrice)
}

func TestComputeStatsIgnoresInvalidPrices(t *testing.T) {
	stats := ComputeStats([]observation.PricedProvider{
		pricedProvider("a", 0, -5),
		pricedProvider("b", 1200),
	})
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.SampleSize)
	assert.Equal(t, 1200.0, stats.MinPrice)
}

func TestComputeStatsEmpty(t *testing.T) {
	assert.Nil(t, ComputeStats(nil))
	assert.Nil(t, ComputeStats([]observation.PricedProvider{pricedProvider("a")}))
}

func TestComputeStatsMedianEvenCount(t *testing.T) {
	stats := ComputeStats([]observation.PricedProvider{
		pricedProvider("a", 1000),
		pricedProvider("b", 2000),
		pricedProvider("c", 3000),
		pricedProvider("d", 4000),
	})
	require.NotNil(t, stats)
	assert.Equal(t, 2500.0, stats.MedianPrice)
}

func TestFilterOutliersDropsExtremeValue(t *testing.T) {
	kept := filterOutliers([]float64{1000, 1100, 1050, 980, 1020, 900000})
	assert.NotContains(t, kept, 900000.0)
	assert.Len(t, kept, 5)
}

func TestFilterOutliersKeepsSmallSamples(t *testing.T) {
	in := []float64{100, 200, 900000}
	assert.Equal(t, in, filterOutliers(in))
}

func TestFilterOutliersIdenticalValues(t *testing.T) {
	in := []float64{500, 500, 500, 500, 500, 500}
	assert.Equal(t, in, filterOutliers(in))
}

func TestClassifyIsExhaustive(t *testing.T) {
	stats := &PriceStats{MinPrice: 500, AvgPrice: 1000, MaxPrice: 3000}

	cases := []struct {
		name  string
		price float64
		label string
	}{
		{"at min is best", 500, CalloutBest},
		{"below min is best", 400, CalloutBest},
		{"ratio 0.7 boundary is below_avg", 700, CalloutBelowAvg},
		{"ratio just above 0.7 is near_avg", 701, CalloutNearAvg},
		{"ratio 1.0 is near_avg", 1000, CalloutNearAvg},
		{"ratio 1.3 boundary is near_avg", 1300, CalloutNearAvg},
		{"ratio just above 1.3 is above_avg", 1301, CalloutAboveAvg},
		{"ratio 1.99 is above_avg", 1990, CalloutAboveAvg},
		{"ratio 2.0 boundary is above_avg", 2000, CalloutAboveAvg},
		{"ratio far above is above_avg", 9000, CalloutAboveAvg},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(tc.price, stats)
			require.NotNil(t, c)
			assert.Equal(t, tc.label, c.Label)
		})
	}
}

func TestClassifyAboveAvgDetailStyles(t *testing.T) {
	stats := &PriceStats{MinPrice: 500, AvgPrice: 1000}

	multiplied := Classify(3200, stats)
	require.NotNil(t, multiplied)
	assert.Equal(t, "3.2x the local average", multiplied.Detail)

	percent := Classify(1600, stats)
	require.NotNil(t, percent)
	assert.Equal(t, "60% above the local average", percent.Detail)
	assert.InDelta(t, 1.6, percent.Ratio, 1e-9)
}

func TestClassifyNilCases(t *testing.T) {
	assert.Nil(t, Classify(100, nil))
	assert.Nil(t, Classify(0, &PriceStats{AvgPrice: 100}))
}
