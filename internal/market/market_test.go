package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidarena/internal/types"
)

func TestGenerate_StreamShape(t *testing.T) {
	records := NewGenerator(7).Generate(500)
	require.Len(t, records, 500)

	for i, r := range records {
		assert.Positive(t, r.WinnerPrice, "record %d", i)
		assert.NotEmpty(t, r.SegmentID)
		if i > 0 {
			assert.Greater(t, r.Timestamp, records[i-1].Timestamp, "timestamps must be strictly increasing")
		}
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	a := NewGenerator(123).Generate(50)
	b := NewGenerator(123).Generate(50)
	assert.Equal(t, a, b)
}

func TestPercentiles_MonotoneWithinRange(t *testing.T) {
	records := NewGenerator(7).Generate(1000)
	percentiles := Percentiles(records)

	require.Len(t, percentiles, len(PercentileRanks))

	minPrice, maxPrice := records[0].WinnerPrice, records[0].WinnerPrice
	for _, r := range records {
		if r.WinnerPrice < minPrice {
			minPrice = r.WinnerPrice
		}
		if r.WinnerPrice > maxPrice {
			maxPrice = r.WinnerPrice
		}
	}

	prev := 0.0
	for _, rank := range PercentileRanks {
		v := percentiles[rank]
		assert.GreaterOrEqual(t, v, prev, "rank %d", rank)
		assert.GreaterOrEqual(t, v, minPrice)
		assert.LessOrEqual(t, v, maxPrice)
		prev = v
	}
}

func TestPercentiles_EmptyStream(t *testing.T) {
	percentiles := Percentiles(nil)
	require.Len(t, percentiles, len(PercentileRanks))
	for _, rank := range PercentileRanks {
		assert.Equal(t, 0.0, percentiles[rank])
	}
}

func TestConversionRate(t *testing.T) {
	records := []types.MarketRecord{
		{IsConversion: true},
		{IsConversion: false},
		{IsConversion: true},
		{IsConversion: false},
	}
	assert.Equal(t, 0.5, ConversionRate(records))
	assert.Equal(t, 0.0, ConversionRate(nil))
}

func TestConversionRate_Synthetic(t *testing.T) {
	// The synthetic conversion probability is between 1% and 3%; the rate
	// over a large stream stays in a loose band around it.
	rate := ConversionRate(NewGenerator(7).Generate(5000))
	assert.GreaterOrEqual(t, rate, 0.0)
	assert.Less(t, rate, 0.1)
}
