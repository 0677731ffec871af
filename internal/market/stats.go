package market

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"bidarena/internal/types"
)

// PercentileRanks are the winner-price percentile ranks exposed to
// strategies.
var PercentileRanks = []int{10, 20, 30, 40, 50, 60, 70, 80, 90}

// Percentiles computes the winner-price percentile map over the full stream
// using linear interpolation. An empty stream yields a zero-valued map so
// callers never index a nil map.
func Percentiles(records []types.MarketRecord) map[int]float64 {
	percentiles := make(map[int]float64, len(PercentileRanks))
	if len(records) == 0 {
		for _, p := range PercentileRanks {
			percentiles[p] = 0.0
		}
		return percentiles
	}

	prices := make([]float64, len(records))
	for i, r := range records {
		prices[i] = r.WinnerPrice
	}
	sort.Float64s(prices)

	for _, p := range PercentileRanks {
		percentiles[p] = stat.Quantile(float64(p)/100.0, stat.LinInterp, prices, nil)
	}
	return percentiles
}

// ConversionRate returns the fraction of records flagged as conversions,
// 0 for an empty stream.
func ConversionRate(records []types.MarketRecord) float64 {
	if len(records) == 0 {
		return 0.0
	}
	conversions := 0
	for _, r := range records {
		if r.IsConversion {
			conversions++
		}
	}
	return float64(conversions) / float64(len(records))
}
