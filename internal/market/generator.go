// Package market supplies the ordered auction-record stream and the two
// statistics derived from it (winner-price percentiles, conversion rate).
// The stream is generated once per arena run and frozen: every lineage and
// round sees identical data.
package market

import (
	"math"
	"math/rand"

	"bidarena/internal/types"
)

const defaultStartTime = 1700000000

var (
	platforms  = []string{"iOS", "Android"}
	geos       = []string{"US", "EU", "APAC"}
	geoWeights = []float64{0.4, 0.3, 0.3}
	placements = []string{"Banner", "Video", "Interstitial"}
)

// Generator produces synthetic bid logs with a lognormal price distribution
// shaped by segment multipliers.
type Generator struct {
	startTime int64
	rng       *rand.Rand
}

// NewGenerator creates a seeded generator. The same seed yields the same
// stream, which keeps arena runs reproducible.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		startTime: defaultStartTime,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Generate returns numRecords synthetic auction records with strictly
// increasing timestamps.
func (g *Generator) Generate(numRecords int) []types.MarketRecord {
	records := make([]types.MarketRecord, 0, numRecords)
	currentTime := g.startTime

	for i := 0; i < numRecords; i++ {
		currentTime += int64(g.rng.Intn(5) + 1)

		geo := g.weightedChoice(geos, geoWeights)
		platform := platforms[g.rng.Intn(len(platforms))]
		placement := placements[g.rng.Intn(len(placements))]

		basePrice := 1.0
		if geo == "US" {
			basePrice *= 2.0
		}
		if placement == "Video" {
			basePrice *= 3.0
		}
		if platform == "iOS" {
			basePrice *= 1.2
		}

		// Lognormal around the segment base price.
		winnerPrice := math.Exp(math.Log(basePrice) + 0.5*g.rng.NormFloat64())
		winnerPrice = math.Round(winnerPrice*100) / 100

		cvProb := 0.01
		if geo == "US" {
			cvProb *= 1.5
		}
		if placement == "Interstitial" {
			cvProb *= 2.0
		}

		records = append(records, types.MarketRecord{
			Timestamp:    currentTime,
			Platform:     platform,
			Geo:          geo,
			Placement:    placement,
			SegmentID:    platform + "_" + geo + "_" + placement,
			WinnerPrice:  winnerPrice,
			IsConversion: g.rng.Float64() < cvProb,
		})
	}

	return records
}

func (g *Generator) weightedChoice(values []string, weights []float64) string {
	r := g.rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}
