// Package types defines the shared data model for the bidding arena:
// market records, bid contexts, strategy artifacts, and simulation results.
package types

// MarketRecord is one historical auction opportunity. Immutable once produced.
// The segment dimensions (Platform, Geo, Placement) are used only by the data
// generator; the replay engine consumes Timestamp, WinnerPrice and
// IsConversion.
type MarketRecord struct {
	Timestamp    int64   // monotonic, seconds
	Platform     string  // e.g. "iOS", "Android"
	Geo          string  // e.g. "US", "EU", "APAC"
	Placement    string  // e.g. "Banner", "Video", "Interstitial"
	SegmentID    string  // "<platform>_<geo>_<placement>"
	WinnerPrice  float64 // market clearing price (CPM, USD), positive
	IsConversion bool
}

// BidContext is the read-only snapshot handed to a strategy at decision time.
// Built fresh per record; strategies never mutate it.
type BidContext struct {
	InitialBudget          float64
	TotalDuration          int // seconds
	RemainingBudget        float64
	RemainingTime          int // seconds
	WinnerPricePercentiles map[int]float64 // rank 10..90 step 10 -> CPM
	ConversionRate         float64         // historical, in [0,1]
}

// StrategyArtifact is one generated or hand-written candidate strategy.
// A new optimization round produces a new artifact, never an in-place edit.
type StrategyArtifact struct {
	ID           string // opaque, unique per generation attempt
	Name         string
	StrategyType string
	Code         string // Go source defining the entry-point function
	CreatedAt    int64  // unix seconds
	Metrics      map[string]float64
}

// HistorySnapshot captures running totals at a point in the replay.
// AvgBidPrice is the moving average over the interval since the previous
// snapshot.
type HistorySnapshot struct {
	Timestamp       int64
	RemainingBudget float64
	WinCount        int
	ConversionCount int
	TotalSpend      float64
	AvgBidPrice     float64
}

// SimulationResult is the output of one replay run for one artifact.
// Immutable once computed.
type SimulationResult struct {
	BidsPlaced      int
	WinCount        int
	ConversionCount int
	TotalSpend      float64
	RemainingBudget float64
	WinRate         float64 // wins / bids placed, 0 when no bids
	AvgCPM          float64 // spend*1000/wins, 0 when no wins
	AvgCPA          float64 // spend/conversions, 0 when no conversions
	History         []HistorySnapshot
}

// StrategySummary is the narrow per-strategy view handed to cross-strategy
// analysis.
type StrategySummary struct {
	Name    string  `json:"name"`
	WinRate float64 `json:"win_rate"`
	AvgCPA  float64 `json:"avg_cpa"`
}
