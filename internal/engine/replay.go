// Package engine replays a budget-constrained bidding strategy against a
// frozen stream of historical auction records.
package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"bidarena/internal/market"
	"bidarena/internal/types"
)

// ErrNoData is returned when the record stream is empty.
var ErrNoData = errors.New("no market data provided")

// snapshotInterval is the record cadence of history snapshots.
const snapshotInterval = 50

// Bidder is a compiled strategy callable. Implementations must not panic;
// the sandbox converts faults to 0.0 bids before they reach the engine.
type Bidder interface {
	Bid(ctx context.Context, bc types.BidContext) float64
}

// Engine simulates sequential first-price auctions. The loop is strictly
// in arrival order: each decision depends on the budget and time state left
// by the previous one.
type Engine struct {
	initialBudget float64
	logger        *zap.Logger
}

// New creates an engine with the given initial budget per run.
func New(initialBudget float64, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{initialBudget: initialBudget, logger: logger}
}

// Run replays the full stream against one strategy and returns its result.
//
// Rules: the bidder wins iff bid >= the record's winner price, and a winner
// pays its own bid (first-price settlement). A win whose cost would drive
// the budget negative is rescinded and counts as a zero-cost loss. The loop
// stops once the remaining budget reaches zero; every earlier record counts
// as a placed bid whether it won or lost.
func (e *Engine) Run(ctx context.Context, bidder Bidder, records []types.MarketRecord) (*types.SimulationResult, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	startTime := records[0].Timestamp
	endTime := records[0].Timestamp
	for _, r := range records {
		if r.Timestamp < startTime {
			startTime = r.Timestamp
		}
		if r.Timestamp > endTime {
			endTime = r.Timestamp
		}
	}
	totalDuration := endTime - startTime
	if totalDuration == 0 {
		totalDuration = 1
	}

	// Whole-stream statistics are the "historical knowledge" available to
	// every decision; the run's distribution is training context, not
	// learned online.
	percentiles := market.Percentiles(records)
	conversionRate := market.ConversionRate(records)

	remainingBudget := e.initialBudget
	winCount := 0
	conversionCount := 0
	totalSpend := 0.0
	bidsPlaced := 0

	intervalBidSum := 0.0
	intervalBidCount := 0

	var history []types.HistorySnapshot

	for i, record := range records {
		if remainingBudget <= 0 {
			break
		}

		elapsed := record.Timestamp - startTime
		bc := types.BidContext{
			InitialBudget:          e.initialBudget,
			TotalDuration:          int(totalDuration),
			RemainingBudget:        remainingBudget,
			RemainingTime:          int(totalDuration - elapsed),
			WinnerPricePercentiles: percentiles,
			ConversionRate:         conversionRate,
		}

		bidPrice := bidder.Bid(ctx, bc)
		bidsPlaced++

		intervalBidSum += bidPrice
		intervalBidCount++

		if bidPrice >= record.WinnerPrice {
			cost := bidPrice
			if remainingBudget >= cost {
				remainingBudget -= cost
				winCount++
				totalSpend += cost
				if record.IsConversion {
					conversionCount++
				}
			}
			// Otherwise the win is rescinded: the budget is never overdrawn.
		}

		if i%snapshotInterval == 0 {
			avgBid := 0.0
			if intervalBidCount > 0 {
				avgBid = intervalBidSum / float64(intervalBidCount)
			}
			history = append(history, types.HistorySnapshot{
				Timestamp:       record.Timestamp,
				RemainingBudget: remainingBudget,
				WinCount:        winCount,
				ConversionCount: conversionCount,
				TotalSpend:      totalSpend,
				AvgBidPrice:     avgBid,
			})
			intervalBidSum = 0.0
			intervalBidCount = 0
		}
	}

	result := &types.SimulationResult{
		BidsPlaced:      bidsPlaced,
		WinCount:        winCount,
		ConversionCount: conversionCount,
		TotalSpend:      totalSpend,
		RemainingBudget: remainingBudget,
		History:         history,
	}
	if bidsPlaced > 0 {
		result.WinRate = float64(winCount) / float64(bidsPlaced)
	}
	if winCount > 0 {
		result.AvgCPM = totalSpend * 1000 / float64(winCount)
	}
	if conversionCount > 0 {
		result.AvgCPA = totalSpend / float64(conversionCount)
	}

	e.logger.Debug("replay finished",
		zap.Int("bids_placed", bidsPlaced),
		zap.Int("wins", winCount),
		zap.Int("conversions", conversionCount),
		zap.Float64("total_spend", totalSpend))

	return result, nil
}
