package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidarena/internal/market"
	"bidarena/internal/types"
)

// constBidder bids the same price for every record.
type constBidder float64

func (b constBidder) Bid(ctx context.Context, bc types.BidContext) float64 {
	return float64(b)
}

// fixedPriceStream builds n records with the given winner price and strictly
// increasing timestamps.
func fixedPriceStream(n int, price float64) []types.MarketRecord {
	records := make([]types.MarketRecord, n)
	for i := range records {
		records[i] = types.MarketRecord{
			Timestamp:   int64(1000 + i),
			WinnerPrice: price,
		}
	}
	return records
}

func TestRun_EmptyStream(t *testing.T) {
	e := New(100.0, nil)
	_, err := e.Run(context.Background(), constBidder(1.0), nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRun_BudgetExhaustionStopsBidding(t *testing.T) {
	// 50 records at 1.0, bidding 2.0 with a budget of 50: every bid wins and
	// pays 2.0, so the run halts after exactly 25 paid wins.
	e := New(50.0, nil)
	result, err := e.Run(context.Background(), constBidder(2.0), fixedPriceStream(50, 1.0))
	require.NoError(t, err)

	assert.Equal(t, 25, result.BidsPlaced)
	assert.Equal(t, 25, result.WinCount)
	assert.Equal(t, 50.0, result.TotalSpend)
	assert.Equal(t, 0.0, result.RemainingBudget)
	assert.Equal(t, 1.0, result.WinRate)
}

func TestRun_ZeroBidderEvaluatesEveryRecord(t *testing.T) {
	// Losing never stops the loop; only budget exhaustion does.
	e := New(100.0, nil)
	result, err := e.Run(context.Background(), constBidder(0.0), fixedPriceStream(80, 1.0))
	require.NoError(t, err)

	assert.Equal(t, 80, result.BidsPlaced)
	assert.Equal(t, 0, result.WinCount)
	assert.Equal(t, 0.0, result.TotalSpend)
	assert.Equal(t, 100.0, result.RemainingBudget)
	assert.Equal(t, 0.0, result.WinRate)
	assert.Equal(t, 0.0, result.AvgCPM)
	assert.Equal(t, 0.0, result.AvgCPA)
}

func TestRun_WinRescindedWhenBudgetInsufficient(t *testing.T) {
	// The bid clears the price but the debit would overdraw: the win is
	// rescinded, cost stays zero, the budget is never negative.
	e := New(1.0, nil)
	result, err := e.Run(context.Background(), constBidder(1.5), fixedPriceStream(3, 1.0))
	require.NoError(t, err)

	assert.Equal(t, 3, result.BidsPlaced)
	assert.Equal(t, 0, result.WinCount)
	assert.Equal(t, 0.0, result.TotalSpend)
	assert.Equal(t, 1.0, result.RemainingBudget)
}

func TestRun_FirstPriceSettlement(t *testing.T) {
	// The winner pays its own bid, not the clearing price.
	e := New(100.0, nil)
	result, err := e.Run(context.Background(), constBidder(3.0), fixedPriceStream(4, 1.0))
	require.NoError(t, err)

	assert.Equal(t, 4, result.WinCount)
	assert.Equal(t, 12.0, result.TotalSpend)
	assert.Equal(t, 88.0, result.RemainingBudget)
}

func TestRun_ConversionsCountedOnWinsOnly(t *testing.T) {
	records := fixedPriceStream(4, 1.0)
	records[0].IsConversion = true
	records[2].IsConversion = true
	// A conversion on a lost auction does not count.
	records[3].WinnerPrice = 10.0
	records[3].IsConversion = true

	e := New(100.0, nil)
	result, err := e.Run(context.Background(), constBidder(2.0), records)
	require.NoError(t, err)

	assert.Equal(t, 3, result.WinCount)
	assert.Equal(t, 2, result.ConversionCount)
	assert.InDelta(t, 6.0/2.0, result.AvgCPA, 1e-9)
	assert.InDelta(t, 6.0*1000/3.0, result.AvgCPM, 1e-9)
}

func TestRun_BudgetInvariants(t *testing.T) {
	// For any stream and strategy: spend never exceeds the initial budget
	// and ending budget is exactly initial minus spend.
	streams := [][]types.MarketRecord{
		fixedPriceStream(200, 1.0),
		fixedPriceStream(10, 5.0),
		fixedPriceStream(1, 0.01),
	}
	bids := []float64{0.0, 0.5, 1.0, 3.7, 100.0}

	for _, records := range streams {
		for _, bid := range bids {
			e := New(25.0, nil)
			result, err := e.Run(context.Background(), constBidder(bid), records)
			require.NoError(t, err)

			assert.LessOrEqual(t, result.TotalSpend, 25.0)
			assert.InDelta(t, 25.0-result.TotalSpend, result.RemainingBudget, 1e-9)
			assert.GreaterOrEqual(t, result.RemainingBudget, 0.0)
		}
	}
}

func TestRun_SnapshotCadence(t *testing.T) {
	e := New(1e9, nil)
	result, err := e.Run(context.Background(), constBidder(0.5), fixedPriceStream(120, 1.0))
	require.NoError(t, err)

	// Snapshots at records 0, 50 and 100.
	require.Len(t, result.History, 3)
	for _, snap := range result.History {
		assert.InDelta(t, 0.5, snap.AvgBidPrice, 1e-9)
		assert.InDelta(t, 1e9-snap.TotalSpend, snap.RemainingBudget, 1e-9)
	}
}

func TestRun_ZeroTimeSpan(t *testing.T) {
	// All records share one timestamp; the span is treated as 1 and the run
	// still completes.
	records := make([]types.MarketRecord, 10)
	for i := range records {
		records[i] = types.MarketRecord{Timestamp: 5000, WinnerPrice: 1.0}
	}

	e := New(100.0, nil)
	result, err := e.Run(context.Background(), constBidder(2.0), records)
	require.NoError(t, err)
	assert.Equal(t, 10, result.BidsPlaced)
}

// contextProbe checks the BidContext snapshot the engine hands to the
// strategy.
type contextProbe struct {
	contexts []types.BidContext
}

func (p *contextProbe) Bid(ctx context.Context, bc types.BidContext) float64 {
	p.contexts = append(p.contexts, bc)
	return 1.0
}

func TestRun_BidContextSnapshot(t *testing.T) {
	records := fixedPriceStream(3, 1.0)
	wantPercentiles := market.Percentiles(records)

	probe := &contextProbe{}
	e := New(100.0, nil)
	_, err := e.Run(context.Background(), probe, records)
	require.NoError(t, err)
	require.Len(t, probe.contexts, 3)

	first := probe.contexts[0]
	assert.Equal(t, 100.0, first.InitialBudget)
	assert.Equal(t, 2, first.TotalDuration)
	assert.Equal(t, 100.0, first.RemainingBudget)
	assert.Equal(t, 2, first.RemainingTime)
	assert.Equal(t, wantPercentiles, first.WinnerPricePercentiles)

	// Budget and time advance between decisions.
	second := probe.contexts[1]
	assert.Equal(t, 99.0, second.RemainingBudget)
	assert.Equal(t, 1, second.RemainingTime)
}
