package generation

import (
	"context"
	"strings"

	"bidarena/internal/types"
)

// MockClient is a deterministic LLMClient for tests and offline runs. It
// dispatches on keywords in the prompt and returns ready-made strategy
// bodies that pass validation and compile in the sandbox.
type MockClient struct{}

// NewMockClient returns a mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

const mockAggressiveStrategy = `import "math"

func BiddingStrategy(
	initialBudget float64,
	totalDuration int,
	remainingBudget float64,
	remainingTime int,
	winnerPricePercentiles map[int]float64,
	conversionRate float64,
) float64 {
	bid := winnerPricePercentiles[90] * 1.1
	if bid == 0 {
		bid = 10.0
	}
	if float64(remainingTime) < float64(totalDuration)*0.2 {
		bid *= 1.5
	}
	return math.Max(0.0, bid)
}
`

const mockConservativeStrategy = `import "math"

func BiddingStrategy(
	initialBudget float64,
	totalDuration int,
	remainingBudget float64,
	remainingTime int,
	winnerPricePercentiles map[int]float64,
	conversionRate float64,
) float64 {
	median := winnerPricePercentiles[50]
	if median == 0 {
		median = 5.0
	}
	bid := median * 0.8
	if conversionRate < 0.01 {
		bid = 0.0
	}
	return math.Max(0.0, bid)
}
`

const mockDefaultStrategy = `import "math"

func BiddingStrategy(
	initialBudget float64,
	totalDuration int,
	remainingBudget float64,
	remainingTime int,
	winnerPricePercentiles map[int]float64,
	conversionRate float64,
) float64 {
	avg := winnerPricePercentiles[50]
	if avg == 0 {
		avg = 5.0
	}
	return math.Max(0.1, avg)
}
`

// GenerateStrategyCode returns a canned strategy keyed on prompt keywords.
func (c *MockClient) GenerateStrategyCode(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Aggressive"):
		return mockAggressiveStrategy, nil
	case strings.Contains(prompt, "Conservative"):
		return mockConservativeStrategy, nil
	default:
		return mockDefaultStrategy, nil
	}
}

// GenerateText returns a fixed analysis.
func (c *MockClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return "Mock analysis: the strategy is aggressive but exhausts its budget too fast. " +
		"Suggest lowering bids during low-conversion periods.", nil
}

// AnalyzeStrategies returns a fixed cross-strategy insight.
func (c *MockClient) AnalyzeStrategies(ctx context.Context, summaries []types.StrategySummary) (string, error) {
	return "Mock analysis: aggressive strategies performed best in high-conversion segments.", nil
}
