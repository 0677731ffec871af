package generation

import (
	"fmt"
	"sort"
	"strings"
)

const basePrompt = `You are an expert in RTB (Real-Time Bidding) algorithms.
Your goal is to write a Go function BiddingStrategy that determines the bid price (CPM) for an ad request.

### Function Signature
` + "```go" + `
import "math"

func BiddingStrategy(
	initialBudget float64,                  // Initial budget (USD)
	totalDuration int,                      // Total campaign duration (seconds)
	remainingBudget float64,                // Remaining budget
	remainingTime int,                      // Remaining time (seconds)
	winnerPricePercentiles map[int]float64, // {10: p10, ..., 50: median, ..., 90: p90} (CPM)
	conversionRate float64,                 // Historical conversion rate (0.0 to 1.0)
) float64                                  // Return bid price (CPM, USD)
` + "```" + `

### Constraints
1.  **Output**: ONLY the Go code. No markdown formatting, no explanations.
2.  **Libraries**: Import ONLY "math". Nothing else.
3.  **Performance**: Must run in < 1ms. Avoid loops if possible.
4.  **Safety**: Bid must be >= 0.

### Strategy Requirements
`

var strategyInstructions = map[StrategyType]string{
	ImpressionFocused: `
**Type: Impression-Focused**
- **Goal**: Maximize the number of won auctions (impressions).
- **Tactic**: Bid around the 40th-60th percentile of historical winner prices.
- **Budget**: Spend budget evenly over the remaining time.
`,
	ConversionFocused: `
**Type: Conversion-Focused**
- **Goal**: Maximize total conversions.
- **Tactic**: Bid aggressively (e.g., 70-80th percentile) ONLY when conversionRate is high relative to average.
- **Budget**: Conserve budget for high-value opportunities.
`,
	Aggressive: `
**Type: Aggressive**
- **Goal**: Spend budget quickly and win high-value inventory.
- **Tactic**: Bid high (e.g., 80-90th percentile).
- **Budget**: Front-load spending. If time is running out, increase bids further.
`,
	Conservative: `
**Type: Conservative**
- **Goal**: Minimize CPA (Cost Per Action) and strictly control ROI.
- **Tactic**: Bid low (e.g., below the 50th percentile). Only bid if conversionRate is very promising.
- **Budget**: Keep a safety buffer. It's okay to under-spend.
`,
	Adaptive: `
**Type: Adaptive**
- **Goal**: Dynamically adjust based on remaining resources.
- **Tactic**: Start conservative. If remainingBudget is high relative to remainingTime, become aggressive.
`,
	Hybrid: `
**Type: Hybrid**
- **Goal**: Balance volume and efficiency.
- **Tactic**: Use a weighted score of conversionRate and price percentiles.
`,
}

// BuildGenerationPrompt returns the code-generation prompt for one strategy
// archetype.
func BuildGenerationPrompt(strategyType StrategyType) string {
	return basePrompt + strategyInstructions[strategyType] + "\n\nRETURN ONLY THE CODE."
}

// BuildAnalysisPrompt asks the model to critique a strategy given its
// simulation metrics.
func BuildAnalysisPrompt(code string, metrics map[string]float64) string {
	var b strings.Builder
	b.WriteString("You are analyzing the performance of an RTB bidding strategy.\n\n")
	b.WriteString("### Strategy Code\n```go\n")
	b.WriteString(code)
	b.WriteString("\n```\n\n### Simulation Metrics\n")

	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %.4f\n", k, metrics[k])
	}

	b.WriteString("\nIdentify the main weakness of this strategy and suggest one concrete improvement.\n")
	b.WriteString("Answer in 3-4 sentences of plain text. No code.")
	return b.String()
}

// BuildOptimizationPrompt asks the model to rewrite a strategy using the
// analysis and the lineage history context assembled by the orchestrator.
func BuildOptimizationPrompt(code, analysis, historyContext string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString(`
**Type: Optimized**
- **Goal**: Improve on the base strategy below using the analysis feedback.
`)
	b.WriteString("\n### Base Strategy\n```go\n")
	b.WriteString(code)
	b.WriteString("\n```\n\n### Performance Analysis\n")
	b.WriteString(analysis)
	if historyContext != "" {
		b.WriteString("\n\n### Optimization History\n")
		b.WriteString(historyContext)
	}
	b.WriteString("\n\nRETURN ONLY THE CODE.")
	return b.String()
}
