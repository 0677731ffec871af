package generation

import (
	"context"

	"bidarena/internal/types"
)

// LLMClient is the narrow text-in/text-out contract the arena requires from
// a generative model. Calls are synchronous round-trips; streaming is a
// presentation concern the core does not depend on.
type LLMClient interface {
	// GenerateStrategyCode returns candidate Go source for a strategy prompt.
	GenerateStrategyCode(ctx context.Context, prompt string) (string, error)
	// GenerateText returns free-form text for an analysis prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// AnalyzeStrategies returns cross-strategy insights for a set of
	// per-strategy summaries.
	AnalyzeStrategies(ctx context.Context, summaries []types.StrategySummary) (string, error)
}
