package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidarena/internal/strategy"
	"bidarena/internal/types"
)

// DefaultMaxAttempts is the fixed generation retry budget.
const DefaultMaxAttempts = 3

// Generator turns prompts into validated strategy artifacts. A candidate
// that fails validation or compilation triggers a regeneration attempt; the
// whole generation fails only after the attempt budget is exhausted.
type Generator struct {
	client      LLMClient
	sandbox     *strategy.Sandbox
	maxAttempts int
	logger      *zap.Logger
}

// NewGenerator creates a generator. The sandbox compile-checks every
// candidate inside the attempt loop, so code that parses but does not
// interpret is retried like a validation failure; a nil sandbox skips the
// check. maxAttempts <= 0 selects the default.
func NewGenerator(client LLMClient, sandbox *strategy.Sandbox, maxAttempts int, logger *zap.Logger) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, sandbox: sandbox, maxAttempts: maxAttempts, logger: logger}
}

// Generate produces a validated artifact for one strategy archetype.
func (g *Generator) Generate(ctx context.Context, strategyType StrategyType) (*types.StrategyArtifact, error) {
	prompt := BuildGenerationPrompt(strategyType)

	code, err := g.generateValidated(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate %s strategy: %w", strategyType, err)
	}

	now := time.Now()
	return &types.StrategyArtifact{
		ID:           uuid.NewString(),
		Name:         fmt.Sprintf("%s_%d", strategyType, now.Unix()),
		StrategyType: strategyType.String(),
		Code:         code,
		CreatedAt:    now.Unix(),
	}, nil
}

// AnalyzeAndOptimize requests a textual analysis of an artifact's metrics,
// then a rewritten strategy built from the artifact's source, the analysis,
// and the lineage history context. It returns the analysis alongside the new
// artifact.
func (g *Generator) AnalyzeAndOptimize(
	ctx context.Context,
	artifact *types.StrategyArtifact,
	metrics map[string]float64,
	historyContext string,
) (string, *types.StrategyArtifact, error) {
	analysisPrompt := BuildAnalysisPrompt(artifact.Code, metrics)
	analysis, err := g.client.GenerateText(ctx, analysisPrompt)
	if err != nil {
		return "", nil, fmt.Errorf("analyze strategy %s: %w", artifact.Name, err)
	}

	optimizePrompt := BuildOptimizationPrompt(artifact.Code, analysis, historyContext)
	code, err := g.generateValidated(ctx, optimizePrompt)
	if err != nil {
		return analysis, nil, fmt.Errorf("optimize strategy %s: %w", artifact.Name, err)
	}

	now := time.Now()
	return analysis, &types.StrategyArtifact{
		ID:           uuid.NewString(),
		Name:         artifact.Name + "_optimized",
		StrategyType: "Optimized",
		Code:         code,
		CreatedAt:    now.Unix(),
	}, nil
}

// generateValidated runs the generate/clean/validate/compile cycle under
// the attempt budget.
func (g *Generator) generateValidated(ctx context.Context, prompt string) (string, error) {
	return withAttempts(g.maxAttempts, func(attempt int) (string, error) {
		raw, err := g.client.GenerateStrategyCode(ctx, prompt)
		if err != nil {
			g.logger.Warn("code generation attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			return "", err
		}

		code := extractCodeBlock(raw, "go")
		if result := strategy.ValidateSource(code); !result.Valid {
			g.logger.Warn("generated code rejected by validator",
				zap.Int("attempt", attempt+1),
				zap.Strings("errors", result.Errors))
			return "", fmt.Errorf("%w: %v", strategy.ErrValidationFailed, result.Errors)
		}
		if g.sandbox != nil {
			if err := g.sandbox.Verify(code); err != nil {
				g.logger.Warn("generated code failed compilation",
					zap.Int("attempt", attempt+1),
					zap.Error(err))
				return "", err
			}
		}
		return code, nil
	})
}

// extractCodeBlock extracts a code block from a markdown-style response.
// If no fenced block is present the whole text is returned, since models
// sometimes emit raw code.
func extractCodeBlock(text, lang string) string {
	patterns := []string{
		"```" + lang + "\n",
		"```" + lang + "\r\n",
		"```\n",
	}

	for _, pattern := range patterns {
		if idx := strings.Index(text, pattern); idx != -1 {
			start := idx + len(pattern)
			if end := strings.Index(text[start:], "```"); end != -1 {
				return strings.TrimSpace(text[start : start+end])
			}
		}
	}

	return strings.TrimSpace(text)
}
