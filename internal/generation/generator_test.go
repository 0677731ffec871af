package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidarena/internal/strategy"
	"bidarena/internal/types"
)

// stubClient lets tests script each LLMClient method.
type stubClient struct {
	generateCodeFunc func(ctx context.Context, prompt string) (string, error)
	generateTextFunc func(ctx context.Context, prompt string) (string, error)
}

func (c *stubClient) GenerateStrategyCode(ctx context.Context, prompt string) (string, error) {
	return c.generateCodeFunc(ctx, prompt)
}

func (c *stubClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.generateTextFunc != nil {
		return c.generateTextFunc(ctx, prompt)
	}
	return "stub analysis", nil
}

func (c *stubClient) AnalyzeStrategies(ctx context.Context, summaries []types.StrategySummary) (string, error) {
	return "stub analysis", nil
}

func testSandbox() *strategy.Sandbox {
	return strategy.NewSandbox(0, nil)
}

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "go fenced block",
			text: "Here you go:\n```go\nfunc BiddingStrategy() {}\n```\nDone.",
			want: "func BiddingStrategy() {}",
		},
		{
			name: "bare fenced block",
			text: "```\nfunc f() {}\n```",
			want: "func f() {}",
		},
		{
			name: "no fencing",
			text: "  func f() {}  ",
			want: "func f() {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractCodeBlock(tt.text, "go"))
		})
	}
}

func TestGenerate_MockClientProducesValidArtifacts(t *testing.T) {
	g := NewGenerator(NewMockClient(), testSandbox(), 0, nil)

	for _, st := range AllStrategyTypes {
		artifact, err := g.Generate(context.Background(), st)
		require.NoError(t, err, "strategy type %s", st)

		assert.NotEmpty(t, artifact.ID)
		assert.Contains(t, artifact.Name, st.String())
		assert.Equal(t, st.String(), artifact.StrategyType)
		assert.True(t, strategy.Validate(artifact.Code))
		assert.NotZero(t, artifact.CreatedAt)
	}
}

func TestGenerate_StripsMarkdownFencing(t *testing.T) {
	client := &stubClient{
		generateCodeFunc: func(ctx context.Context, prompt string) (string, error) {
			return "```go\n" + mockDefaultStrategy + "\n```", nil
		},
	}
	g := NewGenerator(client, testSandbox(), 0, nil)

	artifact, err := g.Generate(context.Background(), Hybrid)
	require.NoError(t, err)
	assert.NotContains(t, artifact.Code, "```")
	assert.True(t, strategy.Validate(artifact.Code))
}

func TestGenerate_RetriesUntilValid(t *testing.T) {
	calls := 0
	client := &stubClient{
		generateCodeFunc: func(ctx context.Context, prompt string) (string, error) {
			calls++
			if calls < 3 {
				return "this is not go code", nil
			}
			return mockDefaultStrategy, nil
		},
	}
	g := NewGenerator(client, testSandbox(), 3, nil)

	artifact, err := g.Generate(context.Background(), Adaptive)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, strategy.Validate(artifact.Code))
}

func TestGenerate_ExhaustedRetries(t *testing.T) {
	calls := 0
	client := &stubClient{
		generateCodeFunc: func(ctx context.Context, prompt string) (string, error) {
			calls++
			return "still not go code", nil
		},
	}
	g := NewGenerator(client, testSandbox(), 3, nil)

	_, err := g.Generate(context.Background(), Aggressive)
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, strategy.ErrValidationFailed)
}

// uncompilableStrategy parses and passes the AST gate, but interpretation
// rejects the undefined identifier.
const uncompilableStrategy = `func BiddingStrategy(a float64, b int, c float64, d int, e map[int]float64, f float64) float64 {
	return undefinedVariable
}
`

func TestGenerate_RetriesOnCompileFailure(t *testing.T) {
	calls := 0
	client := &stubClient{
		generateCodeFunc: func(ctx context.Context, prompt string) (string, error) {
			calls++
			if calls == 1 {
				return uncompilableStrategy, nil
			}
			return mockDefaultStrategy, nil
		},
	}
	g := NewGenerator(client, testSandbox(), 3, nil)

	artifact, err := g.Generate(context.Background(), Aggressive)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, strategy.Validate(artifact.Code))
}

func TestGenerate_ExhaustedRetriesOnCompileFailure(t *testing.T) {
	calls := 0
	client := &stubClient{
		generateCodeFunc: func(ctx context.Context, prompt string) (string, error) {
			calls++
			return uncompilableStrategy, nil
		},
	}
	g := NewGenerator(client, testSandbox(), 2, nil)

	_, err := g.Generate(context.Background(), Conservative)
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var exhausted *ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, strategy.ErrCompileFailed)
}

func TestAnalyzeAndOptimize(t *testing.T) {
	var optimizePrompt string
	client := &stubClient{
		generateCodeFunc: func(ctx context.Context, prompt string) (string, error) {
			optimizePrompt = prompt
			return mockConservativeStrategy, nil
		},
		generateTextFunc: func(ctx context.Context, prompt string) (string, error) {
			return "the strategy overspends early", nil
		},
	}
	g := NewGenerator(client, testSandbox(), 0, nil)

	base := &types.StrategyArtifact{
		ID:   "base-id",
		Name: "Aggressive_1700000000",
		Code: mockAggressiveStrategy,
	}
	metrics := map[string]float64{"conversions": 12, "win_rate": 0.4}

	analysis, optimized, err := g.AnalyzeAndOptimize(
		context.Background(), base, metrics, "Round 0: wins=10")
	require.NoError(t, err)

	assert.Equal(t, "the strategy overspends early", analysis)
	assert.Equal(t, "Aggressive_1700000000_optimized", optimized.Name)
	assert.Equal(t, "Optimized", optimized.StrategyType)
	assert.NotEqual(t, base.ID, optimized.ID)

	// The optimization prompt carries the base source, the analysis, and
	// the lineage history.
	assert.Contains(t, optimizePrompt, "winnerPricePercentiles[90]")
	assert.Contains(t, optimizePrompt, "the strategy overspends early")
	assert.Contains(t, optimizePrompt, "Round 0: wins=10")
}

func TestBuildGenerationPrompt_PerTypeGuidance(t *testing.T) {
	for _, st := range AllStrategyTypes {
		prompt := BuildGenerationPrompt(st)
		assert.Contains(t, prompt, "BiddingStrategy")
		assert.Contains(t, prompt, st.String())
	}
}

func TestParseStrategyType(t *testing.T) {
	st, err := ParseStrategyType("Aggressive")
	require.NoError(t, err)
	assert.Equal(t, Aggressive, st)

	_, err = ParseStrategyType("Nonexistent")
	assert.Error(t, err)
}

func TestWithAttempts_PropagatesLastError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	_, err := withAttempts(2, func(attempt int) (string, error) {
		return "", wantErr
	})

	var exhausted *ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, wantErr)
}
