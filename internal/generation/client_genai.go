package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"bidarena/internal/types"
)

const defaultGenAIModel = "gemini-2.5-flash"

// GenAIClient implements LLMClient against Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a Gemini-backed client. model may be empty to use
// the default.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultGenAIModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, model: model}, nil
}

// GenerateText sends one prompt and returns the model's text response.
func (c *GenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	return result.Text(), nil
}

// GenerateStrategyCode generates strategy source, stripping any markdown
// fencing the model wraps it in.
func (c *GenAIClient) GenerateStrategyCode(ctx context.Context, prompt string) (string, error) {
	text, err := c.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return extractCodeBlock(text, "go"), nil
}

// AnalyzeStrategies asks the model for cross-strategy insights over the
// summary set.
func (c *GenAIClient) AnalyzeStrategies(ctx context.Context, summaries []types.StrategySummary) (string, error) {
	data, err := json.Marshal(summaries)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summaries: %w", err)
	}
	prompt := fmt.Sprintf(
		"Analyze these bidding strategy results and explain which approaches worked and why:\n%s",
		string(data))
	return c.GenerateText(ctx, prompt)
}
