package aiguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// Generation settings for documentation output.
const (
	DefaultModel    = "gemini-2.5-flash"
	temperature     = 0.3
	topP            = 0.95
	maxOutputTokens = 8192
)

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	models *genai.Models
	model  string
	logger *slog.Logger
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a Gemini API client for apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiGenerator{models: client.Models, model: model, logger: logger}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     ptr[float32](temperature),
		TopP:            ptr[float32](topP),
		MaxOutputTokens: maxOutputTokens,
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		if isRateLimitError(err) {
			return "", fmt.Errorf("%w: %v", ErrProviderRateLimited, err)
		}
		g.logger.Error("Gemini API error", "model", g.model, "error", err)
		return "", fmt.Errorf("generating content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no content generated - no candidates")
	}
	if resp.UsageMetadata != nil {
		g.logger.Debug("Gemini token usage",
			"model", g.model,
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}
	return resp.Text(), nil
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota exceeded")
}

func ptr[T any](v T) *T {
	return &v
}
