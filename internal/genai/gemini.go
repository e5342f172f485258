package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiGenerateModel is used when no model is configured.
const DefaultGeminiGenerateModel = "gemini-2.0-flash"

// geminiGenerator produces fallback answers through the Gemini API.
// It implements Generator.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed fallback generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (Generator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiGenerateModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiGenerator{
		client: client,
		model:  model,
	}, nil
}

// Provider implements Generator.
func (g *geminiGenerator) Provider() Provider { return ProviderGemini }

// Generate implements Generator.
func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", WrapError(fmt.Errorf("gemini generate content: %w", err), ProviderGemini, 0)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", WrapError(errors.New("gemini returned no candidates"), ProviderGemini, 0)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", WrapError(errors.New("gemini returned empty answer"), ProviderGemini, 0)
	}
	return answer, nil
}
