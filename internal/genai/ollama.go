package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ollamaGenerator produces fallback answers through a local Ollama
// server via its OpenAI-compatible chat API. It implements Generator.
type ollamaGenerator struct {
	client openai.Client
	model  string
}

// NewOllamaGenerator creates a generator backed by an Ollama server.
// baseURL must point at the OpenAI-compatible endpoint, e.g.
// http://localhost:11434/v1.
func NewOllamaGenerator(baseURL, model string) (Generator, error) {
	if baseURL == "" {
		return nil, errors.New("ollama base URL is required")
	}
	if model == "" {
		return nil, errors.New("ollama model is required")
	}

	// Ollama ignores the API key but the client requires one
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("ollama"),
	)

	return &ollamaGenerator{
		client: client,
		model:  model,
	}, nil
}

// Provider implements Generator.
func (g *ollamaGenerator) Provider() Provider { return ProviderOllama }

// Generate implements Generator.
func (g *ollamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", WrapError(fmt.Errorf("ollama chat completion: %w", err), ProviderOllama, 0)
	}

	if len(resp.Choices) == 0 {
		return "", WrapError(errors.New("ollama returned no choices"), ProviderOllama, 0)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", WrapError(errors.New("ollama returned empty answer"), ProviderOllama, 0)
	}
	return answer, nil
}
