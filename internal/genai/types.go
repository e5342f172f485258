// Package genai provides the two model integrations of the bot: the
// Gemini embedding encoder used for semantic matching, and the
// generative fallback (Ollama or Gemini) used when no knowledge base
// entry is confident enough.
package genai

import (
	"context"
	"time"
)

// Provider identifies a generative model provider.
type Provider string

const (
	// ProviderOllama is a local Ollama server speaking the
	// OpenAI-compatible chat API.
	ProviderOllama Provider = "ollama"
	// ProviderGemini is Google's Gemini API.
	ProviderGemini Provider = "gemini"
)

// Encoder turns text into embedding vectors for semantic matching.
type Encoder interface {
	// Embed returns the embedding of one text. Empty or
	// whitespace-only text yields errors.ErrInvalidInput.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds several texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model returns the embedding model name, used as a cache key.
	Model() string
}

// Generator produces a free-form answer when the knowledge base has none.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() Provider
}

// RetryConfig defines retry behavior for model API calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig is tuned for chat-latency budgets: a couple of
// quick retries, never more than a few seconds of added delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
	}
}
