package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
	"github.com/peejay10/line-llama-chatbot/internal/ratelimit"
)

const (
	// GeminiEmbeddingModel is the default model for generating embeddings
	GeminiEmbeddingModel = "gemini-embedding-001"

	// GeminiAPIRateLimit is the requests per minute limit (1000 RPM for embedding API)
	GeminiAPIRateLimit = 1000

	// geminiAPIBaseURL is the base URL for Gemini API
	geminiAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// embedBatchConcurrency caps parallel embedding requests in EmbedBatch
	embedBatchConcurrency = 4

	// Retry configuration for transient errors
	defaultMaxRetries    = 5
	defaultInitialDelay  = 2 * time.Second
	defaultBackoffFactor = 2.0
)

// EmbeddingClient provides embedding generation using the Gemini API.
// It implements the Encoder interface.
type EmbeddingClient struct {
	apiKey      string
	model       string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
}

// NewEmbeddingClient creates a new Gemini embedding client.
// An empty model selects GeminiEmbeddingModel.
func NewEmbeddingClient(apiKey, model string) *EmbeddingClient {
	if model == "" {
		model = GeminiEmbeddingModel
	}
	return &EmbeddingClient{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: ratelimit.NewPerMinute(GeminiAPIRateLimit),
	}
}

// Model implements Encoder.
func (c *EmbeddingClient) Model() string { return c.model }

// IsConfigured returns true if the API key is set
func (c *EmbeddingClient) IsConfigured() bool {
	return c.apiKey != ""
}

// embeddingRequest represents the request body for Gemini embedding API
type embeddingRequest struct {
	Model   string           `json:"model"`
	Content embeddingContent `json:"content"`
}

type embeddingContent struct {
	Parts []embeddingPart `json:"parts"`
}

type embeddingPart struct {
	Text string `json:"text"`
}

// embeddingResponse represents the response from Gemini embedding API
type embeddingResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding vector for the given text.
// Uses exponential backoff with jitter for transient errors (429, 500+).
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: %w", apperrors.ErrInvalidInput)
	}

	var lastErr error
	delay := defaultInitialDelay

	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		// Wait for rate limit
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		result, retryable, err := c.embedOnce(ctx, text)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !retryable {
			return nil, err
		}
		if attempt == defaultMaxRetries {
			break
		}

		if err := Sleep(ctx, CalculateBackoff(attempt+1, delay, 30*time.Second)); err != nil {
			return nil, err
		}
		delay = time.Duration(float64(delay) * defaultBackoffFactor)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// EmbedBatch embeds several texts concurrently, preserving input order.
// Any single failure fails the whole batch.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedBatchConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := c.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedOnce performs a single embedding request.
// Returns (result, retryable, error).
func (c *EmbeddingClient) embedOnce(ctx context.Context, text string) ([]float32, bool, error) {
	url := fmt.Sprintf("%s/%s:embedContent?key=%s", geminiAPIBaseURL, c.model, c.apiKey)

	reqBody := embeddingRequest{
		Model: fmt.Sprintf("models/%s", c.model),
		Content: embeddingContent{
			Parts: []embeddingPart{{Text: text}},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are retryable
		return nil, true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("HTTP 429: %w", apperrors.ErrRateLimitExceeded)
	}
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("HTTP %d: server error", resp.StatusCode)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}

	if embeddingResp.Error != nil {
		retryable := embeddingResp.Error.Code == http.StatusTooManyRequests ||
			embeddingResp.Error.Status == "RESOURCE_EXHAUSTED" ||
			embeddingResp.Error.Code >= 500

		return nil, retryable, fmt.Errorf("API error %d: %s - %s",
			embeddingResp.Error.Code,
			embeddingResp.Error.Status,
			embeddingResp.Error.Message)
	}

	if len(embeddingResp.Embedding.Values) == 0 {
		return nil, false, fmt.Errorf("empty embedding returned")
	}

	return embeddingResp.Embedding.Values, false, nil
}
