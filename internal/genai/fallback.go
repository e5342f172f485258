package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peejay10/line-llama-chatbot/internal/logger"
	"github.com/peejay10/line-llama-chatbot/internal/metrics"
)

// FallbackGenerator chains generation providers. Each provider is tried
// with retry; when retries are exhausted or the error warrants a
// provider switch, the next one in the chain is attempted.
type FallbackGenerator struct {
	providers   []Generator
	retryConfig RetryConfig
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// NewFallbackGenerator creates a chain over the given providers, tried
// in order. m may be nil.
func NewFallbackGenerator(providers []Generator, cfg RetryConfig, log *logger.Logger, m *metrics.Metrics) (*FallbackGenerator, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one generation provider is required")
	}
	return &FallbackGenerator{
		providers:   providers,
		retryConfig: cfg,
		log:         log.WithModule("genai"),
		metrics:     m,
	}, nil
}

// Provider returns the primary provider of the chain.
func (f *FallbackGenerator) Provider() Provider {
	return f.providers[0].Provider()
}

// Generate tries each provider in order until one succeeds.
func (f *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for i, gen := range f.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		start := time.Now()
		answer, err := f.generateWithRetry(ctx, gen, prompt)
		duration := time.Since(start)

		if err == nil {
			if f.metrics != nil {
				f.metrics.RecordFallback(string(gen.Provider()), "success", duration.Seconds())
			}
			if i > 0 {
				f.log.WithField("provider", string(gen.Provider())).
					Info("answer produced by fallback provider")
			}
			return answer, nil
		}

		lastErr = err
		if f.metrics != nil {
			f.metrics.RecordFallback(string(gen.Provider()), "error", duration.Seconds())
		}
		f.log.WithError(err).WithFields(map[string]any{
			"provider": string(gen.Provider()),
			"action":   ClassifyError(err).String(),
		}).Warn("generation provider failed")

		// A permanent error on one provider can still succeed on the
		// next (different keys, different models), so keep going.
	}

	return "", fmt.Errorf("all generation providers failed: %w", lastErr)
}

func (f *FallbackGenerator) generateWithRetry(ctx context.Context, gen Generator, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < f.retryConfig.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		answer, err := gen.Generate(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if ClassifyError(err) != ActionRetry {
			return "", err
		}
		if attempt == f.retryConfig.MaxAttempts-1 {
			break
		}

		delay := CalculateBackoff(attempt+1, f.retryConfig.InitialDelay, f.retryConfig.MaxDelay)
		if err := Sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}
