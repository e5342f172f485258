package genai

import (
	"context"
	"errors"

	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
	"github.com/peejay10/line-llama-chatbot/internal/metrics"
)

// EmbeddingStore persists embedding vectors keyed by model and text.
// Implemented by the storage package.
type EmbeddingStore interface {
	GetEmbedding(ctx context.Context, model, text string) ([]float32, error)
	PutEmbedding(ctx context.Context, model, text string, vector []float32) error
}

// CachedEncoder wraps an Encoder with a persistent embedding cache.
// Knowledge base questions are stable between refreshes, so most
// lookups after the first load are cache hits.
type CachedEncoder struct {
	inner   Encoder
	store   EmbeddingStore
	metrics *metrics.Metrics
}

// NewCachedEncoder wraps inner with the given store. m may be nil.
func NewCachedEncoder(inner Encoder, store EmbeddingStore, m *metrics.Metrics) *CachedEncoder {
	return &CachedEncoder{inner: inner, store: store, metrics: m}
}

// Model implements Encoder.
func (c *CachedEncoder) Model() string { return c.inner.Model() }

// Embed implements Encoder. Cache write failures are swallowed; the
// vector itself is still returned.
func (c *CachedEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.store.GetEmbedding(ctx, c.inner.Model(), text)
	if err == nil {
		if c.metrics != nil {
			c.metrics.RecordEmbeddingCacheHit()
		}
		return vec, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordEmbeddingCacheMiss()
	}
	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	_ = c.store.PutEmbedding(ctx, c.inner.Model(), text, vec)
	return vec, nil
}

// EmbedBatch implements Encoder, going through the cache one text at a
// time. The underlying encoder's own batch path is only used for texts
// that miss, one by one, which keeps ordering trivial.
func (c *CachedEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}
