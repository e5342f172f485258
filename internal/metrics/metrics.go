package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec

	// Matching metrics
	MatchRequestsTotal *prometheus.CounterVec
	MatchBestScore     prometheus.Histogram

	// Embedding metrics
	EmbeddingCacheHitsTotal   prometheus.Counter
	EmbeddingCacheMissesTotal prometheus.Counter

	// Fallback generation metrics
	FallbackRequestsTotal   *prometheus.CounterVec
	FallbackDurationSeconds *prometheus.HistogramVec
	FallbackQuotaUsers      prometheus.Gauge

	// Knowledge base metrics
	KnowledgeRefreshTotal *prometheus.CounterVec
	KnowledgeRecords      *prometheus.GaugeVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec

	// Reply delivery metrics
	ReplyDeliveriesTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Webhook metrics
		WebhookRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error, dropped
		),

		WebhookDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faq_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}, // Includes fallback generation time
			},
			[]string{"event_type"}, // event_type: message, follow
		),

		// Matching metrics
		MatchRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_match_requests_total",
				Help: "Total number of knowledge base lookups by category and outcome",
			},
			[]string{"category", "outcome"}, // outcome: hit, miss, error
		),

		MatchBestScore: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faq_match_best_score",
				Help:    "Best cosine similarity score per lookup",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.65, 0.7, 0.75, 0.8, 0.9, 1},
			},
		),

		// Embedding metrics
		EmbeddingCacheHitsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "faq_embedding_cache_hits_total",
				Help: "Total number of embedding cache hits",
			},
		),

		EmbeddingCacheMissesTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "faq_embedding_cache_misses_total",
				Help: "Total number of embedding cache misses",
			},
		),

		// Fallback generation metrics
		FallbackRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_fallback_requests_total",
				Help: "Total number of generative fallback calls by provider and status",
			},
			[]string{"provider", "status"}, // provider: ollama, gemini; status: success, error, quota_exceeded
		),

		FallbackDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faq_fallback_duration_seconds",
				Help:    "Generative fallback call duration in seconds by provider",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45}, // Matches 45s generation timeout
			},
			[]string{"provider"},
		),

		FallbackQuotaUsers: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "faq_fallback_quota_users",
				Help: "Current number of users tracked by the fallback quota",
			},
		),

		// Knowledge base metrics
		KnowledgeRefreshTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_knowledge_refresh_total",
				Help: "Total number of knowledge base refreshes by source and status",
			},
			[]string{"source", "status"}, // source: dir, bucket, sqlite; status: success, error
		),

		KnowledgeRecords: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faq_knowledge_records",
				Help: "Number of loaded knowledge records by category",
			},
			[]string{"category"}, // category: general, by_term, by_semester
		),

		// Rate limiter metrics
		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: user, global, fallback
		),

		// Reply delivery metrics
		ReplyDeliveriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "faq_reply_deliveries_total",
				Help: "Total number of LINE reply deliveries by status",
			},
			[]string{"status"}, // status: success, error
		),
	}

	return m
}

// RecordWebhook records a webhook event with status
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordMatch records a knowledge base lookup outcome
func (m *Metrics) RecordMatch(category, outcome string) {
	m.MatchRequestsTotal.WithLabelValues(category, outcome).Inc()
}

// RecordBestScore records the best similarity score of a lookup
func (m *Metrics) RecordBestScore(score float64) {
	m.MatchBestScore.Observe(score)
}

// RecordEmbeddingCacheHit records an embedding cache hit
func (m *Metrics) RecordEmbeddingCacheHit() {
	m.EmbeddingCacheHitsTotal.Inc()
}

// RecordEmbeddingCacheMiss records an embedding cache miss
func (m *Metrics) RecordEmbeddingCacheMiss() {
	m.EmbeddingCacheMissesTotal.Inc()
}

// RecordFallback records a generative fallback call
func (m *Metrics) RecordFallback(provider, status string, duration float64) {
	m.FallbackRequestsTotal.WithLabelValues(provider, status).Inc()
	m.FallbackDurationSeconds.WithLabelValues(provider).Observe(duration)
}

// SetFallbackQuotaUsers records the number of tracked fallback quota users
func (m *Metrics) SetFallbackQuotaUsers(count int) {
	m.FallbackQuotaUsers.Set(float64(count))
}

// RecordKnowledgeRefresh records a knowledge base refresh attempt
func (m *Metrics) RecordKnowledgeRefresh(source, status string) {
	m.KnowledgeRefreshTotal.WithLabelValues(source, status).Inc()
}

// SetKnowledgeRecords records the loaded record count for a category
func (m *Metrics) SetKnowledgeRecords(category string, count int) {
	m.KnowledgeRecords.WithLabelValues(category).Set(float64(count))
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// RecordReplyDelivery records a LINE reply delivery attempt
func (m *Metrics) RecordReplyDelivery(status string) {
	m.ReplyDeliveriesTotal.WithLabelValues(status).Inc()
}
