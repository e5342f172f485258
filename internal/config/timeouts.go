package config

import "time"

// Default tuning values for matching and column mapping.
const (
	DefaultMatchThreshold      = 0.7
	DefaultQuestionColumn      = "คำถาม"
	DefaultGeneralAnswerColumn = "คำตอบทั่วไป"
	DefaultTermColumnPrefix    = "เทอม "
)

// Timeout constants for external calls and background work.
const (
	// WebhookProcessing bounds handling of a single webhook event,
	// including matching, any fallback generation, and the reply.
	WebhookProcessing = 60 * time.Second

	// EmbeddingRequest bounds a single embedContent API call.
	EmbeddingRequest = 30 * time.Second

	// FallbackGenerate bounds a single fallback generation call.
	FallbackGenerate = 45 * time.Second

	// KnowledgeLoad bounds loading the full workbook from its source.
	KnowledgeLoad = 2 * time.Minute

	// ReplyDelivery bounds one LINE reply API attempt.
	ReplyDelivery = 10 * time.Second

	// HTTPReadTimeout is the server read timeout.
	HTTPReadTimeout = 10 * time.Second

	// HTTPWriteTimeout is the server write timeout. Replies are sent
	// asynchronously, so this only covers the webhook acknowledgement.
	HTTPWriteTimeout = 30 * time.Second

	// HTTPIdleTimeout is the server keep-alive idle timeout.
	HTTPIdleTimeout = 120 * time.Second
)
