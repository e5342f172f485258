// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// the LINE channel, knowledge source, matching, and fallback generation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string

	// Embedding Configuration
	GeminiAPIKey   string // Gemini API key for the embedding encoder
	EmbeddingModel string // Embedding model name (default: gemini-embedding-001)

	// Matching Configuration
	MatchThreshold float64 // Minimum cosine similarity (strict >) for a knowledge-base hit

	// Knowledge Source Configuration
	KnowledgeDir     string        // Local directory holding the CSV workbook (optional)
	RefreshInterval  time.Duration // Periodic refresh interval (0 = disabled)
	QuestionColumn   string        // Canonical question column name
	GeneralAnswerCol string        // Answer column for the General category
	TermColumnPrefix string        // Prefix for per-term answer columns (e.g. "เทอม ")

	// Object storage knowledge source (optional, overrides KnowledgeDir when set)
	Bucket BucketConfig

	// Fallback Generator Configuration
	OllamaBaseURL   string        // OpenAI-compatible endpoint (default: http://localhost:11434/v1)
	OllamaModel     string        // Model served by Ollama (default: gemma)
	GeminiGenModel  string        // Gemini fallback model (used when GeminiAPIKey is set)
	FallbackTimeout time.Duration // Upper bound on a single fallback generation call

	// Session Configuration
	PendingTTL time.Duration // Expiry for pending disambiguations (0 = never expire)

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // Empty = no auth on /metrics

	// Admin Authentication (manual knowledge refresh)
	AdminUsername string
	AdminPassword string // Empty = /admin routes disabled

	// Observability
	SentryToken   string // Better Stack errors token (empty = disabled)
	SentryHost    string
	LogsToken     string // Better Stack logs token (empty = stdout only)
	LogsEndpoint  string
	Environment   string
	LogLevel      string

	// Server Configuration
	Port            string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir string // Directory for the SQLite snapshot/embedding cache

	// Bot Configuration (embedded)
	Bot BotConfig
}

// BucketConfig holds S3/R2 object storage settings for the knowledge workbook.
type BucketConfig struct {
	Endpoint    string
	AccessKeyID string
	SecretKey   string
	Name        string
	Prefix      string // Key prefix in front of general.csv / by_term.csv / by_semester.csv
}

// Enabled reports whether the bucket source is fully configured.
func (b BucketConfig) Enabled() bool {
	return b.Endpoint != "" && b.AccessKeyID != "" && b.SecretKey != "" && b.Name != ""
}

// BotConfig holds bot-specific configuration
type BotConfig struct {
	// Timeouts
	WebhookTimeout time.Duration // Timeout for processing one webhook event

	// Rate Limits (Token Bucket Algorithm)
	UserRateLimitBurst        float64 // Maximum burst tokens per user
	UserRateLimitRefillPerSec float64 // Tokens refilled per second

	// Fallback generation quota (per-user token bucket)
	LLMBurstTokens   float64 // Maximum burst tokens for fallback generation
	LLMRefillPerHour float64 // Tokens refilled per hour

	GlobalRateRPS float64 // Global reply rate limit in requests per second

	// LINE API Constraints
	MaxEventsPerWebhook int // Maximum events accepted per webhook batch
	MinReplyTokenLength int
	MaxMessageLength    int // LINE API text message limit
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineChannelSecret: getEnv("LINE_CHANNEL_SECRET", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),

		MatchThreshold: getFloatEnv("MATCH_THRESHOLD", DefaultMatchThreshold),

		KnowledgeDir:     getEnv("KNOWLEDGE_DIR", ""),
		RefreshInterval:  getDurationEnv("KNOWLEDGE_REFRESH_INTERVAL", 0),
		QuestionColumn:   getEnv("QUESTION_COLUMN", DefaultQuestionColumn),
		GeneralAnswerCol: getEnv("GENERAL_ANSWER_COLUMN", DefaultGeneralAnswerColumn),
		TermColumnPrefix: getEnv("TERM_COLUMN_PREFIX", DefaultTermColumnPrefix),

		Bucket: BucketConfig{
			Endpoint:    getEnv("BUCKET_ENDPOINT", ""),
			AccessKeyID: getEnv("BUCKET_ACCESS_KEY_ID", ""),
			SecretKey:   getEnv("BUCKET_SECRET_ACCESS_KEY", ""),
			Name:        getEnv("BUCKET_NAME", ""),
			Prefix:      getEnv("BUCKET_PREFIX", "knowledge"),
		},

		OllamaBaseURL:   getEnv("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "gemma"),
		GeminiGenModel:  getEnv("GEMINI_GENERATE_MODEL", ""),
		FallbackTimeout: getDurationEnv("FALLBACK_TIMEOUT", FallbackGenerate),

		PendingTTL: getDurationEnv("PENDING_TTL", 0),

		MetricsUsername: getEnv("METRICS_USERNAME", "prometheus"),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		SentryToken:  getEnv("SENTRY_TOKEN", ""),
		SentryHost:   getEnv("SENTRY_HOST", "errors.betterstack.com"),
		LogsToken:    getEnv("LOGS_TOKEN", ""),
		LogsEndpoint: getEnv("LOGS_ENDPOINT", ""),
		Environment:  getEnv("ENVIRONMENT", "production"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		Port:            getEnv("PORT", "10000"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		DataDir: getEnv("DATA_DIR", "./data"),

		Bot: BotConfig{
			WebhookTimeout:            getDurationEnv("WEBHOOK_TIMEOUT", WebhookProcessing),
			UserRateLimitBurst:        getFloatEnv("USER_RATE_LIMIT_BURST", 15.0),
			UserRateLimitRefillPerSec: getFloatEnv("USER_RATE_LIMIT_REFILL_PER_SEC", 0.1), // 1 per 10s
			LLMBurstTokens:            getFloatEnv("LLM_BURST_TOKENS", 40.0),
			LLMRefillPerHour:          getFloatEnv("LLM_REFILL_PER_HOUR", 20.0),
			GlobalRateRPS:             getFloatEnv("GLOBAL_RATE_LIMIT_RPS", 100.0),
			MaxEventsPerWebhook:       getIntEnv("MAX_EVENTS_PER_WEBHOOK", 100),
			MinReplyTokenLength:       10,
			MaxMessageLength:          5000,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.LineChannelToken == "" {
		errs = append(errs, errors.New("LINE_CHANNEL_ACCESS_TOKEN is required"))
	}
	if c.LineChannelSecret == "" {
		errs = append(errs, errors.New("LINE_CHANNEL_SECRET is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.KnowledgeDir == "" && !c.Bucket.Enabled() {
		errs = append(errs, errors.New("a knowledge source is required: set KNOWLEDGE_DIR or the BUCKET_* variables"))
	}
	if c.MatchThreshold < 0 || c.MatchThreshold >= 1 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be in [0, 1), got %v", c.MatchThreshold))
	}
	if c.QuestionColumn == "" {
		errs = append(errs, errors.New("QUESTION_COLUMN must not be empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if c.FallbackTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FALLBACK_TIMEOUT must be positive, got %v", c.FallbackTimeout))
	}
	if c.PendingTTL < 0 {
		errs = append(errs, fmt.Errorf("PENDING_TTL cannot be negative, got %v", c.PendingTTL))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks bot configuration bounds.
func (b *BotConfig) Validate() error {
	var errs []error

	if b.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_TIMEOUT must be positive, got %v", b.WebhookTimeout))
	}
	if b.UserRateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("USER_RATE_LIMIT_BURST must be positive, got %v", b.UserRateLimitBurst))
	}
	if b.GlobalRateRPS <= 0 {
		errs = append(errs, fmt.Errorf("GLOBAL_RATE_LIMIT_RPS must be positive, got %v", b.GlobalRateRPS))
	}
	if b.MaxEventsPerWebhook <= 0 {
		errs = append(errs, fmt.Errorf("MAX_EVENTS_PER_WEBHOOK must be positive, got %d", b.MaxEventsPerWebhook))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HasGeminiFallback reports whether Gemini is available as a fallback
// generation provider.
func (c *Config) HasGeminiFallback() bool {
	return c.GeminiAPIKey != ""
}

// SQLitePath returns the full path to the SQLite cache database file.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
