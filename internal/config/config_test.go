package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "test-token")
	t.Setenv("LINE_CHANNEL_SECRET", "test-secret")
	t.Setenv("KNOWLEDGE_DIR", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "10000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "10000")
	}
	if cfg.MatchThreshold != DefaultMatchThreshold {
		t.Errorf("MatchThreshold = %v, want %v", cfg.MatchThreshold, DefaultMatchThreshold)
	}
	if cfg.QuestionColumn != "คำถาม" {
		t.Errorf("QuestionColumn = %q, want %q", cfg.QuestionColumn, "คำถาม")
	}
	if cfg.GeneralAnswerCol != "คำตอบทั่วไป" {
		t.Errorf("GeneralAnswerCol = %q, want %q", cfg.GeneralAnswerCol, "คำตอบทั่วไป")
	}
	if cfg.TermColumnPrefix != "เทอม " {
		t.Errorf("TermColumnPrefix = %q, want %q", cfg.TermColumnPrefix, "เทอม ")
	}
	if cfg.OllamaBaseURL != "http://localhost:11434/v1" {
		t.Errorf("OllamaBaseURL = %q, want default Ollama endpoint", cfg.OllamaBaseURL)
	}
	if cfg.OllamaModel != "gemma" {
		t.Errorf("OllamaModel = %q, want %q", cfg.OllamaModel, "gemma")
	}
	if cfg.PendingTTL != 0 {
		t.Errorf("PendingTTL = %v, want 0 (never expire)", cfg.PendingTTL)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MATCH_THRESHOLD", "0.85")
	t.Setenv("PORT", "8080")
	t.Setenv("PENDING_TTL", "10m")
	t.Setenv("KNOWLEDGE_REFRESH_INTERVAL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MatchThreshold != 0.85 {
		t.Errorf("MatchThreshold = %v, want 0.85", cfg.MatchThreshold)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.PendingTTL != 10*time.Minute {
		t.Errorf("PendingTTL = %v, want 10m", cfg.PendingTTL)
	}
	if cfg.RefreshInterval != time.Hour {
		t.Errorf("RefreshInterval = %v, want 1h", cfg.RefreshInterval)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	t.Setenv("LINE_CHANNEL_SECRET", "")
	t.Setenv("KNOWLEDGE_DIR", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without required variables")
	}
	for _, want := range []string{"LINE_CHANNEL_ACCESS_TOKEN", "LINE_CHANNEL_SECRET", "knowledge source"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing mention of %s", err, want)
		}
	}
}

func TestValidateThresholdBounds(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantErr   bool
	}{
		{"zero", 0, false},
		{"default", 0.7, false},
		{"just below one", 0.999, false},
		{"one", 1, true},
		{"negative", -0.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.MatchThreshold = tt.threshold
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBucketEnabled(t *testing.T) {
	b := BucketConfig{}
	if b.Enabled() {
		t.Error("empty bucket config reported enabled")
	}

	b = BucketConfig{
		Endpoint:    "https://accountid.r2.cloudflarestorage.com",
		AccessKeyID: "key",
		SecretKey:   "secret",
		Name:        "faq-knowledge",
	}
	if !b.Enabled() {
		t.Error("full bucket config reported disabled")
	}

	b.SecretKey = ""
	if b.Enabled() {
		t.Error("partial bucket config reported enabled")
	}
}

func TestHasGeminiFallback(t *testing.T) {
	cfg := validConfig()
	if cfg.HasGeminiFallback() {
		t.Error("HasGeminiFallback() = true without API key")
	}
	cfg.GeminiAPIKey = "abc"
	if !cfg.HasGeminiFallback() {
		t.Error("HasGeminiFallback() = false with API key")
	}
}

func validConfig() *Config {
	return &Config{
		LineChannelToken:  "token",
		LineChannelSecret: "secret",
		MatchThreshold:    DefaultMatchThreshold,
		KnowledgeDir:      "/tmp/knowledge",
		QuestionColumn:    DefaultQuestionColumn,
		GeneralAnswerCol:  DefaultGeneralAnswerColumn,
		TermColumnPrefix:  DefaultTermColumnPrefix,
		FallbackTimeout:   FallbackGenerate,
		Port:              "10000",
		DataDir:           "./data",
		Bot: BotConfig{
			WebhookTimeout:            WebhookProcessing,
			UserRateLimitBurst:        15,
			UserRateLimitRefillPerSec: 0.1,
			LLMBurstTokens:            40,
			LLMRefillPerHour:          20,
			GlobalRateRPS:             100,
			MaxEventsPerWebhook:       100,
			MinReplyTokenLength:       10,
			MaxMessageLength:          5000,
		},
	}
}
