package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.WebhookRequestsTotal == nil {
		t.Error("WebhookRequestsTotal is nil")
	}
	if m.WebhookDurationSeconds == nil {
		t.Error("WebhookDurationSeconds is nil")
	}
	if m.MatchRequestsTotal == nil {
		t.Error("MatchRequestsTotal is nil")
	}
	if m.MatchBestScore == nil {
		t.Error("MatchBestScore is nil")
	}
	if m.EmbeddingCacheHitsTotal == nil {
		t.Error("EmbeddingCacheHitsTotal is nil")
	}
	if m.EmbeddingCacheMissesTotal == nil {
		t.Error("EmbeddingCacheMissesTotal is nil")
	}
	if m.FallbackRequestsTotal == nil {
		t.Error("FallbackRequestsTotal is nil")
	}
	if m.FallbackDurationSeconds == nil {
		t.Error("FallbackDurationSeconds is nil")
	}
	if m.FallbackQuotaUsers == nil {
		t.Error("FallbackQuotaUsers is nil")
	}
	if m.KnowledgeRefreshTotal == nil {
		t.Error("KnowledgeRefreshTotal is nil")
	}
	if m.KnowledgeRecords == nil {
		t.Error("KnowledgeRecords is nil")
	}
	if m.RateLimiterDropped == nil {
		t.Error("RateLimiterDropped is nil")
	}
	if m.ReplyDeliveriesTotal == nil {
		t.Error("ReplyDeliveriesTotal is nil")
	}
}

func TestRecordWebhook(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordWebhook("message", "success", 0.2)
	m.RecordWebhook("message", "error", 1.5)
	m.RecordWebhook("follow", "success", 0.05)
}

func TestRecordMatch(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordMatch("general", "hit")
	m.RecordMatch("by_term", "miss")
	m.RecordMatch("by_semester", "error")
	m.RecordBestScore(0.73)
}

func TestRecordFallback(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordFallback("ollama", "success", 3.2)
	m.RecordFallback("gemini", "error", 45.0)
	m.SetFallbackQuotaUsers(7)
}

func TestRecordKnowledgeRefresh(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordKnowledgeRefresh("dir", "success")
	m.RecordKnowledgeRefresh("bucket", "error")
	m.SetKnowledgeRecords("general", 42)
	m.SetKnowledgeRecords("by_term", 12)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	_ = New(registry)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = New(registry)
}
