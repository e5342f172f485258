package ratelimit

import (
	"time"

	"github.com/peejay10/line-llama-chatbot/internal/metrics"
)

// FallbackQuota tracks per-user generative fallback usage with hourly limits.
// It is separate from the general user limiter so that expensive model calls
// are capped independently from ordinary message handling.
type FallbackQuota struct {
	pkl        *PerKeyLimiter
	maxPerHour float64
	metrics    *metrics.Metrics
}

// NewFallbackQuota creates a per-user quota for generative fallback calls.
//
// Parameters:
//   - burst: maximum burst tokens per user (e.g., 40)
//   - refillPerHour: tokens refilled per hour (e.g., 20)
//   - cleanup: interval for removing inactive limiters
//   - m: optional metrics reporter
func NewFallbackQuota(burst, refillPerHour float64, cleanup time.Duration, m *metrics.Metrics) *FallbackQuota {
	fq := &FallbackQuota{
		maxPerHour: burst,
		metrics:    m,
	}

	fq.pkl = NewPerKeyLimiter(PerKeyLimiterConfig{
		MaxTokens:     burst,
		RefillRate:    refillPerHour / 3600.0,
		CleanupPeriod: cleanup,
	})

	if m != nil {
		fq.pkl.OnDrop(func() {
			m.RecordRateLimiterDrop("fallback")
		})
		fq.pkl.OnUpdate(func(count int) {
			m.SetFallbackQuotaUsers(count)
		})
	}

	return fq
}

// Allow checks if a fallback call from userID is allowed under the quota.
// Returns true if allowed (token consumed), false if the quota is exhausted.
func (fq *FallbackQuota) Allow(userID string) bool {
	return fq.pkl.Allow(userID)
}

// GetAvailable returns the number of remaining tokens for a user.
func (fq *FallbackQuota) GetAvailable(userID string) float64 {
	if userID == "" {
		return fq.maxPerHour
	}
	return fq.pkl.GetAvailable(userID)
}

// Stop gracefully stops the cleanup goroutine.
// Safe to call multiple times.
func (fq *FallbackQuota) Stop() {
	fq.pkl.Stop()
}
