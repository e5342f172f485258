package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestPerKeyLimiter(maxTokens, refillRate float64) *PerKeyLimiter {
	return NewPerKeyLimiter(PerKeyLimiterConfig{
		MaxTokens:     maxTokens,
		RefillRate:    refillRate,
		CleanupPeriod: time.Hour, // Effectively disabled for tests
	})
}

func TestPerKeyAllow(t *testing.T) {
	t.Parallel()

	t.Run("independent buckets per key", func(t *testing.T) {
		t.Parallel()
		pkl := newTestPerKeyLimiter(1, 0)
		defer pkl.Stop()

		if !pkl.Allow("user-a") {
			t.Error("Allow(user-a) = false on first request")
		}
		if pkl.Allow("user-a") {
			t.Error("Allow(user-a) = true after bucket emptied")
		}
		if !pkl.Allow("user-b") {
			t.Error("Allow(user-b) = false, buckets should be independent")
		}
	})

	t.Run("empty key is never limited", func(t *testing.T) {
		t.Parallel()
		pkl := newTestPerKeyLimiter(1, 0)
		defer pkl.Stop()

		for i := 0; i < 10; i++ {
			if !pkl.Allow("") {
				t.Fatal("Allow(\"\") = false, empty key must not be limited")
			}
		}
	})
}

func TestPerKeyOnDrop(t *testing.T) {
	t.Parallel()
	pkl := newTestPerKeyLimiter(1, 0)
	defer pkl.Stop()

	var mu sync.Mutex
	drops := 0
	pkl.OnDrop(func() {
		mu.Lock()
		drops++
		mu.Unlock()
	})

	pkl.Allow("user")
	pkl.Allow("user")
	pkl.Allow("user")

	mu.Lock()
	defer mu.Unlock()
	if drops != 2 {
		t.Errorf("drops = %d, want 2", drops)
	}
}

func TestPerKeyGetAvailable(t *testing.T) {
	t.Parallel()
	pkl := newTestPerKeyLimiter(3, 0)
	defer pkl.Stop()

	if got := pkl.GetAvailable("unknown"); got != 3 {
		t.Errorf("GetAvailable(unknown) = %v, want 3", got)
	}
	pkl.Allow("user")
	if got := pkl.GetAvailable("user"); got != 2 {
		t.Errorf("GetAvailable(user) = %v, want 2", got)
	}
}

func TestPerKeyGetActiveCount(t *testing.T) {
	t.Parallel()
	pkl := newTestPerKeyLimiter(5, 1)
	defer pkl.Stop()

	if got := pkl.GetActiveCount(); got != 0 {
		t.Errorf("GetActiveCount() = %d, want 0", got)
	}
	pkl.Allow("a")
	pkl.Allow("b")
	pkl.Allow("a")
	if got := pkl.GetActiveCount(); got != 2 {
		t.Errorf("GetActiveCount() = %d, want 2", got)
	}
}

func TestPerKeyCleanup(t *testing.T) {
	t.Parallel()
	pkl := NewPerKeyLimiter(PerKeyLimiterConfig{
		MaxTokens:     1,
		RefillRate:    100, // Refills in 10ms, so bucket becomes full again quickly
		CleanupPeriod: 20 * time.Millisecond,
	})
	defer pkl.Stop()

	pkl.Allow("user")
	if got := pkl.GetActiveCount(); got != 1 {
		t.Fatalf("GetActiveCount() = %d, want 1", got)
	}

	// Wait for the bucket to refill and the cleanup loop to run
	time.Sleep(100 * time.Millisecond)

	if got := pkl.GetActiveCount(); got != 0 {
		t.Errorf("GetActiveCount() = %d after cleanup, want 0", got)
	}
}

func TestPerKeyStopIdempotent(t *testing.T) {
	t.Parallel()
	pkl := newTestPerKeyLimiter(1, 1)
	pkl.Stop()
	pkl.Stop() // Must not panic
}

func TestFallbackQuota(t *testing.T) {
	t.Parallel()
	fq := NewFallbackQuota(2, 0, time.Hour, nil)
	defer fq.Stop()

	if !fq.Allow("user") {
		t.Error("Allow() = false on first call")
	}
	if !fq.Allow("user") {
		t.Error("Allow() = false on second call within burst")
	}
	if fq.Allow("user") {
		t.Error("Allow() = true after quota exhausted")
	}
	if got := fq.GetAvailable("other"); got != 2 {
		t.Errorf("GetAvailable(other) = %v, want full quota 2", got)
	}
}
