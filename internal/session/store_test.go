package session

import (
	"sync"
	"testing"
	"time"

	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
)

func TestSetAndTakePending(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	defer s.Stop()

	s.SetPending("U1", Pending{Category: knowledge.ByTerm, Question: "ค่าเทอมเท่าไหร่"})

	p, ok := s.TakePending("U1")
	if !ok {
		t.Fatal("TakePending() = false, want stored entry")
	}
	if p.Category != knowledge.ByTerm || p.Question != "ค่าเทอมเท่าไหร่" {
		t.Errorf("Pending = %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}

	// Second take must miss: the entry is consumed
	if _, ok := s.TakePending("U1"); ok {
		t.Error("TakePending() = true on second call, entry must be consumed")
	}
}

func TestTakePendingUnknownUser(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	defer s.Stop()

	if _, ok := s.TakePending("UNKNOWN"); ok {
		t.Error("TakePending() = true for unknown user")
	}
}

func TestSetPendingReplaces(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	defer s.Stop()

	s.SetPending("U1", Pending{Category: knowledge.ByTerm, Question: "เก่า"})
	s.SetPending("U1", Pending{Category: knowledge.BySemester, Question: "ใหม่"})

	p, ok := s.TakePending("U1")
	if !ok {
		t.Fatal("TakePending() = false")
	}
	if p.Question != "ใหม่" || p.Category != knowledge.BySemester {
		t.Errorf("Pending = %+v, want the replacement", p)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestUsersAreIsolated(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	defer s.Stop()

	s.SetPending("U1", Pending{Category: knowledge.ByTerm, Question: "q1"})
	s.SetPending("U2", Pending{Category: knowledge.BySemester, Question: "q2"})

	p1, ok1 := s.TakePending("U1")
	p2, ok2 := s.TakePending("U2")
	if !ok1 || !ok2 {
		t.Fatal("TakePending() missed for isolated users")
	}
	if p1.Question != "q1" || p2.Question != "q2" {
		t.Errorf("p1 = %+v, p2 = %+v", p1, p2)
	}
}

func TestEmptyUserIDIgnored(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	defer s.Stop()

	s.SetPending("", Pending{Category: knowledge.ByTerm, Question: "q"})
	if s.Len() != 0 {
		t.Error("empty user ID was stored")
	}
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(20 * time.Millisecond)
	defer s.Stop()

	s.SetPending("U1", Pending{Category: knowledge.ByTerm, Question: "q"})
	time.Sleep(40 * time.Millisecond)

	if _, ok := s.TakePending("U1"); ok {
		t.Error("TakePending() = true after TTL expiry")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	defer s.Stop()

	s.SetPending("U1", Pending{
		Category:  knowledge.ByTerm,
		Question:  "q",
		CreatedAt: time.Now().Add(-24 * time.Hour),
	})
	if _, ok := s.TakePending("U1"); !ok {
		t.Error("TakePending() = false with zero TTL, entries must never expire")
	}
}

func TestConcurrentTakeConsumesOnce(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(0)
	defer s.Stop()

	s.SetPending("U1", Pending{Category: knowledge.ByTerm, Question: "q"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.TakePending("U1"); ok {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if taken != 1 {
		t.Errorf("entry taken %d times concurrently, want exactly 1", taken)
	}
}

func TestStopIdempotent(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(time.Minute)
	s.Stop()
	s.Stop() // Must not panic
}
