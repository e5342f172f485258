// Package session tracks per-user disambiguation state: when a user
// matches a ByTerm or BySemester question, the bot asks a follow-up and
// remembers the matched question until the next message arrives.
package session

import (
	"sync"
	"time"

	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
)

// Pending is a stored disambiguation: the category and matched question
// awaiting the user's term or semester choice.
type Pending struct {
	Category  knowledge.Category
	Question  string
	CreatedAt time.Time
}

// Store holds at most one Pending per user.
type Store interface {
	// SetPending stores a pending disambiguation, replacing any
	// previous one for the same user.
	SetPending(userID string, p Pending)
	// TakePending atomically removes and returns the user's pending
	// disambiguation. The second return is false when none exists.
	TakePending(userID string) (Pending, bool)
}

// MemoryStore is an in-memory Store. With a zero TTL entries never
// expire; each user's next message always consumes them. A positive TTL
// starts a janitor goroutine that drops stale entries.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]Pending
	ttl     time.Duration
	stopCh  chan struct{}
}

// NewMemoryStore creates a MemoryStore. ttl of 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		pending: make(map[string]Pending),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

// SetPending implements Store.
func (s *MemoryStore) SetPending(userID string, p Pending) {
	if userID == "" {
		return
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.pending[userID] = p
	s.mu.Unlock()
}

// TakePending implements Store. Expired entries are treated as absent.
func (s *MemoryStore) TakePending(userID string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[userID]
	if !ok {
		return Pending{}, false
	}
	delete(s.pending, userID)

	if s.ttl > 0 && time.Since(p.CreatedAt) > s.ttl {
		return Pending{}, false
	}
	return p, true
}

// Len returns the number of users with pending disambiguations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// cleanupLoop periodically removes expired entries.
func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for userID, p := range s.pending {
				if p.CreatedAt.Before(cutoff) {
					delete(s.pending, userID)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Stop terminates the janitor goroutine, if any.
// Safe to call multiple times.
func (s *MemoryStore) Stop() {
	select {
	case <-s.stopCh:
		// Already stopped
	default:
		close(s.stopCh)
	}
}
