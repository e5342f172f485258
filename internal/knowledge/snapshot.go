package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
	"github.com/peejay10/line-llama-chatbot/internal/logger"
	"github.com/peejay10/line-llama-chatbot/internal/metrics"
)

// Snapshot is an immutable view of the full knowledge base at one load.
// Once published it is never mutated; readers can hold it without locks.
type Snapshot struct {
	ID       uuid.UUID
	LoadedAt time.Time
	Records  map[Category][]Record
}

// NewSnapshot builds a snapshot from per-category records.
func NewSnapshot(records map[Category][]Record) *Snapshot {
	return &Snapshot{
		ID:       uuid.New(),
		LoadedAt: time.Now(),
		Records:  records,
	}
}

// Category returns the records of one category. Nil snapshot or missing
// category yields an empty slice.
func (s *Snapshot) Category(c Category) []Record {
	if s == nil {
		return nil
	}
	return s.Records[c]
}

// Count returns the total number of records across all categories.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, recs := range s.Records {
		n += len(recs)
	}
	return n
}

// Source loads a full snapshot from some backing store.
type Source interface {
	// Load reads the complete workbook. Implementations return a
	// SourceError wrapping the underlying cause on failure.
	Load(ctx context.Context) (*Snapshot, error)
	// Name identifies the source in logs and metrics.
	Name() string
}

// Archiver persists the last successfully loaded snapshot so the bot can
// start when the primary source is unreachable.
type Archiver interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// Store publishes snapshots atomically and coordinates refreshes.
// Reads never block on a refresh: Current returns the published pointer
// under a read lock while Refresh builds the replacement off to the side.
type Store struct {
	source   Source
	archiver Archiver
	log      *logger.Logger
	metrics  *metrics.Metrics

	group singleflight.Group

	mu      sync.RWMutex
	current *Snapshot
}

// NewStore creates a Store backed by the given source.
// archiver and m may be nil.
func NewStore(source Source, archiver Archiver, log *logger.Logger, m *metrics.Metrics) *Store {
	return &Store{
		source:   source,
		archiver: archiver,
		log:      log.WithModule("knowledge"),
		metrics:  m,
	}
}

// Current returns the published snapshot, or nil if no load has
// succeeded yet.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Ready reports whether a snapshot is available to serve from.
func (s *Store) Ready() bool {
	return s.Current() != nil
}

// Refresh loads a fresh snapshot from the source and publishes it.
// Concurrent calls are collapsed into a single load; every caller gets
// the same result. The previous snapshot stays published on failure.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, shared := s.group.Do("refresh", func() (interface{}, error) {
		return s.refresh(ctx)
	})
	if shared {
		s.log.Debug("refresh deduplicated by singleflight")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (s *Store) refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.source.Load(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordKnowledgeRefresh(s.source.Name(), "error")
		}
		s.log.WithError(err).Error("knowledge refresh failed")
		return nil, apperrors.NewSourceError(s.source.Name(), "", err)
	}

	s.publish(snap)
	if s.metrics != nil {
		s.metrics.RecordKnowledgeRefresh(s.source.Name(), "success")
	}
	s.log.WithFields(map[string]any{
		"snapshot_id": snap.ID.String(),
		"records":     snap.Count(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("knowledge refreshed")

	if s.archiver != nil {
		if err := s.archiver.SaveSnapshot(ctx, snap); err != nil {
			s.log.WithError(err).Warn("failed to archive snapshot")
		}
	}
	return snap, nil
}

// RestoreArchived publishes the last archived snapshot, if one exists.
// Used at startup when the primary source is unreachable.
func (s *Store) RestoreArchived(ctx context.Context) error {
	if s.archiver == nil {
		return fmt.Errorf("restore: %w", apperrors.ErrNoSnapshot)
	}
	snap, err := s.archiver.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("restore archived snapshot: %w", err)
	}
	s.publish(snap)
	if s.metrics != nil {
		s.metrics.RecordKnowledgeRefresh("sqlite", "success")
	}
	s.log.WithFields(map[string]any{
		"snapshot_id": snap.ID.String(),
		"loaded_at":   snap.LoadedAt.Format(time.RFC3339),
		"records":     snap.Count(),
	}).Warn("serving archived knowledge snapshot")
	return nil
}

func (s *Store) publish(snap *Snapshot) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	if s.metrics != nil {
		for _, c := range SearchOrder {
			s.metrics.SetKnowledgeRecords(c.String(), len(snap.Category(c)))
		}
	}
}
