// Package matcher ranks knowledge base questions against an incoming
// message by cosine similarity of their embeddings, using chromem-go
// as the in-memory vector store.
package matcher

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/peejay10/line-llama-chatbot/internal/genai"
	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
	"github.com/peejay10/line-llama-chatbot/internal/metrics"
)

// embedConcurrency bounds concurrent embedding calls when indexing.
const embedConcurrency = 4

// Match is a confident knowledge base hit.
type Match struct {
	Record   knowledge.Record
	Category knowledge.Category
	Score    float64
}

// Matcher finds the best matching record for a query.
// Question vectors live in per-category chromem collections built once
// per snapshot; the store is rebuilt when a new snapshot is published.
type Matcher struct {
	encoder        genai.Encoder
	questionColumn string
	threshold      float64
	metrics        *metrics.Metrics

	mu          sync.Mutex
	snapshotID  uuid.UUID
	db          *chromem.DB
	collections map[knowledge.Category]*chromem.Collection
}

// New creates a Matcher. Scores must be strictly greater than threshold
// to count as a hit. m may be nil.
func New(encoder genai.Encoder, questionColumn string, threshold float64, m *metrics.Metrics) *Matcher {
	return &Matcher{
		encoder:        encoder,
		questionColumn: questionColumn,
		threshold:      threshold,
		metrics:        m,
	}
}

// embedText adapts the encoder to chromem's embedding function. The
// collections are built from precomputed vectors and queried by vector,
// so chromem only falls back to this for documents added without one.
func (m *Matcher) embedText(ctx context.Context, text string) ([]float32, error) {
	return m.encoder.Embed(ctx, text)
}

// FindBestMatch returns the best-scoring record of one category, or nil
// when no record clears the threshold. Ties keep the earliest record,
// so results are stable across calls on the same snapshot.
func (m *Matcher) FindBestMatch(ctx context.Context, query string, snap *knowledge.Snapshot, category knowledge.Category) (*Match, error) {
	records := snap.Category(category)
	if len(records) == 0 {
		if m.metrics != nil {
			m.metrics.RecordMatch(category.String(), "miss")
		}
		return nil, nil
	}

	queryVec, err := m.encoder.Embed(ctx, query)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordMatch(category.String(), "error")
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	coll, err := m.categoryCollection(ctx, snap, category)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordMatch(category.String(), "error")
		}
		return nil, fmt.Errorf("embed questions: %w", err)
	}

	count := coll.Count()
	if count == 0 {
		if m.metrics != nil {
			m.metrics.RecordMatch(category.String(), "miss")
		}
		return nil, nil
	}

	// Fetch every document; the threshold and tie-break are applied
	// over the full score set, not chromem's result ordering.
	results, err := coll.QueryEmbedding(ctx, queryVec, count, nil, nil)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordMatch(category.String(), "error")
		}
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	bestIdx := -1
	bestScore := math.Inf(-1)
	for _, res := range results {
		idx, err := strconv.Atoi(res.Metadata["idx"])
		if err != nil {
			continue
		}
		score := float64(res.Similarity)
		if score > bestScore || (score == bestScore && idx < bestIdx) {
			bestScore = score
			bestIdx = idx
		}
	}

	if m.metrics != nil && bestIdx >= 0 {
		m.metrics.RecordBestScore(bestScore)
	}

	if bestIdx < 0 || bestScore <= m.threshold {
		if m.metrics != nil {
			m.metrics.RecordMatch(category.String(), "miss")
		}
		return nil, nil
	}

	if m.metrics != nil {
		m.metrics.RecordMatch(category.String(), "hit")
	}
	return &Match{
		Record:   records[bestIdx],
		Category: category,
		Score:    bestScore,
	}, nil
}

// Warmup indexes the question vectors of every category of a snapshot.
// Called at startup and after each refresh so user requests never pay
// the batch embedding cost.
func (m *Matcher) Warmup(ctx context.Context, snap *knowledge.Snapshot) error {
	if snap == nil {
		return nil
	}
	for _, c := range knowledge.SearchOrder {
		if _, err := m.categoryCollection(ctx, snap, c); err != nil {
			return fmt.Errorf("warmup %s: %w", c, err)
		}
	}
	return nil
}

// categoryCollection returns the chromem collection holding one
// category's question vectors, building it on first use per snapshot.
// Question embeddings are computed through the encoder in a single
// batch so the persistent embedding cache is used, then stored on the
// documents directly.
func (m *Matcher) categoryCollection(ctx context.Context, snap *knowledge.Snapshot, category knowledge.Category) (*chromem.Collection, error) {
	m.mu.Lock()
	if m.snapshotID != snap.ID {
		m.snapshotID = snap.ID
		m.db = chromem.NewDB()
		m.collections = make(map[knowledge.Category]*chromem.Collection, len(knowledge.SearchOrder))
	}
	if coll, ok := m.collections[category]; ok {
		m.mu.Unlock()
		return coll, nil
	}
	m.mu.Unlock()

	records := snap.Category(category)
	indices := make([]int, 0, len(records))
	questions := make([]string, 0, len(records))
	for i, rec := range records {
		q := rec.Question(m.questionColumn)
		if q == "" {
			continue
		}
		indices = append(indices, i)
		questions = append(questions, q)
	}

	embedded, err := m.encoder.EmbedBatch(ctx, questions)
	if err != nil {
		return nil, err
	}

	docs := make([]chromem.Document, len(embedded))
	for i, vec := range embedded {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(indices[i]),
			Content:   questions[i],
			Embedding: vec,
			Metadata:  map[string]string{"idx": strconv.Itoa(indices[i])},
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A refresh may have swapped the snapshot while we were embedding.
	// Serve this call from a throwaway store and let the next call
	// index against the current snapshot.
	target := m.db
	current := m.snapshotID == snap.ID
	if !current {
		target = chromem.NewDB()
	}
	coll, err := target.GetOrCreateCollection(category.String(), nil, m.embedText)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", category, err)
	}
	if len(docs) > 0 {
		if err := coll.AddDocuments(ctx, docs, embedConcurrency); err != nil {
			return nil, fmt.Errorf("index questions %s: %w", category, err)
		}
	}
	if current {
		m.collections[category] = coll
	}
	return coll, nil
}
