package matcher

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
)

// vecEncoder maps texts to fixed vectors. Unknown texts get a vector
// orthogonal to everything else.
type vecEncoder struct {
	mu    sync.Mutex
	vecs  map[string][]float32
	calls int
	err   error
}

func (e *vecEncoder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vecs[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *vecEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *vecEncoder) Model() string { return "test-model" }

const questionCol = "คำถาม"

func snapshotWith(questions ...string) *knowledge.Snapshot {
	recs := make([]knowledge.Record, 0, len(questions))
	for _, q := range questions {
		recs = append(recs, knowledge.Record{questionCol: q, "คำตอบทั่วไป": "คำตอบของ " + q})
	}
	return knowledge.NewSnapshot(map[knowledge.Category][]knowledge.Record{
		knowledge.General: recs,
	})
}

func TestFindBestMatch(t *testing.T) {
	t.Parallel()

	enc := &vecEncoder{vecs: map[string][]float32{
		"ค่าเทอมเท่าไหร่":   {1, 0, 0},
		"เปิดเทอมเมื่อไหร่": {0, 1, 0},
		"ค่าเทอมแพงไหม":     {0.9, 0.1, 0}, // Close to the first question
	}}
	m := New(enc, questionCol, 0.7, nil)
	snap := snapshotWith("ค่าเทอมเท่าไหร่", "เปิดเทอมเมื่อไหร่")

	match, err := m.FindBestMatch(context.Background(), "ค่าเทอมแพงไหม", snap, knowledge.General)
	if err != nil {
		t.Fatalf("FindBestMatch() error = %v", err)
	}
	if match == nil {
		t.Fatal("FindBestMatch() = nil, want a hit")
	}
	if got := match.Record.Question(questionCol); got != "ค่าเทอมเท่าไหร่" {
		t.Errorf("matched %q, want closest question", got)
	}
	if match.Score <= 0.7 {
		t.Errorf("Score = %v, want > 0.7", match.Score)
	}
}

func TestFindBestMatchBelowThreshold(t *testing.T) {
	t.Parallel()

	enc := &vecEncoder{vecs: map[string][]float32{
		"คำถามในคลัง":   {1, 0, 0},
		"คำถามไม่เกี่ยว": {0, 1, 0}, // Orthogonal, similarity 0
	}}
	m := New(enc, questionCol, 0.7, nil)
	snap := snapshotWith("คำถามในคลัง")

	match, err := m.FindBestMatch(context.Background(), "คำถามไม่เกี่ยว", snap, knowledge.General)
	if err != nil {
		t.Fatalf("FindBestMatch() error = %v", err)
	}
	if match != nil {
		t.Errorf("FindBestMatch() = %+v, want nil below threshold", match)
	}
}

func TestFindBestMatchThresholdIsStrict(t *testing.T) {
	t.Parallel()

	// Identical direction scaled differently still has cosine 1;
	// use a vector pair engineered to score exactly at the threshold.
	enc := &vecEncoder{vecs: map[string][]float32{
		"คำถาม": {1, 0, 0},
		"query": {0.7, float32(math.Sqrt(1 - 0.49)), 0}, // cosine exactly 0.7
	}}
	m := New(enc, questionCol, 0.7, nil)
	snap := snapshotWith("คำถาม")

	match, err := m.FindBestMatch(context.Background(), "query", snap, knowledge.General)
	if err != nil {
		t.Fatalf("FindBestMatch() error = %v", err)
	}
	if match != nil {
		t.Errorf("score equal to threshold must not match, got %+v", match)
	}
}

func TestFindBestMatchEmptyCategory(t *testing.T) {
	t.Parallel()
	enc := &vecEncoder{}
	m := New(enc, questionCol, 0.7, nil)
	snap := snapshotWith()

	match, err := m.FindBestMatch(context.Background(), "อะไรก็ได้", snap, knowledge.ByTerm)
	if err != nil {
		t.Fatalf("FindBestMatch() error = %v", err)
	}
	if match != nil {
		t.Error("FindBestMatch() != nil for empty category")
	}
	if enc.calls != 0 {
		t.Errorf("encoder called %d times for empty category, want 0", enc.calls)
	}
}

func TestFindBestMatchStableOnTies(t *testing.T) {
	t.Parallel()
	enc := &vecEncoder{vecs: map[string][]float32{
		"คำถามแรก": {1, 0, 0},
		"คำถามสอง": {1, 0, 0}, // Identical vector, tie
		"query":    {1, 0, 0},
	}}
	m := New(enc, questionCol, 0.7, nil)
	snap := snapshotWith("คำถามแรก", "คำถามสอง")

	for i := 0; i < 5; i++ {
		match, err := m.FindBestMatch(context.Background(), "query", snap, knowledge.General)
		if err != nil {
			t.Fatal(err)
		}
		if match == nil {
			t.Fatal("want a hit")
		}
		if got := match.Record.Question(questionCol); got != "คำถามแรก" {
			t.Fatalf("tie resolved to %q, want earliest record", got)
		}
	}
}

func TestVectorCachePerSnapshot(t *testing.T) {
	t.Parallel()
	enc := &vecEncoder{vecs: map[string][]float32{
		"q1": {1, 0, 0}, "q2": {0, 1, 0}, "query": {1, 0, 0},
	}}
	m := New(enc, questionCol, 0.5, nil)
	snap := snapshotWith("q1", "q2")

	if _, err := m.FindBestMatch(context.Background(), "query", snap, knowledge.General); err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := enc.calls // 1 query + 2 questions

	if _, err := m.FindBestMatch(context.Background(), "query", snap, knowledge.General); err != nil {
		t.Fatal(err)
	}
	// Only the query is re-embedded; question vectors come from cache
	if enc.calls != callsAfterFirst+1 {
		t.Errorf("calls = %d after cached lookup, want %d", enc.calls, callsAfterFirst+1)
	}

	// A new snapshot invalidates the cache
	snap2 := snapshotWith("q1", "q2")
	if _, err := m.FindBestMatch(context.Background(), "query", snap2, knowledge.General); err != nil {
		t.Fatal(err)
	}
	if enc.calls != callsAfterFirst+1+3 {
		t.Errorf("calls = %d after new snapshot, want questions re-embedded", enc.calls)
	}
}

func TestFindBestMatchEncoderError(t *testing.T) {
	t.Parallel()
	enc := &vecEncoder{err: errors.New("encoder down")}
	m := New(enc, questionCol, 0.7, nil)
	snap := snapshotWith("q1")

	if _, err := m.FindBestMatch(context.Background(), "query", snap, knowledge.General); err == nil {
		t.Error("FindBestMatch() succeeded with failing encoder")
	}
}

func TestFindBestMatchSkipsBlankQuestions(t *testing.T) {
	t.Parallel()
	enc := &vecEncoder{vecs: map[string][]float32{
		"คำถามจริง": {1, 0, 0},
		"query":     {1, 0, 0},
	}}
	m := New(enc, questionCol, 0.7, nil)

	// The blank-question record sits before the real one; the match must
	// still resolve to the record it was indexed from.
	snap := knowledge.NewSnapshot(map[knowledge.Category][]knowledge.Record{
		knowledge.General: {
			{"คำตอบทั่วไป": "ไม่มีคำถาม"},
			{questionCol: "คำถามจริง", "คำตอบทั่วไป": "คำตอบจริง"},
		},
	})

	match, err := m.FindBestMatch(context.Background(), "query", snap, knowledge.General)
	if err != nil {
		t.Fatalf("FindBestMatch() error = %v", err)
	}
	if match == nil {
		t.Fatal("FindBestMatch() = nil, want a hit")
	}
	if got := match.Record.Question(questionCol); got != "คำถามจริง" {
		t.Errorf("matched record has question %q, want the indexed one", got)
	}
	if answer, _ := match.Record.Answer("คำตอบทั่วไป"); answer != "คำตอบจริง" {
		t.Errorf("matched record has answer %q, want answer of the indexed record", answer)
	}
}

func TestFindBestMatchAllQuestionsBlank(t *testing.T) {
	t.Parallel()
	enc := &vecEncoder{}
	m := New(enc, questionCol, 0.7, nil)
	snap := knowledge.NewSnapshot(map[knowledge.Category][]knowledge.Record{
		knowledge.General: {{"คำตอบทั่วไป": "ไม่มีคำถาม"}},
	})

	match, err := m.FindBestMatch(context.Background(), "query", snap, knowledge.General)
	if err != nil {
		t.Fatalf("FindBestMatch() error = %v", err)
	}
	if match != nil {
		t.Errorf("FindBestMatch() = %+v, want nil when nothing is indexed", match)
	}
}
