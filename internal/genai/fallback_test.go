package genai

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/peejay10/line-llama-chatbot/internal/logger"
)

type stubGenerator struct {
	provider Provider
	answer   string
	err      error
	calls    int
}

func (s *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubGenerator) Provider() Provider { return s.provider }

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func fallbackTestLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard, logger.Options{})
}

func TestFallbackGeneratorPrimarySucceeds(t *testing.T) {
	t.Parallel()
	primary := &stubGenerator{provider: ProviderOllama, answer: "คำตอบจากโมเดล"}
	secondary := &stubGenerator{provider: ProviderGemini, answer: "unused"}

	fg, err := NewFallbackGenerator([]Generator{primary, secondary}, fastRetry(), fallbackTestLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := fg.Generate(context.Background(), "คำถาม")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "คำตอบจากโมเดล" {
		t.Errorf("answer = %q", answer)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestFallbackGeneratorFallsThrough(t *testing.T) {
	t.Parallel()
	primary := &stubGenerator{provider: ProviderOllama, err: errors.New("connection refused")}
	secondary := &stubGenerator{provider: ProviderGemini, answer: "สำรองตอบ"}

	fg, err := NewFallbackGenerator([]Generator{primary, secondary}, fastRetry(), fallbackTestLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}

	answer, err := fg.Generate(context.Background(), "คำถาม")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "สำรองตอบ" {
		t.Errorf("answer = %q", answer)
	}
	// Transient error, so the primary was retried before falling back
	if primary.calls != fastRetry().MaxAttempts {
		t.Errorf("primary calls = %d, want %d", primary.calls, fastRetry().MaxAttempts)
	}
}

func TestFallbackGeneratorPermanentErrorSkipsRetry(t *testing.T) {
	t.Parallel()
	primary := &stubGenerator{provider: ProviderOllama, err: errors.New("401 unauthorized")}
	secondary := &stubGenerator{provider: ProviderGemini, answer: "ok"}

	fg, err := NewFallbackGenerator([]Generator{primary, secondary}, fastRetry(), fallbackTestLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := fg.Generate(context.Background(), "q"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1 for permanent error", primary.calls)
	}
}

func TestFallbackGeneratorAllFail(t *testing.T) {
	t.Parallel()
	primary := &stubGenerator{provider: ProviderOllama, err: errors.New("503 unavailable")}
	secondary := &stubGenerator{provider: ProviderGemini, err: errors.New("quota exceeded")}

	fg, err := NewFallbackGenerator([]Generator{primary, secondary}, fastRetry(), fallbackTestLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := fg.Generate(context.Background(), "q"); err == nil {
		t.Fatal("Generate() succeeded with all providers failing")
	}
}

func TestNewFallbackGeneratorRequiresProvider(t *testing.T) {
	t.Parallel()
	if _, err := NewFallbackGenerator(nil, fastRetry(), fallbackTestLogger(), nil); err == nil {
		t.Fatal("NewFallbackGenerator() succeeded without providers")
	}
}
