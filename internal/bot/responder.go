// Package bot implements the conversation logic: semantic lookup over
// the knowledge base, the two-turn term/semester disambiguation flow,
// and the generative fallback for questions outside the knowledge base.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
	"github.com/peejay10/line-llama-chatbot/internal/genai"
	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
	"github.com/peejay10/line-llama-chatbot/internal/logger"
	"github.com/peejay10/line-llama-chatbot/internal/matcher"
	"github.com/peejay10/line-llama-chatbot/internal/metrics"
	"github.com/peejay10/line-llama-chatbot/internal/ratelimit"
	"github.com/peejay10/line-llama-chatbot/internal/session"
)

// Columns names the workbook columns the responder reads from.
type Columns struct {
	Question      string // Canonical question column, e.g. "คำถาม"
	GeneralAnswer string // Answer column of General records, e.g. "คำตอบทั่วไป"
	TermPrefix    string // Per-term column prefix, e.g. "เทอม "
}

// Responder turns one inbound user message into one reply text.
type Responder struct {
	knowledge       *knowledge.Store
	matcher         *matcher.Matcher
	sessions        session.Store
	generator       genai.Generator
	quota           *ratelimit.FallbackQuota
	columns         Columns
	fallbackTimeout time.Duration
	log             *logger.Logger
	metrics         *metrics.Metrics
}

// New creates a Responder. quota and mets may be nil; a nil quota means
// fallback generation is never throttled. A zero fallbackTimeout leaves
// generation bounded only by the caller's context.
func New(
	ks *knowledge.Store,
	m *matcher.Matcher,
	sessions session.Store,
	generator genai.Generator,
	quota *ratelimit.FallbackQuota,
	columns Columns,
	fallbackTimeout time.Duration,
	log *logger.Logger,
	mets *metrics.Metrics,
) *Responder {
	return &Responder{
		knowledge:       ks,
		matcher:         m,
		sessions:        sessions,
		generator:       generator,
		quota:           quota,
		columns:         columns,
		fallbackTimeout: fallbackTimeout,
		log:             log.WithModule("bot"),
		metrics:         mets,
	}
}

// Respond produces the reply for one text message.
// Empty messages yield errors.ErrInvalidInput.
func (r *Responder) Respond(ctx context.Context, userID, text string) (string, error) {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return "", fmt.Errorf("respond: %w", apperrors.ErrInvalidInput)
	}

	// A pending disambiguation always consumes the next message,
	// whatever it says.
	if pending, ok := r.sessions.TakePending(userID); ok {
		return r.resolvePending(pending, text), nil
	}

	snap := r.knowledge.Current()
	if snap == nil {
		r.log.Warn("no knowledge snapshot available, using generative fallback")
		return r.generate(ctx, userID, text)
	}

	for _, category := range knowledge.SearchOrder {
		match, err := r.matcher.FindBestMatch(ctx, text, snap, category)
		if err != nil {
			// Embedding outage. The generative chain may still be up.
			r.log.WithError(err).WithField("category", category.String()).Warn("semantic match failed, using generative fallback")
			break
		}
		if match == nil {
			continue
		}
		return r.answerMatch(userID, match), nil
	}

	return r.generate(ctx, userID, text)
}

// answerMatch turns a confident hit into a reply. General hits answer
// immediately; ByTerm and BySemester hits open a disambiguation.
func (r *Responder) answerMatch(userID string, match *matcher.Match) string {
	question := match.Record.Question(r.columns.Question)

	switch match.Category {
	case knowledge.General:
		answer, ok := match.Record.Answer(r.columns.GeneralAnswer)
		if !ok {
			return MsgNoGeneralAnswer
		}
		return answer

	case knowledge.ByTerm:
		r.sessions.SetPending(userID, session.Pending{
			Category: knowledge.ByTerm,
			Question: question,
		})
		return MsgChooseTerm

	case knowledge.BySemester:
		r.sessions.SetPending(userID, session.Pending{
			Category: knowledge.BySemester,
			Question: question,
		})
		return MsgChooseSemester

	default:
		return MsgCannotAnswer
	}
}

// resolvePending answers the second turn of a disambiguation. The
// user's message selects an answer column of the remembered record.
func (r *Responder) resolvePending(pending session.Pending, text string) string {
	notFound := MsgTermNotFound
	column := r.columns.TermPrefix + text
	if pending.Category == knowledge.BySemester {
		notFound = MsgSemesterNotFound
		column = text
	}

	record, ok := r.findByQuestion(pending.Category, pending.Question)
	if !ok {
		// The snapshot was refreshed and the question disappeared
		return notFound
	}
	answer, ok := record.Answer(column)
	if !ok {
		return notFound
	}
	return answer
}

// findByQuestion locates a record by its exact question text. Pending
// state stores the question rather than the record so a refresh between
// the two turns cannot serve stale answers.
func (r *Responder) findByQuestion(category knowledge.Category, question string) (knowledge.Record, bool) {
	snap := r.knowledge.Current()
	for _, rec := range snap.Category(category) {
		if rec.Question(r.columns.Question) == question {
			return rec, true
		}
	}
	return nil, false
}

// generate answers a question the knowledge base cannot, through the
// generative fallback chain. Failures degrade to fixed apologies so the
// user always gets a reply.
func (r *Responder) generate(ctx context.Context, userID, text string) (string, error) {
	if r.quota != nil && !r.quota.Allow(userID) {
		if r.metrics != nil {
			r.metrics.RecordFallback(string(r.generator.Provider()), "quota_exceeded", 0)
		}
		return MsgQuotaExceeded, nil
	}

	if r.fallbackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fallbackTimeout)
		defer cancel()
	}

	answer, err := r.generator.Generate(ctx, text)
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("generative fallback failed")
		return MsgModelUnavailable, nil
	}
	if strings.TrimSpace(answer) == "" {
		return MsgCannotAnswer, nil
	}
	return answer, nil
}
