// Package main provides the FAQ bot server entry point.
package main

import (
	"context"
	"sync"
	"time"

	"github.com/peejay10/line-llama-chatbot/internal/config"
	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
	"github.com/peejay10/line-llama-chatbot/internal/logger"
	"github.com/peejay10/line-llama-chatbot/internal/matcher"
	"github.com/peejay10/line-llama-chatbot/internal/storage"
)

const (
	// embeddingPruneInterval is how often stale cached embeddings are removed.
	embeddingPruneInterval = 24 * time.Hour

	// embeddingMaxAge is how long a cached embedding survives after it
	// was written. Cache hits do not extend it, so even a question that
	// stays in the workbook is re-embedded once the age is reached,
	// picking up any upstream model changes.
	embeddingMaxAge = 30 * 24 * time.Hour
)

// startJobs launches the background goroutines and returns a channel
// closed when all of them have stopped.
func startJobs(
	ctx context.Context,
	ks *knowledge.Store,
	match *matcher.Matcher,
	db *storage.DB,
	cfg *config.Config,
	log *logger.Logger,
) <-chan struct{} {
	var wg sync.WaitGroup

	if cfg.RefreshInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("Panic in knowledge refresh goroutine")
				}
			}()
			refreshKnowledge(ctx, ks, match, cfg.RefreshInterval, log)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in embedding prune goroutine")
			}
		}()
		pruneEmbeddings(ctx, db, log)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// refreshKnowledge reloads the knowledge base at the configured
// interval. A failed refresh keeps the current snapshot, so the bot
// keeps answering from possibly stale data rather than going dark.
func refreshKnowledge(ctx context.Context, ks *knowledge.Store, match *matcher.Matcher, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loadCtx, cancel := context.WithTimeout(ctx, config.KnowledgeLoad)
			snap, err := ks.Refresh(loadCtx)
			if err != nil {
				log.WithError(err).Error("Periodic knowledge refresh failed")
				cancel()
				continue
			}
			if err := match.Warmup(loadCtx, snap); err != nil {
				log.WithError(err).Warn("Warmup after refresh failed")
			}
			cancel()
			log.WithField("records", snap.Count()).Info("Knowledge base refreshed")
		}
	}
}

// pruneEmbeddings periodically drops cached embeddings that have not
// been refreshed recently.
func pruneEmbeddings(ctx context.Context, db *storage.DB, log *logger.Logger) {
	ticker := time.NewTicker(embeddingPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := db.PruneEmbeddings(ctx, embeddingMaxAge)
			if err != nil {
				log.WithError(err).Error("Failed to prune embedding cache")
				continue
			}
			if deleted > 0 {
				log.WithField("deleted", deleted).Info("Pruned stale cached embeddings")
			}
		}
	}
}
