// Package main provides the FAQ bot server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/peejay10/line-llama-chatbot/internal/bot"
	"github.com/peejay10/line-llama-chatbot/internal/config"
	"github.com/peejay10/line-llama-chatbot/internal/genai"
	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
	"github.com/peejay10/line-llama-chatbot/internal/logger"
	"github.com/peejay10/line-llama-chatbot/internal/matcher"
	"github.com/peejay10/line-llama-chatbot/internal/metrics"
	"github.com/peejay10/line-llama-chatbot/internal/objstore"
	"github.com/peejay10/line-llama-chatbot/internal/ratelimit"
	"github.com/peejay10/line-llama-chatbot/internal/sentry"
	"github.com/peejay10/line-llama-chatbot/internal/session"
	"github.com/peejay10/line-llama-chatbot/internal/storage"
	"github.com/peejay10/line-llama-chatbot/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithOptions(cfg.LogLevel, logger.Options{
		BetterStackToken:    cfg.LogsToken,
		BetterStackEndpoint: cfg.LogsEndpoint,
	})
	log.Info("Starting FAQ bot server")

	// Initialize error tracking
	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.Environment,
	}); err != nil {
		log.WithError(err).Warn("Failed to initialize Sentry, error tracking disabled")
	} else if sentry.IsEnabled() {
		log.Info("Sentry error tracking enabled")
	}
	defer sentry.Flush(2 * time.Second)

	// Open local cache database (snapshot archive + embedding cache)
	db, err := storage.New(cfg.SQLitePath())
	if err != nil {
		log.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	// Create Prometheus registry with standard collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())
	m := metrics.New(registry)
	log.Info("Metrics initialized")

	// Pick the knowledge source: bucket when configured, else local directory
	mapping := knowledge.ColumnMapping{QuestionColumn: cfg.QuestionColumn}
	var source knowledge.Source
	if cfg.Bucket.Enabled() {
		client, err := objstore.New(context.Background(), objstore.Config{
			Endpoint:    cfg.Bucket.Endpoint,
			AccessKeyID: cfg.Bucket.AccessKeyID,
			SecretKey:   cfg.Bucket.SecretKey,
			BucketName:  cfg.Bucket.Name,
		})
		if err != nil {
			log.WithError(err).Error("Failed to create object storage client")
			os.Exit(1)
		}
		source = knowledge.NewBucketSource(client, cfg.Bucket.Prefix, mapping)
		log.WithField("bucket", cfg.Bucket.Name).Info("Using bucket knowledge source")
	} else {
		source = knowledge.NewDirSource(cfg.KnowledgeDir, mapping)
		log.WithField("dir", cfg.KnowledgeDir).Info("Using directory knowledge source")
	}

	ks := knowledge.NewStore(source, db, log, m)

	// Embedding encoder with a persistent cache in SQLite
	encoder := genai.NewCachedEncoder(genai.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingModel), db, m)
	match := matcher.New(encoder, cfg.QuestionColumn, cfg.MatchThreshold, m)

	// Fallback generation chain: Ollama first, Gemini second when configured
	var providers []genai.Generator
	ollama, err := genai.NewOllamaGenerator(cfg.OllamaBaseURL, cfg.OllamaModel)
	if err != nil {
		log.WithError(err).Error("Failed to create Ollama generator")
		os.Exit(1)
	}
	providers = append(providers, ollama)
	if cfg.HasGeminiFallback() {
		gemini, err := genai.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiGenModel)
		if err != nil {
			log.WithError(err).Warn("Failed to create Gemini generator, fallback chain is Ollama only")
		} else {
			providers = append(providers, gemini)
		}
	}
	generator, err := genai.NewFallbackGenerator(providers, genai.DefaultRetryConfig(), log, m)
	if err != nil {
		log.WithError(err).Error("Failed to create fallback generator")
		os.Exit(1)
	}
	log.WithField("providers", len(providers)).Info("Fallback generator created")

	quota := ratelimit.NewFallbackQuota(cfg.Bot.LLMBurstTokens, cfg.Bot.LLMRefillPerHour, 5*time.Minute, m)
	defer quota.Stop()

	sessions := session.NewMemoryStore(cfg.PendingTTL)
	defer sessions.Stop()

	responder := bot.New(ks, match, sessions, generator, quota, bot.Columns{
		Question:      cfg.QuestionColumn,
		GeneralAnswer: cfg.GeneralAnswerCol,
		TermPrefix:    cfg.TermColumnPrefix,
	}, cfg.FallbackTimeout, log, m)

	webhookHandler, err := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		ChannelToken:  cfg.LineChannelToken,
		BotConfig:     &cfg.Bot,
		Responder:     responder,
		Metrics:       m,
		Logger:        log,
	})
	if err != nil {
		log.WithError(err).Error("Failed to create webhook handler")
		os.Exit(1)
	}
	log.Info("Webhook handler created")

	// Load the knowledge base before serving. A failed load falls back
	// to the last archived snapshot so a bad deploy of the workbook
	// does not take the bot down.
	loadKnowledge(context.Background(), ks, match, log)

	// Set Gin mode based on log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(log))

	setupRoutes(router, webhookHandler, ks, match, db, registry, cfg, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.HTTPReadTimeout,
		WriteTimeout: config.HTTPWriteTimeout,
		IdleTimeout:  config.HTTPIdleTimeout,
	}

	// Background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	jobsDone := startJobs(jobCtx, ks, match, db, cfg, log)

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	cancelJobs()
	select {
	case <-jobsDone:
	case <-time.After(5 * time.Second):
		log.Warn("Timeout waiting for background jobs to stop")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new webhooks, then drain in-flight event processing
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if err := webhookHandler.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Timeout draining webhook events")
	}

	if err := db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}

	log.Info("Server stopped")
}

// loadKnowledge performs the startup load of the knowledge base and
// warms the question vector cache. A source failure is downgraded to
// the archived snapshot; only a cold start with no archive leaves the
// bot serving fallback answers until the next refresh succeeds.
func loadKnowledge(ctx context.Context, ks *knowledge.Store, match *matcher.Matcher, log *logger.Logger) {
	loadCtx, cancel := context.WithTimeout(ctx, config.KnowledgeLoad)
	defer cancel()

	if _, err := ks.Refresh(loadCtx); err != nil {
		log.WithError(err).Error("Initial knowledge load failed, trying archived snapshot")
		if restoreErr := ks.RestoreArchived(loadCtx); restoreErr != nil {
			log.WithError(restoreErr).Warn("No archived snapshot available, starting without knowledge base")
			return
		}
		log.Info("Restored archived knowledge snapshot")
	}

	snap := ks.Current()
	if snap == nil {
		return
	}
	if err := match.Warmup(loadCtx, snap); err != nil {
		log.WithError(err).Warn("Question vector warmup failed, vectors will be computed on demand")
	}
	log.WithField("records", snap.Count()).Info("Knowledge base loaded")
}
