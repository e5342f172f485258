// Package main provides the FAQ bot server entry point.
package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peejay10/line-llama-chatbot/internal/config"
	"github.com/peejay10/line-llama-chatbot/internal/knowledge"
	"github.com/peejay10/line-llama-chatbot/internal/logger"
	"github.com/peejay10/line-llama-chatbot/internal/matcher"
	"github.com/peejay10/line-llama-chatbot/internal/storage"
	"github.com/peejay10/line-llama-chatbot/internal/webhook"
)

// setupRoutes configures all HTTP routes
func setupRoutes(
	router *gin.Engine,
	webhookHandler *webhook.Handler,
	ks *knowledge.Store,
	match *matcher.Matcher,
	db *storage.DB,
	registry *prometheus.Registry,
	cfg *config.Config,
	log *logger.Logger,
) {
	rootHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "faq-bot"})
	}
	router.GET("/", rootHandler)
	router.HEAD("/", rootHandler)

	// Liveness Probe - only checks that the process is running
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	// Readiness Probe - the bot can answer once a snapshot is published
	readyHandler := func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}

		if cfg.GeminiAPIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "embedding encoder not configured",
			})
			return
		}

		if !ks.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "knowledge base not loaded",
			})
			return
		}

		snap := ks.Current()
		records := gin.H{}
		for _, cat := range knowledge.SearchOrder {
			records[cat.String()] = len(snap.Category(cat))
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"loaded_at": snap.LoadedAt,
			"records":   records,
		})
	}
	router.GET("/ready", readyHandler)
	router.HEAD("/ready", readyHandler)

	// LINE webhook callback endpoint
	router.POST("/callback", webhookHandler.Handle)

	// Prometheus metrics endpoint, behind basic auth when configured
	metricsHandler := gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if cfg.MetricsPassword != "" {
		auth := gin.BasicAuth(gin.Accounts{cfg.MetricsUsername: cfg.MetricsPassword})
		router.GET("/metrics", auth, metricsHandler)
	} else {
		router.GET("/metrics", metricsHandler)
	}

	// Manual knowledge refresh, only exposed when admin auth is configured
	if cfg.AdminPassword != "" {
		auth := gin.BasicAuth(gin.Accounts{cfg.AdminUsername: cfg.AdminPassword})
		router.POST("/admin/refresh", auth, func(c *gin.Context) {
			snap, err := ks.Refresh(c.Request.Context())
			if err != nil {
				log.WithError(err).Error("Manual knowledge refresh failed")
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			if err := match.Warmup(c.Request.Context(), snap); err != nil {
				log.WithError(err).Warn("Warmup after manual refresh failed")
			}
			c.JSON(http.StatusOK, gin.H{
				"status":  "refreshed",
				"records": snap.Count(),
			})
		})
	}
}
