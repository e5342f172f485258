// Package webhook receives LINE webhook callbacks, acknowledges them
// immediately, and processes the contained events asynchronously.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/peejay10/line-llama-chatbot/internal/bot"
	"github.com/peejay10/line-llama-chatbot/internal/config"
	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
	"github.com/peejay10/line-llama-chatbot/internal/lineutil"
	"github.com/peejay10/line-llama-chatbot/internal/logger"
	"github.com/peejay10/line-llama-chatbot/internal/metrics"
	"github.com/peejay10/line-llama-chatbot/internal/ratelimit"
)

// replyMaxAttempts bounds delivery retries for one reply token.
const replyMaxAttempts = 3

// Handler handles LINE webhook events.
type Handler struct {
	channelSecret string
	client        *messaging_api.MessagingApiAPI
	responder     *bot.Responder
	metrics       *metrics.Metrics
	logger        *logger.Logger

	globalLimiter *ratelimit.Limiter    // Global reply rate limiter
	userLimiter   *ratelimit.PerKeyLimiter // Per-user message rate limiter
	wg            sync.WaitGroup

	webhookTimeout      time.Duration
	maxEventsPerWebhook int
	minReplyTokenLength int
}

// HandlerConfig holds configuration for creating a new Handler.
type HandlerConfig struct {
	ChannelSecret string
	ChannelToken  string
	APIEndpoint   string // Overrides the default LINE API endpoint when set
	BotConfig     *config.BotConfig
	Responder     *bot.Responder
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
}

// NewHandler creates a new webhook handler. The messaging client gets
// its own bounded HTTP client so a hung LINE API connection cannot
// stall a worker goroutine past the per-attempt delivery budget.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	opts := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(&http.Client{Timeout: config.ReplyDelivery}),
	}
	if cfg.APIEndpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(cfg.APIEndpoint))
	}
	client, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}

	h := &Handler{
		channelSecret:       cfg.ChannelSecret,
		client:              client,
		responder:           cfg.Responder,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.WithModule("webhook"),
		webhookTimeout:      cfg.BotConfig.WebhookTimeout,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
		minReplyTokenLength: cfg.BotConfig.MinReplyTokenLength,
	}

	h.globalLimiter = ratelimit.New(cfg.BotConfig.GlobalRateRPS, cfg.BotConfig.GlobalRateRPS)
	h.userLimiter = ratelimit.NewPerKeyLimiter(ratelimit.PerKeyLimiterConfig{
		MaxTokens:     cfg.BotConfig.UserRateLimitBurst,
		RefillRate:    cfg.BotConfig.UserRateLimitRefillPerSec,
		CleanupPeriod: 5 * time.Minute,
	})
	if cfg.Metrics != nil {
		h.userLimiter.OnDrop(func() {
			cfg.Metrics.RecordRateLimiterDrop("user")
		})
	}

	return h, nil
}

// Handle is the Gin handler for the webhook endpoint.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		// Malformed payloads and bad signatures both get a 400 so LINE
		// does not redeliver them.
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("invalid webhook signature")
		} else {
			h.logger.WithError(err).Warn("malformed webhook payload")
		}
		c.Status(http.StatusBadRequest)
		return
	}

	// Acknowledge immediately, then process off the request goroutine
	c.Status(http.StatusOK)

	if len(cb.Events) > h.maxEventsPerWebhook {
		h.logger.WithFields(map[string]any{
			"event_count": len(cb.Events),
			"limit":       h.maxEventsPerWebhook,
		}).Warn("too many events in webhook batch; truncating")
		cb.Events = cb.Events[:h.maxEventsPerWebhook]
	}

	// Copy events to avoid touching the request after it completes
	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)

	h.wg.Go(func() {
		// Events of one batch are handled in order so a disambiguation
		// answer cannot overtake the question that created it.
		for _, event := range events {
			h.processEvent(context.Background(), event)
		}
	})
}

// processEvent handles a single webhook event. A panic here is
// contained so the rest of the batch still gets processed.
func (h *Handler) processEvent(ctx context.Context, event webhook.EventInterface) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.WithField("panic", r).Error("panic in event processing")
		}
	}()

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, h.webhookTimeout)
	defer cancel()

	switch e := event.(type) {
	case webhook.MessageEvent:
		h.processMessageEvent(ctx, e, start)
	case webhook.FollowEvent:
		h.reply(e.ReplyToken, bot.MsgGreeting)
		h.metrics.RecordWebhook("follow", "success", time.Since(start).Seconds())
	default:
		h.logger.WithField("event_type", fmt.Sprintf("%T", e)).Debug("unsupported event type")
	}
}

func (h *Handler) processMessageEvent(ctx context.Context, e webhook.MessageEvent, start time.Time) {
	textMsg, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		h.logger.WithField("message_type", e.Message.GetType()).Debug("ignoring non-text message")
		return
	}

	// Only direct chats carry the per-user disambiguation flow
	source, ok := e.Source.(webhook.UserSource)
	if !ok {
		h.logger.Debug("ignoring message from non-user source")
		return
	}
	userID := source.UserId

	if !h.userLimiter.Allow(userID) {
		h.logger.WithField("user_id", userID).Warn("user rate limit exceeded; dropping message")
		h.metrics.RecordWebhook("message", "dropped", time.Since(start).Seconds())
		return
	}

	answer, err := h.responder.Respond(ctx, userID, textMsg.Text)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			h.logger.Debug("ignoring empty message")
			return
		}
		h.logger.WithError(err).WithField("user_id", userID).Error("failed to handle message")
		h.metrics.RecordWebhook("message", "error", time.Since(start).Seconds())
		return
	}

	h.reply(e.ReplyToken, answer)
	h.metrics.RecordWebhook("message", "success", time.Since(start).Seconds())
}

// reply delivers one text reply, retrying transient failures with a
// bounded backoff. Undeliverable replies are logged and dropped; the
// reply token is single-use and expires quickly, so there is no queue
// to park them in.
func (h *Handler) reply(replyToken, text string) {
	if replyToken == "" || len(replyToken) < h.minReplyTokenLength {
		h.logger.WithField("token_length", len(replyToken)).Debug("invalid reply token, skipping reply")
		return
	}

	for attempt := 0; attempt < replyMaxAttempts; attempt++ {
		if !h.globalLimiter.Allow() {
			h.metrics.RecordRateLimiterDrop("global")
			waitCtx, cancel := context.WithTimeout(context.Background(), config.ReplyDelivery)
			err := h.globalLimiter.Wait(waitCtx)
			cancel()
			if err != nil {
				h.logger.Warn("gave up waiting for global rate limiter")
				h.metrics.RecordReplyDelivery("error")
				return
			}
		}

		_, err := h.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{lineutil.NewTextMessage(text)},
		})
		if err == nil {
			h.metrics.RecordReplyDelivery("success")
			return
		}

		if strings.Contains(err.Error(), "Invalid reply token") {
			// Token already used or expired, retrying cannot help
			h.logger.WithError(err).Debug("reply token already used or invalid")
			h.metrics.RecordReplyDelivery("error")
			return
		}

		h.logger.WithError(err).WithField("attempt", attempt+1).Warn("reply delivery failed")
		if attempt < replyMaxAttempts-1 {
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
		}
	}

	h.metrics.RecordReplyDelivery("error")
	h.logger.Error("dropping reply after repeated delivery failures")
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		h.userLimiter.Stop()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
