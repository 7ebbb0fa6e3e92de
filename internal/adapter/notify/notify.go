// Package notify provides notification sinks for new alerts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// LogSink writes each notification to the log instead of delivering it.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-only sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, n domain.Notification) error {
	s.logger.Info("would send notification",
		"feed", n.FeedType,
		"dedup_key", n.DedupKey,
		"title", n.Title,
		"body", n.Body,
	)
	return nil
}

// webhookPayload is the JSON body posted to the webhook.
type webhookPayload struct {
	FeedType string    `json:"feed_type"`
	DedupKey string    `json:"dedup_key"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// WebhookSink posts each notification as JSON to a fixed URL.
type WebhookSink struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// NewWebhookSink creates a webhook sink. timeout bounds a single delivery.
func NewWebhookSink(url string, timeout time.Duration, logger *slog.Logger) *WebhookSink {
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     logger,
	}
}

func (s *WebhookSink) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(webhookPayload{
		FeedType: string(n.FeedType),
		DedupKey: n.DedupKey,
		Title:    n.Title,
		Body:     n.Body,
		SentAt:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook error: status %d: %s", resp.StatusCode, msg)
	}

	s.logger.Debug("notification delivered", "feed", n.FeedType, "dedup_key", n.DedupKey)
	return nil
}

// Permission answers whether notifications may currently be shown.
type Permission interface {
	Allowed(ctx context.Context) bool
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) bool

func (f PermissionFunc) Allowed(ctx context.Context) bool { return f(ctx) }

// Gate queries Permission before every delivery. A denial is reported as
// success so the caller records the alert as handled.
type Gate struct {
	inner      Notifier
	permission Permission
	logger     *slog.Logger
}

// NewGate wraps inner with a permission check.
func NewGate(inner Notifier, permission Permission, logger *slog.Logger) *Gate {
	return &Gate{inner: inner, permission: permission, logger: logger}
}

func (g *Gate) Notify(ctx context.Context, n domain.Notification) error {
	if !g.permission.Allowed(ctx) {
		g.logger.Debug("notification permission denied, skipping",
			"feed", n.FeedType,
			"dedup_key", n.DedupKey,
		)
		return nil
	}
	return g.inner.Notify(ctx, n)
}
