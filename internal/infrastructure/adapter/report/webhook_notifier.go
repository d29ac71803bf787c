package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"alarm-triage-agent/internal/domain/port"
)

// WebhookNotifierConfig configures the outbound notification endpoint.
type WebhookNotifierConfig struct {
	// URL receives a POST with the notification payload as JSON.
	URL string
	// Timeout bounds one delivery attempt.
	Timeout time.Duration
	// AuthToken, when set, is sent as a bearer token.
	AuthToken string
}

// WebhookNotifier implements port.Notifier by POSTing completion payloads
// to an operator-configured endpoint such as a chat bridge or pager.
type WebhookNotifier struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a notifier for the given endpoint.
// A nil logger falls back to a no-op logger.
func NewWebhookNotifier(cfg WebhookNotifierConfig, logger *zap.Logger) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("notification URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		url:    cfg.URL,
		token:  cfg.AuthToken,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Notify delivers one completion payload.
func (n *WebhookNotifier) Notify(ctx context.Context, payload port.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %s", resp.Status)
	}

	n.logger.Info("notification delivered",
		zap.String("investigation_id", payload.InvestigationID),
		zap.String("status", payload.Status),
	)
	return nil
}

var _ port.Notifier = (*WebhookNotifier)(nil)
