// Package sms delivers notifications through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bracketops/incidentd/internal/delivery"
	"github.com/bracketops/incidentd/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Config holds SMS sender configuration. The gateway accepts a JSON
// message POST authorized by a bearer API key.
type Config struct {
	Enabled    bool
	GatewayURL string
	APIKey     string
	Timeout    time.Duration
}

// Sender implements SMS notification delivery.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new SMS sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.GatewayURL == "" {
		return nil, errors.New("sms sender: gateway URL is required when enabled")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("sms sender configured", "enabled", config.Enabled)

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Method returns the delivery method.
func (s *Sender) Method() domain.NotificationMethod {
	return domain.NotificationMethodSMS
}

type gatewayMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Send posts the notification body to the gateway. The subject is
// dropped; SMS bodies are rendered self-contained.
func (s *Sender) Send(ctx context.Context, notification delivery.Notification) error {
	if !s.config.Enabled {
		slog.Debug("sms sender disabled, skipping", "to", notification.To)
		return nil
	}

	if notification.To == "" {
		return delivery.NewNonRetryableError(errors.New("sms recipient is empty"))
	}

	body, err := json.Marshal(gatewayMessage{
		To:      notification.To,
		Message: notification.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal gateway message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return delivery.NewRetryableError(fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, notification.To)
}

func (s *Sender) handleResponse(resp *http.Response, to string) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("sms message sent", "to", to)
		return nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return delivery.NewRetryableError(
			fmt.Errorf("gateway error %d: %s", resp.StatusCode, truncate(string(respBody), 200)))

	default:
		return delivery.NewNonRetryableError(
			fmt.Errorf("gateway rejected request %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
