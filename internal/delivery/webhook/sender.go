// Package webhook delivers notifications via incoming webhooks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bracketops/incidentd/internal/delivery"
	"github.com/bracketops/incidentd/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "incidentd"
	defaultRPS      = 5
	defaultBurst    = 10
)

// Config holds webhook sender configuration. The webhook URL itself comes
// from the per-role delivery target, so global configuration is minimal.
type Config struct {
	DefaultUsername string        // username for display, default "incidentd"
	DefaultIconURL  string        // icon URL (optional)
	Timeout         time.Duration // request timeout
	RequestsPerSec  float64       // outbound rate limit
	Burst           int
}

// Sender implements webhook notification delivery.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new webhook sender.
func NewSender(config Config) *Sender {
	if config.DefaultUsername == "" {
		config.DefaultUsername = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RequestsPerSec == 0 {
		config.RequestsPerSec = defaultRPS
	}
	if config.Burst == 0 {
		config.Burst = defaultBurst
	}

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSec), config.Burst),
	}
}

// Method returns the delivery method.
func (s *Sender) Method() domain.NotificationMethod {
	return domain.NotificationMethodWebhook
}

// Send posts a notification to the webhook URL in notification.To.
func (s *Sender) Send(ctx context.Context, notification delivery.Notification) error {
	webhookURL := notification.To
	if webhookURL == "" {
		return &PermanentError{Message: "webhook URL is empty"}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	payload := webhookPayload{
		Username: s.config.DefaultUsername,
	}

	if s.config.DefaultIconURL != "" {
		payload.IconURL = s.config.DefaultIconURL
	}

	// If subject is provided, add as markdown heading
	if notification.Subject != "" {
		payload.Text = fmt.Sprintf("### %s\n\n%s", notification.Subject, notification.Body)
	} else {
		payload.Text = notification.Body
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, webhookURL)
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

func (s *Sender) handleResponse(resp *http.Response, webhookURL string) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Debug("webhook message sent", "webhook", maskWebhookURL(webhookURL))
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: "rate limited by webhook endpoint",
		}

	case resp.StatusCode >= 500:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server error: %s", truncate(string(body), 200)),
		}

	default:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("webhook rejected request: %s", truncate(string(body), 200)),
		}
	}
}

// maskWebhookURL hides the webhook token part of the URL for logging.
func maskWebhookURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	return fmt.Sprintf("%s://%s/...", u.Scheme, u.Host)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("webhook error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("webhook error: %s", e.Message)
}

// IsRetryable returns false for permanent errors.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("webhook error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("webhook error: %s", e.Message)
}

// IsRetryable returns true for retryable errors.
func (e *RetryableError) IsRetryable() bool { return true }
