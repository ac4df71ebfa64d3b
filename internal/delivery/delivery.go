// Package delivery sends stakeholder notifications over outbound channels.
// Jobs are queued in memory and processed asynchronously by a worker pool,
// so recording a notification on an incident never blocks on network I/O.
package delivery

import (
	"context"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
)

// Notification is a rendered message ready to be sent to a target.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications over a single outbound method.
type Sender interface {
	Method() domain.NotificationMethod
	Send(ctx context.Context, notification Notification) error
}

// Payload contains the incident data a notification is rendered from.
type Payload struct {
	IncidentID  string          `json:"incident_id"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Severity    domain.Severity `json:"severity"`
	Status      domain.Status   `json:"status"`
	Role        string          `json:"role"`
	NotifiedAt  time.Time       `json:"notified_at"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Job is a queued delivery attempt for one stakeholder notification.
type Job struct {
	ID            string
	IncidentID    string
	Role          string
	Method        domain.NotificationMethod
	Payload       Payload
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}
