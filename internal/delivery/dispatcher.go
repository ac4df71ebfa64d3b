package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
	"github.com/google/uuid"
)

// ErrNoTarget means no delivery target is configured for a role and method.
var ErrNoTarget = errors.New("no delivery target configured")

// Target is a configured destination for one stakeholder role and method.
type Target struct {
	Role   string
	Method domain.NotificationMethod
	To     string
}

// Dispatcher routes notifications to the sender for their method and
// resolves stakeholder roles to configured targets.
type Dispatcher struct {
	senders map[domain.NotificationMethod]Sender
	targets map[string]map[domain.NotificationMethod]string
}

// NewDispatcher creates a dispatcher from the configured targets and senders.
func NewDispatcher(targets []Target, senders ...Sender) *Dispatcher {
	senderMap := make(map[domain.NotificationMethod]Sender)
	for _, s := range senders {
		senderMap[s.Method()] = s
	}

	targetMap := make(map[string]map[domain.NotificationMethod]string)
	for _, t := range targets {
		if targetMap[t.Role] == nil {
			targetMap[t.Role] = make(map[domain.NotificationMethod]string)
		}
		targetMap[t.Role][t.Method] = t.To
	}

	return &Dispatcher{
		senders: senderMap,
		targets: targetMap,
	}
}

// Resolve returns the configured target address for a role and method.
func (d *Dispatcher) Resolve(role string, method domain.NotificationMethod) (string, error) {
	if to, ok := d.targets[role][method]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: role %q method %q", ErrNoTarget, role, method)
}

// Send delivers a notification using the sender registered for method.
func (d *Dispatcher) Send(ctx context.Context, method domain.NotificationMethod, notification Notification) error {
	sender, ok := d.senders[method]
	if !ok {
		return NewNonRetryableError(fmt.Errorf("no sender for method %q", method))
	}
	return sender.Send(ctx, notification)
}

// NewJob builds a delivery job for a recorded stakeholder notification.
func NewJob(incident *domain.Incident, role string, method domain.NotificationMethod, notifiedAt time.Time, maxAttempts int) *Job {
	now := time.Now()
	return &Job{
		ID:         uuid.New().String(),
		IncidentID: incident.ID,
		Role:       role,
		Method:     method,
		Payload: Payload{
			IncidentID:  incident.ID,
			Title:       incident.Title,
			Category:    incident.Category,
			Severity:    incident.Severity,
			Status:      incident.Status,
			Role:        role,
			NotifiedAt:  notifiedAt,
			GeneratedAt: now,
		},
		MaxAttempts:   maxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}
