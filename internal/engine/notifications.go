package engine

import (
	"fmt"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
)

// recordNotified stamps the notification time for a stakeholder role,
// creating the record on first contact. Re-notifying an existing role
// refreshes NotifiedAt but keeps any acknowledgment.
func recordNotified(incident *domain.Incident, p *domain.NotificationPayload, now time.Time) error {
	if p.Role == "" {
		return fmt.Errorf("%w: stakeholder role is required", ErrInvalidEvent)
	}
	if !p.Method.IsValid() {
		return fmt.Errorf("%w: unknown notification method %q", ErrInvalidEvent, p.Method)
	}

	stamped := now
	if record := incident.Notification(p.Role); record != nil {
		record.Method = p.Method
		record.NotifiedAt = &stamped
		return nil
	}

	incident.Notifications = append(incident.Notifications, domain.StakeholderNotification{
		Role:       p.Role,
		Method:     p.Method,
		NotifiedAt: &stamped,
	})
	return nil
}

// recordAcknowledged stamps the acknowledgment time for a role. A role
// that was never notified cannot acknowledge; acknowledging twice is an
// idempotent no-op.
func recordAcknowledged(incident *domain.Incident, role string, now time.Time) error {
	record := incident.Notification(role)
	if record == nil || record.NotifiedAt == nil {
		return fmt.Errorf("%w: %s", ErrNotNotified, role)
	}

	if record.AcknowledgedAt != nil {
		return nil
	}

	stamped := now
	record.AcknowledgedAt = &stamped
	return nil
}
