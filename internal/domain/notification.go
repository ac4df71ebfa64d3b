package domain

import "time"

// NotificationMethod is the channel used to reach a stakeholder.
type NotificationMethod string

// Notification methods.
const (
	NotificationMethodEmail   NotificationMethod = "email"
	NotificationMethodWebhook NotificationMethod = "webhook"
	NotificationMethodSMS     NotificationMethod = "sms"
)

// StakeholderNotification tracks notify/acknowledge state for one
// stakeholder role on one incident. Fully independent of phase progress:
// an incident can be contained with executive notifications still
// unacknowledged, and acknowledgments remain valid after resolution.
type StakeholderNotification struct {
	Role           string             `json:"role"`
	Method         NotificationMethod `json:"method"`
	NotifiedAt     *time.Time         `json:"notified_at"`
	AcknowledgedAt *time.Time         `json:"acknowledged_at"`
}

// IsValid checks if the notification method is valid.
func (m NotificationMethod) IsValid() bool {
	switch m {
	case NotificationMethodEmail, NotificationMethodWebhook, NotificationMethodSMS:
		return true
	}
	return false
}
