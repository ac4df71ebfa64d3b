package domain

import (
	"errors"
	"time"
)

// EventType represents the type of an inbound engine event.
type EventType string

// Event types. IncidentDetected creates an incident; every other type
// carries the ID of an existing one.
const (
	EventIncidentDetected     EventType = "incident_detected"
	EventPhaseAdvanced        EventType = "phase_advanced"
	EventActionRequested      EventType = "action_requested"
	EventActionAssigned       EventType = "action_assigned"
	EventActionExecuted       EventType = "action_executed"
	EventActionConfirmed      EventType = "action_confirmed"
	EventActionFailed         EventType = "action_failed"
	EventNotificationSent     EventType = "notification_sent"
	EventNotificationAcked    EventType = "notification_acked"
	EventIncidentReclassified EventType = "incident_reclassified"
	EventPriorityChanged      EventType = "priority_changed"
	EventAssigneeChanged      EventType = "assignee_changed"
)

// IsValid checks if the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventIncidentDetected, EventPhaseAdvanced,
		EventActionRequested, EventActionAssigned, EventActionExecuted,
		EventActionConfirmed, EventActionFailed,
		EventNotificationSent, EventNotificationAcked,
		EventIncidentReclassified, EventPriorityChanged, EventAssigneeChanged:
		return true
	}
	return false
}

// Event is the single mutation envelope accepted by the registry. Exactly
// one payload section must be set, matching the event type. Events are
// journaled verbatim, so the struct is stable and JSON-serializable.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	IncidentID string    `json:"incident_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	Detected     *DetectedPayload     `json:"detected,omitempty"`
	Phase        *PhasePayload        `json:"phase,omitempty"`
	Action       *ActionPayload       `json:"action,omitempty"`
	Notification *NotificationPayload `json:"notification,omitempty"`
	Reclassify   *ReclassifyPayload   `json:"reclassify,omitempty"`
	Priority     *PriorityPayload     `json:"priority,omitempty"`
	Assignee     *AssigneePayload     `json:"assignee,omitempty"`
}

// DetectedPayload creates a new incident.
type DetectedPayload struct {
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Severity        Severity `json:"severity"`
	DetectionSource string   `json:"detection_source"`
	ThreatActors    []string `json:"threat_actors,omitempty"`
	Priority        *int     `json:"priority,omitempty"`
}

// PhasePayload marks a lifecycle phase complete.
type PhasePayload struct {
	Name PhaseName `json:"name"`
}

// ActionPayload drives the action state machine. Name and Kind are set on
// request; ActionID addresses an existing action afterwards.
type ActionPayload struct {
	ActionID   string     `json:"action_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Kind       ActionKind `json:"kind,omitempty"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// NotificationPayload records stakeholder notify/acknowledge events.
type NotificationPayload struct {
	Role   string             `json:"role"`
	Method NotificationMethod `json:"method,omitempty"`
}

// ReclassifyPayload amends incident severity after triage. The SLA target
// derived at creation is deliberately left untouched.
type ReclassifyPayload struct {
	Severity Severity `json:"severity"`
}

// PriorityPayload amends the escalation priority.
type PriorityPayload struct {
	Priority int `json:"priority"`
}

// AssigneePayload changes or clears the owning analyst.
type AssigneePayload struct {
	AssignedTo *string `json:"assigned_to"`
}

// Payload validation errors.
var (
	errUnknownEventType  = errors.New("unknown event type")
	errMissingPayload    = errors.New("missing event payload")
	errMissingIncidentID = errors.New("missing incident id")
)

// Validate checks that the event carries the payload its type requires.
// It does not validate payload field values; the registry owns semantic
// validation. An incident_detected event may carry an incident ID: the
// registry writes the assigned ID back before journaling so that replay
// reuses it, and rejects IDs supplied on live ingestion itself.
func (e *Event) Validate() error {
	if !e.Type.IsValid() {
		return errUnknownEventType
	}

	if e.Type == EventIncidentDetected {
		if e.Detected == nil {
			return errMissingPayload
		}
		return nil
	}

	if e.IncidentID == "" {
		return errMissingIncidentID
	}

	switch e.Type {
	case EventPhaseAdvanced:
		if e.Phase == nil {
			return errMissingPayload
		}
	case EventActionRequested, EventActionAssigned, EventActionExecuted,
		EventActionConfirmed, EventActionFailed:
		if e.Action == nil {
			return errMissingPayload
		}
	case EventNotificationSent, EventNotificationAcked:
		if e.Notification == nil {
			return errMissingPayload
		}
	case EventIncidentReclassified:
		if e.Reclassify == nil {
			return errMissingPayload
		}
	case EventPriorityChanged:
		if e.Priority == nil {
			return errMissingPayload
		}
	case EventAssigneeChanged:
		if e.Assignee == nil {
			return errMissingPayload
		}
	}

	return nil
}
