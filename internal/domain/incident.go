package domain

import "time"

// Severity represents the triage severity of an incident.
type Severity string

// Severity levels.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status represents the current lifecycle status of an incident.
// Status is always derived from the completed phase set, never stored
// independently.
type Status string

// Incident statuses.
const (
	StatusActive        Status = "active"
	StatusInvestigating Status = "investigating"
	StatusContained     Status = "contained"
	StatusMitigated     Status = "mitigated"
	StatusResolved      Status = "resolved"
)

// Priority bounds. 0 is the most urgent, 3 the least.
const (
	PriorityHighest = 0
	PriorityLowest  = 3
)

// Resolution targets per severity. Derived once at creation and held
// immutable for the lifetime of the incident, even across reclassification.
const (
	slaTargetCritical = 1 * time.Hour
	slaTargetHigh     = 4 * time.Hour
	slaTargetMedium   = 12 * time.Hour
	slaTargetLow      = 24 * time.Hour
)

// Incident is a tracked security event undergoing a defined response
// lifecycle.
type Incident struct {
	ID               string                    `json:"id"`
	Title            string                    `json:"title"`
	Category         string                    `json:"category"`
	DetectionSource  string                    `json:"detection_source"`
	ThreatActors     []string                  `json:"threat_actors"`
	Severity         Severity                  `json:"severity"`
	Status           Status                    `json:"status"`
	Priority         int                       `json:"priority"`
	AssignedTo       *string                   `json:"assigned_to"`
	SLATargetSeconds int64                     `json:"sla_target_seconds"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
	ResolvedAt       *time.Time                `json:"resolved_at"`
	Phases           []Phase                   `json:"phases"`
	AutomatedActions []Action                  `json:"automated_actions"`
	ManualActions    []Action                  `json:"manual_actions"`
	Notifications    []StakeholderNotification `json:"notifications"`
}

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the severity rank for escalation ordering.
// Higher rank means more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 0
	default:
		return -1
	}
}

// SLATarget returns the resolution target duration for the severity.
// Critical incidents have the tightest target.
func (s Severity) SLATarget() time.Duration {
	switch s {
	case SeverityCritical:
		return slaTargetCritical
	case SeverityHigh:
		return slaTargetHigh
	case SeverityMedium:
		return slaTargetMedium
	default:
		return slaTargetLow
	}
}

// DefaultPriority maps severity to the initial escalation priority.
func (s Severity) DefaultPriority() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInvestigating, StatusContained, StatusMitigated, StatusResolved:
		return true
	}
	return false
}

// IsResolved reports whether the incident reached its terminal state.
func (i *Incident) IsResolved() bool {
	return i.Status == StatusResolved
}

// Phase returns a pointer to the named phase, or nil if the name is unknown.
func (i *Incident) Phase(name PhaseName) *Phase {
	for idx := range i.Phases {
		if i.Phases[idx].Name == name {
			return &i.Phases[idx]
		}
	}
	return nil
}

// Action returns a pointer to the action with the given ID, searching both
// automated and manual actions. Returns nil if not found.
func (i *Incident) Action(id string) *Action {
	for idx := range i.AutomatedActions {
		if i.AutomatedActions[idx].ID == id {
			return &i.AutomatedActions[idx]
		}
	}
	for idx := range i.ManualActions {
		if i.ManualActions[idx].ID == id {
			return &i.ManualActions[idx]
		}
	}
	return nil
}

// Notification returns a pointer to the notification record for the given
// stakeholder role, or nil if the role was never touched.
func (i *Incident) Notification(role string) *StakeholderNotification {
	for idx := range i.Notifications {
		if i.Notifications[idx].Role == role {
			return &i.Notifications[idx]
		}
	}
	return nil
}

// HasPendingManualAction reports whether any manual action still awaits
// execution or confirmation.
func (i *Incident) HasPendingManualAction() bool {
	for _, a := range i.ManualActions {
		if a.State == ActionStatePending || a.State == ActionStateExecuting {
			return true
		}
	}
	return false
}

// HasIncompletePhase reports whether at least one lifecycle phase is not
// yet completed.
func (i *Incident) HasIncompletePhase() bool {
	for _, p := range i.Phases {
		if !p.Completed {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the incident. Read APIs hand out clones so
// callers can never mutate registry state through a snapshot.
func (i *Incident) Clone() *Incident {
	c := *i
	c.ThreatActors = append([]string(nil), i.ThreatActors...)
	c.Phases = append([]Phase(nil), i.Phases...)
	c.AutomatedActions = cloneActions(i.AutomatedActions)
	c.ManualActions = cloneActions(i.ManualActions)
	c.Notifications = cloneNotifications(i.Notifications)
	if i.AssignedTo != nil {
		v := *i.AssignedTo
		c.AssignedTo = &v
	}
	if i.ResolvedAt != nil {
		v := *i.ResolvedAt
		c.ResolvedAt = &v
	}
	for idx := range c.Phases {
		if c.Phases[idx].CompletedAt != nil {
			v := *c.Phases[idx].CompletedAt
			c.Phases[idx].CompletedAt = &v
		}
	}
	return &c
}

func cloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := append([]Action(nil), actions...)
	for idx := range out {
		if out[idx].AssignedTo != nil {
			v := *out[idx].AssignedTo
			out[idx].AssignedTo = &v
		}
		if out[idx].CompletedAt != nil {
			v := *out[idx].CompletedAt
			out[idx].CompletedAt = &v
		}
	}
	return out
}

func cloneNotifications(records []StakeholderNotification) []StakeholderNotification {
	if records == nil {
		return nil
	}
	out := append([]StakeholderNotification(nil), records...)
	for idx := range out {
		if out[idx].NotifiedAt != nil {
			v := *out[idx].NotifiedAt
			out[idx].NotifiedAt = &v
		}
		if out[idx].AcknowledgedAt != nil {
			v := *out[idx].AcknowledgedAt
			out[idx].AcknowledgedAt = &v
		}
	}
	return out
}
