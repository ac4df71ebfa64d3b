// Package engine implements the incident response orchestration core: the
// incident registry, the phase state machine, the action orchestrator, the
// notification tracker, the SLA calculator and the derived escalation
// queue. The registry is the single source of truth; every other component
// is a pure function or a recomputed view over it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bracketops/incidentd/internal/clock"
	"github.com/bracketops/incidentd/internal/domain"
	"github.com/google/uuid"
)

// Journal persists accepted events for audit and replay. Implementations
// must keep append order stable.
type Journal interface {
	Append(ctx context.Context, event *domain.Event) error
}

// Registry owns all live incidents, indexed by ID. All mutations flow
// through ApplyEvent; reads return deep copies so callers can never
// mutate registry state through a snapshot.
type Registry struct {
	clock   clock.Clock
	journal Journal

	mu        sync.RWMutex
	incidents map[string]*domain.Incident
}

// NewRegistry creates an empty registry. The journal may be nil, in which
// case accepted events are not persisted.
func NewRegistry(c clock.Clock, journal Journal) *Registry {
	return &Registry{
		clock:     c,
		journal:   journal,
		incidents: make(map[string]*domain.Incident),
	}
}

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	Title           string
	Category        string
	Severity        domain.Severity
	DetectionSource string
	ThreatActors    []string
	Priority        *int
}

// CreateIncident registers a new incident from a detection. It is a
// convenience wrapper building an IncidentDetected event and applying it.
func (r *Registry) CreateIncident(ctx context.Context, input CreateIncidentInput) (*domain.Incident, error) {
	event := &domain.Event{
		Type: domain.EventIncidentDetected,
		Detected: &domain.DetectedPayload{
			Title:           input.Title,
			Category:        input.Category,
			Severity:        input.Severity,
			DetectionSource: input.DetectionSource,
			ThreatActors:    input.ThreatActors,
			Priority:        input.Priority,
		},
	}
	return r.ApplyEvent(ctx, event)
}

// ApplyEvent is the single mutation entry point. The event is validated,
// applied atomically to the addressed incident and journaled. On success
// the returned incident is a snapshot of the post-event state.
//
// Atomicity: mutations run against a clone of the incident which replaces
// the stored value only if every step succeeds, so a rejected event never
// leaves partial state behind.
func (r *Registry) ApplyEvent(ctx context.Context, event *domain.Event) (*domain.Incident, error) {
	if err := event.Validate(); err != nil {
		RecordEventRejected(event.Type)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	// Journaled detections carry the assigned incident ID so replay can
	// reuse it; live detections must arrive without one.
	if event.Type == domain.EventIncidentDetected && event.IncidentID != "" {
		RecordEventRejected(event.Type)
		return nil, fmt.Errorf("%w: incident id must be empty for incident_detected", ErrInvalidEvent)
	}

	now := r.clock.Now()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}

	r.mu.Lock()
	incident, err := r.applyLocked(event)
	r.mu.Unlock()
	if err != nil {
		RecordEventRejected(event.Type)
		return nil, err
	}
	RecordEventApplied(event.Type)

	if r.journal != nil {
		if err := r.journal.Append(ctx, event); err != nil {
			// The in-memory mutation already committed; the journal is
			// audit storage, so log and surface without rolling back.
			slog.Error("failed to journal event",
				"event_id", event.ID,
				"event_type", event.Type,
				"incident_id", event.IncidentID,
				"error", err,
			)
			return nil, fmt.Errorf("journal event: %w", err)
		}
	}

	return incident.Clone(), nil
}

// Replay rebuilds registry state from journaled events without
// re-journaling them. Events apply at their original timestamps, so a
// replayed registry is identical to the one that produced the journal.
func (r *Registry) Replay(events []*domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range events {
		if err := event.Validate(); err != nil {
			return fmt.Errorf("replay event %s: %w", event.ID, err)
		}
		if _, err := r.applyLocked(event); err != nil {
			return fmt.Errorf("replay event %s (%s): %w", event.ID, event.Type, err)
		}
	}

	slog.Info("journal replayed", "events", len(events), "incidents", len(r.incidents))
	return nil
}

// applyLocked routes an event to the right mutation. Callers hold the
// write lock.
func (r *Registry) applyLocked(event *domain.Event) (*domain.Incident, error) {
	if event.Type == domain.EventIncidentDetected {
		return r.createLocked(event)
	}

	current, ok := r.incidents[event.IncidentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, event.IncidentID)
	}

	if current.IsResolved() {
		if !allowedPostResolution(event.Type) {
			return nil, fmt.Errorf("%w: %s rejected for %s", ErrTerminalState, event.Type, event.IncidentID)
		}
		// Only first-contact notifications continue after resolution;
		// re-notifying a recorded role would rewrite its NotifiedAt.
		if event.Type == domain.EventNotificationSent && current.Notification(event.Notification.Role) != nil {
			return nil, fmt.Errorf("%w: role %s already notified", ErrTerminalState, event.Notification.Role)
		}
	}

	next := current.Clone()
	now := event.OccurredAt

	var err error
	switch event.Type {
	case domain.EventPhaseAdvanced:
		err = completePhase(next, event.Phase.Name, now)
	case domain.EventActionRequested:
		err = requestAction(next, event, now)
	case domain.EventActionAssigned:
		err = assignAction(next, event.Action)
	case domain.EventActionExecuted:
		err = executeAction(next, event.Action.ActionID)
	case domain.EventActionConfirmed:
		err = confirmAction(next, event.Action.ActionID, now)
	case domain.EventActionFailed:
		err = failAction(next, event.Action.ActionID, event.Action.Error)
	case domain.EventNotificationSent:
		err = recordNotified(next, event.Notification, now)
	case domain.EventNotificationAcked:
		err = recordAcknowledged(next, event.Notification.Role, now)
	case domain.EventIncidentReclassified:
		err = reclassify(next, event.Reclassify.Severity)
	case domain.EventPriorityChanged:
		err = changePriority(next, event.Priority.Priority)
	case domain.EventAssigneeChanged:
		next.AssignedTo = event.Assignee.AssignedTo
	}
	if err != nil {
		return nil, err
	}

	next.UpdatedAt = now
	r.incidents[event.IncidentID] = next
	return next, nil
}

func (r *Registry) createLocked(event *domain.Event) (*domain.Incident, error) {
	p := event.Detected

	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if p.Category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidEvent)
	}
	if p.DetectionSource == "" {
		return nil, fmt.Errorf("%w: detection source is required", ErrInvalidEvent)
	}
	if !p.Severity.IsValid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidEvent, p.Severity)
	}

	priority := p.Severity.DefaultPriority()
	if p.Priority != nil {
		if *p.Priority < domain.PriorityHighest || *p.Priority > domain.PriorityLowest {
			return nil, fmt.Errorf("%w: priority %d out of range", ErrInvalidEvent, *p.Priority)
		}
		priority = *p.Priority
	}

	now := event.OccurredAt
	incident := &domain.Incident{
		ID:               uuid.New().String(),
		Title:            p.Title,
		Category:         p.Category,
		DetectionSource:  p.DetectionSource,
		ThreatActors:     append([]string(nil), p.ThreatActors...),
		Severity:         p.Severity,
		Status:           domain.StatusActive,
		Priority:         priority,
		SLATargetSeconds: int64(p.Severity.SLATarget().Seconds()),
		CreatedAt:        now,
		UpdatedAt:        now,
		Phases:           domain.NewPhases(),
	}

	// Replayed creations must reuse the original ID carried on the event.
	if event.IncidentID != "" {
		incident.ID = event.IncidentID
	}
	event.IncidentID = incident.ID

	r.incidents[incident.ID] = incident
	return incident, nil
}

// allowedPostResolution lists the mutations still accepted once an
// incident is resolved. Stakeholder notification tracking continues for
// compliance reporting; everything else is frozen.
func allowedPostResolution(t domain.EventType) bool {
	return t == domain.EventNotificationAcked || t == domain.EventNotificationSent
}

// GetIncident returns a snapshot of the incident with the given ID.
func (r *Registry) GetIncident(id string) (*domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return incident.Clone(), nil
}

// ListFilter narrows ListIncidents results. Zero values match everything.
type ListFilter struct {
	Status     domain.Status
	Severity   domain.Severity
	Priority   *int
	AssignedTo string
}

// ListIncidents returns snapshots of all incidents matching the filter,
// ordered by creation time (oldest first) with ID as tie-break for
// deterministic output.
func (r *Registry) ListIncidents(filter ListFilter) []*domain.Incident {
	r.mu.RLock()
	out := make([]*domain.Incident, 0, len(r.incidents))
	for _, incident := range r.incidents {
		if !matchesFilter(incident, filter) {
			continue
		}
		out = append(out, incident.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matchesFilter(incident *domain.Incident, filter ListFilter) bool {
	if filter.Status != "" && incident.Status != filter.Status {
		return false
	}
	if filter.Severity != "" && incident.Severity != filter.Severity {
		return false
	}
	if filter.Priority != nil && incident.Priority != *filter.Priority {
		return false
	}
	if filter.AssignedTo != "" {
		if incident.AssignedTo == nil || *incident.AssignedTo != filter.AssignedTo {
			return false
		}
	}
	return true
}

// SLA returns the current compliance score for the incident.
func (r *Registry) SLA(id string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	target := time.Duration(incident.SLATargetSeconds) * time.Second
	return SLACompliance(r.clock.Now(), incident.CreatedAt, target, incident.ResolvedAt), nil
}

// NotificationStatus returns the per-role notification records for the
// incident.
func (r *Registry) NotificationStatus(id string) ([]domain.StakeholderNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return incident.Clone().Notifications, nil
}

// Stats is a point-in-time summary used by the metrics refresher.
type Stats struct {
	OpenBySeverity map[domain.Severity]int
	QueueDepth     int
	MinSLA         map[domain.Severity]float64
}

// CollectStats computes registry-level gauges under a single read lock.
func (r *Registry) CollectStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	stats := Stats{
		OpenBySeverity: make(map[domain.Severity]int),
		MinSLA:         make(map[domain.Severity]float64),
	}

	for _, incident := range r.incidents {
		if incident.IsResolved() {
			continue
		}
		stats.OpenBySeverity[incident.Severity]++
		if inQueue(incident) {
			stats.QueueDepth++
		}

		target := time.Duration(incident.SLATargetSeconds) * time.Second
		score := SLACompliance(now, incident.CreatedAt, target, nil)
		if current, ok := stats.MinSLA[incident.Severity]; !ok || score < current {
			stats.MinSLA[incident.Severity] = score
		}
	}
	return stats
}
