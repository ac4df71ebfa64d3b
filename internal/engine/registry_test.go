package engine

import (
	"context"
	"testing"
	"time"

	"github.com/bracketops/incidentd/internal/clock"
	"github.com/bracketops/incidentd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(baseTime)
	return NewRegistry(fake, nil), fake
}

func createTestIncident(t *testing.T, r *Registry, severity domain.Severity) *domain.Incident {
	t.Helper()
	incident, err := r.CreateIncident(context.Background(), CreateIncidentInput{
		Title:           "suspicious login activity",
		Category:        "unauthorized_access",
		Severity:        severity,
		DetectionSource: "siem",
	})
	require.NoError(t, err)
	return incident
}

func applyEvent(t *testing.T, r *Registry, event *domain.Event) *domain.Incident {
	t.Helper()
	incident, err := r.ApplyEvent(context.Background(), event)
	require.NoError(t, err)
	return incident
}

func completeAllPhases(t *testing.T, r *Registry, incidentID string) *domain.Incident {
	t.Helper()
	var incident *domain.Incident
	for _, name := range domain.PhaseOrder {
		incident = applyEvent(t, r, &domain.Event{
			Type:       domain.EventPhaseAdvanced,
			IncidentID: incidentID,
			Phase:      &domain.PhasePayload{Name: name},
		})
	}
	return incident
}

func TestRegistry_CreateIncident(t *testing.T) {
	r, _ := newTestRegistry(t)

	incident := createTestIncident(t, r, domain.SeverityCritical)

	assert.NotEmpty(t, incident.ID)
	assert.Equal(t, domain.StatusActive, incident.Status)
	assert.Equal(t, domain.SeverityCritical, incident.Severity)
	assert.Equal(t, domain.PriorityHighest, incident.Priority)
	assert.Equal(t, int64(3600), incident.SLATargetSeconds)
	assert.Equal(t, baseTime, incident.CreatedAt)
	assert.Len(t, incident.Phases, 6)
	for _, phase := range incident.Phases {
		assert.False(t, phase.Completed)
	}
}

func TestRegistry_CreateIncident_SLATargets(t *testing.T) {
	tests := []struct {
		severity        domain.Severity
		targetSeconds   int64
		defaultPriority int
	}{
		{domain.SeverityCritical, 3600, 0},
		{domain.SeverityHigh, 14400, 1},
		{domain.SeverityMedium, 43200, 2},
		{domain.SeverityLow, 86400, 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			r, _ := newTestRegistry(t)
			incident := createTestIncident(t, r, tt.severity)
			assert.Equal(t, tt.targetSeconds, incident.SLATargetSeconds)
			assert.Equal(t, tt.defaultPriority, incident.Priority)
		})
	}
}

func TestRegistry_CreateIncident_Validation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateIncidentInput
	}{
		{"missing title", CreateIncidentInput{Category: "phishing", Severity: domain.SeverityLow, DetectionSource: "siem"}},
		{"missing category", CreateIncidentInput{Title: "t", Severity: domain.SeverityLow, DetectionSource: "siem"}},
		{"missing detection source", CreateIncidentInput{Title: "t", Category: "phishing", Severity: domain.SeverityLow}},
		{"unknown severity", CreateIncidentInput{Title: "t", Category: "phishing", Severity: "extreme", DetectionSource: "siem"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreateIncident(ctx, tt.input)
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}

	assert.Empty(t, r.ListIncidents(ListFilter{}))
}

func TestRegistry_CreateIncident_PriorityOverride(t *testing.T) {
	r, _ := newTestRegistry(t)

	priority := 2
	incident, err := r.CreateIncident(context.Background(), CreateIncidentInput{
		Title:           "low priority critical",
		Category:        "malware",
		Severity:        domain.SeverityCritical,
		DetectionSource: "edr",
		Priority:        &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, incident.Priority)

	bad := 7
	_, err = r.CreateIncident(context.Background(), CreateIncidentInput{
		Title:           "bad priority",
		Category:        "malware",
		Severity:        domain.SeverityCritical,
		DetectionSource: "edr",
		Priority:        &bad,
	})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestRegistry_ApplyEvent_UnknownIncident(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.ApplyEvent(context.Background(), &domain.Event{
		Type:       domain.EventPhaseAdvanced,
		IncidentID: "nope",
		Phase:      &domain.PhasePayload{Name: domain.PhaseDetection},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ApplyEvent_InvalidEnvelope(t *testing.T) {
	r, _ := newTestRegistry(t)

	tests := []struct {
		name  string
		event *domain.Event
	}{
		{"unknown type", &domain.Event{Type: "explosion"}},
		{"missing payload", &domain.Event{Type: domain.EventPhaseAdvanced, IncidentID: "x"}},
		{"missing incident id", &domain.Event{Type: domain.EventPhaseAdvanced, Phase: &domain.PhasePayload{Name: domain.PhaseDetection}}},
		{"detected with incident id", &domain.Event{Type: domain.EventIncidentDetected, IncidentID: "x", Detected: &domain.DetectedPayload{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ApplyEvent(context.Background(), tt.event)
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestRegistry_TerminalState(t *testing.T) {
	r, _ := newTestRegistry(t)
	incident := createTestIncident(t, r, domain.SeverityHigh)
	completeAllPhases(t, r, incident.ID)

	_, err := r.ApplyEvent(context.Background(), &domain.Event{
		Type:       domain.EventPriorityChanged,
		IncidentID: incident.ID,
		Priority:   &domain.PriorityPayload{Priority: 0},
	})
	assert.ErrorIs(t, err, ErrTerminalState)

	// Notification tracking continues after resolution
	applyEvent(t, r, &domain.Event{
		Type:         domain.EventNotificationSent,
		IncidentID:   incident.ID,
		Notification: &domain.NotificationPayload{Role: "legal", Method: domain.NotificationMethodEmail},
	})
	updated := applyEvent(t, r, &domain.Event{
		Type:         domain.EventNotificationAcked,
		IncidentID:   incident.ID,
		Notification: &domain.NotificationPayload{Role: "legal"},
	})
	require.Len(t, updated.Notifications, 1)
	assert.NotNil(t, updated.Notifications[0].AcknowledgedAt)
}

func TestRegistry_SnapshotImmutability(t *testing.T) {
	r, _ := newTestRegistry(t)
	incident := createTestIncident(t, r, domain.SeverityMedium)

	// Mutating a snapshot must not leak into the registry
	incident.Title = "tampered"
	incident.Phases[0].Completed = true
	incident.ThreatActors = append(incident.ThreatActors, "mallory")

	fresh, err := r.GetIncident(incident.ID)
	require.NoError(t, err)
	assert.Equal(t, "suspicious login activity", fresh.Title)
	assert.False(t, fresh.Phases[0].Completed)
	assert.Empty(t, fresh.ThreatActors)
}

func TestRegistry_Atomicity(t *testing.T) {
	r, _ := newTestRegistry(t)
	incident := createTestIncident(t, r, domain.SeverityMedium)

	// Out-of-order phase must leave the incident untouched
	_, err := r.ApplyEvent(context.Background(), &domain.Event{
		Type:       domain.EventPhaseAdvanced,
		IncidentID: incident.ID,
		Phase:      &domain.PhasePayload{Name: domain.PhaseRecovery},
	})
	require.ErrorIs(t, err, ErrOutOfOrderPhase)

	fresh, err := r.GetIncident(incident.ID)
	require.NoError(t, err)
	assert.Equal(t, incident.UpdatedAt, fresh.UpdatedAt)
	for _, phase := range fresh.Phases {
		assert.False(t, phase.Completed)
	}
}

func TestRegistry_ListIncidents_Filters(t *testing.T) {
	r, fake := newTestRegistry(t)
	ctx := context.Background()

	critical := createTestIncident(t, r, domain.SeverityCritical)
	fake.Advance(time.Minute)
	low := createTestIncident(t, r, domain.SeverityLow)
	fake.Advance(time.Minute)
	analyst := "alice"
	assigned, err := r.CreateIncident(ctx, CreateIncidentInput{
		Title:           "data exfiltration",
		Category:        "data_breach",
		Severity:        domain.SeverityHigh,
		DetectionSource: "dlp",
	})
	require.NoError(t, err)
	applyEvent(t, r, &domain.Event{
		Type:       domain.EventAssigneeChanged,
		IncidentID: assigned.ID,
		Assignee:   &domain.AssigneePayload{AssignedTo: &analyst},
	})

	all := r.ListIncidents(ListFilter{})
	require.Len(t, all, 3)
	// Ordered by creation time
	assert.Equal(t, critical.ID, all[0].ID)
	assert.Equal(t, low.ID, all[1].ID)
	assert.Equal(t, assigned.ID, all[2].ID)

	bySeverity := r.ListIncidents(ListFilter{Severity: domain.SeverityCritical})
	require.Len(t, bySeverity, 1)
	assert.Equal(t, critical.ID, bySeverity[0].ID)

	priority := 3
	byPriority := r.ListIncidents(ListFilter{Priority: &priority})
	require.Len(t, byPriority, 1)
	assert.Equal(t, low.ID, byPriority[0].ID)

	byAssignee := r.ListIncidents(ListFilter{AssignedTo: "alice"})
	require.Len(t, byAssignee, 1)
	assert.Equal(t, assigned.ID, byAssignee[0].ID)

	assert.Empty(t, r.ListIncidents(ListFilter{Status: domain.StatusResolved}))
}

func TestRegistry_SLA(t *testing.T) {
	r, fake := newTestRegistry(t)
	incident := createTestIncident(t, r, domain.SeverityCritical)

	fake.Advance(1800 * time.Second)
	score, err := r.SLA(incident.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, score, 0.001)

	fake.Advance(400 * time.Second)
	completeAllPhases(t, r, incident.ID)

	// Resolved at 2200s against a 3600s target, capped at 100
	fake.Advance(24 * time.Hour)
	score, err = r.SLA(incident.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100, score, 0.001)

	_, err = r.SLA("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Reclassify(t *testing.T) {
	r, _ := newTestRegistry(t)
	incident := createTestIncident(t, r, domain.SeverityLow)

	updated := applyEvent(t, r, &domain.Event{
		Type:       domain.EventIncidentReclassified,
		IncidentID: incident.ID,
		Reclassify: &domain.ReclassifyPayload{Severity: domain.SeverityCritical},
	})

	assert.Equal(t, domain.SeverityCritical, updated.Severity)
	assert.Equal(t, domain.PriorityHighest, updated.Priority)
	// SLA target stays as derived at creation
	assert.Equal(t, int64(86400), updated.SLATargetSeconds)

	_, err := r.ApplyEvent(context.Background(), &domain.Event{
		Type:       domain.EventIncidentReclassified,
		IncidentID: incident.ID,
		Reclassify: &domain.ReclassifyPayload{Severity: "extreme"},
	})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestRegistry_Replay(t *testing.T) {
	source, fake := newTestRegistry(t)
	journal := &captureJournal{}
	source.journal = journal

	incident := createTestIncident(t, source, domain.SeverityHigh)
	fake.Advance(time.Minute)
	applyEvent(t, source, &domain.Event{
		Type:       domain.EventPhaseAdvanced,
		IncidentID: incident.ID,
		Phase:      &domain.PhasePayload{Name: domain.PhaseDetection},
	})
	fake.Advance(time.Minute)
	applyEvent(t, source, &domain.Event{
		Type:       domain.EventActionRequested,
		IncidentID: incident.ID,
		Action:     &domain.ActionPayload{Name: "isolate host", Kind: domain.ActionKindManual},
	})

	replayed := NewRegistry(clock.NewFake(fake.Now()), nil)
	require.NoError(t, replayed.Replay(journal.events))

	original, err := source.GetIncident(incident.ID)
	require.NoError(t, err)
	rebuilt, err := replayed.GetIncident(incident.ID)
	require.NoError(t, err)

	assert.Equal(t, original, rebuilt)
}

func TestRegistry_Replay_JournaledCreation(t *testing.T) {
	r, _ := newTestRegistry(t)

	// Journaled incident_detected events carry the assigned incident ID
	err := r.Replay([]*domain.Event{{
		ID:         "evt-1",
		Type:       domain.EventIncidentDetected,
		IncidentID: "inc-1",
		OccurredAt: baseTime,
		Detected: &domain.DetectedPayload{
			Title:           "suspicious login activity",
			Category:        "unauthorized_access",
			Severity:        domain.SeverityHigh,
			DetectionSource: "siem",
		},
	}})
	require.NoError(t, err)

	incident, err := r.GetIncident("inc-1")
	require.NoError(t, err)
	assert.Equal(t, "inc-1", incident.ID)
	assert.Equal(t, baseTime, incident.CreatedAt)
}

func TestRegistry_DetectedWithIncidentIDRejected(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.ApplyEvent(context.Background(), &domain.Event{
		Type:       domain.EventIncidentDetected,
		IncidentID: "inc-1",
		Detected: &domain.DetectedPayload{
			Title:           "suspicious login activity",
			Category:        "unauthorized_access",
			Severity:        domain.SeverityHigh,
			DetectionSource: "siem",
		},
	})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.Empty(t, r.ListIncidents(ListFilter{}))
}

func TestRegistry_CollectStats(t *testing.T) {
	r, _ := newTestRegistry(t)

	createTestIncident(t, r, domain.SeverityCritical)
	createTestIncident(t, r, domain.SeverityCritical)
	resolved := createTestIncident(t, r, domain.SeverityLow)
	completeAllPhases(t, r, resolved.ID)

	stats := r.CollectStats()
	assert.Equal(t, 2, stats.OpenBySeverity[domain.SeverityCritical])
	assert.Zero(t, stats.OpenBySeverity[domain.SeverityLow])
	assert.Equal(t, 2, stats.QueueDepth)
	assert.Contains(t, stats.MinSLA, domain.SeverityCritical)
}

// captureJournal records appended events in memory.
type captureJournal struct {
	events []*domain.Event
}

func (j *captureJournal) Append(_ context.Context, event *domain.Event) error {
	clone := *event
	j.events = append(j.events, &clone)
	return nil
}
