//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/bracketops/incidentd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidentLifecycle(t *testing.T) {
	incident := createIncident(t, "critical")
	assert.Equal(t, domain.StatusActive, incident.Status)
	assert.Equal(t, 0, incident.Priority)
	assert.Equal(t, int64(3600), incident.SLATargetSeconds)

	updated := advancePhase(t, incident.ID, "detection")
	assert.Equal(t, domain.StatusActive, updated.Status)

	updated = advancePhase(t, incident.ID, "analysis")
	assert.Equal(t, domain.StatusInvestigating, updated.Status)

	updated = advancePhase(t, incident.ID, "containment")
	assert.Equal(t, domain.StatusContained, updated.Status)

	updated = advancePhase(t, incident.ID, "eradication")
	assert.Equal(t, domain.StatusContained, updated.Status)

	updated = advancePhase(t, incident.ID, "recovery")
	assert.Equal(t, domain.StatusMitigated, updated.Status)

	updated = advancePhase(t, incident.ID, "lessons_learned")
	assert.Equal(t, domain.StatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)

	// Resolution is terminal for classification events
	ingestEvent(t, map[string]interface{}{
		"type":        "priority_changed",
		"incident_id": incident.ID,
		"priority":    map[string]int{"priority": 2},
	}, http.StatusConflict)
}

func TestPhaseOrderEnforced(t *testing.T) {
	incident := createIncident(t, "high")

	ingestEvent(t, map[string]interface{}{
		"type":        "phase_advanced",
		"incident_id": incident.ID,
		"phase":       map[string]string{"name": "recovery"},
	}, http.StatusConflict)
}

func TestActionLifecycle(t *testing.T) {
	incident := createIncident(t, "high")

	withAction := ingestEvent(t, map[string]interface{}{
		"type":        "action_requested",
		"incident_id": incident.ID,
		"action":      map[string]string{"name": "isolate host", "kind": "manual"},
	}, http.StatusOK)
	require.Len(t, withAction.ManualActions, 1)
	actionID := withAction.ManualActions[0].ID

	ingestEvent(t, map[string]interface{}{
		"type":        "action_executed",
		"incident_id": incident.ID,
		"action":      map[string]string{"action_id": actionID},
	}, http.StatusConflict)

	ingestEvent(t, map[string]interface{}{
		"type":        "action_assigned",
		"incident_id": incident.ID,
		"action":      map[string]string{"action_id": actionID, "assigned_to": "bob"},
	}, http.StatusOK)
	ingestEvent(t, map[string]interface{}{
		"type":        "action_executed",
		"incident_id": incident.ID,
		"action":      map[string]string{"action_id": actionID},
	}, http.StatusOK)
	confirmed := ingestEvent(t, map[string]interface{}{
		"type":        "action_confirmed",
		"incident_id": incident.ID,
		"action":      map[string]string{"action_id": actionID},
	}, http.StatusOK)

	assert.Equal(t, domain.ActionStateCompleted, confirmed.ManualActions[0].State)
}

func TestNotificationEndpoints(t *testing.T) {
	incident := createIncident(t, "high")

	ingestEvent(t, map[string]interface{}{
		"type":         "notification_sent",
		"incident_id":  incident.ID,
		"notification": map[string]string{"role": "ciso", "method": "email"},
	}, http.StatusOK)
	ingestEvent(t, map[string]interface{}{
		"type":         "notification_acked",
		"incident_id":  incident.ID,
		"notification": map[string]string{"role": "ciso"},
	}, http.StatusOK)

	resp, err := client.GET(fmt.Sprintf("/api/v1/incidents/%s/notifications", incident.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []domain.StakeholderNotification
	decodeData(t, resp, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "ciso", records[0].Role)
	assert.NotNil(t, records[0].NotifiedAt)
	assert.NotNil(t, records[0].AcknowledgedAt)
}

func TestSLAEndpoint(t *testing.T) {
	incident := createIncident(t, "medium")

	resp, err := client.GET(fmt.Sprintf("/api/v1/incidents/%s/sla", incident.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sla struct {
		IncidentID       string  `json:"incident_id"`
		ComplianceScore  float64 `json:"compliance_score"`
		SLATargetSeconds int64   `json:"sla_target_seconds"`
		Resolved         bool    `json:"resolved"`
	}
	decodeData(t, resp, &sla)
	assert.Equal(t, incident.ID, sla.IncidentID)
	assert.Equal(t, int64(43200), sla.SLATargetSeconds)
	assert.False(t, sla.Resolved)
	assert.InDelta(t, 100.0, sla.ComplianceScore, 1.0)
}

func TestEscalationEndpoints(t *testing.T) {
	incident := createIncident(t, "critical")

	resp, err := client.GET("/api/v1/escalations")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var queue []struct {
		IncidentID string `json:"incident_id"`
		Priority   int    `json:"priority"`
	}
	decodeData(t, resp, &queue)

	found := false
	for _, entry := range queue {
		if entry.IncidentID == incident.ID {
			found = true
		}
	}
	assert.True(t, found, "new incident should be queued for escalation")

	resp, err = client.GET("/api/v1/escalations/" + incident.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		IncidentID string `json:"incident_id"`
		Queued     bool   `json:"queued"`
	}
	decodeData(t, resp, &status)
	assert.Equal(t, incident.ID, status.IncidentID)
}

func TestTimelineEndpoint(t *testing.T) {
	incident := createIncident(t, "low")
	advancePhase(t, incident.ID, "detection")
	advancePhase(t, incident.ID, "analysis")

	resp, err := client.GET(fmt.Sprintf("/api/v1/incidents/%s/timeline", incident.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []domain.Event
	decodeData(t, resp, &events)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventIncidentDetected, events[0].Type)
	assert.Equal(t, domain.EventPhaseAdvanced, events[1].Type)
	assert.Equal(t, domain.EventPhaseAdvanced, events[2].Type)
}

func TestHealthEndpoints(t *testing.T) {
	client.SetT(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}
