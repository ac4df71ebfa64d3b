package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
)

// EscalationEntry is one row of the derived escalation queue. The queue
// holds no state of its own; it is recomputed from the registry on every
// query.
type EscalationEntry struct {
	IncidentID string          `json:"incident_id"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Priority   int             `json:"priority"`
	Severity   domain.Severity `json:"severity"`
}

// inQueue reports escalation queue membership: a non-resolved incident
// with a pending or executing manual action, or any incomplete phase.
func inQueue(incident *domain.Incident) bool {
	if incident.IsResolved() {
		return false
	}
	return incident.HasPendingManualAction() || incident.HasIncompletePhase()
}

// EscalationQueue returns the full ordered queue.
//
// Ordering is a strict total order: priority ascending (0 most urgent),
// then severity rank descending, then enqueue time ascending so
// long-waiting incidents are not starved within a tier, with incident ID
// as the final tie-break for fully deterministic output.
func (r *Registry) EscalationQueue() []EscalationEntry {
	r.mu.RLock()
	entries := make([]EscalationEntry, 0, len(r.incidents))
	for _, incident := range r.incidents {
		if !inQueue(incident) {
			continue
		}
		entries = append(entries, EscalationEntry{
			IncidentID: incident.ID,
			EnqueuedAt: incident.CreatedAt,
			Priority:   incident.Priority,
			Severity:   incident.Severity,
		})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
			return a.EnqueuedAt.Before(b.EnqueuedAt)
		}
		return a.IncidentID < b.IncidentID
	})
	return entries
}

// Peek returns the top-n queue entries. The queue never errors on empty
// state; it just returns fewer entries.
func (r *Registry) Peek(n int) []EscalationEntry {
	entries := r.EscalationQueue()
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

// TimeInQueue returns how long the incident has been awaiting action.
// Resolved incidents are no longer queued and report zero.
func (r *Registry) TimeInQueue(id string) (time.Duration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !inQueue(incident) {
		return 0, nil
	}
	return r.clock.Now().Sub(incident.CreatedAt), nil
}
