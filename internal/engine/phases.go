package engine

import (
	"fmt"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
)

// completePhase marks a lifecycle phase complete on the incident.
//
// Transition rule: every phase preceding the named one must already be
// complete. Completing an already-completed phase is an idempotent no-op.
// On success the completion is stamped and the incident status is
// re-derived from the phase set; reaching the final phase stamps
// ResolvedAt.
func completePhase(incident *domain.Incident, name domain.PhaseName, now time.Time) error {
	idx := domain.PhaseIndex(name)
	if idx < 0 {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidEvent, name)
	}

	phase := incident.Phase(name)
	if phase.Completed {
		return nil
	}

	for _, prev := range domain.PhaseOrder[:idx] {
		if !incident.Phase(prev).Completed {
			return fmt.Errorf("%w: %s requires %s first", ErrOutOfOrderPhase, name, prev)
		}
	}

	phase.Completed = true
	stamped := now
	phase.CompletedAt = &stamped

	incident.Status = domain.DeriveStatus(incident.Phases)
	if incident.Status == domain.StatusResolved && incident.ResolvedAt == nil {
		resolved := now
		incident.ResolvedAt = &resolved
	}

	return nil
}

// reclassify amends incident severity after triage. Priority is re-derived
// from the new severity; the SLA target fixed at creation is not touched.
func reclassify(incident *domain.Incident, severity domain.Severity) error {
	if !severity.IsValid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidEvent, severity)
	}
	incident.Severity = severity
	incident.Priority = severity.DefaultPriority()
	return nil
}

func changePriority(incident *domain.Incident, priority int) error {
	if priority < domain.PriorityHighest || priority > domain.PriorityLowest {
		return fmt.Errorf("%w: priority %d out of range", ErrInvalidEvent, priority)
	}
	incident.Priority = priority
	return nil
}
