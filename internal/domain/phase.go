package domain

import "time"

// PhaseName identifies one of the six fixed lifecycle phases.
type PhaseName string

// Lifecycle phases, in strict completion order. A phase may only be
// completed once every preceding phase is complete; skipping is never
// allowed.
const (
	PhaseDetection      PhaseName = "detection"
	PhaseAnalysis       PhaseName = "analysis"
	PhaseContainment    PhaseName = "containment"
	PhaseEradication    PhaseName = "eradication"
	PhaseRecovery       PhaseName = "recovery"
	PhaseLessonsLearned PhaseName = "lessons_learned"
)

// PhaseOrder is the canonical phase sequence.
var PhaseOrder = []PhaseName{
	PhaseDetection,
	PhaseAnalysis,
	PhaseContainment,
	PhaseEradication,
	PhaseRecovery,
	PhaseLessonsLearned,
}

// Phase holds completion state for a single lifecycle phase.
type Phase struct {
	Name        PhaseName  `json:"name"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// NewPhases returns the six phases of a fresh incident, all incomplete.
func NewPhases() []Phase {
	phases := make([]Phase, 0, len(PhaseOrder))
	for _, name := range PhaseOrder {
		phases = append(phases, Phase{Name: name})
	}
	return phases
}

// IsValid checks if the phase name is one of the six known phases.
func (n PhaseName) IsValid() bool {
	return PhaseIndex(n) >= 0
}

// PhaseIndex returns the position of the phase in the canonical order,
// or -1 for an unknown name.
func PhaseIndex(name PhaseName) int {
	for idx, n := range PhaseOrder {
		if n == name {
			return idx
		}
	}
	return -1
}

// DeriveStatus computes incident status from the completed phase set.
// The phase chain is strict, so the completed set is always a prefix of
// the canonical order:
//
//	nothing or only detection done  -> active
//	detection+analysis done         -> investigating
//	containment done                -> contained
//	eradication+recovery done       -> mitigated
//	all six done                    -> resolved
//
// The mapping is pure and idempotent; status can always be re-derived
// from phases alone.
func DeriveStatus(phases []Phase) Status {
	done := 0
	for _, name := range PhaseOrder {
		completed := false
		for _, p := range phases {
			if p.Name == name {
				completed = p.Completed
				break
			}
		}
		if !completed {
			break
		}
		done++
	}

	switch {
	case done >= len(PhaseOrder):
		return StatusResolved
	case done >= 5:
		return StatusMitigated
	case done >= 3:
		return StatusContained
	case done >= 2:
		return StatusInvestigating
	default:
		return StatusActive
	}
}
