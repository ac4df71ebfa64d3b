package domain

import "time"

// ActionKind distinguishes tooling-executed actions from ones requiring a
// human operator.
type ActionKind string

// Action kinds.
const (
	ActionKindAutomated ActionKind = "automated"
	ActionKindManual    ActionKind = "manual"
)

// ActionState represents the execution state of a remediation action.
type ActionState string

// Action states.
const (
	ActionStatePending   ActionState = "pending"
	ActionStateExecuting ActionState = "executing"
	ActionStateCompleted ActionState = "completed"
	ActionStateFailed    ActionState = "failed"
)

// Action is a single remediation step tied to an incident. Automated
// actions move pending -> executing on request and complete via an
// engine-internal confirmation; manual actions require an explicit
// assign -> execute -> confirm sequence.
type Action struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Kind        ActionKind  `json:"kind"`
	State       ActionState `json:"state"`
	AssignedTo  *string     `json:"assigned_to"`
	RequestedAt time.Time   `json:"requested_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	LastError   string      `json:"last_error,omitempty"`
}

// IsValid checks if the action kind is valid.
func (k ActionKind) IsValid() bool {
	return k == ActionKindAutomated || k == ActionKindManual
}

// IsTerminal reports whether the state is completed or failed.
func (s ActionState) IsTerminal() bool {
	return s == ActionStateCompleted || s == ActionStateFailed
}
