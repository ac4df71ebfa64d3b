package engine

import "errors"

// Registry errors. All are locally recoverable: the caller decides whether
// to retry, surface to a human, or discard. No error leaves partial state
// behind.
var (
	// ErrNotFound is returned for unknown incident IDs.
	ErrNotFound = errors.New("incident not found")

	// ErrActionNotFound is returned for unknown action IDs.
	ErrActionNotFound = errors.New("action not found")

	// ErrInvalidEvent is returned for malformed or semantically invalid
	// events before any registry state is touched.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrOutOfOrderPhase is returned when a phase is completed before all
	// of its predecessors.
	ErrOutOfOrderPhase = errors.New("phase completed out of order")

	// ErrUnassignedAction is returned when a manual action is executed
	// before being assigned.
	ErrUnassignedAction = errors.New("manual action executed before assignment")

	// ErrActionNotExecuting is returned when a confirm or fail event
	// arrives for an action that is not executing.
	ErrActionNotExecuting = errors.New("action is not executing")

	// ErrNotNotified is returned when a stakeholder acknowledges a
	// notification that was never sent.
	ErrNotNotified = errors.New("stakeholder was not notified")

	// ErrTerminalState is returned for mutations on a resolved incident
	// outside the allowed post-resolution operations.
	ErrTerminalState = errors.New("incident is resolved")
)
