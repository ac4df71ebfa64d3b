package engine

import (
	"fmt"
	"time"

	"github.com/bracketops/incidentd/internal/domain"
	"github.com/google/uuid"
)

// requestAction registers a new remediation action on the incident.
// Automated actions start executing immediately; manual actions stay
// pending until assigned and executed by an operator.
func requestAction(incident *domain.Incident, event *domain.Event, now time.Time) error {
	p := event.Action

	if p.Name == "" {
		return fmt.Errorf("%w: action name is required", ErrInvalidEvent)
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: unknown action kind %q", ErrInvalidEvent, p.Kind)
	}

	action := domain.Action{
		ID:          p.ActionID,
		Name:        p.Name,
		Kind:        p.Kind,
		State:       domain.ActionStatePending,
		RequestedAt: now,
	}
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	// Replay relies on the ID travelling with the journaled event.
	p.ActionID = action.ID

	if p.Kind == domain.ActionKindAutomated {
		action.State = domain.ActionStateExecuting
		incident.AutomatedActions = append(incident.AutomatedActions, action)
		return nil
	}

	incident.ManualActions = append(incident.ManualActions, action)
	return nil
}

// assignAction sets the operator responsible for a manual action.
func assignAction(incident *domain.Incident, p *domain.ActionPayload) error {
	action := incident.Action(p.ActionID)
	if action == nil {
		return fmt.Errorf("%w: %s", ErrActionNotFound, p.ActionID)
	}
	if p.AssignedTo == "" {
		return fmt.Errorf("%w: assignee is required", ErrInvalidEvent)
	}

	assignee := p.AssignedTo
	action.AssignedTo = &assignee
	return nil
}

// executeAction moves an action to executing. A manual action must be
// assigned first. Re-executing a failed action resets it to executing;
// bounding the retry count is the caller's concern, not the engine's.
func executeAction(incident *domain.Incident, actionID string) error {
	action := incident.Action(actionID)
	if action == nil {
		return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
	}

	if action.Kind == domain.ActionKindManual && action.AssignedTo == nil {
		return fmt.Errorf("%w: %s", ErrUnassignedAction, actionID)
	}

	switch action.State {
	case domain.ActionStatePending, domain.ActionStateFailed:
		action.State = domain.ActionStateExecuting
		action.LastError = ""
		return nil
	case domain.ActionStateExecuting:
		return nil
	default:
		return fmt.Errorf("%w: cannot execute %s action %s", ErrInvalidEvent, action.State, actionID)
	}
}

// confirmAction completes an executing action. Confirming an already
// completed action is an idempotent no-op.
func confirmAction(incident *domain.Incident, actionID string, now time.Time) error {
	action := incident.Action(actionID)
	if action == nil {
		return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
	}

	switch action.State {
	case domain.ActionStateCompleted:
		return nil
	case domain.ActionStateExecuting:
		action.State = domain.ActionStateCompleted
		completed := now
		action.CompletedAt = &completed
		return nil
	default:
		return fmt.Errorf("%w: %s is %s", ErrActionNotExecuting, actionID, action.State)
	}
}

// failAction marks an executing action as failed. Failure never blocks
// phase completion; the operator decides whether to retry, replace or
// bypass the action.
func failAction(incident *domain.Incident, actionID, reason string) error {
	action := incident.Action(actionID)
	if action == nil {
		return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
	}

	if action.State != domain.ActionStateExecuting {
		return fmt.Errorf("%w: %s is %s", ErrActionNotExecuting, actionID, action.State)
	}

	action.State = domain.ActionStateFailed
	action.LastError = reason
	return nil
}
