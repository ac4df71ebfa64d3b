// Package postgres provides the PostgreSQL implementation of the event
// journal repository.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bracketops/incidentd/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the journal.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL journal repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Append persists an accepted event at the end of the journal.
func (r *Repository) Append(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	query := `
		INSERT INTO journal_events (id, incident_id, event_type, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Exec(ctx, query,
		event.ID,
		event.IncidentID,
		string(event.Type),
		event.OccurredAt,
		payload,
	); err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

// ListByIncident returns the incident's events in append order.
func (r *Repository) ListByIncident(ctx context.Context, incidentID string) ([]*domain.Event, error) {
	query := `
		SELECT payload
		FROM journal_events
		WHERE incident_id = $1
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list journal events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListAll returns every journaled event in append order.
func (r *Repository) ListAll(ctx context.Context) ([]*domain.Event, error) {
	query := `
		SELECT payload
		FROM journal_events
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list journal events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan journal event: %w", err)
		}

		var event domain.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("unmarshal journal event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal events: %w", err)
	}
	return events, nil
}
