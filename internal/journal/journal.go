// Package journal defines the append-only audit log of accepted engine
// events. The live registry stays in memory; the journal is the durable
// record used for incident timelines and for rebuilding state on startup.
package journal

import (
	"context"
	"errors"

	"github.com/bracketops/incidentd/internal/domain"
)

// ErrEventNotFound is returned when a journal entry cannot be located.
var ErrEventNotFound = errors.New("journal event not found")

// Repository provides access to the event journal. Entries are immutable;
// there is no update or delete.
type Repository interface {
	// Append persists an accepted event at the end of the journal.
	Append(ctx context.Context, event *domain.Event) error

	// ListByIncident returns the incident's events in append order.
	ListByIncident(ctx context.Context, incidentID string) ([]*domain.Event, error)

	// ListAll returns every journaled event in append order, for replay.
	ListAll(ctx context.Context) ([]*domain.Event, error)
}
