package repository

import (
	"context"

	"ridebroker/internal/domain"
)

// EventRepository defines the persistence operations for the append-only
// audit trail. There is deliberately no update or delete.
type EventRepository interface {
	// Append persists a new event.
	Append(ctx context.Context, event *domain.RideEvent) error

	// ListBySession returns a session's events in append order.
	ListBySession(ctx context.Context, sessionID string) ([]*domain.RideEvent, error)
}
