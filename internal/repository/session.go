package repository

import (
	"context"
	"time"

	"ridebroker/internal/domain"
)

// SessionRepository defines the persistence operations for ride sessions.
type SessionRepository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *domain.RideSession) error

	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id string) (*domain.RideSession, error)

	// GetByIDForUpdate retrieves a session and locks its row for the
	// duration of the enclosing transaction. Outside a transaction it
	// behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.RideSession, error)

	// Update updates an existing session.
	Update(ctx context.Context, session *domain.RideSession) error

	// ListByStatusOlderThan returns sessions in the given status whose
	// reference timestamp predates the cutoff. Which timestamp applies
	// depends on the status: discovery start for discovery, hold start
	// for hold. Used by the expiry sweeper.
	ListByStatusOlderThan(ctx context.Context, status domain.SessionStatus, cutoff time.Time, limit int) ([]*domain.RideSession, error)
}
