package repository

import (
	"context"
	"time"

	"ridebroker/internal/domain"
)

// OfferRepository defines the persistence operations for offers.
type OfferRepository interface {
	// Create persists a new offer.
	Create(ctx context.Context, offer *domain.Offer) error

	// GetByID retrieves an offer by ID.
	GetByID(ctx context.Context, id string) (*domain.Offer, error)

	// ListBySession returns every offer for a session, oldest first.
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Offer, error)

	// CountPendingBySession returns the number of pending offers for a
	// session.
	CountPendingBySession(ctx context.Context, sessionID string) (int, error)

	// UpdateStatus moves an offer to a new status.
	UpdateStatus(ctx context.Context, id string, status domain.OfferStatus) error

	// RejectPendingExcept marks every pending offer of the session as
	// rejected, except the named one. Returns the ids it rejected.
	RejectPendingExcept(ctx context.Context, sessionID, keepOfferID string) ([]string, error)

	// ExpirePendingBefore marks pending offers whose expiry predates the
	// cutoff as expired. Scoped to one session when sessionID is
	// non-empty. Returns the ids it expired.
	ExpirePendingBefore(ctx context.Context, sessionID string, cutoff time.Time) ([]string, error)
}
