package repository

import (
	"context"

	"ridebroker/internal/domain"
)

// DriverRepository defines read access to driver records. Driver
// profiles are owned by the driver-side service; the coordinator only
// reads the fields discovery needs.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByIDs retrieves multiple drivers in one query. Missing ids are
	// silently absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Driver, error)

	// ListFavorites returns the drivers a rider has favorited.
	ListFavorites(ctx context.Context, riderID string) ([]*domain.Driver, error)
}
