package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"ridebroker/internal/domain"
	"ridebroker/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

const driverColumns = `id, active, accepting, service_area_tags`

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`

	d, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// GetByIDs retrieves multiple drivers in one query.
func (r *DriverRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Driver, error) {
	if len(ids) == 0 {
		return map[string]*domain.Driver{}, nil
	}

	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = ANY($1)`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := make(map[string]*domain.Driver, len(ids))
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers[d.ID] = d
	}
	return drivers, rows.Err()
}

// ListFavorites returns the drivers a rider has favorited.
func (r *DriverRepository) ListFavorites(ctx context.Context, riderID string) ([]*domain.Driver, error) {
	query := `
		SELECT d.id, d.active, d.accepting, d.service_area_tags
		FROM drivers d
		JOIN favorite_drivers f ON f.driver_id = d.id
		WHERE f.rider_id = $1
		ORDER BY f.created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var d domain.Driver
	var tags pq.StringArray
	if err := row.Scan(&d.ID, &d.Active, &d.Accepting, &tags); err != nil {
		return nil, err
	}
	d.ServiceAreaTags = []string(tags)
	return &d, nil
}
