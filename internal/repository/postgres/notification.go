package postgres

import (
	"context"
	"database/sql"

	"ridebroker/internal/domain"
)

// NotificationRepository is a PostgreSQL implementation of
// repository.NotificationRepository.
type NotificationRepository struct {
	q Querier
}

// NewNotificationRepository creates a new PostgreSQL notification repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{q: db}
}

// Create persists one notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.DriverNotification) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO driver_notifications (id, session_id, driver_id, kind, wave, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.SessionID, n.DriverID, string(n.Kind), n.Wave, n.Message, n.CreatedAt)

	return err
}

// ListByDriver returns a driver's notifications, newest first.
func (r *NotificationRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.DriverNotification, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, driver_id, kind, wave, message, created_at
		FROM driver_notifications WHERE driver_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.DriverNotification
	for rows.Next() {
		var n domain.DriverNotification
		var kind string
		if err := rows.Scan(&n.ID, &n.SessionID, &n.DriverID, &kind, &n.Wave, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = domain.NotificationKind(kind)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}
