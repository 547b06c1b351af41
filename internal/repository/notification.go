package repository

import (
	"context"

	"ridebroker/internal/domain"
)

// NotificationRepository defines persistence for the durable driver
// inbox records written by discovery waves.
type NotificationRepository interface {
	// Create persists one notification record.
	Create(ctx context.Context, n *domain.DriverNotification) error

	// ListByDriver returns a driver's notifications, newest first.
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.DriverNotification, error)
}
