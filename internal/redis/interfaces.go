package redis

import (
	"context"
	"time"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// NotifiedStoreInterface defines the interface for per-session wave dedupe.
type NotifiedStoreInterface interface {
	MarkNotified(ctx context.Context, sessionID, driverID string) (bool, error)
	WasNotified(ctx context.Context, sessionID, driverID string) (bool, error)
	NotifiedCount(ctx context.Context, sessionID string) (int64, error)
}

// CacheStoreInterface defines the interface for read-path caching.
type CacheStoreInterface interface {
	GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	SetSessionSummary(ctx context.Context, summary *SessionSummary) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ NotifiedStoreInterface = (*NotifiedStore)(nil)
	_ CacheStoreInterface    = (*CacheStore)(nil)
)
