package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"ridebroker/internal/domain"
)

// EventRepository is a PostgreSQL implementation of repository.EventRepository.
type EventRepository struct {
	q Querier
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{q: db}
}

// NewEventRepositoryWithTx creates an event repository using a transaction.
func NewEventRepositoryWithTx(tx *sql.Tx) *EventRepository {
	return &EventRepository{q: tx}
}

// Append persists a new event.
func (r *EventRepository) Append(ctx context.Context, e *domain.RideEvent) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ride_events (id, session_id, event_type, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.SessionID, string(e.Type), e.ActorID, metadata, e.CreatedAt)

	return err
}

// ListBySession returns a session's events in append order.
func (r *EventRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.RideEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, event_type, actor_id, metadata, created_at
		FROM ride_events WHERE session_id = $1 ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.RideEvent
	for rows.Next() {
		var e domain.RideEvent
		var eventType string
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &eventType, &e.ActorID, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(eventType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
