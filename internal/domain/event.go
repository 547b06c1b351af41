package domain

import "time"

// EventType identifies an entry in the append-only session audit trail.
type EventType string

const (
	EventSessionCreated   EventType = "created"
	EventDiscoveryStarted EventType = "discovery_started"
	EventWaveExpanded     EventType = "wave_expanded"
	EventOfferSubmitted   EventType = "offer_submitted"
	EventOfferAccepted    EventType = "offer_accepted"
	EventSessionConfirmed EventType = "confirmed"
	EventTripStarted      EventType = "trip_started"
	EventSessionCompleted EventType = "completed"
	EventSessionCanceled  EventType = "canceled"
	EventSessionExpired   EventType = "expired"
)

// RideEvent is an append-only audit record. Events are never mutated or
// deleted; they exist to reconstruct history and to debug races.
type RideEvent struct {
	ID        string
	SessionID string
	Type      EventType
	ActorID   string // requester, driver, or "system"
	Metadata  map[string]string
	CreatedAt time.Time
}
