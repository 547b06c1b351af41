package bus

import "time"

// EventKind identifies the two change streams clients can subscribe to.
type EventKind string

const (
	KindOfferInserted EventKind = "offer_inserted"
	KindStatusChanged EventKind = "status_changed"
)

// Event is one change notification. Delivery is at-least-once; EventID
// is unique so clients can apply duplicates idempotently.
type Event struct {
	EventID   string    `json:"event_id"`
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`

	// offer_inserted fields
	OfferID     string  `json:"offer_id,omitempty"`
	DriverID    string  `json:"driver_id,omitempty"`
	OfferType   string  `json:"offer_type,omitempty"`
	OfferAmount float64 `json:"offer_amount,omitempty"`
	OfferNote   string  `json:"offer_note,omitempty"`

	// status_changed fields
	Status       string  `json:"status,omitempty"`
	FinalAmount  float64 `json:"final_amount,omitempty"`
	CancelReason string  `json:"cancel_reason,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Subscription is one client's stream of session events. Events()
// stays open until Unsubscribe is called or the bus shuts down.
type Subscription interface {
	Events() <-chan Event
	Unsubscribe()
}

// Bus is the capability interface for the realtime notification
// fan-out. The hub implementation is in-process over WebSocket
// boundaries; an SSE or polling bus could replace it without touching
// the coordinator.
type Bus interface {
	Publish(event Event)
	Subscribe(sessionID string, kinds ...EventKind) Subscription
}
