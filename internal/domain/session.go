package domain

import "time"

// SessionStatus represents the lifecycle state of a ride session.
// The string values are part of the wire contract shared with the
// driver-side service and must not be renamed.
type SessionStatus string

const (
	SessionStatusCreated   SessionStatus = "created"
	SessionStatusDiscovery SessionStatus = "discovery"
	SessionStatusHold      SessionStatus = "hold"
	SessionStatusConfirmed SessionStatus = "confirmed"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCanceled  SessionStatus = "canceled"
	SessionStatusExpired   SessionStatus = "expired"
)

// RequestType selects how drivers are discovered for a session.
type RequestType string

const (
	RequestTypeBroadcast RequestType = "broadcast"
	RequestTypeDirect    RequestType = "direct"
)

// Place is a coordinate with a display label.
type Place struct {
	Lat   float64
	Lng   float64
	Label string
	Name  string // optional freeform name, destination only
}

// RideSession is one requested trip from creation through its terminal state.
// Origin, destination, fare amount and fare metadata are immutable after
// creation; everything else advances with the state machine.
type RideSession struct {
	ID          string
	OwnerID     string // authenticated user id or guest-token id
	Origin      Place
	Destination Place

	FareAmount   float64
	FareMetadata []byte // opaque pricing blob, stored verbatim

	RequestType    RequestType
	TargetDriverID string // required iff RequestType == direct

	Status           SessionStatus
	Wave             int
	SelectedDriverID string
	SelectedOfferID  string
	FinalAmount      float64
	QRTokenID        string

	CreatedAt        time.Time
	DiscoveryStartAt time.Time
	LastWaveAt       time.Time
	HoldStartAt      time.Time
	ConfirmedAt      time.Time
	CompletedAt      time.Time
	CanceledAt       time.Time
	CancelReason     string
}

// legalTransitions is the single source of truth for session state
// legality. The flow controller in internal/flow mirrors this table so
// the client cannot render a transition the server would refuse.
var legalTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusCreated:   {SessionStatusDiscovery, SessionStatusCanceled, SessionStatusExpired},
	SessionStatusDiscovery: {SessionStatusHold, SessionStatusCanceled, SessionStatusExpired},
	SessionStatusHold:      {SessionStatusConfirmed, SessionStatusCanceled, SessionStatusExpired},
	SessionStatusConfirmed: {SessionStatusActive, SessionStatusCanceled, SessionStatusExpired},
	SessionStatusActive:    {SessionStatusCompleted, SessionStatusCanceled, SessionStatusExpired},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCanceled, SessionStatusExpired:
		return true
	}
	return false
}

// ValidRequestType reports whether t is a known request type.
func ValidRequestType(t RequestType) bool {
	return t == RequestTypeBroadcast || t == RequestTypeDirect
}
