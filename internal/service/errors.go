package service

import "errors"

// Not-found. Session and offer misses are distinct so a caller can tell
// a bad session id from a bad offer id.
var (
	// ErrSessionNotFound is returned when the session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrOfferNotFound is returned when the offer does not exist.
	ErrOfferNotFound = errors.New("offer not found")
)

// Forbidden.
var (
	// ErrNotSessionOwner is returned when the caller does not own the session.
	ErrNotSessionOwner = errors.New("caller does not own this session")

	// ErrNotSelectedDriver is returned when a driver-side progression is
	// attempted by someone other than the selected driver.
	ErrNotSelectedDriver = errors.New("caller is not the selected driver")
)

// Invalid state.
var (
	// ErrInvalidTransition is returned when the operation is not legal
	// from the session's current status.
	ErrInvalidTransition = errors.New("operation not legal in current session state")

	// ErrSessionNotAcceptingOffers is returned when an offer is submitted
	// against a session not in discovery.
	ErrSessionNotAcceptingOffers = errors.New("session not accepting offers")

	// ErrSessionNotInDiscovery is returned when a selection targets a
	// session that has already left discovery, e.g. the caller lost a
	// selection race or the session was canceled.
	ErrSessionNotInDiscovery = errors.New("session no longer in discovery")

	// ErrNoFurtherWaves is returned when a discovery expansion is
	// requested but every configured radius has been used.
	ErrNoFurtherWaves = errors.New("no further discovery waves available")
)

// Stale offer.
var (
	// ErrOfferNotPending is returned when the chosen offer has already
	// been resolved (accepted, rejected or expired).
	ErrOfferNotPending = errors.New("offer no longer pending")

	// ErrOfferExpired is returned when the chosen offer's expiry has
	// passed. The offer is marked expired as a side effect.
	ErrOfferExpired = errors.New("offer expired")

	// ErrOfferSessionMismatch is returned when the offer belongs to a
	// different session.
	ErrOfferSessionMismatch = errors.New("offer does not belong to this session")
)

// Validation.
var (
	// ErrInvalidOwnerID is returned when the request carries no identity.
	ErrInvalidOwnerID = errors.New("invalid owner id")

	// ErrInvalidSessionID is returned when the session id is empty.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidOfferID is returned when the offer id is empty.
	ErrInvalidOfferID = errors.New("invalid offer id")

	// ErrInvalidDriverID is returned when the driver id is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidOriginLocation is returned when origin coordinates are invalid.
	ErrInvalidOriginLocation = errors.New("invalid origin location")

	// ErrInvalidDestinationLocation is returned when destination coordinates are invalid.
	ErrInvalidDestinationLocation = errors.New("invalid destination location")

	// ErrInvalidFareAmount is returned when the fare amount is not positive.
	ErrInvalidFareAmount = errors.New("invalid fare amount")

	// ErrInvalidRequestType is returned when the request type is unknown.
	ErrInvalidRequestType = errors.New("invalid request type")

	// ErrMissingTargetDriver is returned when a direct session names no driver.
	ErrMissingTargetDriver = errors.New("direct request requires a target driver")

	// ErrInvalidOfferType is returned when the offer type is unknown.
	ErrInvalidOfferType = errors.New("invalid offer type")

	// ErrInvalidOfferAmount is returned when a counter offer has a
	// non-positive amount, or an accept offer carries one.
	ErrInvalidOfferAmount = errors.New("invalid offer amount")
)
