package domain

import "time"

// OfferType distinguishes accepting the requested fare from countering it.
type OfferType string

const (
	OfferTypeAccept  OfferType = "accept"
	OfferTypeCounter OfferType = "counter"
)

// OfferStatus represents the lifecycle state of a driver's offer.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusExpired  OfferStatus = "expired"
)

// Offer is one driver's response to a session. Amount is meaningful only
// for counter offers; accept offers implicitly bid the requested fare.
type Offer struct {
	ID        string
	SessionID string
	DriverID  string
	Type      OfferType
	Amount    float64 // zero for accept offers
	Note      string
	Status    OfferStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

// EffectiveAmount returns the price the rider would pay if this offer wins.
func (o *Offer) EffectiveAmount(requestedFare float64) float64 {
	if o.Type == OfferTypeCounter {
		return o.Amount
	}
	return requestedFare
}

// Lapsed reports whether the offer's expiry has passed at the given instant.
func (o *Offer) Lapsed(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}
