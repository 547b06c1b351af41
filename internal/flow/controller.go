// Package flow mirrors a ride session's state on the client side of
// the realtime stream. The controller applies bus events idempotently
// and exposes a render-ready snapshot, so a UI never shows a state the
// coordinator would refuse.
package flow

import (
	"sort"
	"sync"
	"time"

	"ridebroker/internal/bus"
	"ridebroker/internal/domain"
)

// OfferView is one offer as the client sees it.
type OfferView struct {
	OfferID    string
	DriverID   string
	Type       string
	Amount     float64
	Note       string
	ReceivedAt time.Time
}

// Snapshot is the controller's current picture of the session.
type Snapshot struct {
	SessionID    string
	Phase        domain.SessionStatus
	Offers       []OfferView // cheapest effective price first
	FinalAmount  float64
	CancelReason string
}

// Controller replays session events into a local mirror. Events arrive
// at-least-once and possibly out of order; duplicates are dropped by
// event id and a status event that the session's state machine could
// not legally reach from the current phase is ignored rather than
// applied backwards.
type Controller struct {
	mu sync.Mutex

	sessionID     string
	requestedFare float64
	phase         domain.SessionStatus
	offers        map[string]OfferView
	finalAmount   float64
	cancelReason  string
	applied       map[string]struct{}
}

// NewController creates a mirror for one session starting in the given
// phase. requestedFare is used to rank accept offers, which carry no
// amount of their own.
func NewController(sessionID string, phase domain.SessionStatus, requestedFare float64) *Controller {
	return &Controller{
		sessionID:     sessionID,
		requestedFare: requestedFare,
		phase:         phase,
		offers:        make(map[string]OfferView),
		applied:       make(map[string]struct{}),
	}
}

// Apply folds one event into the mirror. It reports whether the event
// changed anything; duplicates, events for other sessions and illegal
// status jumps all return false.
func (c *Controller) Apply(event bus.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.SessionID != c.sessionID {
		return false
	}
	if _, seen := c.applied[event.EventID]; seen {
		return false
	}

	switch event.Kind {
	case bus.KindOfferInserted:
		if c.phase != domain.SessionStatusDiscovery {
			return false
		}
		c.offers[event.OfferID] = OfferView{
			OfferID:    event.OfferID,
			DriverID:   event.DriverID,
			Type:       event.OfferType,
			Amount:     event.OfferAmount,
			Note:       event.OfferNote,
			ReceivedAt: event.OccurredAt,
		}

	case bus.KindStatusChanged:
		next := domain.SessionStatus(event.Status)
		if next == c.phase {
			// Refreshed terminal details still apply.
			c.absorbStatusDetails(event)
			c.applied[event.EventID] = struct{}{}
			return false
		}
		if !domain.CanTransition(c.phase, next) {
			return false
		}
		c.phase = next
		c.absorbStatusDetails(event)
		if next != domain.SessionStatusDiscovery {
			// Offers are only selectable during discovery.
			c.offers = make(map[string]OfferView)
		}

	default:
		return false
	}

	c.applied[event.EventID] = struct{}{}
	return true
}

func (c *Controller) absorbStatusDetails(event bus.Event) {
	if event.FinalAmount > 0 {
		c.finalAmount = event.FinalAmount
	}
	if event.CancelReason != "" {
		c.cancelReason = event.CancelReason
	}
}

// Phase returns the current mirrored phase.
func (c *Controller) Phase() domain.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns a copy of the mirror suitable for rendering. Offers
// come back cheapest effective price first, ties by arrival time.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	offers := make([]OfferView, 0, len(c.offers))
	for _, o := range c.offers {
		offers = append(offers, o)
	}
	sort.SliceStable(offers, func(i, j int) bool {
		ei, ej := c.effective(offers[i]), c.effective(offers[j])
		if ei != ej {
			return ei < ej
		}
		return offers[i].ReceivedAt.Before(offers[j].ReceivedAt)
	})

	return Snapshot{
		SessionID:    c.sessionID,
		Phase:        c.phase,
		Offers:       offers,
		FinalAmount:  c.finalAmount,
		CancelReason: c.cancelReason,
	}
}

func (c *Controller) effective(o OfferView) float64 {
	if o.Type == string(domain.OfferTypeCounter) {
		return o.Amount
	}
	return c.requestedFare
}

// Done reports whether the session reached a terminal phase.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase.IsTerminal()
}
