package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"ridebroker/internal/domain"
	"ridebroker/internal/logging"
	"ridebroker/internal/observability"
	"ridebroker/internal/repository"
)

// DefaultTopOffers is how many ranked offers a listing returns unless
// the caller asks for all of them.
const DefaultTopOffers = 3

// SubmitOfferInput carries one driver response to a session.
type SubmitOfferInput struct {
	DriverID  string
	SessionID string
	Type      domain.OfferType
	Amount    float64
	Note      string
}

// RankedOffer pairs an offer with the price the rider would actually
// pay if it wins.
type RankedOffer struct {
	Offer           *domain.Offer
	EffectiveAmount float64
}

// OfferService owns the offer ledger: driver submissions and the
// rider-facing ranked listing. Resolution (accept, reject, expire)
// belongs to the selection coordinator and the sweeper.
type OfferService struct {
	sessions repository.SessionRepository
	offers   repository.OfferRepository
	events   repository.EventRepository
	notifier *Notifier
	logger   *logging.Logger
	offerTTL time.Duration
}

// NewOfferService creates an OfferService. offerTTL bounds how long a
// pending offer stays selectable.
func NewOfferService(
	sessions repository.SessionRepository,
	offers repository.OfferRepository,
	events repository.EventRepository,
	notifier *Notifier,
	logger *logging.Logger,
	offerTTL time.Duration,
) *OfferService {
	return &OfferService{
		sessions: sessions,
		offers:   offers,
		events:   events,
		notifier: notifier,
		logger:   logger,
		offerTTL: offerTTL,
	}
}

// Submit records a driver's offer against a session in discovery. An
// accept offer bids the requested fare and carries no amount; a counter
// offer must carry a positive one. Submissions against any other
// session state are refused, which is also what buries offers that
// arrive after a cancellation.
func (s *OfferService) Submit(ctx context.Context, input SubmitOfferInput) (*domain.Offer, error) {
	if input.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if input.SessionID == "" {
		return nil, ErrInvalidSessionID
	}
	switch input.Type {
	case domain.OfferTypeAccept:
		if input.Amount != 0 {
			return nil, ErrInvalidOfferAmount
		}
	case domain.OfferTypeCounter:
		if input.Amount <= 0 {
			return nil, ErrInvalidOfferAmount
		}
	default:
		return nil, ErrInvalidOfferType
	}

	session, err := s.sessions.GetByID(ctx, input.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status != domain.SessionStatusDiscovery {
		return nil, ErrSessionNotAcceptingOffers
	}

	now := time.Now().UTC()
	offer := &domain.Offer{
		ID:        uuid.New().String(),
		SessionID: input.SessionID,
		DriverID:  input.DriverID,
		Type:      input.Type,
		Amount:    input.Amount,
		Note:      input.Note,
		Status:    domain.OfferStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.offerTTL),
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, input.SessionID, domain.EventOfferSubmitted, input.DriverID, map[string]string{
		"offer_id":   offer.ID,
		"offer_type": string(offer.Type),
	})

	observability.OffersSubmitted.WithLabelValues(string(offer.Type)).Inc()
	s.notifier.PublishOffer(offer)
	s.notifier.Push(session.OwnerID, "New offer",
		"A driver responded to your ride request.", map[string]string{
			"session_id": session.ID,
			"offer_id":   offer.ID,
		})

	return offer, nil
}

// List returns the session's pending offers ranked cheapest first,
// ties broken by submission time. Lapsed offers are expired on the way
// through so the rider never sees a selectable offer that would be
// refused. Owner only; all=false truncates to DefaultTopOffers.
func (s *OfferService) List(ctx context.Context, callerID, sessionID string, all bool) ([]RankedOffer, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, ErrNotSessionOwner
	}

	if _, err := s.offers.ExpirePendingBefore(ctx, sessionID, time.Now().UTC()); err != nil {
		s.logger.Warn("lazy offer expiry failed",
			logging.String("session_id", sessionID), logging.Err(err))
	}

	offers, err := s.offers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedOffer, 0, len(offers))
	for _, o := range offers {
		if o.Status != domain.OfferStatusPending {
			continue
		}
		ranked = append(ranked, RankedOffer{
			Offer:           o,
			EffectiveAmount: o.EffectiveAmount(session.FareAmount),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].EffectiveAmount != ranked[j].EffectiveAmount {
			return ranked[i].EffectiveAmount < ranked[j].EffectiveAmount
		}
		return ranked[i].Offer.CreatedAt.Before(ranked[j].Offer.CreatedAt)
	})

	if !all && len(ranked) > DefaultTopOffers {
		ranked = ranked[:DefaultTopOffers]
	}
	return ranked, nil
}

func (s *OfferService) appendEvent(ctx context.Context, sessionID string, t domain.EventType, actorID string, metadata map[string]string) {
	event := &domain.RideEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      t,
		ActorID:   actorID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("event append failed",
			logging.String("session_id", sessionID),
			logging.String("event_type", string(t)),
			logging.Err(err))
		return
	}
	s.notifier.Audit(event)
}
