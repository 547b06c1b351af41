package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ridebroker/internal/domain"
	"ridebroker/internal/logging"
	"ridebroker/internal/observability"
	"ridebroker/internal/repository"
)

// SelectionService commits the rider's choice of offer. The commit is
// all-or-nothing under the session row lock: the chosen offer becomes
// accepted, every other pending offer becomes rejected and the session
// moves to hold with the winner recorded, or none of it happens.
// Concurrent selections against one session serialize on the lock; the
// loser finds the session already out of discovery.
type SelectionService struct {
	txStore  repository.TxStore
	notifier *Notifier
	logger   *logging.Logger
}

// NewSelectionService creates a SelectionService.
func NewSelectionService(txStore repository.TxStore, notifier *Notifier, logger *logging.Logger) *SelectionService {
	return &SelectionService{txStore: txStore, notifier: notifier, logger: logger}
}

// SelectionResult is the committed outcome of a selection.
type SelectionResult struct {
	Session *domain.RideSession
	Offer   *domain.Offer
}

// Select accepts one offer on behalf of the session owner.
func (s *SelectionService) Select(ctx context.Context, callerID, sessionID, offerID string) (*SelectionResult, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	if offerID == "" {
		return nil, ErrInvalidOfferID
	}

	started := time.Now()

	var (
		session  *domain.RideSession
		offer    *domain.Offer
		loserIDs []string
	)
	err := s.txStore.RunInTx(ctx, func(repos repository.TxRepos) error {
		var err error
		session, err = repos.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if session.OwnerID != callerID {
			return ErrNotSessionOwner
		}
		if session.Status != domain.SessionStatusDiscovery {
			return ErrSessionNotInDiscovery
		}

		offer, err = repos.Offers.GetByID(ctx, offerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOfferNotFound
			}
			return err
		}
		if offer.SessionID != sessionID {
			return ErrOfferSessionMismatch
		}
		if offer.Status != domain.OfferStatusPending {
			return ErrOfferNotPending
		}

		now := time.Now().UTC()
		if offer.Lapsed(now) {
			// Returned through the rollback; the expiry status write
			// happens in its own transaction afterwards.
			return ErrOfferExpired
		}

		all, err := repos.Offers.ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, o := range all {
			if o.ID != offer.ID && o.Status == domain.OfferStatusPending {
				loserIDs = append(loserIDs, o.DriverID)
			}
		}

		if err := repos.Offers.UpdateStatus(ctx, offer.ID, domain.OfferStatusAccepted); err != nil {
			return err
		}
		if _, err := repos.Offers.RejectPendingExcept(ctx, sessionID, offer.ID); err != nil {
			return err
		}

		session.Status = domain.SessionStatusHold
		session.SelectedDriverID = offer.DriverID
		session.SelectedOfferID = offer.ID
		session.FinalAmount = offer.EffectiveAmount(session.FareAmount)
		session.HoldStartAt = now
		if err := repos.Sessions.Update(ctx, session); err != nil {
			return err
		}

		event := &domain.RideEvent{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Type:      domain.EventOfferAccepted,
			ActorID:   callerID,
			Metadata: map[string]string{
				"offer_id":     offer.ID,
				"driver_id":    offer.DriverID,
				"final_amount": fmt.Sprintf("%.2f", session.FinalAmount),
			},
			CreatedAt: now,
		}
		if err := repos.Events.Append(ctx, event); err != nil {
			return err
		}
		s.notifier.Audit(event)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOfferExpired) {
			s.expireOffer(ctx, offerID)
		}
		observability.Selections.WithLabelValues(selectionOutcome(err)).Inc()
		return nil, err
	}

	observability.Selections.WithLabelValues("accepted").Inc()
	observability.SelectionLatency.Observe(time.Since(started).Seconds())
	observability.SessionTransitions.WithLabelValues(string(session.Status)).Inc()

	s.notifier.PublishStatus(session)
	s.notifier.NotifyAcceptance(ctx, session, offer)
	for _, driverID := range loserIDs {
		s.notifier.Push(driverID, "Request filled",
			"The rider went with another driver.", map[string]string{"session_id": sessionID})
	}

	offer.Status = domain.OfferStatusAccepted
	return &SelectionResult{Session: session, Offer: offer}, nil
}

// expireOffer records the expired status of an offer whose selection
// was refused. Best-effort; the lazy expiry on listing covers a miss.
func (s *SelectionService) expireOffer(ctx context.Context, offerID string) {
	err := s.txStore.RunInTx(ctx, func(repos repository.TxRepos) error {
		offer, err := repos.Offers.GetByID(ctx, offerID)
		if err != nil {
			return err
		}
		if offer.Status != domain.OfferStatusPending {
			return nil
		}
		return repos.Offers.UpdateStatus(ctx, offerID, domain.OfferStatusExpired)
	})
	if err != nil {
		s.logger.Warn("offer expiry write failed",
			logging.String("offer_id", offerID), logging.Err(err))
	}
}

func selectionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotInDiscovery):
		return "lost_race"
	case errors.Is(err, ErrOfferExpired):
		return "expired_offer"
	case errors.Is(err, ErrOfferNotPending):
		return "stale_offer"
	default:
		return "refused"
	}
}
