package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ridebroker/internal/domain"
	"ridebroker/internal/geo"
	"ridebroker/internal/logging"
	"ridebroker/internal/observability"
	redisstore "ridebroker/internal/redis"
	"ridebroker/internal/repository"
	"ridebroker/internal/token"
)

// CreateSessionInput carries everything needed to open a session.
type CreateSessionInput struct {
	OwnerID        string
	Origin         domain.Place
	Destination    domain.Place
	FareAmount     float64
	FareMetadata   []byte
	RequestType    domain.RequestType
	TargetDriverID string
}

// CreateSessionResult bundles the new session with its QR credential.
type CreateSessionResult struct {
	Session *domain.RideSession
	QRToken string
}

// SessionService owns the session lifecycle outside of discovery and
// selection: creation, reads, cancellation and the driver-side
// hold -> confirmed -> active -> completed progression.
type SessionService struct {
	sessions repository.SessionRepository
	offers   repository.OfferRepository
	events   repository.EventRepository
	txStore  repository.TxStore
	tokens   *token.Service
	cache    redisstore.CacheStoreInterface
	notifier *Notifier
	logger   *logging.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(
	sessions repository.SessionRepository,
	offers repository.OfferRepository,
	events repository.EventRepository,
	txStore repository.TxStore,
	tokens *token.Service,
	cache redisstore.CacheStoreInterface,
	notifier *Notifier,
	logger *logging.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		offers:   offers,
		events:   events,
		txStore:  txStore,
		tokens:   tokens,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// Create opens a new session in the created state and issues its QR
// credential. The origin, destination, fare and fare metadata are
// frozen here and never change afterwards.
func (s *SessionService) Create(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error) {
	if input.OwnerID == "" {
		return nil, ErrInvalidOwnerID
	}
	if !geo.ValidLatitude(input.Origin.Lat) || !geo.ValidLongitude(input.Origin.Lng) {
		return nil, ErrInvalidOriginLocation
	}
	if !geo.ValidLatitude(input.Destination.Lat) || !geo.ValidLongitude(input.Destination.Lng) {
		return nil, ErrInvalidDestinationLocation
	}
	if input.FareAmount <= 0 {
		return nil, ErrInvalidFareAmount
	}
	if !domain.ValidRequestType(input.RequestType) {
		return nil, ErrInvalidRequestType
	}
	if input.RequestType == domain.RequestTypeDirect && input.TargetDriverID == "" {
		return nil, ErrMissingTargetDriver
	}

	now := time.Now().UTC()
	session := &domain.RideSession{
		ID:             uuid.New().String(),
		OwnerID:        input.OwnerID,
		Origin:         input.Origin,
		Destination:    input.Destination,
		FareAmount:     input.FareAmount,
		FareMetadata:   input.FareMetadata,
		RequestType:    input.RequestType,
		TargetDriverID: input.TargetDriverID,
		Status:         domain.SessionStatusCreated,
		CreatedAt:      now,
	}

	payload, encoded, err := s.tokens.Issue(session.ID, input.Origin.Label, input.Destination.Label, input.FareAmount)
	if err != nil {
		return nil, err
	}
	session.QRTokenID = payload.TokenID

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, s.events, session.ID, domain.EventSessionCreated, input.OwnerID, map[string]string{
		"request_type": string(input.RequestType),
	})

	observability.SessionsCreated.WithLabelValues(string(input.RequestType)).Inc()

	if err := s.cache.SetSessionSummary(ctx, summaryOf(session)); err != nil {
		s.logger.Warn("session summary cache write failed",
			logging.String("session_id", session.ID), logging.Err(err))
	}

	return &CreateSessionResult{Session: session, QRToken: encoded}, nil
}

// Get returns a session to its owner or its selected driver.
func (s *SessionService) Get(ctx context.Context, callerID, sessionID string) (*domain.RideSession, error) {
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
	if session.OwnerID != callerID && (session.SelectedDriverID == "" || session.SelectedDriverID != callerID) {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

// Events returns a session's event trail, owner or selected driver only.
func (s *SessionService) Events(ctx context.Context, callerID, sessionID string) ([]*domain.RideEvent, error) {
	if _, err := s.Get(ctx, callerID, sessionID); err != nil {
		return nil, err
	}
	return s.events.ListBySession(ctx, sessionID)
}

// ResolveToken decodes a scanned QR credential and returns the cached
// session summary it points at. Any authenticated driver may resolve;
// the token grants visibility, not control.
func (s *SessionService) ResolveToken(ctx context.Context, encoded string) (*redisstore.SessionSummary, error) {
	payload, err := s.tokens.Decode(encoded)
	if err != nil {
		return nil, err
	}

	if summary, err := s.cache.GetSessionSummary(ctx, payload.SessionID); err == nil && summary != nil {
		return summary, nil
	} else if err != nil {
		s.logger.Warn("session summary cache read failed",
			logging.String("session_id", payload.SessionID), logging.Err(err))
	}

	session, err := s.sessions.GetByID(ctx, payload.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.QRTokenID != payload.TokenID {
		return nil, token.ErrExpired
	}

	summary := summaryOf(session)
	if err := s.cache.SetSessionSummary(ctx, summary); err != nil {
		s.logger.Warn("session summary cache write failed",
			logging.String("session_id", session.ID), logging.Err(err))
	}
	return summary, nil
}

// Cancel moves a session to canceled. Canceling an already-canceled
// session is a no-op returning the session as-is; canceling from
// completed or expired is refused.
func (s *SessionService) Cancel(ctx context.Context, callerID, sessionID, reason string) (*domain.RideSession, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	var (
		result  *domain.RideSession
		changed bool
	)
	err := s.txStore.RunInTx(ctx, func(repos repository.TxRepos) error {
		session, err := repos.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if session.OwnerID != callerID {
			return ErrNotSessionOwner
		}
		if session.Status == domain.SessionStatusCanceled {
			result = session
			return nil
		}
		if !domain.CanTransition(session.Status, domain.SessionStatusCanceled) {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		session.Status = domain.SessionStatusCanceled
		session.CanceledAt = now
		session.CancelReason = reason
		if err := repos.Sessions.Update(ctx, session); err != nil {
			return err
		}
		if _, err := repos.Offers.ExpirePendingBefore(ctx, sessionID, farFuture(now)); err != nil {
			return err
		}
		s.appendEvent(ctx, repos.Events, sessionID, domain.EventSessionCanceled, callerID, map[string]string{
			"reason": reason,
		})

		result = session
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterTransition(result)
	}
	return result, nil
}

// Confirm moves a held session to confirmed. Only the selected driver
// may confirm.
func (s *SessionService) Confirm(ctx context.Context, callerID, sessionID string) (*domain.RideSession, error) {
	return s.progress(ctx, callerID, sessionID, domain.SessionStatusConfirmed, domain.EventSessionConfirmed)
}

// StartTrip moves a confirmed session to active.
func (s *SessionService) StartTrip(ctx context.Context, callerID, sessionID string) (*domain.RideSession, error) {
	return s.progress(ctx, callerID, sessionID, domain.SessionStatusActive, domain.EventTripStarted)
}

// CompleteTrip moves an active session to completed.
func (s *SessionService) CompleteTrip(ctx context.Context, callerID, sessionID string) (*domain.RideSession, error) {
	return s.progress(ctx, callerID, sessionID, domain.SessionStatusCompleted, domain.EventSessionCompleted)
}

// progress applies one selected-driver transition under the session
// row lock.
func (s *SessionService) progress(ctx context.Context, callerID, sessionID string, to domain.SessionStatus, eventType domain.EventType) (*domain.RideSession, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	var result *domain.RideSession
	err := s.txStore.RunInTx(ctx, func(repos repository.TxRepos) error {
		session, err := repos.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if session.SelectedDriverID == "" || session.SelectedDriverID != callerID {
			return ErrNotSelectedDriver
		}
		if !domain.CanTransition(session.Status, to) {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		session.Status = to
		switch to {
		case domain.SessionStatusConfirmed:
			session.ConfirmedAt = now
		case domain.SessionStatusCompleted:
			session.CompletedAt = now
		}
		if err := repos.Sessions.Update(ctx, session); err != nil {
			return err
		}
		s.appendEvent(ctx, repos.Events, sessionID, eventType, callerID, nil)

		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(result)
	return result, nil
}

// afterTransition runs the best-effort fan-out for a committed status
// change.
func (s *SessionService) afterTransition(session *domain.RideSession) {
	observability.SessionTransitions.WithLabelValues(string(session.Status)).Inc()
	s.notifier.PublishStatus(session)

	switch session.Status {
	case domain.SessionStatusCanceled:
		if session.SelectedDriverID != "" {
			s.notifier.Push(session.SelectedDriverID, "Ride canceled",
				"The rider canceled the trip.", map[string]string{"session_id": session.ID})
		}
	case domain.SessionStatusConfirmed:
		s.notifier.Push(session.OwnerID, "Driver confirmed",
			"Your driver confirmed the trip and is on the way.", map[string]string{"session_id": session.ID})
	case domain.SessionStatusCompleted:
		s.notifier.Push(session.OwnerID, "Trip completed",
			"Thanks for riding.", map[string]string{"session_id": session.ID})
	}
}

// appendEvent writes a trail entry and mirrors it to the audit stream.
// Trail failures are logged, never surfaced; the primary state change
// has already been decided.
func (s *SessionService) appendEvent(ctx context.Context, events repository.EventRepository, sessionID string, t domain.EventType, actorID string, metadata map[string]string) {
	event := &domain.RideEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      t,
		ActorID:   actorID,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := events.Append(ctx, event); err != nil {
		s.logger.Error("event append failed",
			logging.String("session_id", sessionID),
			logging.String("event_type", string(t)),
			logging.Err(err))
		return
	}
	s.notifier.Audit(event)
}

func summaryOf(session *domain.RideSession) *redisstore.SessionSummary {
	return &redisstore.SessionSummary{
		SessionID:        session.ID,
		Status:           string(session.Status),
		OriginLabel:      session.Origin.Label,
		DestinationLabel: session.Destination.Label,
		FareAmount:       session.FareAmount,
	}
}

// farFuture yields a cutoff that matches every pending offer.
func farFuture(now time.Time) time.Time {
	return now.Add(100 * 365 * 24 * time.Hour)
}
