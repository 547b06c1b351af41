package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ridebroker/internal/domain"
	"ridebroker/internal/logging"
	"ridebroker/internal/observability"
	redisstore "ridebroker/internal/redis"
	"ridebroker/internal/repository"
)

const (
	sweepLockName = "sweep"
	sweepBatch    = 100
)

// SweeperConfig holds the timing knobs of the background sweep.
type SweeperConfig struct {
	// Interval is how often a sweep runs.
	Interval time.Duration

	// WaveInterval is how long discovery waits for offers before
	// expanding to the next wave.
	WaveInterval time.Duration

	// DiscoveryWindow bounds how long a session may sit in discovery
	// before expiring.
	DiscoveryWindow time.Duration

	// HoldTimeout bounds how long a session may sit in hold waiting for
	// the selected driver to confirm.
	HoldTimeout time.Duration
}

// Sweeper is the background janitor: it expires lapsed offers, expands
// quiet discovery sessions, and times out sessions stuck in discovery
// or hold. A distributed lock keeps sweeps single-flight across
// replicas.
type Sweeper struct {
	sessions  repository.SessionRepository
	offers    repository.OfferRepository
	txStore   repository.TxStore
	discovery *DiscoveryService
	locks     redisstore.LockStoreInterface
	notifier  *Notifier
	logger    *logging.Logger
	cfg       SweeperConfig
}

// NewSweeper creates a Sweeper.
func NewSweeper(
	sessions repository.SessionRepository,
	offers repository.OfferRepository,
	txStore repository.TxStore,
	discovery *DiscoveryService,
	locks redisstore.LockStoreInterface,
	notifier *Notifier,
	logger *logging.Logger,
	cfg SweeperConfig,
) *Sweeper {
	return &Sweeper{
		sessions:  sessions,
		offers:    offers,
		txStore:   txStore,
		discovery: discovery,
		locks:     locks,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepNow(ctx)
		}
	}
}

// SweepNow runs one sweep under the distributed lock.
func (s *Sweeper) SweepNow(ctx context.Context) {
	acquired, err := s.locks.Acquire(ctx, sweepLockName, s.cfg.Interval)
	if err != nil {
		s.logger.Warn("sweep lock acquire failed", logging.Err(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.locks.Release(ctx, sweepLockName); err != nil {
			s.logger.Warn("sweep lock release failed", logging.Err(err))
		}
	}()

	now := time.Now().UTC()
	s.expireLapsedOffers(ctx, now)
	s.tendDiscovery(ctx, now)
	s.expireStaleHolds(ctx, now)
}

func (s *Sweeper) expireLapsedOffers(ctx context.Context, now time.Time) {
	expired, err := s.offers.ExpirePendingBefore(ctx, "", now)
	if err != nil {
		s.logger.Warn("offer expiry sweep failed", logging.Err(err))
		return
	}
	if len(expired) > 0 {
		s.logger.Info("expired lapsed offers", logging.Int("count", len(expired)))
	}
}

// tendDiscovery visits discovery sessions whose last wave is older than
// the wave interval. A session with pending offers is left to the
// rider regardless of its age; one with none gets its next wave, or
// expires once the ladder is exhausted and the discovery window has
// elapsed.
func (s *Sweeper) tendDiscovery(ctx context.Context, now time.Time) {
	due, err := s.sessions.ListByStatusOlderThan(ctx, domain.SessionStatusDiscovery, now.Add(-s.cfg.WaveInterval), sweepBatch)
	if err != nil {
		s.logger.Warn("discovery sweep query failed", logging.Err(err))
		return
	}

	for _, session := range due {
		pending, err := s.offers.CountPendingBySession(ctx, session.ID)
		if err != nil {
			s.logger.Warn("offer count failed",
				logging.String("session_id", session.ID), logging.Err(err))
			continue
		}
		if pending > 0 {
			// Offers are on the table; leave the decision to the rider.
			continue
		}

		if s.discovery.Exhausted(session) {
			if session.DiscoveryStartAt.Before(now.Add(-s.cfg.DiscoveryWindow)) {
				s.expireSession(ctx, session.ID, "discovery window elapsed")
			}
			continue
		}

		if _, err := s.discovery.Expand(ctx, SystemActor, session.ID); err != nil {
			if !errors.Is(err, ErrNoFurtherWaves) && !errors.Is(err, ErrSessionNotInDiscovery) {
				s.logger.Warn("auto expansion failed",
					logging.String("session_id", session.ID), logging.Err(err))
			}
		}
	}
}

// expireStaleHolds times out sessions whose selected driver never
// confirmed.
func (s *Sweeper) expireStaleHolds(ctx context.Context, now time.Time) {
	due, err := s.sessions.ListByStatusOlderThan(ctx, domain.SessionStatusHold, now.Add(-s.cfg.HoldTimeout), sweepBatch)
	if err != nil {
		s.logger.Warn("hold sweep query failed", logging.Err(err))
		return
	}
	for _, session := range due {
		s.expireSession(ctx, session.ID, "hold confirmation timed out")
	}
}

// expireSession moves a session to expired under its row lock,
// expiring its surviving offers with it. Rechecks state after locking;
// a session that moved on since the sweep query is left alone.
func (s *Sweeper) expireSession(ctx context.Context, sessionID, reason string) {
	var expired *domain.RideSession
	err := s.txStore.RunInTx(ctx, func(repos repository.TxRepos) error {
		session, err := repos.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if !domain.CanTransition(session.Status, domain.SessionStatusExpired) {
			return nil
		}

		now := time.Now().UTC()
		session.Status = domain.SessionStatusExpired
		if err := repos.Sessions.Update(ctx, session); err != nil {
			return err
		}
		if _, err := repos.Offers.ExpirePendingBefore(ctx, sessionID, farFuture(now)); err != nil {
			return err
		}
		if session.SelectedOfferID != "" {
			if err := repos.Offers.UpdateStatus(ctx, session.SelectedOfferID, domain.OfferStatusExpired); err != nil {
				return err
			}
		}

		event := &domain.RideEvent{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Type:      domain.EventSessionExpired,
			ActorID:   SystemActor,
			Metadata:  map[string]string{"reason": reason},
			CreatedAt: now,
		}
		if err := repos.Events.Append(ctx, event); err != nil {
			return err
		}
		s.notifier.Audit(event)

		expired = session
		return nil
	})
	if err != nil {
		s.logger.Error("session expiry failed",
			logging.String("session_id", sessionID), logging.Err(err))
		return
	}
	if expired == nil {
		return
	}

	observability.SessionTransitions.WithLabelValues(string(expired.Status)).Inc()
	s.notifier.PublishStatus(expired)
	s.notifier.Push(expired.OwnerID, "Request expired",
		"No ride was arranged in time.", map[string]string{"session_id": sessionID})
	if expired.SelectedDriverID != "" {
		s.notifier.Push(expired.SelectedDriverID, "Hold expired",
			"The held ride timed out before confirmation.", map[string]string{"session_id": sessionID})
	}
}
