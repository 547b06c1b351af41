package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"ridebroker/internal/domain"
	"ridebroker/internal/geo"
	"ridebroker/internal/logging"
	"ridebroker/internal/observability"
	redisstore "ridebroker/internal/redis"
	"ridebroker/internal/repository"
)

// SystemActor is the actor id recorded on events produced by background
// jobs rather than a user or driver.
const SystemActor = "system"

// WaveResult reports how many drivers one wave reached.
type WaveResult struct {
	Wave     int `json:"wave"`
	Notified int `json:"notified"`
}

// DiscoveryService runs the wave engine: it moves a session into
// discovery and fans invitations out to drivers in expanding radius
// waves. Wave zero is relationship-based (the target driver for direct
// sessions, favorites for broadcast); numbered waves sweep the
// proximity radii. A driver is never notified twice for one session.
type DiscoveryService struct {
	sessions  repository.SessionRepository
	events    repository.EventRepository
	drivers   repository.DriverRepository
	txStore   repository.TxStore
	locations redisstore.LocationStoreInterface
	notified  redisstore.NotifiedStoreInterface
	zones     geo.ZoneResolver
	notifier  *Notifier
	logger    *logging.Logger
	radiiKm   []float64
}

// NewDiscoveryService creates a DiscoveryService. radiiKm is the
// ordered list of wave radii; wave n uses radiiKm[n-1].
func NewDiscoveryService(
	sessions repository.SessionRepository,
	events repository.EventRepository,
	drivers repository.DriverRepository,
	txStore repository.TxStore,
	locations redisstore.LocationStoreInterface,
	notified redisstore.NotifiedStoreInterface,
	zones geo.ZoneResolver,
	notifier *Notifier,
	logger *logging.Logger,
	radiiKm []float64,
) *DiscoveryService {
	return &DiscoveryService{
		sessions:  sessions,
		events:    events,
		drivers:   drivers,
		txStore:   txStore,
		locations: locations,
		notified:  notified,
		zones:     zones,
		notifier:  notifier,
		logger:    logger,
		radiiKm:   radiiKm,
	}
}

// Start moves a created session into discovery and runs its opening
// waves: the relationship wave, then the first proximity wave for
// broadcast sessions. Direct sessions notify only their target driver
// and never expand.
func (s *DiscoveryService) Start(ctx context.Context, callerID, sessionID string) ([]WaveResult, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	// The transition commits under the session row lock before any wave
	// runs; a concurrent start loses on the lock and finds the session
	// already in discovery.
	var session *domain.RideSession
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
		if session.Status != domain.SessionStatusCreated {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		session.Status = domain.SessionStatusDiscovery
		session.DiscoveryStartAt = now
		session.LastWaveAt = now
		if session.RequestType == domain.RequestTypeBroadcast && len(s.radiiKm) > 0 {
			session.Wave = 1
		}
		if err := repos.Sessions.Update(ctx, session); err != nil {
			return err
		}

		event := &domain.RideEvent{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			Type:      domain.EventDiscoveryStarted,
			ActorID:   callerID,
			Metadata:  map[string]string{"request_type": string(session.RequestType)},
			CreatedAt: now,
		}
		if err := repos.Events.Append(ctx, event); err != nil {
			return err
		}
		s.notifier.Audit(event)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var results []WaveResult

	if session.RequestType == domain.RequestTypeDirect {
		count := s.notifyCandidates(ctx, session, 0, s.directCandidates(ctx, session))
		results = append(results, WaveResult{Wave: 0, Notified: count})
	} else {
		count := s.notifyCandidates(ctx, session, 0, s.favoriteCandidates(ctx, session))
		results = append(results, WaveResult{Wave: 0, Notified: count})

		if len(s.radiiKm) > 0 {
			count = s.notifyCandidates(ctx, session, 1, s.proximityCandidates(ctx, session, s.radiiKm[0]))
			results = append(results, WaveResult{Wave: 1, Notified: count})
		}
	}

	observability.SessionTransitions.WithLabelValues(string(session.Status)).Inc()
	s.notifier.PublishStatus(session)

	return results, nil
}

// Expand runs the next proximity wave. It refuses direct sessions and
// returns ErrNoFurtherWaves once the radius ladder is exhausted. The
// sweeper calls it with SystemActor when a wave interval elapses with
// no offers.
func (s *DiscoveryService) Expand(ctx context.Context, callerID, sessionID string) (*WaveResult, error) {
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
	if callerID != SystemActor && session.OwnerID != callerID {
		return nil, ErrNotSessionOwner
	}
	if session.Status != domain.SessionStatusDiscovery {
		return nil, ErrSessionNotInDiscovery
	}
	if session.RequestType == domain.RequestTypeDirect || session.Wave >= len(s.radiiKm) {
		return nil, ErrNoFurtherWaves
	}

	wave := session.Wave + 1
	radius := s.radiiKm[wave-1]
	count := s.notifyCandidates(ctx, session, wave, s.proximityCandidates(ctx, session, radius))

	session.Wave = wave
	session.LastWaveAt = time.Now().UTC()
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, session.ID, domain.EventWaveExpanded, callerID, map[string]string{
		"wave":      fmt.Sprintf("%d", wave),
		"radius_km": fmt.Sprintf("%g", radius),
	})

	return &WaveResult{Wave: wave, Notified: count}, nil
}

// Exhausted reports whether a session has no waves left to run.
func (s *DiscoveryService) Exhausted(session *domain.RideSession) bool {
	return session.RequestType == domain.RequestTypeDirect || session.Wave >= len(s.radiiKm)
}

// directCandidates resolves the single target driver of a direct
// session. An inactive or unknown target yields an empty wave; the
// session then times out through the normal discovery window.
func (s *DiscoveryService) directCandidates(ctx context.Context, session *domain.RideSession) []*domain.Driver {
	driver, err := s.drivers.GetByID(ctx, session.TargetDriverID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("target driver lookup failed",
				logging.String("session_id", session.ID),
				logging.String("driver_id", session.TargetDriverID),
				logging.Err(err))
		}
		return nil
	}
	if !driver.Active {
		return nil
	}
	return []*domain.Driver{driver}
}

// favoriteCandidates returns the rider's favorited drivers that are
// online and accepting.
func (s *DiscoveryService) favoriteCandidates(ctx context.Context, session *domain.RideSession) []*domain.Driver {
	favorites, err := s.drivers.ListFavorites(ctx, session.OwnerID)
	if err != nil {
		s.logger.Warn("favorites lookup failed",
			logging.String("session_id", session.ID), logging.Err(err))
		return nil
	}
	var out []*domain.Driver
	for _, d := range favorites {
		if d.Active && d.Accepting {
			out = append(out, d)
		}
	}
	return out
}

// proximityCandidates returns eligible drivers within radiusKm of the
// origin, service-area matches first, then nearest first. The GEO index
// is only a prefilter; eligibility is decided on the exact haversine
// distance.
func (s *DiscoveryService) proximityCandidates(ctx context.Context, session *domain.RideSession, radiusKm float64) []*domain.Driver {
	locs, err := s.locations.FindNearbyDrivers(ctx, session.Origin.Lat, session.Origin.Lng, radiusKm)
	if err != nil {
		s.logger.Warn("geo query failed",
			logging.String("session_id", session.ID), logging.Err(err))
		return nil
	}

	ids := make([]string, 0, len(locs))
	dist := make(map[string]float64, len(locs))
	for _, loc := range locs {
		exact := geo.Haversine(session.Origin.Lat, session.Origin.Lng, loc.Lat, loc.Lng)
		if exact > radiusKm {
			continue
		}
		ids = append(ids, loc.DriverID)
		dist[loc.DriverID] = exact
	}
	if len(ids) == 0 {
		return nil
	}

	byID, err := s.drivers.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("driver batch lookup failed",
			logging.String("session_id", session.ID), logging.Err(err))
		return nil
	}

	sessionTags := append(
		s.zones.TagsFor(session.Origin.Lat, session.Origin.Lng),
		s.zones.TagsFor(session.Destination.Lat, session.Destination.Lng)...,
	)

	var candidates []*domain.Driver
	for _, id := range ids {
		d, ok := byID[id]
		if !ok || !d.Active || !d.Accepting {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i].CoversAny(sessionTags), candidates[j].CoversAny(sessionTags)
		if ci != cj {
			return ci
		}
		return dist[candidates[i].ID] < dist[candidates[j].ID]
	})
	return candidates
}

// notifyCandidates delivers one wave. The dedupe mark is taken before
// the inbox write so a driver reached by an earlier wave is skipped;
// if the inbox write then fails the mark is left in place and the
// driver is dropped from this session rather than risking a double
// notification later.
func (s *DiscoveryService) notifyCandidates(ctx context.Context, session *domain.RideSession, wave int, candidates []*domain.Driver) int {
	count := 0
	title := "New ride request"
	body := fmt.Sprintf("%s to %s", session.Origin.Label, session.Destination.Label)

	for _, d := range candidates {
		first, err := s.notified.MarkNotified(ctx, session.ID, d.ID)
		if err != nil {
			s.logger.Warn("notified mark failed",
				logging.String("session_id", session.ID),
				logging.String("driver_id", d.ID),
				logging.Err(err))
			continue
		}
		if !first {
			continue
		}
		if err := s.notifier.NotifyDriver(ctx, session, d.ID, wave, title, body); err != nil {
			s.logger.Error("driver notification write failed",
				logging.String("session_id", session.ID),
				logging.String("driver_id", d.ID),
				logging.Err(err))
			continue
		}
		count++
	}

	observability.DriversNotified.WithLabelValues(fmt.Sprintf("%d", wave)).Add(float64(count))
	return count
}

// appendEvent writes a trail entry and mirrors it to the audit stream.
func (s *DiscoveryService) appendEvent(ctx context.Context, sessionID string, t domain.EventType, actorID string, metadata map[string]string) {
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
