package tests

import (
	"time"

	"ridebroker/internal/audit"
	"ridebroker/internal/bus"
	"ridebroker/internal/domain"
	"ridebroker/internal/geo"
	"ridebroker/internal/logging"
	"ridebroker/internal/service"
	"ridebroker/internal/token"
)

// Fixture wires the coordinator services over the shared mocks. Each
// test gets a fresh one.
type Fixture struct {
	Sessions      *MockSessionRepository
	Offers        *MockOfferRepository
	Events        *MockEventRepository
	Notifications *MockNotificationRepository
	Drivers       *MockDriverRepository
	TxStore       *MockTxStore
	Locations     *MockLocationStore
	Notified      *MockNotifiedStore
	Locks         *MockLockStore
	Cache         *MockCacheStore
	Pusher        *MockPusher
	Bus           *bus.Hub

	SessionService   *service.SessionService
	DiscoveryService *service.DiscoveryService
	OfferService     *service.OfferService
	SelectionService *service.SelectionService
	Sweeper          *service.Sweeper
}

// Fixture defaults. Radii are kilometers; a session at the test origin
// runs wave 1 at 5km, wave 2 at 10km, wave 3 at 20km.
var (
	testRadii   = []float64{5, 10, 20}
	testZones   = []geo.Zone{{Tag: "zone:center", Lat: 12.97, Lng: 77.59, RadiusKm: 8}}
	offerTTL    = 3 * time.Minute
	sweeperConf = service.SweeperConfig{
		Interval:        15 * time.Second,
		WaveInterval:    time.Minute,
		DiscoveryWindow: 10 * time.Minute,
		HoldTimeout:     5 * time.Minute,
	}
)

// NewFixture builds a fully wired fixture.
func NewFixture() *Fixture {
	f := &Fixture{
		Sessions:      NewMockSessionRepository(),
		Offers:        NewMockOfferRepository(),
		Events:        NewMockEventRepository(),
		Notifications: NewMockNotificationRepository(),
		Drivers:       NewMockDriverRepository(),
		Locations:     NewMockLocationStore(),
		Notified:      NewMockNotifiedStore(),
		Locks:         NewMockLockStore(),
		Cache:         NewMockCacheStore(),
		Pusher:        NewMockPusher(),
	}
	f.TxStore = NewMockTxStore(f.Sessions, f.Offers, f.Events)

	logger := logging.NewNop()
	f.Bus = bus.NewHub(logger)
	notifier := service.NewNotifier(f.Notifications, f.Pusher, f.Bus, audit.NopPublisher{}, logger)
	tokens := token.NewService(0)
	zones := geo.NewStaticResolver(testZones)

	f.SessionService = service.NewSessionService(f.Sessions, f.Offers, f.Events, f.TxStore, tokens, f.Cache, notifier, logger)
	f.DiscoveryService = service.NewDiscoveryService(f.Sessions, f.Events, f.Drivers, f.TxStore, f.Locations, f.Notified, zones, notifier, logger, testRadii)
	f.OfferService = service.NewOfferService(f.Sessions, f.Offers, f.Events, notifier, logger, offerTTL)
	f.SelectionService = service.NewSelectionService(f.TxStore, notifier, logger)
	f.Sweeper = service.NewSweeper(f.Sessions, f.Offers, f.TxStore, f.DiscoveryService, f.Locks, notifier, logger, sweeperConf)

	return f
}

// SeedSession stores a session directly in the mock repository.
func (f *Fixture) SeedSession(s *domain.RideSession) *domain.RideSession {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	f.Sessions.AddSession(s)
	return s
}

// BroadcastSession returns a discovery-state broadcast session owned
// by the given rider, ready for offers.
func BroadcastSession(id, ownerID string, fare float64) *domain.RideSession {
	now := time.Now().UTC()
	return &domain.RideSession{
		ID:               id,
		OwnerID:          ownerID,
		Origin:           domain.Place{Lat: 12.97, Lng: 77.59, Label: "MG Road"},
		Destination:      domain.Place{Lat: 12.93, Lng: 77.62, Label: "Koramangala"},
		FareAmount:       fare,
		RequestType:      domain.RequestTypeBroadcast,
		Status:           domain.SessionStatusDiscovery,
		Wave:             1,
		CreatedAt:        now,
		DiscoveryStartAt: now,
		LastWaveAt:       now,
	}
}

// PendingOffer returns a pending offer against the session.
func PendingOffer(id, sessionID, driverID string, offerType domain.OfferType, amount float64) *domain.Offer {
	now := time.Now().UTC()
	return &domain.Offer{
		ID:        id,
		SessionID: sessionID,
		DriverID:  driverID,
		Type:      offerType,
		Amount:    amount,
		Status:    domain.OfferStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(offerTTL),
	}
}
