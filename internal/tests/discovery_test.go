package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ridebroker/internal/domain"
	"ridebroker/internal/redis"
	"ridebroker/internal/service"
)

// Origin for all discovery tests is MG Road (12.97, 77.59). Offsets of
// 0.01 degrees latitude are roughly 1.1km.
func seedCreatedSession(f *Fixture, id string) *domain.RideSession {
	s := BroadcastSession(id, "rider-1", 20)
	s.Status = domain.SessionStatusCreated
	s.Wave = 0
	return f.SeedSession(s)
}

func addOnlineDriver(f *Fixture, id string, latOffset float64, tags ...string) {
	f.Drivers.AddDriver(&domain.Driver{ID: id, Active: true, Accepting: true, ServiceAreaTags: tags})
	f.Locations.AddDriverLocation(redis.DriverLocation{DriverID: id, Lat: 12.97 + latOffset, Lng: 77.59})
}

func TestDiscoveryStart_RunsOpeningWaves(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	seedCreatedSession(f, "s1")

	// One favorite, one nearby driver, one outside the first radius.
	f.Drivers.AddDriver(&domain.Driver{ID: "fav-1", Active: true, Accepting: true})
	f.Drivers.AddFavorite("rider-1", "fav-1")
	addOnlineDriver(f, "near-1", 0.01) // ~1.1km
	addOnlineDriver(f, "far-1", 0.07)  // ~7.8km, outside 5km wave

	waves, err := f.DiscoveryService.Start(ctx, "rider-1", "s1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(waves) != 2 {
		t.Fatalf("expected 2 waves, got %d", len(waves))
	}
	if waves[0].Notified != 1 {
		t.Errorf("expected 1 favorite notified in wave 0, got %d", waves[0].Notified)
	}
	if waves[1].Notified != 1 {
		t.Errorf("expected 1 nearby driver in wave 1, got %d", waves[1].Notified)
	}

	updated := f.Sessions.GetSession("s1")
	if updated.Status != domain.SessionStatusDiscovery {
		t.Errorf("expected discovery status, got %s", updated.Status)
	}
	if updated.Wave != 1 {
		t.Errorf("expected wave 1, got %d", updated.Wave)
	}
	if f.Notifications.CountForDriver("far-1") != 0 {
		t.Error("driver outside the radius must not be notified")
	}
	if f.Events.CountByType("s1", domain.EventDiscoveryStarted) != 1 {
		t.Error("expected one discovery_started event")
	}
}

func TestDiscoveryStart_RequiresCreatedState(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20)) // already in discovery

	if _, err := f.DiscoveryService.Start(ctx, "rider-1", "s1"); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDiscoveryStart_ConcurrentStartsRunOnce(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	seedCreatedSession(f, "s1")
	addOnlineDriver(f, "near-1", 0.01)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.DiscoveryService.Start(ctx, "rider-1", "s1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	started, refused := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, service.ErrInvalidTransition):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if started != 1 || refused != 1 {
		t.Fatalf("expected one start and one refusal, got %d started, %d refused", started, refused)
	}
	if f.Events.CountByType("s1", domain.EventDiscoveryStarted) != 1 {
		t.Error("expected one discovery_started event")
	}
	if f.Notifications.CountForDriver("near-1") != 1 {
		t.Errorf("expected near-1 notified exactly once, got %d", f.Notifications.CountForDriver("near-1"))
	}
}

func TestDiscoveryExpand_NeverRenotifiesADriver(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	seedCreatedSession(f, "s1")

	addOnlineDriver(f, "near-1", 0.01) // wave 1
	addOnlineDriver(f, "mid-1", 0.07)  // wave 2 ring

	if _, err := f.DiscoveryService.Start(ctx, "rider-1", "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := f.DiscoveryService.Expand(ctx, "rider-1", "s1")
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	// near-1 is inside the 10km radius too, but was already notified.
	if result.Notified != 1 {
		t.Errorf("expected only the new ring driver, got %d", result.Notified)
	}
	if f.Notifications.CountForDriver("near-1") != 1 {
		t.Errorf("expected near-1 notified exactly once, got %d", f.Notifications.CountForDriver("near-1"))
	}
	if f.Notifications.CountForDriver("mid-1") != 1 {
		t.Errorf("expected mid-1 notified once, got %d", f.Notifications.CountForDriver("mid-1"))
	}
	if f.Events.CountByType("s1", domain.EventWaveExpanded) != 1 {
		t.Error("expected one wave_expanded event")
	}
}

func TestDiscoveryExpand_ExhaustsRadiusLadder(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	seedCreatedSession(f, "s1")

	if _, err := f.DiscoveryService.Start(ctx, "rider-1", "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Waves 2 and 3 succeed, then the ladder is done.
	for i := 0; i < 2; i++ {
		if _, err := f.DiscoveryService.Expand(ctx, "rider-1", "s1"); err != nil {
			t.Fatalf("expand %d failed: %v", i+2, err)
		}
	}
	if _, err := f.DiscoveryService.Expand(ctx, "rider-1", "s1"); !errors.Is(err, service.ErrNoFurtherWaves) {
		t.Errorf("expected ErrNoFurtherWaves, got %v", err)
	}
}

func TestDiscoveryStart_DirectNotifiesTargetOnly(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.Status = domain.SessionStatusCreated
	s.Wave = 0
	s.RequestType = domain.RequestTypeDirect
	s.TargetDriverID = "driver-7"
	f.SeedSession(s)

	f.Drivers.AddDriver(&domain.Driver{ID: "driver-7", Active: true})
	addOnlineDriver(f, "near-1", 0.01) // nearby but irrelevant for direct

	waves, err := f.DiscoveryService.Start(ctx, "rider-1", "s1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(waves) != 1 || waves[0].Notified != 1 {
		t.Fatalf("expected a single wave reaching the target, got %+v", waves)
	}
	if f.Notifications.CountForDriver("near-1") != 0 {
		t.Error("direct session must not broadcast to nearby drivers")
	}

	// Direct sessions never expand.
	if _, err := f.DiscoveryService.Expand(ctx, "rider-1", "s1"); !errors.Is(err, service.ErrNoFurtherWaves) {
		t.Errorf("expected ErrNoFurtherWaves, got %v", err)
	}
}

func TestDiscovery_FiltersInactiveAndNotAccepting(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	seedCreatedSession(f, "s1")

	f.Drivers.AddDriver(&domain.Driver{ID: "offline-1", Active: false, Accepting: true})
	f.Locations.AddDriverLocation(redis.DriverLocation{DriverID: "offline-1", Lat: 12.971, Lng: 77.59})
	f.Drivers.AddDriver(&domain.Driver{ID: "busy-1", Active: true, Accepting: false})
	f.Locations.AddDriverLocation(redis.DriverLocation{DriverID: "busy-1", Lat: 12.972, Lng: 77.59})
	addOnlineDriver(f, "ok-1", 0.01)

	waves, err := f.DiscoveryService.Start(ctx, "rider-1", "s1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if waves[1].Notified != 1 {
		t.Errorf("expected only the eligible driver, got %d", waves[1].Notified)
	}
	if f.Notifications.CountForDriver("offline-1") != 0 || f.Notifications.CountForDriver("busy-1") != 0 {
		t.Error("ineligible drivers must not be notified")
	}
}

func TestDiscovery_ZoneCoverageOrdersWave(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	seedCreatedSession(f, "s1")

	// The closer driver declares no coverage; the farther one covers
	// the session's zone and should be notified first.
	addOnlineDriver(f, "close-uncovered", 0.01)
	addOnlineDriver(f, "far-covered", 0.03, "zone:center")

	if _, err := f.DiscoveryService.Start(ctx, "rider-1", "s1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	notices := f.Pusher.Notices()
	var waveOrder []string
	for _, n := range notices {
		if n.RecipientID == "close-uncovered" || n.RecipientID == "far-covered" {
			waveOrder = append(waveOrder, n.RecipientID)
		}
	}
	if len(waveOrder) != 2 {
		t.Fatalf("expected both drivers notified, got %v", waveOrder)
	}
	if waveOrder[0] != "far-covered" {
		t.Errorf("expected zone-covering driver first, got %v", waveOrder)
	}
}
