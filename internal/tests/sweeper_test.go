package tests

import (
	"context"
	"testing"
	"time"

	"ridebroker/internal/domain"
)

func TestSweep_ExpiresStaleHold(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.Status = domain.SessionStatusHold
	s.SelectedDriverID = "driver-a"
	s.SelectedOfferID = "o-1"
	s.HoldStartAt = time.Now().UTC().Add(-10 * time.Minute)
	f.SeedSession(s)

	accepted := PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeCounter, 18)
	accepted.Status = domain.OfferStatusAccepted
	f.Offers.AddOffer(accepted)

	f.Sweeper.SweepNow(ctx)

	updated := f.Sessions.GetSession("s1")
	if updated.Status != domain.SessionStatusExpired {
		t.Fatalf("expected expired, got %s", updated.Status)
	}
	if f.Offers.GetOffer("o-1").Status != domain.OfferStatusExpired {
		t.Error("expected the accepted offer expired with the session")
	}
	if f.Events.CountByType("s1", domain.EventSessionExpired) != 1 {
		t.Error("expected one expired event")
	}
	// Both parties hear about it.
	if f.Pusher.CountForRecipient("rider-1") != 1 || f.Pusher.CountForRecipient("driver-a") != 1 {
		t.Error("expected pushes to rider and held driver")
	}
}

func TestSweep_LeavesFreshHoldAlone(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.Status = domain.SessionStatusHold
	s.HoldStartAt = time.Now().UTC().Add(-time.Minute)
	f.SeedSession(s)

	f.Sweeper.SweepNow(ctx)

	if f.Sessions.GetSession("s1").Status != domain.SessionStatusHold {
		t.Error("a hold inside the timeout must survive the sweep")
	}
}

func TestSweep_AutoExpandsQuietDiscovery(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.LastWaveAt = time.Now().UTC().Add(-2 * time.Minute)
	f.SeedSession(s)

	f.Sweeper.SweepNow(ctx)

	updated := f.Sessions.GetSession("s1")
	if updated.Wave != 2 {
		t.Errorf("expected auto-expansion to wave 2, got %d", updated.Wave)
	}
	if f.Events.CountByType("s1", domain.EventWaveExpanded) != 1 {
		t.Error("expected a wave_expanded event")
	}
}

func TestSweep_DoesNotExpandWhenOffersExist(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.LastWaveAt = time.Now().UTC().Add(-2 * time.Minute)
	f.SeedSession(s)
	f.Offers.AddOffer(PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeAccept, 0))

	f.Sweeper.SweepNow(ctx)

	if f.Sessions.GetSession("s1").Wave != 1 {
		t.Error("a session with offers on the table must not auto-expand")
	}
}

func TestSweep_ExpiresExhaustedDiscovery(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.Wave = len(testRadii) // ladder done
	s.DiscoveryStartAt = time.Now().UTC().Add(-30 * time.Minute)
	s.LastWaveAt = time.Now().UTC().Add(-20 * time.Minute)
	f.SeedSession(s)

	f.Sweeper.SweepNow(ctx)

	if f.Sessions.GetSession("s1").Status != domain.SessionStatusExpired {
		t.Errorf("expected expired, got %s", f.Sessions.GetSession("s1").Status)
	}
}

func TestSweep_KeepsExhaustedDiscoveryWithLiveOffer(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.Wave = len(testRadii)
	s.DiscoveryStartAt = time.Now().UTC().Add(-30 * time.Minute)
	s.LastWaveAt = time.Now().UTC().Add(-20 * time.Minute)
	f.SeedSession(s)
	f.Offers.AddOffer(PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeCounter, 18))

	f.Sweeper.SweepNow(ctx)

	// The rider still has a selectable offer; the session stays theirs
	// to decide on, however old it is.
	if f.Sessions.GetSession("s1").Status != domain.SessionStatusDiscovery {
		t.Errorf("expected discovery, got %s", f.Sessions.GetSession("s1").Status)
	}
	if f.Offers.GetOffer("o-1").Status != domain.OfferStatusPending {
		t.Error("expected the live offer untouched")
	}
}

func TestSweep_ExpiresLapsedOffersGlobally(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	lapsed := PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeCounter, 18)
	lapsed.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	f.Offers.AddOffer(lapsed)
	f.Offers.AddOffer(PendingOffer("o-2", "s1", "driver-b", domain.OfferTypeCounter, 19))

	f.Sweeper.SweepNow(ctx)

	if f.Offers.GetOffer("o-1").Status != domain.OfferStatusExpired {
		t.Error("expected the lapsed offer expired")
	}
	if f.Offers.GetOffer("o-2").Status != domain.OfferStatusPending {
		t.Error("expected the live offer untouched")
	}
}

func TestSweep_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	s := BroadcastSession("s1", "rider-1", 20)
	s.Status = domain.SessionStatusHold
	s.HoldStartAt = time.Now().UTC().Add(-10 * time.Minute)
	f.SeedSession(s)

	f.Locks.ForceAcquireFailure = true
	f.Sweeper.SweepNow(ctx)

	if f.Sessions.GetSession("s1").Status != domain.SessionStatusHold {
		t.Error("a sweep without the lock must not touch anything")
	}
}
