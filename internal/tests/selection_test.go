package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridebroker/internal/domain"
	"ridebroker/internal/service"
)

func TestSelect_CommitsWinnerAndRejectsRest(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))
	f.Offers.AddOffer(PendingOffer("o-18", "s1", "driver-a", domain.OfferTypeCounter, 18))
	f.Offers.AddOffer(PendingOffer("o-accept", "s1", "driver-b", domain.OfferTypeAccept, 0))
	f.Offers.AddOffer(PendingOffer("o-22", "s1", "driver-c", domain.OfferTypeCounter, 22))

	result, err := f.SelectionService.Select(ctx, "rider-1", "s1", "o-18")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}

	if result.Session.Status != domain.SessionStatusHold {
		t.Errorf("expected hold, got %s", result.Session.Status)
	}
	if result.Session.SelectedDriverID != "driver-a" {
		t.Errorf("expected driver-a selected, got %s", result.Session.SelectedDriverID)
	}
	if result.Session.FinalAmount != 18 {
		t.Errorf("expected final amount 18, got %v", result.Session.FinalAmount)
	}
	if result.Session.HoldStartAt.IsZero() {
		t.Error("expected hold start recorded")
	}

	if f.Offers.GetOffer("o-18").Status != domain.OfferStatusAccepted {
		t.Error("expected the chosen offer accepted")
	}
	if f.Offers.CountByStatus("s1", domain.OfferStatusRejected) != 2 {
		t.Errorf("expected 2 rejected, got %d", f.Offers.CountByStatus("s1", domain.OfferStatusRejected))
	}
	if f.Events.CountByType("s1", domain.EventOfferAccepted) != 1 {
		t.Error("expected one offer_accepted event")
	}

	// Winner and losers all hear about it.
	if f.Pusher.CountForRecipient("driver-a") != 1 {
		t.Error("expected a push to the winner")
	}
	if f.Pusher.CountForRecipient("driver-b") != 1 || f.Pusher.CountForRecipient("driver-c") != 1 {
		t.Error("expected pushes to the losing drivers")
	}
	// The winner also gets a durable inbox record; a missed push must
	// not be the only trace of the acceptance. Losers stay push-only.
	if f.Notifications.CountForDriver("driver-a") != 1 {
		t.Errorf("expected an inbox record for the winner, got %d", f.Notifications.CountForDriver("driver-a"))
	}
	if f.Notifications.CountForDriver("driver-b") != 0 {
		t.Error("losing drivers get no inbox record")
	}
}

func TestSelect_WinnerInboxRecordsAcceptance(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))
	f.Offers.AddOffer(PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeCounter, 18))

	if _, err := f.SelectionService.Select(ctx, "rider-1", "s1", "o-1"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	rows, err := f.Notifications.ListByDriver(ctx, "driver-a", 10)
	if err != nil {
		t.Fatalf("inbox read failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one inbox record, got %d", len(rows))
	}
	if rows[0].Kind != domain.NotificationOfferAccepted {
		t.Errorf("expected %s kind, got %s", domain.NotificationOfferAccepted, rows[0].Kind)
	}
	if rows[0].SessionID != "s1" {
		t.Errorf("expected the record bound to s1, got %s", rows[0].SessionID)
	}
}

func TestSelect_PropagatesStoreFailure(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))
	f.Offers.AddOffer(PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeCounter, 18))

	f.TxStore.RunError = ErrMockTimeout
	if _, err := f.SelectionService.Select(ctx, "rider-1", "s1", "o-1"); !errors.Is(err, ErrMockTimeout) {
		t.Fatalf("expected the store error surfaced, got %v", err)
	}

	// Nothing committed.
	if f.Offers.GetOffer("o-1").Status != domain.OfferStatusPending {
		t.Error("expected the offer untouched")
	}
	if f.Sessions.GetSession("s1").Status != domain.SessionStatusDiscovery {
		t.Error("expected the session untouched")
	}
}

func TestSelect_AcceptOfferBidsRequestedFare(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))
	f.Offers.AddOffer(PendingOffer("o-accept", "s1", "driver-a", domain.OfferTypeAccept, 0))

	result, err := f.SelectionService.Select(ctx, "rider-1", "s1", "o-accept")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if result.Session.FinalAmount != 20 {
		t.Errorf("expected the requested fare 20, got %v", result.Session.FinalAmount)
	}
}

func TestSelect_SecondSelectionLosesTheRace(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))
	f.Offers.AddOffer(PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeAccept, 0))
	f.Offers.AddOffer(PendingOffer("o-2", "s1", "driver-b", domain.OfferTypeCounter, 18))

	if _, err := f.SelectionService.Select(ctx, "rider-1", "s1", "o-1"); err != nil {
		t.Fatalf("first select failed: %v", err)
	}
	if _, err := f.SelectionService.Select(ctx, "rider-1", "s1", "o-2"); !errors.Is(err, service.ErrSessionNotInDiscovery) {
		t.Errorf("expected ErrSessionNotInDiscovery, got %v", err)
	}
}

func TestSelect_ExpiredOfferRefusedAndMarked(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	lapsed := PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeCounter, 18)
	lapsed.ExpiresAt = time.Now().UTC().Add(-time.Second)
	f.Offers.AddOffer(lapsed)

	if _, err := f.SelectionService.Select(ctx, "rider-1", "s1", "o-1"); !errors.Is(err, service.ErrOfferExpired) {
		t.Fatalf("expected ErrOfferExpired, got %v", err)
	}

	// The refusal leaves the session selectable and the offer dead.
	if f.Sessions.GetSession("s1").Status != domain.SessionStatusDiscovery {
		t.Error("session must stay in discovery")
	}
	if f.Offers.GetOffer("o-1").Status != domain.OfferStatusExpired {
		t.Error("expected the offer marked expired")
	}
}

func TestSelect_Guards(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))
	f.SeedSession(BroadcastSession("s2", "rider-2", 30))
	f.Offers.AddOffer(PendingOffer("o-1", "s1", "driver-a", domain.OfferTypeAccept, 0))
	f.Offers.AddOffer(PendingOffer("o-other", "s2", "driver-b", domain.OfferTypeAccept, 0))

	rejected := PendingOffer("o-rejected", "s1", "driver-c", domain.OfferTypeAccept, 0)
	rejected.Status = domain.OfferStatusRejected
	f.Offers.AddOffer(rejected)

	cases := []struct {
		name      string
		callerID  string
		sessionID string
		offerID   string
		wantErr   error
	}{
		{"unknown session", "rider-1", "missing", "o-1", service.ErrSessionNotFound},
		{"unknown offer", "rider-1", "s1", "missing", service.ErrOfferNotFound},
		{"not the owner", "driver-a", "s1", "o-1", service.ErrNotSessionOwner},
		{"offer from another session", "rider-1", "s1", "o-other", service.ErrOfferSessionMismatch},
		{"already resolved offer", "rider-1", "s1", "o-rejected", service.ErrOfferNotPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.SelectionService.Select(ctx, tc.callerID, tc.sessionID, tc.offerID); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSelect_ConcurrentSelectionsYieldOneWinner(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	offerIDs := []string{"o-1", "o-2", "o-3", "o-4", "o-5"}
	for i, id := range offerIDs {
		f.Offers.AddOffer(PendingOffer(id, "s1", "driver-"+id, domain.OfferTypeCounter, 15+float64(i)))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, id := range offerIDs {
		wg.Add(1)
		go func(offerID string) {
			defer wg.Done()
			if _, err := f.SelectionService.Select(ctx, "rider-1", "s1", offerID); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winning selection, got %d", winners)
	}
	if f.Offers.CountByStatus("s1", domain.OfferStatusAccepted) != 1 {
		t.Errorf("expected exactly one accepted offer, got %d", f.Offers.CountByStatus("s1", domain.OfferStatusAccepted))
	}
	if f.Offers.CountByStatus("s1", domain.OfferStatusRejected) != 4 {
		t.Errorf("expected four rejected offers, got %d", f.Offers.CountByStatus("s1", domain.OfferStatusRejected))
	}
	if f.Sessions.GetSession("s1").Status != domain.SessionStatusHold {
		t.Error("expected the session in hold")
	}
}

func TestSubmitOffer_AfterCancelIsRefused(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	if _, err := f.SessionService.Cancel(ctx, "rider-1", "s1", "done waiting"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := f.OfferService.Submit(ctx, service.SubmitOfferInput{
		DriverID: "driver-late", SessionID: "s1", Type: domain.OfferTypeAccept,
	})
	if !errors.Is(err, service.ErrSessionNotAcceptingOffers) {
		t.Errorf("late offer: expected ErrSessionNotAcceptingOffers, got %v", err)
	}
}
