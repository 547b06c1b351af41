package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridebroker/internal/domain"
	"ridebroker/internal/service"
)

func TestSubmitOffer_RecordsPendingOffer(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	offer, err := f.OfferService.Submit(ctx, service.SubmitOfferInput{
		DriverID:  "driver-1",
		SessionID: "s1",
		Type:      domain.OfferTypeCounter,
		Amount:    18,
		Note:      "can be there in 3 minutes",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if offer.Status != domain.OfferStatusPending {
		t.Errorf("expected pending, got %s", offer.Status)
	}
	if offer.ExpiresAt.IsZero() {
		t.Error("expected an expiry on the offer")
	}
	if f.Events.CountByType("s1", domain.EventOfferSubmitted) != 1 {
		t.Error("expected one offer_submitted event")
	}
	// The rider learns about it.
	if f.Pusher.CountForRecipient("rider-1") != 1 {
		t.Error("expected a push to the session owner")
	}
}

func TestSubmitOffer_OnlyDuringDiscovery(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()

	for _, status := range []domain.SessionStatus{
		domain.SessionStatusCreated,
		domain.SessionStatusHold,
		domain.SessionStatusCanceled,
		domain.SessionStatusCompleted,
	} {
		s := BroadcastSession("s-"+string(status), "rider-1", 20)
		s.Status = status
		f.SeedSession(s)

		_, err := f.OfferService.Submit(ctx, service.SubmitOfferInput{
			DriverID:  "driver-1",
			SessionID: s.ID,
			Type:      domain.OfferTypeAccept,
		})
		if !errors.Is(err, service.ErrSessionNotAcceptingOffers) {
			t.Errorf("submit against %s: expected ErrSessionNotAcceptingOffers, got %v", status, err)
		}
	}
}

func TestSubmitOffer_AmountRules(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	// A counter needs a positive amount.
	_, err := f.OfferService.Submit(ctx, service.SubmitOfferInput{
		DriverID: "driver-1", SessionID: "s1", Type: domain.OfferTypeCounter,
	})
	if !errors.Is(err, service.ErrInvalidOfferAmount) {
		t.Errorf("counter without amount: expected ErrInvalidOfferAmount, got %v", err)
	}

	// An accept carries none.
	_, err = f.OfferService.Submit(ctx, service.SubmitOfferInput{
		DriverID: "driver-1", SessionID: "s1", Type: domain.OfferTypeAccept, Amount: 15,
	})
	if !errors.Is(err, service.ErrInvalidOfferAmount) {
		t.Errorf("accept with amount: expected ErrInvalidOfferAmount, got %v", err)
	}

	// Unknown type.
	_, err = f.OfferService.Submit(ctx, service.SubmitOfferInput{
		DriverID: "driver-1", SessionID: "s1", Type: "haggle",
	})
	if !errors.Is(err, service.ErrInvalidOfferType) {
		t.Errorf("unknown type: expected ErrInvalidOfferType, got %v", err)
	}
}

func TestListOffers_RanksByEffectiveAmount(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	// An accept at the requested fare of 20 sits between the counters.
	f.Offers.AddOffer(PendingOffer("o-22", "s1", "driver-a", domain.OfferTypeCounter, 22))
	f.Offers.AddOffer(PendingOffer("o-accept", "s1", "driver-b", domain.OfferTypeAccept, 0))
	f.Offers.AddOffer(PendingOffer("o-18", "s1", "driver-c", domain.OfferTypeCounter, 18))

	ranked, err := f.OfferService.List(ctx, "rider-1", "s1", true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3 offers, got %d", len(ranked))
	}

	wantOrder := []string{"o-18", "o-accept", "o-22"}
	wantAmounts := []float64{18, 20, 22}
	for i, want := range wantOrder {
		if ranked[i].Offer.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, ranked[i].Offer.ID)
		}
		if ranked[i].EffectiveAmount != wantAmounts[i] {
			t.Errorf("position %d: expected effective %v, got %v", i, wantAmounts[i], ranked[i].EffectiveAmount)
		}
	}
}

func TestListOffers_TiesBreakOnSubmissionTime(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	older := PendingOffer("o-old", "s1", "driver-a", domain.OfferTypeCounter, 18)
	older.CreatedAt = time.Now().UTC().Add(-time.Minute)
	newer := PendingOffer("o-new", "s1", "driver-b", domain.OfferTypeCounter, 18)

	// Insert newest first; ranking must still put the older one ahead.
	f.Offers.AddOffer(newer)
	f.Offers.AddOffer(older)

	ranked, err := f.OfferService.List(ctx, "rider-1", "s1", true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if ranked[0].Offer.ID != "o-old" {
		t.Errorf("expected the earlier offer first, got %s", ranked[0].Offer.ID)
	}
}

func TestListOffers_TruncatesToTopThree(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	for i, amount := range []float64{19, 17, 21, 16, 18} {
		f.Offers.AddOffer(PendingOffer(
			"o-"+string(rune('a'+i)), "s1", "driver-"+string(rune('a'+i)),
			domain.OfferTypeCounter, amount,
		))
	}

	top, err := f.OfferService.List(ctx, "rider-1", "s1", false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected top 3, got %d", len(top))
	}
	for i, want := range []float64{16, 17, 18} {
		if top[i].EffectiveAmount != want {
			t.Errorf("position %d: expected %v, got %v", i, want, top[i].EffectiveAmount)
		}
	}

	all, err := f.OfferService.List(ctx, "rider-1", "s1", true)
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected all 5, got %d", len(all))
	}
}

func TestListOffers_ExpiresLapsedOnTheWay(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	lapsed := PendingOffer("o-lapsed", "s1", "driver-a", domain.OfferTypeCounter, 10)
	lapsed.ExpiresAt = time.Now().UTC().Add(-time.Second)
	f.Offers.AddOffer(lapsed)
	f.Offers.AddOffer(PendingOffer("o-live", "s1", "driver-b", domain.OfferTypeCounter, 18))

	ranked, err := f.OfferService.List(ctx, "rider-1", "s1", true)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Offer.ID != "o-live" {
		t.Fatalf("expected only the live offer, got %+v", ranked)
	}
	if f.Offers.GetOffer("o-lapsed").Status != domain.OfferStatusExpired {
		t.Error("expected the lapsed offer marked expired")
	}
}

func TestListOffers_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := NewFixture()
	f.SeedSession(BroadcastSession("s1", "rider-1", 20))

	if _, err := f.OfferService.List(ctx, "driver-1", "s1", false); !errors.Is(err, service.ErrNotSessionOwner) {
		t.Errorf("expected ErrNotSessionOwner, got %v", err)
	}
}
