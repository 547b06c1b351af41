package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridebroker/internal/bus"
	"ridebroker/internal/domain"
)

func offerEvent(id, offerID, driverID string, offerType string, amount float64) bus.Event {
	return bus.Event{
		EventID:     id,
		Kind:        bus.KindOfferInserted,
		SessionID:   "s1",
		OfferID:     offerID,
		DriverID:    driverID,
		OfferType:   offerType,
		OfferAmount: amount,
		OccurredAt:  time.Now().UTC(),
	}
}

func statusEvent(id string, status domain.SessionStatus) bus.Event {
	return bus.Event{
		EventID:    id,
		Kind:       bus.KindStatusChanged,
		SessionID:  "s1",
		Status:     string(status),
		OccurredAt: time.Now().UTC(),
	}
}

func TestApply_DuplicatesAreDroppedByEventID(t *testing.T) {
	c := NewController("s1", domain.SessionStatusDiscovery, 20)

	event := offerEvent("e1", "o1", "driver-a", string(domain.OfferTypeCounter), 18)
	assert.True(t, c.Apply(event))
	assert.False(t, c.Apply(event), "a replayed event must be a no-op")
	assert.Len(t, c.Snapshot().Offers, 1)
}

func TestApply_IgnoresOtherSessions(t *testing.T) {
	c := NewController("s1", domain.SessionStatusDiscovery, 20)

	stray := offerEvent("e1", "o1", "driver-a", string(domain.OfferTypeCounter), 18)
	stray.SessionID = "s2"
	assert.False(t, c.Apply(stray))
	assert.Empty(t, c.Snapshot().Offers)
}

func TestApply_IllegalStatusJumpIgnored(t *testing.T) {
	c := NewController("s1", domain.SessionStatusDiscovery, 20)

	// discovery cannot reach active without hold and confirmed.
	assert.False(t, c.Apply(statusEvent("e1", domain.SessionStatusActive)))
	assert.Equal(t, domain.SessionStatusDiscovery, c.Phase())

	// The legal chain applies.
	assert.True(t, c.Apply(statusEvent("e2", domain.SessionStatusHold)))
	assert.True(t, c.Apply(statusEvent("e3", domain.SessionStatusConfirmed)))
	assert.True(t, c.Apply(statusEvent("e4", domain.SessionStatusActive)))
	assert.Equal(t, domain.SessionStatusActive, c.Phase())
}

func TestApply_OutOfOrderStatusDoesNotRegress(t *testing.T) {
	c := NewController("s1", domain.SessionStatusDiscovery, 20)

	require.True(t, c.Apply(statusEvent("e1", domain.SessionStatusHold)))

	// A late discovery-phase event arrives after the hold.
	assert.False(t, c.Apply(statusEvent("e2", domain.SessionStatusDiscovery)))
	assert.Equal(t, domain.SessionStatusHold, c.Phase())
}

func TestApply_LeavingDiscoveryClearsOffers(t *testing.T) {
	c := NewController("s1", domain.SessionStatusDiscovery, 20)

	require.True(t, c.Apply(offerEvent("e1", "o1", "driver-a", string(domain.OfferTypeCounter), 18)))
	require.True(t, c.Apply(offerEvent("e2", "o2", "driver-b", string(domain.OfferTypeAccept), 0)))
	require.Len(t, c.Snapshot().Offers, 2)

	hold := statusEvent("e3", domain.SessionStatusHold)
	hold.FinalAmount = 18
	require.True(t, c.Apply(hold))

	snap := c.Snapshot()
	assert.Empty(t, snap.Offers, "offers are not selectable once discovery ends")
	assert.Equal(t, 18.0, snap.FinalAmount)
}

func TestApply_OffersRefusedOutsideDiscovery(t *testing.T) {
	c := NewController("s1", domain.SessionStatusHold, 20)

	assert.False(t, c.Apply(offerEvent("e1", "o1", "driver-a", string(domain.OfferTypeCounter), 18)))
	assert.Empty(t, c.Snapshot().Offers)
}

func TestSnapshot_RanksByEffectiveAmount(t *testing.T) {
	c := NewController("s1", domain.SessionStatusDiscovery, 20)

	// An accept bids the requested fare of 20.
	require.True(t, c.Apply(offerEvent("e1", "o-22", "driver-a", string(domain.OfferTypeCounter), 22)))
	require.True(t, c.Apply(offerEvent("e2", "o-accept", "driver-b", string(domain.OfferTypeAccept), 0)))
	require.True(t, c.Apply(offerEvent("e3", "o-18", "driver-c", string(domain.OfferTypeCounter), 18)))

	snap := c.Snapshot()
	require.Len(t, snap.Offers, 3)
	assert.Equal(t, "o-18", snap.Offers[0].OfferID)
	assert.Equal(t, "o-accept", snap.Offers[1].OfferID)
	assert.Equal(t, "o-22", snap.Offers[2].OfferID)
}

func TestApply_CancelReasonSurvivesDuplicateStatus(t *testing.T) {
	c := NewController("s1", domain.SessionStatusDiscovery, 20)

	canceled := statusEvent("e1", domain.SessionStatusCanceled)
	canceled.CancelReason = "changed plans"
	require.True(t, c.Apply(canceled))

	// A redelivery with a different event id reports no change but keeps
	// the details.
	replay := statusEvent("e2", domain.SessionStatusCanceled)
	replay.CancelReason = "changed plans"
	assert.False(t, c.Apply(replay))

	snap := c.Snapshot()
	assert.Equal(t, domain.SessionStatusCanceled, snap.Phase)
	assert.Equal(t, "changed plans", snap.CancelReason)
	assert.True(t, c.Done())
}
