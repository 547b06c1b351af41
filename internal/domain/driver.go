package domain

import "time"

// Driver is the coordinator's view of a driver actor: just enough to
// decide whether and when to notify them. Profile, vehicle and rating
// data live with the driver-side service.
type Driver struct {
	ID              string
	Active          bool     // currently online
	Accepting       bool     // willing to receive broadcast requests
	ServiceAreaTags []string // declared coverage zones, e.g. "zone:center"
}

// CoversAny reports whether the driver's declared service area
// intersects the given zone tags.
func (d *Driver) CoversAny(tags []string) bool {
	for _, want := range tags {
		for _, have := range d.ServiceAreaTags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// NotificationKind distinguishes wave invitations from outcome notices
// in the driver inbox.
type NotificationKind string

const (
	NotificationInvite        NotificationKind = "invite"
	NotificationOfferAccepted NotificationKind = "offer_accepted"
)

// DriverNotification is the durable inbox record written once per
// notified driver per session wave, and once for the driver whose
// offer wins selection. Push delivery is best-effort on top of this
// row, never instead of it.
type DriverNotification struct {
	ID        string
	SessionID string
	DriverID  string
	Kind      NotificationKind
	Wave      int
	Message   string
	CreatedAt time.Time
}
