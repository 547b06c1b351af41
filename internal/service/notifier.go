package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ridebroker/internal/audit"
	"ridebroker/internal/bus"
	"ridebroker/internal/dispatch"
	"ridebroker/internal/domain"
	"ridebroker/internal/logging"
	"ridebroker/internal/observability"
	"ridebroker/internal/repository"
)

const pushTimeout = 3 * time.Second

// Notifier fans one fact out to every delivery channel: the durable
// driver inbox, the push pipeline, the realtime bus and the audit
// stream. Only the inbox write can fail the caller; everything else is
// best-effort.
type Notifier struct {
	notifications repository.NotificationRepository
	pusher        dispatch.Pusher
	bus           bus.Bus
	audit         audit.Publisher
	logger        *logging.Logger
}

// NewNotifier wires the delivery channels together.
func NewNotifier(
	notifications repository.NotificationRepository,
	pusher dispatch.Pusher,
	eventBus bus.Bus,
	auditPub audit.Publisher,
	logger *logging.Logger,
) *Notifier {
	return &Notifier{
		notifications: notifications,
		pusher:        pusher,
		bus:           eventBus,
		audit:         auditPub,
		logger:        logger,
	}
}

// NotifyDriver records a durable inbox row for the driver and then
// attempts a push. The row is the source of truth; a driver who missed
// the push finds the invitation by polling the inbox.
func (n *Notifier) NotifyDriver(ctx context.Context, session *domain.RideSession, driverID string, wave int, title, body string) error {
	row := &domain.DriverNotification{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		DriverID:  driverID,
		Kind:      domain.NotificationInvite,
		Wave:      wave,
		Message:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.notifications.Create(ctx, row); err != nil {
		return err
	}

	n.push(driverID, title, body, map[string]string{
		"session_id": session.ID,
		"wave":       strconv.Itoa(wave),
	})
	return nil
}

// NotifyAcceptance records a durable inbox row telling the winning
// driver their offer was accepted, then follows with a push. Callers
// run it after the selection commit, so a failed row write is logged
// rather than returned and the push is still attempted.
func (n *Notifier) NotifyAcceptance(ctx context.Context, session *domain.RideSession, offer *domain.Offer) {
	body := "The rider accepted your offer."
	row := &domain.DriverNotification{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		DriverID:  offer.DriverID,
		Kind:      domain.NotificationOfferAccepted,
		Wave:      session.Wave,
		Message:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.notifications.Create(ctx, row); err != nil {
		n.logger.Error("acceptance inbox write failed",
			logging.String("session_id", session.ID),
			logging.String("driver_id", offer.DriverID),
			logging.Err(err))
	}

	n.push(offer.DriverID, "Offer accepted", body, map[string]string{
		"session_id": session.ID,
		"offer_id":   offer.ID,
	})
}

// Push sends a standalone best-effort push with no inbox row, used for
// informational updates (offer accepted, session canceled).
func (n *Notifier) Push(recipientID, title, body string, data map[string]string) {
	n.push(recipientID, title, body, data)
}

func (n *Notifier) push(recipientID, title, body string, data map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	err := n.pusher.Push(ctx, dispatch.Notice{
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
		Data:        data,
	})
	if err != nil {
		observability.PushFailures.Inc()
		n.logger.Warn("push delivery failed",
			logging.String("recipient_id", recipientID),
			logging.Err(err))
	}
}

// PublishOffer announces a newly inserted offer on the realtime bus.
func (n *Notifier) PublishOffer(offer *domain.Offer) {
	n.bus.Publish(bus.Event{
		EventID:     uuid.New().String(),
		Kind:        bus.KindOfferInserted,
		SessionID:   offer.SessionID,
		OfferID:     offer.ID,
		DriverID:    offer.DriverID,
		OfferType:   string(offer.Type),
		OfferAmount: offer.Amount,
		OfferNote:   offer.Note,
		OccurredAt:  time.Now().UTC(),
	})
}

// PublishStatus announces a session status change on the realtime bus.
func (n *Notifier) PublishStatus(session *domain.RideSession) {
	n.bus.Publish(bus.Event{
		EventID:      uuid.New().String(),
		Kind:         bus.KindStatusChanged,
		SessionID:    session.ID,
		Status:       string(session.Status),
		FinalAmount:  session.FinalAmount,
		CancelReason: session.CancelReason,
		OccurredAt:   time.Now().UTC(),
	})
}

// Audit mirrors a ride event onto the audit stream. Failures are logged
// and swallowed; the postgres event row is the durable record.
func (n *Notifier) Audit(event *domain.RideEvent) {
	if err := n.audit.Publish(event); err != nil {
		n.logger.Warn("audit publish failed",
			logging.String("session_id", event.SessionID),
			logging.String("event_type", string(event.Type)),
			logging.Err(err))
	}
}
