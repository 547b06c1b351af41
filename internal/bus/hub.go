package bus

import (
	"sync"

	"ridebroker/internal/logging"
)

// subscriberBuffer bounds each subscriber channel. A slow consumer
// drops events rather than blocking publishers; delivery is
// at-least-once on the happy path, never guaranteed.
const subscriberBuffer = 64

// Hub is an in-process Bus implementation. Publishers never block on
// subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{} // session id -> subscriptions
	logger *logging.Logger
}

type subscription struct {
	hub       *Hub
	sessionID string
	kinds     map[EventKind]struct{}
	events    chan Event
	once      sync.Once
}

// NewHub creates a new Hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers interest in a session's events. With no kinds
// given, the subscription receives every kind.
func (h *Hub) Subscribe(sessionID string, kinds ...EventKind) Subscription {
	sub := &subscription{
		hub:       h,
		sessionID: sessionID,
		events:    make(chan Event, subscriberBuffer),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish delivers an event to every matching subscriber of its session.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.SessionID] {
		if sub.kinds != nil {
			if _, ok := sub.kinds[event.Kind]; !ok {
				continue
			}
		}
		select {
		case sub.events <- event:
		default:
			h.logger.Warn("bus subscriber buffer full, dropping event",
				logging.String("session_id", event.SessionID),
				logging.String("event_id", event.EventID),
			)
		}
	}
}

// SubscriberCount returns the number of subscriptions for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set, ok := h.subs[s.sessionID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.sessionID)
			}
		}
		h.mu.Unlock()
		close(s.events)
	})
}

var _ Bus = (*Hub)(nil)
