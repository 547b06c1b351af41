package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// notifiedTTL keeps per-session dedupe sets from outliving their
// sessions. Well past any discovery window.
const notifiedTTL = 24 * time.Hour

// NotifiedStore tracks which drivers have already been notified for a
// session, so no wave ever notifies the same driver twice.
type NotifiedStore struct {
	client *redis.Client
}

// NewNotifiedStore creates a new NotifiedStore.
func NewNotifiedStore(client *redis.Client) *NotifiedStore {
	return &NotifiedStore{client: client}
}

func notifiedKey(sessionID string) string {
	return fmt.Sprintf("session:%s:notified", sessionID)
}

// MarkNotified records that a driver was notified for the session.
// Returns true if this was the first notification for that driver.
func (s *NotifiedStore) MarkNotified(ctx context.Context, sessionID, driverID string) (bool, error) {
	key := notifiedKey(sessionID)

	added, err := s.client.SAdd(ctx, key, driverID).Result()
	if err != nil {
		return false, err
	}
	s.client.Expire(ctx, key, notifiedTTL)

	return added == 1, nil
}

// WasNotified reports whether the driver was already notified for the session.
func (s *NotifiedStore) WasNotified(ctx context.Context, sessionID, driverID string) (bool, error) {
	return s.client.SIsMember(ctx, notifiedKey(sessionID), driverID).Result()
}

// NotifiedCount returns how many drivers have been notified for the session.
func (s *NotifiedStore) NotifiedCount(ctx context.Context, sessionID string) (int64, error) {
	return s.client.SCard(ctx, notifiedKey(sessionID)).Result()
}
