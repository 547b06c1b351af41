package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionSummaryTTL is deliberately short: the summary is display-only
// (QR resolve path), so a brief staleness window is acceptable and
// saves explicit invalidation.
const SessionSummaryTTL = 30 * time.Second

const sessionSummaryPrefix = "cache:session-summary:"

// SessionSummary is the cached, display-only view of a session handed
// to drivers resolving a QR token.
type SessionSummary struct {
	SessionID        string  `json:"session_id"`
	Status           string  `json:"status"`
	OriginLabel      string  `json:"origin_label"`
	DestinationLabel string  `json:"destination_label"`
	FareAmount       float64 `json:"fare_amount"`
}

// CacheStore handles read-path caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetSessionSummary retrieves a cached summary. A cache miss returns
// (nil, nil).
func (s *CacheStore) GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	data, err := s.client.Get(ctx, sessionSummaryPrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var summary SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SetSessionSummary caches a summary.
func (s *CacheStore) SetSessionSummary(ctx context.Context, summary *SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionSummaryPrefix+summary.SessionID, data, SessionSummaryTTL).Err()
}
