package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FCMPusher posts JSON to an FCM HTTP v1 endpoint using a server key
// or oauth token.
type FCMPusher struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewFCMPusher creates a pusher against the given endpoint.
func NewFCMPusher(endpoint, key string) *FCMPusher {
	return &FCMPusher{
		endpoint: endpoint,
		key:      key,
		client:   &http.Client{Timeout: 3 * time.Second},
	}
}

// Push delivers one notification.
func (p *FCMPusher) Push(ctx context.Context, notice Notice) error {
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"token": notice.RecipientID,
			"notification": map[string]string{
				"title": notice.Title,
				"body":  notice.Body,
			},
			"data": notice.Data,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.key != "" {
		req.Header.Set("Authorization", "Bearer "+p.key)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}

var _ Pusher = (*FCMPusher)(nil)

// NopPusher discards notifications. Used when no push endpoint is
// configured; the mode is chosen once at startup, not per call.
type NopPusher struct{}

// Push discards the notification.
func (NopPusher) Push(ctx context.Context, notice Notice) error { return nil }

var _ Pusher = (*NopPusher)(nil)
