package dispatch

import "context"

// Notice is one push notification to a driver or rider device.
type Notice struct {
	RecipientID string
	Title       string
	Body        string
	Data        map[string]string
}

// Pusher sends push notifications. Delivery is best-effort: callers
// run it with a bounded timeout and log failures, they never surface
// a push error to the user. The durable inbox row is written first,
// regardless of push outcome.
type Pusher interface {
	Push(ctx context.Context, notice Notice) error
}
