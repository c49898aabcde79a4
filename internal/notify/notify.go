package notify

import "context"

// Dispatcher sends a push notification to a single device token. Any error
// is recoverable from the caller's point of view: the scheduler logs it and
// relies on the next tick for retries.
type Dispatcher interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}
