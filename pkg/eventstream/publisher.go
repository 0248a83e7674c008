package eventstream

import "context"

// Publisher publishes entity events to an event stream backend.
// Callers treat publishing as best-effort: errors are logged, never fatal.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
