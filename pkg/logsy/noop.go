package logsy

import "context"

// NoopEventBus discards every event. Useful for environments without a
// broker and for testing.
type NoopEventBus struct{}

// NewNoopEventBus creates a new no-operation event bus
func NewNoopEventBus() EventBus {
	return &NoopEventBus{}
}

// Publish does nothing and returns nil
func (*NoopEventBus) Publish(ctx context.Context, eventType EventType, instance any) error {
	return nil
}

// Close does nothing and returns nil
func (*NoopEventBus) Close() error {
	return nil
}
