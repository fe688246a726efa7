package logsy

import (
	"context"
	"time"
)

// EventType identifies the mutation an Event announces.
type EventType string

// Event type constants (typed).
const (
	EventTaskCreated   EventType = "task:created"
	EventTaskUpdated   EventType = "task:updated"
	EventObjectCreated EventType = "object:created"
	EventObjectUpdated EventType = "object:updated"
)

// Event is the envelope published for every committed mutation. Instance
// carries the full post-commit field set of the affected entity.
type Event struct {
	Time     time.Time `json:"time"`
	Type     EventType `json:"type"`
	Instance any       `json:"instance"`
}

// EventBus publishes events strictly after the originating transaction has
// committed. Delivery is best-effort: a publish failure must never fail or
// roll back the mutation it announces.
type EventBus interface {
	Publish(ctx context.Context, eventType EventType, instance any) error

	// Close releases the underlying connection at process shutdown.
	Close() error
}
