// Package eventbus publishes execution lifecycle events to external consumers.
package eventbus

import (
	"context"

	"github.com/chutney-testing/chutney-suite/pkg/events"
)

// Event is any lifecycle event of pkg/events.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is what the campaign engine needs. The key orders events of
// the same campaign on partitioned backends.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventHandler receives a pointer to the concrete event registered for its type.
type EventHandler func(ctx context.Context, event any) error

// EventSubscriber dispatches received events by type. Handlers must be
// registered before Subscribe, which returns once every subscription is open.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
