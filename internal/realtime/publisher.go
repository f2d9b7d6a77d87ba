package realtime

import "context"

// Publisher publishes an event to everyone subscribed to an organization.
// Implementations never fail the caller: delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, organizationID string, eventType EventType, payload any)
}

// NopPublisher discards events. Used when real-time delivery is disabled.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, string, EventType, any) {}
