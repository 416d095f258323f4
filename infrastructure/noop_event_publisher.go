package infrastructure

import (
	"cardroom/events"
)

// NoopEventPublisher is an event publisher that does nothing.
// Admin commands use it so backfills never notify players.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Publish does nothing with the event
func (n *NoopEventPublisher) Publish(event events.Event) error {
	return nil
}
