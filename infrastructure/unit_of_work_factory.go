package infrastructure

import (
	"context"

	"cardroom/application"
	"cardroom/database"
	"cardroom/domain/interfaces"
	"cardroom/events"
	"cardroom/repository"
)

// UnitOfWorkFactory implements application.UnitOfWorkFactory. Every unit of
// work gets its own transactional publisher in front of the shared publisher.
type UnitOfWorkFactory struct {
	repoFactory interface {
		CreateWithPublisher(transactionalPublisher application.TransactionalPublisher) application.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory
func NewUnitOfWorkFactory(db *database.DB, eventPublisher interfaces.EventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repository.NewUnitOfWorkFactory(db),
		eventPublisher: eventPublisher,
	}
}

// RegisterLocalHandler registers an in-process handler on the underlying
// publisher, whichever kind it is
func (f *UnitOfWorkFactory) RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error) {
	switch publisher := f.eventPublisher.(type) {
	case *NATSEventPublisher:
		publisher.RegisterLocalHandler(eventType, handler)
	case *events.Bus:
		publisher.Subscribe(eventType, func(ctx context.Context, event events.Event) {
			_ = handler(ctx, event)
		})
	}
}

// Create creates a new UnitOfWork with a transactional event publisher
func (f *UnitOfWorkFactory) Create() application.UnitOfWork {
	return f.repoFactory.CreateWithPublisher(NewNATSTransactionalPublisher(f.eventPublisher))
}
