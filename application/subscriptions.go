package application

import (
	"context"

	"cardroom/events"
	"cardroom/infrastructure/observability"
)

// EventSubscriber registers in-process handlers for published events
type EventSubscriber interface {
	RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error)
}

// RegisterApplicationSubscriptions registers the application-level handlers.
// Events reach them only after the owning transaction commits.
func RegisterApplicationSubscriptions(subscriber EventSubscriber) {
	subscriber.RegisterLocalHandler(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) error {
		e, err := AssertEventType[events.BalanceChangeEvent](event)
		if err != nil {
			return err
		}
		observability.GetMetrics().RecordLedgerTransaction(string(e.Kind), string(e.Currency))
		return nil
	})

	subscriber.RegisterLocalHandler(events.EventTypeTableStatusChange, func(ctx context.Context, event events.Event) error {
		e, err := AssertEventType[events.TableStatusChangeEvent](event)
		if err != nil {
			return err
		}
		observability.GetMetrics().RecordTableTransition(string(e.NewStatus))
		return nil
	})
}
