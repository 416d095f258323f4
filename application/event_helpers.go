package application

import (
	"fmt"

	"cardroom/events"
)

// AssertEventType converts an event to its concrete type. Events may arrive
// by value or by pointer depending on the publisher.
func AssertEventType[T events.Event](event events.Event) (T, error) {
	var zero T

	if event == nil {
		return zero, fmt.Errorf("event type assertion failed: expected %T, got nil", zero)
	}
	if e, ok := any(event).(T); ok {
		return e, nil
	}
	if p, ok := any(event).(*T); ok && p != nil {
		return *p, nil
	}

	return zero, fmt.Errorf("event type assertion failed: expected %T, got %T (event.Type()=%s)", zero, event, event.Type())
}
