package infrastructure

import (
	"fmt"

	"cardroom/events"
)

// DomainEventStream is the JetStream stream holding every published domain event
const DomainEventStream = "domain_events"

var subjectsByType = map[events.EventType]string{
	events.EventTypeBalanceChange:     "users.balance_changed",
	events.EventTypeUserCreated:       "users.created",
	events.EventTypeTableStatusChange: "tables.status_changed",
	events.EventTypeSNGStateChange:    "tables.sng_state_changed",
	events.EventTypeSeatChange:        "seats.changed",
	events.EventTypeHandCompleted:     "hands.completed",
	events.EventTypeWaitlistRouted:    "waitlist.routed",
	events.EventTypeInviteStatus:      "invites.status_changed",
	events.EventTypePlayerTimeout:     "players.timeout",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct {
	typesBySubject map[string]events.EventType
}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	typesBySubject := make(map[string]events.EventType, len(subjectsByType))
	for eventType, subject := range subjectsByType {
		typesBySubject[subject] = eventType
	}
	return &EventSubjectMapper{typesBySubject: typesBySubject}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	if eventType, ok := m.typesBySubject[subject]; ok {
		return eventType
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"users.balance_changed",
		"users.created",
		"tables.status_changed",
		"tables.sng_state_changed",
		"seats.changed",
		"hands.completed",
		"waitlist.routed",
		"invites.status_changed",
		"players.timeout",
	}
}
