package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"cardroom/domain/entities"
	"cardroom/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu              sync.Mutex
	PublishedEvents []events.Event
	PublishError    error
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, event)
	return nil
}

// fakeNATS records raw messages handed to JetStream
type fakeNATS struct {
	subjects []string
	messages [][]byte
	err      error
}

func (f *fakeNATS) Publish(ctx context.Context, subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.messages = append(f.messages, data)
	return nil
}

func seatTaken(seatID int64) events.SeatChangeEvent {
	return events.SeatChangeEvent{
		TableID:   10,
		SeatID:    seatID,
		UserID:    20,
		SeatIndex: 0,
		Change:    events.SeatChangeTaken,
		Stack:     400,
	}
}

func TestNATSTransactionalPublisher_FlushPublishesInOrder(t *testing.T) {
	// Setup
	mockPublisher := &MockEventPublisher{}
	transPublisher := NewNATSTransactionalPublisher(mockPublisher).(*NATSTransactionalPublisher)

	// Execute
	require.NoError(t, transPublisher.Publish(seatTaken(1)))
	require.NoError(t, transPublisher.Publish(seatTaken(2)))

	// Verify nothing leaves before flush
	assert.Empty(t, mockPublisher.PublishedEvents)
	assert.Equal(t, 2, transPublisher.Pending())

	require.NoError(t, transPublisher.Flush(context.Background()))

	require.Len(t, mockPublisher.PublishedEvents, 2)
	assert.Equal(t, seatTaken(1), mockPublisher.PublishedEvents[0])
	assert.Equal(t, seatTaken(2), mockPublisher.PublishedEvents[1])
	assert.Equal(t, 0, transPublisher.Pending())

	// A second flush publishes nothing new
	require.NoError(t, transPublisher.Flush(context.Background()))
	assert.Len(t, mockPublisher.PublishedEvents, 2)
}

func TestNATSTransactionalPublisher_Discard(t *testing.T) {
	// Setup
	mockPublisher := &MockEventPublisher{}
	transPublisher := NewNATSTransactionalPublisher(mockPublisher)
	require.NoError(t, transPublisher.Publish(seatTaken(1)))

	// Execute
	transPublisher.Discard()
	require.NoError(t, transPublisher.Flush(context.Background()))

	// Verify
	assert.Empty(t, mockPublisher.PublishedEvents)
}

func TestNATSTransactionalPublisher_FlushSurvivesPublishErrors(t *testing.T) {
	mockPublisher := &MockEventPublisher{PublishError: errors.New("broker down")}
	transPublisher := NewNATSTransactionalPublisher(mockPublisher)
	require.NoError(t, transPublisher.Publish(seatTaken(1)))

	err := transPublisher.Flush(context.Background())

	assert.NoError(t, err)
}

func TestNATSEventPublisher_LocalHandlersAndEnvelope(t *testing.T) {
	// Setup
	client := &fakeNATS{}
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	var received []events.Event
	publisher.RegisterLocalHandler(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) error {
		received = append(received, event)
		return nil
	})
	publisher.RegisterLocalHandler(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) error {
		return errors.New("handler failure does not block publishing")
	})

	event := events.BalanceChangeEvent{
		UserID:       7,
		Currency:     entities.CurrencyPlay,
		OldBalance:   0,
		NewBalance:   10000,
		ChangeAmount: 10000,
		Kind:         entities.TransactionKindInitialGrant,
	}

	// Execute
	err := publisher.Publish(event)

	// Verify
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, event, received[0])

	require.Len(t, client.subjects, 1)
	assert.Equal(t, "users.balance_changed", client.subjects[0])

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(client.messages[0], &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "balance_change", envelope.EventType)
	assert.Equal(t, "cardroom", envelope.SourceService)

	var payload events.BalanceChangeEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event, payload)
}

func TestNATSEventPublisher_MissingStreamIsNotAnError(t *testing.T) {
	client := &fakeNATS{err: errors.New("nats: no response from stream")}
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	assert.NoError(t, publisher.Publish(seatTaken(1)))

	client.err = errors.New("connection refused")
	assert.Error(t, publisher.Publish(seatTaken(1)))
}

func TestEventSubjectMapper(t *testing.T) {
	mapper := NewEventSubjectMapper()

	for _, subject := range mapper.GetAllSubjects() {
		eventType := mapper.MapSubjectToEventType(subject)
		assert.Contains(t, subjectsByType, eventType, "subject %s has no event type", subject)
		assert.Equal(t, subject, subjectsByType[eventType])
	}
	assert.Len(t, mapper.GetAllSubjects(), len(subjectsByType))

	assert.Equal(t, "tables.status_changed", mapper.MapEventToSubject(events.TableStatusChangeEvent{}))
	assert.Equal(t, "players.timeout", mapper.MapEventToSubject(events.PlayerTimeoutEvent{}))
}
