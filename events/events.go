package events

import (
	"cardroom/domain/entities"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange     EventType = "balance_change"
	EventTypeUserCreated       EventType = "user_created"
	EventTypeTableStatusChange EventType = "table_status_change"
	EventTypeSNGStateChange    EventType = "sng_state_change"
	EventTypeSeatChange        EventType = "seat_change"
	EventTypeHandCompleted     EventType = "hand_completed"
	EventTypeWaitlistRouted    EventType = "waitlist_routed"
	EventTypeInviteStatus      EventType = "invite_status_change"
	EventTypePlayerTimeout     EventType = "player_timeout"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is emitted for every ledger transaction
type BalanceChangeEvent struct {
	UserID        int64
	Currency      entities.Currency
	OldBalance    int64
	NewBalance    int64
	ChangeAmount  int64
	Kind          entities.TransactionKind
	TransactionID int64
	TableID       *int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new user registration
type UserCreatedEvent struct {
	UserID     int64
	ExternalID string
	Username   string
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// TableStatusChangeEvent represents a table lifecycle transition
type TableStatusChangeEvent struct {
	TableID   int64
	OldStatus entities.TableStatus
	NewStatus entities.TableStatus
	Reason    string
}

func (e TableStatusChangeEvent) Type() EventType {
	return EventTypeTableStatusChange
}

// SNGStateChangeEvent represents a sit-and-go sub-state transition
type SNGStateChangeEvent struct {
	TableID  int64
	OldState entities.SNGState
	NewState entities.SNGState
	Entrants int
}

func (e SNGStateChangeEvent) Type() EventType {
	return EventTypeSNGStateChange
}

// SeatChangeKind describes what happened to a seat
type SeatChangeKind string

const (
	SeatChangeTaken          SeatChangeKind = "taken"
	SeatChangeLeft           SeatChangeKind = "left"
	SeatChangeSitOutNextHand SeatChangeKind = "sit_out_next_hand"
	SeatChangeSittingOut     SeatChangeKind = "sitting_out"
	SeatChangeReturned       SeatChangeKind = "returned"
	SeatChangeLeaveAfterHand SeatChangeKind = "leave_after_hand"
)

// SeatChangeEvent represents a change in seat occupancy or sit-out state
type SeatChangeEvent struct {
	TableID   int64
	SeatID    int64
	UserID    int64
	SeatIndex int
	Change    SeatChangeKind
	Stack     int64
}

func (e SeatChangeEvent) Type() EventType {
	return EventTypeSeatChange
}

// HandCompletedEvent is emitted when a hand has been settled
type HandCompletedEvent struct {
	TableID    int64
	HandID     int64
	HandNumber int
	Pot        int64
	Winners    map[int64]int64 // Seat ID -> amount won
}

func (e HandCompletedEvent) Type() EventType {
	return EventTypeHandCompleted
}

// WaitlistRoutedEvent represents a waitlist entry placed at a table
type WaitlistRoutedEvent struct {
	EntryID  int64
	UserID   int64
	TableID  int64
	NewTable bool
}

func (e WaitlistRoutedEvent) Type() EventType {
	return EventTypeWaitlistRouted
}

// InviteStatusChangeEvent represents a group game invite transition
type InviteStatusChangeEvent struct {
	InviteID  int64
	GameID    int64
	OldStatus entities.InviteStatus
	NewStatus entities.InviteStatus
}

func (e InviteStatusChangeEvent) Type() EventType {
	return EventTypeInviteStatus
}

// TimeoutAction is the enforcement applied after repeated timeouts
type TimeoutAction string

const (
	TimeoutActionNone           TimeoutAction = "none"
	TimeoutActionSitOutNextHand TimeoutAction = "sit_out_next_hand"
	TimeoutActionForceLeave     TimeoutAction = "force_leave"
)

// PlayerTimeoutEvent is emitted when a player times out on a decision
type PlayerTimeoutEvent struct {
	TableID     int64
	HandID      int64
	UserID      int64
	Consecutive int
	Action      TimeoutAction
}

func (e PlayerTimeoutEvent) Type() EventType {
	return EventTypePlayerTimeout
}
