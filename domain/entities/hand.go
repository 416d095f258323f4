package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// HandStatus represents the progress of a single hand
type HandStatus string

const (
	HandStatusInProgress    HandStatus = "in_progress"
	HandStatusInterHandWait HandStatus = "inter_hand_wait"
	HandStatusCompleted     HandStatus = "completed"
)

// ParseHandStatus converts a stored value into a HandStatus
func ParseHandStatus(value string) (HandStatus, error) {
	switch s := HandStatus(value); s {
	case HandStatusInProgress, HandStatusInterHandWait, HandStatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("unknown hand status %q", value)
}

// Hand is one deal at a table. Hand numbers increase strictly per table.
type Hand struct {
	ID          int64            `db:"id"`
	TableID     int64            `db:"table_id"`
	HandNumber  int              `db:"hand_number"`
	Pot         int64            `db:"pot"`
	Status      HandStatus       `db:"status"`
	Timeouts    *TimeoutTracking `db:"timeout_tracking"`
	StartedAt   time.Time        `db:"started_at"`
	CompletedAt *time.Time       `db:"completed_at"`
}

// IsInProgress returns true while decisions are still being made
func (h *Hand) IsInProgress() bool {
	return h.Status == HandStatusInProgress
}

// TimeoutTrackingVersion is the current schema version of TimeoutTracking
const TimeoutTrackingVersion = 1

// PlayerTimeouts is the consecutive-timeout record of one seated player
type PlayerTimeouts struct {
	Consecutive   int        `json:"consecutive"`
	LastTimeoutAt *time.Time `json:"last_timeout_at,omitempty"`
	Enforced      bool       `json:"enforced"`
}

// TimeoutTracking holds per-player timeout counters for a hand, keyed by user id
type TimeoutTracking struct {
	Version int                       `json:"version"`
	Players map[int64]*PlayerTimeouts `json:"players"`
}

// NewTimeoutTracking creates tracking entries for the given seated users
func NewTimeoutTracking(userIDs []int64) *TimeoutTracking {
	tracking := &TimeoutTracking{
		Version: TimeoutTrackingVersion,
		Players: make(map[int64]*PlayerTimeouts, len(userIDs)),
	}
	for _, id := range userIDs {
		tracking.Players[id] = &PlayerTimeouts{}
	}
	return tracking
}

// CarryFrom copies counters of players still tracked from the previous hand so
// consecutive timeouts survive the hand boundary. The enforced mark is not
// carried: a player dealt into a new hand with a running streak is enforced
// again on the next timeout.
func (t *TimeoutTracking) CarryFrom(previous *TimeoutTracking) {
	if previous == nil {
		return
	}
	for userID, entry := range t.Players {
		if prev, ok := previous.Players[userID]; ok {
			entry.Consecutive = prev.Consecutive
			entry.LastTimeoutAt = prev.LastTimeoutAt
		}
	}
}

// ParseTimeoutTracking decodes and validates a stored tracking document.
// Unknown fields and versions are rejected.
func ParseTimeoutTracking(data []byte) (*TimeoutTracking, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var tracking TimeoutTracking
	if err := decoder.Decode(&tracking); err != nil {
		return nil, fmt.Errorf("failed to decode timeout tracking: %w", err)
	}
	if tracking.Version != TimeoutTrackingVersion {
		return nil, fmt.Errorf("unsupported timeout tracking version %d", tracking.Version)
	}
	if tracking.Players == nil {
		return nil, errors.New("timeout tracking has no players map")
	}
	for userID, entry := range tracking.Players {
		if entry == nil {
			return nil, fmt.Errorf("timeout tracking entry for user %d is null", userID)
		}
		if entry.Consecutive < 0 {
			return nil, fmt.Errorf("timeout tracking entry for user %d has negative counter", userID)
		}
	}
	return &tracking, nil
}

// Marshal encodes the tracking document for storage
func (t *TimeoutTracking) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

// IsTracked returns true if the user has an entry
func (t *TimeoutTracking) IsTracked(userID int64) bool {
	_, ok := t.Players[userID]
	return ok
}

// Untrack removes a player who left the table
func (t *TimeoutTracking) Untrack(userID int64) {
	delete(t.Players, userID)
}

// RecordTimeout increments the user's consecutive counter and returns it
func (t *TimeoutTracking) RecordTimeout(userID int64, at time.Time) (int, error) {
	entry, ok := t.Players[userID]
	if !ok {
		return 0, fmt.Errorf("user %d is not tracked in this hand", userID)
	}
	entry.Consecutive++
	entry.LastTimeoutAt = &at
	return entry.Consecutive, nil
}

// RecordAction resets the user's consecutive counter after a deliberate action
func (t *TimeoutTracking) RecordAction(userID int64) error {
	entry, ok := t.Players[userID]
	if !ok {
		return fmt.Errorf("user %d is not tracked in this hand", userID)
	}
	entry.Consecutive = 0
	entry.Enforced = false
	return nil
}

// MarkEnforced records that the threshold action was applied for the current run
// of timeouts. Returns false if it had already been applied.
func (t *TimeoutTracking) MarkEnforced(userID int64) bool {
	entry, ok := t.Players[userID]
	if !ok || entry.Enforced {
		return false
	}
	entry.Enforced = true
	return true
}

// Consecutive returns the current counter for the user
func (t *TimeoutTracking) Consecutive(userID int64) int {
	if entry, ok := t.Players[userID]; ok {
		return entry.Consecutive
	}
	return 0
}
