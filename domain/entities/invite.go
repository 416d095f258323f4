package entities

import (
	"fmt"
	"strings"
	"time"
)

// InviteStatus represents the state of a group game invite
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusReady    InviteStatus = "ready"
	InviteStatusConsumed InviteStatus = "consumed"
	InviteStatusExpired  InviteStatus = "expired"
)

var inviteTransitions = map[InviteStatus][]InviteStatus{
	InviteStatusPending: {InviteStatusReady, InviteStatusExpired},
	InviteStatusReady:   {InviteStatusConsumed, InviteStatusExpired},
}

// ParseInviteStatus converts a stored value into an InviteStatus. Legacy
// capitalized values are normalized to lowercase.
func ParseInviteStatus(value string) (InviteStatus, error) {
	switch s := InviteStatus(strings.ToLower(strings.TrimSpace(value))); s {
	case InviteStatusPending, InviteStatusReady, InviteStatusConsumed, InviteStatusExpired:
		return s, nil
	}
	return "", fmt.Errorf("unknown invite status %q", value)
}

// CanTransitionTo checks the forward-only invite graph
func (s InviteStatus) CanTransitionTo(to InviteStatus) bool {
	for _, allowed := range inviteTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsOpen returns true while the invite can still become consumed
func (s InviteStatus) IsOpen() bool {
	return s == InviteStatusPending || s == InviteStatusReady
}

// GroupGameInvite is a single-use deep link into a table
type GroupGameInvite struct {
	ID         int64        `db:"id"`
	GameID     int64        `db:"game_id"`
	CreatorID  int64        `db:"creator_id"`
	GroupID    *string      `db:"group_id"`
	Status     InviteStatus `db:"status"`
	Token      string       `db:"token"`
	ExpiresAt  time.Time    `db:"expires_at"`
	ConsumedAt *time.Time   `db:"consumed_at"`
	ConsumedBy *int64       `db:"consumed_by"`
	CreatedAt  time.Time    `db:"created_at"`
}

// IsPastDeadline returns true once the invite can no longer be used
func (i *GroupGameInvite) IsPastDeadline(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsConsumed returns true if a player already used the invite
func (i *GroupGameInvite) IsConsumed() bool {
	return i.Status == InviteStatusConsumed
}
