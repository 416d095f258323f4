package entities

import (
	"fmt"
	"time"

	"cardroom/domain/apperrors"
)

// TableStatus represents the lifecycle state of a table
type TableStatus string

const (
	TableStatusWaiting TableStatus = "waiting"
	TableStatusActive  TableStatus = "active"
	TableStatusPaused  TableStatus = "paused"
	TableStatusEnded   TableStatus = "ended"
	TableStatusExpired TableStatus = "expired"
)

// tableTransitions is the complete lifecycle graph. Terminal states have no
// outgoing edges.
var tableTransitions = map[TableStatus][]TableStatus{
	TableStatusWaiting: {TableStatusActive, TableStatusEnded, TableStatusExpired},
	TableStatusActive:  {TableStatusPaused, TableStatusEnded, TableStatusExpired},
	TableStatusPaused:  {TableStatusActive, TableStatusEnded, TableStatusExpired},
}

// ParseTableStatus converts a stored value into a TableStatus
func ParseTableStatus(value string) (TableStatus, error) {
	switch s := TableStatus(value); s {
	case TableStatusWaiting, TableStatusActive, TableStatusPaused, TableStatusEnded, TableStatusExpired:
		return s, nil
	}
	return "", fmt.Errorf("unknown table status %q", value)
}

// IsTerminal returns true for ended and expired
func (s TableStatus) IsTerminal() bool {
	return s == TableStatusEnded || s == TableStatusExpired
}

// CanTransitionTo checks the lifecycle graph
func (s TableStatus) CanTransitionTo(to TableStatus) bool {
	for _, allowed := range tableTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Variant is the game type played at a table
type Variant string

const (
	VariantHoldem   Variant = "holdem"
	VariantOmaha    Variant = "omaha"
	VariantSitAndGo Variant = "sit_and_go"
)

// ParseVariant converts a stored or user supplied value into a Variant
func ParseVariant(value string) (Variant, error) {
	switch v := Variant(value); v {
	case VariantHoldem, VariantOmaha, VariantSitAndGo:
		return v, nil
	}
	return "", fmt.Errorf("unknown variant %q", value)
}

// IsTournament returns true for variants driven by the sit-and-go sub-machine
func (v Variant) IsTournament() bool {
	return v == VariantSitAndGo
}

// Table is a single game instance. Seats and hands belong to it.
type Table struct {
	ID                   int64       `db:"id"`
	Status               TableStatus `db:"status"`
	Currency             Currency    `db:"currency"`
	Variant              Variant     `db:"variant"`
	MaxSeats             int         `db:"max_seats"`
	MinPlayers           int         `db:"min_players"`
	BuyIn                int64       `db:"buy_in"`
	StartingStack        int64       `db:"starting_stack"`
	PrizePool            int64       `db:"prize_pool"`
	IsPersistent         bool        `db:"is_persistent"`
	CreatorID            *int64      `db:"creator_id"`
	InviteCode           *string     `db:"invite_code"`
	SNGState             *SNGState   `db:"sng_state"`
	SNGJoinWindowStartAt *time.Time  `db:"sng_join_window_started_at"`
	CreatedAt            time.Time   `db:"created_at"`
	ExpiresAt            *time.Time  `db:"expires_at"`
	LastActionAt         time.Time   `db:"last_action_at"`
	EndedAt              *time.Time  `db:"ended_at"`
}

// IsTerminal returns true if the table can no longer be played
func (t *Table) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// IsTournament returns true for sit-and-go tables
func (t *Table) IsTournament() bool {
	return t.Variant.IsTournament()
}

// IsInviteOnly returns true if the table is reserved for invite holders
func (t *Table) IsInviteOnly() bool {
	return t.InviteCode != nil
}

// BucketKey groups tables and waitlist entries that can be matched together
func (t *Table) BucketKey() string {
	return BucketKey(t.Variant, t.Currency)
}

// TransitionTo moves the table to a new status if the lifecycle graph allows it.
// The table is left unchanged on failure.
func (t *Table) TransitionTo(to TableStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(to) {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "table %d cannot move from %s to %s", t.ID, t.Status, to)
	}
	if to == TableStatusActive && t.IsTournament() {
		if t.SNGState == nil || (*t.SNGState != SNGStateReady && *t.SNGState != SNGStateActive) {
			return apperrors.Newf(apperrors.CodeInvalidTransition, "tournament table %d cannot activate before it is ready", t.ID)
		}
	}
	t.Status = to
	if to.IsTerminal() {
		t.EndedAt = &now
	}
	return nil
}

// Touch records activity on the table. For non-persistent tables the
// expiration horizon is pushed out to now+ttl, never pulled in.
func (t *Table) Touch(now time.Time, ttl time.Duration) {
	t.LastActionAt = now
	if t.IsPersistent || t.IsTerminal() {
		return
	}
	horizon := now.Add(ttl)
	if t.ExpiresAt == nil || horizon.After(*t.ExpiresAt) {
		t.ExpiresAt = &horizon
	}
}

// IsExpired returns true if the enforcer should reclaim the table
func (t *Table) IsExpired(now time.Time) bool {
	if t.IsPersistent || t.IsTerminal() || t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

// AcceptsSeats returns true if new players may sit down
func (t *Table) AcceptsSeats() bool {
	if t.IsTerminal() {
		return false
	}
	if t.IsTournament() {
		return t.SNGState != nil && t.SNGState.AcceptsEntrants()
	}
	return true
}

// IsRoutable returns true if the waitlist router may place players here
func (t *Table) IsRoutable() bool {
	if t.IsInviteOnly() || !t.AcceptsSeats() {
		return false
	}
	return t.Status == TableStatusWaiting || t.Status == TableStatusActive
}

// CurrentSNGState returns the sit-and-go sub-state, or "" for cash tables
func (t *Table) CurrentSNGState() SNGState {
	if t.SNGState == nil {
		return ""
	}
	return *t.SNGState
}

// TransitionSNG moves the sit-and-go sub-machine along its graph
func (t *Table) TransitionSNG(to SNGState, now time.Time) error {
	if !t.IsTournament() {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "table %d is not a tournament table", t.ID)
	}
	from := t.CurrentSNGState()
	if !from.CanTransitionTo(to) {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "tournament table %d cannot move from %s to %s", t.ID, from, to)
	}
	t.SNGState = &to
	switch to {
	case SNGStateJoinWindow:
		t.SNGJoinWindowStartAt = &now
	case SNGStateWaiting:
		t.SNGJoinWindowStartAt = nil
	}
	return nil
}

// JoinWindowElapsed returns true once the sit-and-go countdown has run out
func (t *Table) JoinWindowElapsed(now time.Time, window time.Duration) bool {
	if t.CurrentSNGState() != SNGStateJoinWindow || t.SNGJoinWindowStartAt == nil {
		return false
	}
	return !now.Before(t.SNGJoinWindowStartAt.Add(window))
}

// BucketKey builds the router bucket key for a variant and currency
func BucketKey(variant Variant, currency Currency) string {
	return fmt.Sprintf("%s:%s", variant, currency)
}
