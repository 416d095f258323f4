package interfaces

import (
	"context"

	"cardroom/domain/entities"
)

// SeatSnapshot is one player's position at the end of a hand
type SeatSnapshot struct {
	SeatID    int64 `json:"seat_id"`
	UserID    int64 `json:"user_id"`
	SeatIndex int   `json:"seat_index"`
	Stack     int64 `json:"stack"`     // Stack before the hand's contributions are removed
	Committed int64 `json:"committed"` // Chips put into the pot during the hand
	Folded    bool  `json:"folded"`
}

// HandSnapshot is the state handed to the rules engine for settlement
type HandSnapshot struct {
	TableID    int64            `json:"table_id"`
	HandID     int64            `json:"hand_id"`
	HandNumber int              `json:"hand_number"`
	Variant    entities.Variant `json:"variant"`
	Pot        int64            `json:"pot"`
	Seats      []SeatSnapshot   `json:"seats"`
}

// SeatPayout is the share of the pot awarded to one seat
type SeatPayout struct {
	SeatID int64 `json:"seat_id"`
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

// HandOutcome is the rules engine's settlement of a hand
type HandOutcome struct {
	Winners      []SeatPayout `json:"winners"`
	HandComplete bool         `json:"hand_complete"`
	Description  string       `json:"description,omitempty"`
}

// TotalPaid returns the sum of all payouts
func (o *HandOutcome) TotalPaid() int64 {
	var total int64
	for _, w := range o.Winners {
		total += w.Amount
	}
	return total
}

// RulesEngine evaluates hands. Betting legality and ranking live behind it.
type RulesEngine interface {
	SettleHand(ctx context.Context, snapshot HandSnapshot) (*HandOutcome, error)
}
