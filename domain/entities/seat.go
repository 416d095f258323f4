package entities

import "time"

// Seat is one player's occupancy at a table. LeftAt is nil while seated.
type Seat struct {
	ID             int64      `db:"id"`
	TableID        int64      `db:"table_id"`
	UserID         int64      `db:"user_id"`
	SeatIndex      int        `db:"seat_index"`
	BuyIn          int64      `db:"buy_in"`
	Stack          int64      `db:"stack"`
	JoinedAt       time.Time  `db:"joined_at"`
	LeftAt         *time.Time `db:"left_at"`
	SitOutNextHand bool       `db:"sit_out_next_hand"`
	SittingOut     bool       `db:"sitting_out"`
	LeaveAfterHand bool       `db:"leave_after_hand"`
	TimeoutStrikes int        `db:"timeout_strikes"`
}

// IsOccupied returns true while the player is still at the table
func (s *Seat) IsOccupied() bool {
	return s.LeftAt == nil
}

// IsActive returns true if the player will be dealt into the next hand
func (s *Seat) IsActive() bool {
	return s.IsOccupied() && !s.SittingOut
}

// HasChips returns true if the player can still play
func (s *Seat) HasChips() bool {
	return s.Stack > 0
}

// CountActive returns the number of occupied seats that are not sitting out
func CountActive(seats []*Seat) int {
	count := 0
	for _, seat := range seats {
		if seat.IsActive() {
			count++
		}
	}
	return count
}

// LowestFreeSeatIndex returns the smallest seat index not held by an occupied
// seat, or -1 if the table is full
func LowestFreeSeatIndex(seats []*Seat, maxSeats int) int {
	taken := make(map[int]bool, len(seats))
	for _, seat := range seats {
		if seat.IsOccupied() {
			taken[seat.SeatIndex] = true
		}
	}
	for i := 0; i < maxSeats; i++ {
		if !taken[i] {
			return i
		}
	}
	return -1
}
