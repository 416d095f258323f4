package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardroom/database"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const seatColumns = `
	id, table_id, user_id, seat_index, buy_in, stack, joined_at, left_at,
	sit_out_next_hand, sitting_out, leave_after_hand, timeout_strikes`

type seatRepository struct {
	q queryable
}

// NewSeatRepository creates a new seat repository
func NewSeatRepository(db *database.DB) interfaces.SeatRepository {
	return &seatRepository{q: db.Pool}
}

// newSeatRepositoryWithTx creates a new seat repository with a transaction
func newSeatRepositoryWithTx(tx queryable) interfaces.SeatRepository {
	return &seatRepository{q: tx}
}

func scanSeat(row pgx.Row) (*entities.Seat, error) {
	var seat entities.Seat
	err := row.Scan(
		&seat.ID,
		&seat.TableID,
		&seat.UserID,
		&seat.SeatIndex,
		&seat.BuyIn,
		&seat.Stack,
		&seat.JoinedAt,
		&seat.LeftAt,
		&seat.SitOutNextHand,
		&seat.SittingOut,
		&seat.LeaveAfterHand,
		&seat.TimeoutStrikes,
	)
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// Create inserts an open seat. The partial unique indexes on open seats
// reject a taken index or a second seat for the same user.
func (r *seatRepository) Create(ctx context.Context, seat *entities.Seat) error {
	query := `
		INSERT INTO seats (table_id, user_id, seat_index, buy_in, stack)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, joined_at`

	return insertUnique(ctx, r.q, apperrors.CodeSeatUnavailable, "seat", func(q queryable) error {
		return q.QueryRow(ctx, query,
			seat.TableID,
			seat.UserID,
			seat.SeatIndex,
			seat.BuyIn,
			seat.Stack,
		).Scan(&seat.ID, &seat.JoinedAt)
	})
}

// GetByID retrieves a seat
func (r *seatRepository) GetByID(ctx context.Context, id int64) (*entities.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1`

	seat, err := scanSeat(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seat %d: %w", id, err)
	}
	return seat, nil
}

// GetOccupiedByTable returns the open seats of a table ordered by seat index
func (r *seatRepository) GetOccupiedByTable(ctx context.Context, tableID int64) ([]*entities.Seat, error) {
	query := `
		SELECT ` + seatColumns + `
		FROM seats
		WHERE table_id = $1 AND left_at IS NULL
		ORDER BY seat_index`

	rows, err := r.q.Query(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seats for table %d: %w", tableID, err)
	}
	defer rows.Close()

	var seats []*entities.Seat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate seats: %w", err)
	}
	return seats, nil
}

// GetOccupiedByTableAndUser returns the user's open seat at a table
func (r *seatRepository) GetOccupiedByTableAndUser(ctx context.Context, tableID, userID int64) (*entities.Seat, error) {
	query := `
		SELECT ` + seatColumns + `
		FROM seats
		WHERE table_id = $1 AND user_id = $2 AND left_at IS NULL`

	seat, err := scanSeat(r.q.QueryRow(ctx, query, tableID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seat of user %d at table %d: %w", userID, tableID, err)
	}
	return seat, nil
}

// Update stores stack, sit-out and leave flags and strikes
func (r *seatRepository) Update(ctx context.Context, seat *entities.Seat) error {
	query := `
		UPDATE seats
		SET stack = $2,
			sit_out_next_hand = $3,
			sitting_out = $4,
			leave_after_hand = $5,
			timeout_strikes = $6
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query,
		seat.ID,
		seat.Stack,
		seat.SitOutNextHand,
		seat.SittingOut,
		seat.LeaveAfterHand,
		seat.TimeoutStrikes,
	)
	if err != nil {
		return fmt.Errorf("failed to update seat %d: %w", seat.ID, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "seat %d not found", seat.ID)
	}
	return nil
}

// Release closes an open seat
func (r *seatRepository) Release(ctx context.Context, seatID int64, at time.Time) (bool, error) {
	query := `
		UPDATE seats
		SET left_at = $2, sit_out_next_hand = FALSE, sitting_out = FALSE, leave_after_hand = FALSE
		WHERE id = $1 AND left_at IS NULL`

	result, err := r.q.Exec(ctx, query, seatID, at)
	if err != nil {
		return false, fmt.Errorf("failed to release seat %d: %w", seatID, err)
	}
	return result.RowsAffected() == 1, nil
}
