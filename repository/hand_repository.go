package repository

import (
	"context"
	"errors"
	"fmt"

	"cardroom/database"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const handColumns = `id, table_id, hand_number, pot, status, timeout_tracking, started_at, completed_at`

type handRepository struct {
	q queryable
}

// NewHandRepository creates a new hand repository
func NewHandRepository(db *database.DB) interfaces.HandRepository {
	return &handRepository{q: db.Pool}
}

// newHandRepositoryWithTx creates a new hand repository with a transaction
func newHandRepositoryWithTx(tx queryable) interfaces.HandRepository {
	return &handRepository{q: tx}
}

func scanHand(row pgx.Row) (*entities.Hand, error) {
	var hand entities.Hand
	var trackingJSON []byte
	err := row.Scan(
		&hand.ID,
		&hand.TableID,
		&hand.HandNumber,
		&hand.Pot,
		&hand.Status,
		&trackingJSON,
		&hand.StartedAt,
		&hand.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	hand.Timeouts, err = entities.ParseTimeoutTracking(trackingJSON)
	if err != nil {
		return nil, fmt.Errorf("hand %d: %w", hand.ID, err)
	}
	return &hand, nil
}

func marshalTracking(hand *entities.Hand) ([]byte, error) {
	tracking := hand.Timeouts
	if tracking == nil {
		tracking = entities.NewTimeoutTracking(nil)
	}
	data, err := tracking.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timeout tracking: %w", err)
	}
	return data, nil
}

// Create inserts a hand. A duplicate hand number returns apperrors.ErrConflict.
func (r *handRepository) Create(ctx context.Context, hand *entities.Hand) error {
	trackingJSON, err := marshalTracking(hand)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO hands (table_id, hand_number, pot, status, timeout_tracking)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, started_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "hand", func(q queryable) error {
		return q.QueryRow(ctx, query,
			hand.TableID,
			hand.HandNumber,
			hand.Pot,
			hand.Status,
			trackingJSON,
		).Scan(&hand.ID, &hand.StartedAt)
	})
}

// GetByID retrieves a hand
func (r *handRepository) GetByID(ctx context.Context, id int64) (*entities.Hand, error) {
	query := `SELECT ` + handColumns + ` FROM hands WHERE id = $1`

	hand, err := scanHand(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hand %d: %w", id, err)
	}
	return hand, nil
}

// GetLatestByTable returns the hand with the highest number at a table
func (r *handRepository) GetLatestByTable(ctx context.Context, tableID int64) (*entities.Hand, error) {
	query := `
		SELECT ` + handColumns + `
		FROM hands
		WHERE table_id = $1
		ORDER BY hand_number DESC
		LIMIT 1`

	hand, err := scanHand(r.q.QueryRow(ctx, query, tableID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest hand for table %d: %w", tableID, err)
	}
	return hand, nil
}

// Update stores pot, status, timeout tracking and completion time
func (r *handRepository) Update(ctx context.Context, hand *entities.Hand) error {
	trackingJSON, err := marshalTracking(hand)
	if err != nil {
		return err
	}

	query := `
		UPDATE hands
		SET pot = $2, status = $3, timeout_tracking = $4, completed_at = $5
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query,
		hand.ID,
		hand.Pot,
		hand.Status,
		trackingJSON,
		hand.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update hand %d: %w", hand.ID, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "hand %d not found", hand.ID)
	}
	return nil
}
