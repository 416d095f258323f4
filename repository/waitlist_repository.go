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

const waitlistColumns = `id, user_id, variant, currency, buy_in, status, routed_table_id, created_at, updated_at`

type waitlistRepository struct {
	q queryable
}

// NewWaitlistRepository creates a new waitlist repository
func NewWaitlistRepository(db *database.DB) interfaces.WaitlistRepository {
	return &waitlistRepository{q: db.Pool}
}

// newWaitlistRepositoryWithTx creates a new waitlist repository with a transaction
func newWaitlistRepositoryWithTx(tx queryable) interfaces.WaitlistRepository {
	return &waitlistRepository{q: tx}
}

func scanWaitlistEntry(row pgx.Row) (*entities.WaitlistEntry, error) {
	var entry entities.WaitlistEntry
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Variant,
		&entry.Currency,
		&entry.BuyIn,
		&entry.Status,
		&entry.RoutedTableID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a waiting entry
func (r *waitlistRepository) Create(ctx context.Context, entry *entities.WaitlistEntry) error {
	query := `
		INSERT INTO global_waitlist (user_id, variant, currency, buy_in)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at, updated_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "waitlist entry", func(q queryable) error {
		return q.QueryRow(ctx, query,
			entry.UserID,
			entry.Variant,
			entry.Currency,
			entry.BuyIn,
		).Scan(&entry.ID, &entry.Status, &entry.CreatedAt, &entry.UpdatedAt)
	})
}

// GetByID retrieves an entry
func (r *waitlistRepository) GetByID(ctx context.Context, id int64) (*entities.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM global_waitlist WHERE id = $1`

	entry, err := scanWaitlistEntry(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry %d: %w", id, err)
	}
	return entry, nil
}

// GetWaitingByUser returns the user's waiting entry in a bucket
func (r *waitlistRepository) GetWaitingByUser(ctx context.Context, userID int64, variant entities.Variant, currency entities.Currency) (*entities.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM global_waitlist
		WHERE user_id = $1 AND variant = $2 AND currency = $3 AND status = 'waiting'`

	entry, err := scanWaitlistEntry(r.q.QueryRow(ctx, query, userID, variant, currency))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting entry for user %d: %w", userID, err)
	}
	return entry, nil
}

// GetWaitingBuckets returns buckets with waiting entries, the bucket with the
// oldest entry first
func (r *waitlistRepository) GetWaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error) {
	query := `
		SELECT variant, currency, COUNT(*) AS waiting
		FROM global_waitlist
		WHERE status = 'waiting'
		GROUP BY variant, currency
		ORDER BY MIN(created_at)`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting buckets: %w", err)
	}
	defer rows.Close()

	var buckets []entities.WaitlistBucket
	for rows.Next() {
		var bucket entities.WaitlistBucket
		if err := rows.Scan(&bucket.Variant, &bucket.Currency, &bucket.Waiting); err != nil {
			return nil, fmt.Errorf("failed to scan waiting bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waiting buckets: %w", err)
	}
	return buckets, nil
}

// GetWaitingByBucket returns waiting entries of a bucket, oldest first
func (r *waitlistRepository) GetWaitingByBucket(ctx context.Context, variant entities.Variant, currency entities.Currency, limit int) ([]*entities.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM global_waitlist
		WHERE variant = $1 AND currency = $2 AND status = 'waiting'
		ORDER BY created_at, id
		LIMIT $3`

	rows, err := r.q.Query(ctx, query, variant, currency, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting entries for %s: %w", entities.BucketKey(variant, currency), err)
	}
	defer rows.Close()

	var entries []*entities.WaitlistEntry
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waitlist entries: %w", err)
	}
	return entries, nil
}

// MarkEntered routes a waiting entry to a table. The routed table is written
// once and never changes afterwards.
func (r *waitlistRepository) MarkEntered(ctx context.Context, entryID, tableID int64) (bool, error) {
	query := `
		UPDATE global_waitlist
		SET status = 'entered', routed_table_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'`

	result, err := r.q.Exec(ctx, query, entryID, tableID)
	if err != nil {
		return false, fmt.Errorf("failed to mark waitlist entry %d entered: %w", entryID, err)
	}
	return result.RowsAffected() == 1, nil
}

// Cancel cancels a waiting entry
func (r *waitlistRepository) Cancel(ctx context.Context, entryID int64) (bool, error) {
	query := `
		UPDATE global_waitlist
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'`

	result, err := r.q.Exec(ctx, query, entryID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel waitlist entry %d: %w", entryID, err)
	}
	return result.RowsAffected() == 1, nil
}
