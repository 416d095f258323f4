package repository

import (
	"context"
	"fmt"

	"cardroom/database"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
)

type referralRepository struct {
	q queryable
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *database.DB) interfaces.ReferralRepository {
	return &referralRepository{q: db.Pool}
}

// newReferralRepositoryWithTx creates a new referral repository with a transaction
func newReferralRepositoryWithTx(tx queryable) interfaces.ReferralRepository {
	return &referralRepository{q: tx}
}

// GetOrCreateStats returns the referrer's stats. An existing row keeps its
// own max_uses.
func (r *referralRepository) GetOrCreateStats(ctx context.Context, userID int64, maxUses int) (*entities.ReferralStats, error) {
	query := `
		INSERT INTO referral_stats (user_id, max_uses)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, current_uses, max_uses, total_credited, updated_at`

	var stats entities.ReferralStats
	err := r.q.QueryRow(ctx, query, userID, maxUses).Scan(
		&stats.UserID,
		&stats.CurrentUses,
		&stats.MaxUses,
		&stats.TotalCredited,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral stats for user %d: %w", userID, err)
	}
	return &stats, nil
}

// IncrementUses consumes one referral use while below the limit
func (r *referralRepository) IncrementUses(ctx context.Context, userID int64, amount int64) (bool, error) {
	query := `
		UPDATE referral_stats
		SET current_uses = current_uses + 1,
			total_credited = total_credited + $2,
			updated_at = NOW()
		WHERE user_id = $1 AND current_uses < max_uses`

	result, err := r.q.Exec(ctx, query, userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to increment referral uses for user %d: %w", userID, err)
	}
	return result.RowsAffected() == 1, nil
}
