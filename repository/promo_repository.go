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

type promoRepository struct {
	q queryable
}

// NewPromoRepository creates a new promo code repository
func NewPromoRepository(db *database.DB) interfaces.PromoRepository {
	return &promoRepository{q: db.Pool}
}

// newPromoRepositoryWithTx creates a new promo code repository with a transaction
func newPromoRepositoryWithTx(tx queryable) interfaces.PromoRepository {
	return &promoRepository{q: tx}
}

// Create inserts a promo code
func (r *promoRepository) Create(ctx context.Context, promo *entities.PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, currency, amount, max_uses, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, current_uses, created_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "promo code", func(q queryable) error {
		return q.QueryRow(ctx, query,
			promo.Code,
			promo.Currency,
			promo.Amount,
			promo.MaxUses,
			promo.ExpiresAt,
		).Scan(&promo.ID, &promo.CurrentUses, &promo.CreatedAt)
	})
}

// GetByCode retrieves a promo code
func (r *promoRepository) GetByCode(ctx context.Context, code string) (*entities.PromoCode, error) {
	query := `
		SELECT id, code, currency, amount, max_uses, current_uses, expires_at, created_at
		FROM promo_codes
		WHERE code = $1`

	var promo entities.PromoCode
	err := r.q.QueryRow(ctx, query, code).Scan(
		&promo.ID,
		&promo.Code,
		&promo.Currency,
		&promo.Amount,
		&promo.MaxUses,
		&promo.CurrentUses,
		&promo.ExpiresAt,
		&promo.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code %s: %w", code, err)
	}
	return &promo, nil
}

// IncrementUses consumes one use. Concurrent callers serialize on the row
// and the condition is re-checked after the lock is granted.
func (r *promoRepository) IncrementUses(ctx context.Context, promoID int64) (bool, error) {
	query := `
		UPDATE promo_codes
		SET current_uses = current_uses + 1
		WHERE id = $1 AND current_uses < max_uses`

	result, err := r.q.Exec(ctx, query, promoID)
	if err != nil {
		return false, fmt.Errorf("failed to increment uses of promo code %d: %w", promoID, err)
	}
	return result.RowsAffected() == 1, nil
}

// HasRedeemed returns true if the user already redeemed the code
func (r *promoRepository) HasRedeemed(ctx context.Context, promoID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM promo_redemptions WHERE promo_code_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, promoID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check redemption of promo code %d: %w", promoID, err)
	}
	return exists, nil
}

// CreateRedemption records a redemption
func (r *promoRepository) CreateRedemption(ctx context.Context, redemption *entities.PromoRedemption) error {
	query := `
		INSERT INTO promo_redemptions (promo_code_id, user_id, transaction_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "promo redemption", func(q queryable) error {
		return q.QueryRow(ctx, query,
			redemption.PromoCodeID,
			redemption.UserID,
			redemption.TransactionID,
		).Scan(&redemption.ID, &redemption.CreatedAt)
	})
}
