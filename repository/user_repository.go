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

const userColumns = `id, external_id, username, preferred_currency, referrer_id, referral_code, created_at, updated_at`

type userRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) interfaces.UserRepository {
	return &userRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) interfaces.UserRepository {
	return &userRepository{q: tx}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Username,
		&user.PreferredCurrency,
		&user.ReferrerID,
		&user.ReferralCode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// GetByID retrieves a user by id
func (r *userRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	user, err := r.getOne(ctx, `id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByExternalID retrieves a user by the front-end identity
func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	user, err := r.getOne(ctx, `external_id = $1`, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by external ID %s: %w", externalID, err)
	}
	return user, nil
}

// GetByReferralCode retrieves the owner of a referral code
func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*entities.User, error) {
	user, err := r.getOne(ctx, `referral_code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	return user, nil
}

// Create inserts a user
func (r *userRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (external_id, username, preferred_currency, referral_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "user", func(q queryable) error {
		return q.QueryRow(ctx, query,
			user.ExternalID,
			user.Username,
			user.PreferredCurrency,
			user.ReferralCode,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	})
}

// SetReferrer links a referrer if none is set yet
func (r *userRepository) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	query := `
		UPDATE users
		SET referrer_id = $2, updated_at = NOW()
		WHERE id = $1 AND referrer_id IS NULL`

	result, err := r.q.Exec(ctx, query, userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("failed to set referrer for user %d: %w", userID, err)
	}
	return result.RowsAffected() == 1, nil
}

// UpdatePreferredCurrency changes the user's default currency
func (r *userRepository) UpdatePreferredCurrency(ctx context.Context, userID int64, currency entities.Currency) error {
	query := `
		UPDATE users
		SET preferred_currency = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query, userID, currency)
	if err != nil {
		return fmt.Errorf("failed to update preferred currency for user %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "user %d not found", userID)
	}
	return nil
}
