package repository

import (
	"context"
	"errors"
	"fmt"

	"cardroom/database"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

type walletRepository struct {
	q queryable
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *database.DB) interfaces.WalletRepository {
	return &walletRepository{q: db.Pool}
}

// newWalletRepositoryWithTx creates a new wallet repository with a transaction
func newWalletRepositoryWithTx(tx queryable) interfaces.WalletRepository {
	return &walletRepository{q: tx}
}

// Ensure creates the wallet with a zero balance if it does not exist
func (r *walletRepository) Ensure(ctx context.Context, userID int64, currency entities.Currency) error {
	query := `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO NOTHING`

	if _, err := r.q.Exec(ctx, query, userID, currency); err != nil {
		return fmt.Errorf("failed to ensure %s wallet for user %d: %w", currency, userID, err)
	}
	return nil
}

func (r *walletRepository) get(ctx context.Context, userID int64, currency entities.Currency, lock bool) (*entities.Wallet, error) {
	query := `
		SELECT user_id, currency, balance, updated_at
		FROM wallets
		WHERE user_id = $1 AND currency = $2`
	if lock {
		query += ` FOR UPDATE`
	}

	var wallet entities.Wallet
	err := r.q.QueryRow(ctx, query, userID, currency).Scan(
		&wallet.UserID,
		&wallet.Currency,
		&wallet.Balance,
		&wallet.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s wallet for user %d: %w", currency, userID, err)
	}
	return &wallet, nil
}

// Get returns the wallet without locking it
func (r *walletRepository) Get(ctx context.Context, userID int64, currency entities.Currency) (*entities.Wallet, error) {
	return r.get(ctx, userID, currency, false)
}

// GetForUpdate returns the wallet and holds its row lock
func (r *walletRepository) GetForUpdate(ctx context.Context, userID int64, currency entities.Currency) (*entities.Wallet, error) {
	return r.get(ctx, userID, currency, true)
}

// UpdateBalance stores a new cached balance
func (r *walletRepository) UpdateBalance(ctx context.Context, userID int64, currency entities.Currency, balance int64) error {
	query := `
		UPDATE wallets
		SET balance = $3, updated_at = NOW()
		WHERE user_id = $1 AND currency = $2`

	result, err := r.q.Exec(ctx, query, userID, currency, balance)
	if err != nil {
		return fmt.Errorf("failed to update %s balance for user %d: %w", currency, userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s wallet for user %d not found", currency, userID)
	}
	return nil
}

// GetByUser returns every wallet the user owns
func (r *walletRepository) GetByUser(ctx context.Context, userID int64) ([]*entities.Wallet, error) {
	query := `
		SELECT user_id, currency, balance, updated_at
		FROM wallets
		WHERE user_id = $1
		ORDER BY currency`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallets for user %d: %w", userID, err)
	}
	defer rows.Close()

	var wallets []*entities.Wallet
	for rows.Next() {
		var wallet entities.Wallet
		if err := rows.Scan(&wallet.UserID, &wallet.Currency, &wallet.Balance, &wallet.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, &wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallets: %w", err)
	}
	return wallets, nil
}
