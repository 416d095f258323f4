package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cardroom/database"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, currency, amount, balance_after, kind, table_id, hand_id, idempotency_key, metadata, created_at`

type transactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) interfaces.TransactionRepository {
	return &transactionRepository{q: db.Pool}
}

// newTransactionRepositoryWithTx creates a new transaction repository with a transaction
func newTransactionRepositoryWithTx(tx queryable) interfaces.TransactionRepository {
	return &transactionRepository{q: tx}
}

func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var transaction entities.Transaction
	var metadataJSON []byte
	err := row.Scan(
		&transaction.ID,
		&transaction.UserID,
		&transaction.Currency,
		&transaction.Amount,
		&transaction.BalanceAfter,
		&transaction.Kind,
		&transaction.TableID,
		&transaction.HandID,
		&transaction.IdempotencyKey,
		&metadataJSON,
		&transaction.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &transaction.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}
	return &transaction, nil
}

// Append inserts a transaction. A reused idempotency key returns apperrors.ErrConflict.
func (r *transactionRepository) Append(ctx context.Context, transaction *entities.Transaction) error {
	metadata := transaction.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO transactions
		(user_id, currency, amount, balance_after, kind, table_id, hand_id, idempotency_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "transaction", func(q queryable) error {
		return q.QueryRow(ctx, query,
			transaction.UserID,
			transaction.Currency,
			transaction.Amount,
			transaction.BalanceAfter,
			transaction.Kind,
			transaction.TableID,
			transaction.HandID,
			transaction.IdempotencyKey,
			metadataJSON,
		).Scan(&transaction.ID, &transaction.CreatedAt)
	})
}

// GetByIdempotencyKey returns the transaction recorded under key
func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`

	transaction, err := scanTransaction(r.q.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by idempotency key %s: %w", key, err)
	}
	return transaction, nil
}

// GetByUser returns the most recent transactions for a wallet
func (r *transactionRepository) GetByUser(ctx context.Context, userID int64, currency entities.Currency, limit int) ([]*entities.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND currency = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	return r.list(ctx, query, userID, currency, limit)
}

// SumByUser returns the sum of signed amounts for a wallet
func (r *transactionRepository) SumByUser(ctx context.Context, userID int64, currency entities.Currency) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND currency = $2`

	var sum int64
	if err := r.q.QueryRow(ctx, query, userID, currency).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum %s transactions for user %d: %w", currency, userID, err)
	}
	return sum, nil
}

// GetByTable returns every transaction that references a table
func (r *transactionRepository) GetByTable(ctx context.Context, tableID int64) ([]*entities.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE table_id = $1
		ORDER BY id`

	return r.list(ctx, query, tableID)
}

func (r *transactionRepository) list(ctx context.Context, query string, args ...any) ([]*entities.Transaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*entities.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}
