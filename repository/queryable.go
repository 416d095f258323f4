package repository

import (
	"context"
	"errors"
	"fmt"

	"cardroom/domain/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// isUniqueViolation reports whether err is a unique constraint failure
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// constraintName returns the violated constraint, or "" if err is not a PgError
func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// withSavepoint runs fn inside a nested transaction so a constraint failure
// leaves the enclosing transaction usable
func withSavepoint(ctx context.Context, q queryable, fn func(q queryable) error) error {
	sp, err := q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin savepoint: %w", err)
	}

	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("failed to roll back savepoint after %v: %w", err, rbErr)
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// insertUnique runs an insert under a savepoint and maps a unique violation
// to code
func insertUnique(ctx context.Context, q queryable, code apperrors.ErrorCode, what string, fn func(q queryable) error) error {
	err := withSavepoint(ctx, q, fn)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return apperrors.Wrap(code, fmt.Sprintf("%s violates %s", what, constraintName(err)), err)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}
