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

const tableColumns = `
	id, status, currency, variant, max_seats, min_players, buy_in, starting_stack, prize_pool,
	is_persistent, creator_id, invite_code, sng_state, sng_join_window_started_at,
	created_at, expires_at, last_action_at, ended_at`

type tableRepository struct {
	q queryable
}

// NewTableRepository creates a new table repository
func NewTableRepository(db *database.DB) interfaces.TableRepository {
	return &tableRepository{q: db.Pool}
}

// newTableRepositoryWithTx creates a new table repository with a transaction
func newTableRepositoryWithTx(tx queryable) interfaces.TableRepository {
	return &tableRepository{q: tx}
}

func scanTable(row pgx.Row) (*entities.Table, error) {
	var table entities.Table
	err := row.Scan(
		&table.ID,
		&table.Status,
		&table.Currency,
		&table.Variant,
		&table.MaxSeats,
		&table.MinPlayers,
		&table.BuyIn,
		&table.StartingStack,
		&table.PrizePool,
		&table.IsPersistent,
		&table.CreatorID,
		&table.InviteCode,
		&table.SNGState,
		&table.SNGJoinWindowStartAt,
		&table.CreatedAt,
		&table.ExpiresAt,
		&table.LastActionAt,
		&table.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// Create inserts a table. A duplicate invite code returns apperrors.ErrConflict.
func (r *tableRepository) Create(ctx context.Context, table *entities.Table) error {
	query := `
		INSERT INTO tables
		(status, currency, variant, max_seats, min_players, buy_in, starting_stack, prize_pool,
		 is_persistent, creator_id, invite_code, sng_state, sng_join_window_started_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, last_action_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "table", func(q queryable) error {
		return q.QueryRow(ctx, query,
			table.Status,
			table.Currency,
			table.Variant,
			table.MaxSeats,
			table.MinPlayers,
			table.BuyIn,
			table.StartingStack,
			table.PrizePool,
			table.IsPersistent,
			table.CreatorID,
			table.InviteCode,
			table.SNGState,
			table.SNGJoinWindowStartAt,
			table.ExpiresAt,
		).Scan(&table.ID, &table.CreatedAt, &table.LastActionAt)
	})
}

func (r *tableRepository) get(ctx context.Context, id int64, lock bool) (*entities.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	table, err := scanTable(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table %d: %w", id, err)
	}
	return table, nil
}

// GetByID retrieves a table without locking it
func (r *tableRepository) GetByID(ctx context.Context, id int64) (*entities.Table, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate retrieves a table and holds its row lock
func (r *tableRepository) GetForUpdate(ctx context.Context, id int64) (*entities.Table, error) {
	return r.get(ctx, id, true)
}

// Update stores the mutable fields of a table
func (r *tableRepository) Update(ctx context.Context, table *entities.Table) error {
	query := `
		UPDATE tables
		SET status = $2,
			starting_stack = $3,
			prize_pool = $4,
			sng_state = $5,
			sng_join_window_started_at = $6,
			expires_at = $7,
			last_action_at = $8,
			ended_at = $9
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query,
		table.ID,
		table.Status,
		table.StartingStack,
		table.PrizePool,
		table.SNGState,
		table.SNGJoinWindowStartAt,
		table.ExpiresAt,
		table.LastActionAt,
		table.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update table %d: %w", table.ID, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "table %d not found", table.ID)
	}
	return nil
}

// GetRoutable returns open, non invite-only tables of a bucket, oldest first
func (r *tableRepository) GetRoutable(ctx context.Context, variant entities.Variant, currency entities.Currency) ([]*entities.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE variant = $1 AND currency = $2
		  AND status IN ('waiting', 'active')
		  AND invite_code IS NULL
		ORDER BY created_at, id`

	return r.list(ctx, query, variant, currency)
}

// GetExpired returns non-persistent, non-terminal tables whose deadline passed
func (r *tableRepository) GetExpired(ctx context.Context, now time.Time) ([]*entities.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE is_persistent = FALSE
		  AND status NOT IN ('ended', 'expired')
		  AND expires_at <= $1
		ORDER BY expires_at, id`

	return r.list(ctx, query, now)
}

// GetInJoinWindow returns tournament tables whose join window is running
func (r *tableRepository) GetInJoinWindow(ctx context.Context) ([]*entities.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE sng_state = 'join_window'
		  AND status NOT IN ('ended', 'expired')
		ORDER BY sng_join_window_started_at, id`

	return r.list(ctx, query)
}

// CountByStatus returns the number of tables per status
func (r *tableRepository) CountByStatus(ctx context.Context) (map[entities.TableStatus]int, error) {
	rows, err := r.q.Query(ctx, `SELECT status, COUNT(*) FROM tables GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tables: %w", err)
	}
	defer rows.Close()

	counts := make(map[entities.TableStatus]int)
	for rows.Next() {
		var status entities.TableStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan table count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table counts: %w", err)
	}
	return counts, nil
}

func (r *tableRepository) list(ctx context.Context, query string, args ...any) ([]*entities.Table, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []*entities.Table
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}
	return tables, nil
}
