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

const inviteColumns = `id, game_id, creator_id, group_id, status, token, expires_at, consumed_at, consumed_by, created_at`

type inviteRepository struct {
	q queryable
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *database.DB) interfaces.InviteRepository {
	return &inviteRepository{q: db.Pool}
}

// newInviteRepositoryWithTx creates a new invite repository with a transaction
func newInviteRepositoryWithTx(tx queryable) interfaces.InviteRepository {
	return &inviteRepository{q: tx}
}

func scanInvite(row pgx.Row) (*entities.GroupGameInvite, error) {
	var invite entities.GroupGameInvite
	var status string
	err := row.Scan(
		&invite.ID,
		&invite.GameID,
		&invite.CreatorID,
		&invite.GroupID,
		&status,
		&invite.Token,
		&invite.ExpiresAt,
		&invite.ConsumedAt,
		&invite.ConsumedBy,
		&invite.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	invite.Status, err = entities.ParseInviteStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invite %d: %w", invite.ID, err)
	}
	return &invite, nil
}

func (r *inviteRepository) getOne(ctx context.Context, where string, arg any) (*entities.GroupGameInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM group_game_invites WHERE ` + where
	invite, err := scanInvite(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return invite, err
}

// Create inserts an invite. Token and game id are both unique.
func (r *inviteRepository) Create(ctx context.Context, invite *entities.GroupGameInvite) error {
	query := `
		INSERT INTO group_game_invites (game_id, creator_id, group_id, status, token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return insertUnique(ctx, r.q, apperrors.CodeConflict, "invite", func(q queryable) error {
		return q.QueryRow(ctx, query,
			invite.GameID,
			invite.CreatorID,
			invite.GroupID,
			invite.Status,
			invite.Token,
			invite.ExpiresAt,
		).Scan(&invite.ID, &invite.CreatedAt)
	})
}

// GetByID retrieves an invite
func (r *inviteRepository) GetByID(ctx context.Context, id int64) (*entities.GroupGameInvite, error) {
	invite, err := r.getOne(ctx, `id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite %d: %w", id, err)
	}
	return invite, nil
}

// GetByToken retrieves an invite by its deep-link token
func (r *inviteRepository) GetByToken(ctx context.Context, token string) (*entities.GroupGameInvite, error) {
	invite, err := r.getOne(ctx, `token = $1`, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}
	return invite, nil
}

// GetByGameID retrieves the invite that belongs to a table
func (r *inviteRepository) GetByGameID(ctx context.Context, gameID int64) (*entities.GroupGameInvite, error) {
	invite, err := r.getOne(ctx, `game_id = $1`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite for game %d: %w", gameID, err)
	}
	return invite, nil
}

// MarkReady moves a pending invite to ready
func (r *inviteRepository) MarkReady(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE group_game_invites
		SET status = 'ready'
		WHERE id = $1 AND status = 'pending'`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark invite %d ready: %w", id, err)
	}
	return result.RowsAffected() == 1, nil
}

// Consume is a single conditional update, so exactly one concurrent caller
// sees the row come back
func (r *inviteRepository) Consume(ctx context.Context, token string, userID int64, now time.Time) (*entities.GroupGameInvite, error) {
	query := `
		UPDATE group_game_invites
		SET status = 'consumed', consumed_at = $3, consumed_by = $2
		WHERE token = $1 AND status = 'ready' AND expires_at > $3
		RETURNING ` + inviteColumns

	invite, err := scanInvite(r.q.QueryRow(ctx, query, token, userID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume invite: %w", err)
	}
	return invite, nil
}

// ExpireOverdue expires open invites past their deadline and returns them
// with the status they held before
func (r *inviteRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]*entities.GroupGameInvite, error) {
	query := `
		UPDATE group_game_invites AS i
		SET status = 'expired'
		FROM (
			SELECT id, status
			FROM group_game_invites
			WHERE status IN ('pending', 'ready') AND expires_at <= $1
			FOR UPDATE
		) AS old
		WHERE i.id = old.id
		RETURNING i.id, i.game_id, i.creator_id, i.group_id, old.status, i.token,
			i.expires_at, i.consumed_at, i.consumed_by, i.created_at`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire overdue invites: %w", err)
	}
	defer rows.Close()

	var invites []*entities.GroupGameInvite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired invites: %w", err)
	}
	return invites, nil
}
