package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardroom/config"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/domain/utils"
	"cardroom/events"

	log "github.com/sirupsen/logrus"
)

// tokenAttempts bounds regeneration after a token collision
const tokenAttempts = 5

type inviteService struct {
	inviteRepo     interfaces.InviteRepository
	tableRepo      interfaces.TableRepository
	eventPublisher interfaces.EventPublisher
	config         *config.Config
}

// NewInviteService creates a new invite service
func NewInviteService(
	inviteRepo interfaces.InviteRepository,
	tableRepo interfaces.TableRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.InviteService {
	return &inviteService{
		inviteRepo:     inviteRepo,
		tableRepo:      tableRepo,
		eventPublisher: eventPublisher,
		config:         config.Get(),
	}
}

// CreateGroupInvite issues the deep-link invite for a game. A game has at most
// one invite; asking again while it is open returns the same invite.
func (s *inviteService) CreateGroupInvite(ctx context.Context, gameID, creatorID int64, groupID *string) (*entities.GroupGameInvite, error) {
	existing, err := s.openInviteForGame(ctx, gameID)
	if err != nil || existing != nil {
		return existing, err
	}

	now := time.Now().UTC()
	for attempt := 1; attempt <= tokenAttempts; attempt++ {
		token, err := utils.GenerateToken(s.config.InviteTokenLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite token: %w", err)
		}

		invite := &entities.GroupGameInvite{
			GameID:    gameID,
			CreatorID: creatorID,
			GroupID:   groupID,
			Status:    entities.InviteStatusPending,
			Token:     token,
			ExpiresAt: now.Add(s.config.InviteTTL),
		}
		err = s.inviteRepo.Create(ctx, invite)
		if err == nil {
			log.WithFields(log.Fields{
				"inviteID":  invite.ID,
				"gameID":    gameID,
				"creatorID": creatorID,
			}).Info("Created group invite")
			s.publish(invite, "")
			return invite, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}

		// Either the game got its invite concurrently or the token collided
		existing, err := s.openInviteForGame(ctx, gameID)
		if err != nil || existing != nil {
			return existing, err
		}
		log.WithFields(log.Fields{
			"gameID":  gameID,
			"attempt": attempt,
		}).Warn("Invite token collision, regenerating")
	}
	return nil, apperrors.Newf(apperrors.CodeConflict, "could not allocate an invite token for game %d", gameID)
}

// MarkReady opens a pending invite once its table exists and is playable
func (s *inviteService) MarkReady(ctx context.Context, inviteID int64) (*entities.GroupGameInvite, error) {
	invite, err := s.inviteRepo.GetByID(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	if invite == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "invite %d not found", inviteID)
	}
	if invite.Status == entities.InviteStatusReady {
		return invite, nil
	}
	if invite.Status != entities.InviteStatusPending {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "invite %d is %s", inviteID, invite.Status)
	}
	if invite.IsPastDeadline(time.Now().UTC()) {
		return nil, apperrors.Newf(apperrors.CodeTokenExpired, "invite %d expired at %s", inviteID, invite.ExpiresAt.Format(time.RFC3339))
	}

	table, err := s.tableRepo.GetByID(ctx, invite.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	if table == nil || table.IsTerminal() {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "table %d is not open for invite %d", invite.GameID, inviteID)
	}

	marked, err := s.inviteRepo.MarkReady(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invite ready: %w", err)
	}
	if !marked {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "invite %d is no longer pending", inviteID)
	}

	invite.Status = entities.InviteStatusReady
	s.publish(invite, entities.InviteStatusPending)
	return invite, nil
}

// Consume uses a ready invite exactly once. Callers that lose the race get
// AlreadyConsumed.
func (s *inviteService) Consume(ctx context.Context, token string, userID int64) (*entities.GroupGameInvite, error) {
	if !utils.IsValidToken(token) {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "malformed invite token")
	}

	now := time.Now().UTC()
	invite, err := s.inviteRepo.Consume(ctx, token, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to consume invite: %w", err)
	}
	if invite != nil {
		log.WithFields(log.Fields{
			"inviteID": invite.ID,
			"gameID":   invite.GameID,
			"userID":   userID,
		}).Info("Invite consumed")
		s.publish(invite, entities.InviteStatusReady)
		return invite, nil
	}

	current, err := s.inviteRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	switch {
	case current == nil:
		return nil, apperrors.New(apperrors.CodeNotFound, "invite not found")
	case current.IsConsumed():
		return nil, apperrors.Newf(apperrors.CodeAlreadyConsumed, "invite %d was already used", current.ID)
	case current.Status == entities.InviteStatusExpired || current.IsPastDeadline(now):
		return nil, apperrors.Newf(apperrors.CodeTokenExpired, "invite %d has expired", current.ID)
	case current.Status == entities.InviteStatusPending:
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "invite %d is not ready yet", current.ID)
	}
	return nil, apperrors.Newf(apperrors.CodeAlreadyConsumed, "invite %d was already used", current.ID)
}

// ExpireOverdue expires every open invite past its deadline
func (s *inviteService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.inviteRepo.ExpireOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invites: %w", err)
	}
	for _, invite := range expired {
		previous := invite.Status
		invite.Status = entities.InviteStatusExpired
		s.publish(invite, previous)
	}
	if len(expired) > 0 {
		log.WithField("count", len(expired)).Info("Expired overdue invites")
	}
	return len(expired), nil
}

// openInviteForGame returns the game's open invite, nil if it has none and
// Conflict if its invite is already closed
func (s *inviteService) openInviteForGame(ctx context.Context, gameID int64) (*entities.GroupGameInvite, error) {
	existing, err := s.inviteRepo.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invite for game: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if !existing.Status.IsOpen() {
		return nil, apperrors.Newf(apperrors.CodeConflict, "game %d already used its invite", gameID)
	}
	return existing, nil
}

func (s *inviteService) publish(invite *entities.GroupGameInvite, from entities.InviteStatus) {
	if err := s.eventPublisher.Publish(events.InviteStatusChangeEvent{
		InviteID:  invite.ID,
		GameID:    invite.GameID,
		OldStatus: from,
		NewStatus: invite.Status,
	}); err != nil {
		log.WithError(err).Error("Failed to publish invite status event")
	}
}
