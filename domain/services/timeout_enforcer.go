package services

import (
	"context"
	"fmt"
	"time"

	"cardroom/config"
	"cardroom/domain/apperrors"
	"cardroom/domain/interfaces"
	"cardroom/events"

	log "github.com/sirupsen/logrus"
)

type timeoutEnforcer struct {
	tableRepo      interfaces.TableRepository
	handRepo       interfaces.HandRepository
	seatRepo       interfaces.SeatRepository
	seatManager    interfaces.SeatManager
	lifecycle      interfaces.TableLifecycleService
	eventPublisher interfaces.EventPublisher
	config         *config.Config
}

// NewTimeoutEnforcer creates the consecutive-timeout rule
func NewTimeoutEnforcer(
	tableRepo interfaces.TableRepository,
	handRepo interfaces.HandRepository,
	seatRepo interfaces.SeatRepository,
	seatManager interfaces.SeatManager,
	lifecycle interfaces.TableLifecycleService,
	eventPublisher interfaces.EventPublisher,
) interfaces.TimeoutEnforcer {
	return &timeoutEnforcer{
		tableRepo:      tableRepo,
		handRepo:       handRepo,
		seatRepo:       seatRepo,
		seatManager:    seatManager,
		lifecycle:      lifecycle,
		eventPublisher: eventPublisher,
		config:         config.Get(),
	}
}

// RecordDecision counts a timed-out decision or resets the counter after a
// deliberate one. Reaching the threshold sits the player out from the next
// hand and adds a strike; reaching the strike limit removes the player with
// the stack cashed out once the running hand is settled.
func (e *timeoutEnforcer) RecordDecision(ctx context.Context, tableID, handID, userID int64, timedOut bool) (*interfaces.TimeoutDecision, error) {
	table, err := e.tableRepo.GetForUpdate(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock table: %w", err)
	}
	if table == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "table %d not found", tableID)
	}

	hand, err := e.handRepo.GetByID(ctx, handID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hand: %w", err)
	}
	if hand == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "hand %d not found", handID)
	}
	if hand.TableID != tableID {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "hand %d does not belong to table %d", handID, tableID)
	}
	if !hand.IsInProgress() {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "hand %d is %s", handID, hand.Status)
	}
	if hand.Timeouts == nil || !hand.Timeouts.IsTracked(userID) {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "user %d was not dealt into hand %d", userID, handID)
	}

	decision := &interfaces.TimeoutDecision{Action: events.TimeoutActionNone}

	if !timedOut {
		if err := hand.Timeouts.RecordAction(userID); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "failed to record action", err)
		}
		if err := e.handRepo.Update(ctx, hand); err != nil {
			return nil, fmt.Errorf("failed to update hand: %w", err)
		}
		return decision, nil
	}

	now := time.Now().UTC()
	count, err := hand.Timeouts.RecordTimeout(userID, now)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "failed to record timeout", err)
	}
	decision.Consecutive = count

	forceLeave := false
	var seatID int64
	if count >= e.config.TimeoutThreshold && hand.Timeouts.MarkEnforced(userID) {
		seat, err := e.seatRepo.GetOccupiedByTableAndUser(ctx, tableID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get seat: %w", err)
		}
		if seat == nil {
			return nil, apperrors.Newf(apperrors.CodeSeatNotOccupied, "user %d is not seated at table %d", userID, tableID)
		}
		seatID = seat.ID

		if _, err := e.seatManager.MarkSittingOutNextHand(ctx, table, seat.ID); err != nil {
			return nil, err
		}
		struck, err := e.seatManager.AddTimeoutStrike(ctx, seat.ID)
		if err != nil {
			return nil, err
		}
		decision.Strikes = struck.TimeoutStrikes
		decision.Action = events.TimeoutActionSitOutNextHand

		if struck.TimeoutStrikes >= e.config.TimeoutStrikeLimit {
			decision.Action = events.TimeoutActionForceLeave
			forceLeave = true
		}
	}

	if err := e.handRepo.Update(ctx, hand); err != nil {
		return nil, fmt.Errorf("failed to update hand: %w", err)
	}
	if forceLeave {
		if err := e.lifecycle.UnseatPlayer(ctx, tableID, seatID, true); err != nil {
			return nil, err
		}
	}

	fields := log.Fields{
		"tableID":     tableID,
		"handID":      handID,
		"userID":      userID,
		"consecutive": count,
		"action":      decision.Action,
	}
	if decision.Action == events.TimeoutActionNone {
		log.WithFields(fields).Debug("Player timed out")
	} else {
		log.WithFields(fields).WithField("strikes", decision.Strikes).Warn("Enforced consecutive timeouts")
	}

	if err := e.eventPublisher.Publish(events.PlayerTimeoutEvent{
		TableID:     tableID,
		HandID:      handID,
		UserID:      userID,
		Consecutive: count,
		Action:      decision.Action,
	}); err != nil {
		log.WithError(err).Error("Failed to publish player timeout event")
	}

	return decision, nil
}
