package application

import (
	"context"
	"errors"
	"fmt"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/events"
	"cardroom/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// TableCoordinator is the entry point for front-end commands. Commands that
// touch a table run through the table's mailbox, each in its own unit of work.
type TableCoordinator struct {
	uowFactory UnitOfWorkFactory
	dispatcher *TableDispatcher
	build      ServiceBuilder
}

// NewTableCoordinator creates a new coordinator
func NewTableCoordinator(uowFactory UnitOfWorkFactory, dispatcher *TableDispatcher, build ServiceBuilder) *TableCoordinator {
	return &TableCoordinator{
		uowFactory: uowFactory,
		dispatcher: dispatcher,
		build:      build,
	}
}

// onTable runs fn in a unit of work on the table's mailbox
func (c *TableCoordinator) onTable(ctx context.Context, tableID int64, fn func(uow UnitOfWork, svc *Services) error) error {
	return c.dispatcher.Submit(ctx, tableID, func(ctx context.Context) error {
		return runInUnitOfWork(ctx, c.uowFactory, c.build, fn)
	})
}

// inUnitOfWork runs fn in a unit of work that does not touch a table
func (c *TableCoordinator) inUnitOfWork(ctx context.Context, fn func(uow UnitOfWork, svc *Services) error) error {
	return runInUnitOfWork(ctx, c.uowFactory, c.build, fn)
}

// RegisterUser returns the user for a front-end identity, creating it with
// the initial grant on first contact
func (c *TableCoordinator) RegisterUser(ctx context.Context, externalID, username string) (*entities.User, error) {
	var user *entities.User
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		user, err = svc.Users.GetOrCreateUser(ctx, externalID, username)
		return err
	})
	return user, err
}

// CreateTable opens a table
func (c *TableCoordinator) CreateTable(ctx context.Context, req interfaces.CreateTableRequest) (*entities.Table, error) {
	var table *entities.Table
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		table, err = svc.Lifecycle.CreateTable(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"tableID":  table.ID,
		"variant":  table.Variant,
		"currency": table.Currency,
	}).Info("Created table")
	return table, nil
}

// GetTable returns a table without locking it
func (c *TableCoordinator) GetTable(ctx context.Context, tableID int64) (*entities.Table, error) {
	var table *entities.Table
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		table, err = svc.Lifecycle.GetTable(ctx, tableID)
		return err
	})
	return table, err
}

// TakeSeat debits the buy-in and seats the user
func (c *TableCoordinator) TakeSeat(ctx context.Context, tableID, userID, buyIn int64) (*entities.Seat, error) {
	var seat *entities.Seat
	err := c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		var err error
		seat, err = svc.Lifecycle.SeatPlayer(ctx, tableID, userID, buyIn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return seat, nil
}

// LeaveSeat releases the seat and cashes out the stack
func (c *TableCoordinator) LeaveSeat(ctx context.Context, tableID, seatID int64) error {
	return c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		return svc.Lifecycle.UnseatPlayer(ctx, tableID, seatID, true)
	})
}

// SitOut marks the seat to sit out from the next hand
func (c *TableCoordinator) SitOut(ctx context.Context, tableID, seatID int64) (*entities.Seat, error) {
	var seat *entities.Seat
	err := c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		table, err := lockedTable(ctx, uow, tableID)
		if err != nil {
			return err
		}
		seat, err = svc.Seats.MarkSittingOutNextHand(ctx, table, seatID)
		return err
	})
	return seat, err
}

// Return brings a sitting-out player back and re-evaluates the table
func (c *TableCoordinator) Return(ctx context.Context, tableID, seatID int64) (*entities.Seat, error) {
	var seat *entities.Seat
	err := c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		table, err := lockedTable(ctx, uow, tableID)
		if err != nil {
			return err
		}
		if seat, err = svc.Seats.ReturnFromSitOut(ctx, table, seatID); err != nil {
			return err
		}
		return svc.Lifecycle.EvaluateSeating(ctx, table)
	})
	return seat, err
}

// JoinWaitlist queues the user for the next router pass
func (c *TableCoordinator) JoinWaitlist(ctx context.Context, userID int64, variant entities.Variant, currency entities.Currency, buyIn int64) (*entities.WaitlistEntry, error) {
	var entry *entities.WaitlistEntry
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		entry, err = svc.Waitlist.Join(ctx, userID, variant, currency, buyIn)
		return err
	})
	return entry, err
}

// CancelWaitlist cancels a waiting entry. Losing the race to the router
// returns the current entry with a benign error.
func (c *TableCoordinator) CancelWaitlist(ctx context.Context, entryID, userID int64) (*entities.WaitlistEntry, error) {
	var entry *entities.WaitlistEntry
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		entry, err = svc.Waitlist.Cancel(ctx, entryID, userID)
		return err
	})
	return entry, err
}

// CreateGroupInvite issues an invite for a table and marks it ready when the
// table is open
func (c *TableCoordinator) CreateGroupInvite(ctx context.Context, tableID, creatorID int64, groupID *string) (*entities.GroupGameInvite, error) {
	var invite *entities.GroupGameInvite
	err := c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		created, err := svc.Invites.CreateGroupInvite(ctx, tableID, creatorID, groupID)
		if err != nil {
			return err
		}
		invite, err = svc.Invites.MarkReady(ctx, created.ID)
		return err
	})
	return invite, err
}

// JoinByInvite consumes the invite token and seats the user at its table in
// one unit of work. A failed seat leaves the invite unconsumed.
func (c *TableCoordinator) JoinByInvite(ctx context.Context, token string, userID, buyIn int64) (*entities.Seat, error) {
	var invite *entities.GroupGameInvite
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		invite, err = uow.InviteRepository().GetByToken(ctx, token)
		if err != nil {
			return fmt.Errorf("failed to get invite: %w", err)
		}
		if invite == nil {
			return apperrors.Newf(apperrors.CodeNotFound, "invite not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var seat *entities.Seat
	err = c.onTable(ctx, invite.GameID, func(uow UnitOfWork, svc *Services) error {
		if _, err := svc.Invites.Consume(ctx, token, userID); err != nil {
			return err
		}
		var err error
		seat, err = svc.Lifecycle.SeatPlayer(ctx, invite.GameID, userID, buyIn)
		return err
	})

	metrics := observability.GetMetrics()
	switch {
	case err == nil:
		metrics.RecordInviteConsumption(observability.InviteConsumed)
	case errors.Is(err, apperrors.ErrAlreadyConsumed):
		metrics.RecordInviteConsumption(observability.InviteAlreadyConsumed)
	}
	if err != nil {
		return nil, err
	}
	return seat, nil
}

// StartHand deals the next hand at the table
func (c *TableCoordinator) StartHand(ctx context.Context, tableID int64) (*entities.Hand, error) {
	var hand *entities.Hand
	err := c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		var err error
		hand, err = svc.Lifecycle.StartHand(ctx, tableID)
		return err
	})
	return hand, err
}

// RecordDecision records whether the player acted or timed out and applies
// the enforcement that follows
func (c *TableCoordinator) RecordDecision(ctx context.Context, tableID, handID, userID int64, timedOut bool) (*interfaces.TimeoutDecision, error) {
	var decision *interfaces.TimeoutDecision
	err := c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		var err error
		decision, err = svc.Enforcer.RecordDecision(ctx, tableID, handID, userID, timedOut)
		return err
	})
	if err != nil {
		return nil, err
	}
	if decision.Action != "" && decision.Action != events.TimeoutActionNone {
		observability.GetMetrics().RecordEnforcerAction(string(decision.Action))
	}
	return decision, nil
}

// CompleteHand settles the hand through the rules engine
func (c *TableCoordinator) CompleteHand(ctx context.Context, tableID, handID int64, result interfaces.HandResult) (*interfaces.HandOutcome, error) {
	var outcome *interfaces.HandOutcome
	err := c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		var err error
		outcome, err = svc.Lifecycle.CompleteHand(ctx, tableID, handID, result)
		return err
	})
	return outcome, err
}

// EndTable closes the table and cashes out every seat
func (c *TableCoordinator) EndTable(ctx context.Context, tableID int64, reason string) error {
	return c.onTable(ctx, tableID, func(uow UnitOfWork, svc *Services) error {
		return svc.Lifecycle.EndTable(ctx, tableID, reason)
	})
}

// RedeemPromo credits a promo code to the user
func (c *TableCoordinator) RedeemPromo(ctx context.Context, code string, userID int64) (*entities.Transaction, error) {
	var tx *entities.Transaction
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		tx, err = svc.Promos.Redeem(ctx, code, userID)
		return err
	})
	return tx, err
}

// ApplyReferral links a new user to the owner of a referral code
func (c *TableCoordinator) ApplyReferral(ctx context.Context, newUserID int64, code string) (*entities.Transaction, error) {
	var tx *entities.Transaction
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		tx, err = svc.Referrals.ApplyReferral(ctx, newUserID, code)
		return err
	})
	return tx, err
}

// Balance returns a wallet balance
func (c *TableCoordinator) Balance(ctx context.Context, userID int64, currency entities.Currency) (int64, error) {
	var balance int64
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		balance, err = svc.Ledger.Balance(ctx, userID, currency)
		return err
	})
	return balance, err
}

// Reconcile compares a wallet with its ledger
func (c *TableCoordinator) Reconcile(ctx context.Context, userID int64, currency entities.Currency) (*interfaces.ReconcileResult, error) {
	var result *interfaces.ReconcileResult
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		result, err = svc.Ledger.Reconcile(ctx, userID, currency)
		return err
	})
	return result, err
}

// WaitingBuckets returns the waitlist buckets holding waiting entries
func (c *TableCoordinator) WaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error) {
	var buckets []entities.WaitlistBucket
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		buckets, err = svc.Waitlist.WaitingBuckets(ctx)
		return err
	})
	return buckets, err
}

// TableCounts returns the number of tables per status
func (c *TableCoordinator) TableCounts(ctx context.Context) (map[entities.TableStatus]int, error) {
	var counts map[entities.TableStatus]int
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		counts, err = uow.TableRepository().CountByStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to count tables: %w", err)
		}
		return nil
	})
	return counts, err
}

// OccupiedSeats returns the open seats of a table
func (c *TableCoordinator) OccupiedSeats(ctx context.Context, tableID int64) ([]*entities.Seat, error) {
	var seats []*entities.Seat
	err := c.inUnitOfWork(ctx, func(uow UnitOfWork, svc *Services) error {
		var err error
		seats, err = svc.Seats.OccupiedSeats(ctx, tableID)
		return err
	})
	return seats, err
}

func lockedTable(ctx context.Context, uow UnitOfWork, tableID int64) (*entities.Table, error) {
	table, err := uow.TableRepository().GetForUpdate(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock table: %w", err)
	}
	if table == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "table %d not found", tableID)
	}
	return table, nil
}
