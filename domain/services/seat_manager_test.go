package services

import (
	"context"
	"testing"
	"time"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSeatManager(mocks *TestMocks) interfaces.SeatManager {
	return NewSeatManager(mocks.SeatRepo, mocks.TableRepo, mocks.Ledger, mocks.EventPublisher)
}

func ledgerRequestOf(kind entities.TransactionKind, userID, amount int64) interface{} {
	return mock.MatchedBy(func(req interfaces.LedgerRequest) bool {
		return req.Kind == kind && req.UserID == userID && req.Amount == amount
	})
}

func TestSeatManager_TakeSeat(t *testing.T) {
	ctx := context.Background()

	t.Run("cash table seats at lowest free index after debiting the buy-in", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()
		mocks.AllowEvents()

		// Setup
		table := newCashTable(entities.TableStatusActive)
		previousExpiry := time.Now().UTC().Add(time.Minute)
		table.ExpiresAt = &previousExpiry
		mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{
			newSeat(TestSeat2ID, TestUser2ID, 0, 1000),
			newSeat(TestSeat3ID, TestUser3ID, 2, 1000),
		}, nil)
		mocks.Ledger.On("Debit", ctx, ledgerRequestOf(entities.TransactionKindBuyIn, TestUser1ID, 800)).
			Return(&entities.Transaction{ID: 1}, nil)
		mocks.SeatRepo.On("Create", ctx, mock.MatchedBy(func(s *entities.Seat) bool {
			return s.UserID == TestUser1ID && s.SeatIndex == 1 && s.Stack == 800 && s.BuyIn == 800
		})).Return(nil)
		mocks.TableRepo.On("Update", ctx, table).Return(nil)

		manager := newTestSeatManager(mocks)

		// Execute
		seat, err := manager.TakeSeat(ctx, table, TestUser1ID, 800)

		// Verify
		require.NoError(t, err)
		assert.Equal(t, 1, seat.SeatIndex)
		assert.True(t, table.ExpiresAt.After(previousExpiry), "seat activity should push the deadline out")
		mocks.AssertAllExpectations(t)
		mocks.EventPublisher.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
			change, ok := e.(events.SeatChangeEvent)
			return ok && change.Change == events.SeatChangeTaken && change.UserID == TestUser1ID
		}))
	})

	t.Run("user already seated is rejected without a debit", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		table := newCashTable(entities.TableStatusActive)
		mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{
			newSeat(TestSeat1ID, TestUser1ID, 0, 1000),
		}, nil)

		_, err := newTestSeatManager(mocks).TakeSeat(ctx, table, TestUser1ID, TestBuyIn)

		assert.ErrorIs(t, err, apperrors.ErrSeatUnavailable)
		mocks.Ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything)
	})

	t.Run("full table is rejected", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		table := newCashTable(entities.TableStatusActive)
		table.MaxSeats = 2
		mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{
			newSeat(TestSeat2ID, TestUser2ID, 0, 1000),
			newSeat(TestSeat3ID, TestUser3ID, 1, 1000),
		}, nil)

		_, err := newTestSeatManager(mocks).TakeSeat(ctx, table, TestUser1ID, TestBuyIn)

		assert.ErrorIs(t, err, apperrors.ErrSeatUnavailable)
	})

	t.Run("failed debit leaves no seat behind", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		table := newCashTable(entities.TableStatusWaiting)
		mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{}, nil)
		mocks.Ledger.On("Debit", ctx, mock.Anything).Return(nil, apperrors.ErrInsufficientFunds)

		_, err := newTestSeatManager(mocks).TakeSeat(ctx, table, TestUser1ID, TestBuyIn)

		assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
		mocks.SeatRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("tournament entrant pays the entry fee and gets the starting stack", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()
		mocks.AllowEvents()

		table := newSNGTable(entities.SNGStateJoinWindow)
		mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{}, nil)
		mocks.Ledger.On("Debit", ctx, ledgerRequestOf(entities.TransactionKindBuyIn, TestUser1ID, TestBuyIn)).
			Return(&entities.Transaction{ID: 1}, nil)
		mocks.SeatRepo.On("Create", ctx, mock.MatchedBy(func(s *entities.Seat) bool {
			return s.Stack == 1500 && s.BuyIn == TestBuyIn
		})).Return(nil)
		mocks.TableRepo.On("Update", ctx, table).Return(nil)

		seat, err := newTestSeatManager(mocks).TakeSeat(ctx, table, TestUser1ID, 0)

		require.NoError(t, err)
		assert.Equal(t, int64(1500), seat.Stack)
		mocks.AssertAllExpectations(t)
	})

	t.Run("tournament past its join window takes no entrants", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		table := newSNGTable(entities.SNGStateReady)

		_, err := newTestSeatManager(mocks).TakeSeat(ctx, table, TestUser1ID, TestBuyIn)

		assert.ErrorIs(t, err, apperrors.ErrSeatUnavailable)
		mocks.SeatRepo.AssertNotCalled(t, "GetOccupiedByTable", mock.Anything, mock.Anything)
	})
}

func TestSeatManager_LeaveSeat(t *testing.T) {
	ctx := context.Background()

	t.Run("cash out credits the stack", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()
		mocks.AllowEvents()

		table := newCashTable(entities.TableStatusActive)
		mocks.SeatRepo.On("GetByID", ctx, TestSeat1ID).Return(newSeat(TestSeat1ID, TestUser1ID, 0, 1750), nil)
		mocks.SeatRepo.On("Release", ctx, TestSeat1ID, mock.AnythingOfType("time.Time")).Return(true, nil)
		mocks.Ledger.On("Credit", ctx, mock.MatchedBy(func(req interfaces.LedgerRequest) bool {
			return req.Kind == entities.TransactionKindCashOut && req.Amount == 1750 && req.IdempotencyKey == "cashout:1001"
		})).Return(&entities.Transaction{ID: 2}, nil)
		mocks.TableRepo.On("Update", ctx, table).Return(nil)

		seat, err := newTestSeatManager(mocks).LeaveSeat(ctx, table, TestSeat1ID, true)

		require.NoError(t, err)
		assert.False(t, seat.IsOccupied())
		mocks.AssertAllExpectations(t)
	})

	t.Run("released seat reports not occupied", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		table := newCashTable(entities.TableStatusActive)
		mocks.SeatRepo.On("GetByID", ctx, TestSeat1ID).Return(newSeat(TestSeat1ID, TestUser1ID, 0, 1000), nil)
		mocks.SeatRepo.On("Release", ctx, TestSeat1ID, mock.Anything).Return(false, nil)

		_, err := newTestSeatManager(mocks).LeaveSeat(ctx, table, TestSeat1ID, true)

		assert.ErrorIs(t, err, apperrors.ErrSeatNotOccupied)
		mocks.Ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
	})

	t.Run("unstarted tournament refunds the entry fee", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()
		mocks.AllowEvents()

		table := newSNGTable(entities.SNGStateJoinWindow)
		mocks.SeatRepo.On("GetByID", ctx, TestSeat1ID).Return(newSeat(TestSeat1ID, TestUser1ID, 0, 1500), nil)
		mocks.SeatRepo.On("Release", ctx, TestSeat1ID, mock.Anything).Return(true, nil)
		mocks.Ledger.On("Credit", ctx, ledgerRequestOf(entities.TransactionKindRefund, TestUser1ID, TestBuyIn)).
			Return(&entities.Transaction{ID: 3}, nil)
		mocks.TableRepo.On("Update", ctx, table).Return(nil)

		_, err := newTestSeatManager(mocks).LeaveSeat(ctx, table, TestSeat1ID, true)

		require.NoError(t, err)
		mocks.AssertAllExpectations(t)
	})

	t.Run("started tournament credits nothing", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()
		mocks.AllowEvents()

		table := newSNGTable(entities.SNGStateActive)
		table.Status = entities.TableStatusActive
		mocks.SeatRepo.On("GetByID", ctx, TestSeat1ID).Return(newSeat(TestSeat1ID, TestUser1ID, 0, 900), nil)
		mocks.SeatRepo.On("Release", ctx, TestSeat1ID, mock.Anything).Return(true, nil)
		mocks.TableRepo.On("Update", ctx, table).Return(nil)

		_, err := newTestSeatManager(mocks).LeaveSeat(ctx, table, TestSeat1ID, true)

		require.NoError(t, err)
		mocks.Ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
	})
}

func TestSeatManager_SitOutCycle(t *testing.T) {
	withTestConfig(t)
	ctx := context.Background()
	mocks := NewTestMocks()
	mocks.AllowEvents()

	// Setup
	table := newCashTable(entities.TableStatusActive)
	deferred := newSeat(TestSeat1ID, TestUser1ID, 0, 1000)
	deferred.SitOutNextHand = true
	playing := newSeat(TestSeat2ID, TestUser2ID, 1, 1000)
	mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{deferred, playing}, nil)
	mocks.SeatRepo.On("Update", ctx, deferred).Return(nil)
	mocks.SeatRepo.On("GetByID", ctx, TestSeat1ID).Return(deferred, nil)
	mocks.TableRepo.On("Update", ctx, table).Return(nil)

	manager := newTestSeatManager(mocks)

	// Execute
	changed, err := manager.ApplyDeferredSitOuts(ctx, table)
	require.NoError(t, err)

	// Verify
	require.Len(t, changed, 1)
	assert.True(t, deferred.SittingOut)
	assert.False(t, deferred.SitOutNextHand)
	assert.False(t, playing.SittingOut)

	returned, err := manager.ReturnFromSitOut(ctx, table, TestSeat1ID)
	require.NoError(t, err)
	assert.True(t, returned.IsActive())
	mocks.SeatRepo.AssertNumberOfCalls(t, "Update", 2)
}

func TestSeatManager_MarkLeavingAfterHand(t *testing.T) {
	withTestConfig(t)
	ctx := context.Background()
	mocks := NewTestMocks()
	mocks.AllowEvents()

	// Setup
	table := newCashTable(entities.TableStatusActive)
	seat := newSeat(TestSeat1ID, TestUser1ID, 0, 1000)
	mocks.SeatRepo.On("GetByID", ctx, TestSeat1ID).Return(seat, nil)
	mocks.SeatRepo.On("Update", ctx, seat).Return(nil).Once()
	mocks.TableRepo.On("Update", ctx, table).Return(nil).Once()

	manager := newTestSeatManager(mocks)

	// Execute
	leaving, err := manager.MarkLeavingAfterHand(ctx, table, TestSeat1ID)
	require.NoError(t, err)
	again, err := manager.MarkLeavingAfterHand(ctx, table, TestSeat1ID)
	require.NoError(t, err)

	// Verify: the seat stays open and the second call changes nothing
	assert.True(t, leaving.LeaveAfterHand)
	assert.True(t, again.IsOccupied())
	mocks.SeatRepo.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	mocks.Ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
	mocks.AssertAllExpectations(t)
	mocks.EventPublisher.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
		change, ok := e.(events.SeatChangeEvent)
		return ok && change.Change == events.SeatChangeLeaveAfterHand
	}))
}

func TestSeatManager_AdjustStacks(t *testing.T) {
	ctx := context.Background()

	t.Run("applies winnings and losses", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		table := newCashTable(entities.TableStatusActive)
		winner := newSeat(TestSeat1ID, TestUser1ID, 0, 1000)
		loser := newSeat(TestSeat2ID, TestUser2ID, 1, 1000)
		mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{winner, loser}, nil)
		mocks.SeatRepo.On("Update", ctx, winner).Return(nil)
		mocks.SeatRepo.On("Update", ctx, loser).Return(nil)
		mocks.TableRepo.On("Update", ctx, table).Return(nil)

		err := newTestSeatManager(mocks).AdjustStacks(ctx, table, map[int64]int64{TestSeat1ID: 400, TestSeat2ID: -400})

		require.NoError(t, err)
		assert.Equal(t, int64(1400), winner.Stack)
		assert.Equal(t, int64(600), loser.Stack)
		mocks.AssertAllExpectations(t)
	})

	t.Run("negative stack is rejected before any write", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		table := newCashTable(entities.TableStatusActive)
		mocks.SeatRepo.On("GetOccupiedByTable", ctx, TestTableID).Return([]*entities.Seat{
			newSeat(TestSeat1ID, TestUser1ID, 0, 1000),
			newSeat(TestSeat2ID, TestUser2ID, 1, 100),
		}, nil)

		err := newTestSeatManager(mocks).AdjustStacks(ctx, table, map[int64]int64{TestSeat1ID: 400, TestSeat2ID: -400})

		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		mocks.SeatRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}
