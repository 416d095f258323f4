package services

import (
	"context"
	"testing"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEnforcer(mocks *TestMocks) interfaces.TimeoutEnforcer {
	return NewTimeoutEnforcer(
		mocks.TableRepo,
		mocks.HandRepo,
		mocks.SeatRepo,
		mocks.SeatManager,
		mocks.Lifecycle,
		mocks.EventPublisher,
	)
}

func newTrackedHand() *entities.Hand {
	return &entities.Hand{
		ID:         TestHandID,
		TableID:    TestTableID,
		HandNumber: 1,
		Status:     entities.HandStatusInProgress,
		Timeouts:   entities.NewTimeoutTracking([]int64{TestUser1ID, TestUser2ID}),
	}
}

func TestTimeoutEnforcer_ThresholdWithReset(t *testing.T) {
	cfg := withTestConfig(t)
	require.Equal(t, 3, cfg.TimeoutThreshold)
	ctx := context.Background()
	mocks := NewTestMocks()
	mocks.AllowEvents()

	// Setup
	table := newCashTable(entities.TableStatusActive)
	hand := newTrackedHand()
	seat := newSeat(TestSeat1ID, TestUser1ID, 0, TestBuyIn)
	struck := newSeat(TestSeat1ID, TestUser1ID, 0, TestBuyIn)
	struck.TimeoutStrikes = 1
	mocks.TableRepo.On("GetForUpdate", ctx, TestTableID).Return(table, nil)
	mocks.HandRepo.On("GetByID", ctx, TestHandID).Return(hand, nil)
	mocks.HandRepo.On("Update", ctx, hand).Return(nil)
	mocks.SeatRepo.On("GetOccupiedByTableAndUser", ctx, TestTableID, TestUser1ID).Return(seat, nil)
	mocks.SeatManager.On("MarkSittingOutNextHand", ctx, table, TestSeat1ID).Return(seat, nil)
	mocks.SeatManager.On("AddTimeoutStrike", ctx, TestSeat1ID).Return(struck, nil)

	enforcer := newTestEnforcer(mocks)
	record := func(timedOut bool) *interfaces.TimeoutDecision {
		decision, err := enforcer.RecordDecision(ctx, TestTableID, TestHandID, TestUser1ID, timedOut)
		require.NoError(t, err)
		return decision
	}

	// Execute and verify: two timeouts, then a deliberate action resets
	assert.Equal(t, 1, record(true).Consecutive)
	assert.Equal(t, 2, record(true).Consecutive)
	assert.Equal(t, 0, record(false).Consecutive)
	assert.Equal(t, 0, hand.Timeouts.Consecutive(TestUser1ID))

	assert.Equal(t, events.TimeoutActionNone, record(true).Action)
	assert.Equal(t, events.TimeoutActionNone, record(true).Action)
	mocks.SeatManager.AssertNotCalled(t, "MarkSittingOutNextHand", mock.Anything, mock.Anything, mock.Anything)

	third := record(true)
	assert.Equal(t, 3, third.Consecutive)
	assert.Equal(t, events.TimeoutActionSitOutNextHand, third.Action)
	assert.Equal(t, 1, third.Strikes)

	// Further timeouts in the same run are not struck again
	fourth := record(true)
	assert.Equal(t, events.TimeoutActionNone, fourth.Action)
	mocks.SeatManager.AssertNumberOfCalls(t, "AddTimeoutStrike", 1)
	mocks.Lifecycle.AssertNotCalled(t, "UnseatPlayer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTimeoutEnforcer_StrikeLimitForcesLeave(t *testing.T) {
	cfg := withTestConfig(t)
	ctx := context.Background()
	mocks := NewTestMocks()
	mocks.AllowEvents()

	// Setup
	table := newCashTable(entities.TableStatusActive)
	hand := newTrackedHand()
	hand.Timeouts.Players[TestUser2ID].Consecutive = cfg.TimeoutThreshold - 1
	seat := newSeat(TestSeat2ID, TestUser2ID, 1, TestBuyIn)
	struck := newSeat(TestSeat2ID, TestUser2ID, 1, TestBuyIn)
	struck.TimeoutStrikes = cfg.TimeoutStrikeLimit
	mocks.TableRepo.On("GetForUpdate", ctx, TestTableID).Return(table, nil)
	mocks.HandRepo.On("GetByID", ctx, TestHandID).Return(hand, nil)
	mocks.HandRepo.On("Update", ctx, hand).Return(nil)
	mocks.SeatRepo.On("GetOccupiedByTableAndUser", ctx, TestTableID, TestUser2ID).Return(seat, nil)
	mocks.SeatManager.On("MarkSittingOutNextHand", ctx, table, TestSeat2ID).Return(seat, nil)
	mocks.SeatManager.On("AddTimeoutStrike", ctx, TestSeat2ID).Return(struck, nil)
	mocks.Lifecycle.On("UnseatPlayer", ctx, TestTableID, TestSeat2ID, true).Return(nil)

	// Execute
	decision, err := newTestEnforcer(mocks).RecordDecision(ctx, TestTableID, TestHandID, TestUser2ID, true)

	// Verify
	require.NoError(t, err)
	assert.Equal(t, events.TimeoutActionForceLeave, decision.Action)
	assert.Equal(t, cfg.TimeoutStrikeLimit, decision.Strikes)
	mocks.AssertAllExpectations(t)
	mocks.EventPublisher.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
		timeout, ok := e.(events.PlayerTimeoutEvent)
		return ok && timeout.UserID == TestUser2ID && timeout.Action == events.TimeoutActionForceLeave
	}))
}

func TestTimeoutEnforcer_StreakCarriedIntoNextHandStrikesAgain(t *testing.T) {
	cfg := withTestConfig(t)
	ctx := context.Background()
	mocks := NewTestMocks()
	mocks.AllowEvents()

	// Setup: the player was enforced at the threshold, returned before the
	// next deal and was dealt in with the streak carried over
	previous := newTrackedHand()
	previous.Timeouts.Players[TestUser1ID].Consecutive = cfg.TimeoutThreshold
	require.True(t, previous.Timeouts.MarkEnforced(TestUser1ID))
	hand := newTrackedHand()
	hand.Timeouts.CarryFrom(previous.Timeouts)

	table := newCashTable(entities.TableStatusActive)
	seat := newSeat(TestSeat1ID, TestUser1ID, 0, TestBuyIn)
	struck := newSeat(TestSeat1ID, TestUser1ID, 0, TestBuyIn)
	struck.TimeoutStrikes = 2
	mocks.TableRepo.On("GetForUpdate", ctx, TestTableID).Return(table, nil)
	mocks.HandRepo.On("GetByID", ctx, TestHandID).Return(hand, nil)
	mocks.HandRepo.On("Update", ctx, hand).Return(nil)
	mocks.SeatRepo.On("GetOccupiedByTableAndUser", ctx, TestTableID, TestUser1ID).Return(seat, nil)
	mocks.SeatManager.On("MarkSittingOutNextHand", ctx, table, TestSeat1ID).Return(seat, nil)
	mocks.SeatManager.On("AddTimeoutStrike", ctx, TestSeat1ID).Return(struck, nil).Once()

	// Execute
	decision, err := newTestEnforcer(mocks).RecordDecision(ctx, TestTableID, TestHandID, TestUser1ID, true)

	// Verify
	require.NoError(t, err)
	assert.Equal(t, cfg.TimeoutThreshold+1, decision.Consecutive)
	assert.Equal(t, events.TimeoutActionSitOutNextHand, decision.Action)
	assert.Equal(t, 2, decision.Strikes)
	mocks.AssertAllExpectations(t)
}

func TestTimeoutEnforcer_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("settled hand", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		hand := newTrackedHand()
		hand.Status = entities.HandStatusInterHandWait
		mocks.TableRepo.On("GetForUpdate", ctx, TestTableID).Return(newCashTable(entities.TableStatusActive), nil)
		mocks.HandRepo.On("GetByID", ctx, TestHandID).Return(hand, nil)

		_, err := newTestEnforcer(mocks).RecordDecision(ctx, TestTableID, TestHandID, TestUser1ID, true)

		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("player not dealt in", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		mocks.TableRepo.On("GetForUpdate", ctx, TestTableID).Return(newCashTable(entities.TableStatusActive), nil)
		mocks.HandRepo.On("GetByID", ctx, TestHandID).Return(newTrackedHand(), nil)

		_, err := newTestEnforcer(mocks).RecordDecision(ctx, TestTableID, TestHandID, TestUser3ID, true)

		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		mocks.HandRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("hand from another table", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		hand := newTrackedHand()
		hand.TableID = TestTableID + 1
		mocks.TableRepo.On("GetForUpdate", ctx, TestTableID).Return(newCashTable(entities.TableStatusActive), nil)
		mocks.HandRepo.On("GetByID", ctx, TestHandID).Return(hand, nil)

		_, err := newTestEnforcer(mocks).RecordDecision(ctx, TestTableID, TestHandID, TestUser1ID, false)

		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}
