package services

import (
	"context"
	"testing"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestWaitlistService(mocks *TestMocks) interfaces.WaitlistService {
	return NewWaitlistService(mocks.WaitlistRepo, mocks.TableRepo, mocks.SeatRepo)
}

func newEntry(id, userID int64, variant entities.Variant, buyIn int64) *entities.WaitlistEntry {
	return &entities.WaitlistEntry{
		ID:       id,
		UserID:   userID,
		Variant:  variant,
		Currency: entities.CurrencyPlay,
		BuyIn:    buyIn,
		Status:   entities.WaitlistStatusWaiting,
	}
}

func TestPlanBucket_FillsExistingTablesFirst(t *testing.T) {
	bucket := entities.WaitlistBucket{Variant: entities.VariantHoldem, Currency: entities.CurrencyPlay}

	older := newCashTable(entities.TableStatusActive)
	older.ID = 1
	newer := newCashTable(entities.TableStatusWaiting)
	newer.ID = 2
	candidates := []interfaces.TableCandidate{
		{Table: older, Free: 1},
		{Table: newer, Free: 2},
	}

	var entries []*entities.WaitlistEntry
	for i := int64(1); i <= 6; i++ {
		entries = append(entries, newEntry(i, 100+i, entities.VariantHoldem, TestBuyIn))
	}

	plan := planBucket(bucket, entries, candidates, 2)

	require.Len(t, plan.Assignments, 3)
	assert.Equal(t, []int64{1, 2}, plan.Assignments[0].Candidates, "oldest entry goes to the oldest table with the rest as fallback")
	assert.Equal(t, []int64{2}, plan.Assignments[1].Candidates)
	assert.Equal(t, []int64{2}, plan.Assignments[2].Candidates)

	// No table receives more entries than it has free seats
	perTable := map[int64]int{}
	for _, assignment := range plan.Assignments {
		perTable[assignment.Candidates[0]]++
	}
	assert.Equal(t, 1, perTable[1])
	assert.Equal(t, 2, perTable[2])

	// Remaining three entries become new tables of at most two seats
	require.Len(t, plan.NewTables, 2)
	assert.Len(t, plan.NewTables[0].Entries, 2)
	assert.Len(t, plan.NewTables[1].Entries, 1)
	assert.Equal(t, int64(4), plan.NewTables[0].Entries[0].ID)
}

func TestPlanBucket_TournamentsMatchEntryFee(t *testing.T) {
	bucket := entities.WaitlistBucket{Variant: entities.VariantSitAndGo, Currency: entities.CurrencyPlay}

	table := newSNGTable(entities.SNGStateWaiting)
	table.BuyIn = 500
	candidates := []interfaces.TableCandidate{{Table: table, Free: 5}}

	entries := []*entities.WaitlistEntry{
		newEntry(1, 101, entities.VariantSitAndGo, 1000),
		newEntry(2, 102, entities.VariantSitAndGo, 500),
		newEntry(3, 103, entities.VariantSitAndGo, 2000),
		newEntry(4, 104, entities.VariantSitAndGo, 1000),
	}

	plan := planBucket(bucket, entries, candidates, 6)

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, int64(2), plan.Assignments[0].Entry.ID)

	require.Len(t, plan.NewTables, 2)
	assert.Equal(t, int64(1000), plan.NewTables[0].BuyIn)
	assert.Len(t, plan.NewTables[0].Entries, 2)
	assert.Equal(t, int64(2000), plan.NewTables[1].BuyIn)
	assert.Len(t, plan.NewTables[1].Entries, 1)
}

func TestPlanBucket_SkipsTablesTheUserAlreadySitsAt(t *testing.T) {
	bucket := entities.WaitlistBucket{Variant: entities.VariantHoldem, Currency: entities.CurrencyPlay}

	table := newCashTable(entities.TableStatusActive)
	candidates := []interfaces.TableCandidate{
		{Table: table, Free: 4, Seated: map[int64]bool{TestUser1ID: true}},
	}
	entries := []*entities.WaitlistEntry{
		newEntry(1, TestUser1ID, entities.VariantHoldem, TestBuyIn),
		newEntry(2, TestUser2ID, entities.VariantHoldem, TestBuyIn),
	}

	plan := planBucket(bucket, entries, candidates, 6)

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, int64(2), plan.Assignments[0].Entry.ID)
	require.Len(t, plan.NewTables, 1)
	assert.Equal(t, int64(1), plan.NewTables[0].Entries[0].ID, "the seated user falls through to a new table")
}

func TestWaitlistService_PlanBucket(t *testing.T) {
	withTestConfig(t)
	ctx := context.Background()
	mocks := NewTestMocks()

	// Setup
	open := newCashTable(entities.TableStatusActive)
	full := newCashTable(entities.TableStatusActive)
	full.ID = TestTableID + 1
	full.MaxSeats = 2
	inviteCode := "PRIVATEGAME1"
	private := newCashTable(entities.TableStatusActive)
	private.ID = TestTableID + 2
	private.InviteCode = &inviteCode
	alreadyThere := newCashTable(entities.TableStatusActive)
	alreadyThere.ID = TestTableID + 3

	bucket := entities.WaitlistBucket{Variant: entities.VariantHoldem, Currency: entities.CurrencyPlay, Waiting: 1}
	mocks.WaitlistRepo.On("GetWaitingByBucket", ctx, entities.VariantHoldem, entities.CurrencyPlay, maxEntriesPerPass).
		Return([]*entities.WaitlistEntry{newEntry(1, TestUser1ID, entities.VariantHoldem, TestBuyIn)}, nil)
	mocks.TableRepo.On("GetRoutable", ctx, entities.VariantHoldem, entities.CurrencyPlay).
		Return([]*entities.Table{full, private, open, alreadyThere}, nil)
	mocks.SeatRepo.On("GetOccupiedByTable", ctx, full.ID).Return([]*entities.Seat{
		newSeat(TestSeat2ID, TestUser2ID, 0, TestBuyIn),
		newSeat(TestSeat3ID, TestUser3ID, 1, TestBuyIn),
	}, nil)
	mocks.SeatRepo.On("GetOccupiedByTable", ctx, open.ID).Return([]*entities.Seat{}, nil)
	mocks.SeatRepo.On("GetOccupiedByTable", ctx, alreadyThere.ID).Return([]*entities.Seat{
		newSeat(TestSeat1ID, TestUser1ID, 0, TestBuyIn),
	}, nil)

	// Execute
	plan, err := newTestWaitlistService(mocks).PlanBucket(ctx, bucket)

	// Verify
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, []int64{open.ID}, plan.Assignments[0].Candidates)
	assert.Empty(t, plan.NewTables)
	mocks.SeatRepo.AssertNotCalled(t, "GetOccupiedByTable", ctx, private.ID)
	mocks.AssertAllExpectations(t)
}

func TestWaitlistService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate join returns the waiting entry", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		existing := newEntry(5, TestUser1ID, entities.VariantHoldem, TestBuyIn)
		mocks.WaitlistRepo.On("GetWaitingByUser", ctx, TestUser1ID, entities.VariantHoldem, entities.CurrencyPlay).Return(existing, nil)

		entry, err := newTestWaitlistService(mocks).Join(ctx, TestUser1ID, entities.VariantHoldem, entities.CurrencyPlay, TestBuyIn)

		require.NoError(t, err)
		assert.Same(t, existing, entry)
		mocks.WaitlistRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("concurrent join resolves to the winner", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		winner := newEntry(6, TestUser1ID, entities.VariantOmaha, TestBuyIn)
		mocks.WaitlistRepo.On("GetWaitingByUser", ctx, TestUser1ID, entities.VariantOmaha, entities.CurrencyPlay).Return(nil, nil).Once()
		mocks.WaitlistRepo.On("Create", ctx, mock.AnythingOfType("*entities.WaitlistEntry")).Return(apperrors.ErrConflict)
		mocks.WaitlistRepo.On("GetWaitingByUser", ctx, TestUser1ID, entities.VariantOmaha, entities.CurrencyPlay).Return(winner, nil).Once()

		entry, err := newTestWaitlistService(mocks).Join(ctx, TestUser1ID, entities.VariantOmaha, entities.CurrencyPlay, TestBuyIn)

		require.NoError(t, err)
		assert.Same(t, winner, entry)
	})

	t.Run("non-positive buy-in is rejected", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		_, err := newTestWaitlistService(mocks).Join(ctx, TestUser1ID, entities.VariantHoldem, entities.CurrencyPlay, 0)

		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func TestWaitlistService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("waiting entry is cancelled", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		mocks.WaitlistRepo.On("GetByID", ctx, int64(7)).Return(newEntry(7, TestUser1ID, entities.VariantHoldem, TestBuyIn), nil)
		mocks.WaitlistRepo.On("Cancel", ctx, int64(7)).Return(true, nil)

		entry, err := newTestWaitlistService(mocks).Cancel(ctx, 7, TestUser1ID)

		require.NoError(t, err)
		assert.Equal(t, entities.WaitlistStatusCancelled, entry.Status)
	})

	t.Run("routed entry cannot be cancelled", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		routed := newEntry(8, TestUser1ID, entities.VariantHoldem, TestBuyIn)
		routed.Status = entities.WaitlistStatusEntered
		tableID := TestTableID
		routed.RoutedTableID = &tableID
		mocks.WaitlistRepo.On("GetByID", ctx, int64(8)).Return(routed, nil)
		mocks.WaitlistRepo.On("Cancel", ctx, int64(8)).Return(false, nil)

		_, err := newTestWaitlistService(mocks).Cancel(ctx, 8, TestUser1ID)

		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("second cancel is a benign loss", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		cancelled := newEntry(9, TestUser1ID, entities.VariantHoldem, TestBuyIn)
		cancelled.Status = entities.WaitlistStatusCancelled
		mocks.WaitlistRepo.On("GetByID", ctx, int64(9)).Return(cancelled, nil)
		mocks.WaitlistRepo.On("Cancel", ctx, int64(9)).Return(false, nil)

		_, err := newTestWaitlistService(mocks).Cancel(ctx, 9, TestUser1ID)

		assert.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)
		assert.True(t, apperrors.IsBenign(err))
	})

	t.Run("someone else's entry is not found", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		mocks.WaitlistRepo.On("GetByID", ctx, int64(10)).Return(newEntry(10, TestUser2ID, entities.VariantHoldem, TestBuyIn), nil)

		_, err := newTestWaitlistService(mocks).Cancel(ctx, 10, TestUser1ID)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestWaitlistService_MarkEntered(t *testing.T) {
	withTestConfig(t)
	ctx := context.Background()
	mocks := NewTestMocks()
	mocks.WaitlistRepo.On("MarkEntered", ctx, int64(1), TestTableID).Return(true, nil).Once()
	mocks.WaitlistRepo.On("MarkEntered", ctx, int64(1), TestTableID).Return(false, nil).Once()

	service := newTestWaitlistService(mocks)

	require.NoError(t, service.MarkEntered(ctx, 1, TestTableID))
	err := service.MarkEntered(ctx, 1, TestTableID)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateTableCreation)
}
