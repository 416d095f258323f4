package repository

import (
	"context"
	"testing"
	"time"

	"cardroom/application"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitlistRepository_Integration(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := NewWaitlistRepository(testDB.DB)

	alice := seedUser(t, testDB, "waitlist-alice")
	bob := seedUser(t, testDB, "waitlist-bob")

	newEntry := func(userID int64, variant entities.Variant) *entities.WaitlistEntry {
		return &entities.WaitlistEntry{
			UserID:   userID,
			Variant:  variant,
			Currency: entities.CurrencyPlay,
			BuyIn:    200,
		}
	}

	t.Run("one waiting entry per user and bucket", func(t *testing.T) {
		first := newEntry(alice.ID, entities.VariantHoldem)
		require.NoError(t, repo.Create(ctx, first))
		assert.Equal(t, entities.WaitlistStatusWaiting, first.Status)

		err := repo.Create(ctx, newEntry(alice.ID, entities.VariantHoldem))
		assert.ErrorIs(t, err, apperrors.ErrConflict)

		// A different bucket is fine
		require.NoError(t, repo.Create(ctx, newEntry(alice.ID, entities.VariantOmaha)))

		existing, err := repo.GetWaitingByUser(ctx, alice.ID, entities.VariantHoldem, entities.CurrencyPlay)
		require.NoError(t, err)
		assert.Equal(t, first.ID, existing.ID)
	})

	t.Run("routed table is written once", func(t *testing.T) {
		table := seedTable(t, testDB, testutil.CreateTestCashTable(entities.CurrencyPlay, 200))
		other := seedTable(t, testDB, testutil.CreateTestCashTable(entities.CurrencyPlay, 200))
		entry := newEntry(bob.ID, entities.VariantHoldem)
		require.NoError(t, repo.Create(ctx, entry))

		entered, err := repo.MarkEntered(ctx, entry.ID, table.ID)
		require.NoError(t, err)
		assert.True(t, entered)

		entered, err = repo.MarkEntered(ctx, entry.ID, other.ID)
		require.NoError(t, err)
		assert.False(t, entered)

		cancelled, err := repo.Cancel(ctx, entry.ID)
		require.NoError(t, err)
		assert.False(t, cancelled)

		stored, err := repo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.WaitlistStatusEntered, stored.Status)
		require.NotNil(t, stored.RoutedTableID)
		assert.Equal(t, table.ID, *stored.RoutedTableID)
	})

	t.Run("buckets list oldest first", func(t *testing.T) {
		buckets, err := repo.GetWaitingBuckets(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, buckets)
		assert.Equal(t, entities.VariantHoldem, buckets[0].Variant)

		entries, err := repo.GetWaitingByBucket(ctx, entities.VariantHoldem, entities.CurrencyPlay, 10)
		require.NoError(t, err)
		for i := 1; i < len(entries); i++ {
			assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
		}
	})
}

func TestBucketClaim_Integration(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	factory := NewUnitOfWorkFactory(testDB.DB)

	holder := factory.CreateWithPublisher(&recordingPublisher{})
	require.NoError(t, holder.Begin(ctx))

	claimed, err := holder.BucketClaimRepository().TryClaim(ctx, "holdem:play")
	require.NoError(t, err)
	assert.True(t, claimed)

	// Another transaction fails fast while the claim is held
	err = inTx(ctx, testDB.DB, &recordingPublisher{}, func(uow application.UnitOfWork) error {
		claimed, err := uow.BucketClaimRepository().TryClaim(ctx, "holdem:play")
		require.NoError(t, err)
		assert.False(t, claimed)

		claimed, err = uow.BucketClaimRepository().TryClaim(ctx, "omaha:play")
		require.NoError(t, err)
		assert.True(t, claimed)
		return nil
	})
	require.NoError(t, err)

	// Rollback releases the claim
	require.NoError(t, holder.Rollback())
	err = inTx(ctx, testDB.DB, &recordingPublisher{}, func(uow application.UnitOfWork) error {
		claimed, err := uow.BucketClaimRepository().TryClaim(ctx, "holdem:play")
		require.NoError(t, err)
		assert.True(t, claimed)
		return nil
	})
	require.NoError(t, err)
}

func TestHandRepository_Integration(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := NewHandRepository(testDB.DB)
	table := seedTable(t, testDB, testutil.CreateTestCashTable(entities.CurrencyPlay, 100))

	// Setup
	hand := &entities.Hand{
		TableID:    table.ID,
		HandNumber: 1,
		Status:     entities.HandStatusInProgress,
		Timeouts:   entities.NewTimeoutTracking([]int64{11, 12}),
	}
	require.NoError(t, repo.Create(ctx, hand))

	// Execute
	_, err := hand.Timeouts.RecordTimeout(11, time.Now().UTC())
	require.NoError(t, err)
	hand.Timeouts.Untrack(12)
	completedAt := time.Now().UTC()
	hand.Status = entities.HandStatusInterHandWait
	hand.Pot = 300
	hand.CompletedAt = &completedAt
	require.NoError(t, repo.Update(ctx, hand))

	// Verify
	latest, err := repo.GetLatestByTable(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, hand.ID, latest.ID)
	assert.Equal(t, int64(300), latest.Pot)
	assert.Equal(t, 1, latest.Timeouts.Consecutive(11))
	assert.False(t, latest.Timeouts.IsTracked(12))

	duplicate := &entities.Hand{TableID: table.ID, HandNumber: 1, Status: entities.HandStatusInProgress}
	assert.ErrorIs(t, repo.Create(ctx, duplicate), apperrors.ErrConflict)

	// A corrupt tracking document is rejected on read
	_, err = testDB.DB.Exec(ctx, `UPDATE hands SET timeout_tracking = '{"version":9,"players":{}}' WHERE id = $1`, hand.ID)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, hand.ID)
	assert.Error(t, err)
}
