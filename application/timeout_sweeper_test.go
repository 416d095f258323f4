package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cardroom/application"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSweeperUnderTest(t *testing.T, mocks *testMocks) *application.TimeoutSweeper {
	t.Helper()
	dispatcher := application.NewTableDispatcher(time.Minute, 8)
	t.Cleanup(dispatcher.Close)
	return application.NewTimeoutSweeper(mocks.factory(), dispatcher, mocks.builder())
}

func tableExpiringAt(id int64, at time.Time) *entities.Table {
	return &entities.Table{
		ID:        id,
		Status:    entities.TableStatusWaiting,
		Variant:   entities.VariantHoldem,
		Currency:  entities.CurrencyPlay,
		ExpiresAt: &at,
	}
}

func TestTimeoutSweeper_SweepExpiredTables(t *testing.T) {
	// Setup
	mocks := newTestMocks()
	sweeper := newSweeperUnderTest(t, mocks)
	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	mocks.TableRepo.On("GetExpired", mock.Anything, mock.Anything).Return([]*entities.Table{
		tableExpiringAt(1, past),
		tableExpiringAt(2, past),
		tableExpiringAt(3, past),
	}, nil)

	// Table 1 expires, table 2 fails, table 3 saw activity after the listing
	mocks.TableRepo.On("GetForUpdate", mock.Anything, int64(1)).Return(tableExpiringAt(1, past), nil)
	mocks.TableRepo.On("GetForUpdate", mock.Anything, int64(2)).Return(tableExpiringAt(2, past), nil)
	mocks.TableRepo.On("GetForUpdate", mock.Anything, int64(3)).Return(tableExpiringAt(3, future), nil)
	mocks.Lifecycle.On("ExpireTable", mock.Anything, int64(1), "inactivity").Return(nil)
	mocks.Lifecycle.On("ExpireTable", mock.Anything, int64(2), "inactivity").Return(errors.New("connection reset"))

	// Execute
	report, err := sweeper.SweepExpiredTables(context.Background())

	// Verify
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Failed)
	mocks.Lifecycle.AssertNotCalled(t, "ExpireTable", mock.Anything, int64(3), mock.Anything)
}

func TestTimeoutSweeper_AlreadyClosedTableIsNotAFailure(t *testing.T) {
	mocks := newTestMocks()
	sweeper := newSweeperUnderTest(t, mocks)
	past := time.Now().UTC().Add(-time.Minute)

	mocks.TableRepo.On("GetExpired", mock.Anything, mock.Anything).Return([]*entities.Table{tableExpiringAt(4, past)}, nil)
	mocks.TableRepo.On("GetForUpdate", mock.Anything, int64(4)).Return(tableExpiringAt(4, past), nil)
	mocks.Lifecycle.On("ExpireTable", mock.Anything, int64(4), "inactivity").
		Return(apperrors.Newf(apperrors.CodeInvalidTransition, "table 4 is ended"))

	report, err := sweeper.SweepExpiredTables(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Applied)
}

func TestTimeoutSweeper_ListingErrorAbortsSweep(t *testing.T) {
	mocks := newTestMocks()
	sweeper := newSweeperUnderTest(t, mocks)
	mocks.TableRepo.On("GetExpired", mock.Anything, mock.Anything).Return(nil, errors.New("database unavailable"))

	_, err := sweeper.SweepExpiredTables(context.Background())

	assert.ErrorContains(t, err, "failed to get expired tables")
}

func TestTimeoutSweeper_SweepJoinWindows(t *testing.T) {
	// Setup
	mocks := newTestMocks()
	sweeper := newSweeperUnderTest(t, mocks)

	joinWindow := entities.SNGStateJoinWindow
	longAgo := time.Now().UTC().Add(-time.Hour)
	justNow := time.Now().UTC()
	elapsed := &entities.Table{ID: 5, Variant: entities.VariantSitAndGo, SNGState: &joinWindow, SNGJoinWindowStartAt: &longAgo}
	running := &entities.Table{ID: 6, Variant: entities.VariantSitAndGo, SNGState: &joinWindow, SNGJoinWindowStartAt: &justNow}

	mocks.TableRepo.On("GetInJoinWindow", mock.Anything).Return([]*entities.Table{elapsed, running}, nil)
	mocks.TableRepo.On("GetForUpdate", mock.Anything, int64(5)).Return(elapsed, nil)
	mocks.Lifecycle.On("AdvanceSNG", mock.Anything, int64(5), mock.Anything).Return(nil)

	// Execute
	report, err := sweeper.SweepJoinWindows(context.Background())

	// Verify
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Applied)
	mocks.Lifecycle.AssertNotCalled(t, "AdvanceSNG", mock.Anything, int64(6), mock.Anything)
}

func TestTimeoutSweeper_JoinWindowResolvedSinceListingIsNotCounted(t *testing.T) {
	// Setup: the listing saw an elapsed window but a full field made the
	// tournament ready before the sweep locked the table
	mocks := newTestMocks()
	sweeper := newSweeperUnderTest(t, mocks)

	joinWindow, ready := entities.SNGStateJoinWindow, entities.SNGStateReady
	longAgo := time.Now().UTC().Add(-time.Hour)
	listed := &entities.Table{ID: 7, Variant: entities.VariantSitAndGo, SNGState: &joinWindow, SNGJoinWindowStartAt: &longAgo}
	locked := &entities.Table{ID: 7, Variant: entities.VariantSitAndGo, SNGState: &ready, Status: entities.TableStatusActive}

	mocks.TableRepo.On("GetInJoinWindow", mock.Anything).Return([]*entities.Table{listed}, nil)
	mocks.TableRepo.On("GetForUpdate", mock.Anything, int64(7)).Return(locked, nil)

	// Execute
	report, err := sweeper.SweepJoinWindows(context.Background())

	// Verify
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 0, report.Applied)
	assert.Equal(t, 0, report.Failed)
	mocks.Lifecycle.AssertNotCalled(t, "AdvanceSNG", mock.Anything, mock.Anything, mock.Anything)
}

func TestInviteSweeper_ExpireOverdue(t *testing.T) {
	mocks := newTestMocks()
	factory := mocks.factory()
	sweeper := application.NewInviteSweeper(factory, mocks.builder())
	mocks.Invites.On("ExpireOverdue", mock.Anything, mock.Anything).Return(3, nil)

	expired, err := sweeper.ExpireOverdue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, expired)
	committed, _ := factory.outcomes()
	assert.Equal(t, 1, committed)
}
