package entities

import (
	"errors"
	"testing"
	"time"

	"cardroom/domain/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sngState(s SNGState) *SNGState {
	return &s
}

func TestTableStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from TableStatus
		to   TableStatus
		want bool
	}{
		{name: "waiting to active", from: TableStatusWaiting, to: TableStatusActive, want: true},
		{name: "waiting to ended", from: TableStatusWaiting, to: TableStatusEnded, want: true},
		{name: "waiting to expired", from: TableStatusWaiting, to: TableStatusExpired, want: true},
		{name: "waiting to paused", from: TableStatusWaiting, to: TableStatusPaused, want: false},
		{name: "active to paused", from: TableStatusActive, to: TableStatusPaused, want: true},
		{name: "active to waiting", from: TableStatusActive, to: TableStatusWaiting, want: false},
		{name: "paused to active", from: TableStatusPaused, to: TableStatusActive, want: true},
		{name: "paused to expired", from: TableStatusPaused, to: TableStatusExpired, want: true},
		{name: "ended to active", from: TableStatusEnded, to: TableStatusActive, want: false},
		{name: "expired to waiting", from: TableStatusExpired, to: TableStatusWaiting, want: false},
		{name: "ended to expired", from: TableStatusEnded, to: TableStatusExpired, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTable_TransitionTo(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("illegal transition leaves state unchanged", func(t *testing.T) {
		table := &Table{ID: 1, Status: TableStatusEnded, Variant: VariantHoldem}

		err := table.TransitionTo(TableStatusActive, now)

		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
		assert.Equal(t, TableStatusEnded, table.Status)
	})

	t.Run("terminal transition stamps ended_at", func(t *testing.T) {
		table := &Table{ID: 2, Status: TableStatusActive, Variant: VariantHoldem}

		require.NoError(t, table.TransitionTo(TableStatusExpired, now))

		assert.Equal(t, TableStatusExpired, table.Status)
		require.NotNil(t, table.EndedAt)
		assert.Equal(t, now, *table.EndedAt)
	})

	t.Run("tournament cannot activate before ready", func(t *testing.T) {
		table := &Table{ID: 3, Status: TableStatusWaiting, Variant: VariantSitAndGo, SNGState: sngState(SNGStateJoinWindow)}

		err := table.TransitionTo(TableStatusActive, now)

		assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
		assert.Equal(t, TableStatusWaiting, table.Status)
	})

	t.Run("tournament activates once ready", func(t *testing.T) {
		table := &Table{ID: 4, Status: TableStatusWaiting, Variant: VariantSitAndGo, SNGState: sngState(SNGStateReady)}

		require.NoError(t, table.TransitionTo(TableStatusActive, now))
		assert.Equal(t, TableStatusActive, table.Status)
	})
}

func TestTable_Touch(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute

	t.Run("extends horizon for non-persistent table", func(t *testing.T) {
		expires := now.Add(2 * time.Minute)
		table := &Table{Status: TableStatusWaiting, ExpiresAt: &expires}

		table.Touch(now, ttl)

		assert.Equal(t, now, table.LastActionAt)
		assert.Equal(t, now.Add(ttl), *table.ExpiresAt)
	})

	t.Run("never pulls the horizon in", func(t *testing.T) {
		expires := now.Add(time.Hour)
		table := &Table{Status: TableStatusActive, ExpiresAt: &expires}

		table.Touch(now, ttl)

		assert.Equal(t, expires, *table.ExpiresAt)
	})

	t.Run("persistent table keeps its horizon", func(t *testing.T) {
		expires := now.Add(time.Minute)
		table := &Table{Status: TableStatusActive, IsPersistent: true, ExpiresAt: &expires}

		table.Touch(now, ttl)

		assert.Equal(t, expires, *table.ExpiresAt)
		assert.Equal(t, now, table.LastActionAt)
	})
}

func TestTable_IsExpired(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	tests := []struct {
		name  string
		table Table
		want  bool
	}{
		{name: "deadline passed", table: Table{Status: TableStatusWaiting, ExpiresAt: &past}, want: true},
		{name: "deadline reached exactly", table: Table{Status: TableStatusActive, ExpiresAt: &now}, want: true},
		{name: "deadline in future", table: Table{Status: TableStatusWaiting, ExpiresAt: &future}, want: false},
		{name: "persistent table", table: Table{Status: TableStatusPaused, IsPersistent: true, ExpiresAt: &past}, want: false},
		{name: "already terminal", table: Table{Status: TableStatusEnded, ExpiresAt: &past}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.table.IsExpired(now))
		})
	}
}

func TestTable_IsRoutable(t *testing.T) {
	t.Parallel()
	code := "ABCDEFGH"

	tests := []struct {
		name  string
		table Table
		want  bool
	}{
		{name: "waiting cash table", table: Table{Status: TableStatusWaiting, Variant: VariantHoldem}, want: true},
		{name: "active cash table", table: Table{Status: TableStatusActive, Variant: VariantOmaha}, want: true},
		{name: "paused cash table", table: Table{Status: TableStatusPaused, Variant: VariantHoldem}, want: false},
		{name: "invite only table", table: Table{Status: TableStatusWaiting, Variant: VariantHoldem, InviteCode: &code}, want: false},
		{name: "filling tournament", table: Table{Status: TableStatusWaiting, Variant: VariantSitAndGo, SNGState: sngState(SNGStateJoinWindow)}, want: true},
		{name: "ready tournament", table: Table{Status: TableStatusWaiting, Variant: VariantSitAndGo, SNGState: sngState(SNGStateReady)}, want: false},
		{name: "ended table", table: Table{Status: TableStatusEnded, Variant: VariantHoldem}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.table.IsRoutable())
		})
	}
}

func TestTable_TransitionSNG(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 2 * time.Minute

	table := &Table{ID: 9, Status: TableStatusWaiting, Variant: VariantSitAndGo, SNGState: sngState(SNGStateWaiting)}

	// Setup: minimum reached opens the join window
	require.NoError(t, table.TransitionSNG(SNGStateJoinWindow, now))
	require.NotNil(t, table.SNGJoinWindowStartAt)
	assert.False(t, table.JoinWindowElapsed(now.Add(time.Minute), window))
	assert.True(t, table.JoinWindowElapsed(now.Add(window), window))

	// Skipping ready is rejected
	err := table.TransitionSNG(SNGStateActive, now)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Equal(t, SNGStateJoinWindow, table.CurrentSNGState())

	// Falling back to waiting clears the countdown
	require.NoError(t, table.TransitionSNG(SNGStateWaiting, now))
	assert.Nil(t, table.SNGJoinWindowStartAt)

	cash := &Table{ID: 10, Variant: VariantHoldem}
	assert.Error(t, cash.TransitionSNG(SNGStateJoinWindow, now))
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	_, err := ParseTableStatus("archived")
	assert.Error(t, err)
	status, err := ParseTableStatus("paused")
	require.NoError(t, err)
	assert.Equal(t, TableStatusPaused, status)

	_, err = ParseVariant("stud")
	assert.Error(t, err)

	_, err = ParseSNGState("running")
	assert.Error(t, err)

	_, err = ParseCurrency("gold")
	assert.Error(t, err)

	kind, err := ParseTransactionKind("buy_in")
	require.NoError(t, err)
	assert.True(t, kind.IsTableRelated())
}
