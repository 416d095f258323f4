package services

import (
	"context"
	"testing"
	"time"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPromo() *entities.PromoCode {
	return &entities.PromoCode{
		ID:       3,
		Code:     "WELCOME2025",
		Currency: entities.CurrencyPlay,
		Amount:   500,
		MaxUses:  1,
	}
}

func TestPromoService_Redeem(t *testing.T) {
	ctx := context.Background()

	t.Run("credits the user and records the redemption", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		mocks.PromoRepo.On("GetByCode", ctx, "WELCOME2025").Return(newPromo(), nil)
		mocks.PromoRepo.On("HasRedeemed", ctx, int64(3), TestUser1ID).Return(false, nil)
		mocks.PromoRepo.On("IncrementUses", ctx, int64(3)).Return(true, nil)
		mocks.Ledger.On("Credit", ctx, mock.MatchedBy(func(req interfaces.LedgerRequest) bool {
			return req.Kind == entities.TransactionKindPromoCredit &&
				req.Amount == 500 &&
				req.IdempotencyKey == "promo:WELCOME2025:100"
		})).Return(&entities.Transaction{ID: 42, Amount: 500}, nil)
		mocks.PromoRepo.On("CreateRedemption", ctx, mock.MatchedBy(func(r *entities.PromoRedemption) bool {
			return r.PromoCodeID == 3 && r.UserID == TestUser1ID && r.TransactionID == 42
		})).Return(nil)

		transaction, err := NewPromoService(mocks.PromoRepo, mocks.Ledger).Redeem(ctx, " welcome2025 ", TestUser1ID)

		require.NoError(t, err)
		assert.Equal(t, int64(42), transaction.ID)
		mocks.AssertAllExpectations(t)
	})

	t.Run("exhausted code", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		mocks.PromoRepo.On("GetByCode", ctx, "WELCOME2025").Return(newPromo(), nil)
		mocks.PromoRepo.On("HasRedeemed", ctx, int64(3), TestUser2ID).Return(false, nil)
		mocks.PromoRepo.On("IncrementUses", ctx, int64(3)).Return(false, nil)

		_, err := NewPromoService(mocks.PromoRepo, mocks.Ledger).Redeem(ctx, "WELCOME2025", TestUser2ID)

		assert.ErrorIs(t, err, apperrors.ErrTokenExhausted)
		mocks.Ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
	})

	t.Run("second redemption by the same user", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		mocks.PromoRepo.On("GetByCode", ctx, "WELCOME2025").Return(newPromo(), nil)
		mocks.PromoRepo.On("HasRedeemed", ctx, int64(3), TestUser1ID).Return(true, nil)

		_, err := NewPromoService(mocks.PromoRepo, mocks.Ledger).Redeem(ctx, "WELCOME2025", TestUser1ID)

		assert.ErrorIs(t, err, apperrors.ErrAlreadyConsumed)
		mocks.PromoRepo.AssertNotCalled(t, "IncrementUses", mock.Anything, mock.Anything)
	})

	t.Run("expired code", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		promo := newPromo()
		past := time.Now().UTC().Add(-time.Hour)
		promo.ExpiresAt = &past
		mocks.PromoRepo.On("GetByCode", ctx, "WELCOME2025").Return(promo, nil)

		_, err := NewPromoService(mocks.PromoRepo, mocks.Ledger).Redeem(ctx, "WELCOME2025", TestUser1ID)

		assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("unknown code", func(t *testing.T) {
		withTestConfig(t)
		mocks := NewTestMocks()

		mocks.PromoRepo.On("GetByCode", ctx, "NOPE1234").Return(nil, nil)

		_, err := NewPromoService(mocks.PromoRepo, mocks.Ledger).Redeem(ctx, "nope1234", TestUser1ID)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestPromoService_CreatePromo(t *testing.T) {
	withTestConfig(t)
	ctx := context.Background()
	mocks := NewTestMocks()
	mocks.PromoRepo.On("Create", ctx, mock.AnythingOfType("*entities.PromoCode")).Return(nil)

	service := NewPromoService(mocks.PromoRepo, mocks.Ledger)

	promo, err := service.CreatePromo(ctx, "spring-bonus", entities.CurrencyReal, 250, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, "SPRING-BONUS", promo.Code)

	_, err = service.CreatePromo(ctx, "short", entities.CurrencyReal, 250, 100, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = service.CreatePromo(ctx, "NO-USES-LEFT", entities.CurrencyReal, 250, 0, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
