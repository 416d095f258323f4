package testhelpers

import (
	"context"
	"time"

	"cardroom/domain/entities"
	"cardroom/events"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByReferralCode(ctx context.Context, code string) (*entities.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetReferrer(ctx context.Context, userID int64, referrerID int64) (bool, error) {
	args := m.Called(ctx, userID, referrerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UpdatePreferredCurrency(ctx context.Context, userID int64, currency entities.Currency) error {
	args := m.Called(ctx, userID, currency)
	return args.Error(0)
}

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Ensure(ctx context.Context, userID int64, currency entities.Currency) error {
	args := m.Called(ctx, userID, currency)
	return args.Error(0)
}

func (m *MockWalletRepository) Get(ctx context.Context, userID int64, currency entities.Currency) (*entities.Wallet, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetForUpdate(ctx context.Context, userID int64, currency entities.Currency) (*entities.Wallet, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) UpdateBalance(ctx context.Context, userID int64, currency entities.Currency, balance int64) error {
	args := m.Called(ctx, userID, currency, balance)
	return args.Error(0)
}

func (m *MockWalletRepository) GetByUser(ctx context.Context, userID int64) ([]*entities.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wallet), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Append(ctx context.Context, transaction *entities.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByUser(ctx context.Context, userID int64, currency entities.Currency, limit int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, userID, currency, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumByUser(ctx context.Context, userID int64, currency entities.Currency) (int64, error) {
	args := m.Called(ctx, userID, currency)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) GetByTable(ctx context.Context, tableID int64) ([]*entities.Transaction, error) {
	args := m.Called(ctx, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

// MockTableRepository is a mock implementation of TableRepository
type MockTableRepository struct {
	mock.Mock
}

func (m *MockTableRepository) Create(ctx context.Context, table *entities.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockTableRepository) GetByID(ctx context.Context, id int64) (*entities.Table, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Table), args.Error(1)
}

func (m *MockTableRepository) GetForUpdate(ctx context.Context, id int64) (*entities.Table, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Table), args.Error(1)
}

func (m *MockTableRepository) Update(ctx context.Context, table *entities.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockTableRepository) GetRoutable(ctx context.Context, variant entities.Variant, currency entities.Currency) ([]*entities.Table, error) {
	args := m.Called(ctx, variant, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Table), args.Error(1)
}

func (m *MockTableRepository) GetExpired(ctx context.Context, now time.Time) ([]*entities.Table, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Table), args.Error(1)
}

func (m *MockTableRepository) GetInJoinWindow(ctx context.Context) ([]*entities.Table, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Table), args.Error(1)
}

func (m *MockTableRepository) CountByStatus(ctx context.Context) (map[entities.TableStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entities.TableStatus]int), args.Error(1)
}

// MockSeatRepository is a mock implementation of SeatRepository
type MockSeatRepository struct {
	mock.Mock
}

func (m *MockSeatRepository) Create(ctx context.Context, seat *entities.Seat) error {
	args := m.Called(ctx, seat)
	return args.Error(0)
}

func (m *MockSeatRepository) GetByID(ctx context.Context, id int64) (*entities.Seat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatRepository) GetOccupiedByTable(ctx context.Context, tableID int64) ([]*entities.Seat, error) {
	args := m.Called(ctx, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Seat), args.Error(1)
}

func (m *MockSeatRepository) GetOccupiedByTableAndUser(ctx context.Context, tableID int64, userID int64) (*entities.Seat, error) {
	args := m.Called(ctx, tableID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatRepository) Update(ctx context.Context, seat *entities.Seat) error {
	args := m.Called(ctx, seat)
	return args.Error(0)
}

func (m *MockSeatRepository) Release(ctx context.Context, seatID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, seatID, at)
	return args.Bool(0), args.Error(1)
}

// MockHandRepository is a mock implementation of HandRepository
type MockHandRepository struct {
	mock.Mock
}

func (m *MockHandRepository) Create(ctx context.Context, hand *entities.Hand) error {
	args := m.Called(ctx, hand)
	return args.Error(0)
}

func (m *MockHandRepository) GetByID(ctx context.Context, id int64) (*entities.Hand, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Hand), args.Error(1)
}

func (m *MockHandRepository) GetLatestByTable(ctx context.Context, tableID int64) (*entities.Hand, error) {
	args := m.Called(ctx, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Hand), args.Error(1)
}

func (m *MockHandRepository) Update(ctx context.Context, hand *entities.Hand) error {
	args := m.Called(ctx, hand)
	return args.Error(0)
}

// MockWaitlistRepository is a mock implementation of WaitlistRepository
type MockWaitlistRepository struct {
	mock.Mock
}

func (m *MockWaitlistRepository) Create(ctx context.Context, entry *entities.WaitlistEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockWaitlistRepository) GetByID(ctx context.Context, id int64) (*entities.WaitlistEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlistRepository) GetWaitingByUser(ctx context.Context, userID int64, variant entities.Variant, currency entities.Currency) (*entities.WaitlistEntry, error) {
	args := m.Called(ctx, userID, variant, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlistRepository) GetWaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.WaitlistBucket), args.Error(1)
}

func (m *MockWaitlistRepository) GetWaitingByBucket(ctx context.Context, variant entities.Variant, currency entities.Currency, limit int) ([]*entities.WaitlistEntry, error) {
	args := m.Called(ctx, variant, currency, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlistRepository) MarkEntered(ctx context.Context, entryID int64, tableID int64) (bool, error) {
	args := m.Called(ctx, entryID, tableID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWaitlistRepository) Cancel(ctx context.Context, entryID int64) (bool, error) {
	args := m.Called(ctx, entryID)
	return args.Bool(0), args.Error(1)
}

// MockInviteRepository is a mock implementation of InviteRepository
type MockInviteRepository struct {
	mock.Mock
}

func (m *MockInviteRepository) Create(ctx context.Context, invite *entities.GroupGameInvite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockInviteRepository) GetByID(ctx context.Context, id int64) (*entities.GroupGameInvite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupGameInvite), args.Error(1)
}

func (m *MockInviteRepository) GetByToken(ctx context.Context, token string) (*entities.GroupGameInvite, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupGameInvite), args.Error(1)
}

func (m *MockInviteRepository) GetByGameID(ctx context.Context, gameID int64) (*entities.GroupGameInvite, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupGameInvite), args.Error(1)
}

func (m *MockInviteRepository) MarkReady(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockInviteRepository) Consume(ctx context.Context, token string, userID int64, now time.Time) (*entities.GroupGameInvite, error) {
	args := m.Called(ctx, token, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupGameInvite), args.Error(1)
}

func (m *MockInviteRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]*entities.GroupGameInvite, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.GroupGameInvite), args.Error(1)
}

// MockPromoRepository is a mock implementation of PromoRepository
type MockPromoRepository struct {
	mock.Mock
}

func (m *MockPromoRepository) Create(ctx context.Context, promo *entities.PromoCode) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *MockPromoRepository) GetByCode(ctx context.Context, code string) (*entities.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PromoCode), args.Error(1)
}

func (m *MockPromoRepository) IncrementUses(ctx context.Context, promoID int64) (bool, error) {
	args := m.Called(ctx, promoID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPromoRepository) HasRedeemed(ctx context.Context, promoID int64, userID int64) (bool, error) {
	args := m.Called(ctx, promoID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPromoRepository) CreateRedemption(ctx context.Context, redemption *entities.PromoRedemption) error {
	args := m.Called(ctx, redemption)
	return args.Error(0)
}

// MockReferralRepository is a mock implementation of ReferralRepository
type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) GetOrCreateStats(ctx context.Context, userID int64, maxUses int) (*entities.ReferralStats, error) {
	args := m.Called(ctx, userID, maxUses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferralStats), args.Error(1)
}

func (m *MockReferralRepository) IncrementUses(ctx context.Context, userID int64, amount int64) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

// MockBucketClaimRepository is a mock implementation of BucketClaimRepository
type MockBucketClaimRepository struct {
	mock.Mock
}

func (m *MockBucketClaimRepository) TryClaim(ctx context.Context, bucketKey string) (bool, error) {
	args := m.Called(ctx, bucketKey)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
