package testhelpers

import (
	"context"
	"time"

	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Credit(ctx context.Context, req interfaces.LedgerRequest) (*entities.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockLedgerService) Debit(ctx context.Context, req interfaces.LedgerRequest) (*entities.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockLedgerService) Adjust(ctx context.Context, userID int64, currency entities.Currency, delta int64, idempotencyKey string, reason string) (*entities.Transaction, error) {
	args := m.Called(ctx, userID, currency, delta, idempotencyKey, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockLedgerService) Balance(ctx context.Context, userID int64, currency entities.Currency) (int64, error) {
	args := m.Called(ctx, userID, currency)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) History(ctx context.Context, userID int64, currency entities.Currency, limit int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, userID, currency, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *MockLedgerService) Reconcile(ctx context.Context, userID int64, currency entities.Currency) (*interfaces.ReconcileResult, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.ReconcileResult), args.Error(1)
}

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetOrCreateUser(ctx context.Context, externalID string, username string) (*entities.User, error) {
	args := m.Called(ctx, externalID, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserService) SetPreferredCurrency(ctx context.Context, userID int64, currency entities.Currency) error {
	args := m.Called(ctx, userID, currency)
	return args.Error(0)
}

// MockSeatManager is a mock implementation of SeatManager
type MockSeatManager struct {
	mock.Mock
}

func (m *MockSeatManager) TakeSeat(ctx context.Context, table *entities.Table, userID int64, buyIn int64) (*entities.Seat, error) {
	args := m.Called(ctx, table, userID, buyIn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatManager) LeaveSeat(ctx context.Context, table *entities.Table, seatID int64, cashOut bool) (*entities.Seat, error) {
	args := m.Called(ctx, table, seatID, cashOut)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatManager) MarkSittingOutNextHand(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error) {
	args := m.Called(ctx, table, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatManager) ApplyDeferredSitOuts(ctx context.Context, table *entities.Table) ([]*entities.Seat, error) {
	args := m.Called(ctx, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Seat), args.Error(1)
}

func (m *MockSeatManager) ReturnFromSitOut(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error) {
	args := m.Called(ctx, table, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatManager) MarkLeavingAfterHand(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error) {
	args := m.Called(ctx, table, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatManager) AddTimeoutStrike(ctx context.Context, seatID int64) (*entities.Seat, error) {
	args := m.Called(ctx, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockSeatManager) AdjustStacks(ctx context.Context, table *entities.Table, deltas map[int64]int64) error {
	args := m.Called(ctx, table, deltas)
	return args.Error(0)
}

func (m *MockSeatManager) OccupiedSeats(ctx context.Context, tableID int64) ([]*entities.Seat, error) {
	args := m.Called(ctx, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Seat), args.Error(1)
}

// MockTableLifecycleService is a mock implementation of TableLifecycleService
type MockTableLifecycleService struct {
	mock.Mock
}

func (m *MockTableLifecycleService) CreateTable(ctx context.Context, req interfaces.CreateTableRequest) (*entities.Table, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Table), args.Error(1)
}

func (m *MockTableLifecycleService) GetTable(ctx context.Context, tableID int64) (*entities.Table, error) {
	args := m.Called(ctx, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Table), args.Error(1)
}

func (m *MockTableLifecycleService) SeatPlayer(ctx context.Context, tableID int64, userID int64, buyIn int64) (*entities.Seat, error) {
	args := m.Called(ctx, tableID, userID, buyIn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Seat), args.Error(1)
}

func (m *MockTableLifecycleService) UnseatPlayer(ctx context.Context, tableID int64, seatID int64, cashOut bool) error {
	args := m.Called(ctx, tableID, seatID, cashOut)
	return args.Error(0)
}

func (m *MockTableLifecycleService) EvaluateSeating(ctx context.Context, table *entities.Table) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockTableLifecycleService) AdvanceSNG(ctx context.Context, tableID int64, now time.Time) error {
	args := m.Called(ctx, tableID, now)
	return args.Error(0)
}

func (m *MockTableLifecycleService) StartHand(ctx context.Context, tableID int64) (*entities.Hand, error) {
	args := m.Called(ctx, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Hand), args.Error(1)
}

func (m *MockTableLifecycleService) CompleteHand(ctx context.Context, tableID int64, handID int64, result interfaces.HandResult) (*interfaces.HandOutcome, error) {
	args := m.Called(ctx, tableID, handID, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.HandOutcome), args.Error(1)
}

func (m *MockTableLifecycleService) EndTable(ctx context.Context, tableID int64, reason string) error {
	args := m.Called(ctx, tableID, reason)
	return args.Error(0)
}

func (m *MockTableLifecycleService) ExpireTable(ctx context.Context, tableID int64, reason string) error {
	args := m.Called(ctx, tableID, reason)
	return args.Error(0)
}

// MockWaitlistService is a mock implementation of WaitlistService
type MockWaitlistService struct {
	mock.Mock
}

func (m *MockWaitlistService) Join(ctx context.Context, userID int64, variant entities.Variant, currency entities.Currency, buyIn int64) (*entities.WaitlistEntry, error) {
	args := m.Called(ctx, userID, variant, currency, buyIn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlistService) Cancel(ctx context.Context, entryID int64, userID int64) (*entities.WaitlistEntry, error) {
	args := m.Called(ctx, entryID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlistService) MarkEntered(ctx context.Context, entryID int64, tableID int64) error {
	args := m.Called(ctx, entryID, tableID)
	return args.Error(0)
}

func (m *MockWaitlistService) WaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.WaitlistBucket), args.Error(1)
}

func (m *MockWaitlistService) PlanBucket(ctx context.Context, bucket entities.WaitlistBucket) (*interfaces.BucketPlan, error) {
	args := m.Called(ctx, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.BucketPlan), args.Error(1)
}

// MockTimeoutEnforcer is a mock implementation of TimeoutEnforcer
type MockTimeoutEnforcer struct {
	mock.Mock
}

func (m *MockTimeoutEnforcer) RecordDecision(ctx context.Context, tableID int64, handID int64, userID int64, timedOut bool) (*interfaces.TimeoutDecision, error) {
	args := m.Called(ctx, tableID, handID, userID, timedOut)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.TimeoutDecision), args.Error(1)
}

// MockInviteService is a mock implementation of InviteService
type MockInviteService struct {
	mock.Mock
}

func (m *MockInviteService) CreateGroupInvite(ctx context.Context, gameID int64, creatorID int64, groupID *string) (*entities.GroupGameInvite, error) {
	args := m.Called(ctx, gameID, creatorID, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupGameInvite), args.Error(1)
}

func (m *MockInviteService) MarkReady(ctx context.Context, inviteID int64) (*entities.GroupGameInvite, error) {
	args := m.Called(ctx, inviteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupGameInvite), args.Error(1)
}

func (m *MockInviteService) Consume(ctx context.Context, token string, userID int64) (*entities.GroupGameInvite, error) {
	args := m.Called(ctx, token, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupGameInvite), args.Error(1)
}

func (m *MockInviteService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// MockPromoService is a mock implementation of PromoService
type MockPromoService struct {
	mock.Mock
}

func (m *MockPromoService) CreatePromo(ctx context.Context, code string, currency entities.Currency, amount int64, maxUses int, expiresAt *time.Time) (*entities.PromoCode, error) {
	args := m.Called(ctx, code, currency, amount, maxUses, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PromoCode), args.Error(1)
}

func (m *MockPromoService) Redeem(ctx context.Context, code string, userID int64) (*entities.Transaction, error) {
	args := m.Called(ctx, code, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

// MockReferralService is a mock implementation of ReferralService
type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) ApplyReferral(ctx context.Context, newUserID int64, referralCode string) (*entities.Transaction, error) {
	args := m.Called(ctx, newUserID, referralCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

// MockRulesEngine is a mock implementation of RulesEngine
type MockRulesEngine struct {
	mock.Mock
}

func (m *MockRulesEngine) SettleHand(ctx context.Context, snapshot interfaces.HandSnapshot) (*interfaces.HandOutcome, error) {
	args := m.Called(ctx, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.HandOutcome), args.Error(1)
}
