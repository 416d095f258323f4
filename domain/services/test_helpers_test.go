package services

import (
	"testing"
	"time"

	"cardroom/config"
	"cardroom/domain/entities"
	"cardroom/domain/testhelpers"
	"cardroom/events"

	"github.com/stretchr/testify/mock"
)

// Test constants for consistent test data
const (
	TestTableID = int64(10)
	TestHandID  = int64(20)
	TestUser1ID = int64(100)
	TestUser2ID = int64(200)
	TestUser3ID = int64(300)
	TestSeat1ID = int64(1001)
	TestSeat2ID = int64(1002)
	TestSeat3ID = int64(1003)
	TestBuyIn   = int64(1000)
)

// TestMocks aggregates all repository mocks for testing
type TestMocks struct {
	UserRepo        *testhelpers.MockUserRepository
	WalletRepo      *testhelpers.MockWalletRepository
	TransactionRepo *testhelpers.MockTransactionRepository
	TableRepo       *testhelpers.MockTableRepository
	SeatRepo        *testhelpers.MockSeatRepository
	HandRepo        *testhelpers.MockHandRepository
	WaitlistRepo    *testhelpers.MockWaitlistRepository
	InviteRepo      *testhelpers.MockInviteRepository
	PromoRepo       *testhelpers.MockPromoRepository
	ReferralRepo    *testhelpers.MockReferralRepository
	EventPublisher  *testhelpers.MockEventPublisher
	Ledger          *testhelpers.MockLedgerService
	SeatManager     *testhelpers.MockSeatManager
	Lifecycle       *testhelpers.MockTableLifecycleService
	Rules           *testhelpers.MockRulesEngine
}

// NewTestMocks creates a new set of mocks
func NewTestMocks() *TestMocks {
	return &TestMocks{
		UserRepo:        &testhelpers.MockUserRepository{},
		WalletRepo:      &testhelpers.MockWalletRepository{},
		TransactionRepo: &testhelpers.MockTransactionRepository{},
		TableRepo:       &testhelpers.MockTableRepository{},
		SeatRepo:        &testhelpers.MockSeatRepository{},
		HandRepo:        &testhelpers.MockHandRepository{},
		WaitlistRepo:    &testhelpers.MockWaitlistRepository{},
		InviteRepo:      &testhelpers.MockInviteRepository{},
		PromoRepo:       &testhelpers.MockPromoRepository{},
		ReferralRepo:    &testhelpers.MockReferralRepository{},
		EventPublisher:  &testhelpers.MockEventPublisher{},
		Ledger:          &testhelpers.MockLedgerService{},
		SeatManager:     &testhelpers.MockSeatManager{},
		Lifecycle:       &testhelpers.MockTableLifecycleService{},
		Rules:           &testhelpers.MockRulesEngine{},
	}
}

// AssertAllExpectations verifies all mock expectations were met
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.UserRepo.AssertExpectations(t)
	m.WalletRepo.AssertExpectations(t)
	m.TransactionRepo.AssertExpectations(t)
	m.TableRepo.AssertExpectations(t)
	m.SeatRepo.AssertExpectations(t)
	m.HandRepo.AssertExpectations(t)
	m.WaitlistRepo.AssertExpectations(t)
	m.InviteRepo.AssertExpectations(t)
	m.PromoRepo.AssertExpectations(t)
	m.ReferralRepo.AssertExpectations(t)
	m.Ledger.AssertExpectations(t)
	m.SeatManager.AssertExpectations(t)
	m.Lifecycle.AssertExpectations(t)
	m.Rules.AssertExpectations(t)
}

// AllowEvents accepts any published event
func (m *TestMocks) AllowEvents() {
	m.EventPublisher.On("Publish", mock.Anything).Return(nil)
}

func withTestConfig(t *testing.T) *config.Config {
	cfg := config.NewTestConfig()
	config.SetTestConfig(cfg)
	t.Cleanup(config.ResetConfig)
	return cfg
}

func newCashTable(status entities.TableStatus) *entities.Table {
	now := time.Now().UTC()
	expires := now.Add(15 * time.Minute)
	return &entities.Table{
		ID:           TestTableID,
		Status:       status,
		Currency:     entities.CurrencyPlay,
		Variant:      entities.VariantHoldem,
		MaxSeats:     6,
		MinPlayers:   2,
		BuyIn:        TestBuyIn,
		CreatedAt:    now,
		ExpiresAt:    &expires,
		LastActionAt: now,
	}
}

func newSNGTable(state entities.SNGState) *entities.Table {
	table := newCashTable(entities.TableStatusWaiting)
	table.Variant = entities.VariantSitAndGo
	table.StartingStack = 1500
	table.SNGState = &state
	return table
}

func newSeat(id, userID int64, index int, stack int64) *entities.Seat {
	return &entities.Seat{
		ID:        id,
		TableID:   TestTableID,
		UserID:    userID,
		SeatIndex: index,
		BuyIn:     TestBuyIn,
		Stack:     stack,
		JoinedAt:  time.Now().UTC(),
	}
}

func eventOfType(eventType events.EventType) interface{} {
	return mock.MatchedBy(func(e events.Event) bool { return e.Type() == eventType })
}
