package application_test

import (
	"context"
	"sync"

	"cardroom/application"
	"cardroom/domain/interfaces"
	"cardroom/domain/testhelpers"
)

// fakeUnitOfWork hands out shared repository mocks and records how the work ended
type fakeUnitOfWork struct {
	mocks *testMocks

	mu         sync.Mutex
	began      bool
	committed  bool
	rolledBack bool
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.began = true
	return nil
}

func (u *fakeUnitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.committed = true
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.committed {
		u.rolledBack = true
	}
	return nil
}

func (u *fakeUnitOfWork) UserRepository() interfaces.UserRepository { return u.mocks.UserRepo }
func (u *fakeUnitOfWork) WalletRepository() interfaces.WalletRepository {
	return u.mocks.WalletRepo
}
func (u *fakeUnitOfWork) TransactionRepository() interfaces.TransactionRepository {
	return u.mocks.TransactionRepo
}
func (u *fakeUnitOfWork) TableRepository() interfaces.TableRepository { return u.mocks.TableRepo }
func (u *fakeUnitOfWork) SeatRepository() interfaces.SeatRepository   { return u.mocks.SeatRepo }
func (u *fakeUnitOfWork) HandRepository() interfaces.HandRepository   { return u.mocks.HandRepo }
func (u *fakeUnitOfWork) WaitlistRepository() interfaces.WaitlistRepository {
	return u.mocks.WaitlistRepo
}
func (u *fakeUnitOfWork) InviteRepository() interfaces.InviteRepository {
	return u.mocks.InviteRepo
}
func (u *fakeUnitOfWork) PromoRepository() interfaces.PromoRepository { return u.mocks.PromoRepo }
func (u *fakeUnitOfWork) ReferralRepository() interfaces.ReferralRepository {
	return u.mocks.ReferralRepo
}
func (u *fakeUnitOfWork) BucketClaimRepository() interfaces.BucketClaimRepository {
	return u.mocks.BucketClaimRepo
}
func (u *fakeUnitOfWork) EventBus() interfaces.EventPublisher { return u.mocks.EventPublisher }

// fakeUnitOfWorkFactory records every unit of work it creates
type fakeUnitOfWorkFactory struct {
	mocks *testMocks

	mu      sync.Mutex
	created []*fakeUnitOfWork
}

func (f *fakeUnitOfWorkFactory) Create() application.UnitOfWork {
	f.mu.Lock()
	defer f.mu.Unlock()
	uow := &fakeUnitOfWork{mocks: f.mocks}
	f.created = append(f.created, uow)
	return uow
}

// outcomes returns how many units of work committed and rolled back
func (f *fakeUnitOfWorkFactory) outcomes() (committed, rolledBack int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uow := range f.created {
		uow.mu.Lock()
		if uow.committed {
			committed++
		}
		if uow.rolledBack {
			rolledBack++
		}
		uow.mu.Unlock()
	}
	return committed, rolledBack
}

// testMocks holds every mock used by application tests
type testMocks struct {
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
	BucketClaimRepo *testhelpers.MockBucketClaimRepository
	EventPublisher  *testhelpers.MockEventPublisher

	Ledger    *testhelpers.MockLedgerService
	Users     *testhelpers.MockUserService
	Seats     *testhelpers.MockSeatManager
	Lifecycle *testhelpers.MockTableLifecycleService
	Waitlist  *testhelpers.MockWaitlistService
	Enforcer  *testhelpers.MockTimeoutEnforcer
	Invites   *testhelpers.MockInviteService
	Promos    *testhelpers.MockPromoService
	Referrals *testhelpers.MockReferralService
}

func newTestMocks() *testMocks {
	return &testMocks{
		UserRepo:        new(testhelpers.MockUserRepository),
		WalletRepo:      new(testhelpers.MockWalletRepository),
		TransactionRepo: new(testhelpers.MockTransactionRepository),
		TableRepo:       new(testhelpers.MockTableRepository),
		SeatRepo:        new(testhelpers.MockSeatRepository),
		HandRepo:        new(testhelpers.MockHandRepository),
		WaitlistRepo:    new(testhelpers.MockWaitlistRepository),
		InviteRepo:      new(testhelpers.MockInviteRepository),
		PromoRepo:       new(testhelpers.MockPromoRepository),
		ReferralRepo:    new(testhelpers.MockReferralRepository),
		BucketClaimRepo: new(testhelpers.MockBucketClaimRepository),
		EventPublisher:  new(testhelpers.MockEventPublisher),

		Ledger:    new(testhelpers.MockLedgerService),
		Users:     new(testhelpers.MockUserService),
		Seats:     new(testhelpers.MockSeatManager),
		Lifecycle: new(testhelpers.MockTableLifecycleService),
		Waitlist:  new(testhelpers.MockWaitlistService),
		Enforcer:  new(testhelpers.MockTimeoutEnforcer),
		Invites:   new(testhelpers.MockInviteService),
		Promos:    new(testhelpers.MockPromoService),
		Referrals: new(testhelpers.MockReferralService),
	}
}

// builder returns the mocked services for every unit of work
func (m *testMocks) builder() application.ServiceBuilder {
	return func(uow application.UnitOfWork) *application.Services {
		return &application.Services{
			Ledger:    m.Ledger,
			Users:     m.Users,
			Seats:     m.Seats,
			Lifecycle: m.Lifecycle,
			Waitlist:  m.Waitlist,
			Enforcer:  m.Enforcer,
			Invites:   m.Invites,
			Promos:    m.Promos,
			Referrals: m.Referrals,
		}
	}
}

func (m *testMocks) factory() *fakeUnitOfWorkFactory {
	return &fakeUnitOfWorkFactory{mocks: m}
}
