package application

import (
	"context"
	"fmt"

	"cardroom/domain/interfaces"
	"cardroom/domain/services"

	log "github.com/sirupsen/logrus"
)

// Services is the set of domain services bound to one unit of work
type Services struct {
	Ledger    interfaces.LedgerService
	Users     interfaces.UserService
	Seats     interfaces.SeatManager
	Lifecycle interfaces.TableLifecycleService
	Waitlist  interfaces.WaitlistService
	Enforcer  interfaces.TimeoutEnforcer
	Invites   interfaces.InviteService
	Promos    interfaces.PromoService
	Referrals interfaces.ReferralService
}

// ServiceBuilder wires the domain services onto a started unit of work
type ServiceBuilder func(uow UnitOfWork) *Services

// NewServiceBuilder returns the production builder. The rules engine is
// shared by every unit of work.
func NewServiceBuilder(rules interfaces.RulesEngine) ServiceBuilder {
	return func(uow UnitOfWork) *Services {
		bus := uow.EventBus()
		ledger := services.NewLedgerService(uow.WalletRepository(), uow.TransactionRepository(), bus)
		seats := services.NewSeatManager(uow.SeatRepository(), uow.TableRepository(), ledger, bus)
		lifecycle := services.NewTableLifecycleService(uow.TableRepository(), uow.HandRepository(), seats, ledger, rules, bus)

		return &Services{
			Ledger:    ledger,
			Users:     services.NewUserService(uow.UserRepository(), uow.WalletRepository(), ledger, bus),
			Seats:     seats,
			Lifecycle: lifecycle,
			Waitlist:  services.NewWaitlistService(uow.WaitlistRepository(), uow.TableRepository(), uow.SeatRepository()),
			Enforcer:  services.NewTimeoutEnforcer(uow.TableRepository(), uow.HandRepository(), uow.SeatRepository(), seats, lifecycle, bus),
			Invites:   services.NewInviteService(uow.InviteRepository(), uow.TableRepository(), bus),
			Promos:    services.NewPromoService(uow.PromoRepository(), ledger),
			Referrals: services.NewReferralService(uow.UserRepository(), uow.ReferralRepository(), ledger),
		}
	}
}

// runInUnitOfWork executes fn inside a fresh unit of work. The work is
// committed when fn succeeds and rolled back otherwise.
func runInUnitOfWork(ctx context.Context, factory UnitOfWorkFactory, build ServiceBuilder, fn func(uow UnitOfWork, svc *Services) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := uow.Rollback(); err != nil {
			log.WithError(err).Debug("Rollback after unit of work returned an error")
		}
	}()

	if err := fn(uow, build(uow)); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
