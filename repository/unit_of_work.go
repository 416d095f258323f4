package repository

import (
	"context"
	"errors"
	"fmt"

	"cardroom/application"
	"cardroom/database"
	"cardroom/domain/interfaces"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements the application.UnitOfWork interface
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	transactionalPublisher application.TransactionalPublisher
	userRepo               interfaces.UserRepository
	walletRepo             interfaces.WalletRepository
	transactionRepo        interfaces.TransactionRepository
	tableRepo              interfaces.TableRepository
	seatRepo               interfaces.SeatRepository
	handRepo               interfaces.HandRepository
	waitlistRepo           interfaces.WaitlistRepository
	inviteRepo             interfaces.InviteRepository
	promoRepo              interfaces.PromoRepository
	referralRepo           interfaces.ReferralRepository
	bucketClaimRepo        interfaces.BucketClaimRepository
}

type unitOfWorkFactory struct {
	db *database.DB
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB) *unitOfWorkFactory {
	return &unitOfWorkFactory{db: db}
}

// CreateWithPublisher creates a new UnitOfWork whose events are held by the
// given transactional publisher until commit
func (f *unitOfWorkFactory) CreateWithPublisher(transactionalPublisher application.TransactionalPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		transactionalPublisher: transactionalPublisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = newUserRepositoryWithTx(tx)
	u.walletRepo = newWalletRepositoryWithTx(tx)
	u.transactionRepo = newTransactionRepositoryWithTx(tx)
	u.tableRepo = newTableRepositoryWithTx(tx)
	u.seatRepo = newSeatRepositoryWithTx(tx)
	u.handRepo = newHandRepositoryWithTx(tx)
	u.waitlistRepo = newWaitlistRepositoryWithTx(tx)
	u.inviteRepo = newInviteRepositoryWithTx(tx)
	u.promoRepo = newPromoRepositoryWithTx(tx)
	u.referralRepo = newReferralRepositoryWithTx(tx)
	u.bucketClaimRepo = newBucketClaimRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		u.tx = nil
		if u.transactionalPublisher != nil {
			u.transactionalPublisher.Discard()
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Events are best-effort once the transaction is durable
	if u.transactionalPublisher != nil {
		if err := u.transactionalPublisher.Flush(u.ctx); err != nil {
			log.WithError(err).Error("Failed to flush events after commit")
		}
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil

	if u.transactionalPublisher != nil {
		u.transactionalPublisher.Discard()
	}

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) mustBegin() {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	u.mustBegin()
	return u.userRepo
}

// WalletRepository returns the wallet repository for this unit of work
func (u *unitOfWork) WalletRepository() interfaces.WalletRepository {
	u.mustBegin()
	return u.walletRepo
}

// TransactionRepository returns the ledger repository for this unit of work
func (u *unitOfWork) TransactionRepository() interfaces.TransactionRepository {
	u.mustBegin()
	return u.transactionRepo
}

// TableRepository returns the table repository for this unit of work
func (u *unitOfWork) TableRepository() interfaces.TableRepository {
	u.mustBegin()
	return u.tableRepo
}

// SeatRepository returns the seat repository for this unit of work
func (u *unitOfWork) SeatRepository() interfaces.SeatRepository {
	u.mustBegin()
	return u.seatRepo
}

// HandRepository returns the hand repository for this unit of work
func (u *unitOfWork) HandRepository() interfaces.HandRepository {
	u.mustBegin()
	return u.handRepo
}

// WaitlistRepository returns the waitlist repository for this unit of work
func (u *unitOfWork) WaitlistRepository() interfaces.WaitlistRepository {
	u.mustBegin()
	return u.waitlistRepo
}

// InviteRepository returns the invite repository for this unit of work
func (u *unitOfWork) InviteRepository() interfaces.InviteRepository {
	u.mustBegin()
	return u.inviteRepo
}

// PromoRepository returns the promo code repository for this unit of work
func (u *unitOfWork) PromoRepository() interfaces.PromoRepository {
	u.mustBegin()
	return u.promoRepo
}

// ReferralRepository returns the referral repository for this unit of work
func (u *unitOfWork) ReferralRepository() interfaces.ReferralRepository {
	u.mustBegin()
	return u.referralRepo
}

// BucketClaimRepository returns the bucket claim repository for this unit of work
func (u *unitOfWork) BucketClaimRepository() interfaces.BucketClaimRepository {
	u.mustBegin()
	return u.bucketClaimRepo
}

// EventBus returns the transactional publisher. Events published through it
// are only delivered if the transaction commits.
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	return u.transactionalPublisher
}
