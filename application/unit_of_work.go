package application

import (
	"context"

	"cardroom/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and then flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	UserRepository() interfaces.UserRepository
	WalletRepository() interfaces.WalletRepository
	TransactionRepository() interfaces.TransactionRepository
	TableRepository() interfaces.TableRepository
	SeatRepository() interfaces.SeatRepository
	HandRepository() interfaces.HandRepository
	WaitlistRepository() interfaces.WaitlistRepository
	InviteRepository() interfaces.InviteRepository
	PromoRepository() interfaces.PromoRepository
	ReferralRepository() interfaces.ReferralRepository
	BucketClaimRepository() interfaces.BucketClaimRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// TransactionalPublisher holds events until the owning transaction commits
type TransactionalPublisher interface {
	interfaces.EventPublisher

	// Flush publishes every pending event
	Flush(ctx context.Context) error

	// Discard drops every pending event
	Discard()
}
