package interfaces

import (
	"context"
	"time"

	"cardroom/domain/entities"
	"cardroom/events"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by id, or nil if it does not exist
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetByExternalID retrieves a user by the front-end identity
	GetByExternalID(ctx context.Context, externalID string) (*entities.User, error)

	// GetByReferralCode retrieves the owner of a referral code
	GetByReferralCode(ctx context.Context, code string) (*entities.User, error)

	// Create inserts a user and fills in its id and timestamps. A duplicate
	// external id or referral code returns apperrors.ErrConflict.
	Create(ctx context.Context, user *entities.User) error

	// SetReferrer links a referrer once. Returns false if a referrer was already set.
	SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error)

	// UpdatePreferredCurrency changes the user's default currency
	UpdatePreferredCurrency(ctx context.Context, userID int64, currency entities.Currency) error
}

// WalletRepository defines the interface for cached wallet balances
type WalletRepository interface {
	// Ensure creates the wallet with a zero balance if it does not exist
	Ensure(ctx context.Context, userID int64, currency entities.Currency) error

	// Get returns the wallet without locking it
	Get(ctx context.Context, userID int64, currency entities.Currency) (*entities.Wallet, error)

	// GetForUpdate returns the wallet and holds its row lock until the transaction ends
	GetForUpdate(ctx context.Context, userID int64, currency entities.Currency) (*entities.Wallet, error)

	// UpdateBalance stores a new cached balance
	UpdateBalance(ctx context.Context, userID int64, currency entities.Currency, balance int64) error

	// GetByUser returns every wallet the user owns
	GetByUser(ctx context.Context, userID int64) ([]*entities.Wallet, error)
}

// TransactionRepository defines the interface for the append-only ledger
type TransactionRepository interface {
	// Append inserts a transaction and fills in its id and created_at
	Append(ctx context.Context, transaction *entities.Transaction) error

	// GetByIdempotencyKey returns the transaction recorded under key, or nil
	GetByIdempotencyKey(ctx context.Context, key string) (*entities.Transaction, error)

	// GetByUser returns the most recent transactions for a wallet
	GetByUser(ctx context.Context, userID int64, currency entities.Currency, limit int) ([]*entities.Transaction, error)

	// SumByUser returns the sum of signed amounts for a wallet
	SumByUser(ctx context.Context, userID int64, currency entities.Currency) (int64, error)

	// GetByTable returns every transaction that references a table
	GetByTable(ctx context.Context, tableID int64) ([]*entities.Transaction, error)
}

// TableRepository defines the interface for table data access
type TableRepository interface {
	// Create inserts a table and fills in its id
	Create(ctx context.Context, table *entities.Table) error

	// GetByID retrieves a table without locking it
	GetByID(ctx context.Context, id int64) (*entities.Table, error)

	// GetForUpdate retrieves a table and holds its row lock until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*entities.Table, error)

	// Update stores the mutable fields of a table
	Update(ctx context.Context, table *entities.Table) error

	// GetRoutable returns open, non invite-only tables of a bucket, oldest first
	GetRoutable(ctx context.Context, variant entities.Variant, currency entities.Currency) ([]*entities.Table, error)

	// GetExpired returns non-persistent, non-terminal tables whose deadline passed
	GetExpired(ctx context.Context, now time.Time) ([]*entities.Table, error)

	// GetInJoinWindow returns tournament tables whose join window is running
	GetInJoinWindow(ctx context.Context) ([]*entities.Table, error)

	// CountByStatus returns the number of tables per status
	CountByStatus(ctx context.Context) (map[entities.TableStatus]int, error)
}

// SeatRepository defines the interface for seat data access
type SeatRepository interface {
	// Create inserts an open seat. An occupied seat index or a user already
	// seated at the table returns apperrors.ErrSeatUnavailable.
	Create(ctx context.Context, seat *entities.Seat) error

	// GetByID retrieves a seat
	GetByID(ctx context.Context, id int64) (*entities.Seat, error)

	// GetOccupiedByTable returns the open seats of a table ordered by seat index
	GetOccupiedByTable(ctx context.Context, tableID int64) ([]*entities.Seat, error)

	// GetOccupiedByTableAndUser returns the user's open seat at a table, or nil
	GetOccupiedByTableAndUser(ctx context.Context, tableID, userID int64) (*entities.Seat, error)

	// Update stores stack, sit-out flags and strikes
	Update(ctx context.Context, seat *entities.Seat) error

	// Release closes an open seat. Returns false if it was already released.
	Release(ctx context.Context, seatID int64, at time.Time) (bool, error)
}

// HandRepository defines the interface for hand data access
type HandRepository interface {
	// Create inserts a hand and fills in its id
	Create(ctx context.Context, hand *entities.Hand) error

	// GetByID retrieves a hand
	GetByID(ctx context.Context, id int64) (*entities.Hand, error)

	// GetLatestByTable returns the hand with the highest number at a table, or nil
	GetLatestByTable(ctx context.Context, tableID int64) (*entities.Hand, error)

	// Update stores pot, status, timeout tracking and completion time
	Update(ctx context.Context, hand *entities.Hand) error
}

// WaitlistRepository defines the interface for the global waitlist
type WaitlistRepository interface {
	// Create inserts a waiting entry. A second waiting entry for the same
	// bucket returns apperrors.ErrConflict.
	Create(ctx context.Context, entry *entities.WaitlistEntry) error

	// GetByID retrieves an entry
	GetByID(ctx context.Context, id int64) (*entities.WaitlistEntry, error)

	// GetWaitingByUser returns the user's waiting entry in a bucket, or nil
	GetWaitingByUser(ctx context.Context, userID int64, variant entities.Variant, currency entities.Currency) (*entities.WaitlistEntry, error)

	// GetWaitingBuckets returns buckets with waiting entries, oldest entry first
	GetWaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error)

	// GetWaitingByBucket returns waiting entries of a bucket, oldest first
	GetWaitingByBucket(ctx context.Context, variant entities.Variant, currency entities.Currency, limit int) ([]*entities.WaitlistEntry, error)

	// MarkEntered routes a waiting entry to a table. Returns false if the
	// entry is no longer waiting.
	MarkEntered(ctx context.Context, entryID, tableID int64) (bool, error)

	// Cancel cancels a waiting entry. Returns false if it is no longer waiting.
	Cancel(ctx context.Context, entryID int64) (bool, error)
}

// InviteRepository defines the interface for group game invites
type InviteRepository interface {
	// Create inserts an invite. A duplicate token or game returns apperrors.ErrConflict.
	Create(ctx context.Context, invite *entities.GroupGameInvite) error

	// GetByID retrieves an invite
	GetByID(ctx context.Context, id int64) (*entities.GroupGameInvite, error)

	// GetByToken retrieves an invite by its deep-link token
	GetByToken(ctx context.Context, token string) (*entities.GroupGameInvite, error)

	// GetByGameID retrieves the invite that belongs to a table
	GetByGameID(ctx context.Context, gameID int64) (*entities.GroupGameInvite, error)

	// MarkReady moves a pending invite to ready. Returns false if it was not pending.
	MarkReady(ctx context.Context, id int64) (bool, error)

	// Consume marks a ready, unexpired invite as consumed by userID and returns
	// it. Returns nil if another caller won or the invite is not consumable.
	Consume(ctx context.Context, token string, userID int64, now time.Time) (*entities.GroupGameInvite, error)

	// ExpireOverdue expires open invites past their deadline. The returned
	// invites carry the status they had before expiring.
	ExpireOverdue(ctx context.Context, now time.Time) ([]*entities.GroupGameInvite, error)
}

// PromoRepository defines the interface for promo codes
type PromoRepository interface {
	// Create inserts a promo code. A duplicate code returns apperrors.ErrConflict.
	Create(ctx context.Context, promo *entities.PromoCode) error

	// GetByCode retrieves a promo code
	GetByCode(ctx context.Context, code string) (*entities.PromoCode, error)

	// IncrementUses consumes one use if any remain. Returns false when exhausted.
	IncrementUses(ctx context.Context, promoID int64) (bool, error)

	// HasRedeemed returns true if the user already redeemed the code
	HasRedeemed(ctx context.Context, promoID, userID int64) (bool, error)

	// CreateRedemption records a redemption. A second redemption by the same
	// user returns apperrors.ErrConflict.
	CreateRedemption(ctx context.Context, redemption *entities.PromoRedemption) error
}

// ReferralRepository defines the interface for referral limits
type ReferralRepository interface {
	// GetOrCreateStats returns the referrer's stats, creating them with maxUses
	GetOrCreateStats(ctx context.Context, userID int64, maxUses int) (*entities.ReferralStats, error)

	// IncrementUses consumes one referral use and adds amount to the credited
	// total. Returns false when the referrer reached the limit.
	IncrementUses(ctx context.Context, userID int64, amount int64) (bool, error)
}

// BucketClaimRepository provides the short-lived exclusive claim used while
// creating tables for a waitlist bucket
type BucketClaimRepository interface {
	// TryClaim takes the claim for the rest of the current transaction.
	// Returns false without blocking if another router holds it.
	TryClaim(ctx context.Context, bucketKey string) (bool, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}
