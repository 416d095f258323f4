package interfaces

import (
	"context"
	"time"

	"cardroom/domain/entities"
	"cardroom/events"
)

// LedgerRequest describes a single balance mutation. Amount is always positive.
type LedgerRequest struct {
	UserID         int64
	Currency       entities.Currency
	Amount         int64
	Kind           entities.TransactionKind
	TableID        *int64
	HandID         *int64
	IdempotencyKey string // Optional; a replay returns the original transaction
	Metadata       map[string]any
}

// ReconcileResult compares a cached wallet balance with the ledger
type ReconcileResult struct {
	UserID        int64             `json:"user_id"`
	Currency      entities.Currency `json:"currency"`
	WalletBalance int64             `json:"wallet_balance"`
	LedgerSum     int64             `json:"ledger_sum"`
	Consistent    bool              `json:"consistent"`
}

// LedgerService defines the interface for balance mutations
type LedgerService interface {
	// Credit adds Amount to the wallet
	Credit(ctx context.Context, req LedgerRequest) (*entities.Transaction, error)

	// Debit removes Amount from the wallet or fails with ErrInsufficientFunds
	Debit(ctx context.Context, req LedgerRequest) (*entities.Transaction, error)

	// Adjust applies a signed admin adjustment
	Adjust(ctx context.Context, userID int64, currency entities.Currency, delta int64, idempotencyKey, reason string) (*entities.Transaction, error)

	// Balance returns the cached wallet balance
	Balance(ctx context.Context, userID int64, currency entities.Currency) (int64, error)

	// History returns the most recent transactions of a wallet
	History(ctx context.Context, userID int64, currency entities.Currency, limit int) ([]*entities.Transaction, error)

	// Reconcile compares the wallet with the transaction sum
	Reconcile(ctx context.Context, userID int64, currency entities.Currency) (*ReconcileResult, error)
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates one with the initial play grant
	GetOrCreateUser(ctx context.Context, externalID, username string) (*entities.User, error)

	// GetUser returns a user with balances populated
	GetUser(ctx context.Context, userID int64) (*entities.User, error)

	// SetPreferredCurrency changes the user's default currency
	SetPreferredCurrency(ctx context.Context, userID int64, currency entities.Currency) error
}

// SeatManager defines the interface for seat occupancy and stacks
type SeatManager interface {
	// TakeSeat debits the buy-in and seats the user at the lowest free index
	TakeSeat(ctx context.Context, table *entities.Table, userID int64, buyIn int64) (*entities.Seat, error)

	// LeaveSeat releases the seat and, when cashOut is set, credits the stack
	LeaveSeat(ctx context.Context, table *entities.Table, seatID int64, cashOut bool) (*entities.Seat, error)

	// MarkSittingOutNextHand defers a sit-out to the next hand boundary
	MarkSittingOutNextHand(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error)

	// ApplyDeferredSitOuts applies deferred sit-outs at the hand boundary
	ApplyDeferredSitOuts(ctx context.Context, table *entities.Table) ([]*entities.Seat, error)

	// ReturnFromSitOut clears both sit-out flags
	ReturnFromSitOut(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error)

	// MarkLeavingAfterHand holds a dealt-in player's departure until the hand is settled
	MarkLeavingAfterHand(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error)

	// AddTimeoutStrike records an enforcement against the seat
	AddTimeoutStrike(ctx context.Context, seatID int64) (*entities.Seat, error)

	// AdjustStacks applies per-seat stack deltas from a settled hand
	AdjustStacks(ctx context.Context, table *entities.Table, deltas map[int64]int64) error

	// OccupiedSeats returns the open seats of a table
	OccupiedSeats(ctx context.Context, tableID int64) ([]*entities.Seat, error)
}

// CreateTableRequest describes a new table. Zero values take configured defaults.
type CreateTableRequest struct {
	Variant      entities.Variant
	Currency     entities.Currency
	MaxSeats     int
	MinPlayers   int
	BuyIn        int64
	IsPersistent bool
	CreatorID    *int64
	InviteCode   *string
}

// HandResult is what the table reports when a hand finishes
type HandResult struct {
	Contributions map[int64]int64 // Seat ID -> chips committed
	Folded        []int64         // Seat IDs that folded
}

// TableLifecycleService defines the interface for the table state machine
type TableLifecycleService interface {
	CreateTable(ctx context.Context, req CreateTableRequest) (*entities.Table, error)
	GetTable(ctx context.Context, tableID int64) (*entities.Table, error)
	SeatPlayer(ctx context.Context, tableID, userID int64, buyIn int64) (*entities.Seat, error)
	UnseatPlayer(ctx context.Context, tableID, seatID int64, cashOut bool) error
	EvaluateSeating(ctx context.Context, table *entities.Table) error
	AdvanceSNG(ctx context.Context, tableID int64, now time.Time) error
	StartHand(ctx context.Context, tableID int64) (*entities.Hand, error)
	CompleteHand(ctx context.Context, tableID, handID int64, result HandResult) (*HandOutcome, error)
	EndTable(ctx context.Context, tableID int64, reason string) error
	ExpireTable(ctx context.Context, tableID int64, reason string) error
}

// WaitlistService defines the interface for the global waitlist
type WaitlistService interface {
	// Join queues a user, returning the existing entry for a duplicate request
	Join(ctx context.Context, userID int64, variant entities.Variant, currency entities.Currency, buyIn int64) (*entities.WaitlistEntry, error)

	// Cancel cancels a waiting entry owned by userID
	Cancel(ctx context.Context, entryID, userID int64) (*entities.WaitlistEntry, error)

	// MarkEntered fixes the entry's routed table
	MarkEntered(ctx context.Context, entryID, tableID int64) error

	// WaitingBuckets returns buckets with waiting entries, oldest first
	WaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error)

	// PlanBucket loads a bucket and plans where each waiting entry goes
	PlanBucket(ctx context.Context, bucket entities.WaitlistBucket) (*BucketPlan, error)
}

// TableCandidate is a routable table, how many seats it can still take and
// which users already sit there
type TableCandidate struct {
	Table  *entities.Table
	Free   int
	Seated map[int64]bool
}

// Assignment routes one entry to an existing table. Candidates holds the
// fallback order, starting with the planned table.
type Assignment struct {
	Entry      *entities.WaitlistEntry
	Candidates []int64
}

// NewTableBatch is a group of entries seated together at a new table
type NewTableBatch struct {
	Variant  entities.Variant
	Currency entities.Currency
	BuyIn    int64
	Entries  []*entities.WaitlistEntry
}

// BucketPlan is the router's plan for one bucket
type BucketPlan struct {
	Bucket      entities.WaitlistBucket
	Assignments []Assignment
	NewTables   []NewTableBatch
}

// TimeoutDecision reports what the enforcer did with a decision
type TimeoutDecision struct {
	Consecutive int
	Strikes     int
	Action      events.TimeoutAction
}

// TimeoutEnforcer defines the interface for consecutive timeout enforcement
type TimeoutEnforcer interface {
	RecordDecision(ctx context.Context, tableID, handID, userID int64, timedOut bool) (*TimeoutDecision, error)
}

// InviteService defines the interface for group game invites
type InviteService interface {
	CreateGroupInvite(ctx context.Context, gameID, creatorID int64, groupID *string) (*entities.GroupGameInvite, error)
	MarkReady(ctx context.Context, inviteID int64) (*entities.GroupGameInvite, error)
	Consume(ctx context.Context, token string, userID int64) (*entities.GroupGameInvite, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// PromoService defines the interface for bounded-use promo codes
type PromoService interface {
	CreatePromo(ctx context.Context, code string, currency entities.Currency, amount int64, maxUses int, expiresAt *time.Time) (*entities.PromoCode, error)
	Redeem(ctx context.Context, code string, userID int64) (*entities.Transaction, error)
}

// ReferralService defines the interface for referral credits
type ReferralService interface {
	ApplyReferral(ctx context.Context, newUserID int64, referralCode string) (*entities.Transaction, error)
}
