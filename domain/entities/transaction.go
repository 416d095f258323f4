package entities

import (
	"errors"
	"fmt"
	"time"
)

// TransactionKind represents the reason for a ledger entry
type TransactionKind string

const (
	// Table transactions
	TransactionKindBuyIn   TransactionKind = "buy_in"
	TransactionKindCashOut TransactionKind = "cash_out"
	TransactionKindPayout  TransactionKind = "payout"
	TransactionKindRefund  TransactionKind = "refund"

	// Grants
	TransactionKindInitialGrant   TransactionKind = "initial_grant"
	TransactionKindPromoCredit    TransactionKind = "promo_credit"
	TransactionKindReferralCredit TransactionKind = "referral_credit"

	// Operator corrections and one-time backfills
	TransactionKindAdminAdjustment TransactionKind = "admin_adjustment"
)

var transactionKinds = map[TransactionKind]struct{}{
	TransactionKindBuyIn:           {},
	TransactionKindCashOut:         {},
	TransactionKindPayout:          {},
	TransactionKindRefund:          {},
	TransactionKindInitialGrant:    {},
	TransactionKindPromoCredit:     {},
	TransactionKindReferralCredit:  {},
	TransactionKindAdminAdjustment: {},
}

// ParseTransactionKind converts a stored value into a TransactionKind
func ParseTransactionKind(value string) (TransactionKind, error) {
	kind := TransactionKind(value)
	if !kind.IsValid() {
		return "", fmt.Errorf("unknown transaction kind %q", value)
	}
	return kind, nil
}

// IsValid returns true if the kind is a known value
func (k TransactionKind) IsValid() bool {
	_, ok := transactionKinds[k]
	return ok
}

// IsTableRelated returns true if the kind moves chips on or off a table
func (k TransactionKind) IsTableRelated() bool {
	return k == TransactionKindBuyIn ||
		k == TransactionKindCashOut ||
		k == TransactionKindPayout ||
		k == TransactionKindRefund
}

// IsGrant returns true if the kind is a bounded or one-time credit grant
func (k TransactionKind) IsGrant() bool {
	return k == TransactionKindInitialGrant ||
		k == TransactionKindPromoCredit ||
		k == TransactionKindReferralCredit
}

// String returns the string representation of the kind
func (k TransactionKind) String() string {
	return string(k)
}

// Transaction is an immutable ledger entry. Amount is signed: credits are
// positive, debits negative.
type Transaction struct {
	ID             int64           `db:"id"`
	UserID         int64           `db:"user_id"`
	Currency       Currency        `db:"currency"`
	Amount         int64           `db:"amount"`
	BalanceAfter   int64           `db:"balance_after"`
	Kind           TransactionKind `db:"kind"`
	TableID        *int64          `db:"table_id"`
	HandID         *int64          `db:"hand_id"`
	IdempotencyKey *string         `db:"idempotency_key"`
	Metadata       map[string]any  `db:"metadata"`
	CreatedAt      time.Time       `db:"created_at"`
}

// BalanceBefore returns the wallet balance prior to this transaction
func (t *Transaction) BalanceBefore() int64 {
	return t.BalanceAfter - t.Amount
}

// IsCredit returns true if the transaction increased the balance
func (t *Transaction) IsCredit() bool {
	return t.Amount > 0
}

// IsDebit returns true if the transaction decreased the balance
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// Validate performs basic validation before the transaction is appended
func (t *Transaction) Validate() error {
	if t.Amount == 0 {
		return errors.New("transaction amount cannot be zero")
	}
	if !t.Currency.IsValid() {
		return fmt.Errorf("invalid currency %q", t.Currency)
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("invalid transaction kind %q", t.Kind)
	}
	if t.BalanceAfter < 0 {
		return errors.New("resulting balance cannot be negative")
	}
	return nil
}
