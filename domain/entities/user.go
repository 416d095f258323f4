package entities

import "time"

// User is a player identity with one wallet per currency
type User struct {
	ID                int64     `db:"id"`
	ExternalID        string    `db:"external_id"`
	Username          string    `db:"username"`
	PreferredCurrency Currency  `db:"preferred_currency"`
	ReferrerID        *int64    `db:"referrer_id"`
	ReferralCode      string    `db:"referral_code"`
	RealBalance       int64     `db:"-"` // Populated from wallets
	PlayBalance       int64     `db:"-"` // Populated from wallets
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Balance returns the cached balance for a currency
func (u *User) Balance(currency Currency) int64 {
	if currency == CurrencyReal {
		return u.RealBalance
	}
	return u.PlayBalance
}

// HasReferrer returns true if the user joined through a referral code
func (u *User) HasReferrer() bool {
	return u.ReferrerID != nil
}

// Wallet is the cached balance of a user in a single currency
type Wallet struct {
	UserID    int64     `db:"user_id"`
	Currency  Currency  `db:"currency"`
	Balance   int64     `db:"balance"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CanDebit checks if the wallet holds at least amount
func (w *Wallet) CanDebit(amount int64) bool {
	return w.Balance >= amount
}
