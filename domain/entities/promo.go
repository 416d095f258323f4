package entities

import "time"

// PromoCode is a bounded-use credit grant
type PromoCode struct {
	ID          int64      `db:"id"`
	Code        string     `db:"code"`
	Currency    Currency   `db:"currency"`
	Amount      int64      `db:"amount"`
	MaxUses     int        `db:"max_uses"`
	CurrentUses int        `db:"current_uses"`
	ExpiresAt   *time.Time `db:"expires_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// RemainingUses returns how many more redemptions are allowed
func (p *PromoCode) RemainingUses() int {
	if p.CurrentUses >= p.MaxUses {
		return 0
	}
	return p.MaxUses - p.CurrentUses
}

// IsExhausted returns true once every use has been redeemed
func (p *PromoCode) IsExhausted() bool {
	return p.RemainingUses() == 0
}

// IsExpired returns true if the code has a deadline that has passed
func (p *PromoCode) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// PromoRedemption records that a user redeemed a promo code
type PromoRedemption struct {
	ID            int64     `db:"id"`
	PromoCodeID   int64     `db:"promo_code_id"`
	UserID        int64     `db:"user_id"`
	TransactionID int64     `db:"transaction_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// ReferralStats tracks how many referral credits a referrer has earned
type ReferralStats struct {
	UserID        int64     `db:"user_id"`
	CurrentUses   int       `db:"current_uses"`
	MaxUses       int       `db:"max_uses"`
	TotalCredited int64     `db:"total_credited"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// IsExhausted returns true once the referrer reached the limit
func (r *ReferralStats) IsExhausted() bool {
	return r.CurrentUses >= r.MaxUses
}
