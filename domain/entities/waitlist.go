package entities

import (
	"fmt"
	"time"
)

// WaitlistStatus represents the routing progress of a waitlist entry
type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "waiting"
	WaitlistStatusEntered   WaitlistStatus = "entered"
	WaitlistStatusCancelled WaitlistStatus = "cancelled"
)

// ParseWaitlistStatus converts a stored value into a WaitlistStatus
func ParseWaitlistStatus(value string) (WaitlistStatus, error) {
	switch s := WaitlistStatus(value); s {
	case WaitlistStatusWaiting, WaitlistStatusEntered, WaitlistStatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown waitlist status %q", value)
}

// WaitlistEntry is a player queued for a seat in a (variant, currency) bucket.
// Once Status leaves waiting, RoutedTableID is fixed.
type WaitlistEntry struct {
	ID            int64          `db:"id"`
	UserID        int64          `db:"user_id"`
	Variant       Variant        `db:"variant"`
	Currency      Currency       `db:"currency"`
	BuyIn         int64          `db:"buy_in"`
	Status        WaitlistStatus `db:"status"`
	RoutedTableID *int64         `db:"routed_table_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// IsWaiting returns true if the router may still place the entry
func (e *WaitlistEntry) IsWaiting() bool {
	return e.Status == WaitlistStatusWaiting
}

// BucketKey returns the router bucket the entry belongs to
func (e *WaitlistEntry) BucketKey() string {
	return BucketKey(e.Variant, e.Currency)
}

// Matches returns true if the table can host this entry
func (e *WaitlistEntry) Matches(table *Table) bool {
	return table.Variant == e.Variant && table.Currency == e.Currency
}

// WaitlistBucket identifies a group of entries routed together
type WaitlistBucket struct {
	Variant  Variant  `db:"variant"`
	Currency Currency `db:"currency"`
	Waiting  int      `db:"waiting"`
}

// Key returns the bucket key
func (b WaitlistBucket) Key() string {
	return BucketKey(b.Variant, b.Currency)
}
