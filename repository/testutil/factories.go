package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"cardroom/domain/entities"
)

var referralSeq atomic.Int64

// CreateTestUser creates a test user with a unique referral code
func CreateTestUser(externalID string) *entities.User {
	return &entities.User{
		ExternalID:        externalID,
		Username:          "player-" + externalID,
		PreferredCurrency: entities.CurrencyPlay,
		ReferralCode:      fmt.Sprintf("REF%06d", referralSeq.Add(1)),
	}
}

// CreateTestCashTable creates a waiting hold'em table with the given buy-in
func CreateTestCashTable(currency entities.Currency, buyIn int64) *entities.Table {
	expiresAt := time.Now().UTC().Add(15 * time.Minute)
	return &entities.Table{
		Status:     entities.TableStatusWaiting,
		Currency:   currency,
		Variant:    entities.VariantHoldem,
		MaxSeats:   6,
		MinPlayers: 2,
		BuyIn:      buyIn,
		ExpiresAt:  &expiresAt,
	}
}

// CreateTestSNGTable creates a sit-and-go table waiting for entrants
func CreateTestSNGTable(currency entities.Currency, buyIn int64) *entities.Table {
	table := CreateTestCashTable(currency, buyIn)
	state := entities.SNGStateWaiting
	table.Variant = entities.VariantSitAndGo
	table.SNGState = &state
	table.StartingStack = 1500
	return table
}

// CreateTestSeat creates an open seat
func CreateTestSeat(tableID, userID int64, seatIndex int, stack int64) *entities.Seat {
	return &entities.Seat{
		TableID:   tableID,
		UserID:    userID,
		SeatIndex: seatIndex,
		BuyIn:     stack,
		Stack:     stack,
	}
}

// CreateTestInvite creates an invite in the given status expiring after ttl
func CreateTestInvite(gameID, creatorID int64, token string, status entities.InviteStatus, ttl time.Duration) *entities.GroupGameInvite {
	return &entities.GroupGameInvite{
		GameID:    gameID,
		CreatorID: creatorID,
		Status:    status,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
}
