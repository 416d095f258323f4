package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/domain/utils"

	log "github.com/sirupsen/logrus"
)

type promoService struct {
	promoRepo interfaces.PromoRepository
	ledger    interfaces.LedgerService
}

// NewPromoService creates a new promo code service
func NewPromoService(promoRepo interfaces.PromoRepository, ledger interfaces.LedgerService) interfaces.PromoService {
	return &promoService{
		promoRepo: promoRepo,
		ledger:    ledger,
	}
}

// CreatePromo registers a bounded-use promo code. Codes are stored uppercase.
func (s *promoService) CreatePromo(ctx context.Context, code string, currency entities.Currency, amount int64, maxUses int, expiresAt *time.Time) (*entities.PromoCode, error) {
	code = normalizeCode(code)
	if !utils.IsValidToken(code) {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "promo code must be %d-%d characters of A-Z, 0-9, _ or -", utils.MinTokenLength, utils.MaxTokenLength)
	}
	if !currency.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown currency %q", currency)
	}
	if amount <= 0 || maxUses <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "amount and max uses must be positive")
	}

	promo := &entities.PromoCode{
		Code:      code,
		Currency:  currency,
		Amount:    amount,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
	}
	if err := s.promoRepo.Create(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}

	log.WithFields(log.Fields{
		"code":     code,
		"currency": currency,
		"amount":   amount,
		"maxUses":  maxUses,
	}).Info("Created promo code")
	return promo, nil
}

// Redeem consumes one use of the code and credits the user. The use counter
// and the credit commit together.
func (s *promoService) Redeem(ctx context.Context, code string, userID int64) (*entities.Transaction, error) {
	code = normalizeCode(code)
	promo, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	if promo == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "promo code %s not found", code)
	}
	if promo.IsExpired(time.Now().UTC()) {
		return nil, apperrors.Newf(apperrors.CodeTokenExpired, "promo code %s has expired", code)
	}

	redeemed, err := s.promoRepo.HasRedeemed(ctx, promo.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check redemption: %w", err)
	}
	if redeemed {
		return nil, apperrors.Newf(apperrors.CodeAlreadyConsumed, "promo code %s was already redeemed", code)
	}

	incremented, err := s.promoRepo.IncrementUses(ctx, promo.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to increment promo uses: %w", err)
	}
	if !incremented {
		return nil, apperrors.Newf(apperrors.CodeTokenExhausted, "promo code %s has no uses left", code)
	}

	transaction, err := s.ledger.Credit(ctx, interfaces.LedgerRequest{
		UserID:         userID,
		Currency:       promo.Currency,
		Amount:         promo.Amount,
		Kind:           entities.TransactionKindPromoCredit,
		IdempotencyKey: fmt.Sprintf("promo:%s:%d", code, userID),
		Metadata:       map[string]any{"code": code},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit promo: %w", err)
	}

	if err := s.promoRepo.CreateRedemption(ctx, &entities.PromoRedemption{
		PromoCodeID:   promo.ID,
		UserID:        userID,
		TransactionID: transaction.ID,
	}); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Newf(apperrors.CodeAlreadyConsumed, "promo code %s was already redeemed", code)
		}
		return nil, fmt.Errorf("failed to record redemption: %w", err)
	}

	log.WithFields(log.Fields{
		"code":   code,
		"userID": userID,
		"amount": promo.Amount,
	}).Info("Redeemed promo code")
	return transaction, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
