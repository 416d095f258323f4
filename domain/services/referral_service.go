package services

import (
	"context"
	"fmt"

	"cardroom/config"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type referralService struct {
	userRepo     interfaces.UserRepository
	referralRepo interfaces.ReferralRepository
	ledger       interfaces.LedgerService
	config       *config.Config
}

// NewReferralService creates a new referral service
func NewReferralService(
	userRepo interfaces.UserRepository,
	referralRepo interfaces.ReferralRepository,
	ledger interfaces.LedgerService,
) interfaces.ReferralService {
	return &referralService{
		userRepo:     userRepo,
		referralRepo: referralRepo,
		ledger:       ledger,
		config:       config.Get(),
	}
}

// ApplyReferral links a new user to the owner of the referral code and
// credits the referrer while the referrer's use limit allows it
func (s *referralService) ApplyReferral(ctx context.Context, newUserID int64, referralCode string) (*entities.Transaction, error) {
	referrer, err := s.userRepo.GetByReferralCode(ctx, normalizeCode(referralCode))
	if err != nil {
		return nil, fmt.Errorf("failed to get referrer: %w", err)
	}
	if referrer == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "referral code %q not found", referralCode)
	}
	if referrer.ID == newUserID {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "users cannot refer themselves")
	}

	linked, err := s.userRepo.SetReferrer(ctx, newUserID, referrer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to set referrer: %w", err)
	}
	if !linked {
		return nil, apperrors.Newf(apperrors.CodeAlreadyConsumed, "user %d already has a referrer", newUserID)
	}

	if _, err := s.referralRepo.GetOrCreateStats(ctx, referrer.ID, s.config.ReferralMaxUses); err != nil {
		return nil, fmt.Errorf("failed to get referral stats: %w", err)
	}
	incremented, err := s.referralRepo.IncrementUses(ctx, referrer.ID, s.config.ReferralReward)
	if err != nil {
		return nil, fmt.Errorf("failed to increment referral uses: %w", err)
	}
	if !incremented {
		return nil, apperrors.Newf(apperrors.CodeTokenExhausted, "referrer %d reached the referral limit", referrer.ID)
	}

	transaction, err := s.ledger.Credit(ctx, interfaces.LedgerRequest{
		UserID:         referrer.ID,
		Currency:       entities.Currency(s.config.ReferralCurrency),
		Amount:         s.config.ReferralReward,
		Kind:           entities.TransactionKindReferralCredit,
		IdempotencyKey: fmt.Sprintf("referral:%d", newUserID),
		Metadata:       map[string]any{"referred_user_id": newUserID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit referrer: %w", err)
	}

	log.WithFields(log.Fields{
		"referrerID": referrer.ID,
		"newUserID":  newUserID,
		"reward":     s.config.ReferralReward,
	}).Info("Applied referral")
	return transaction, nil
}
