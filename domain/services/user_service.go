package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cardroom/config"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/domain/utils"
	"cardroom/events"

	log "github.com/sirupsen/logrus"
)

// referralCodeAttempts bounds regeneration after a referral code collision
const referralCodeAttempts = 5

type userService struct {
	userRepo       interfaces.UserRepository
	walletRepo     interfaces.WalletRepository
	ledger         interfaces.LedgerService
	eventPublisher interfaces.EventPublisher
	config         *config.Config
}

// NewUserService creates a new user service
func NewUserService(
	userRepo interfaces.UserRepository,
	walletRepo interfaces.WalletRepository,
	ledger interfaces.LedgerService,
	eventPublisher interfaces.EventPublisher,
) interfaces.UserService {
	return &userService{
		userRepo:       userRepo,
		walletRepo:     walletRepo,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		config:         config.Get(),
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with both
// wallets and the initial play grant
func (s *userService) GetOrCreateUser(ctx context.Context, externalID, username string) (*entities.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "external id is required")
	}

	user, err := s.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil {
		return s.withBalances(ctx, user)
	}

	user, created, err := s.createUser(ctx, externalID, username)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a registration race; the winner granted the initial chips
		return s.withBalances(ctx, user)
	}

	for _, currency := range entities.AllCurrencies {
		if err := s.walletRepo.Ensure(ctx, user.ID, currency); err != nil {
			return nil, fmt.Errorf("failed to create %s wallet: %w", currency, err)
		}
	}

	if s.config.InitialPlayGrant > 0 {
		_, err := s.ledger.Credit(ctx, interfaces.LedgerRequest{
			UserID:         user.ID,
			Currency:       entities.CurrencyPlay,
			Amount:         s.config.InitialPlayGrant,
			Kind:           entities.TransactionKindInitialGrant,
			IdempotencyKey: fmt.Sprintf("initial:%d", user.ID),
			Metadata:       map[string]any{"username": username},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to grant initial play chips: %w", err)
		}
		user.PlayBalance = s.config.InitialPlayGrant
	}

	log.WithFields(log.Fields{
		"userID":     user.ID,
		"externalID": externalID,
		"username":   username,
	}).Info("Created user")

	if err := s.eventPublisher.Publish(events.UserCreatedEvent{
		UserID:     user.ID,
		ExternalID: externalID,
		Username:   username,
	}); err != nil {
		log.WithError(err).Error("Failed to publish user created event")
	}

	return user, nil
}

// GetUser returns a user with balances populated
func (s *userService) GetUser(ctx context.Context, userID int64) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "user %d not found", userID)
	}
	return s.withBalances(ctx, user)
}

// SetPreferredCurrency changes the user's default currency
func (s *userService) SetPreferredCurrency(ctx context.Context, userID int64, currency entities.Currency) error {
	if !currency.IsValid() {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown currency %q", currency)
	}
	if err := s.userRepo.UpdatePreferredCurrency(ctx, userID, currency); err != nil {
		return fmt.Errorf("failed to update preferred currency: %w", err)
	}
	return nil
}

// createUser inserts the user, regenerating the referral code on collision.
// Returns created=false with the existing user if the external id was taken concurrently.
func (s *userService) createUser(ctx context.Context, externalID, username string) (*entities.User, bool, error) {
	for attempt := 1; attempt <= referralCodeAttempts; attempt++ {
		code, err := utils.GenerateToken(s.config.ReferralCodeLength)
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate referral code: %w", err)
		}

		user := &entities.User{
			ExternalID:        externalID,
			Username:          username,
			PreferredCurrency: entities.CurrencyPlay,
			ReferralCode:      code,
		}
		err = s.userRepo.Create(ctx, user)
		if err == nil {
			return user, true, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, false, fmt.Errorf("failed to create user: %w", err)
		}

		existing, err := s.userRepo.GetByExternalID(ctx, externalID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get user: %w", err)
		}
		if existing != nil {
			return existing, false, nil
		}
		log.WithFields(log.Fields{
			"externalID": externalID,
			"attempt":    attempt,
		}).Warn("Referral code collision, regenerating")
	}
	return nil, false, apperrors.Newf(apperrors.CodeConflict, "could not allocate a referral code for %s", externalID)
}

func (s *userService) withBalances(ctx context.Context, user *entities.User) (*entities.User, error) {
	wallets, err := s.walletRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallets: %w", err)
	}
	for _, wallet := range wallets {
		switch wallet.Currency {
		case entities.CurrencyReal:
			user.RealBalance = wallet.Balance
		case entities.CurrencyPlay:
			user.PlayBalance = wallet.Balance
		}
	}
	return user, nil
}
