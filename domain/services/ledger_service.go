package services

import (
	"context"
	"fmt"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/events"

	log "github.com/sirupsen/logrus"
)

// ledgerService is the single entry point for balance mutations
type ledgerService struct {
	walletRepo      interfaces.WalletRepository
	transactionRepo interfaces.TransactionRepository
	eventPublisher  interfaces.EventPublisher
}

// NewLedgerService creates a new ledger service. The repositories must share
// the caller's database transaction.
func NewLedgerService(
	walletRepo interfaces.WalletRepository,
	transactionRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.LedgerService {
	return &ledgerService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		eventPublisher:  eventPublisher,
	}
}

// Credit adds the requested amount to the wallet
func (s *ledgerService) Credit(ctx context.Context, req interfaces.LedgerRequest) (*entities.Transaction, error) {
	if err := validateLedgerRequest(req); err != nil {
		return nil, err
	}
	return s.apply(ctx, req, req.Amount)
}

// Debit removes the requested amount from the wallet
func (s *ledgerService) Debit(ctx context.Context, req interfaces.LedgerRequest) (*entities.Transaction, error) {
	if err := validateLedgerRequest(req); err != nil {
		return nil, err
	}
	return s.apply(ctx, req, -req.Amount)
}

// Adjust routes a signed operator correction through Credit or Debit
func (s *ledgerService) Adjust(ctx context.Context, userID int64, currency entities.Currency, delta int64, idempotencyKey, reason string) (*entities.Transaction, error) {
	if delta == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "adjustment cannot be zero")
	}
	if idempotencyKey == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "adjustments require an idempotency key")
	}

	req := interfaces.LedgerRequest{
		UserID:         userID,
		Currency:       currency,
		Kind:           entities.TransactionKindAdminAdjustment,
		IdempotencyKey: idempotencyKey,
		Metadata:       map[string]any{"reason": reason},
	}
	if delta > 0 {
		req.Amount = delta
		return s.Credit(ctx, req)
	}
	req.Amount = -delta
	return s.Debit(ctx, req)
}

// Balance returns the cached wallet balance, zero for a wallet never used
func (s *ledgerService) Balance(ctx context.Context, userID int64, currency entities.Currency) (int64, error) {
	wallet, err := s.walletRepo.Get(ctx, userID, currency)
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet: %w", err)
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}

// History returns the most recent transactions of a wallet
func (s *ledgerService) History(ctx context.Context, userID int64, currency entities.Currency, limit int) ([]*entities.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	transactions, err := s.transactionRepo.GetByUser(ctx, userID, currency, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return transactions, nil
}

// Reconcile compares the cached balance against the sum of the ledger
func (s *ledgerService) Reconcile(ctx context.Context, userID int64, currency entities.Currency) (*interfaces.ReconcileResult, error) {
	balance, err := s.Balance(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	sum, err := s.transactionRepo.SumByUser(ctx, userID, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	result := &interfaces.ReconcileResult{
		UserID:        userID,
		Currency:      currency,
		WalletBalance: balance,
		LedgerSum:     sum,
		Consistent:    balance == sum,
	}
	if !result.Consistent {
		log.WithFields(log.Fields{
			"userID":        userID,
			"currency":      currency,
			"walletBalance": balance,
			"ledgerSum":     sum,
		}).Error("Wallet balance disagrees with ledger")
	}
	return result, nil
}

// apply locks the wallet, replays or appends the transaction and updates the
// cached balance
func (s *ledgerService) apply(ctx context.Context, req interfaces.LedgerRequest, signedAmount int64) (*entities.Transaction, error) {
	if err := s.walletRepo.Ensure(ctx, req.UserID, req.Currency); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	wallet, err := s.walletRepo.GetForUpdate(ctx, req.UserID, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet for user %d in %s disappeared", req.UserID, req.Currency)
	}

	// Checked under the wallet lock so concurrent replays serialize
	if req.IdempotencyKey != "" {
		existing, err := s.transactionRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			log.WithFields(log.Fields{
				"userID":         req.UserID,
				"idempotencyKey": req.IdempotencyKey,
				"transactionID":  existing.ID,
			}).Debug("Replayed ledger request")
			return existing, nil
		}
	}

	newBalance := wallet.Balance + signedAmount
	if newBalance < 0 {
		return nil, apperrors.Newf(apperrors.CodeInsufficientFunds,
			"balance %d %s is less than %d", wallet.Balance, req.Currency, -signedAmount)
	}

	transaction := &entities.Transaction{
		UserID:       req.UserID,
		Currency:     req.Currency,
		Amount:       signedAmount,
		BalanceAfter: newBalance,
		Kind:         req.Kind,
		TableID:      req.TableID,
		HandID:       req.HandID,
		Metadata:     req.Metadata,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		transaction.IdempotencyKey = &key
	}
	if err := transaction.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid transaction", err)
	}

	if err := s.walletRepo.UpdateBalance(ctx, req.UserID, req.Currency, newBalance); err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}
	if err := s.transactionRepo.Append(ctx, transaction); err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:        req.UserID,
		Currency:      req.Currency,
		OldBalance:    wallet.Balance,
		NewBalance:    newBalance,
		ChangeAmount:  signedAmount,
		Kind:          req.Kind,
		TransactionID: transaction.ID,
		TableID:       req.TableID,
	}
	log.WithFields(log.Fields{
		"userID":       event.UserID,
		"currency":     event.Currency,
		"oldBalance":   event.OldBalance,
		"newBalance":   event.NewBalance,
		"kind":         event.Kind,
		"changeAmount": event.ChangeAmount,
	}).Debug("Publishing BalanceChangeEvent")
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	return transaction, nil
}

func validateLedgerRequest(req interfaces.LedgerRequest) error {
	if req.Amount <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "amount must be positive, got %d", req.Amount)
	}
	if !req.Currency.IsValid() {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown currency %q", req.Currency)
	}
	if !req.Kind.IsValid() {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown transaction kind %q", req.Kind)
	}
	if req.UserID == 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	return nil
}
