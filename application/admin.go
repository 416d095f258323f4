package application

import (
	"context"

	"cardroom/domain/entities"

	log "github.com/sirupsen/logrus"
)

// AdjustBalance applies a signed admin adjustment in its own unit of work.
// The idempotency key makes a repeated backfill a no-op.
func AdjustBalance(ctx context.Context, uowFactory UnitOfWorkFactory, build ServiceBuilder, userID int64, currency entities.Currency, delta int64, idempotencyKey, reason string) (*entities.Transaction, error) {
	var tx *entities.Transaction
	err := runInUnitOfWork(ctx, uowFactory, build, func(uow UnitOfWork, svc *Services) error {
		var err error
		tx, err = svc.Ledger.Adjust(ctx, userID, currency, delta, idempotencyKey, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":         userID,
		"currency":        currency,
		"delta":           delta,
		"idempotency_key": idempotencyKey,
		"balance_after":   tx.BalanceAfter,
	}).Info("Admin balance adjustment applied")
	return tx, nil
}
