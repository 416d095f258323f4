package repository

import (
	"context"
	"fmt"

	"cardroom/domain/interfaces"
)

type bucketClaimRepository struct {
	q queryable
}

// newBucketClaimRepositoryWithTx creates a bucket claim repository. Claims are
// transaction-scoped advisory locks, so there is no pool variant.
func newBucketClaimRepositoryWithTx(tx queryable) interfaces.BucketClaimRepository {
	return &bucketClaimRepository{q: tx}
}

// TryClaim takes the advisory lock for the bucket without waiting. PostgreSQL
// releases it on commit or rollback.
func (r *bucketClaimRepository) TryClaim(ctx context.Context, bucketKey string) (bool, error) {
	var claimed bool
	err := r.q.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtextextended($1, 0))`, bucketKey).Scan(&claimed)
	if err != nil {
		return false, fmt.Errorf("failed to claim bucket %s: %w", bucketKey, err)
	}
	return claimed, nil
}
