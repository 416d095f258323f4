package services

import (
	"context"
	"errors"
	"fmt"

	"cardroom/config"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// maxEntriesPerPass bounds how many entries of one bucket a single pass plans
const maxEntriesPerPass = 500

type waitlistService struct {
	waitlistRepo interfaces.WaitlistRepository
	tableRepo    interfaces.TableRepository
	seatRepo     interfaces.SeatRepository
	config       *config.Config
}

// NewWaitlistService creates a new waitlist service
func NewWaitlistService(
	waitlistRepo interfaces.WaitlistRepository,
	tableRepo interfaces.TableRepository,
	seatRepo interfaces.SeatRepository,
) interfaces.WaitlistService {
	return &waitlistService{
		waitlistRepo: waitlistRepo,
		tableRepo:    tableRepo,
		seatRepo:     seatRepo,
		config:       config.Get(),
	}
}

// Join queues the user in a bucket. A user already waiting in the bucket gets
// the existing entry back.
func (s *waitlistService) Join(ctx context.Context, userID int64, variant entities.Variant, currency entities.Currency, buyIn int64) (*entities.WaitlistEntry, error) {
	if _, err := entities.ParseVariant(string(variant)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid variant", err)
	}
	if !currency.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown currency %q", currency)
	}
	if buyIn <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "buy-in must be positive, got %d", buyIn)
	}

	existing, err := s.waitlistRepo.GetWaitingByUser(ctx, userID, variant, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting entry: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	entry := &entities.WaitlistEntry{
		UserID:   userID,
		Variant:  variant,
		Currency: currency,
		BuyIn:    buyIn,
		Status:   entities.WaitlistStatusWaiting,
	}
	if err := s.waitlistRepo.Create(ctx, entry); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("failed to create waitlist entry: %w", err)
		}
		// A concurrent join won; hand back its entry
		existing, err := s.waitlistRepo.GetWaitingByUser(ctx, userID, variant, currency)
		if err != nil {
			return nil, fmt.Errorf("failed to get waiting entry: %w", err)
		}
		if existing == nil {
			return nil, apperrors.Newf(apperrors.CodeConflict, "waitlist entry for user %d changed concurrently", userID)
		}
		return existing, nil
	}

	log.WithFields(log.Fields{
		"entryID":  entry.ID,
		"userID":   userID,
		"variant":  variant,
		"currency": currency,
		"buyIn":    buyIn,
	}).Info("User joined waitlist")

	return entry, nil
}

// Cancel withdraws a waiting entry owned by the user
func (s *waitlistService) Cancel(ctx context.Context, entryID, userID int64) (*entities.WaitlistEntry, error) {
	entry, err := s.waitlistRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	if entry == nil || entry.UserID != userID {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "waitlist entry %d not found", entryID)
	}

	cancelled, err := s.waitlistRepo.Cancel(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel waitlist entry: %w", err)
	}
	if !cancelled {
		current, err := s.waitlistRepo.GetByID(ctx, entryID)
		if err != nil {
			return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
		}
		if current != nil && current.Status == entities.WaitlistStatusCancelled {
			return current, apperrors.Newf(apperrors.CodeAlreadyCancelled, "waitlist entry %d is already cancelled", entryID)
		}
		return current, apperrors.Newf(apperrors.CodeInvalidTransition, "waitlist entry %d was already routed", entryID)
	}

	entry.Status = entities.WaitlistStatusCancelled
	log.WithFields(log.Fields{
		"entryID": entryID,
		"userID":  userID,
	}).Info("User left waitlist")
	return entry, nil
}

// MarkEntered fixes the entry's routed table. Fails with
// DuplicateTableCreation if the entry was already routed elsewhere.
func (s *waitlistService) MarkEntered(ctx context.Context, entryID, tableID int64) error {
	marked, err := s.waitlistRepo.MarkEntered(ctx, entryID, tableID)
	if err != nil {
		return fmt.Errorf("failed to mark waitlist entry entered: %w", err)
	}
	if !marked {
		return apperrors.Newf(apperrors.CodeDuplicateTableCreation, "waitlist entry %d is no longer waiting", entryID)
	}
	return nil
}

// WaitingBuckets returns the buckets holding waiting entries
func (s *waitlistService) WaitingBuckets(ctx context.Context) ([]entities.WaitlistBucket, error) {
	buckets, err := s.waitlistRepo.GetWaitingBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting buckets: %w", err)
	}
	return buckets, nil
}

// PlanBucket loads a bucket's waiting entries and open tables and plans the
// placements
func (s *waitlistService) PlanBucket(ctx context.Context, bucket entities.WaitlistBucket) (*interfaces.BucketPlan, error) {
	entries, err := s.waitlistRepo.GetWaitingByBucket(ctx, bucket.Variant, bucket.Currency, maxEntriesPerPass)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting entries: %w", err)
	}
	if len(entries) == 0 {
		return &interfaces.BucketPlan{Bucket: bucket}, nil
	}

	tables, err := s.tableRepo.GetRoutable(ctx, bucket.Variant, bucket.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to get routable tables: %w", err)
	}

	candidates := make([]interfaces.TableCandidate, 0, len(tables))
	for _, table := range tables {
		if !table.IsRoutable() {
			continue
		}
		seats, err := s.seatRepo.GetOccupiedByTable(ctx, table.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get occupied seats for table %d: %w", table.ID, err)
		}
		free := table.MaxSeats - len(seats)
		if free <= 0 {
			continue
		}
		seated := make(map[int64]bool, len(seats))
		for _, seat := range seats {
			seated[seat.UserID] = true
		}
		candidates = append(candidates, interfaces.TableCandidate{Table: table, Free: free, Seated: seated})
	}

	maxSeats := s.config.DefaultMaxSeats
	if bucket.Variant.IsTournament() {
		maxSeats = s.config.SNGMaxEntrants
	}
	return planBucket(bucket, entries, candidates, maxSeats), nil
}

// planBucket assigns entries, oldest first, to the first matching table with
// a free seat that the user does not already sit at. The rest are grouped into
// new tables of at most maxSeats. Tournament entries only match tables and
// batches with the same entry fee.
func planBucket(bucket entities.WaitlistBucket, entries []*entities.WaitlistEntry, candidates []interfaces.TableCandidate, maxSeats int) *interfaces.BucketPlan {
	plan := &interfaces.BucketPlan{Bucket: bucket}
	free := make([]int, len(candidates))
	for i, candidate := range candidates {
		free[i] = candidate.Free
	}

	var leftover []*entities.WaitlistEntry
	for _, entry := range entries {
		var order []int64
		picked := -1
		for i, candidate := range candidates {
			if free[i] <= 0 || candidate.Seated[entry.UserID] || !entryFits(entry, candidate.Table) {
				continue
			}
			if picked < 0 {
				picked = i
			}
			order = append(order, candidate.Table.ID)
		}
		if picked < 0 {
			leftover = append(leftover, entry)
			continue
		}
		free[picked]--
		plan.Assignments = append(plan.Assignments, interfaces.Assignment{Entry: entry, Candidates: order})
	}

	// Group by entry fee for tournaments, keeping first-seen order
	var groupOrder []int64
	groups := make(map[int64][]*entities.WaitlistEntry)
	for _, entry := range leftover {
		key := int64(0)
		if bucket.Variant.IsTournament() {
			key = entry.BuyIn
		}
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], entry)
	}

	for _, key := range groupOrder {
		group := groups[key]
		for start := 0; start < len(group); start += maxSeats {
			end := start + maxSeats
			if end > len(group) {
				end = len(group)
			}
			batch := group[start:end]
			plan.NewTables = append(plan.NewTables, interfaces.NewTableBatch{
				Variant:  bucket.Variant,
				Currency: bucket.Currency,
				BuyIn:    batch[0].BuyIn,
				Entries:  batch,
			})
		}
	}

	return plan
}

func entryFits(entry *entities.WaitlistEntry, table *entities.Table) bool {
	if !entry.Matches(table) {
		return false
	}
	if table.IsTournament() {
		return entry.BuyIn == table.BuyIn
	}
	return true
}
