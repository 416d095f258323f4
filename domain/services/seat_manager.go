package services

import (
	"context"
	"fmt"
	"time"

	"cardroom/config"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/events"

	log "github.com/sirupsen/logrus"
)

type seatManager struct {
	seatRepo       interfaces.SeatRepository
	tableRepo      interfaces.TableRepository
	ledger         interfaces.LedgerService
	eventPublisher interfaces.EventPublisher
	config         *config.Config
}

// NewSeatManager creates a new seat manager. The table passed to each method
// must already be locked by the caller's unit of work.
func NewSeatManager(
	seatRepo interfaces.SeatRepository,
	tableRepo interfaces.TableRepository,
	ledger interfaces.LedgerService,
	eventPublisher interfaces.EventPublisher,
) interfaces.SeatManager {
	return &seatManager{
		seatRepo:       seatRepo,
		tableRepo:      tableRepo,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		config:         config.Get(),
	}
}

// TakeSeat debits the buy-in and seats the user at the lowest free index.
// Tournament entrants pay the table's entry fee and receive the starting stack.
func (m *seatManager) TakeSeat(ctx context.Context, table *entities.Table, userID int64, buyIn int64) (*entities.Seat, error) {
	if !table.AcceptsSeats() {
		return nil, apperrors.Newf(apperrors.CodeSeatUnavailable, "table %d is not accepting players", table.ID)
	}

	var stack int64
	if table.IsTournament() {
		if buyIn != 0 && buyIn != table.BuyIn {
			return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "tournament entry fee is %d, got %d", table.BuyIn, buyIn)
		}
		buyIn = table.BuyIn
		stack = table.StartingStack
	} else {
		if buyIn == 0 {
			buyIn = table.BuyIn
		}
		if buyIn <= 0 {
			return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "buy-in must be positive, got %d", buyIn)
		}
		stack = buyIn
	}

	occupied, err := m.seatRepo.GetOccupiedByTable(ctx, table.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupied seats: %w", err)
	}
	for _, seat := range occupied {
		if seat.UserID == userID {
			return nil, apperrors.Newf(apperrors.CodeSeatUnavailable, "user %d is already seated at table %d", userID, table.ID)
		}
	}
	index := entities.LowestFreeSeatIndex(occupied, table.MaxSeats)
	if index < 0 {
		return nil, apperrors.Newf(apperrors.CodeSeatUnavailable, "table %d is full", table.ID)
	}

	tableID := table.ID
	if _, err := m.ledger.Debit(ctx, interfaces.LedgerRequest{
		UserID:   userID,
		Currency: table.Currency,
		Amount:   buyIn,
		Kind:     entities.TransactionKindBuyIn,
		TableID:  &tableID,
		Metadata: map[string]any{"seat_index": index},
	}); err != nil {
		return nil, fmt.Errorf("failed to debit buy-in: %w", err)
	}

	now := time.Now().UTC()
	seat := &entities.Seat{
		TableID:   table.ID,
		UserID:    userID,
		SeatIndex: index,
		BuyIn:     buyIn,
		Stack:     stack,
		JoinedAt:  now,
	}
	if err := m.seatRepo.Create(ctx, seat); err != nil {
		return nil, fmt.Errorf("failed to create seat: %w", err)
	}

	if err := m.touch(ctx, table, now); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"tableID":   table.ID,
		"userID":    userID,
		"seatIndex": index,
		"buyIn":     buyIn,
	}).Info("Player took seat")
	m.publish(seat, events.SeatChangeTaken)

	return seat, nil
}

// LeaveSeat releases the seat and credits the departing chips. Cash tables pay
// out the stack when cashOut is set, tournaments that have not started refund
// the entry fee and started tournaments credit nothing.
func (m *seatManager) LeaveSeat(ctx context.Context, table *entities.Table, seatID int64, cashOut bool) (*entities.Seat, error) {
	seat, err := m.openSeat(ctx, table, seatID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	released, err := m.seatRepo.Release(ctx, seatID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to release seat: %w", err)
	}
	if !released {
		return nil, apperrors.Newf(apperrors.CodeSeatNotOccupied, "seat %d was already released", seatID)
	}
	seat.LeftAt = &now

	tableID := table.ID
	switch {
	case table.IsTournament() && !table.CurrentSNGState().HasStarted():
		if seat.BuyIn > 0 {
			if _, err := m.ledger.Credit(ctx, interfaces.LedgerRequest{
				UserID:         seat.UserID,
				Currency:       table.Currency,
				Amount:         seat.BuyIn,
				Kind:           entities.TransactionKindRefund,
				TableID:        &tableID,
				IdempotencyKey: fmt.Sprintf("refund:%d", seat.ID),
			}); err != nil {
				return nil, fmt.Errorf("failed to refund entry fee: %w", err)
			}
		}
	case table.IsTournament():
		// Started tournaments settle through the prize pool
	case cashOut && seat.Stack > 0:
		if _, err := m.ledger.Credit(ctx, interfaces.LedgerRequest{
			UserID:         seat.UserID,
			Currency:       table.Currency,
			Amount:         seat.Stack,
			Kind:           entities.TransactionKindCashOut,
			TableID:        &tableID,
			IdempotencyKey: fmt.Sprintf("cashout:%d", seat.ID),
		}); err != nil {
			return nil, fmt.Errorf("failed to cash out stack: %w", err)
		}
	}

	if err := m.touch(ctx, table, now); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"tableID": table.ID,
		"userID":  seat.UserID,
		"seatID":  seat.ID,
		"stack":   seat.Stack,
		"cashOut": cashOut,
	}).Info("Player left seat")
	m.publish(seat, events.SeatChangeLeft)

	return seat, nil
}

// MarkSittingOutNextHand defers a sit-out to the next hand boundary
func (m *seatManager) MarkSittingOutNextHand(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error) {
	seat, err := m.openSeat(ctx, table, seatID)
	if err != nil {
		return nil, err
	}
	if seat.SitOutNextHand || seat.SittingOut {
		return seat, nil
	}

	seat.SitOutNextHand = true
	if err := m.seatRepo.Update(ctx, seat); err != nil {
		return nil, fmt.Errorf("failed to update seat: %w", err)
	}
	if err := m.touch(ctx, table, time.Now().UTC()); err != nil {
		return nil, err
	}
	m.publish(seat, events.SeatChangeSitOutNextHand)
	return seat, nil
}

// ApplyDeferredSitOuts moves every deferred sit-out into effect
func (m *seatManager) ApplyDeferredSitOuts(ctx context.Context, table *entities.Table) ([]*entities.Seat, error) {
	seats, err := m.seatRepo.GetOccupiedByTable(ctx, table.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupied seats: %w", err)
	}

	var changed []*entities.Seat
	for _, seat := range seats {
		if !seat.SitOutNextHand {
			continue
		}
		seat.SitOutNextHand = false
		seat.SittingOut = true
		if err := m.seatRepo.Update(ctx, seat); err != nil {
			return nil, fmt.Errorf("failed to update seat %d: %w", seat.ID, err)
		}
		changed = append(changed, seat)
	}
	if len(changed) == 0 {
		return nil, nil
	}

	if err := m.touch(ctx, table, time.Now().UTC()); err != nil {
		return nil, err
	}
	for _, seat := range changed {
		m.publish(seat, events.SeatChangeSittingOut)
	}
	return changed, nil
}

// ReturnFromSitOut clears both sit-out flags
func (m *seatManager) ReturnFromSitOut(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error) {
	seat, err := m.openSeat(ctx, table, seatID)
	if err != nil {
		return nil, err
	}
	if !seat.SitOutNextHand && !seat.SittingOut {
		return seat, nil
	}

	seat.SitOutNextHand = false
	seat.SittingOut = false
	if err := m.seatRepo.Update(ctx, seat); err != nil {
		return nil, fmt.Errorf("failed to update seat: %w", err)
	}
	if err := m.touch(ctx, table, time.Now().UTC()); err != nil {
		return nil, err
	}
	m.publish(seat, events.SeatChangeReturned)
	return seat, nil
}

// MarkLeavingAfterHand flags a seat whose player asked to leave during a hand
// they were dealt into. The hand settles with the seat still occupied.
func (m *seatManager) MarkLeavingAfterHand(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error) {
	seat, err := m.openSeat(ctx, table, seatID)
	if err != nil {
		return nil, err
	}
	if seat.LeaveAfterHand {
		return seat, nil
	}

	seat.LeaveAfterHand = true
	if err := m.seatRepo.Update(ctx, seat); err != nil {
		return nil, fmt.Errorf("failed to update seat: %w", err)
	}
	if err := m.touch(ctx, table, time.Now().UTC()); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"tableID": table.ID,
		"userID":  seat.UserID,
		"seatID":  seat.ID,
	}).Info("Player leaves after the running hand")
	m.publish(seat, events.SeatChangeLeaveAfterHand)
	return seat, nil
}

// AddTimeoutStrike records an enforcement against the seat
func (m *seatManager) AddTimeoutStrike(ctx context.Context, seatID int64) (*entities.Seat, error) {
	seat, err := m.seatRepo.GetByID(ctx, seatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	if seat == nil || !seat.IsOccupied() {
		return nil, apperrors.Newf(apperrors.CodeSeatNotOccupied, "seat %d is not occupied", seatID)
	}

	seat.TimeoutStrikes++
	if err := m.seatRepo.Update(ctx, seat); err != nil {
		return nil, fmt.Errorf("failed to update seat: %w", err)
	}
	return seat, nil
}

// AdjustStacks applies signed per-seat deltas from a settled hand
func (m *seatManager) AdjustStacks(ctx context.Context, table *entities.Table, deltas map[int64]int64) error {
	seats, err := m.seatRepo.GetOccupiedByTable(ctx, table.ID)
	if err != nil {
		return fmt.Errorf("failed to get occupied seats: %w", err)
	}
	byID := make(map[int64]*entities.Seat, len(seats))
	for _, seat := range seats {
		byID[seat.ID] = seat
	}

	// Validate everything before writing anything
	for seatID, delta := range deltas {
		seat, ok := byID[seatID]
		if !ok {
			return apperrors.Newf(apperrors.CodeSeatNotOccupied, "seat %d is not occupied at table %d", seatID, table.ID)
		}
		if seat.Stack+delta < 0 {
			return apperrors.Newf(apperrors.CodeInvalidArgument, "seat %d stack %d cannot absorb %d", seatID, seat.Stack, delta)
		}
	}

	for _, seat := range seats {
		delta := deltas[seat.ID]
		if delta == 0 {
			continue
		}
		seat.Stack += delta
		if err := m.seatRepo.Update(ctx, seat); err != nil {
			return fmt.Errorf("failed to update seat %d: %w", seat.ID, err)
		}
	}

	return m.touch(ctx, table, time.Now().UTC())
}

// OccupiedSeats returns the open seats of a table ordered by seat index
func (m *seatManager) OccupiedSeats(ctx context.Context, tableID int64) ([]*entities.Seat, error) {
	seats, err := m.seatRepo.GetOccupiedByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupied seats: %w", err)
	}
	return seats, nil
}

// openSeat loads a seat and checks it is still open at the given table
func (m *seatManager) openSeat(ctx context.Context, table *entities.Table, seatID int64) (*entities.Seat, error) {
	seat, err := m.seatRepo.GetByID(ctx, seatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	if seat == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "seat %d not found", seatID)
	}
	if seat.TableID != table.ID {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "seat %d does not belong to table %d", seatID, table.ID)
	}
	if !seat.IsOccupied() {
		return nil, apperrors.Newf(apperrors.CodeSeatNotOccupied, "seat %d was already released", seatID)
	}
	return seat, nil
}

func (m *seatManager) touch(ctx context.Context, table *entities.Table, now time.Time) error {
	table.Touch(now, m.config.InactivityTTL)
	if err := m.tableRepo.Update(ctx, table); err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	return nil
}

func (m *seatManager) publish(seat *entities.Seat, change events.SeatChangeKind) {
	if err := m.eventPublisher.Publish(events.SeatChangeEvent{
		TableID:   seat.TableID,
		SeatID:    seat.ID,
		UserID:    seat.UserID,
		SeatIndex: seat.SeatIndex,
		Change:    change,
		Stack:     seat.Stack,
	}); err != nil {
		log.WithError(err).Error("Failed to publish seat change event")
	}
}
