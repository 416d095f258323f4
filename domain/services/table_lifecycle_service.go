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

const (
	minTableSeats = 2
	maxTableSeats = 10
)

type tableLifecycleService struct {
	tableRepo      interfaces.TableRepository
	handRepo       interfaces.HandRepository
	seatManager    interfaces.SeatManager
	ledger         interfaces.LedgerService
	rules          interfaces.RulesEngine
	eventPublisher interfaces.EventPublisher
	config         *config.Config
}

// NewTableLifecycleService creates the table state machine. Every method that
// takes a table id locks the table row for the rest of the unit of work.
func NewTableLifecycleService(
	tableRepo interfaces.TableRepository,
	handRepo interfaces.HandRepository,
	seatManager interfaces.SeatManager,
	ledger interfaces.LedgerService,
	rules interfaces.RulesEngine,
	eventPublisher interfaces.EventPublisher,
) interfaces.TableLifecycleService {
	return &tableLifecycleService{
		tableRepo:      tableRepo,
		handRepo:       handRepo,
		seatManager:    seatManager,
		ledger:         ledger,
		rules:          rules,
		eventPublisher: eventPublisher,
		config:         config.Get(),
	}
}

// CreateTable opens a new table in waiting. Zero values in the request take
// the configured defaults for the variant.
func (s *tableLifecycleService) CreateTable(ctx context.Context, req interfaces.CreateTableRequest) (*entities.Table, error) {
	if _, err := entities.ParseVariant(string(req.Variant)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid variant", err)
	}
	if !req.Currency.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown currency %q", req.Currency)
	}
	if req.BuyIn <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "buy-in must be positive, got %d", req.BuyIn)
	}

	maxSeats, minPlayers := req.MaxSeats, req.MinPlayers
	if maxSeats == 0 {
		maxSeats = s.config.DefaultMaxSeats
		if req.Variant.IsTournament() {
			maxSeats = s.config.SNGMaxEntrants
		}
	}
	if minPlayers == 0 {
		minPlayers = s.config.DefaultMinPlayers
		if req.Variant.IsTournament() {
			minPlayers = s.config.SNGMinEntrants
		}
	}
	if maxSeats < minTableSeats || maxSeats > maxTableSeats {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "max seats must be between %d and %d, got %d", minTableSeats, maxTableSeats, maxSeats)
	}
	if minPlayers < minTableSeats || minPlayers > maxSeats {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "min players must be between %d and %d, got %d", minTableSeats, maxSeats, minPlayers)
	}

	now := time.Now().UTC()
	horizon := now.Add(s.config.InactivityTTL)
	if req.IsPersistent {
		horizon = now.Add(s.config.PersistentHorizon)
	}

	table := &entities.Table{
		Status:       entities.TableStatusWaiting,
		Currency:     req.Currency,
		Variant:      req.Variant,
		MaxSeats:     maxSeats,
		MinPlayers:   minPlayers,
		BuyIn:        req.BuyIn,
		IsPersistent: req.IsPersistent,
		CreatorID:    req.CreatorID,
		InviteCode:   req.InviteCode,
		CreatedAt:    now,
		ExpiresAt:    &horizon,
		LastActionAt: now,
	}
	if req.Variant.IsTournament() {
		state := entities.SNGStateWaiting
		table.SNGState = &state
		table.StartingStack = s.config.SNGStartingStack
	}

	if err := s.tableRepo.Create(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	log.WithFields(log.Fields{
		"tableID":    table.ID,
		"variant":    table.Variant,
		"currency":   table.Currency,
		"maxSeats":   table.MaxSeats,
		"persistent": table.IsPersistent,
	}).Info("Created table")
	s.publish(events.TableStatusChangeEvent{
		TableID:   table.ID,
		NewStatus: table.Status,
		Reason:    "created",
	})

	return table, nil
}

// GetTable returns a table without locking it
func (s *tableLifecycleService) GetTable(ctx context.Context, tableID int64) (*entities.Table, error) {
	table, err := s.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	if table == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "table %d not found", tableID)
	}
	return table, nil
}

// SeatPlayer seats a user and re-evaluates the lifecycle
func (s *tableLifecycleService) SeatPlayer(ctx context.Context, tableID, userID int64, buyIn int64) (*entities.Seat, error) {
	table, err := s.lockTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	seat, err := s.seatManager.TakeSeat(ctx, table, userID, buyIn)
	if err != nil {
		return nil, err
	}
	if err := s.EvaluateSeating(ctx, table); err != nil {
		return nil, err
	}
	return seat, nil
}

// UnseatPlayer releases a seat and re-evaluates the lifecycle. A player dealt
// into the running hand keeps the seat until CompleteHand settles it, so the
// chips they committed stay in the pot.
func (s *tableLifecycleService) UnseatPlayer(ctx context.Context, tableID, seatID int64, cashOut bool) error {
	table, err := s.lockTable(ctx, tableID)
	if err != nil {
		return err
	}

	deferred, err := s.deferLeave(ctx, table, seatID)
	if err != nil {
		return err
	}
	if deferred {
		return nil
	}

	if _, err := s.seatManager.LeaveSeat(ctx, table, seatID, cashOut); err != nil {
		return err
	}
	return s.EvaluateSeating(ctx, table)
}

// EvaluateSeating applies the seat-count driven transitions to a locked table
func (s *tableLifecycleService) EvaluateSeating(ctx context.Context, table *entities.Table) error {
	if table.IsTerminal() {
		return nil
	}

	seats, err := s.seatManager.OccupiedSeats(ctx, table.ID)
	if err != nil {
		return err
	}
	occupied := len(seats)
	active := entities.CountActive(seats)
	now := time.Now().UTC()
	oldStatus, oldState := table.Status, table.CurrentSNGState()

	if table.IsTournament() {
		// The last entrant of a running tournament wins it
		if oldState == entities.SNGStateActive && occupied == 1 {
			return s.finishTournament(ctx, table, seats[0], now)
		}
		if err := s.evaluateTournament(table, occupied, now); err != nil {
			return err
		}
	} else {
		if err := s.evaluateCash(table, occupied, active, now); err != nil {
			return err
		}
	}

	if table.Status == oldStatus && table.CurrentSNGState() == oldState {
		return nil
	}
	if err := s.tableRepo.Update(ctx, table); err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	return nil
}

func (s *tableLifecycleService) evaluateTournament(table *entities.Table, entrants int, now time.Time) error {
	switch table.CurrentSNGState() {
	case entities.SNGStateWaiting:
		if entrants >= table.MinPlayers {
			if err := s.transitionSNG(table, entities.SNGStateJoinWindow, entrants, now); err != nil {
				return err
			}
		}
	case entities.SNGStateJoinWindow:
		if entrants < table.MinPlayers {
			return s.transitionSNG(table, entities.SNGStateWaiting, entrants, now)
		}
	}

	// A full field starts without waiting out the window
	if table.CurrentSNGState() == entities.SNGStateJoinWindow && entrants >= table.MaxSeats {
		if err := s.transitionSNG(table, entities.SNGStateReady, entrants, now); err != nil {
			return err
		}
	}
	if table.CurrentSNGState() == entities.SNGStateReady && table.Status == entities.TableStatusWaiting {
		return s.transition(table, entities.TableStatusActive, "tournament ready", now)
	}
	return nil
}

func (s *tableLifecycleService) evaluateCash(table *entities.Table, occupied, active int, now time.Time) error {
	if occupied == 0 && !table.IsPersistent && table.Status != entities.TableStatusWaiting {
		return s.transition(table, entities.TableStatusEnded, "all players left", now)
	}

	switch table.Status {
	case entities.TableStatusWaiting:
		if active >= table.MinPlayers {
			return s.transition(table, entities.TableStatusActive, "enough players seated", now)
		}
	case entities.TableStatusActive:
		if active < table.MinPlayers {
			return s.transition(table, entities.TableStatusPaused, "below minimum players", now)
		}
	case entities.TableStatusPaused:
		if active >= table.MinPlayers {
			return s.transition(table, entities.TableStatusActive, "players returned", now)
		}
	}
	return nil
}

// AdvanceSNG resolves an elapsed join window: the tournament becomes ready
// with enough entrants, otherwise it falls back to waiting and the table expires
func (s *tableLifecycleService) AdvanceSNG(ctx context.Context, tableID int64, now time.Time) error {
	table, err := s.lockTable(ctx, tableID)
	if err != nil {
		return err
	}
	if !table.IsTournament() {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "table %d is not a tournament table", tableID)
	}
	if !table.JoinWindowElapsed(now, s.config.SNGJoinWindow) {
		return nil
	}

	seats, err := s.seatManager.OccupiedSeats(ctx, table.ID)
	if err != nil {
		return err
	}
	entrants := len(seats)

	if entrants >= table.MinPlayers {
		if err := s.transitionSNG(table, entities.SNGStateReady, entrants, now); err != nil {
			return err
		}
		if table.Status == entities.TableStatusWaiting {
			if err := s.transition(table, entities.TableStatusActive, "tournament ready", now); err != nil {
				return err
			}
		}
		if err := s.tableRepo.Update(ctx, table); err != nil {
			return fmt.Errorf("failed to update table: %w", err)
		}
		return nil
	}

	if err := s.transitionSNG(table, entities.SNGStateWaiting, entrants, now); err != nil {
		return err
	}
	return s.closeTable(ctx, table, entities.TableStatusExpired, "join window elapsed without enough entrants")
}

// StartHand deals the next hand. A ready tournament becomes active and its
// prize pool is fixed from the entry fees.
func (s *tableLifecycleService) StartHand(ctx context.Context, tableID int64) (*entities.Hand, error) {
	table, err := s.lockTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if table.IsTerminal() {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "table %d is %s", tableID, table.Status)
	}

	latest, err := s.handRepo.GetLatestByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest hand: %w", err)
	}
	if latest != nil && latest.IsInProgress() {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "hand %d is still in progress", latest.HandNumber)
	}

	now := time.Now().UTC()
	sngState := table.CurrentSNGState()
	if table.IsTournament() {
		if sngState != entities.SNGStateReady && sngState != entities.SNGStateActive {
			return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "tournament table %d is %s", tableID, sngState)
		}
		if sngState == entities.SNGStateReady && table.Status == entities.TableStatusWaiting {
			if err := s.transition(table, entities.TableStatusActive, "tournament ready", now); err != nil {
				return nil, err
			}
		}
	}
	if table.Status != entities.TableStatusActive {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "table %d is %s", tableID, table.Status)
	}

	if latest != nil && latest.Status == entities.HandStatusInterHandWait {
		latest.Status = entities.HandStatusCompleted
		if err := s.handRepo.Update(ctx, latest); err != nil {
			return nil, fmt.Errorf("failed to close previous hand: %w", err)
		}
	}

	if _, err := s.seatManager.ApplyDeferredSitOuts(ctx, table); err != nil {
		return nil, err
	}
	seats, err := s.seatManager.OccupiedSeats(ctx, tableID)
	if err != nil {
		return nil, err
	}

	var dealt []int64
	for _, seat := range seats {
		if seat.IsActive() && seat.HasChips() {
			dealt = append(dealt, seat.UserID)
		}
	}
	if len(dealt) < 2 {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "table %d has %d players ready to play", tableID, len(dealt))
	}

	if sngState == entities.SNGStateReady {
		table.PrizePool = table.BuyIn * int64(len(seats))
		if err := s.transitionSNG(table, entities.SNGStateActive, len(seats), now); err != nil {
			return nil, err
		}
	}

	tracking := entities.NewTimeoutTracking(dealt)
	handNumber := 1
	if latest != nil {
		handNumber = latest.HandNumber + 1
		tracking.CarryFrom(latest.Timeouts)
	}
	hand := &entities.Hand{
		TableID:    tableID,
		HandNumber: handNumber,
		Status:     entities.HandStatusInProgress,
		Timeouts:   tracking,
		StartedAt:  now,
	}
	if err := s.handRepo.Create(ctx, hand); err != nil {
		return nil, fmt.Errorf("failed to create hand: %w", err)
	}

	table.Touch(now, s.config.InactivityTTL)
	if err := s.tableRepo.Update(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to update table: %w", err)
	}

	log.WithFields(log.Fields{
		"tableID":    tableID,
		"handID":     hand.ID,
		"handNumber": handNumber,
		"players":    len(dealt),
	}).Info("Started hand")

	return hand, nil
}

// CompleteHand settles a hand through the rules engine, applies the stack
// changes and resolves busted players and finished tournaments
func (s *tableLifecycleService) CompleteHand(ctx context.Context, tableID, handID int64, result interfaces.HandResult) (*interfaces.HandOutcome, error) {
	table, err := s.lockTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	hand, err := s.handRepo.GetByID(ctx, handID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hand: %w", err)
	}
	if hand == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "hand %d not found", handID)
	}
	if hand.TableID != tableID {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "hand %d does not belong to table %d", handID, tableID)
	}
	if !hand.IsInProgress() {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "hand %d is %s", handID, hand.Status)
	}

	seats, err := s.seatManager.OccupiedSeats(ctx, tableID)
	if err != nil {
		return nil, err
	}
	snapshot, err := buildHandSnapshot(table, hand, seats, result)
	if err != nil {
		return nil, err
	}

	outcome, err := s.rules.SettleHand(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to settle hand: %w", err)
	}
	if !outcome.HandComplete {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition, "rules engine reports hand %d still running", handID)
	}
	if outcome.TotalPaid() != snapshot.Pot {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "payouts %d do not match pot %d", outcome.TotalPaid(), snapshot.Pot)
	}

	deltas := make(map[int64]int64, len(snapshot.Seats))
	for _, seat := range snapshot.Seats {
		if seat.Committed > 0 {
			deltas[seat.SeatID] -= seat.Committed
		}
	}
	winners := make(map[int64]int64, len(outcome.Winners))
	for _, payout := range outcome.Winners {
		if findSeat(seats, payout.SeatID) == nil || payout.Amount < 0 {
			return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid payout of %d to seat %d", payout.Amount, payout.SeatID)
		}
		deltas[payout.SeatID] += payout.Amount
		winners[payout.SeatID] += payout.Amount
	}
	if err := s.seatManager.AdjustStacks(ctx, table, deltas); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	hand.Pot = snapshot.Pot
	hand.Status = entities.HandStatusInterHandWait
	hand.CompletedAt = &now
	if err := s.handRepo.Update(ctx, hand); err != nil {
		return nil, fmt.Errorf("failed to update hand: %w", err)
	}

	// Busted players and those who left during the hand go now
	var remaining []*entities.Seat
	for _, seat := range seats {
		busted := seat.Stack+deltas[seat.ID] <= 0
		if !busted && !seat.LeaveAfterHand {
			remaining = append(remaining, seat)
			continue
		}
		if _, err := s.seatManager.LeaveSeat(ctx, table, seat.ID, !busted); err != nil {
			return nil, err
		}
	}

	if table.IsTournament() && table.CurrentSNGState() == entities.SNGStateActive && len(remaining) == 1 {
		if err := s.finishTournament(ctx, table, remaining[0], now); err != nil {
			return nil, err
		}
	} else if err := s.EvaluateSeating(ctx, table); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"tableID":    tableID,
		"handID":     handID,
		"handNumber": hand.HandNumber,
		"pot":        hand.Pot,
	}).Info("Completed hand")
	s.publish(events.HandCompletedEvent{
		TableID:    tableID,
		HandID:     handID,
		HandNumber: hand.HandNumber,
		Pot:        hand.Pot,
		Winners:    winners,
	})

	return outcome, nil
}

// EndTable closes a table, cashing out every seated player
func (s *tableLifecycleService) EndTable(ctx context.Context, tableID int64, reason string) error {
	table, err := s.lockTable(ctx, tableID)
	if err != nil {
		return err
	}
	return s.closeTable(ctx, table, entities.TableStatusEnded, reason)
}

// ExpireTable reclaims an inactive table, cashing out every seated player.
// Persistent tables only close through EndTable.
func (s *tableLifecycleService) ExpireTable(ctx context.Context, tableID int64, reason string) error {
	table, err := s.lockTable(ctx, tableID)
	if err != nil {
		return err
	}
	if table.IsPersistent {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "persistent table %d does not expire", tableID)
	}
	return s.closeTable(ctx, table, entities.TableStatusExpired, reason)
}

// finishTournament pays the prize pool to the last player and ends the table
func (s *tableLifecycleService) finishTournament(ctx context.Context, table *entities.Table, winner *entities.Seat, now time.Time) error {
	if table.PrizePool > 0 {
		tableID := table.ID
		if _, err := s.ledger.Credit(ctx, interfaces.LedgerRequest{
			UserID:         winner.UserID,
			Currency:       table.Currency,
			Amount:         table.PrizePool,
			Kind:           entities.TransactionKindPayout,
			TableID:        &tableID,
			IdempotencyKey: fmt.Sprintf("payout:%d:%d", table.ID, winner.ID),
		}); err != nil {
			return fmt.Errorf("failed to pay prize pool: %w", err)
		}
	}
	if err := s.transitionSNG(table, entities.SNGStateCompleted, 1, now); err != nil {
		return err
	}
	if _, err := s.seatManager.LeaveSeat(ctx, table, winner.ID, false); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"tableID":   table.ID,
		"winnerID":  winner.UserID,
		"prizePool": table.PrizePool,
	}).Info("Tournament completed")

	return s.closeTable(ctx, table, entities.TableStatusEnded, "tournament completed")
}

// closeTable releases every seat and moves a locked table to a terminal state.
// A running tournament splits its prize pool by chip count.
func (s *tableLifecycleService) closeTable(ctx context.Context, table *entities.Table, to entities.TableStatus, reason string) error {
	if !table.Status.CanTransitionTo(to) {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "table %d cannot move from %s to %s", table.ID, table.Status, to)
	}

	seats, err := s.seatManager.OccupiedSeats(ctx, table.ID)
	if err != nil {
		return err
	}
	if table.IsTournament() && table.CurrentSNGState() == entities.SNGStateActive {
		if err := s.splitPrizePool(ctx, table, seats); err != nil {
			return err
		}
	}
	for _, seat := range seats {
		if _, err := s.seatManager.LeaveSeat(ctx, table, seat.ID, true); err != nil {
			return err
		}
	}

	latest, err := s.handRepo.GetLatestByTable(ctx, table.ID)
	if err != nil {
		return fmt.Errorf("failed to get latest hand: %w", err)
	}
	now := time.Now().UTC()
	if latest != nil && latest.Status != entities.HandStatusCompleted {
		latest.Status = entities.HandStatusCompleted
		if latest.CompletedAt == nil {
			latest.CompletedAt = &now
		}
		if err := s.handRepo.Update(ctx, latest); err != nil {
			return fmt.Errorf("failed to close hand: %w", err)
		}
	}

	if err := s.transition(table, to, reason, now); err != nil {
		return err
	}
	if err := s.tableRepo.Update(ctx, table); err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}
	return nil
}

// splitPrizePool pays a stopped tournament's pool in proportion to stacks.
// Rounding remainders go to the chip leader.
func (s *tableLifecycleService) splitPrizePool(ctx context.Context, table *entities.Table, seats []*entities.Seat) error {
	var totalChips int64
	var leader *entities.Seat
	for _, seat := range seats {
		totalChips += seat.Stack
		if leader == nil || seat.Stack > leader.Stack {
			leader = seat
		}
	}
	if table.PrizePool <= 0 || totalChips <= 0 {
		if table.PrizePool > 0 {
			log.WithFields(log.Fields{
				"tableID":   table.ID,
				"prizePool": table.PrizePool,
			}).Warn("Tournament stopped with no chips in play; prize pool not distributed")
		}
		return nil
	}

	shares := make(map[int64]int64, len(seats))
	var paid int64
	for _, seat := range seats {
		share := table.PrizePool * seat.Stack / totalChips
		shares[seat.ID] = share
		paid += share
	}
	shares[leader.ID] += table.PrizePool - paid

	tableID := table.ID
	for _, seat := range seats {
		amount := shares[seat.ID]
		if amount <= 0 {
			continue
		}
		if _, err := s.ledger.Credit(ctx, interfaces.LedgerRequest{
			UserID:         seat.UserID,
			Currency:       table.Currency,
			Amount:         amount,
			Kind:           entities.TransactionKindPayout,
			TableID:        &tableID,
			IdempotencyKey: fmt.Sprintf("payout:%d:%d", table.ID, seat.ID),
			Metadata:       map[string]any{"stack": seat.Stack, "split": true},
		}); err != nil {
			return fmt.Errorf("failed to pay prize share: %w", err)
		}
	}
	return nil
}

// deferLeave flags the seat to leave after the running hand when its player
// was dealt in, and drops the player from the hand's timeout tracking.
// Returns false when the seat can be released at once.
func (s *tableLifecycleService) deferLeave(ctx context.Context, table *entities.Table, seatID int64) (bool, error) {
	hand, err := s.handRepo.GetLatestByTable(ctx, table.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get latest hand: %w", err)
	}
	if hand == nil || !hand.IsInProgress() {
		return false, nil
	}

	seats, err := s.seatManager.OccupiedSeats(ctx, table.ID)
	if err != nil {
		return false, err
	}
	seat := findSeat(seats, seatID)
	if seat == nil {
		return false, nil
	}
	if seat.LeaveAfterHand {
		return true, nil
	}
	if hand.Timeouts == nil || !hand.Timeouts.IsTracked(seat.UserID) {
		return false, nil
	}

	if _, err := s.seatManager.MarkLeavingAfterHand(ctx, table, seatID); err != nil {
		return false, err
	}
	hand.Timeouts.Untrack(seat.UserID)
	if err := s.handRepo.Update(ctx, hand); err != nil {
		return false, fmt.Errorf("failed to update hand: %w", err)
	}
	return true, nil
}

func (s *tableLifecycleService) lockTable(ctx context.Context, tableID int64) (*entities.Table, error) {
	table, err := s.tableRepo.GetForUpdate(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock table: %w", err)
	}
	if table == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "table %d not found", tableID)
	}
	return table, nil
}

func (s *tableLifecycleService) transition(table *entities.Table, to entities.TableStatus, reason string, now time.Time) error {
	from := table.Status
	if err := table.TransitionTo(to, now); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"tableID": table.ID,
		"from":    from,
		"to":      to,
		"reason":  reason,
	}).Info("Table status changed")
	s.publish(events.TableStatusChangeEvent{
		TableID:   table.ID,
		OldStatus: from,
		NewStatus: to,
		Reason:    reason,
	})
	return nil
}

func (s *tableLifecycleService) transitionSNG(table *entities.Table, to entities.SNGState, entrants int, now time.Time) error {
	from := table.CurrentSNGState()
	if err := table.TransitionSNG(to, now); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"tableID":  table.ID,
		"from":     from,
		"to":       to,
		"entrants": entrants,
	}).Info("Tournament state changed")
	s.publish(events.SNGStateChangeEvent{
		TableID:  table.ID,
		OldState: from,
		NewState: to,
		Entrants: entrants,
	})
	return nil
}

func (s *tableLifecycleService) publish(event events.Event) {
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to publish event")
	}
}

// buildHandSnapshot validates the reported contributions against the seated
// stacks and assembles the rules engine input
func buildHandSnapshot(table *entities.Table, hand *entities.Hand, seats []*entities.Seat, result interfaces.HandResult) (interfaces.HandSnapshot, error) {
	folded := make(map[int64]bool, len(result.Folded))
	for _, seatID := range result.Folded {
		folded[seatID] = true
	}

	snapshot := interfaces.HandSnapshot{
		TableID:    table.ID,
		HandID:     hand.ID,
		HandNumber: hand.HandNumber,
		Variant:    table.Variant,
		Seats:      make([]interfaces.SeatSnapshot, 0, len(seats)),
	}
	seen := 0
	for _, seat := range seats {
		committed, ok := result.Contributions[seat.ID]
		if ok {
			seen++
		}
		if committed < 0 || committed > seat.Stack {
			return snapshot, apperrors.Newf(apperrors.CodeInvalidArgument, "seat %d committed %d with a stack of %d", seat.ID, committed, seat.Stack)
		}
		snapshot.Pot += committed
		snapshot.Seats = append(snapshot.Seats, interfaces.SeatSnapshot{
			SeatID:    seat.ID,
			UserID:    seat.UserID,
			SeatIndex: seat.SeatIndex,
			Stack:     seat.Stack,
			Committed: committed,
			Folded:    folded[seat.ID] || seat.LeaveAfterHand,
		})
	}
	if seen != len(result.Contributions) {
		return snapshot, apperrors.New(apperrors.CodeInvalidArgument, "contributions reference seats that are not occupied")
	}
	return snapshot, nil
}

func findSeat(seats []*entities.Seat, seatID int64) *entities.Seat {
	for _, seat := range seats {
		if seat.ID == seatID {
			return seat
		}
	}
	return nil
}
