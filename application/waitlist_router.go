package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/domain/interfaces"
	"cardroom/events"
	"cardroom/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// PassReport summarizes one router pass
type PassReport struct {
	Buckets   int `json:"buckets"`
	Skipped   int `json:"skipped"`
	Routed    int `json:"routed"`
	NewTables int `json:"new_tables"`
	Cancelled int `json:"cancelled"`
	Deferred  int `json:"deferred"`
}

// WaitlistRouter drains the global waitlist into seats
type WaitlistRouter struct {
	uowFactory UnitOfWorkFactory
	dispatcher *TableDispatcher
	build      ServiceBuilder
	running    sync.Mutex
}

// NewWaitlistRouter creates a new router
func NewWaitlistRouter(uowFactory UnitOfWorkFactory, dispatcher *TableDispatcher, build ServiceBuilder) *WaitlistRouter {
	return &WaitlistRouter{
		uowFactory: uowFactory,
		dispatcher: dispatcher,
		build:      build,
	}
}

// RunPass routes every bucket holding waiting entries, oldest first. A
// bucket claimed by another router is skipped until the next pass.
func (r *WaitlistRouter) RunPass(ctx context.Context) (*PassReport, error) {
	report := &PassReport{}
	if !r.running.TryLock() {
		log.Debug("Router pass already running, skipping")
		return report, nil
	}
	defer r.running.Unlock()

	defer observability.GetMetrics().MeasureRouterPass()()

	var buckets []entities.WaitlistBucket
	err := runInUnitOfWork(ctx, r.uowFactory, r.build, func(uow UnitOfWork, svc *Services) error {
		var err error
		buckets, err = svc.Waitlist.WaitingBuckets(ctx)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("failed to list waiting buckets: %w", err)
	}

	for _, bucket := range buckets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Buckets++
		if err := r.routeBucket(ctx, bucket, report); err != nil {
			log.WithFields(log.Fields{
				"bucket": bucket.Key(),
				"error":  err,
			}).Error("Failed to route waitlist bucket")
		}
	}

	if report.Routed > 0 || report.Cancelled > 0 {
		log.WithFields(log.Fields{
			"buckets":   report.Buckets,
			"routed":    report.Routed,
			"newTables": report.NewTables,
			"cancelled": report.Cancelled,
			"deferred":  report.Deferred,
		}).Info("Completed router pass")
	}
	return report, nil
}

// routeBucket holds the bucket claim in its own transaction for the whole
// bucket. Seats are taken in separate units of work; the claim is released
// when the holding transaction ends.
func (r *WaitlistRouter) routeBucket(ctx context.Context, bucket entities.WaitlistBucket, report *PassReport) error {
	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	claimed, err := uow.BucketClaimRepository().TryClaim(ctx, bucket.Key())
	if err != nil {
		return err
	}
	if !claimed {
		log.WithField("bucket", bucket.Key()).Debug("Bucket claimed by another router, skipping")
		report.Skipped++
		return nil
	}

	plan, err := r.build(uow).Waitlist.PlanBucket(ctx, bucket)
	if err != nil {
		return err
	}

	for _, assignment := range plan.Assignments {
		r.assign(ctx, assignment, report)
	}
	for _, batch := range plan.NewTables {
		r.openTable(ctx, batch, report)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to release bucket claim: %w", err)
	}
	return nil
}

// assign seats an entry at the first candidate table that still has room
func (r *WaitlistRouter) assign(ctx context.Context, assignment interfaces.Assignment, report *PassReport) {
	entry := assignment.Entry
	metrics := observability.GetMetrics()

	for _, tableID := range assignment.Candidates {
		err := r.dispatcher.Submit(ctx, tableID, func(ctx context.Context) error {
			return runInUnitOfWork(ctx, r.uowFactory, r.build, func(uow UnitOfWork, svc *Services) error {
				return seatEntry(ctx, uow, svc, entry, tableID, false)
			})
		})

		switch {
		case err == nil:
			report.Routed++
			metrics.RecordRouterAssignment(observability.RouteExistingTable)
			return
		case errors.Is(err, apperrors.ErrSeatUnavailable):
			log.WithFields(log.Fields{
				"entryID": entry.ID,
				"tableID": tableID,
			}).Debug("Seat unavailable, trying next candidate")
			continue
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			r.cancelEntry(ctx, entry, report)
			return
		case errors.Is(err, apperrors.ErrDuplicateTableCreation):
			log.WithField("entryID", entry.ID).Info("Waitlist entry left the queue during routing")
			return
		default:
			log.WithFields(log.Fields{
				"entryID": entry.ID,
				"tableID": tableID,
				"error":   err,
			}).Error("Failed to route waitlist entry")
			report.Deferred++
			metrics.RecordRouterAssignment(observability.RouteDeferred)
			return
		}
	}

	report.Deferred++
	metrics.RecordRouterAssignment(observability.RouteDeferred)
}

// openTable creates a table and seats the whole batch in one unit of work
func (r *WaitlistRouter) openTable(ctx context.Context, batch interfaces.NewTableBatch, report *PassReport) {
	var broke *entities.WaitlistEntry
	var tableID int64

	err := runInUnitOfWork(ctx, r.uowFactory, r.build, func(uow UnitOfWork, svc *Services) error {
		table, err := svc.Lifecycle.CreateTable(ctx, interfaces.CreateTableRequest{
			Variant:  batch.Variant,
			Currency: batch.Currency,
			BuyIn:    batch.BuyIn,
		})
		if err != nil {
			return err
		}
		tableID = table.ID

		for _, entry := range batch.Entries {
			if err := seatEntry(ctx, uow, svc, entry, table.ID, true); err != nil {
				if errors.Is(err, apperrors.ErrInsufficientFunds) {
					broke = entry
				}
				return err
			}
		}
		return nil
	})

	metrics := observability.GetMetrics()
	if err == nil {
		report.NewTables++
		report.Routed += len(batch.Entries)
		for range batch.Entries {
			metrics.RecordRouterAssignment(observability.RouteNewTable)
		}
		log.WithFields(log.Fields{
			"tableID":  tableID,
			"variant":  batch.Variant,
			"currency": batch.Currency,
			"entries":  len(batch.Entries),
		}).Info("Opened table for waitlist batch")
		return
	}

	fields := log.Fields{
		"variant":  batch.Variant,
		"currency": batch.Currency,
		"entries":  len(batch.Entries),
		"error":    err,
	}
	switch {
	case errors.Is(err, apperrors.ErrDuplicateTableCreation):
		fields["alert"] = true
		log.WithFields(fields).Error("Duplicate table creation detected, batch rolled back")
	case broke != nil:
		fields["entryID"] = broke.ID
		log.WithFields(fields).Warn("Waitlist batch rolled back, entry cannot cover its buy-in")
		r.cancelEntry(ctx, broke, report)
	default:
		log.WithFields(fields).Error("Failed to open table for waitlist batch")
	}

	for _, entry := range batch.Entries {
		if entry != broke {
			report.Deferred++
			metrics.RecordRouterAssignment(observability.RouteDeferred)
		}
	}
}

// cancelEntry drops an entry whose buy-in cannot be covered
func (r *WaitlistRouter) cancelEntry(ctx context.Context, entry *entities.WaitlistEntry, report *PassReport) {
	err := runInUnitOfWork(ctx, r.uowFactory, r.build, func(uow UnitOfWork, svc *Services) error {
		_, err := svc.Waitlist.Cancel(ctx, entry.ID, entry.UserID)
		return err
	})
	if err != nil {
		if apperrors.IsBenign(err) {
			return
		}
		log.WithFields(log.Fields{
			"entryID": entry.ID,
			"error":   err,
		}).Error("Failed to cancel waitlist entry")
		return
	}

	report.Cancelled++
	observability.GetMetrics().RecordRouterAssignment(observability.RouteCancelled)
	log.WithFields(log.Fields{
		"entryID": entry.ID,
		"userID":  entry.UserID,
		"buyIn":   entry.BuyIn,
	}).Info("Cancelled waitlist entry with insufficient funds")
}

// seatEntry takes the seat and fixes the entry's table in the same unit of work
func seatEntry(ctx context.Context, uow UnitOfWork, svc *Services, entry *entities.WaitlistEntry, tableID int64, newTable bool) error {
	if _, err := svc.Lifecycle.SeatPlayer(ctx, tableID, entry.UserID, entry.BuyIn); err != nil {
		return err
	}
	if err := svc.Waitlist.MarkEntered(ctx, entry.ID, tableID); err != nil {
		return err
	}
	if err := uow.EventBus().Publish(events.WaitlistRoutedEvent{
		EntryID:  entry.ID,
		UserID:   entry.UserID,
		TableID:  tableID,
		NewTable: newTable,
	}); err != nil {
		log.WithError(err).Error("Failed to publish waitlist routed event")
	}
	return nil
}
