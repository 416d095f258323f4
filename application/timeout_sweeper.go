package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardroom/config"
	"cardroom/domain/apperrors"
	"cardroom/domain/entities"
	"cardroom/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// SweepReport summarizes one enforcer sweep
type SweepReport struct {
	Checked int `json:"checked"`
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
}

// TimeoutSweeper reclaims inactive tables and closes tournament join
// windows. Every change is submitted to the table's mailbox.
type TimeoutSweeper struct {
	uowFactory UnitOfWorkFactory
	dispatcher *TableDispatcher
	build      ServiceBuilder
	config     *config.Config
	now        func() time.Time
}

// NewTimeoutSweeper creates a new sweeper
func NewTimeoutSweeper(uowFactory UnitOfWorkFactory, dispatcher *TableDispatcher, build ServiceBuilder) *TimeoutSweeper {
	return &TimeoutSweeper{
		uowFactory: uowFactory,
		dispatcher: dispatcher,
		build:      build,
		config:     config.Get(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SweepExpiredTables expires every non-persistent table past its deadline,
// cashing out the seated players. One table failing does not stop the sweep.
func (s *TimeoutSweeper) SweepExpiredTables(ctx context.Context) (*SweepReport, error) {
	now := s.now()

	var tables []*entities.Table
	err := runInUnitOfWork(ctx, s.uowFactory, s.build, func(uow UnitOfWork, svc *Services) error {
		var err error
		tables, err = uow.TableRepository().GetExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to get expired tables: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Checked: len(tables)}
	for _, table := range tables {
		tableID := table.ID
		var expired bool
		err := s.dispatcher.Submit(ctx, tableID, func(ctx context.Context) error {
			return runInUnitOfWork(ctx, s.uowFactory, s.build, func(uow UnitOfWork, svc *Services) error {
				// Activity may have pushed the deadline out since the listing
				current, err := lockedTable(ctx, uow, tableID)
				if err != nil {
					return err
				}
				if !current.IsExpired(now) {
					return nil
				}
				expired = true
				return svc.Lifecycle.ExpireTable(ctx, tableID, "inactivity")
			})
		})
		applied := false
		if err == nil {
			applied = expired
		}
		s.record(report, tableID, "expire", applied, err)
	}

	if report.Applied > 0 || report.Failed > 0 {
		log.WithFields(log.Fields{
			"checked": report.Checked,
			"expired": report.Applied,
			"failed":  report.Failed,
		}).Info("Completed expiration sweep")
	}
	return report, nil
}

// SweepJoinWindows advances tournament tables whose join window elapsed
func (s *TimeoutSweeper) SweepJoinWindows(ctx context.Context) (*SweepReport, error) {
	now := s.now()
	window := s.config.SNGJoinWindow

	var tables []*entities.Table
	err := runInUnitOfWork(ctx, s.uowFactory, s.build, func(uow UnitOfWork, svc *Services) error {
		var err error
		tables, err = uow.TableRepository().GetInJoinWindow(ctx)
		if err != nil {
			return fmt.Errorf("failed to get tables in join window: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	for _, table := range tables {
		if !table.JoinWindowElapsed(now, window) {
			continue
		}
		report.Checked++

		tableID := table.ID
		var advanced bool
		err := s.dispatcher.Submit(ctx, tableID, func(ctx context.Context) error {
			return runInUnitOfWork(ctx, s.uowFactory, s.build, func(uow UnitOfWork, svc *Services) error {
				// The window may have closed or restarted since the listing
				current, err := lockedTable(ctx, uow, tableID)
				if err != nil {
					return err
				}
				if !current.JoinWindowElapsed(now, window) {
					return nil
				}
				advanced = true
				return svc.Lifecycle.AdvanceSNG(ctx, tableID, now)
			})
		})
		applied := false
		if err == nil {
			applied = advanced
		}
		s.record(report, tableID, "advance_join_window", applied, err)
	}

	if report.Applied > 0 || report.Failed > 0 {
		log.WithFields(log.Fields{
			"checked":  report.Checked,
			"advanced": report.Applied,
			"failed":   report.Failed,
		}).Info("Completed join window sweep")
	}
	return report, nil
}

func (s *TimeoutSweeper) record(report *SweepReport, tableID int64, action string, applied bool, err error) {
	switch {
	case err == nil:
		if applied {
			report.Applied++
			observability.GetMetrics().RecordEnforcerAction(action)
		}
	case errors.Is(err, apperrors.ErrInvalidTransition):
		// Closed by someone else between listing and locking
		log.WithFields(log.Fields{
			"tableID": tableID,
			"action":  action,
		}).Debug("Table no longer eligible for sweep")
	default:
		report.Failed++
		log.WithFields(log.Fields{
			"tableID": tableID,
			"action":  action,
			"error":   err,
		}).Error("Failed to apply sweep to table")
	}
}
