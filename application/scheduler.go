package application

import (
	"context"
	"fmt"
	"time"

	"cardroom/config"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// PassRunner runs waitlist router passes
type PassRunner interface {
	RunPass(ctx context.Context) (*PassReport, error)
}

// TableSweeper runs the enforcer sweeps
type TableSweeper interface {
	SweepExpiredTables(ctx context.Context) (*SweepReport, error)
	SweepJoinWindows(ctx context.Context) (*SweepReport, error)
}

// InviteExpirer expires overdue invites
type InviteExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Scheduler runs the background jobs on their cron schedules
type Scheduler struct {
	cron    *cron.Cron
	router  PassRunner
	sweeper TableSweeper
	invites InviteExpirer
	config  *config.Config
}

// NewScheduler creates a scheduler in UTC. A job still running when its next
// tick arrives skips that tick.
func NewScheduler(router PassRunner, sweeper TableSweeper, invites InviteExpirer) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		),
	)

	return &Scheduler{
		cron:    c,
		router:  router,
		sweeper: sweeper,
		invites: invites,
		config:  config.Get(),
	}
}

// Start registers every job and starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"router_pass", s.config.RouterSchedule, func(ctx context.Context) error {
			_, err := s.router.RunPass(ctx)
			return err
		}},
		{"expiration_sweep", s.config.ExpirationSchedule, func(ctx context.Context) error {
			_, err := s.sweeper.SweepExpiredTables(ctx)
			return err
		}},
		{"join_window_sweep", s.config.JoinWindowSchedule, func(ctx context.Context) error {
			_, err := s.sweeper.SweepJoinWindows(ctx)
			return err
		}},
		{"invite_expiry", s.config.InviteExpirySchedule, func(ctx context.Context) error {
			_, err := s.invites.ExpireOverdue(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			if ctx.Err() != nil {
				return
			}
			if err := job.run(ctx); err != nil {
				log.WithFields(log.Fields{
					"job":   job.name,
					"error": err,
				}).Error("Scheduled job failed")
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", job.spec, job.name, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"router":     s.config.RouterSchedule,
		"expiration": s.config.ExpirationSchedule,
		"joinWindow": s.config.JoinWindowSchedule,
		"invites":    s.config.InviteExpirySchedule,
	}).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}
