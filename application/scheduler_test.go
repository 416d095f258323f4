package application_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"cardroom/application"
	"cardroom/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJobs struct {
	passes      int32
	expirations int32
	windows     int32
	invites     int32
}

func (c *countingJobs) RunPass(ctx context.Context) (*application.PassReport, error) {
	atomic.AddInt32(&c.passes, 1)
	return &application.PassReport{}, nil
}

func (c *countingJobs) SweepExpiredTables(ctx context.Context) (*application.SweepReport, error) {
	atomic.AddInt32(&c.expirations, 1)
	return &application.SweepReport{}, nil
}

func (c *countingJobs) SweepJoinWindows(ctx context.Context) (*application.SweepReport, error) {
	atomic.AddInt32(&c.windows, 1)
	return &application.SweepReport{}, nil
}

func (c *countingJobs) ExpireOverdue(ctx context.Context) (int, error) {
	atomic.AddInt32(&c.invites, 1)
	return 0, nil
}

func withSchedules(t *testing.T, mutate func(cfg *config.Config)) {
	t.Helper()
	cfg := config.NewTestConfig()
	mutate(cfg)
	config.SetTestConfig(cfg)
	t.Cleanup(func() { config.SetTestConfig(config.NewTestConfig()) })
}

func TestScheduler_RunsEveryJob(t *testing.T) {
	// Setup
	withSchedules(t, func(cfg *config.Config) {
		cfg.RouterSchedule = "@every 1s"
		cfg.ExpirationSchedule = "@every 1s"
		cfg.JoinWindowSchedule = "@every 1s"
		cfg.InviteExpirySchedule = "@every 1s"
	})
	jobs := &countingJobs{}
	scheduler := application.NewScheduler(jobs, jobs, jobs)

	// Execute
	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	// Verify
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&jobs.passes) > 0 &&
			atomic.LoadInt32(&jobs.expirations) > 0 &&
			atomic.LoadInt32(&jobs.windows) > 0 &&
			atomic.LoadInt32(&jobs.invites) > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	withSchedules(t, func(cfg *config.Config) {
		cfg.ExpirationSchedule = "every thirty seconds"
	})
	jobs := &countingJobs{}
	scheduler := application.NewScheduler(jobs, jobs, jobs)

	err := scheduler.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expiration_sweep")
}

func TestScheduler_SkipsJobsAfterCancellation(t *testing.T) {
	withSchedules(t, func(cfg *config.Config) {
		cfg.RouterSchedule = "@every 1s"
	})
	jobs := &countingJobs{}
	scheduler := application.NewScheduler(jobs, jobs, jobs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, scheduler.Start(ctx))
	time.Sleep(1500 * time.Millisecond)
	scheduler.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&jobs.passes))
}
