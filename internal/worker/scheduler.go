// Package worker runs the periodic maintenance jobs of the ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/riteshkumar/bank-ledger/internal/service"
)

const sweepTimeout = 2 * time.Minute

// Sweeper repairs bank-client links that drifted from the accounts table.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	logger   *slog.Logger
}

func NewScheduler(sweeper Sweeper, schedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule relationship sweep %q: %w", s.schedule, err)
	}
	s.logger.Info("scheduled relationship sweep job", "schedule", s.schedule)

	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("relationship sweep failed",
			"pruned", result.Pruned,
			"restored", result.Restored,
			"failed", result.Failed,
			"error", err.Error(),
		)
		return
	}
	s.logger.Debug("relationship sweep job done", "duration_ms", time.Since(start).Milliseconds())
}
