// Package schedule runs the rollup aggregation on a cron schedule, for
// deployments that refresh cost rollups periodically instead of per push.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the work executed on each tick.
type Job func(ctx context.Context) error

// Scheduler manages periodic rollup execution.
type Scheduler struct {
	spec    string
	job     Job
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	entryID cron.EntryID
	logger  *slog.Logger
}

// NewScheduler creates a scheduler that invokes job on the given cron spec.
// Timezone is resolved via time.LoadLocation; invalid names fall back to UTC.
func NewScheduler(spec, timezone string, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("invalid timezone, using UTC", "timezone", timezone, "error", err)
		loc = time.UTC
	}

	return &Scheduler{
		spec: spec,
		job:  job,
		// A rollup outliving its interval must not race the next tick;
		// overlapping ticks are skipped, not queued.
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
	}
}

// Start begins scheduled execution.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.spec, func() {
		s.runJob(ctx)
	})
	if err != nil {
		return err
	}

	s.entryID = entryID
	s.cron.Start()
	s.running = true

	s.logger.Info("rollup scheduler started",
		"schedule", s.spec,
		"next_run", s.cron.Entry(s.entryID).Next,
	)

	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("rollup scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled execution time.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) runJob(ctx context.Context) {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled rollup failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("scheduled rollup completed", "duration", time.Since(start))
}
