package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"expenso/internal/log"
)

// Job is a unit of scheduled work. Errors are logged; the schedule continues.
type Job func(ctx context.Context) error

// Scheduler wraps cron-based maintenance jobs. Specs use the seconds field
// (e.g. "0 30 3 * * *") or descriptors such as "@every 1h".
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *slog.Logger
}

func NewScheduler(ctx context.Context, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		logger: logger,
	}
}

// Add registers job under name. An invalid cron expression is returned as an error.
func (s *Scheduler) Add(name, spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return id, nil
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.logger.ErrorContext(s.ctx, "Scheduled job failed", "job", name, log.FieldError, err)
		return
	}
	s.logger.DebugContext(s.ctx, "Scheduled job completed", "job", name, log.FieldDuration, time.Since(start).Milliseconds())
}

// RunNow executes a registered job body immediately, outside the schedule.
func (s *Scheduler) RunNow(name string, job Job) {
	s.run(name, job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
