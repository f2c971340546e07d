package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
)

const sweepBatchSize = 500

type BookingSweeper interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

type LedgerAuditor interface {
	VerifyAll(ctx context.Context) (int, error)
}

type WebhookRecoverer interface {
	Recover(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic maintenance jobs: expiring bookings past their
// response deadline, auditing cached balances and releasing stale webhook claims.
// Each job runs in singleton mode so a slow pass is never overlapped.
type Scheduler struct {
	cron   gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func New(
	cfg config.SchedulerConfig,
	bookings BookingSweeper,
	ledger LedgerAuditor,
	webhooks WebhookRecoverer,
	logger *zap.Logger,
) (*Scheduler, error) {
	logger = logger.Named("scheduler")
	cron, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(cronLogger{logger.Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: cron, ctx: ctx, cancel: cancel, logger: logger}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"expire-overdue-bookings", cfg.DeadlineSweepInterval, func(ctx context.Context) error {
			_, err := bookings.ExpireOverdue(ctx, sweepBatchSize)
			return err
		}},
		{"recover-webhook-deliveries", cfg.DeadlineSweepInterval, func(ctx context.Context) error {
			_, err := webhooks.Recover(ctx)
			return err
		}},
		{"verify-balances", cfg.ConsistencyCheckInterval, func(ctx context.Context) error {
			_, err := ledger.VerifyAll(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		if _, err := cron.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(s.run, job.name, job.run),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			_ = cron.Shutdown()
			return nil, fmt.Errorf("failed to register job %s: %w", job.name, err)
		}
	}

	return s, nil
}

func (s *Scheduler) run(name string, fn func(context.Context) error) {
	started := time.Now()
	if err := fn(s.ctx); err != nil && s.ctx.Err() == nil {
		s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Debug("Scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(started)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Jobs())))
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	jobs := s.cron.Jobs()
	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name()
	}
	return names
}

// RunNow triggers every job once, outside its interval.
func (s *Scheduler) RunNow() error {
	for _, job := range s.cron.Jobs() {
		if err := job.RunNow(); err != nil {
			return fmt.Errorf("failed to run %s: %w", job.Name(), err)
		}
	}
	return nil
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info("Scheduler stopped")
	return nil
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l cronLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l cronLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l cronLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
