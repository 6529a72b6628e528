package scheduler

import (
	"context"
	"log/slog"
	"time"

	"shortsync/internal/domain"
)

// BatchRunner reconciles the configured channels and runs one pass over them.
type BatchRunner interface {
	ReconcileAndRun(ctx context.Context, urls []string) (*domain.BatchReport, error)
}

// Scheduler runs a batch immediately and then once per interval. Runs never overlap:
// a tick that fires while a batch is in progress is dropped by the ticker.
type Scheduler struct {
	runner   BatchRunner
	channels []string
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(runner BatchRunner, channels []string, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		channels: channels,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "channels", len(s.channels))

	s.runBatch(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runBatch(ctx)
		}
	}
}

func (s *Scheduler) runBatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	report, err := s.runner.ReconcileAndRun(ctx, s.channels)
	if err != nil {
		s.logger.Error("batch failed", "error", err)
		return
	}
	if failed := report.Failed(); failed > 0 {
		s.logger.Warn("batch finished with failed channels",
			"run_id", report.RunID,
			"failed", failed,
		)
	}
}
