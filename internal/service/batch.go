package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shortsync/internal/domain"
	"shortsync/internal/metrics"
)

type BatchDriver struct {
	channels  ChannelStore
	txManager TransactionManager
	runner    ChannelSyncer
	workers   int
	logger    *slog.Logger
}

func NewBatchDriver(channels ChannelStore, txManager TransactionManager, runner ChannelSyncer, workers int, logger *slog.Logger) *BatchDriver {
	return &BatchDriver{
		channels:  channels,
		txManager: txManager,
		runner:    runner,
		workers:   max(1, workers),
		logger:    logger,
	}
}

// ReconcileAndRun aligns the persisted channel set with urls and runs every active
// channel. Only a store failure during reconciliation is returned as an error; a
// failing channel is recorded in the report and the others still run.
func (b *BatchDriver) ReconcileAndRun(ctx context.Context, urls []string) (*domain.BatchReport, error) {
	startTime := time.Now()
	report := &domain.BatchReport{RunID: uuid.NewString()}
	logger := b.logger.With("run_id", report.RunID)

	logger.Info("starting batch", "configured_channels", len(urls))

	active, err := b.reconcile(ctx, report, urls)
	if err != nil {
		return report, fmt.Errorf("reconcile channels: %w: %w", ErrStoreUnavailable, err)
	}

	report.Channels = make([]domain.ChannelReport, len(active))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, ch := range active {
		g.Go(func() error {
			report.Channels[i] = b.runChannel(ctx, logger, ch)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(startTime)
	metrics.LastBatchTimestamp.SetToCurrentTime()

	acquired, failedItems := 0, 0
	for _, c := range report.Channels {
		if c.Outcome != nil {
			acquired += len(c.Outcome.Acquired)
			failedItems += len(c.Outcome.Failed)
		}
	}

	logger.Info("batch completed",
		"channels", len(report.Channels),
		"failed_channels", report.Failed(),
		"created", len(report.Created),
		"deactivated", len(report.Deactivated),
		"reactivated", len(report.Reactivated),
		"acquired", acquired,
		"failed_items", failedItems,
		"duration", report.Duration,
	)

	return report, nil
}

// reconcile creates, deactivates and reactivates channels in one transaction and
// returns the channels that are active afterwards.
func (b *BatchDriver) reconcile(ctx context.Context, report *domain.BatchReport, urls []string) ([]domain.Channel, error) {
	configured := make(map[string]struct{}, len(urls))
	var ordered []string
	for _, u := range urls {
		u = NormalizeChannelURL(u)
		if u == "" {
			continue
		}
		if _, dup := configured[u]; dup {
			continue
		}
		configured[u] = struct{}{}
		ordered = append(ordered, u)
	}

	var active []domain.Channel
	err := b.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		stored, err := b.channels.List(txCtx)
		if err != nil {
			return fmt.Errorf("list channels: %w", err)
		}

		known := make(map[string]domain.Channel, len(stored))
		for _, ch := range stored {
			known[ch.URL] = ch
			if _, ok := configured[ch.URL]; ok || !ch.Active {
				continue
			}
			if err := b.channels.SetActive(txCtx, ch.URL, false); err != nil {
				return fmt.Errorf("deactivate %s: %w", ch.URL, err)
			}
			report.Deactivated = append(report.Deactivated, ch.URL)
		}

		for _, u := range ordered {
			ch, ok := known[u]
			switch {
			case !ok:
				if err := b.channels.Create(txCtx, u); err != nil {
					return fmt.Errorf("create %s: %w", u, err)
				}
				report.Created = append(report.Created, u)
				ch = domain.Channel{URL: u, Active: true}
			case !ch.Active:
				if err := b.channels.SetActive(txCtx, u, true); err != nil {
					return fmt.Errorf("reactivate %s: %w", u, err)
				}
				report.Reactivated = append(report.Reactivated, u)
				ch.Active = true
			}
			active = append(active, ch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, u := range report.Created {
		b.logger.Info("tracking new channel", "channel", u)
	}
	for _, u := range report.Reactivated {
		b.logger.Info("reactivated channel", "channel", u)
	}
	for _, u := range report.Deactivated {
		b.logger.Info("deactivated channel removed from config", "channel", u)
	}

	return active, nil
}

func (b *BatchDriver) runChannel(ctx context.Context, logger *slog.Logger, ch domain.Channel) (rep domain.ChannelReport) {
	rep.ChannelURL = ch.URL

	defer func() {
		if p := recover(); p != nil {
			rep.Err = &ChannelError{ChannelURL: ch.URL, Err: panicError(p)}
		}
		if rep.Err != nil {
			metrics.ChannelRuns.WithLabelValues("error").Inc()
			logger.Error("channel run failed", "channel", ch.URL, "error", rep.Err)
			return
		}
		metrics.ChannelRuns.WithLabelValues("ok").Inc()
	}()

	outcome, err := b.runner.Run(ctx, ch)
	rep.Outcome = outcome
	if err != nil {
		rep.Err = &ChannelError{ChannelURL: ch.URL, Err: err}
	}
	return rep
}
