package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"shortsync/internal/config"
	"shortsync/internal/domain"
	"shortsync/internal/metrics"
)

// ChannelRunner implements ChannelSyncer.
type ChannelRunner struct {
	discovery *Discovery
	acquirer  Acquirer
	channels  ChannelStore
	acquired  AcquisitionStore
	settings  SettingsStore
	chooser   Chooser
	publisher Publisher
	profile   domain.TranscodeProfile
	logger    *slog.Logger
	config    config.SyncConfig
}

// NewChannelRunner builds a runner. chooser and publisher may be nil: without a
// chooser no normal video is ever selected, without a publisher no event is sent.
func NewChannelRunner(
	discovery *Discovery,
	acquirer Acquirer,
	channels ChannelStore,
	acquired AcquisitionStore,
	settings SettingsStore,
	chooser Chooser,
	publisher Publisher,
	profile domain.TranscodeProfile,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *ChannelRunner {
	return &ChannelRunner{
		discovery: discovery,
		acquirer:  acquirer,
		channels:  channels,
		acquired:  acquired,
		settings:  settings,
		chooser:   chooser,
		publisher: publisher,
		profile:   profile,
		logger:    logger,
		config:    cfg,
	}
}

func (r *ChannelRunner) Run(ctx context.Context, ch domain.Channel) (*domain.ChannelOutcome, error) {
	startTime := time.Now()
	logger := r.logger.With("channel", ch.URL)
	outcome := &domain.ChannelOutcome{ChannelURL: ch.URL}

	views := r.config.Views
	if len(views) == 0 {
		views = domain.DefaultViews
	}

	results := r.discovery.Discover(ctx, ch.URL, views, r.config.MaxItemsPerView)
	for _, res := range results {
		if res.Err != nil {
			outcome.FailedViews = append(outcome.FailedViews, res.View)
		}
	}

	merged := Merge(results, r.config.AfterDate, ch.Cursor())
	outcome.Unique = merged.Unique
	outcome.Shorts = len(merged.Shorts)
	outcome.Normals = len(merged.Normals)

	if merged.Empty() {
		outcome.Duration = time.Since(startTime)
		logger.Info("no new videos", "unique", merged.Unique, "cursor", ch.Cursor())
		return outcome, nil
	}

	logger.Info("discovered new videos",
		"shorts", outcome.Shorts,
		"normals", outcome.Normals,
		"newest", merged.NewestID,
	)

	shorts, normals, err := r.dropAcquired(ctx, merged.Shorts, merged.Normals)
	if err != nil {
		return outcome, err
	}
	outcome.AlreadyAcquired = len(merged.Shorts) + len(merged.Normals) - len(shorts) - len(normals)

	selected, err := r.selectNormals(ctx, logger, ch.URL, normals)
	if err != nil {
		return outcome, err
	}
	outcome.Selected = len(selected)

	queue := make([]domain.VideoCandidate, 0, len(shorts)+len(selected))
	queue = append(queue, shorts...)
	queue = append(queue, selected...)

	records, errs := r.acquireAll(ctx, logger, queue)
	for i, c := range queue {
		if errs[i] != nil {
			logger.Warn("acquisition failed", "video_id", c.ID, "title", c.Title, "error", errs[i])
			outcome.Failed = append(outcome.Failed, domain.AcquisitionFailure{ID: c.ID, Title: c.Title, Err: errs[i]})
			continue
		}
		outcome.Acquired = append(outcome.Acquired, *records[i])
	}

	// Items interrupted by cancellation were not attempted, so the cursor stays.
	if err := ctx.Err(); err != nil {
		return outcome, fmt.Errorf("run interrupted: %w", err)
	}

	if cursorDate := ch.CursorDate(); cursorDate != "" && merged.NewestDate < cursorDate {
		logger.Warn("newest video is older than the cursor, keeping cursor",
			"newest", merged.NewestID,
			"newest_date", merged.NewestDate,
			"cursor", ch.Cursor(),
			"cursor_date", cursorDate,
		)
	} else {
		if err := r.channels.UpdateCursor(ctx, ch.URL, merged.NewestID, merged.NewestDate); err != nil {
			return outcome, fmt.Errorf("%w: update cursor: %w", ErrStoreUnavailable, err)
		}
		outcome.NewCursor = merged.NewestID
	}

	outcome.Duration = time.Since(startTime)
	logger.Info("channel run completed",
		"acquired", len(outcome.Acquired),
		"failed", len(outcome.Failed),
		"already_acquired", outcome.AlreadyAcquired,
		"selected_normals", outcome.Selected,
		"failed_views", len(outcome.FailedViews),
		"cursor", outcome.NewCursor,
		"duration", outcome.Duration,
	)

	return outcome, nil
}

// dropAcquired removes candidates that already have an acquisition record.
func (r *ChannelRunner) dropAcquired(ctx context.Context, shorts, normals []domain.VideoCandidate) ([]domain.VideoCandidate, []domain.VideoCandidate, error) {
	ids := make([]string, 0, len(shorts)+len(normals))
	for _, c := range shorts {
		ids = append(ids, c.ID)
	}
	for _, c := range normals {
		ids = append(ids, c.ID)
	}

	existing, err := r.acquired.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: check acquired: %w", ErrStoreUnavailable, err)
	}
	if len(existing) == 0 {
		return shorts, normals, nil
	}

	keep := func(in []domain.VideoCandidate) []domain.VideoCandidate {
		var out []domain.VideoCandidate
		for _, c := range in {
			if _, ok := existing[c.ID]; !ok {
				out = append(out, c)
			}
		}
		return out
	}
	return keep(shorts), keep(normals), nil
}

// selectNormals applies the stored normals policy, falling back to the configured one.
func (r *ChannelRunner) selectNormals(ctx context.Context, logger *slog.Logger, channelURL string, normals []domain.VideoCandidate) ([]domain.VideoCandidate, error) {
	if len(normals) == 0 {
		return nil, nil
	}

	policy := r.config.NormalsPolicy
	value, ok, err := r.settings.Get(ctx, domain.SettingNormalsPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: read normals policy: %w", ErrStoreUnavailable, err)
	}
	if ok {
		if p := domain.NormalsPolicy(value); p.Valid() {
			policy = p
		} else {
			logger.Warn("ignoring invalid stored normals policy", "value", value)
		}
	}

	if policy != domain.NormalsAsk || r.chooser == nil {
		logger.Debug("skipping normal videos", "count", len(normals), "policy", policy)
		return nil, nil
	}

	chosen, err := r.chooser.Choose(ctx, channelURL, normals)
	if err != nil {
		logger.Warn("chooser failed, skipping normal videos", "error", err)
		return nil, nil
	}

	// Only candidates that were offered can be selected.
	offered := make(map[string]struct{}, len(normals))
	for _, c := range normals {
		offered[c.ID] = struct{}{}
	}
	var selected []domain.VideoCandidate
	for _, c := range chosen {
		if _, ok := offered[c.ID]; ok {
			selected = append(selected, c)
			delete(offered, c.ID)
		}
	}
	return selected, nil
}

// acquireAll runs every candidate through the acquirer with at most ItemWorkers in
// flight. Results are indexed like candidates; one failure never stops the others.
func (r *ChannelRunner) acquireAll(ctx context.Context, logger *slog.Logger, candidates []domain.VideoCandidate) ([]*domain.AcquisitionRecord, []error) {
	records := make([]*domain.AcquisitionRecord, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(max(1, r.config.ItemWorkers))
	for i, c := range candidates {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					records[i], errs[i] = nil, fmt.Errorf("acquire %s: %w", c.ID, panicError(p))
				}
			}()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			records[i], errs[i] = r.acquireOne(ctx, logger, c)
			return nil
		})
	}
	_ = g.Wait()

	return records, errs
}

func (r *ChannelRunner) acquireOne(ctx context.Context, logger *slog.Logger, c domain.VideoCandidate) (*domain.AcquisitionRecord, error) {
	record, err := r.acquirer.Acquire(ctx, c, r.profile)
	if err != nil {
		return nil, err
	}

	if err := r.acquired.Save(ctx, record); err != nil {
		metrics.Acquisitions.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("%w: save record %s: %w", ErrStoreUnavailable, c.ID, err)
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, record); err != nil {
			logger.Warn("failed to publish acquisition", "video_id", c.ID, "error", err)
		}
	}

	return record, nil
}
