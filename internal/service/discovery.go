package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"shortsync/internal/domain"
	"shortsync/internal/metrics"
)

type Discovery struct {
	lister  Lister
	timeout time.Duration
	logger  *slog.Logger
}

func NewDiscovery(lister Lister, timeout time.Duration, logger *slog.Logger) *Discovery {
	return &Discovery{
		lister:  lister,
		timeout: timeout,
		logger:  logger,
	}
}

// Discover lists every view of the channel concurrently and returns one result per
// view in the order given. A view whose listing fails yields no candidates and
// carries the error; it never affects the other views.
func (d *Discovery) Discover(ctx context.Context, channelURL string, views []domain.ListingView, maxItems int) []domain.ViewResult {
	results := make([]domain.ViewResult, len(views))

	var g errgroup.Group
	for i, view := range views {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					metrics.ListingFailures.WithLabelValues(string(view)).Inc()
					d.logger.Error("listing panicked", "channel", channelURL, "view", view, "panic", p)
					results[i] = domain.ViewResult{View: view, Err: fmt.Errorf("%w: %s: %w", ErrListingFailed, view, panicError(p))}
				}
			}()
			results[i] = d.discoverView(ctx, channelURL, view, maxItems)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Discovery) discoverView(ctx context.Context, channelURL string, view domain.ListingView, maxItems int) domain.ViewResult {
	logger := d.logger.With("channel", channelURL, "view", view)
	result := domain.ViewResult{View: view}

	listCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	entries, err := d.lister.List(listCtx, TabURL(channelURL, view), maxItems)
	if err != nil {
		metrics.ListingFailures.WithLabelValues(string(view)).Inc()
		logger.Warn("listing failed, treating view as empty", "error", err)
		result.Err = fmt.Errorf("%w: %s: %w", ErrListingFailed, view, err)
		return result
	}

	for _, e := range entries {
		c, ok := normalize(e)
		if !ok {
			logger.Debug("discarding entry without upload date", "id", e.ID)
			continue
		}
		c.ChannelURL = channelURL
		c.View = view
		result.Candidates = append(result.Candidates, c)
	}

	logger.Debug("listed view", "entries", len(entries), "candidates", len(result.Candidates))
	return result
}

func normalize(e domain.ListingEntry) (domain.VideoCandidate, bool) {
	if e.ID == "" || e.UploadDate == "" {
		return domain.VideoCandidate{}, false
	}

	c := domain.VideoCandidate{
		ID:              e.ID,
		Title:           e.Title,
		UploadDate:      e.UploadDate,
		DurationSeconds: int(e.Duration),
		Width:           e.Width,
		Height:          e.Height,
		Formats:         e.Formats,
		ChannelLabel:    e.Channel,
		WebpageURL:      e.WebpageURL,
	}

	if c.Width == 0 || c.Height == 0 {
		for _, f := range e.Formats {
			if f.HasVideo && f.Width*f.Height > c.Width*c.Height {
				c.Width, c.Height = f.Width, f.Height
			}
		}
	}
	if c.WebpageURL == "" {
		c.WebpageURL = "https://www.youtube.com/watch?v=" + e.ID
	}

	return c, true
}

// TabURL points a channel URL at one of its listing tabs.
func TabURL(channelURL string, view domain.ListingView) string {
	url := NormalizeChannelURL(channelURL)
	for _, v := range []domain.ListingView{domain.ViewVideos, domain.ViewShorts, "streams"} {
		if strings.HasSuffix(url, "/"+string(v)) {
			url = strings.TrimSuffix(url, "/"+string(v))
			break
		}
	}
	return url + "/" + string(view)
}

// NormalizeChannelURL trims whitespace and trailing slashes.
func NormalizeChannelURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}
