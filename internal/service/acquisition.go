package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"shortsync/internal/domain"
	"shortsync/internal/metrics"
)

type OrchestratorConfig struct {
	OutputDir        string
	TempDir          string // "" uses os.TempDir
	Language         string // preferred audio language
	FetchTimeout     time.Duration
	TranscodeTimeout time.Duration
}

// Orchestrator implements Acquirer: both streams are fetched concurrently into a
// private temporary directory, then muxed by a single transcoder call.
type Orchestrator struct {
	fetcher    Fetcher
	transcoder Transcoder
	cfg        OrchestratorConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewOrchestrator(fetcher Fetcher, transcoder Transcoder, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		transcoder: transcoder,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (o *Orchestrator) Acquire(ctx context.Context, candidate domain.VideoCandidate, profile domain.TranscodeProfile) (*domain.AcquisitionRecord, error) {
	start := time.Now()
	logger := o.logger.With("video_id", candidate.ID)

	video, audio, err := SelectFormats(candidate.Formats, o.cfg.Language)
	if err != nil {
		metrics.Acquisitions.WithLabelValues("no_format").Inc()
		return nil, newAcquisitionError(candidate.ID, candidate.Title, ErrNoSuitableFormat, nil)
	}

	workDir, err := os.MkdirTemp(o.cfg.TempDir, "shortsync-*")
	if err != nil {
		metrics.Acquisitions.WithLabelValues("fetch").Inc()
		return nil, newAcquisitionError(candidate.ID, candidate.Title, ErrStreamFetch, fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove temporary files", "dir", workDir, "error", err)
		}
	}()

	videoPath := filepath.Join(workDir, "video."+containerExt(video.Container))
	audioPath := filepath.Join(workDir, "audio."+containerExt(audio.Container))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer recoverInto(&err)
		return o.fetch(gctx, logger, "video", candidate.WebpageURL, video, videoPath)
	})
	g.Go(func() (err error) {
		defer recoverInto(&err)
		return o.fetch(gctx, logger, "audio", candidate.WebpageURL, audio, audioPath)
	})
	if err := g.Wait(); err != nil {
		metrics.Acquisitions.WithLabelValues("fetch").Inc()
		return nil, newAcquisitionError(candidate.ID, candidate.Title, ErrStreamFetch, err)
	}

	outputPath := OutputPath(o.cfg.OutputDir, candidate, profile)
	if _, err := os.Stat(outputPath); err == nil {
		taken := outputPath
		outputPath = DisambiguatedPath(outputPath, candidate.ID)
		logger.Warn("output file already exists, adding video id to the name",
			"existing", taken,
			"output", outputPath,
		)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		metrics.Acquisitions.WithLabelValues("transcode").Inc()
		return nil, newAcquisitionError(candidate.ID, candidate.Title, ErrTranscode, fmt.Errorf("create channel directory: %w", err))
	}

	if err := o.transcode(ctx, domain.TranscodeRequest{
		VideoPath:  videoPath,
		AudioPath:  audioPath,
		Args:       TranscodeArgs(profile),
		Format:     profile.Format,
		OutputPath: outputPath,
	}); err != nil {
		metrics.Acquisitions.WithLabelValues("transcode").Inc()
		return nil, newAcquisitionError(candidate.ID, candidate.Title, ErrTranscode, err)
	}

	metrics.Acquisitions.WithLabelValues("success").Inc()
	metrics.AcquisitionDuration.Observe(time.Since(start).Seconds())
	logger.Info("acquired video",
		"title", candidate.Title,
		"output", outputPath,
		"video_format", video.FormatID,
		"audio_format", audio.FormatID,
		"duration", time.Since(start),
	)

	return &domain.AcquisitionRecord{
		ID:         candidate.ID,
		Title:      candidate.Title,
		ChannelURL: candidate.ChannelURL,
		UploadDate: candidate.UploadDate,
		OutputPath: outputPath,
		AcquiredAt: o.now().UTC(),
	}, nil
}

func (o *Orchestrator) fetch(ctx context.Context, logger *slog.Logger, stream, url string, format domain.FormatDescriptor, dest string) error {
	if o.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
	}

	events := o.fetcher.Fetch(ctx, domain.FetchRequest{
		URL:      url,
		FormatID: format.FormatID,
		Dest:     dest,
	})

	var fetchErr error
	lastStep := -1
	for ev := range events {
		if ev.Err != nil {
			fetchErr = ev.Err
			continue
		}
		if step := int(ev.Percent) / 25; step > lastStep {
			lastStep = step
			logger.Debug("download progress", "stream", stream, "percent", ev.Percent)
		}
	}

	if fetchErr == nil {
		fetchErr = ctx.Err()
	}
	if fetchErr == nil {
		if _, err := os.Stat(dest); err != nil {
			fetchErr = fmt.Errorf("fetcher produced no file: %w", err)
		}
	}
	if fetchErr != nil {
		return fmt.Errorf("%s stream %s: %w", stream, format.FormatID, fetchErr)
	}
	return nil
}

func (o *Orchestrator) transcode(ctx context.Context, req domain.TranscodeRequest) error {
	if o.cfg.TranscodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TranscodeTimeout)
		defer cancel()
	}

	return o.transcoder.Transcode(ctx, req)
}

// TranscodeArgs returns the profile's codec arguments plus scale and frame rate
// filters for profiles that re-encode.
func TranscodeArgs(profile domain.TranscodeProfile) []string {
	args := append([]string(nil), profile.Args...)
	if profile.Passthrough {
		return args
	}

	var filters []string
	if profile.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=-2:%d", profile.Height))
	}
	if profile.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%d", profile.FPS))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	return args
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// SanitizeName replaces every non-alphanumeric character with '_'.
func SanitizeName(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}

// OutputPath builds <outputDir>/<channel>/<title>.<ext> with both names sanitized.
func OutputPath(outputDir string, candidate domain.VideoCandidate, profile domain.TranscodeProfile) string {
	channel := candidate.ChannelLabel
	if channel == "" {
		channel = path.Base(NormalizeChannelURL(candidate.ChannelURL))
	}
	title := candidate.Title
	if title == "" {
		title = candidate.ID
	}
	return filepath.Join(outputDir, SanitizeName(channel), SanitizeName(title)+"."+profile.Extension)
}

// DisambiguatedPath inserts the video id before the extension of p. Titles that
// sanitize to the same name then still get distinct files.
func DisambiguatedPath(p, id string) string {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + "_" + SanitizeName(id) + ext
}

func containerExt(container string) string {
	if container == "" {
		return "bin"
	}
	return SanitizeName(container)
}
