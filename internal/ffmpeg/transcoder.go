// Package ffmpeg muxes a downloaded video and audio stream into one output file.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"shortsync/internal/domain"
)

// Transcoder implements service.Transcoder with the ffmpeg binary.
type Transcoder struct {
	path   string
	logger *slog.Logger
}

func New(path string, logger *slog.Logger) *Transcoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &Transcoder{path: path, logger: logger.With("component", "ffmpeg")}
}

// Transcode writes into a pending file next to req.OutputPath and renames it into
// place only when ffmpeg succeeds, so a failed run never leaves a partial output.
func (t *Transcoder) Transcode(ctx context.Context, req domain.TranscodeRequest) error {
	pending, err := renameio.NewPendingFile(req.OutputPath, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending output: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			t.logger.Debug("cleanup pending output", "path", pending.Name(), "error", err)
		}
	}()

	args := Args(req, pending.Name())
	cmd := exec.CommandContext(ctx, t.path, args...) // #nosec G204
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 10 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	t.logger.Debug("running ffmpeg", "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}

	t.logger.Debug("ffmpeg finished", "output", req.OutputPath, "duration", time.Since(start))
	return nil
}

// Args builds the ffmpeg command line: video from the first input, audio from the
// second, then the profile arguments and an explicit muxer for output.
func Args(req domain.TranscodeRequest, output string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", req.VideoPath,
		"-i", req.AudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
	}
	args = append(args, req.Args...)
	if req.Format != "" {
		args = append(args, "-f", req.Format)
	}
	return append(args, output)
}
