// Package ytdlp lists channel tabs and downloads single formats through the yt-dlp
// command line tool.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"shortsync/internal/domain"
)

type Config struct {
	Path           string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client implements service.Lister and service.Fetcher.
type Client struct {
	path           string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	path := cfg.Path
	if path == "" {
		path = "yt-dlp"
	}
	return &Client{
		path:           path,
		maxAttempts:    max(1, cfg.MaxAttempts),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "ytdlp"),
	}
}

// ListError reports a tab that could not be listed.
type ListError struct {
	TabURL string
	Stderr string
	Err    error
}

func (e *ListError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("yt-dlp list %s: %v", e.TabURL, e.Err)
	}
	return fmt.Sprintf("yt-dlp list %s: %v: %s", e.TabURL, e.Err, e.Stderr)
}

func (e *ListError) Unwrap() error { return e.Err }

// List extracts up to maxItems entries of a channel tab, newest first. Entries
// yt-dlp could not extract are skipped.
func (c *Client) List(ctx context.Context, tabURL string, maxItems int) ([]domain.ListingEntry, error) {
	args := []string{"-J", "--no-warnings", "--ignore-errors"}
	if maxItems > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(maxItems))
	}
	args = append(args, tabURL)

	var (
		doc *playlist
		err error
	)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		doc, err = c.dump(ctx, tabURL, args)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt == c.maxAttempts {
			return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("listing failed, retrying",
			"tab", tabURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	entries := make([]domain.ListingEntry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		if e == nil || e.Type == "playlist" {
			continue
		}
		entries = append(entries, e.toDomain())
	}

	c.logger.Debug("listed tab", "tab", tabURL, "entries", len(entries))
	return entries, nil
}

func (c *Client) dump(ctx context.Context, tabURL string, args []string) (*playlist, error) {
	cmd := exec.CommandContext(ctx, c.path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// With --ignore-errors yt-dlp exits non-zero when single entries fail but
	// still prints the document.
	var doc playlist
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &doc); err == nil {
			if runErr != nil {
				c.logger.Warn("some entries could not be extracted", "tab", tabURL, "stderr", lastLine(stderr.String()))
			}
			return &doc, nil
		} else if runErr == nil {
			return nil, &ListError{TabURL: tabURL, Err: fmt.Errorf("decode output: %w", err)}
		}
	}

	if runErr == nil {
		return &doc, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ListError{TabURL: tabURL, Err: ctxErr}
	}
	return nil, &ListError{TabURL: tabURL, Stderr: lastLine(stderr.String()), Err: runErr}
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff * time.Duration(1<<(attempt-1))
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// Fetch downloads one format of req.URL to req.Dest. The caller must drain the
// returned channel until it is closed.
func (c *Client) Fetch(ctx context.Context, req domain.FetchRequest) <-chan domain.FetchEvent {
	events := make(chan domain.FetchEvent)

	go func() {
		defer close(events)
		if err := c.fetch(ctx, req, events); err != nil {
			events <- domain.FetchEvent{Err: err}
		}
	}()

	return events
}

func (c *Client) fetch(ctx context.Context, req domain.FetchRequest, events chan<- domain.FetchEvent) error {
	args := []string{
		"-f", req.FormatID,
		"-o", escapeTemplate(req.Dest),
		"--no-part",
		"--force-overwrites",
		"--no-warnings",
		"--newline",
		"--progress",
		"--progress-template", "download:%(progress._percent_str)s",
		req.URL,
	}

	cmd := exec.CommandContext(ctx, c.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	last := -1.0
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		m := percentPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		p, err := strconv.ParseFloat(m[1], 64)
		if err != nil || p <= last {
			continue
		}
		last = min(p, 100)
		select {
		case events <- domain.FetchEvent{Percent: last}:
		case <-ctx.Done():
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("yt-dlp format %s: %w: %s", req.FormatID, err, lastLine(stderr.String()))
		}
		return fmt.Errorf("yt-dlp format %s: %w", req.FormatID, err)
	}
	return nil
}

// escapeTemplate makes path literal for yt-dlp's output template syntax.
func escapeTemplate(path string) string {
	return strings.ReplaceAll(path, "%", "%%")
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
