// Package chooser asks the operator which normal videos of a channel to acquire.
package chooser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"shortsync/internal/domain"
)

const maxAttempts = 3

var ErrInvalidSelection = errors.New("invalid selection")

// Prompt implements service.Chooser over a line-oriented terminal. Channels run
// concurrently, so prompts are serialized.
type Prompt struct {
	mu  sync.Mutex
	in  io.Reader
	out io.Writer

	start sync.Once
	lines chan line
}

type line struct {
	text string
	err  error
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: in, out: out, lines: make(chan line)}
}

// readLines feeds input lines to p.lines until the reader fails. A blocked read
// cannot be interrupted, so it lives in its own goroutine for the process lifetime.
func (p *Prompt) readLines() {
	defer close(p.lines)
	r := bufio.NewReader(p.in)
	for {
		text, err := r.ReadString('\n')
		p.lines <- line{text: text, err: err}
		if err != nil {
			return
		}
	}
}

// readLine waits for the next input line or for ctx to end.
func (p *Prompt) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.readLines() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

func (p *Prompt) Choose(ctx context.Context, channelURL string, candidates []domain.VideoCandidate) ([]domain.VideoCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s has %d new normal video(s):\n", channelURL, len(candidates))
	for i, c := range candidates {
		fmt.Fprintf(p.out, "  %2d) %s  %-8s %s\n", i+1, c.UploadDate, time.Duration(c.DurationSeconds)*time.Second, c.Title)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fmt.Fprint(p.out, "Download which? [all, none, 1,3-5] (none): ")
		answer, err := p.readLine(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			fmt.Fprintln(p.out)
			return nil, ctxErr
		}
		if err != nil && (!errors.Is(err, io.EOF) || answer == "") {
			return nil, fmt.Errorf("read selection: %w", err)
		}

		indices, perr := ParseSelection(answer, len(candidates))
		if perr != nil {
			fmt.Fprintf(p.out, "%v\n", perr)
			if errors.Is(err, io.EOF) {
				return nil, perr
			}
			continue
		}

		selected := make([]domain.VideoCandidate, 0, len(indices))
		for _, i := range indices {
			selected = append(selected, candidates[i])
		}
		return selected, nil
	}

	return nil, fmt.Errorf("%w: no valid answer after %d attempts", ErrInvalidSelection, maxAttempts)
}

// ParseSelection turns an answer such as "all", "none", "2" or "1,3-5" into sorted
// zero-based indices into a list of n items. An empty answer selects nothing.
func ParseSelection(answer string, n int) ([]int, error) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch answer {
	case "", "n", "none":
		return nil, nil
	case "a", "all":
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]struct{})
	fields := strings.FieldsFunc(answer, func(r rune) bool { return r == ',' || r == ' ' })
	for _, field := range fields {
		lo, hi, isRange := strings.Cut(field, "-")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, field)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, field)
			}
		}
		if from < 1 || to > n || from > to {
			return nil, fmt.Errorf("%w: %q is outside 1-%d", ErrInvalidSelection, field, n)
		}
		for i := from; i <= to; i++ {
			seen[i-1] = struct{}{}
		}
	}

	indices := make([]int, 0, len(seen))
	for i := range seen {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices, nil
}
