// Package probe reads container creation times with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultBinary      = "ffprobe"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
)

// Options configures a Prober.
type Options struct {
	Binary  string
	Timeout time.Duration

	// Concurrency bounds the number of ffprobe processes running at once.
	Concurrency int

	// RatePerSecond limits how often ffprobe is started. Zero means unlimited.
	RatePerSecond float64
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Prober runs ffprobe. It is safe for concurrent use.
type Prober struct {
	binary  string
	timeout time.Duration
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	run     Runner
}

// New returns a Prober that executes the ffprobe binary.
func New(opts Options) *Prober {
	return NewWithRunner(opts, execRunner)
}

// NewWithRunner returns a Prober that uses run instead of os/exec.
func NewWithRunner(opts Options, run Runner) *Prober {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Prober{
		binary:  opts.Binary,
		timeout: opts.Timeout,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		limiter: rate.NewLimiter(limit, opts.Concurrency),
		run:     run,
	}
}

// CreationTime returns the creation_time tag of the container at path.
func (p *Prober) CreationTime(ctx context.Context, path string) (time.Time, bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return time.Time{}, false, err
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return time.Time{}, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.run(ctx, p.binary,
		"-v", "error",
		"-show_entries", "format_tags=creation_time:stream_tags=creation_time",
		"-of", "json",
		path,
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return time.Time{}, false, fmt.Errorf("%s timed out after %s", p.binary, p.timeout)
		}
		return time.Time{}, false, fmt.Errorf("%s: %w", p.binary, err)
	}

	tm, ok, err := ParseCreationTime(out)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s output: %w", p.binary, err)
	}
	return tm, ok, nil
}

type tags struct {
	CreationTime string `json:"creation_time"`
}

type output struct {
	Format struct {
		Tags tags `json:"tags"`
	} `json:"format"`
	Streams []struct {
		Tags tags `json:"tags"`
	} `json:"streams"`
}

// ParseCreationTime extracts the creation time from ffprobe JSON output.
//
// The format-level tag wins. Otherwise the earliest stream tag is used.
// Zero-epoch values written by some encoders (1970 and the 1904 QuickTime
// epoch) count as absent.
func ParseCreationTime(data []byte) (time.Time, bool, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return time.Time{}, false, err
	}

	if tm, ok := parseTag(out.Format.Tags.CreationTime); ok {
		return tm, true, nil
	}

	var (
		best  time.Time
		found bool
	)
	for _, s := range out.Streams {
		tm, ok := parseTag(s.Tags.CreationTime)
		if ok && (!found || tm.Before(best)) {
			best, found = tm, true
		}
	}
	return best, found, nil
}

var tagLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999Z0700",
	"2006-01-02 15:04:05",
}

func parseTag(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range tagLayouts {
		tm, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if isEpoch(tm) {
			return time.Time{}, false
		}
		return tm, true
	}
	return time.Time{}, false
}

func isEpoch(tm time.Time) bool {
	u := tm.UTC()
	if u.Year() != 1970 && u.Year() != 1904 {
		return false
	}
	return u.Month() == time.January && u.Day() == 1 && u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
