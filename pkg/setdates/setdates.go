// Package setdates writes a resolved date back into files.
//
// The date is re-embedded into EXIF (exiftool) and video containers (ffmpeg
// remux) where the format allows, then applied to the file's access and
// modification times and to those of its sidecars.
package setdates

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Action names one write performed (or planned) on a file.
type Action string

const (
	ActionExif      Action = "exif"
	ActionContainer Action = "container"
	ActionFileTimes Action = "file_times"
	ActionUnchanged Action = "unchanged"
	ActionSidecar   Action = "sidecar_times"
)

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Options configures a Writer.
type Options struct {
	ExifTool string
	FFmpeg   string

	// ExifExtensions and ContainerExtensions select the formats whose
	// embedded metadata is rewritten. Empty disables that step.
	ExifExtensions      []string
	ContainerExtensions []string

	// Force rewrites file times even when they already match.
	Force bool

	// DryRun reports the actions without touching any file.
	DryRun bool

	Runner Runner
}

// DefaultOptions returns the tool names and formats used by the CLI.
func DefaultOptions() Options {
	return Options{
		ExifTool:            "exiftool",
		FFmpeg:              "ffmpeg",
		ExifExtensions:      []string{".jpg", ".jpeg", ".tif", ".tiff"},
		ContainerExtensions: []string{".mp4", ".mov", ".m4v"},
		Runner:              ExecRunner{},
	}
}

// Outcome describes what happened to one file.
type Outcome struct {
	Path     string
	Date     time.Time
	Actions  []Action
	Sidecars int
	Errors   []error
}

// Changed reports whether anything was (or would be) written.
func (o Outcome) Changed() bool {
	for _, a := range o.Actions {
		if a != ActionUnchanged {
			return true
		}
	}
	return false
}

// Writer applies dates to files.
type Writer struct {
	opts          Options
	exifExts      map[string]bool
	containerExts map[string]bool
}

func New(opts Options) *Writer {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &Writer{
		opts:          opts,
		exifExts:      lowerSet(opts.ExifExtensions),
		containerExts: lowerSet(opts.ContainerExtensions),
	}
}

// Apply writes date into path and its sidecars.
//
// Embedded metadata is written first, then file times, then sidecar times.
// A failed step is recorded in the outcome and does not stop later steps.
func (w *Writer) Apply(ctx context.Context, path string, sidecars []string, date time.Time) Outcome {
	out := Outcome{Path: path, Date: date}
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case w.exifExts[ext] && w.opts.ExifTool != "":
		out.Actions = append(out.Actions, ActionExif)
		if !w.opts.DryRun {
			if err := w.writeExif(ctx, path, date); err != nil {
				out.Errors = append(out.Errors, err)
			}
		}
	case w.containerExts[ext] && w.opts.FFmpeg != "":
		out.Actions = append(out.Actions, ActionContainer)
		if !w.opts.DryRun {
			if err := w.writeContainer(ctx, path, date); err != nil {
				out.Errors = append(out.Errors, err)
			}
		}
	}

	needsTimes, err := w.needsTimes(path, date)
	if err != nil {
		out.Errors = append(out.Errors, err)
	}
	// Re-embedding rewrites the file and with it the modification time.
	if needsTimes || len(out.Actions) > 0 {
		out.Actions = append(out.Actions, ActionFileTimes)
		if !w.opts.DryRun {
			if err := os.Chtimes(path, date, date); err != nil {
				out.Errors = append(out.Errors, fmt.Errorf("set times: %w", err))
			}
		}
	} else {
		out.Actions = append(out.Actions, ActionUnchanged)
	}

	for _, sc := range sidecars {
		if !w.opts.DryRun {
			if err := os.Chtimes(sc, date, date); err != nil {
				out.Errors = append(out.Errors, fmt.Errorf("sidecar %s: %w", filepath.Base(sc), err))
				continue
			}
		}
		out.Sidecars++
	}
	if out.Sidecars > 0 {
		out.Actions = append(out.Actions, ActionSidecar)
	}
	return out
}

func (w *Writer) needsTimes(path string, date time.Time) (bool, error) {
	if w.opts.Force {
		return true, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat: %w", err)
	}
	return !st.ModTime().Truncate(time.Second).Equal(date.Truncate(time.Second)), nil
}

// ExifArgs returns the exiftool arguments that set every date tag of path.
func ExifArgs(path string, date time.Time) []string {
	return []string{
		"-q",
		"-overwrite_original",
		"-AllDates=" + date.Format("2006:01:02 15:04:05"),
		path,
	}
}

// ContainerArgs returns the ffmpeg arguments that remux in into tmp with a
// new creation_time and no re-encoding.
func ContainerArgs(in, tmp string, date time.Time) []string {
	return []string{
		"-y", "-v", "error",
		"-i", in,
		"-map", "0",
		"-codec", "copy",
		"-metadata", "creation_time=" + date.UTC().Format(time.RFC3339),
		tmp,
	}
}

func (w *Writer) writeExif(ctx context.Context, path string, date time.Time) error {
	if err := w.opts.Runner.Run(ctx, w.opts.ExifTool, ExifArgs(path, date)...); err != nil {
		return fmt.Errorf("write exif: %w", err)
	}
	return nil
}

func (w *Writer) writeContainer(ctx context.Context, path string, date time.Time) error {
	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + ".archivetools-tmp" + ext

	if err := w.opts.Runner.Run(ctx, w.opts.FFmpeg, ContainerArgs(path, tmp, date)...); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write container: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace container: %w", err)
	}
	return nil
}

func lowerSet(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}
