package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/quidome/archivetools/pkg/createdat"
	"github.com/quidome/archivetools/pkg/report"
	"github.com/quidome/archivetools/pkg/resolve"
	"github.com/quidome/archivetools/pkg/scan"
	"github.com/quidome/archivetools/pkg/setdates"
)

// SetDatesOptions configures SetDates.
type SetDatesOptions struct {
	// Root is scanned unless File is set.
	Root string
	File string

	Mode    resolve.Mode
	Scan    scan.Options
	Workers int
	Writer  setdates.Options
}

// SetDates writes each file's resolved date into its metadata and
// timestamps. Unresolved files are reported and left untouched.
func SetDates(ctx context.Context, e Engine, opts SetDatesOptions, logger *log.Logger) (*report.Summary, error) {
	logger = orDiscard(logger)
	sum := report.New("set-dates")
	defer sum.Finish()

	root := opts.Root
	var items []*createdat.Item
	if opts.File != "" {
		root = filepath.Dir(opts.File)
		items = []*createdat.Item{e.NewItem(opts.File)}
	} else {
		var err error
		items, err = ScanItems(e, opts.Root, opts.Scan)
		if err != nil {
			return sum, fmt.Errorf("scan %s: %w", opts.Root, err)
		}
	}
	sum.Add("processed", len(items))

	resolved, err := ResolveAll(ctx, e, items, opts.Mode, opts.Workers)
	if err != nil {
		return sum, err
	}

	w := setdates.New(opts.Writer)
	for _, r := range resolved {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		file := rel(root, r.Item.Path)
		if !r.Result.Found {
			sum.Inc("unresolved")
			logger.Warn("no date found, skipping", "file", file)
			continue
		}

		warnFallback(logger, file, opts.Mode, r.Result)

		out := w.Apply(ctx, r.Item.Path, r.Item.Sidecars, r.Result.CreatedAt)
		for _, a := range out.Actions {
			sum.Inc(string(a))
		}
		for _, err := range out.Errors {
			sum.Inc("errors")
			logger.Error("could not set date", "file", file, "err", err)
		}
		if out.Changed() && len(out.Errors) == 0 {
			sum.Inc("updated")
			sum.ObserveDate(r.Result.CreatedAt)
		}
		logger.Info("set date", "file", file,
			"date", r.Result.CreatedAt.Format("2006-01-02 15:04:05"),
			"source", r.Result.Source,
			"actions", out.Actions,
			"dry_run", opts.Writer.DryRun,
		)
	}
	return sum, nil
}
