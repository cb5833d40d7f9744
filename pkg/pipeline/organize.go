package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/quidome/archivetools/pkg/bucket"
	"github.com/quidome/archivetools/pkg/plan"
	"github.com/quidome/archivetools/pkg/reconcile"
	"github.com/quidome/archivetools/pkg/report"
	"github.com/quidome/archivetools/pkg/resolve"
	"github.com/quidome/archivetools/pkg/scan"
	"github.com/quidome/archivetools/pkg/transfer"
)

// OrganizeOptions configures Organize.
type OrganizeOptions struct {
	Source string
	// Destination defaults to Source.
	Destination string

	Granularity   bucket.Granularity
	Mode          resolve.Mode
	MidnightShift int
	Namer         bucket.Namer

	// Rename gives files an _N suffix when a different file holds their
	// name in the bucket. Without it they are skipped.
	Rename bool
	// Copy keeps the originals.
	Copy   bool
	DryRun bool

	Scan    scan.Options
	Workers int
}

// Organize moves (or copies) every media file into the bucket folder of its
// resolved date. Unresolved files stay where they are and are reported.
func Organize(ctx context.Context, e Engine, opts OrganizeOptions, logger *log.Logger) (*report.Summary, error) {
	logger = orDiscard(logger)
	if opts.Destination == "" {
		opts.Destination = opts.Source
	}
	verb, done := "move", "moved"
	if opts.Copy {
		verb, done = "copy", "copied"
	}

	sum := report.New("organize")
	defer sum.Finish()

	items, err := ScanItems(e, opts.Source, opts.Scan)
	if err != nil {
		return sum, fmt.Errorf("scan %s: %w", opts.Source, err)
	}
	sum.Add("scanned", len(items))

	resolved, err := ResolveAll(ctx, e, items, opts.Mode, opts.Workers)
	if err != nil {
		return sum, err
	}

	entries := make([]plan.Entry, 0, len(resolved))
	for _, r := range resolved {
		if !r.Result.Found {
			sum.Inc("unresolved")
			logger.Warn("no date found, skipping", "file", rel(opts.Source, r.Item.Path))
			continue
		}
		sum.Inc("resolved")
		sum.ObserveDate(r.Result.CreatedAt)
		warnFallback(logger, rel(opts.Source, r.Item.Path), opts.Mode, r.Result)
		entries = append(entries, plan.Entry{
			SourcePath: r.Item.Path,
			Sidecars:   r.Item.Sidecars,
			CreatedAt:  r.Result.CreatedAt,
		})
	}

	planner := plan.Planner{Namer: opts.Namer, Granularity: opts.Granularity, MidnightShift: opts.MidnightShift}
	ops, err := planner.Plan(opts.Destination, entries)
	if err != nil {
		return sum, err
	}

	decisions, err := reconcile.ResolveAgainstDestination(ops, reconcile.Options{Rename: opts.Rename})
	if err != nil {
		return sum, err
	}

	var pending []plan.Operation
	for _, d := range decisions {
		file := rel(opts.Source, d.Operation.SourcePath)
		switch d.Action {
		case reconcile.ActionSkippedInPlace:
			sum.Inc("in_place")
			logger.Debug("already in place", "file", file)
		case reconcile.ActionSkippedIdentical:
			sum.Inc("skipped_identical")
			logger.Info("identical file already in bucket, skipping", "file", file, "bucket", d.Operation.Bucket)
		case reconcile.ActionSkippedExists:
			sum.Inc("skipped_exists")
			logger.Warn("different file with the same name in bucket, skipping", "file", file, "bucket", d.Operation.Bucket)
		default:
			if d.Action == reconcile.ActionTransferRenamed {
				sum.Inc("renamed")
			}
			logger.Info(verb, "file", file, "to", rel(opts.Destination, d.Operation.DestinationPath), "dry_run", opts.DryRun)
			pending = append(pending, d.Operation)
		}
	}

	if opts.DryRun {
		sum.Add("planned", len(pending))
		return sum, nil
	}

	results, err := transfer.Execute(ctx, pending, transfer.Options{Copy: opts.Copy})
	for _, r := range results {
		file := rel(opts.Source, r.Operation.SourcePath)
		if !r.Success {
			sum.Inc("errors")
			logger.Error(verb+" failed", "file", file, "err", r.Error)
			continue
		}
		sum.Inc(done)
		sum.Add("sidecars", len(r.Operation.Sidecars)-len(r.SidecarErrors))
		for _, scErr := range r.SidecarErrors {
			sum.Inc("errors")
			logger.Error("sidecar "+verb+" failed", "file", file, "err", scErr)
		}
	}
	return sum, err
}
