package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/quidome/archivetools/pkg/createdat"
	"github.com/quidome/archivetools/pkg/dedupe"
	"github.com/quidome/archivetools/pkg/report"
	"github.com/quidome/archivetools/pkg/resolve"
	"github.com/quidome/archivetools/pkg/scan"
)

// DuplicatesOptions configures DeleteDuplicates.
type DuplicatesOptions struct {
	// Root is scanned unless File is set.
	Root string

	// File anchors the run: only its byte-identical peers in the same folder
	// are considered, and File itself is always kept.
	File string

	Mode      resolve.Mode
	Algorithm dedupe.Algorithm
	Scan      scan.Options
	Workers   int
	DryRun    bool
}

// GroupDecision is the keeper and the removable files of one group.
type GroupDecision struct {
	Hash      string         `json:"hash"`
	Size      int64          `json:"size"`
	Keeper    string         `json:"keeper"`
	Removable []string       `json:"removable"`
	Date      resolve.Result `json:"keeper_date"`
}

// DeleteDuplicates groups identical files and removes every file but the
// keeper of each group.
//
// A group's keeper is chosen before any of its files is removed. ctx is
// checked between groups and again once a group's dates are resolved, so an
// interrupted run never deletes on the strength of a partial resolution.
func DeleteDuplicates(ctx context.Context, e Engine, opts DuplicatesOptions, logger *log.Logger) (*report.Summary, []GroupDecision, error) {
	logger = orDiscard(logger)
	sum := report.New("delete-duplicates")
	defer sum.Finish()

	root := opts.Root
	var anchor *createdat.Item
	var items []*createdat.Item
	var err error

	if opts.File != "" {
		root = filepath.Dir(opts.File)
		s := opts.Scan
		s.MaxDepth = 0
		items, err = ScanItems(e, root, s)
		if err != nil {
			return sum, nil, fmt.Errorf("scan %s: %w", root, err)
		}
		anchor = findItem(items, opts.File)
		if anchor == nil {
			anchor = e.NewItem(opts.File)
			items = append(items, anchor)
		}
	} else {
		items, err = ScanItems(e, opts.Root, opts.Scan)
		if err != nil {
			return sum, nil, fmt.Errorf("scan %s: %w", opts.Root, err)
		}
	}
	sum.Add("scanned", len(items))

	groups, failures, stats, err := dedupe.Groups(ctx, items, dedupe.Options{Algorithm: opts.Algorithm, Workers: opts.Workers})
	for _, f := range failures {
		sum.Inc("errors")
		logger.Warn("could not hash file, leaving it out", "file", rel(root, f.Path), "err", f.Err)
	}
	if err != nil {
		return sum, nil, err
	}
	sum.Add("hashed", stats.Hashed)

	var decisions []GroupDecision
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return sum, decisions, err
		}

		var sel dedupe.Selection
		if anchor != nil {
			member := findItem(g.Items, anchor.Path)
			if member == nil {
				continue
			}
			sel = dedupe.SelectAnchor(ctx, g, member, opts.Mode, e)
		} else {
			sel = dedupe.SelectKeeper(ctx, g, opts.Mode, e)
		}
		if err := ctx.Err(); err != nil {
			return sum, decisions, err
		}

		sum.Inc("duplicate_sets")
		sum.Max("largest_set", len(g.Items))

		d := GroupDecision{Hash: g.Hash, Size: g.Size, Keeper: sel.Keeper.Item.Path, Date: sel.Keeper.Result}
		logger.Info("keep", "file", rel(root, d.Keeper), "copies", len(g.Items), "date_source", sel.Keeper.Result.Source)
		for _, c := range append([]dedupe.Candidate{sel.Keeper}, sel.Removable...) {
			file := rel(root, c.Item.Path)
			if !c.Result.Found {
				sum.Inc("unresolved")
				logger.Warn("no date found", "file", file)
			}
			warnFallback(logger, file, opts.Mode, c.Result)
		}

		for _, c := range sel.Removable {
			file := rel(root, c.Item.Path)
			logger.Info("delete", "file", file, "keeper", rel(root, d.Keeper), "dry_run", opts.DryRun)
			d.Removable = append(d.Removable, c.Item.Path)
			if opts.DryRun {
				sum.Inc("would_delete")
				sum.AddBytes("reclaimable", g.Size)
				continue
			}
			if err := os.Remove(c.Item.Path); err != nil {
				sum.Inc("errors")
				logger.Error("could not delete", "file", file, "err", err)
				continue
			}
			sum.Inc("deleted")
			sum.AddBytes("reclaimed", g.Size)
		}
		decisions = append(decisions, d)
	}

	if anchor != nil && len(decisions) == 0 {
		logger.Info("no duplicates found", "file", rel(root, anchor.Path))
	}
	return sum, decisions, nil
}

func findItem(items []*createdat.Item, path string) *createdat.Item {
	want := filepath.Clean(path)
	for _, it := range items {
		if filepath.Clean(it.Path) == want {
			return it
		}
	}
	return nil
}
