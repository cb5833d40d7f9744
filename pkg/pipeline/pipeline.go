// Package pipeline runs the archivetools commands: organize, set-dates,
// delete-duplicates and inspect.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/quidome/archivetools/pkg/createdat"
	"github.com/quidome/archivetools/pkg/logging"
	"github.com/quidome/archivetools/pkg/resolve"
	"github.com/quidome/archivetools/pkg/scan"
)

// Engine produces items and their observations.
type Engine interface {
	createdat.Observer
	NewItem(path string) *createdat.Item
}

// Resolved pairs an item with its resolved date.
type Resolved struct {
	Item   *createdat.Item
	Result resolve.Result
}

// ScanItems walks root and returns an item for every media file in it.
func ScanItems(e Engine, root string, opts scan.Options) ([]*createdat.Item, error) {
	records, err := scan.ScanRecords(os.DirFS(root), ".", opts)
	if err != nil {
		return nil, err
	}
	items := make([]*createdat.Item, 0, len(records))
	for _, r := range records {
		items = append(items, e.NewItem(filepath.Join(root, filepath.FromSlash(r.Path))))
	}
	return items, nil
}

// ResolveAll resolves every item under mode using up to workers goroutines.
// The result keeps the order of items.
func ResolveAll(ctx context.Context, e Engine, items []*createdat.Item, mode resolve.Mode, workers int) ([]Resolved, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]Resolved, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, it := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Resolved{Item: it, Result: resolve.Resolve(it.Observations(gctx, e), mode)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func orDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}

// warnFallback reports a file whose single-source mode found nothing and
// was resolved by the default order instead.
func warnFallback(logger *log.Logger, file string, mode resolve.Mode, r resolve.Result) {
	if r.FellBack {
		logger.Warn("mode source has no date, using default order", "file", file, "mode", mode, "source", r.Source)
	}
}

// rel returns path relative to root for log output, or path itself.
func rel(root, path string) string {
	if r, err := filepath.Rel(root, path); err == nil {
		return r
	}
	return path
}
