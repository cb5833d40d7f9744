package pipeline

import (
	"context"

	"github.com/quidome/archivetools/pkg/createdat"
	"github.com/quidome/archivetools/pkg/resolve"
)

// Inspection shows every observation for a file next to the resolved date.
type Inspection struct {
	Path         string                 `json:"path"`
	Sidecars     []string               `json:"sidecars,omitempty"`
	Observations createdat.Observations `json:"observations"`
	Result       resolve.Result         `json:"resolved"`
}

// Inspect resolves paths without changing anything.
func Inspect(ctx context.Context, e Engine, paths []string, mode resolve.Mode, workers int) ([]Inspection, error) {
	items := make([]*createdat.Item, 0, len(paths))
	for _, p := range paths {
		items = append(items, e.NewItem(p))
	}

	resolved, err := ResolveAll(ctx, e, items, mode, workers)
	if err != nil {
		return nil, err
	}

	out := make([]Inspection, 0, len(resolved))
	for _, r := range resolved {
		out = append(out, Inspection{
			Path:         r.Item.Path,
			Sidecars:     r.Item.Sidecars,
			Observations: r.Item.Observations(ctx, e),
			Result:       r.Result,
		})
	}
	return out, nil
}
