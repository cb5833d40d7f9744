package createdat

import (
	"context"
	"time"
)

// Prober reads the creation time embedded in a video container.
//
// It must report a failed probe as an error and a missing tag as
// (time.Time{}, false, nil).
type Prober interface {
	CreationTime(ctx context.Context, path string) (time.Time, bool, error)
}

type containerExtractor struct {
	prober Prober
	videos map[string]bool
}

func (c containerExtractor) Extract(ctx context.Context, item *Item) (time.Time, bool, error) {
	if !hasExt(c.videos, item.Path) {
		return time.Time{}, false, nil
	}
	return c.prober.CreationTime(ctx, item.Path)
}
