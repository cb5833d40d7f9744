package createdat

import (
	"context"
	"os"
	"time"
)

// filesystemExtractor reports the earlier of the file's birth time and its
// modification time. Birth time is only used where the platform records it.
type filesystemExtractor struct{}

func (filesystemExtractor) Extract(_ context.Context, item *Item) (time.Time, bool, error) {
	info, err := os.Stat(item.Path)
	if err != nil {
		return time.Time{}, false, err
	}

	tm := info.ModTime()
	if bt, ok := birthTime(item.Path, info); ok && bt.Before(tm) {
		tm = bt
	}
	return tm, !tm.IsZero(), nil
}
