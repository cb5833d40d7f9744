// Package reconcile settles planned destinations against what already exists.
package reconcile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quidome/archivetools/pkg/plan"
)

const headerBytes = 64 * 1024

// Action describes what should happen for a source.
type Action string

const (
	ActionTransfer         Action = "transfer"
	ActionTransferRenamed  Action = "transfer_renamed"
	ActionSkippedIdentical Action = "skipped_identical"
	ActionSkippedExists    Action = "skipped_exists"
	ActionSkippedInPlace   Action = "skipped_in_place"
)

// Mutates reports whether the action touches the filesystem.
func (a Action) Mutates() bool {
	return a == ActionTransfer || a == ActionTransferRenamed
}

// Decision describes what should happen for a given source file.
type Decision struct {
	// Operation carries the final destination, including sidecars.
	Operation plan.Operation

	// PlannedPath is the destination before collisions were settled.
	PlannedPath string
	Action      Action
}

// Options configures ResolveAgainstDestination.
type Options struct {
	// Rename picks the next free _N name when a different file already
	// occupies the destination. Without it such files are skipped.
	Rename bool
}

// ResolveAgainstDestination checks for existing destination files.
//   - A source already at its destination is left in place.
//   - If identical content exists at the planned destination, it is skipped.
//   - If different content exists, it is renamed or skipped depending on opts.
//
// Destinations chosen earlier in ops count as taken for later ones.
func ResolveAgainstDestination(ops []plan.Operation, opts Options) ([]Decision, error) {
	decisions := make([]Decision, 0, len(ops))
	reserved := make(map[string]bool)

	for _, op := range ops {
		planned := op.DestinationPath
		destDir := filepath.Dir(planned)
		filename := filepath.Base(planned)

		d := Decision{PlannedPath: planned, Operation: op}

		if samePath(op.SourcePath, planned) {
			d.Action = ActionSkippedInPlace
			reserved[planned] = true
			decisions = append(decisions, d)
			continue
		}

		for n := 0; ; n++ {
			candidate := filepath.Join(destDir, plan.SuffixedName(filename, n))

			if reserved[candidate] {
				if !opts.Rename {
					d.Action = ActionSkippedExists
					break
				}
				continue
			}

			_, err := os.Stat(candidate)
			if err != nil {
				if !os.IsNotExist(err) {
					return nil, fmt.Errorf("stat %s: %w", candidate, err)
				}
				d.Operation = op.WithDestination(candidate)
				d.Action = ActionTransfer
				if n > 0 {
					d.Action = ActionTransferRenamed
				}
				reserved[candidate] = true
				break
			}

			identical, cmpErr := filesAreIdentical(op.SourcePath, candidate)
			if cmpErr != nil {
				return nil, cmpErr
			}
			if identical {
				d.Operation = op.WithDestination(candidate)
				d.Action = ActionSkippedIdentical
				break
			}
			if !opts.Rename {
				d.Action = ActionSkippedExists
				break
			}
		}

		decisions = append(decisions, d)
	}

	return decisions, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func filesAreIdentical(path1, path2 string) (bool, error) {
	info1, err := os.Stat(path1)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path1, err)
	}
	info2, err := os.Stat(path2)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path2, err)
	}
	if info1.Size() != info2.Size() {
		return false, nil
	}
	if os.SameFile(info1, info2) {
		return true, nil
	}

	f1, err := os.Open(path1)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path1, err)
	}
	defer f1.Close()
	f2, err := os.Open(path2)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path2, err)
	}
	defer f2.Close()

	buf1 := make([]byte, headerBytes)
	buf2 := make([]byte, headerBytes)
	for {
		n1, err1 := io.ReadFull(f1, buf1)
		n2, err2 := io.ReadFull(f2, buf2)
		if err1 != nil && err1 != io.EOF && err1 != io.ErrUnexpectedEOF {
			return false, fmt.Errorf("read %s: %w", path1, err1)
		}
		if err2 != nil && err2 != io.EOF && err2 != io.ErrUnexpectedEOF {
			return false, fmt.Errorf("read %s: %w", path2, err2)
		}
		if n1 != n2 || string(buf1[:n1]) != string(buf2[:n2]) {
			return false, nil
		}
		if err1 != nil || err2 != nil {
			return err1 != nil && err2 != nil, nil
		}
	}
}
