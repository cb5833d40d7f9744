// Package plan maps resolved dates to destination paths inside bucket folders.
package plan

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/quidome/archivetools/pkg/bucket"
)

// Entry is a media file with a resolved date, ready to be planned.
type Entry struct {
	SourcePath string
	Sidecars   []string
	CreatedAt  time.Time
}

// Operation represents a planned transfer from source to destination.
type Operation struct {
	SourcePath      string
	DestinationPath string
	Bucket          string
	CreatedAt       time.Time

	Sidecars []Sidecar
}

// Sidecar is a companion file that follows its media file.
type Sidecar struct {
	SourcePath      string
	DestinationPath string
}

// Planner names bucket folders for resolved dates.
type Planner struct {
	Namer         bucket.Namer
	Granularity   bucket.Granularity
	MidnightShift int
}

// Destination computes the destination path for a file based on its creation date.
//
// The path follows the pattern: <destRoot>/<bucket>/<filename>
func (p Planner) Destination(destRoot, filename string, createdAt time.Time) (path, bucketName string, err error) {
	bucketName, err = p.Namer.Name(createdAt, p.Granularity, p.MidnightShift)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(destRoot, bucketName, filename), bucketName, nil
}

// Plan computes destination paths for the entries, keeping their order.
//
// Planned paths may collide with each other or with files on disk; collisions
// are settled by the reconcile stage.
func (p Planner) Plan(destRoot string, entries []Entry) ([]Operation, error) {
	operations := make([]Operation, 0, len(entries))

	for _, e := range entries {
		dest, name, err := p.Destination(destRoot, filepath.Base(e.SourcePath), e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", e.SourcePath, err)
		}

		op := Operation{
			SourcePath: e.SourcePath,
			Bucket:     name,
			CreatedAt:  e.CreatedAt,
		}
		for _, sc := range e.Sidecars {
			op.Sidecars = append(op.Sidecars, Sidecar{SourcePath: sc})
		}
		operations = append(operations, op.WithDestination(dest))
	}

	return operations, nil
}

// WithDestination returns a copy of op that targets dest, with sidecar
// destinations renamed in lockstep.
func (op Operation) WithDestination(dest string) Operation {
	op.DestinationPath = dest
	sidecars := make([]Sidecar, len(op.Sidecars))
	for i, sc := range op.Sidecars {
		sidecars[i] = Sidecar{
			SourcePath:      sc.SourcePath,
			DestinationPath: filepath.Join(filepath.Dir(dest), SidecarName(op.SourcePath, dest, sc.SourcePath)),
		}
	}
	op.Sidecars = sidecars
	return op
}

// SuffixedName appends _N before the extension. N == 0 returns filename.
func SuffixedName(filename string, n int) string {
	if n == 0 {
		return filename
	}
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(filename, ext), n, ext)
}

// SidecarName renames a sidecar so it keeps matching its media file after the
// media file moved from mediaSrc to mediaDst.
//
// IMG_1.jpg.xmp follows IMG_1.jpg to IMG_1_2.jpg.xmp and IMG_1.xmp becomes
// IMG_1_2.xmp. Sidecars that match neither form keep their name.
func SidecarName(mediaSrc, mediaDst, sidecarSrc string) string {
	srcFile, dstFile := filepath.Base(mediaSrc), filepath.Base(mediaDst)
	name := filepath.Base(sidecarSrc)

	if rest, ok := cutPrefixFold(name, srcFile); ok {
		return dstFile + rest
	}
	srcStem := strings.TrimSuffix(srcFile, filepath.Ext(srcFile))
	dstStem := strings.TrimSuffix(dstFile, filepath.Ext(dstFile))
	if rest, ok := cutPrefixFold(name, srcStem); ok && strings.HasPrefix(rest, ".") {
		return dstStem + rest
	}
	return name
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
