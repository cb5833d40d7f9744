// Package scan enumerates the media files below a root directory.
package scan

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

type Options struct {
	// MaxDepth limits recursion. -1 is unlimited, 0 is the root folder only.
	MaxDepth int

	// IncludeHidden also visits dot files and dot folders.
	IncludeHidden bool

	PhotoExtensions []string
	VideoExtensions []string
}

func DefaultOptions() Options {
	return Options{
		MaxDepth: -1,
		PhotoExtensions: []string{
			".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif", ".tif", ".tiff", ".bmp", ".dng", ".cr2", ".nef", ".arw",
		},
		VideoExtensions: []string{
			".mp4", ".mov", ".m4v", ".mkv", ".avi", ".webm", ".mts", ".m2ts", ".3gp", ".wmv",
		},
	}
}

// Record is one media file found by Scan. Path is slash-separated and
// relative to the scanned root.
type Record struct {
	Path          string    `json:"path"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	ModTime       time.Time `json:"mod_time"`
	Video         bool      `json:"video,omitempty"`
}

// Scan returns the relative paths of the media files below root.
func Scan(fsys fs.FS, root string, opts Options) ([]string, error) {
	records, err := ScanRecords(fsys, root, opts)
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(records))
	for _, r := range records {
		matches = append(matches, r.Path)
	}
	return matches, nil
}

// ScanRecords walks root and returns its media files sorted by path.
func ScanRecords(fsys fs.FS, root string, opts Options) ([]Record, error) {
	if opts.MaxDepth < -1 {
		return nil, fs.ErrInvalid
	}

	photoExts := normalizeExts(opts.PhotoExtensions)
	videoExts := normalizeExts(opts.VideoExtensions)

	var matches []Record

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel := relative(root, p)
		if rel == "." {
			return nil
		}
		if !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
			return nil
		}

		ext := strings.ToLower(path.Ext(rel))
		if !(photoExts[ext] || videoExts[ext]) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		matches = append(matches, Record{
			Path:          rel,
			FileSizeBytes: info.Size(),
			ModTime:       info.ModTime(),
			Video:         videoExts[ext],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Path < matches[j].Path
	})
	return matches, nil
}

func relative(root, p string) string {
	if root == "." {
		return p
	}
	if p == root {
		return "."
	}
	return strings.TrimPrefix(p, root+"/")
}

func normalizeExts(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		e := strings.TrimSpace(strings.ToLower(ext))
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

// depth counts the folders between the root and rel.
func depth(rel string) int {
	return strings.Count(path.Clean(rel), "/")
}
