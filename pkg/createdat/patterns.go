package createdat

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quidome/archivetools/pkg/bucket"
	"golang.org/x/text/unicode/norm"
)

// Pattern recognizes a timestamp embedded in a file or folder name.
//
// Expr must capture year, month and day, optionally followed by hour, minute
// and second.
type Pattern struct {
	Name string
	Expr *regexp.Regexp
}

// DefaultPatterns returns the filename patterns in priority order.
//
// Digit runs must stand on their own: 20240102 inside 1202401023 does not match.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "YYYY_MM_DD_HH_MM_SS", Expr: regexp.MustCompile(`(?:^|\D)(\d{4})_(\d{2})_(\d{2})_(\d{2})_(\d{2})_(\d{2})(?:\D|$)`)},
		{Name: "YYYY-MM-DD HH.MM.SS", Expr: regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})[ _](\d{2})\.(\d{2})\.(\d{2})(?:\D|$)`)},
		{Name: "YYYY-MM-DD-HH-MM-SS", Expr: regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})-(\d{2})(?:\D|$)`)},
		{Name: "YYYYMMDD_HHMMSS", Expr: regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})[_-](\d{2})(\d{2})(\d{2})\d{0,3}(?:\D|$)`)},
		{Name: "YYYY-MM-DD", Expr: regexp.MustCompile(`(?:^|\D)(\d{4})[-._](\d{2})[-._](\d{2})(?:\D|$)`)},
		{Name: "YYYYMMDD", Expr: regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})(?:\D|$)`)},
	}
}

// MatchPatterns returns the timestamp of the first pattern that matches name
// with a valid calendar date. Zone-less values are interpreted in loc.
func MatchPatterns(patterns []Pattern, name string, loc *time.Location) (time.Time, bool) {
	name = norm.NFC.String(name)
	for _, p := range patterns {
		m := p.Expr.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if tm, ok := dateFromParts(m[1:], loc); ok {
			return tm, true
		}
	}
	return time.Time{}, false
}

const (
	minYear = 1900
	maxYear = 2099
)

// dateFromParts builds a time from year, month, day[, hour, minute, second]
// and rejects values that time.Date would normalize.
func dateFromParts(parts []string, loc *time.Location) (time.Time, bool) {
	if len(parts) < 3 {
		return time.Time{}, false
	}
	n := [6]int{}
	for i := 0; i < len(parts) && i < 6; i++ {
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return time.Time{}, false
		}
		n[i] = v
	}
	return validDate(n[0], n[1], n[2], n[3], n[4], n[5], 0, loc)
}

func inYearRange(y int) bool { return y >= minYear && y <= maxYear }

func validDate(y, mo, d, h, mi, s, ns int, loc *time.Location) (time.Time, bool) {
	if !inYearRange(y) || h > 23 || mi > 59 || s > 59 {
		return time.Time{}, false
	}
	tm := time.Date(y, time.Month(mo), d, h, mi, s, ns, loc)
	if tm.Year() != y || int(tm.Month()) != mo || tm.Day() != d {
		return time.Time{}, false
	}
	return tm, true
}

type filenameExtractor struct {
	patterns []Pattern
	loc      *time.Location
}

func (f filenameExtractor) Extract(_ context.Context, item *Item) (time.Time, bool, error) {
	name := filepath.Base(item.Path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	tm, ok := MatchPatterns(f.patterns, name, f.loc)
	return tm, ok, nil
}

// folderExtractor reads the parent folder name. Bucket names written by the
// organizer are recognized before the general filename patterns.
type folderExtractor struct {
	namer    bucket.Namer
	patterns []Pattern
	loc      *time.Location
}

func newFolderExtractor(patterns []Pattern, loc *time.Location) folderExtractor {
	return folderExtractor{namer: bucket.DefaultNamer(), patterns: patterns, loc: loc}
}

func (f folderExtractor) Extract(_ context.Context, item *Item) (time.Time, bool, error) {
	dir := filepath.Base(filepath.Dir(item.Path))
	if dir == "." || dir == string(filepath.Separator) {
		return time.Time{}, false, nil
	}
	if tm, _, ok := f.namer.Parse(dir, f.loc); ok && inYearRange(tm.Year()) {
		return tm, true, nil
	}
	tm, ok := MatchPatterns(f.patterns, dir, f.loc)
	return tm, ok, nil
}
