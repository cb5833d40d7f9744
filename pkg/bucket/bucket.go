// Package bucket maps a resolved date to the folder name it is organized into.
//
// Four granularities are supported:
//
//	day    20240105
//	week   20240101-20240107 - KW01
//	month  20240101-20240131 - Januar
//	year   2024
//
// Week and month names carry the inclusive first and last calendar day of the
// bucket. Weeks follow ISO-8601 (Monday start, week 1 contains the first
// Thursday of the year).
package bucket

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Granularity is the size of a bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// DefaultMidnightShift is the shift applied when the flag is given without a value.
const DefaultMidnightShift = 3

// ErrUnknownGranularity is returned for granularities other than day, week, month and year.
var ErrUnknownGranularity = errors.New("unknown granularity")

// GermanMonthNames are the month names used by default.
var GermanMonthNames = [12]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

// EnglishMonthNames is the English alternative to GermanMonthNames.
var EnglishMonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// ParseGranularity parses a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week, Month, Year:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
}

// Namer renders bucket names. The zero value is not usable; start from DefaultNamer.
type Namer struct {
	MonthNames [12]string
	WeekPrefix string
}

// DefaultNamer returns a Namer with German month names and the "KW" week prefix.
func DefaultNamer() Namer {
	return Namer{MonthNames: GermanMonthNames, WeekPrefix: "KW"}
}

// Shift moves t to the previous calendar day when its time of day is before
// hours past midnight. A shift of 0 or less leaves t unchanged.
func Shift(t time.Time, hours int) time.Time {
	if hours <= 0 || t.Hour() >= hours {
		return t
	}
	return t.AddDate(0, 0, -1)
}

// Name returns the folder name for t under granularity g. midnightShift is
// applied first (see Shift).
func (n Namer) Name(t time.Time, g Granularity, midnightShift int) (string, error) {
	t = Shift(t, midnightShift)

	switch g {
	case Day:
		return t.Format(dayLayout), nil
	case Week:
		start := weekStart(t)
		end := start.AddDate(0, 0, 6)
		_, week := t.ISOWeek()
		return fmt.Sprintf("%s-%s - %s%02d", start.Format(dayLayout), end.Format(dayLayout), n.WeekPrefix, week), nil
	case Month:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		end := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
		return norm.NFC.String(fmt.Sprintf("%s-%s - %s", start.Format(dayLayout), end.Format(dayLayout), n.MonthNames[t.Month()-1])), nil
	case Year:
		return t.Format("2006"), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, g)
}

const dayLayout = "20060102"

var (
	reDay   = regexp.MustCompile(`^(\d{8})$`)
	reYear  = regexp.MustCompile(`^(\d{4})$`)
	reRange = regexp.MustCompile(`^(\d{8})-(\d{8}) - (.+)$`)
)

// Parse recognizes a folder name produced by Name and returns the first day of
// the bucket in loc together with its granularity.
func (n Namer) Parse(name string, loc *time.Location) (time.Time, Granularity, bool) {
	if loc == nil {
		loc = time.Local
	}
	name = norm.NFC.String(strings.TrimSpace(name))

	if m := reDay.FindStringSubmatch(name); m != nil {
		t, err := time.ParseInLocation(dayLayout, m[1], loc)
		if err != nil {
			return time.Time{}, "", false
		}
		return t, Day, true
	}
	if m := reYear.FindStringSubmatch(name); m != nil {
		t, err := time.ParseInLocation("2006", m[1], loc)
		if err != nil {
			return time.Time{}, "", false
		}
		return t, Year, true
	}
	if m := reRange.FindStringSubmatch(name); m != nil {
		start, err := time.ParseInLocation(dayLayout, m[1], loc)
		if err != nil {
			return time.Time{}, "", false
		}
		end, err := time.ParseInLocation(dayLayout, m[2], loc)
		if err != nil || end.Before(start) {
			return time.Time{}, "", false
		}
		g := Month
		if n.WeekPrefix != "" && strings.HasPrefix(m[3], n.WeekPrefix) {
			g = Week
		}
		return start, g, true
	}
	return time.Time{}, "", false
}

func weekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
