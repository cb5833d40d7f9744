package createdat

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

type exifExtractor struct {
	photos map[string]bool
	loc    *time.Location
}

func (e exifExtractor) Extract(_ context.Context, item *Item) (time.Time, bool, error) {
	if !hasExt(e.photos, item.Path) {
		return time.Time{}, false, nil
	}

	f, err := os.Open(item.Path)
	if err != nil {
		return time.Time{}, false, err
	}
	defer f.Close()

	tm, ok := exifCaptureTime(f, e.loc)
	return tm, ok, nil
}

// exifCaptureTime reads the capture time from an EXIF stream.
//
// DateTimeOriginal is preferred, then DateTimeDigitized, then DateTime.
// Streams without EXIF data are not an error; they simply have no timestamp.
func exifCaptureTime(r io.Reader, loc *time.Location) (time.Time, bool) {
	x, err := exif.Decode(r)
	if err != nil {
		return time.Time{}, false
	}

	for _, tag := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		if tm, ok := exifTimeFromTag(x, tag, loc); ok {
			return tm, true
		}
	}
	return time.Time{}, false
}

func exifTimeFromTag(x *exif.Exif, tag exif.FieldName, loc *time.Location) (time.Time, bool) {
	f, err := x.Get(tag)
	if err != nil {
		return time.Time{}, false
	}

	s, err := f.StringVal()
	if err != nil {
		return time.Time{}, false
	}

	// EXIF DateTime format: "2006:01:02 15:04:05", usually without a zone.
	tm, err := time.ParseInLocation("2006:01:02 15:04:05", trimNul(s), loc)
	if err != nil {
		return time.Time{}, false
	}
	return tm, true
}

func trimNul(s string) string {
	for len(s) > 0 && (s[len(s)-1] == 0 || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
