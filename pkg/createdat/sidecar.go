package createdat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultSidecarCacheSize = 256
	maxSidecarBytes         = 1 << 20
)

// sidecarIndex finds the sidecar files that belong to a media file.
//
// For photo.jpg with extension .xmp both photo.xmp and photo.jpg.xmp are
// candidates. Extension matching ignores case. Directory listings are cached
// so a folder of thousands of files is read once.
type sidecarIndex struct {
	exts     []string
	listings *lru.Cache[string, []string]
}

func newSidecarIndex(exts []string, size int) (*sidecarIndex, error) {
	if size <= 0 {
		size = defaultSidecarCacheSize
	}
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("sidecar cache: %w", err)
	}
	set := extSet(exts)
	idx := &sidecarIndex{listings: cache}
	for e := range set {
		idx.exts = append(idx.exts, e)
	}
	return idx, nil
}

// isSidecar reports whether path has one of the index's sidecar extensions.
func (s *sidecarIndex) isSidecar(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.exts {
		if e == ext {
			return true
		}
	}
	return false
}

func (s *sidecarIndex) find(path string) ([]string, error) {
	if len(s.exts) == 0 || s.isSidecar(path) {
		return nil, nil
	}

	dir := filepath.Dir(path)
	names, err := s.list(dir)
	if err != nil {
		return nil, err
	}

	file := filepath.Base(path)
	base := strings.TrimSuffix(file, filepath.Ext(file))

	want := make(map[string]bool, 2*len(s.exts))
	for _, e := range s.exts {
		want[strings.ToLower(base+e)] = true
		want[strings.ToLower(file+e)] = true
	}

	var out []string
	for _, name := range names {
		if name == file {
			continue
		}
		if want[strings.ToLower(name)] {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

func (s *sidecarIndex) list(dir string) ([]string, error) {
	if names, ok := s.listings.Get(dir); ok {
		return names, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	s.listings.Add(dir, names)
	return names, nil
}

type sidecarExtractor struct {
	loc *time.Location
}

// Extract returns the earliest timestamp found across the item's sidecars.
// A sidecar without an embedded date contributes its modification time.
func (s sidecarExtractor) Extract(_ context.Context, item *Item) (time.Time, bool, error) {
	var (
		best  time.Time
		found bool
		errs  []error
	)
	for _, p := range item.Sidecars {
		tm, ok, err := sidecarTime(p, s.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok && (!found || tm.Before(best)) {
			best, found = tm, true
		}
	}
	if !found && len(errs) > 0 {
		return time.Time{}, false, errs[0]
	}
	return best, found, nil
}

func sidecarTime(path string, loc *time.Location) (time.Time, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSidecarBytes))
	if err != nil {
		return time.Time{}, false, err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if tm, ok := takeoutTime(data); ok {
			return tm, true, nil
		}
	}
	if tm, ok := embeddedTime(data, loc); ok {
		return tm, true, nil
	}

	info, err := f.Stat()
	if err != nil {
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}

type takeoutTimestamp struct {
	Timestamp string `json:"timestamp"`
}

type takeoutMetadata struct {
	PhotoTakenTime *takeoutTimestamp `json:"photoTakenTime"`
	CreationTime   *takeoutTimestamp `json:"creationTime"`
}

// takeoutTime reads the unix timestamps written by photo export services.
func takeoutTime(data []byte) (time.Time, bool) {
	var md takeoutMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return time.Time{}, false
	}
	for _, ts := range []*takeoutTimestamp{md.PhotoTakenTime, md.CreationTime} {
		if ts == nil || ts.Timestamp == "" {
			continue
		}
		sec, err := strconv.ParseInt(ts.Timestamp, 10, 64)
		if err != nil || sec <= 0 {
			continue
		}
		return time.Unix(sec, 0), true
	}
	return time.Time{}, false
}

var embeddedDateRe = regexp.MustCompile(`(\d{4})[-:](\d{2})[-:](\d{2})[T ](\d{2}):(\d{2}):(\d{2})(?:\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)

// embeddedTime scans text sidecars such as XMP for the earliest date-like
// value on a line mentioning a date.
func embeddedTime(data []byte, loc *time.Location) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 64*1024), maxSidecarBytes)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(strings.ToLower(line), "date") {
			continue
		}
		for _, m := range embeddedDateRe.FindAllStringSubmatch(line, -1) {
			tm, ok := parseEmbedded(m, loc)
			if ok && (!found || tm.Before(best)) {
				best, found = tm, true
			}
		}
	}
	return best, found
}

func parseEmbedded(m []string, loc *time.Location) (time.Time, bool) {
	zone := loc
	if z := m[7]; z != "" {
		if z == "Z" {
			zone = time.UTC
		} else {
			off, err := time.Parse("-07:00", normalizeOffset(z))
			if err != nil {
				return time.Time{}, false
			}
			_, secs := off.Zone()
			zone = time.FixedZone(z, secs)
		}
	}
	return dateFromParts(m[1:7], zone)
}

func normalizeOffset(z string) string {
	if len(z) == 5 {
		return z[:3] + ":" + z[3:]
	}
	return z
}
