package createdat

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// SourceKind describes where a timestamp was derived from.
type SourceKind string

const (
	SourceExif       SourceKind = "exif"
	SourceContainer  SourceKind = "container"
	SourceSidecar    SourceKind = "sidecar"
	SourceFilename   SourceKind = "filename"
	SourceFolder     SourceKind = "folder"
	SourceFilesystem SourceKind = "filesystem"
)

// Precedence lists every source from most to least trustworthy.
//
// Embedded capture metadata comes first; filesystem timestamps come last since
// copies and transfers rewrite them.
var Precedence = []SourceKind{
	SourceContainer,
	SourceExif,
	SourceFilename,
	SourceFolder,
	SourceSidecar,
	SourceFilesystem,
}

// Rank returns the position of k in Precedence. Lower is more trustworthy.
// Unknown kinds rank after every known one.
func (k SourceKind) Rank() int {
	for i, p := range Precedence {
		if p == k {
			return i
		}
	}
	return len(Precedence)
}

// Observation is one timestamp reported by one source.
type Observation struct {
	Source SourceKind `json:"source"`
	Time   time.Time  `json:"time"`
}

// Observations holds at most one Observation per source, in Precedence order.
type Observations []Observation

// Get returns the timestamp reported by source k.
func (o Observations) Get(k SourceKind) (time.Time, bool) {
	for _, obs := range o {
		if obs.Source == k {
			return obs.Time, true
		}
	}
	return time.Time{}, false
}

// Extractor reads a single timestamp source for a file.
//
// Implementations return (t, true, nil) when a timestamp is found and
// (time.Time{}, false, nil) when the source simply has none. A non-nil error
// means the source could not be read; the Engine logs it and treats the source
// as absent.
type Extractor interface {
	Extract(ctx context.Context, item *Item) (time.Time, bool, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, item *Item) (time.Time, bool, error)

func (f ExtractorFunc) Extract(ctx context.Context, item *Item) (time.Time, bool, error) {
	return f(ctx, item)
}

// Observer produces the observations for a file.
type Observer interface {
	Observe(ctx context.Context, item *Item) Observations
}

// Item is a media file together with the sidecar files that travel with it.
//
// Its observations are computed on first use and reused for the lifetime of the
// item, so resolution and duplicate keeper selection see the same values.
// A computation cut short by a canceled context is never kept.
type Item struct {
	Path     string
	Sidecars []string

	mu   sync.Mutex
	done bool
	obs  Observations
}

// NewItem returns an Item for path with the given sidecars.
func NewItem(path string, sidecars []string) *Item {
	return &Item{Path: path, Sidecars: sidecars}
}

// Observations returns the item's observations, asking o until one call
// completes with ctx still live.
func (it *Item) Observations(ctx context.Context, o Observer) Observations {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.done {
		return it.obs
	}
	obs := o.Observe(ctx, it)
	if ctx.Err() != nil {
		return obs
	}
	it.obs, it.done = obs, true
	return obs
}

// Options configures an Engine.
type Options struct {
	// Location is used for timestamps that carry no zone.
	// If nil, time.Local is used.
	Location *time.Location

	PhotoExtensions   []string
	VideoExtensions   []string
	SidecarExtensions []string

	// Patterns are tried against filenames and folder names in order.
	// If nil, DefaultPatterns is used.
	Patterns []Pattern

	// Prober reads container creation times. If nil, the container source is
	// never available.
	Prober Prober

	// SidecarCacheSize bounds the number of directory listings kept for
	// sidecar lookups. Defaults to 256.
	SidecarCacheSize int

	// Extractors overrides entries of the default extractor table.
	// A nil Extractor disables its source.
	Extractors map[SourceKind]Extractor

	// Logger receives source-unavailable warnings. If nil, they are discarded.
	Logger *log.Logger
}

// Engine runs the extractor table for files.
//
// An Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	table    map[SourceKind]Extractor
	sidecars *sidecarIndex
	loc      *time.Location
	log      *log.Logger
}

// NewEngine builds an Engine from opts.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Patterns == nil {
		opts.Patterns = DefaultPatterns()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	index, err := newSidecarIndex(opts.SidecarExtensions, opts.SidecarCacheSize)
	if err != nil {
		return nil, err
	}

	table := map[SourceKind]Extractor{
		SourceExif:       exifExtractor{photos: extSet(opts.PhotoExtensions), loc: opts.Location},
		SourceSidecar:    sidecarExtractor{loc: opts.Location},
		SourceFilename:   filenameExtractor{patterns: opts.Patterns, loc: opts.Location},
		SourceFolder:     newFolderExtractor(opts.Patterns, opts.Location),
		SourceFilesystem: filesystemExtractor{},
	}
	if opts.Prober != nil {
		table[SourceContainer] = containerExtractor{prober: opts.Prober, videos: extSet(opts.VideoExtensions)}
	}
	for k, ex := range opts.Extractors {
		if ex == nil {
			delete(table, k)
			continue
		}
		table[k] = ex
	}

	return &Engine{table: table, sidecars: index, loc: opts.Location, log: opts.Logger}, nil
}

// NewItem returns an Item for path with its sidecar files attached.
func (e *Engine) NewItem(path string) *Item {
	sidecars, err := e.sidecars.find(path)
	if err != nil {
		e.log.Warn("could not list sidecar files", "file", filepath.Base(path), "err", err)
	}
	return NewItem(path, sidecars)
}

// Observe runs every extractor for item in Precedence order. Every time is
// returned in the engine's Location so that day and hour arithmetic on it is
// local, whatever zone the source reported.
//
// A canceled ctx stops the run early; the caller must not treat the result as
// complete.
func (e *Engine) Observe(ctx context.Context, item *Item) Observations {
	var out Observations
	for _, kind := range Precedence {
		ex, ok := e.table[kind]
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		t, found, err := ex.Extract(ctx, item)
		if err != nil {
			e.log.Warn("date source unavailable", "file", filepath.Base(item.Path), "source", kind, "err", err)
			continue
		}
		if !found || t.IsZero() {
			continue
		}
		out = append(out, Observation{Source: kind, Time: t.In(e.loc)})
	}
	return out
}

func extSet(exts []string) map[string]bool {
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

func hasExt(set map[string]bool, path string) bool {
	return set[strings.ToLower(filepath.Ext(path))]
}
