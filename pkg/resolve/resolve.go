// Package resolve turns the observations gathered for a file into one date.
package resolve

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quidome/archivetools/pkg/createdat"
)

// Mode selects how observations are combined. A run uses one Mode throughout.
type Mode string

const (
	Default    Mode = "default"
	Oldest     Mode = "oldest"
	Newest     Mode = "newest"
	Exif       Mode = "exif"
	Container  Mode = "container"
	Sidecar    Mode = "sidecar"
	Filename   Mode = "filename"
	Folder     Mode = "folder"
	Filesystem Mode = "filesystem"
)

var ErrUnknownMode = errors.New("unknown resolution mode")

var aliases = map[string]Mode{
	"ffprobe":  Container,
	"metadata": Filesystem,
	"mtime":    Filesystem,
}

// Modes returns every accepted mode name.
func Modes() []Mode {
	return []Mode{Default, Oldest, Newest, Exif, Container, Sidecar, Filename, Folder, Filesystem}
}

// ParseMode accepts a mode name or one of its aliases, ignoring case.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	if m, ok := aliases[s]; ok {
		return m, nil
	}
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Source returns the single source a mode reads, if it is a single-source mode.
func (m Mode) Source() (createdat.SourceKind, bool) {
	switch m {
	case Exif:
		return createdat.SourceExif, true
	case Container:
		return createdat.SourceContainer, true
	case Sidecar:
		return createdat.SourceSidecar, true
	case Filename:
		return createdat.SourceFilename, true
	case Folder:
		return createdat.SourceFolder, true
	case Filesystem:
		return createdat.SourceFilesystem, true
	}
	return "", false
}

func (m Mode) String() string { return string(m) }

// Result is the resolved date for one file.
//
// Found is false when no source produced a date. Callers must treat that as
// unresolved and never substitute a date of their own.
type Result struct {
	CreatedAt time.Time            `json:"created_at"`
	Source    createdat.SourceKind `json:"source,omitempty"`
	Found     bool                 `json:"found"`

	// FellBack is set when a single-source mode had to use the default order.
	FellBack bool `json:"fell_back,omitempty"`
}

// Resolve combines obs under mode.
func Resolve(obs createdat.Observations, mode Mode) Result {
	switch mode {
	case Oldest:
		return extreme(obs, func(a, b time.Time) bool { return a.Before(b) })
	case Newest:
		return extreme(obs, func(a, b time.Time) bool { return a.After(b) })
	}

	if k, ok := mode.Source(); ok {
		if t, ok := obs.Get(k); ok {
			return Result{CreatedAt: t, Source: k, Found: true}
		}
		r := byPrecedence(obs)
		r.FellBack = r.Found
		return r
	}
	return byPrecedence(obs)
}

func byPrecedence(obs createdat.Observations) Result {
	for _, k := range createdat.Precedence {
		if t, ok := obs.Get(k); ok {
			return Result{CreatedAt: t, Source: k, Found: true}
		}
	}
	return Result{}
}

// extreme walks sources in precedence order and replaces the current pick
// only when better is strictly true, so ties keep the more trusted source.
func extreme(obs createdat.Observations, better func(a, b time.Time) bool) Result {
	var r Result
	for _, k := range createdat.Precedence {
		t, ok := obs.Get(k)
		if !ok {
			continue
		}
		if !r.Found || better(t, r.CreatedAt) {
			r = Result{CreatedAt: t, Source: k, Found: true}
		}
	}
	return r
}
