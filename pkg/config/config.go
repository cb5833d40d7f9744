// Package config holds the settings shared by every archivetools command.
//
// Defaults are overridden by ARCHIVETOOLS_* environment variables, which may
// also come from a .env file. Command-line flags override a copy per run.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/quidome/archivetools/pkg/bucket"
	"github.com/quidome/archivetools/pkg/createdat"
	"github.com/quidome/archivetools/pkg/dedupe"
	"github.com/quidome/archivetools/pkg/probe"
	"github.com/quidome/archivetools/pkg/scan"
	"github.com/quidome/archivetools/pkg/setdates"
)

const envPrefix = "ARCHIVETOOLS_"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	PhotoExtensions   []string
	VideoExtensions   []string
	SidecarExtensions []string

	Patterns []createdat.Pattern

	MonthNames [12]string
	WeekPrefix string

	// Location interprets timestamps that carry no zone.
	Location *time.Location

	FFprobe  string
	FFmpeg   string
	ExifTool string

	ProbeTimeout     time.Duration
	ProbeConcurrency int
	ProbeRate        float64

	Workers          int
	HashAlgorithm    dedupe.Algorithm
	SidecarCacheSize int
}

func Default() Config {
	s := scan.DefaultOptions()
	sd := setdates.DefaultOptions()
	return Config{
		PhotoExtensions:   s.PhotoExtensions,
		VideoExtensions:   s.VideoExtensions,
		SidecarExtensions: []string{".xmp", ".json", ".aae", ".srt", ".thm"},
		Patterns:          createdat.DefaultPatterns(),
		MonthNames:        bucket.GermanMonthNames,
		WeekPrefix:        "KW",
		Location:          time.Local,
		FFprobe:           probe.DefaultBinary,
		FFmpeg:            sd.FFmpeg,
		ExifTool:          sd.ExifTool,
		ProbeTimeout:      probe.DefaultTimeout,
		ProbeConcurrency:  probe.DefaultConcurrency,
		Workers:           runtime.GOMAXPROCS(0),
		HashAlgorithm:     dedupe.DefaultAlgorithm,
		SidecarCacheSize:  256,
	}
}

// Load reads the given .env files (".env" when none are given; missing files
// are ignored) and applies the environment on top of Default.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv applies the variables returned by getenv on top of Default.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	get := func(key string) string { return strings.TrimSpace(getenv(envPrefix + key)) }

	var errs []error
	setString := func(key string, dst *string) {
		if v := get(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	setString("FFPROBE", &c.FFprobe)
	setString("FFMPEG", &c.FFmpeg)
	setString("EXIFTOOL", &c.ExifTool)
	setInt("PROBE_CONCURRENCY", &c.ProbeConcurrency)
	setInt("WORKERS", &c.Workers)
	setInt("SIDECAR_CACHE_SIZE", &c.SidecarCacheSize)

	if v := get("PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPROBE_TIMEOUT: %w", envPrefix, err))
		} else {
			c.ProbeTimeout = d
		}
	}
	if v := get("PROBE_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPROBE_RATE: %w", envPrefix, err))
		} else {
			c.ProbeRate = r
		}
	}
	if v := get("HASH"); v != "" {
		a, err := dedupe.ParseAlgorithm(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHASH: %w", envPrefix, err))
		} else {
			c.HashAlgorithm = a
		}
	}
	if v := get("TZ"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTZ: %w", envPrefix, err))
		} else {
			c.Location = loc
		}
	}
	if v := get("MONTH_NAMES"); v != "" {
		names, prefix, err := monthNames(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMONTH_NAMES: %w", envPrefix, err))
		} else {
			c.MonthNames = names
			if prefix != "" {
				c.WeekPrefix = prefix
			}
		}
	}
	setString("WEEK_PREFIX", &c.WeekPrefix)
	if v := get("SIDECAR_EXTENSIONS"); v != "" {
		c.SidecarExtensions = splitList(v)
	}
	if v := get("PHOTO_EXTENSIONS"); v != "" {
		c.PhotoExtensions = splitList(v)
	}
	if v := get("VIDEO_EXTENSIONS"); v != "" {
		c.VideoExtensions = splitList(v)
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c, c.Validate()
}

// monthNames accepts "german", "english" or a comma-separated list of twelve
// names. The presets also pick their week prefix.
func monthNames(v string) ([12]string, string, error) {
	switch strings.ToLower(v) {
	case "german", "de":
		return bucket.GermanMonthNames, "KW", nil
	case "english", "en":
		return bucket.EnglishMonthNames, "W", nil
	}
	parts := splitList(v)
	if len(parts) != 12 {
		return [12]string{}, "", fmt.Errorf("want 12 names, got %d", len(parts))
	}
	var out [12]string
	copy(out[:], parts)
	return out, "", nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if len(c.PhotoExtensions)+len(c.VideoExtensions) == 0 {
		errs = append(errs, errors.New("no media extensions"))
	}
	if c.Location == nil {
		errs = append(errs, errors.New("no time location"))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("probe timeout must be positive, got %s", c.ProbeTimeout))
	}
	if c.ProbeConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("probe concurrency must be positive, got %d", c.ProbeConcurrency))
	}
	if c.ProbeRate < 0 {
		errs = append(errs, fmt.Errorf("probe rate must not be negative, got %g", c.ProbeRate))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.SidecarCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("sidecar cache size must be positive, got %d", c.SidecarCacheSize))
	}
	if _, err := dedupe.ParseAlgorithm(string(c.HashAlgorithm)); err != nil {
		errs = append(errs, err)
	}
	for i, n := range c.MonthNames {
		if strings.TrimSpace(n) == "" {
			errs = append(errs, fmt.Errorf("month %d has no name", i+1))
		}
	}
	if strings.TrimSpace(c.WeekPrefix) == "" {
		errs = append(errs, errors.New("empty week prefix"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ScanOptions returns the directory walk settings.
func (c Config) ScanOptions(maxDepth int) scan.Options {
	return scan.Options{
		MaxDepth:        maxDepth,
		PhotoExtensions: c.PhotoExtensions,
		VideoExtensions: c.VideoExtensions,
	}
}

// Namer returns the bucket namer for the configured language.
func (c Config) Namer() bucket.Namer {
	return bucket.Namer{MonthNames: c.MonthNames, WeekPrefix: c.WeekPrefix}
}

// Prober returns an ffprobe runner, or nil when ffprobe is disabled with
// ARCHIVETOOLS_FFPROBE=off.
func (c Config) Prober() *probe.Prober {
	if strings.EqualFold(c.FFprobe, "off") {
		return nil
	}
	return probe.New(probe.Options{
		Binary:        c.FFprobe,
		Timeout:       c.ProbeTimeout,
		Concurrency:   c.ProbeConcurrency,
		RatePerSecond: c.ProbeRate,
	})
}

// NewEngine builds the date source engine.
func (c Config) NewEngine(logger *log.Logger) (*createdat.Engine, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	opts := createdat.Options{
		Location:          c.Location,
		PhotoExtensions:   c.PhotoExtensions,
		VideoExtensions:   c.VideoExtensions,
		SidecarExtensions: c.SidecarExtensions,
		Patterns:          c.Patterns,
		SidecarCacheSize:  c.SidecarCacheSize,
		Logger:            logger,
	}
	if p := c.Prober(); p != nil {
		opts.Prober = p
	}
	return createdat.NewEngine(opts)
}

// SetDatesOptions returns the writer settings for the configured tools.
func (c Config) SetDatesOptions() setdates.Options {
	o := setdates.DefaultOptions()
	o.ExifTool = c.ExifTool
	o.FFmpeg = c.FFmpeg
	if strings.EqualFold(o.ExifTool, "off") {
		o.ExifTool = ""
	}
	if strings.EqualFold(o.FFmpeg, "off") {
		o.FFmpeg = ""
	}
	return o
}
