// Package report collects run counters and prints the final summary.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Summary is safe for concurrent use.
type Summary struct {
	mu sync.Mutex

	tool     string
	started  time.Time
	elapsed  time.Duration
	counts   map[string]int
	bytes    map[string]int64
	earliest time.Time
	latest   time.Time
}

func New(tool string) *Summary {
	return &Summary{
		tool:    tool,
		started: time.Now(),
		counts:  make(map[string]int),
		bytes:   make(map[string]int64),
	}
}

// Add increments counter name by n.
func (s *Summary) Add(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name] += n
}

// Inc increments counter name by one.
func (s *Summary) Inc(name string) { s.Add(name, 1) }

// Max raises counter name to n if n is larger.
func (s *Summary) Max(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.counts[name] {
		s.counts[name] = n
	}
}

// AddBytes adds n to the byte total name.
func (s *Summary) AddBytes(name string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytes[name] += n
}

// ObserveDate widens the earliest/latest range to include t.
func (s *Summary) ObserveDate(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.earliest.IsZero() || t.Before(s.earliest) {
		s.earliest = t
	}
	if s.latest.IsZero() || t.After(s.latest) {
		s.latest = t
	}
}

// Count returns the value of counter name.
func (s *Summary) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// Bytes returns the byte total name.
func (s *Summary) Bytes(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes[name]
}

// Finish freezes the elapsed time.
func (s *Summary) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.elapsed == 0 {
		s.elapsed = time.Since(s.started)
	}
}

// Lines renders the summary for humans, counters in name order.
func (s *Summary) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := []string{fmt.Sprintf("%s summary", s.tool)}
	for _, k := range sortedKeys(s.counts) {
		lines = append(lines, fmt.Sprintf("  %-20s %d", k, s.counts[k]))
	}
	for _, k := range sortedKeys(s.bytes) {
		lines = append(lines, fmt.Sprintf("  %-20s %s", k, humanize.IBytes(uint64(s.bytes[k]))))
	}
	if !s.earliest.IsZero() {
		lines = append(lines,
			fmt.Sprintf("  %-20s %s", "earliest", s.earliest.Format(time.DateTime)),
			fmt.Sprintf("  %-20s %s", "latest", s.latest.Format(time.DateTime)),
		)
	}
	if s.elapsed > 0 {
		lines = append(lines, fmt.Sprintf("  %-20s %s", "elapsed", s.elapsed.Round(time.Millisecond)))
	}
	return lines
}

// Log writes the summary as a single info record.
func (s *Summary) Log(logger *log.Logger) {
	s.mu.Lock()
	kv := []any{"tool", s.tool}
	for _, k := range sortedKeys(s.counts) {
		kv = append(kv, k, s.counts[k])
	}
	for _, k := range sortedKeys(s.bytes) {
		kv = append(kv, k, humanize.IBytes(uint64(s.bytes[k])))
	}
	if s.elapsed > 0 {
		kv = append(kv, "elapsed", s.elapsed.Round(time.Millisecond))
	}
	s.mu.Unlock()

	logger.Info("summary", kv...)
}

type jsonSummary struct {
	Tool      string           `json:"tool"`
	Counts    map[string]int   `json:"counts"`
	Bytes     map[string]int64 `json:"bytes,omitempty"`
	Earliest  *time.Time       `json:"earliest,omitempty"`
	Latest    *time.Time       `json:"latest,omitempty"`
	ElapsedMS int64            `json:"elapsed_ms"`
}

func (s *Summary) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := jsonSummary{
		Tool:      s.tool,
		Counts:    s.counts,
		ElapsedMS: s.elapsed.Milliseconds(),
	}
	if len(s.bytes) > 0 {
		out.Bytes = s.bytes
	}
	if !s.earliest.IsZero() {
		e, l := s.earliest, s.latest
		out.Earliest, out.Latest = &e, &l
	}
	return json.Marshal(out)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
