// Package logging builds the structured logger shared by every tool.
package logging

import (
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// Verbose enables debug output.
	Verbose bool

	// Timestamps prefixes every line with the time.
	Timestamps bool

	// Prefix is printed before every message, e.g. the tool name.
	Prefix string
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *log.Logger {
	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.TimeOnly,
		Level:           level,
		Prefix:          opts.Prefix,
	})
	logger.SetStyles(Styles())
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Styles returns the level labels used on terminals.
func Styles() *log.Styles {
	styles := log.DefaultStyles()
	styles.Levels[log.DebugLevel] = label("DEBUG", "63")
	styles.Levels[log.InfoLevel] = label("INFO", "86")
	styles.Levels[log.WarnLevel] = label("WARN", "214")
	styles.Levels[log.ErrorLevel] = label("ERROR", "204")
	styles.Keys["file"] = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styles.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	return styles
}

func label(s, color string) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(s).
		Bold(true).
		MaxWidth(5).
		Foreground(lipgloss.Color(color))
}
