// Package logging builds the zerolog logger used by the rescheduler.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Format names accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Field names shared by every component.
const (
	FieldTaskID = "task_id"
	FieldCount  = "count"
	FieldKind   = "kind"
)

// New returns a logger writing to w. Writes are serialised, so w need not
// be safe for concurrent use. Console output is human readable;
// json keeps events structured for collectors.
func New(w io.Writer, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	// Events are written from concurrent update goroutines.
	var out io.Writer = zerolog.SyncWriter(w)
	if format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat, NoColor: true}
	}
	return zerolog.New(out).Level(ParseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, returning def for
// anything it does not recognise.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return def
	}
}
