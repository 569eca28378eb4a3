// Package logutil builds the zerolog loggers used by the binaries.
package logutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger on w at the named level. An empty level is
// info; "json" output skips the console formatting.
func New(w io.Writer, level string, json bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), err
		}
	}
	out := w
	if !json {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// Stderr is New(os.Stderr, level, false), falling back to info on a bad
// level name.
func Stderr(level string) zerolog.Logger {
	l, err := New(os.Stderr, level, false)
	if err != nil {
		l, _ = New(os.Stderr, "info", false)
		l.Warn().Str("level", level).Msg("unknown log level, using info")
	}
	return l
}
