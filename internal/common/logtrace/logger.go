// Package logtrace configures the process-wide zerolog logger and carries
// request identifiers through contexts.
package logtrace

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger with Unix timestamps, writing JSON
// to stderr at info level.
func InitLogger() {
	Configure(os.Stderr, "info", "json")
}

// Configure replaces the global logger. level is any zerolog level name and
// falls back to info when it cannot be parsed. format "console" selects the
// human readable writer; anything else emits JSON lines.
func Configure(w io.Writer, level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
