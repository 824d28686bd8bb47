package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const logTimeFormat = "2006-01-02 15:04:05.000"

// NewLogger builds the process logger. level is a zerolog level name
// ("debug", "info", ...); empty means info. pretty switches to the
// human-readable console format.
func NewLogger(w io.Writer, level string, pretty bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: logTimeFormat}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
