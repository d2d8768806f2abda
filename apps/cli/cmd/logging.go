package cmd

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newLogger returns a console logger; debug level when verbose.
func newLogger(w io.Writer, verbose, noColor bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
