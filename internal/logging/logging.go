package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds the process logger. Output is JSON lines unless w is a
// terminal, in which case it is a human readable console stream. debug
// enables V(1) messages.
func New(w io.Writer, debug bool) logr.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
	zerologr.SetMaxV(1)

	zl := zerolog.New(w)
	if isTerminal(w) {
		zl = zl.Output(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zl = zl.Level(level).With().Timestamp().Logger()

	return zerologr.New(&zl)
}

// Discard returns a logger that drops everything, for tests.
func Discard() logr.Logger {
	return logr.Discard()
}

// FromContext returns the context logger, or a discarding one.
func FromContext(ctx context.Context) logr.Logger {
	if log, err := logr.FromContext(ctx); err == nil {
		return log
	}
	return logr.Discard()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
