package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log formats accepted by --log-format.
const (
	LogConsole = "console"
	LogJSON    = "json"
)

// InitLogging points the global zerolog logger at stderr, leaving stdout to
// rendered documents. JSON output keeps style and script warnings machine
// readable.
func InitLogging(verbose bool, format string) error {
	logger, err := newLogger(os.Stderr, format)
	if err != nil {
		return err
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	return nil
}

func newLogger(w io.Writer, format string) (zerolog.Logger, error) {
	switch format {
	case "", LogConsole:
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger(), nil
	case LogJSON:
		return zerolog.New(w).With().Timestamp().Logger(), nil
	}
	return zerolog.Logger{}, fmt.Errorf("unknown log format %q, want %s or %s", format, LogConsole, LogJSON)
}
