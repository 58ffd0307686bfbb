package log

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"betsync/internal/config"
)

type Logger = zerolog.Logger

func NewLogger(cfg config.Config) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	var l zerolog.Logger
	if cfg.Logging.Pretty {
		l = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = log.Logger
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return l.With().Str("exchange", cfg.Exchange.ID).Logger()
}

// Nop discards everything; used by tests and by library callers without a logger.
func Nop() Logger { return zerolog.Nop() }
