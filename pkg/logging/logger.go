// Package logging holds the zerolog logger shared by the build stages.
//
// Stages read their logger from the context, so release, division, stage
// and run fields follow every line:
//
//	ctx = logging.WithRelease(ctx, "20200101")
//	ctx = logging.WithDivision(ctx, "comuni")
//	logging.FromContext(ctx).Warn().Int("defects", 3).Msg("Invalid geometries")
package logging

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger = newDefaultLogger()

// newDefaultLogger logs to stderr, in console form on a terminal. LOG_LEVEL
// and LOG_FORMAT=json are honored before the CLI installs its own logger.
func newDefaultLogger() zerolog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stderr)
	fd := os.Stderr.Fd()
	if (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("LOG_FORMAT") != "json" {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger, zerolog's global one included.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}
