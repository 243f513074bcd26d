package cli

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/ehr/vitalscores/internal/config"
)

// NewLogger builds the process logger. Console output is used in development
// or when LOG_FORMAT=console, JSON lines otherwise.
func NewLogger(cfg *config.Config, w io.Writer) (zerolog.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), err
	}
	out := w
	if cfg.ResolvedLogFormat() == "console" {
		out = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
