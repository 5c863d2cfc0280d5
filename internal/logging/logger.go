package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/config"
)

// NewLogger creates the process logger: JSON on stdout, tagged with the
// service name from the config.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return New(os.Stdout, cfg.ServiceName, cfg.LogLevel)
}

// New builds a JSON logger on w. An empty or unknown level means info.
func New(w io.Writer, service, level string) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return ctx.Logger().Level(lvl)
}
