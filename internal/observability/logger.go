package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig selects level and output format of the process logger.
type LogConfig struct {
	Level   string
	NoColor bool
	JSON    bool
}

// InitLogger builds the process logger and installs it as log.Logger.
func InitLogger(app string, cfg LogConfig) zerolog.Logger {
	return initLogger(os.Stderr, app, cfg)
}

func initLogger(out io.Writer, app string, cfg LogConfig) zerolog.Logger {
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}
	logger := zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a config level name to a zerolog level, info when unknown.
func ParseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// OrDefault returns logger, or the global logger when nil.
func OrDefault(logger *zerolog.Logger) *zerolog.Logger {
	if logger != nil {
		return logger
	}
	return &log.Logger
}
