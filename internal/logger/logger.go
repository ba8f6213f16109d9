// Package logger configures the process-wide zerolog logger from LoggingConfig.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"collegovibe/internal/config"
)

// Logger is the base logger every component derives from.
var Logger zerolog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init applies cfg to the global logger. The returned closer releases a log file
// when OutputPath names one.
func Init(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	switch cfg.OutputPath {
	case "", "stdout":
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out, closer = f, f
	}

	Logger = New(out, cfg.Format)
	log.Logger = Logger
	return closer, nil
}

// New builds a logger writing JSON, or console text when format is "text".
func New(out io.Writer, format string) zerolog.Logger {
	if format == "text" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
