package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Config selects the log outputs.
type Config struct {
	Level string
	// Console receives colored console output; nil disables it.
	Console io.Writer
	// File receives uncolored console output; nil disables it.
	File io.Writer
	// GraylogAddress enables a GELF UDP sink when set.
	GraylogAddress string
}

// ParseLevel converts a config level name; unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds the application logger writing to every configured output.
// The returned closer releases the GELF connection, if any.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var writers []io.Writer
	if cfg.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        cfg.Console,
			TimeFormat: time.RFC3339,
		})
	}
	if cfg.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        cfg.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	var closer io.Closer = nopCloser{}
	if cfg.GraylogAddress != "" {
		gw, err := gelf.NewWriter(cfg.GraylogAddress)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create graylog writer: %w", err)
		}
		writers = append(writers, gw)
		if c, ok := any(gw).(io.Closer); ok {
			closer = c
		}
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Logger()

	logger.Info().Str("loglevel", logger.GetLevel().String()).Msg("Logging set up")
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
