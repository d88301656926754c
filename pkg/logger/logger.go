package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"mikasa-gate/internal/domain"

	"github.com/rs/zerolog"
)

// AppLogger implements the domain.Logger interface on top of zerolog
type AppLogger struct {
	logger zerolog.Logger
}

// NewLogger creates a JSON logger writing to stdout
func NewLogger(levelStr string) domain.Logger {
	return NewLoggerWithFormat(levelStr, "json")
}

// NewLoggerWithFormat creates a logger; format "console" gives human-readable output
func NewLoggerWithFormat(levelStr, format string) domain.Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return New(w, levelStr)
}

// New creates a logger writing to w. Used by tests to capture output.
func New(w io.Writer, levelStr string) domain.Logger {
	zl := zerolog.New(w).
		Level(parseLogLevel(levelStr)).
		With().
		Timestamp().
		Str("service", "mikasa-gate").
		Logger()
	return &AppLogger{logger: zl}
}

// Info logs an info message
func (l *AppLogger) Info(msg string, fields ...interface{}) {
	withFields(l.logger.Info(), fields).Msg(msg)
}

// Error logs an error message
func (l *AppLogger) Error(msg string, err error, fields ...interface{}) {
	withFields(l.logger.Error().Err(err), fields).Msg(msg)
}

// Debug logs a debug message
func (l *AppLogger) Debug(msg string, fields ...interface{}) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

// Warn logs a warning message
func (l *AppLogger) Warn(msg string, fields ...interface{}) {
	withFields(l.logger.Warn(), fields).Msg(msg)
}

// withFields attaches key/value pairs. A trailing key without a value is dropped.
func withFields(ev *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}

// parseLogLevel converts string log level to a zerolog level
func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
