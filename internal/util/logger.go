package util

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// GetLogger returns the default logger instance.
func GetLogger() *zerolog.Logger {
	once.Do(func() {
		defaultLogger = newLogger("info")
	})
	return &defaultLogger
}

// InitLogger initializes the default logger with the configured level.
// Log output goes to stderr so stdout stays clean for record output.
func InitLogger(level string) {
	once.Do(func() {
		defaultLogger = newLogger(level)
	})
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	w := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	GetLogger().Debug().Msgf(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	GetLogger().Info().Msgf(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	GetLogger().Warn().Msgf(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	GetLogger().Error().Msgf(format, args...)
}
