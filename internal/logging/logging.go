// Package logging initializes the structured and human-readable loggers for the service.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/veridict/voiceguard-go/internal/conf"
)

var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	levelVar            slog.LevelVar
	fileWriter          io.WriteCloser
)

// Init initializes the logging system with a JSON structured logger and a
// text human-readable logger. When file logging is enabled the structured
// output also goes to a rotated log file.
func Init(settings *conf.Settings) {
	levelVar.Set(slog.LevelInfo)
	if settings != nil && settings.Debug {
		levelVar.Set(slog.LevelDebug)
	}

	structuredOut := io.Writer(os.Stdout)
	if settings != nil && settings.Main.Log.Enabled && settings.Main.Log.Path != "" {
		rotated := &lumberjack.Logger{
			Filename:   settings.Main.Log.Path,
			MaxSize:    settings.Main.Log.MaxSizeMB,
			MaxBackups: settings.Main.Log.MaxBackups,
			MaxAge:     settings.Main.Log.MaxAgeDays,
			Compress:   true,
		}
		fileWriter = rotated
		structuredOut = io.MultiWriter(os.Stdout, rotated)
	}

	structuredLogger = slog.New(slog.NewJSONHandler(structuredOut, &slog.HandlerOptions{
		Level: &levelVar,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &levelVar,
	}))

	slog.SetDefault(structuredLogger)
}

// SetLevel sets the minimum logging level for both loggers.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// Structured returns the JSON structured logger.
func Structured() *slog.Logger {
	if structuredLogger == nil {
		Init(nil)
	}
	return structuredLogger
}

// HumanReadable returns the text logger writing to stderr.
func HumanReadable() *slog.Logger {
	if humanReadableLogger == nil {
		Init(nil)
	}
	return humanReadableLogger
}

// ForService returns a structured logger scoped with a service attribute.
// Packages use this to get a named logger at init time.
func ForService(service string) *slog.Logger {
	return Structured().With("service", service)
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	if fileWriter != nil {
		return fileWriter.Close()
	}
	return nil
}
