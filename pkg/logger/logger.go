// Package logger holds the process-wide slog instance and helpers to carry
// request-scoped loggers through context.
package logger

import (
	"log/slog"
	"os"
)

var defaultLogger *slog.Logger

func Init(env, level string) {
	lvl := slog.LevelDebug
	switch level {
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// L returns the process logger, lazily initializing a development logger so
// callers never get nil.
func L() *slog.Logger {
	if defaultLogger == nil {
		Init("development", "debug")
	}
	return defaultLogger
}

// LoggerWrapper is an alias kept for handler constructors.
func LoggerWrapper() *slog.Logger {
	return L()
}
