// Package logger provides structured logging using Zap.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init initializes the global logger for the given environment.
// "production" gets JSON output at info level; other environments get the
// console encoder at debug level. LOG_LEVEL overrides the level in both.
func Init(env string) {
	once.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		if env == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "ts"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		if lvl, ok := parseLevel(os.Getenv("LOG_LEVEL")); ok {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}

		base, err := cfg.Build()
		if err != nil {
			// Fallback to nop logger if initialization fails.
			base = zap.NewNop()
		}

		sugar = base.Sugar()
	})
}

func parseLevel(raw string) (zapcore.Level, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zapcore.InfoLevel, false
	}
	lvl, err := zapcore.ParseLevel(raw)
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

// Get returns the global sugared logger.
// If Init has not been called, it initializes a development logger.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Named returns the global logger scoped to one component, e.g. "pricesync".
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
