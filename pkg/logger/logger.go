// Package logger provides the process-wide structured logger.
//
// JSON output for the gateway and batch tools, console output for
// interactive use. Components receive a *zap.Logger explicitly; this package
// only owns construction and the global fallback.
package logger

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.RWMutex
	global      = zap.NewNop()
	atomicLevel = zap.NewAtomicLevel()
)

// Init builds the global logger.
// level: debug, info, warn, error
// format: json or console
func Init(level, format string) (*zap.Logger, error) {
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = atomicLevel

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return l, nil
}

// InitWriter builds a JSON logger writing to w. The review client uses it to
// keep log lines out of the terminal UI.
func InitWriter(level string, w io.Writer) (*zap.Logger, error) {
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		atomicLevel,
	)
	l := zap.New(core)
	mu.Lock()
	global = l
	mu.Unlock()
	return l, nil
}

// SetLevel dynamically changes the log level.
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// L returns the global logger. It is a no-op logger until Init is called.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}
