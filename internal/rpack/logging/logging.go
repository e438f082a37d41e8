// Package logging provides the process-wide structured logger.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console, json
	OutputPath string // stderr, stdout, or file path
}

// Init builds the global logger. An empty output path logs to stderr so
// that command output on stdout stays clean.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	var config zap.Config
	switch cfg.Format {
	case "", "console":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	case "json":
		config = zap.NewProductionConfig()
		config.Sampling = nil
	default:
		return fmt.Errorf("invalid log format %q: want console or json", cfg.Format)
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stderr"
	}
	config.OutputPaths = []string{output}
	config.ErrorOutputPaths = []string{"stderr"}

	globalLevel.SetLevel(level)
	config.Level = globalLevel

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	mu.Lock()
	globalLogger = logger
	mu.Unlock()
	return nil
}

// InitDefault installs a console logger at info level.
func InitDefault() {
	_ = Init(Config{})
}

// Replace installs logger as the global logger and returns a function that
// restores the previous one. Tests use it to capture output.
func Replace(logger *zap.Logger) func() {
	mu.Lock()
	prev := globalLogger
	globalLogger = logger
	mu.Unlock()
	return func() {
		mu.Lock()
		globalLogger = prev
		mu.Unlock()
	}
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// SetLevel changes the global log level at runtime.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	globalLevel.SetLevel(l)
	return nil
}

// L returns the global logger.
func L() *zap.Logger {
	mu.RLock()
	logger := globalLogger
	mu.RUnlock()
	if logger == nil {
		InitDefault()
		mu.RLock()
		logger = globalLogger
		mu.RUnlock()
	}
	return logger
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}
