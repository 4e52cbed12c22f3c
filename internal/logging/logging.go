// Package logging provides global logging functions for privratnik.
// Use dot import to access L_info, L_error, etc. directly.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Log levels
const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	logger *log.Logger
	once   sync.Once
)

// Config holds logging configuration
type Config struct {
	Level      int
	TimeFormat string
	ShowCaller bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		TimeFormat: "15:04:05",
		ShowCaller: true,
	}
}

// ParseLevel maps a config string to a log level, defaulting to info.
func ParseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Init initializes the global logger. Safe to call multiple times.
func Init(cfg *Config) {
	once.Do(func() {
		if cfg == nil {
			cfg = DefaultConfig()
		}

		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      cfg.TimeFormat,
			ReportCaller:    cfg.ShowCaller,
			CallerOffset:    2, // Skip two frames (logMsg -> L_* -> caller)
		})

		logger.SetLevel(toCharmLevel(cfg.Level))
	})
}

// ensureInit ensures logger is initialized with defaults if not already
func ensureInit() {
	if logger == nil {
		Init(nil)
	}
}

func toCharmLevel(level int) log.Level {
	switch level {
	case LevelTrace, LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// logMsg dispatches a message with structured key-value args.
func logMsg(level log.Level, msg string, keyvals ...interface{}) {
	ensureInit()

	switch level {
	case log.DebugLevel:
		logger.Debug(msg, keyvals...)
	case log.InfoLevel:
		logger.Info(msg, keyvals...)
	case log.WarnLevel:
		logger.Warn(msg, keyvals...)
	case log.ErrorLevel:
		logger.Error(msg, keyvals...)
	case log.FatalLevel:
		logger.Fatal(msg, keyvals...)
	}
}

// L_trace logs at trace level (mapped to debug)
func L_trace(msg string, keyvals ...interface{}) {
	logMsg(log.DebugLevel, msg, keyvals...)
}

// L_debug logs at debug level
func L_debug(msg string, keyvals ...interface{}) {
	logMsg(log.DebugLevel, msg, keyvals...)
}

// L_info logs at info level
func L_info(msg string, keyvals ...interface{}) {
	logMsg(log.InfoLevel, msg, keyvals...)
}

// L_warn logs at warn level
func L_warn(msg string, keyvals ...interface{}) {
	logMsg(log.WarnLevel, msg, keyvals...)
}

// L_error logs at error level
func L_error(msg string, keyvals ...interface{}) {
	logMsg(log.ErrorLevel, msg, keyvals...)
}

// L_fatal logs at fatal level and exits
func L_fatal(msg string, keyvals ...interface{}) {
	logMsg(log.FatalLevel, msg, keyvals...)
}

// SetLevel changes the log level at runtime
func SetLevel(level int) {
	ensureInit()
	logger.SetLevel(toCharmLevel(level))
}
