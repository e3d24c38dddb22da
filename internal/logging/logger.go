package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all above
	LevelDebug
	// LevelTrace logs very detailed trace information and all above
	LevelTrace
)

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(name string) (LogLevel, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for level, levelName := range levelNames {
		if levelName == upper {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// shared holds the state every logger derived from the same root sees.
type shared struct {
	mu    sync.RWMutex
	level LogLevel
	base  *zap.Logger
}

// Logger provides leveled, component-prefixed logging on top of zap.
type Logger struct {
	prefix string
	shared *shared
}

// Config selects the zap encoder and destination.
type Config struct {
	Format     string // json, console, or empty to pick by terminal
	OutputPath string // stdout, stderr, or a file path
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger("wikifs")

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			if parsed, err := ParseLevel(level); err == nil {
				defaultLogger.SetLevel(parsed)
			}
		}

		if os.Getenv("WIKIFS_DEBUG") != "" {
			defaultLogger.SetLevel(LevelDebug)
		}
	})
	return defaultLogger
}

// NewLogger creates a new logger with the given prefix writing to stdout.
func NewLogger(prefix string) *Logger {
	base, err := build(Config{})
	if err != nil {
		base = zap.NewNop()
	}
	return NewWithCore(prefix, base)
}

// NewWithCore wraps an existing zap logger. Tests use it with an observer core.
func NewWithCore(prefix string, base *zap.Logger) *Logger {
	return &Logger{
		prefix: prefix,
		shared: &shared{level: LevelInfo, base: base},
	}
}

// Configure rebuilds the zap backend of l and every logger derived from it.
func (l *Logger) Configure(cfg Config) error {
	base, err := build(cfg)
	if err != nil {
		return err
	}
	l.shared.mu.Lock()
	old := l.shared.base
	l.shared.base = base
	l.shared.mu.Unlock()
	_ = old.Sync()
	return nil
}

func build(cfg Config) (*zap.Logger, error) {
	format := cfg.Format
	if format == "" {
		format = "json"
		if term.IsTerminal(int(os.Stdout.Fd())) {
			format = "console"
		}
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Sampling = nil
	}
	// Level gating happens in Logger so TRACE can sit below zap's debug.
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zcfg.OutputPaths = []string{"stdout"}
	if cfg.OutputPath != "" {
		zcfg.OutputPaths = []string{cfg.OutputPath}
	}
	zcfg.DisableStacktrace = true

	return zcfg.Build(zap.AddCallerSkip(2))
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	l.shared.level = level
}

// Level returns the current logging level.
func (l *Logger) Level() LogLevel {
	l.shared.mu.RLock()
	defer l.shared.mu.RUnlock()
	return l.shared.level
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return level <= l.Level()
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	l.shared.mu.RLock()
	defer l.shared.mu.RUnlock()
	return l.shared.base.Sync()
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.shared.mu.RLock()
	enabled := level <= l.shared.level
	base := l.shared.base
	l.shared.mu.RUnlock()
	if !enabled {
		return
	}

	msg := fmt.Sprintf(format, args...)
	fields := []zap.Field{zap.String("component", l.prefix)}
	switch level {
	case LevelError:
		base.Error(msg, fields...)
	case LevelWarn:
		base.Warn(msg, fields...)
	case LevelInfo:
		base.Info(msg, fields...)
	case LevelDebug:
		base.Debug(msg, fields...)
	default:
		base.Debug(msg, append(fields, zap.Bool("trace", true))...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LevelTrace, format, args...)
}

// WithPrefix creates a logger for a component. It shares level and backend
// with l, so SetLevel on the root applies to every component.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		shared: l.shared,
	}
}
