// Package logging provides structured logging for the trip planner agent.
// It keeps a small map-based API on top of zap so call sites stay terse.
package logging

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// ParseLevel maps a config string (case-insensitive) to a LogLevel, defaulting to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger provides structured logging backed by zap.
type Logger struct {
	z *zap.Logger
}

var (
	mu     sync.RWMutex
	global *Logger
)

// Init initializes the global logger writing to out.
// pretty selects zap's console encoder instead of JSON.
func Init(out io.Writer, minLevel LogLevel, pretty bool) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if pretty {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), minLevel.zapLevel())
	SetLogger(zap.New(core))
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(z *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = &Logger{z: z}
}

// Get returns the global logger instance, creating a JSON stdout logger if needed.
func Get() *Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	Init(os.Stdout, LevelInfo, false)
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// With returns a child logger that always carries the given context.
func (l *Logger) With(context map[string]interface{}) *Logger {
	return &Logger{z: l.z.With(fields(context)...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.z.Debug(message, fields(merge(context...))...)
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.z.Info(message, fields(merge(context...))...)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.z.Warn(message, fields(merge(context...))...)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	f := fields(merge(context...))
	if err != nil {
		f = append(f, zap.Error(err))
	}
	l.z.Error(message, f...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// merge merges multiple context maps; later maps win on key collisions.
func merge(context ...map[string]interface{}) map[string]interface{} {
	if len(context) == 0 {
		return nil
	}
	if len(context) == 1 {
		return context[0]
	}
	merged := make(map[string]interface{})
	for _, c := range context {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// fields converts a context map to zap fields in key order so output is stable.
func fields(context map[string]interface{}) []zap.Field {
	if len(context) == 0 {
		return nil
	}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, context[k]))
	}
	return out
}

// Convenience functions using global logger

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}
