// Package logger provides a small printf-style logging interface for
// rackwatch components, backed by zap. Packages log through the Logger
// interface so tests can swap in Noop or BufferLogger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "RACKWATCH_DEBUG"

var (
	debugForced atomic.Bool

	sinkMu sync.RWMutex
	sink   io.Writer = os.Stderr
)

// EnableDebug turns debug output on regardless of DebugEnv (the --debug flag).
func EnableDebug(on bool) {
	debugForced.Store(on)
}

// SetOutput redirects every env logger, including ones already created.
// The dashboard points this at a file while it owns the terminal.
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	sinkMu.Lock()
	sink = w
	sinkMu.Unlock()
}

func debugEnabled() bool {
	return debugForced.Load() || os.Getenv(DebugEnv) != ""
}

// switchSink forwards to whatever SetOutput last installed.
type switchSink struct{}

func (switchSink) Write(p []byte) (int, error) {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink.Write(p)
}

func (switchSink) Sync() error { return nil }

// envLogger implements Logger on top of a zap SugaredLogger.
// Debug messages are only emitted when debug is enabled.
type envLogger struct {
	prefix string
	sugar  *zap.SugaredLogger
}

// NewEnvLogger creates a logger that respects RACKWATCH_DEBUG and EnableDebug.
// The prefix is prepended to all log messages (e.g., "[poller]").
func NewEnvLogger(prefix string) Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.CallerKey = ""

	level := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		if l == zapcore.DebugLevel {
			return debugEnabled()
		}
		return l > zapcore.DebugLevel
	})

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(switchSink{}), level)
	return &envLogger{prefix: prefix, sugar: zap.New(core).Sugar()}
}

func (l *envLogger) format(format string) string {
	if l.prefix == "" {
		return format
	}
	return l.prefix + " " + format
}

func (l *envLogger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(l.format(format), args...)
}

func (l *envLogger) Info(format string, args ...interface{}) {
	l.sugar.Infof(l.format(format), args...)
}

func (l *envLogger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(l.format(format), args...)
}

func (l *envLogger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(l.format(format), args...)
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing. Safe for concurrent use,
// since pollers log from their own goroutines.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) add(level, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args) }

// Messages returns a copy of everything captured so far.
func (l *BufferLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	for _, m := range l.Messages() {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Contains returns true if any message at level contains substr.
func (l *BufferLogger) Contains(level, substr string) bool {
	for _, m := range l.Messages() {
		if m.Level == level && strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	l.messages = l.messages[:0]
	l.mu.Unlock()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewEnvLogger("")
)

// Default returns the package-level logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the package-level logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}
