// Package log provides the structured logging API used across the
// ballot protocol, the peer overlay, and the loopback transport.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const mainLoggerName = "fba"

var logWriter = os.Stdout

// Logger is the logging API the rest of the module programs against.
type Logger interface {
	Info(format string, args ...any)
	Debug(format string, args ...any)
	Warning(format string, args ...any)
	Error(format string, args ...any)
	With() FieldLogger
}

var (
	mu     sync.RWMutex
	appLog Log
)

func init() {
	SetupGlobal(NewWithLevel(mainLoggerName, zap.NewAtomicLevelAt(zapcore.InfoLevel)))
}

// SetupGlobal overwrites the process-global logger.
func SetupGlobal(l Log) {
	mu.Lock()
	defer mu.Unlock()
	appLog = l
}

// GetLogger returns the process-global logger.
func GetLogger() Log {
	mu.RLock()
	defer mu.RUnlock()
	return appLog
}

// NewNop returns a logger that discards everything; the default for tests.
func NewNop() Log {
	return Log{logger: zap.NewNop()}
}

// NewWithLevel creates a console logger at a fixed level.
func NewWithLevel(name string, level zap.AtomicLevel) Log {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(logWriter),
		level,
	)
	return Log{logger: zap.New(core).Named(name)}
}

// Named returns a logger scoped to a component name, e.g. "slot", "session".
func (l Log) Named(name string) Log {
	return Log{logger: l.logger.Named(name)}
}

// Info logs at info level.
func (l Log) Info(format string, args ...any) { l.logger.Sugar().Infof(format, args...) }

// Debug logs at debug level.
func (l Log) Debug(format string, args ...any) { l.logger.Sugar().Debugf(format, args...) }

// Warning logs at warn level.
func (l Log) Warning(format string, args ...any) { l.logger.Sugar().Warnf(format, args...) }

// Error logs at error level.
func (l Log) Error(format string, args ...any) { l.logger.Sugar().Errorf(format, args...) }

// With returns a FieldLogger for structured, leveled logging with fields.
func (l Log) With() FieldLogger { return FieldLogger{l: l.logger} }

// WithFields returns a derived logger with fields permanently attached.
func (l Log) WithFields(fields ...Field) Log {
	return Log{logger: l.logger.With(unwrap(fields)...)}
}
