package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log wraps a zap logger; the zero value is unusable, use NewNop or
// NewWithLevel.
type Log struct {
	logger *zap.Logger
}

// Field is a single structured logging field.
type Field zap.Field

func unwrap(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Field(f)
	}
	return out
}

// String returns a string field.
func String(key, val string) Field { return Field(zap.String(key, val)) }

// Int returns an int field.
func Int(key string, val int) Field { return Field(zap.Int(key, val)) }

// Uint32 returns a uint32 field.
func Uint32(key string, val uint32) Field { return Field(zap.Uint32(key, val)) }

// Uint64 returns a uint64 field.
func Uint64(key string, val uint64) Field { return Field(zap.Uint64(key, val)) }

// Bool returns a bool field.
func Bool(key string, val bool) Field { return Field(zap.Bool(key, val)) }

// Err returns an error field named "error".
func Err(err error) Field { return Field(zap.Error(err)) }

// Stringer returns a field whose value is rendered with fmt.Stringer.
func Stringer(key string, val fmt.Stringer) Field { return Field(zap.Stringer(key, val)) }

// Object returns a field whose value implements zapcore.ObjectMarshaler.
func Object(key string, val zapcore.ObjectMarshaler) Field { return Field(zap.Object(key, val)) }

// FieldLogger accumulates fields before emitting a single log line,
// mirroring the teacher's With()-returns-FieldLogger idiom.
type FieldLogger struct {
	l *zap.Logger
}

// Info emits an info-level line with the given fields.
func (f FieldLogger) Info(msg string, fields ...Field) { f.l.Info(msg, unwrap(fields)...) }

// Debug emits a debug-level line with the given fields.
func (f FieldLogger) Debug(msg string, fields ...Field) { f.l.Debug(msg, unwrap(fields)...) }

// Warning emits a warn-level line with the given fields.
func (f FieldLogger) Warning(msg string, fields ...Field) { f.l.Warn(msg, unwrap(fields)...) }

// Error emits an error-level line with the given fields.
func (f FieldLogger) Error(msg string, fields ...Field) { f.l.Error(msg, unwrap(fields)...) }
